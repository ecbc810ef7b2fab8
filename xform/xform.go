// Package xform holds small projection-matrix helpers for building
// vertex data in Vulkan's clip space. The HAL itself is
// transform-agnostic and never imports this package; neither do
// cmd/demo and the integration test under test/.
package xform

import lin "github.com/xlab/linmath"

// VulkanProjection converts a GL-style projection matrix to Vulkan's
// clip space: top-left origin with Y down, and a [0, 1] depth range
// instead of [-1, 1].
func VulkanProjection(out *lin.Mat4x4, proj *lin.Mat4x4) {
	// Column-major clip correction: y' = -y, z' = 0.5z + 0.5w.
	var clip lin.Mat4x4
	clip[0][0] = 1.0
	clip[1][1] = -1.0
	clip[2][2] = 0.5
	clip[3][2] = 0.5
	clip[3][3] = 1.0
	out.Mult(&clip, proj)
}

// Perspective fills out with a Vulkan-ready perspective projection.
func Perspective(out *lin.Mat4x4, fovY, aspect, near, far float32) {
	var gl lin.Mat4x4
	gl.Perspective(fovY, aspect, near, far)
	VulkanProjection(out, &gl)
}
