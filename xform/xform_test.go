package xform

import (
	"testing"

	lin "github.com/xlab/linmath"
)

func TestVulkanProjectionFlipsY(t *testing.T) {
	var gl, vkProj lin.Mat4x4
	gl.Perspective(lin.DegreesToRadians(45), 1.0, 0.1, 100)
	VulkanProjection(&vkProj, &gl)

	if vkProj[1][1] == gl[1][1] {
		t.Errorf("expected Y scale to flip sign, got %v unchanged", vkProj[1][1])
	}
	if vkProj[1][1] != -gl[1][1] {
		t.Errorf("Y scale = %v, want %v", vkProj[1][1], -gl[1][1])
	}
}
