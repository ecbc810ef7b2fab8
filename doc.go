// Package vkhal is a lifetime-safe, label-rich, builder-driven hardware
// abstraction layer over a Vulkan-class GPU API. It automates resource
// state tracking and barrier insertion, composes GPU work as a tree of
// invocations recorded into command buffers in one pass, and pools
// descriptor sets, command pools, query pools and framebuffers behind
// RAII leases.
//
// The three things the raw API normally forces a caller to manage by
// hand are handled here: pipeline barriers between dependent resource
// accesses (barrier.go, resource.go), composition of leaf GPU operations
// into render passes and composites (invocation.go, recorder.go), and
// recycling of short-lived driver objects (pool.go).
package vkhal
