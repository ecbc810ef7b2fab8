package vkhal

import (
	"sync"

	vk "github.com/vulkan-go/vulkan"
)

// fenceManager recycles resettable fences so each Transaction submit
// doesn't churn through vkCreateFence/vkDestroyFence. Not thread-safe
// beyond its own free list; a fence is exclusively owned between
// acquire and release.
type fenceManager struct {
	device vk.Device
	mu     sync.Mutex
	free   []vk.Fence
	total  int
}

func newFenceManager(device vk.Device) *fenceManager {
	return &fenceManager{device: device}
}

// acquire returns an unsignaled fence, reusing a previously released
// one when available.
func (f *fenceManager) acquire(label string) (vk.Fence, error) {
	f.mu.Lock()
	if n := len(f.free); n > 0 {
		fence := f.free[n-1]
		f.free = f.free[:n-1]
		f.mu.Unlock()
		if ret := vk.ResetFences(f.device, 1, []vk.Fence{fence}); isError(ret) {
			return vk.NullFence, gpuErr(label, ret)
		}
		return fence, nil
	}
	f.total++
	f.mu.Unlock()

	var fence vk.Fence
	ret := vk.CreateFence(f.device, &vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}, nil, &fence)
	if isError(ret) {
		return vk.NullFence, gpuErr(label, ret)
	}
	return fence, nil
}

// release returns a fence to the free list. The caller must have
// observed it signaled (or never submitted it).
func (f *fenceManager) release(fence vk.Fence) {
	f.mu.Lock()
	f.free = append(f.free, fence)
	f.mu.Unlock()
}

// destroy releases every fence ever minted that has been returned.
// Fences still leased out are the caller's bug.
func (f *fenceManager) destroy() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fence := range f.free {
		vk.DestroyFence(f.device, fence, nil)
	}
	f.free = nil
}

// stats reports (total minted, currently free), used to assert that a
// steady-state workload stops minting new fences.
func (f *fenceManager) stats() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total, len(f.free)
}
