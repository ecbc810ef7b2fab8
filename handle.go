package vkhal

import (
	"sync"

	vk "github.com/vulkan-go/vulkan"
)

// owned is a typed, owning wrapper over a single raw GPU-API handle. It
// holds the destroy callback captured at construction time (closing over
// the parent device/instance/allocator), and releases the handle exactly
// once. One shape serves every handle kind instead of hand-writing one
// Destroy method per wrapper.
type owned[T any] struct {
	mu       sync.Mutex
	label    string
	value    T
	destroy  func(T)
	released bool
}

func newOwned[T any](label string, value T, destroy func(T)) *owned[T] {
	return &owned[T]{label: label, value: value, destroy: destroy}
}

// Value returns the raw handle. Calling it after Release is a
// programmer error; the HAL never defends against it at runtime.
func (o *owned[T]) Value() T {
	return o.value
}

func (o *owned[T]) Label() string {
	return o.label
}

// Release destroys the underlying handle exactly once. Subsequent calls
// are no-ops, so defer Release() is always safe even after an explicit
// early release.
func (o *owned[T]) Release() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.released {
		return
	}
	if o.destroy != nil {
		o.destroy(o.value)
	}
	o.released = true
}

func (o *owned[T]) Released() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.released
}

// Concrete handle kinds. Each constructor binds the destroy closure to
// the owning device/instance/allocator so release never needs extra
// context at call time.

type instanceHandle = owned[vk.Instance]
type deviceHandle = owned[vk.Device]
type queueHandle = owned[vk.Queue] // queues are not destroyed, only referenced; see newQueueHandle
type bufferHandle = owned[vk.Buffer]
type bufferMemoryHandle = owned[vk.DeviceMemory]
type imageHandle = owned[vk.Image]
type imageViewHandle = owned[vk.ImageView]
type samplerHandle = owned[vk.Sampler]
type descriptorPoolHandle = owned[vk.DescriptorPool]
type descriptorSetLayoutHandle = owned[vk.DescriptorSetLayout]
type descriptorSetHandle = owned[vk.DescriptorSet]
type pipelineLayoutHandle = owned[vk.PipelineLayout]
type pipelineHandle = owned[vk.Pipeline]
type renderPassHandle = owned[vk.RenderPass]
type framebufferHandle = owned[vk.Framebuffer]
type queryPoolHandle = owned[vk.QueryPool]
type commandPoolHandle = owned[vk.CommandPool]
type commandBufferHandle = owned[vk.CommandBuffer]
type fenceHandle = owned[vk.Fence]
type semaphoreHandle = owned[vk.Semaphore]
type swapchainHandle = owned[vk.Swapchain]
type surfaceHandle = owned[vk.Surface]

func newInstanceHandle(label string, inst vk.Instance) *instanceHandle {
	return newOwned(label, inst, func(v vk.Instance) { vk.DestroyInstance(v, nil) })
}

func newDeviceHandle(label string, dev vk.Device) *deviceHandle {
	return newOwned(label, dev, func(v vk.Device) { vk.DestroyDevice(v, nil) })
}

// newQueueHandle wraps a queue for symmetry with every other handle in
// the table, even though vkQueue is never explicitly destroyed — it dies
// with its device. destroy is nil.
func newQueueHandle(label string, q vk.Queue) *queueHandle {
	return newOwned[vk.Queue](label, q, nil)
}

func newBufferHandle(device vk.Device, label string, buf vk.Buffer) *bufferHandle {
	return newOwned(label, buf, func(v vk.Buffer) { vk.DestroyBuffer(device, v, nil) })
}

func newBufferMemoryHandle(device vk.Device, label string, mem vk.DeviceMemory) *bufferMemoryHandle {
	return newOwned(label, mem, func(v vk.DeviceMemory) { vk.FreeMemory(device, v, nil) })
}

func newImageHandle(device vk.Device, label string, img vk.Image) *imageHandle {
	return newOwned(label, img, func(v vk.Image) { vk.DestroyImage(device, v, nil) })
}

func newImageViewHandle(device vk.Device, label string, view vk.ImageView) *imageViewHandle {
	return newOwned(label, view, func(v vk.ImageView) { vk.DestroyImageView(device, v, nil) })
}

func newSamplerHandle(device vk.Device, label string, s vk.Sampler) *samplerHandle {
	return newOwned(label, s, func(v vk.Sampler) { vk.DestroySampler(device, v, nil) })
}

func newDescriptorPoolHandle(device vk.Device, label string, p vk.DescriptorPool) *descriptorPoolHandle {
	return newOwned(label, p, func(v vk.DescriptorPool) { vk.DestroyDescriptorPool(device, v, nil) })
}

func newDescriptorSetLayoutHandle(device vk.Device, label string, l vk.DescriptorSetLayout) *descriptorSetLayoutHandle {
	return newOwned(label, l, func(v vk.DescriptorSetLayout) { vk.DestroyDescriptorSetLayout(device, v, nil) })
}

// newDescriptorSetHandle wraps a set allocated from a pool; it is freed
// back to the HAL's pool manager rather than individually destroyed, so
// destroy is a no-op here — the pool manager owns the lifetime.
func newDescriptorSetHandle(label string, s vk.DescriptorSet) *descriptorSetHandle {
	return newOwned[vk.DescriptorSet](label, s, nil)
}

func newPipelineLayoutHandle(device vk.Device, label string, l vk.PipelineLayout) *pipelineLayoutHandle {
	return newOwned(label, l, func(v vk.PipelineLayout) { vk.DestroyPipelineLayout(device, v, nil) })
}

func newPipelineHandle(device vk.Device, label string, p vk.Pipeline) *pipelineHandle {
	return newOwned(label, p, func(v vk.Pipeline) { vk.DestroyPipeline(device, v, nil) })
}

func newRenderPassHandle(device vk.Device, label string, rp vk.RenderPass) *renderPassHandle {
	return newOwned(label, rp, func(v vk.RenderPass) { vk.DestroyRenderPass(device, v, nil) })
}

func newFramebufferHandle(device vk.Device, label string, fb vk.Framebuffer) *framebufferHandle {
	return newOwned(label, fb, func(v vk.Framebuffer) { vk.DestroyFramebuffer(device, v, nil) })
}

func newQueryPoolHandle(device vk.Device, label string, qp vk.QueryPool) *queryPoolHandle {
	return newOwned(label, qp, func(v vk.QueryPool) { vk.DestroyQueryPool(device, v, nil) })
}

func newCommandPoolHandle(device vk.Device, label string, cp vk.CommandPool) *commandPoolHandle {
	return newOwned(label, cp, func(v vk.CommandPool) { vk.DestroyCommandPool(device, v, nil) })
}

// newCommandBufferHandle wraps a buffer allocated from a pool; freeing it
// individually is the pool's job (vk.FreeCommandBuffers on pool reset),
// so destroy is a no-op.
func newCommandBufferHandle(label string, cb vk.CommandBuffer) *commandBufferHandle {
	return newOwned[vk.CommandBuffer](label, cb, nil)
}

func newFenceHandle(device vk.Device, label string, f vk.Fence) *fenceHandle {
	return newOwned(label, f, func(v vk.Fence) { vk.DestroyFence(device, v, nil) })
}

func newSemaphoreHandle(device vk.Device, label string, s vk.Semaphore) *semaphoreHandle {
	return newOwned(label, s, func(v vk.Semaphore) { vk.DestroySemaphore(device, v, nil) })
}

func newSwapchainHandle(device vk.Device, label string, sc vk.Swapchain) *swapchainHandle {
	return newOwned(label, sc, func(v vk.Swapchain) { vk.DestroySwapchain(device, v, nil) })
}

func newSurfaceHandle(instance vk.Instance, label string, s vk.Surface) *surfaceHandle {
	return newOwned(label, s, func(v vk.Surface) { vk.DestroySurface(instance, v, nil) })
}
