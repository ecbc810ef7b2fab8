package vkhal

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// AllocationHint tells the memory allocator how a resource will be
// touched from the host side, derived from HostAccess: none means
// GPU-only, read means GPU-to-CPU, write means CPU-to-GPU, read|write
// means CPU-only.
type AllocationHint int

const (
	AllocationGPUOnly AllocationHint = iota
	AllocationGPUToCPU
	AllocationCPUToGPU
	AllocationCPUOnly
)

func allocationHintFor(access HostAccess) AllocationHint {
	switch {
	case access&HostAccessRead != 0 && access&HostAccessWrite != 0:
		return AllocationCPUOnly
	case access&HostAccessWrite != 0:
		return AllocationCPUToGPU
	case access&HostAccessRead != 0:
		return AllocationGPUToCPU
	default:
		return AllocationGPUOnly
	}
}

// Allocation is what an Allocator hands back for a created buffer or
// image: the raw handle plus the device memory backing it. The HAL only
// ever touches these two fields; allocator-internal bookkeeping (memory
// pools, sub-allocation offsets) stays behind the trait.
type Allocation struct {
	Buffer vk.Buffer
	Image  vk.Image
	Memory vk.DeviceMemory
	Offset vk.DeviceSize
}

// Allocator is the device-memory allocator the HAL consumes. Anything
// satisfying these five calls can back resource creation; sub-allocation
// strategy stays behind the interface.
type Allocator interface {
	CreateBuffer(device vk.Device, size vk.DeviceSize, usage vk.BufferUsageFlags, hint AllocationHint, label string) (Allocation, error)
	CreateImage(device vk.Device, info vk.ImageCreateInfo, hint AllocationHint, label string) (Allocation, error)
	Map(device vk.Device, alloc Allocation, offset, size vk.DeviceSize) (unsafe.Pointer, error)
	Unmap(device vk.Device, alloc Allocation)
	Destroy(device vk.Device, alloc Allocation)
}

// directAllocator is the default, in-process Allocator: one
// vkAllocateMemory call per resource, no sub-allocation. Fine for
// tests and demos; applications with allocation-heavy workloads plug
// in their own Allocator.
type directAllocator struct {
	memProps vk.PhysicalDeviceMemoryProperties
}

func newDirectAllocator(memProps vk.PhysicalDeviceMemoryProperties) *directAllocator {
	return &directAllocator{memProps: memProps}
}

func memoryPropertyFlagsFor(hint AllocationHint) vk.MemoryPropertyFlagBits {
	switch hint {
	case AllocationGPUOnly:
		return vk.MemoryPropertyDeviceLocalBit
	case AllocationGPUToCPU:
		return vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit | vk.MemoryPropertyHostCachedBit
	case AllocationCPUToGPU:
		return vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
	case AllocationCPUOnly:
		return vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
	default:
		return vk.MemoryPropertyDeviceLocalBit
	}
}

// findRequiredMemoryType scans memory types whose bit is set in
// typeBits for one whose property flags are a superset of want.
func findRequiredMemoryType(props vk.PhysicalDeviceMemoryProperties, typeBits uint32, want vk.MemoryPropertyFlagBits) (uint32, bool) {
	props.Deref()
	for i := uint32(0); i < props.MemoryTypeCount; i++ {
		if typeBits&(1<<i) == 0 {
			continue
		}
		mt := props.MemoryTypes[i]
		mt.Deref()
		if vk.MemoryPropertyFlagBits(mt.PropertyFlags)&want == want {
			return i, true
		}
	}
	return 0, false
}

func (a *directAllocator) CreateBuffer(device vk.Device, size vk.DeviceSize, usage vk.BufferUsageFlags, hint AllocationHint, label string) (Allocation, error) {
	var buffer vk.Buffer
	ret := vk.CreateBuffer(device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}, nil, &buffer)
	if err := checkResult(label, ret); err != nil {
		return Allocation{}, err
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device, buffer, &reqs)
	reqs.Deref()

	want := memoryPropertyFlagsFor(hint)
	idx, ok := findRequiredMemoryType(a.memProps, reqs.MemoryTypeBits, want)
	if !ok {
		idx, _ = findRequiredMemoryType(a.memProps, reqs.MemoryTypeBits, vk.MemoryPropertyHostVisibleBit)
	}

	var memory vk.DeviceMemory
	ret = vk.AllocateMemory(device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: idx,
	}, nil, &memory)
	if err := checkResult(label, ret); err != nil {
		vk.DestroyBuffer(device, buffer, nil)
		return Allocation{}, err
	}
	if ret := vk.BindBufferMemory(device, buffer, memory, 0); isError(ret) {
		vk.FreeMemory(device, memory, nil)
		vk.DestroyBuffer(device, buffer, nil)
		return Allocation{}, gpuErr(label, ret)
	}
	return Allocation{Buffer: buffer, Memory: memory}, nil
}

func (a *directAllocator) CreateImage(device vk.Device, info vk.ImageCreateInfo, hint AllocationHint, label string) (Allocation, error) {
	var image vk.Image
	ret := vk.CreateImage(device, &info, nil, &image)
	if err := checkResult(label, ret); err != nil {
		return Allocation{}, err
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, image, &reqs)
	reqs.Deref()

	want := memoryPropertyFlagsFor(hint)
	idx, ok := findRequiredMemoryType(a.memProps, reqs.MemoryTypeBits, want)
	if !ok {
		idx, _ = findRequiredMemoryType(a.memProps, reqs.MemoryTypeBits, vk.MemoryPropertyDeviceLocalBit)
	}

	var memory vk.DeviceMemory
	ret = vk.AllocateMemory(device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: idx,
	}, nil, &memory)
	if err := checkResult(label, ret); err != nil {
		vk.DestroyImage(device, image, nil)
		return Allocation{}, err
	}
	if ret := vk.BindImageMemory(device, image, memory, 0); isError(ret) {
		vk.FreeMemory(device, memory, nil)
		vk.DestroyImage(device, image, nil)
		return Allocation{}, gpuErr(label, ret)
	}
	return Allocation{Image: image, Memory: memory}, nil
}

func (a *directAllocator) Map(device vk.Device, alloc Allocation, offset, size vk.DeviceSize) (unsafe.Pointer, error) {
	var ptr unsafe.Pointer
	ret := vk.MapMemory(device, alloc.Memory, offset, size, 0, &ptr)
	if err := checkResult("", ret); err != nil {
		return nil, err
	}
	return ptr, nil
}

func (a *directAllocator) Unmap(device vk.Device, alloc Allocation) {
	vk.UnmapMemory(device, alloc.Memory)
}

func (a *directAllocator) Destroy(device vk.Device, alloc Allocation) {
	if alloc.Buffer != vk.NullBuffer {
		vk.DestroyBuffer(device, alloc.Buffer, nil)
	}
	if alloc.Image != vk.NullImage {
		vk.DestroyImage(device, alloc.Image, nil)
	}
	vk.FreeMemory(device, alloc.Memory, nil)
}
