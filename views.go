package vkhal

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// Region names a mip/array-layer range within an Image or DepthImage. A
// view never owns the resource it borrows from; it is a plain value.
type Region struct {
	BaseMipLevel   uint32
	MipLevels      uint32
	BaseArrayLayer uint32
	ArrayLayers    uint32
}

// SamplerKind enumerates the fixed combinations of filter/anisotropy/
// compare the Context builds and caches, one sampler per combination
// actually used.
type SamplerKind int

const (
	SamplerLinearNone SamplerKind = iota
	SamplerNearestNone
	SamplerAniso4None
	SamplerLinearLessCompare
	SamplerNearestLessCompare
	SamplerAniso4LessCompare
)

func (s SamplerKind) String() string {
	switch s {
	case SamplerLinearNone:
		return "linear-none"
	case SamplerNearestNone:
		return "nearest-none"
	case SamplerAniso4None:
		return "aniso4-none"
	case SamplerLinearLessCompare:
		return "linear-lessCompare"
	case SamplerNearestLessCompare:
		return "nearest-lessCompare"
	case SamplerAniso4LessCompare:
		return "aniso4-lessCompare"
	default:
		return "unknown"
	}
}

// samplerCreateInfo maps a SamplerKind to the vk.SamplerCreateInfo the
// Context builds it from, once, at first use.
func samplerCreateInfo(kind SamplerKind) vk.SamplerCreateInfo {
	info := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		AddressModeU:            vk.SamplerAddressModeClampToEdge,
		AddressModeV:            vk.SamplerAddressModeClampToEdge,
		AddressModeW:            vk.SamplerAddressModeClampToEdge,
		MipmapMode:              vk.SamplerMipmapModeNearest,
		MinLod:                  0,
		MaxLod:                  0,
		BorderColor:             vk.BorderColorFloatOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
	}
	switch kind {
	case SamplerLinearNone:
		info.MagFilter, info.MinFilter = vk.FilterLinear, vk.FilterLinear
	case SamplerNearestNone:
		info.MagFilter, info.MinFilter = vk.FilterNearest, vk.FilterNearest
	case SamplerAniso4None:
		info.MagFilter, info.MinFilter = vk.FilterLinear, vk.FilterLinear
		info.AnisotropyEnable = vk.True
		info.MaxAnisotropy = 4
	case SamplerLinearLessCompare:
		info.MagFilter, info.MinFilter = vk.FilterLinear, vk.FilterLinear
		info.CompareEnable = vk.True
		info.CompareOp = vk.CompareOpLess
	case SamplerNearestLessCompare:
		info.MagFilter, info.MinFilter = vk.FilterNearest, vk.FilterNearest
		info.CompareEnable = vk.True
		info.CompareOp = vk.CompareOpLess
	case SamplerAniso4LessCompare:
		info.MagFilter, info.MinFilter = vk.FilterLinear, vk.FilterLinear
		info.AnisotropyEnable = vk.True
		info.MaxAnisotropy = 4
		info.CompareEnable = vk.True
		info.CompareOp = vk.CompareOpLess
	}
	return info
}

// BufferView borrows a byte range of a Buffer. It carries no handle of
// its own; descriptor writes and vertex/index binds read Offset/Size off
// the view and the raw handle off the parent Buffer.
type BufferView struct {
	Buffer *Buffer
	Offset uint64
	Size   uint64
}

// viewKey identifies a cached vk.ImageView within an Image/DepthImage's
// viewCache: same region + aspect => same raw handle, reused across
// however many ImageView values borrow it with different samplers (the
// sampler lives in the descriptor write, not the image view).
type viewKey struct {
	baseMip, mipLevels     uint32
	baseLayer, arrayLayers uint32
	aspect                 vk.ImageAspectFlags
}

func (img *Image) rawView(region Region) (vk.ImageView, error) {
	key := viewKey{region.BaseMipLevel, region.MipLevels, region.BaseArrayLayer, region.ArrayLayers, vk.ImageAspectFlags(vk.ImageAspectColorBit)}
	img.viewMu.Lock()
	defer img.viewMu.Unlock()
	if h, ok := img.viewCache[key]; ok {
		return h.Value(), nil
	}
	var view vk.ImageView
	ret := vk.CreateImageView(img.ctx.device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.alloc.Image,
		ViewType: imageViewTypeFor(img.depth, region.ArrayLayers),
		Format:   img.format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   region.BaseMipLevel,
			LevelCount:     region.MipLevels,
			BaseArrayLayer: region.BaseArrayLayer,
			LayerCount:     region.ArrayLayers,
		},
	}, nil, &view)
	if err := checkResult(img.label, ret); err != nil {
		return vk.NullImageView, err
	}
	img.viewCache[key] = newImageViewHandle(img.ctx.device, img.label, view)
	return view, nil
}

func (d *DepthImage) rawView(region Region) (vk.ImageView, error) {
	aspect := depthAspectMask(d.format)
	key := viewKey{region.BaseMipLevel, region.MipLevels, region.BaseArrayLayer, region.ArrayLayers, aspect}
	d.viewMu.Lock()
	defer d.viewMu.Unlock()
	if h, ok := d.viewCache[key]; ok {
		return h.Value(), nil
	}
	var view vk.ImageView
	ret := vk.CreateImageView(d.ctx.device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    d.alloc.Image,
		ViewType: imageViewTypeFor(d.depth, region.ArrayLayers),
		Format:   d.format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   region.BaseMipLevel,
			LevelCount:     region.MipLevels,
			BaseArrayLayer: region.BaseArrayLayer,
			LayerCount:     region.ArrayLayers,
		},
	}, nil, &view)
	if err := checkResult(d.label, ret); err != nil {
		return vk.NullImageView, err
	}
	d.viewCache[key] = newImageViewHandle(d.ctx.device, d.label, view)
	return view, nil
}

func imageViewTypeFor(depth uint32, arrayLayers uint32) vk.ImageViewType {
	switch {
	case depth > 0:
		return vk.ImageViewType3d
	case arrayLayers > 1:
		return vk.ImageViewType2dArray
	default:
		return vk.ImageViewType2d
	}
}

// ImageView borrows a region of a color Image with a sampler choice for
// descriptor binding or attachment use. The backing vk.ImageView handle
// lives in the Image's cache and outlives any one ImageView value.
type ImageView struct {
	Image   *Image
	Region  Region
	Sampler SamplerKind
}

// Raw resolves (creating on first use) the cached vk.ImageView handle.
func (v ImageView) Raw() (vk.ImageView, error) {
	return v.Image.rawView(v.Region)
}

// DepthImageView is ImageView's counterpart for DepthImage.
type DepthImageView struct {
	DepthImage *DepthImage
	Region     Region
	Sampler    SamplerKind
}

func (v DepthImageView) Raw() (vk.ImageView, error) {
	return v.DepthImage.rawView(v.Region)
}

// MappedBuffer is the RAII guard returned by Buffer host-access
// methods: while held, the buffer's memory is mapped into host address
// space; Copy writes/reads through it, and Release unmaps. Copying zero
// bytes is a logged no-op, not an error; copying past the mapped range
// is BufferTooSmall.
type MappedBuffer struct {
	buffer   *Buffer
	ptr      unsafe.Pointer
	offset   uint64
	size     uint64
	released bool
}

func newMappedBuffer(b *Buffer, offset, size uint64) (*MappedBuffer, error) {
	if offset+size > b.size {
		return nil, &Error{Kind: KindBufferTooSmall, Label: b.label, Msg: "map range exceeds buffer size"}
	}
	ptr, err := b.ctx.allocator.Map(b.ctx.device, b.alloc, vk.DeviceSize(offset), vk.DeviceSize(size))
	if err != nil {
		return nil, err
	}
	return &MappedBuffer{buffer: b, ptr: ptr, offset: offset, size: size}, nil
}

// CopyFrom writes src into the mapped range starting at relOffset, bytes
// relative to the mapping's own start (not the buffer's). A zero-length
// src is ignored with a logged warning rather than an error.
func (m *MappedBuffer) CopyFrom(relOffset uint64, src []byte) error {
	if len(src) == 0 {
		m.buffer.ctx.log.warnf("buffer %q: zero-sized copy ignored", m.buffer.label)
		return nil
	}
	if relOffset+uint64(len(src)) > m.size {
		return &Error{Kind: KindBufferTooSmall, Label: m.buffer.label, Msg: "copy range exceeds mapped size"}
	}
	dst := unsafe.Slice((*byte)(unsafe.Add(m.ptr, relOffset)), len(src))
	copy(dst, src)
	return nil
}

// CopyTo reads from the mapped range starting at relOffset into dst. A
// zero-length dst is ignored with a logged warning rather than an error.
func (m *MappedBuffer) CopyTo(relOffset uint64, dst []byte) error {
	if len(dst) == 0 {
		m.buffer.ctx.log.warnf("buffer %q: zero-sized copy ignored", m.buffer.label)
		return nil
	}
	if relOffset+uint64(len(dst)) > m.size {
		return &Error{Kind: KindBufferTooSmall, Label: m.buffer.label, Msg: "copy range exceeds mapped size"}
	}
	src := unsafe.Slice((*byte)(unsafe.Add(m.ptr, relOffset)), len(dst))
	copy(dst, src)
	return nil
}

// Release unmaps the buffer's memory. Safe to call more than once.
func (m *MappedBuffer) Release() {
	if m.released {
		return
	}
	m.released = true
	m.buffer.ctx.allocator.Unmap(m.buffer.ctx.device, m.buffer.alloc)
}

// MapRead maps [offset, offset+size) for host reads. HostAccessRead must
// have been declared when the buffer was created.
func (b *Buffer) MapRead(offset, size uint64) (*MappedBuffer, error) {
	if b.hostAccess&HostAccessRead == 0 {
		return nil, configErr(b.label, "buffer was not created with HostAccessRead")
	}
	return newMappedBuffer(b, offset, size)
}

// MapWrite maps [offset, offset+size) for host writes. HostAccessWrite
// must have been declared when the buffer was created.
func (b *Buffer) MapWrite(offset, size uint64) (*MappedBuffer, error) {
	if b.hostAccess&HostAccessWrite == 0 {
		return nil, configErr(b.label, "buffer was not created with HostAccessWrite")
	}
	return newMappedBuffer(b, offset, size)
}

// MapReadWrite maps [offset, offset+size) for both host reads and
// writes. Both HostAccessRead and HostAccessWrite must have been
// declared.
func (b *Buffer) MapReadWrite(offset, size uint64) (*MappedBuffer, error) {
	if b.hostAccess&(HostAccessRead|HostAccessWrite) != (HostAccessRead | HostAccessWrite) {
		return nil, configErr(b.label, "buffer was not created with HostAccessRead|HostAccessWrite")
	}
	return newMappedBuffer(b, offset, size)
}
