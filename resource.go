package vkhal

import (
	"sync"
	"sync/atomic"

	vk "github.com/vulkan-go/vulkan"
)

// syncState is the mutable (stage, access) pair every Buffer carries,
// and the (stage, access, layout) triple every Image/DepthImage
// carries. It is the state the recorder's barrier emission mutates;
// recording is single-threaded per transaction, and the mutex guards
// against accidental concurrent use from two transactions on the same
// Context, which callers must otherwise serialize themselves.
type syncState struct {
	mu     sync.Mutex
	stage  vk.PipelineStageFlags
	access vk.AccessFlags
	layout vk.ImageLayout // zero/unused for buffers
}

func (s *syncState) get() (vk.PipelineStageFlags, vk.AccessFlags, vk.ImageLayout) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage, s.access, s.layout
}

func (s *syncState) set(stage vk.PipelineStageFlags, access vk.AccessFlags, layout vk.ImageLayout) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage, s.access, s.layout = stage, access, layout
}

// refTracker counts the references un-waited transactions hold on a
// resource, one per use in each recorded tree: no resource may be
// destroyed while one remains. Invocations retain the
// resources they touch at record time; the recorder releases them once
// the owning Transaction has been waited.
type refTracker struct {
	refs int32
}

func (r *refTracker) retain()      { atomic.AddInt32(&r.refs, 1) }
func (r *refTracker) release()     { atomic.AddInt32(&r.refs, -1) }
func (r *refTracker) inUse() bool  { return atomic.LoadInt32(&r.refs) > 0 }
func (r *refTracker) count() int32 { return atomic.LoadInt32(&r.refs) }

// Buffer is an immutable-config, mutable-dynamic-state GPU buffer, shared
// by reference: callers pass around *Buffer, views borrow it, and it is
// destroyed explicitly once no transaction still references it.
type Buffer struct {
	ctx        *Context
	label      string
	size       uint64
	hostAccess HostAccess
	usage      BufferUsage
	alloc      Allocation
	state      syncState
	refTracker
}

func bufferUsageFlags(usage BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlagBits
	if usage&BufferUsageTransferSrc != 0 {
		flags |= vk.BufferUsageTransferSrcBit
	}
	if usage&BufferUsageTransferDst != 0 {
		flags |= vk.BufferUsageTransferDstBit
	}
	if usage&BufferUsageUniform != 0 {
		flags |= vk.BufferUsageUniformBufferBit
	}
	if usage&BufferUsageStorage != 0 {
		flags |= vk.BufferUsageStorageBufferBit
	}
	if usage&BufferUsageVertex != 0 {
		flags |= vk.BufferUsageVertexBufferBit
	}
	if usage&BufferUsageIndex != 0 {
		flags |= vk.BufferUsageIndexBufferBit
	}
	return vk.BufferUsageFlags(flags)
}

// newBuffer is called by Context.CreateBuffer once a BufferConfig has
// been validated. Dynamic state starts host-initial: stage=HOST, access=0.
func newBuffer(ctx *Context, label string, size uint64, hostAccess HostAccess, usage BufferUsage) (*Buffer, error) {
	hint := allocationHintFor(hostAccess)
	alloc, err := ctx.allocator.CreateBuffer(ctx.device, vk.DeviceSize(size), bufferUsageFlags(usage), hint, label)
	if err != nil {
		return nil, err
	}
	b := &Buffer{ctx: ctx, label: label, size: size, hostAccess: hostAccess, usage: usage, alloc: alloc}
	b.state.set(vk.PipelineStageFlags(vk.PipelineStageHostBit), 0, vk.ImageLayoutUndefined)
	return b, nil
}

func (b *Buffer) Label() string     { return b.label }
func (b *Buffer) Size() uint64      { return b.size }
func (b *Buffer) Usage() BufferUsage { return b.usage }

// View borrows a region of the buffer; it never owns b.
func (b *Buffer) View(offset, size uint64) BufferView {
	return BufferView{Buffer: b, Offset: offset, Size: size}
}

// FullView borrows the buffer's entire range.
func (b *Buffer) FullView() BufferView {
	return BufferView{Buffer: b, Offset: 0, Size: b.size}
}

// Destroy releases the buffer's GPU memory. It is a programmer error
// to call this while any transaction still references the buffer;
// destruction paths never fail, so this logs rather than returning an
// error.
func (b *Buffer) Destroy() {
	if b.inUse() {
		b.ctx.log.warnf("buffer %q destroyed while %d transaction(s) still reference it", b.label, b.count())
	}
	b.ctx.allocator.Destroy(b.ctx.device, b.alloc)
}

// Image is a color image: immutable config plus (stage, access, layout)
// dynamic state, created in the undefined layout.
type Image struct {
	ctx        *Context
	label      string
	width      uint32
	height     uint32
	depth      uint32
	format     vk.Format
	colorSpace vk.ColorSpace
	usage      ImageUsage
	alloc      Allocation
	state      syncState
	viewCache  map[viewKey]*imageViewHandle
	viewMu     sync.Mutex
	refTracker
}

func imageUsageFlags(usage ImageUsage) vk.ImageUsageFlags {
	var flags vk.ImageUsageFlagBits
	if usage&ImageUsageTransferSrc != 0 {
		flags |= vk.ImageUsageTransferSrcBit
	}
	if usage&ImageUsageTransferDst != 0 {
		flags |= vk.ImageUsageTransferDstBit
	}
	if usage&ImageUsageSampled != 0 {
		flags |= vk.ImageUsageSampledBit
	}
	if usage&ImageUsageStorage != 0 {
		flags |= vk.ImageUsageStorageBit
	}
	if usage&ImageUsageAttachment != 0 {
		// Disambiguated against the image's format at call sites
		// (color vs depth-stencil attachment bit); color path here.
		flags |= vk.ImageUsageColorAttachmentBit
	}
	if usage&ImageUsageSubpassData != 0 {
		flags |= vk.ImageUsageInputAttachmentBit
	}
	if usage&ImageUsageTileMemory != 0 {
		flags |= vk.ImageUsageTransientAttachmentBit
	}
	return vk.ImageUsageFlags(flags)
}

func imageDimensionality(width, height, depth uint32) vk.ImageType {
	if depth > 0 {
		return vk.ImageType3d
	}
	if height > 1 {
		return vk.ImageType2d
	}
	return vk.ImageType1d
}

func newImage(ctx *Context, label string, width, height, depth uint32, format vk.Format, colorSpace vk.ColorSpace, usage ImageUsage) (*Image, error) {
	extentDepth := depth
	if extentDepth == 0 {
		extentDepth = 1
	}
	info := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: imageDimensionality(width, height, depth),
		Format:    format,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  extentDepth,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         imageUsageFlags(usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	alloc, err := ctx.allocator.CreateImage(ctx.device, info, allocationHintFor(HostAccessNone), label)
	if err != nil {
		return nil, err
	}
	img := &Image{
		ctx: ctx, label: label, width: width, height: height, depth: depth,
		format: format, colorSpace: colorSpace, usage: usage, alloc: alloc,
		viewCache: make(map[viewKey]*imageViewHandle),
	}
	img.state.set(vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), 0, vk.ImageLayoutUndefined)
	return img, nil
}

func (img *Image) Label() string  { return img.label }
func (img *Image) Format() vk.Format { return img.format }
func (img *Image) Width() uint32  { return img.width }
func (img *Image) Height() uint32 { return img.height }

// View borrows a region of the image with a chosen sampler for
// descriptor binding; it never owns img.
func (img *Image) View(region Region, sampler SamplerKind) ImageView {
	return ImageView{Image: img, Region: region, Sampler: sampler}
}

// FullView borrows the image's single mip/layer.
func (img *Image) FullView() ImageView {
	return ImageView{Image: img, Region: Region{MipLevels: 1, ArrayLayers: 1}, Sampler: SamplerLinearNone}
}

func (img *Image) Destroy() {
	if img.inUse() {
		img.ctx.log.warnf("image %q destroyed while %d transaction(s) still reference it", img.label, img.count())
	}
	img.viewMu.Lock()
	for _, v := range img.viewCache {
		v.Release()
	}
	img.viewMu.Unlock()
	img.ctx.allocator.Destroy(img.ctx.device, img.alloc)
}

// DepthImage is as Image but format is a depth-stencil format; usage is
// drawn from the narrower {sampled, attachment, subpassData, tileMemory}
// subset and the aspect mask is derived from the format.
type DepthImage struct {
	ctx       *Context
	label     string
	width     uint32
	height    uint32
	depth     uint32
	format    vk.Format
	usage     ImageUsage
	alloc     Allocation
	state     syncState
	viewCache map[viewKey]*imageViewHandle
	viewMu    sync.Mutex
	refTracker
}

// depthAspectMask derives the aspect mask from a depth-stencil format.
func depthAspectMask(format vk.Format) vk.ImageAspectFlags {
	switch format {
	case vk.FormatD32SfloatS8Uint, vk.FormatD24UnormS8Uint, vk.FormatD16UnormS8Uint:
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit | vk.ImageAspectStencilBit)
	default:
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
}

const depthImageAllowedUsage = ImageUsageSampled | ImageUsageAttachment | ImageUsageSubpassData | ImageUsageTileMemory

func newDepthImage(ctx *Context, label string, width, height, depth uint32, format vk.Format, usage ImageUsage) (*DepthImage, error) {
	if usage&^depthImageAllowedUsage != 0 {
		return nil, configErr(label, "depth image usage outside {sampled, attachment, subpassData, tileMemory}")
	}
	extentDepth := depth
	if extentDepth == 0 {
		extentDepth = 1
	}
	var flags vk.ImageUsageFlagBits
	if usage&ImageUsageSampled != 0 {
		flags |= vk.ImageUsageSampledBit
	}
	if usage&ImageUsageAttachment != 0 {
		flags |= vk.ImageUsageDepthStencilAttachmentBit
	}
	if usage&ImageUsageSubpassData != 0 {
		flags |= vk.ImageUsageInputAttachmentBit
	}
	if usage&ImageUsageTileMemory != 0 {
		flags |= vk.ImageUsageTransientAttachmentBit
	}
	info := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     imageDimensionality(width, height, depth),
		Format:        format,
		Extent:        vk.Extent3D{Width: width, Height: height, Depth: extentDepth},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(flags),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	alloc, err := ctx.allocator.CreateImage(ctx.device, info, allocationHintFor(HostAccessNone), label)
	if err != nil {
		return nil, err
	}
	d := &DepthImage{
		ctx: ctx, label: label, width: width, height: height, depth: depth,
		format: format, usage: usage, alloc: alloc,
		viewCache: make(map[viewKey]*imageViewHandle),
	}
	d.state.set(vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), 0, vk.ImageLayoutUndefined)
	return d, nil
}

func (d *DepthImage) Label() string     { return d.label }
func (d *DepthImage) Format() vk.Format { return d.format }

func (d *DepthImage) View(region Region, sampler SamplerKind) DepthImageView {
	return DepthImageView{DepthImage: d, Region: region, Sampler: sampler}
}

func (d *DepthImage) FullView() DepthImageView {
	return DepthImageView{DepthImage: d, Region: Region{MipLevels: 1, ArrayLayers: 1}, Sampler: SamplerLinearNone}
}

func (d *DepthImage) Destroy() {
	if d.inUse() {
		d.ctx.log.warnf("depth image %q destroyed while %d transaction(s) still reference it", d.label, d.count())
	}
	d.viewMu.Lock()
	for _, v := range d.viewCache {
		v.Release()
	}
	d.viewMu.Unlock()
	d.ctx.allocator.Destroy(d.ctx.device, d.alloc)
}
