package vkhal

import (
	vk "github.com/vulkan-go/vulkan"
)

// preferredDepthFormats is consulted in order when no explicit depth
// format is requested.
var preferredDepthFormats = []vk.Format{
	vk.FormatD32SfloatS8Uint,
	vk.FormatD32Sfloat,
	vk.FormatD24UnormS8Uint,
	vk.FormatD16UnormS8Uint,
	vk.FormatD16Unorm,
}

// SwapchainConfig names the presentation surface and the formats a
// Swapchain is allowed to negotiate against it. The first entry of
// AllowedFormats the surface supports wins; an empty list accepts
// whatever the surface reports first. ImageCount of 0 defaults to the
// surface's minimum plus one.
type SwapchainConfig struct {
	Label          string
	Surface        vk.Surface
	Width, Height  uint32
	ImageCount     uint32
	AllowedFormats []vk.Format
	ColorSpace     vk.ColorSpace
	VSync          bool
}

// Swapchain owns the presentable image chain and wraps each image as a
// color Image the rest of the HAL can treat like any other attachment,
// plus the per-image acquire/present synchronization primitives. It
// rebuilds itself on suboptimal/out-of-date results rather than asking
// the caller to.
type Swapchain struct {
	ctx       *Context
	label     string
	surface   vk.Surface
	format    vk.SurfaceFormat
	minImages uint32
	vsync     bool

	handle      *swapchainHandle
	extent      vk.Extent2D
	images      []*Image // wraps each raw vk.Image without owning its memory
	imageCount  uint32
	currentIdx  uint32

	acquireSemaphores []*semaphoreHandle
	presentSemaphores []*semaphoreHandle
	frameIdx          int
}

func chooseSurfaceFormat(physical vk.PhysicalDevice, surface vk.Surface, allowed []vk.Format, colorSpace vk.ColorSpace) (vk.SurfaceFormat, error) {
	var count uint32
	vk.GetPhysicalDeviceSurfaceFormats(physical, surface, &count, nil)
	if count == 0 {
		return vk.SurfaceFormat{}, &Error{Kind: KindNoCompatibleSurfaceFormat, Msg: "surface exposes no formats"}
	}
	formats := make([]vk.SurfaceFormat, count)
	vk.GetPhysicalDeviceSurfaceFormats(physical, surface, &count, formats)
	for i := range formats {
		formats[i].Deref()
	}
	if len(allowed) == 0 {
		f := formats[0]
		if f.Format == vk.FormatUndefined {
			f.Format = vk.FormatB8g8r8a8Srgb
		}
		return f, nil
	}
	for _, want := range allowed {
		for _, f := range formats {
			if f.Format == want && f.ColorSpace == colorSpace {
				return f, nil
			}
		}
	}
	for _, want := range allowed {
		for _, f := range formats {
			if f.Format == want {
				return f, nil
			}
		}
	}
	return vk.SurfaceFormat{}, &Error{Kind: KindNoCompatibleSurfaceFormat, Msg: "no allowed format supported by surface"}
}

// NewSwapchain builds a Swapchain from cfg, negotiating format and
// extent against the surface's reported capabilities.
func NewSwapchain(ctx *Context, cfg SwapchainConfig) (*Swapchain, error) {
	format, err := chooseSurfaceFormat(ctx.physicalDevice, cfg.Surface, cfg.AllowedFormats, cfg.ColorSpace)
	if err != nil {
		return nil, err
	}
	sc := &Swapchain{ctx: ctx, label: cfg.Label, surface: cfg.Surface, format: format, minImages: cfg.ImageCount, vsync: cfg.VSync}
	if err := sc.rebuild(cfg.Width, cfg.Height, vk.NullSwapchain); err != nil {
		return nil, err
	}
	return sc, nil
}

func (sc *Swapchain) rebuild(width, height uint32, old vk.Swapchain) error {
	var caps vk.SurfaceCapabilities
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(sc.ctx.physicalDevice, sc.surface, &caps)
	if err := checkResult("swapchain", ret); err != nil {
		return err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()

	extent := vk.Extent2D{Width: width, Height: height}
	if caps.CurrentExtent.Width != ^uint32(0) {
		extent = caps.CurrentExtent
	}

	desired := sc.minImages
	if desired == 0 {
		desired = caps.MinImageCount + 1
	}
	if desired < caps.MinImageCount {
		desired = caps.MinImageCount
	}
	if caps.MaxImageCount > 0 && desired > caps.MaxImageCount {
		desired = caps.MaxImageCount
	}

	presentMode := vk.PresentModeFifo
	if !sc.vsync {
		presentMode = vk.PresentModeMailbox
	}

	var raw vk.Swapchain
	ret = vk.CreateSwapchain(sc.ctx.device, &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          sc.surface,
		MinImageCount:    desired,
		ImageFormat:      sc.format.Format,
		ImageColorSpace:  sc.format.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     old,
	}, nil, &raw)
	if err := checkResult("swapchain", ret); err != nil {
		return err
	}
	if old != vk.NullSwapchain {
		vk.DestroySwapchain(sc.ctx.device, old, nil)
	}

	var imageCount uint32
	vk.GetSwapchainImages(sc.ctx.device, raw, &imageCount, nil)
	rawImages := make([]vk.Image, imageCount)
	vk.GetSwapchainImages(sc.ctx.device, raw, &imageCount, rawImages)

	images := make([]*Image, imageCount)
	for i, ri := range rawImages {
		img := &Image{
			ctx: sc.ctx, label: sc.label + ":image", width: extent.Width, height: extent.Height,
			format: sc.format.Format, colorSpace: sc.format.ColorSpace, usage: ImageUsagePresent | ImageUsageAttachment,
			alloc:     Allocation{Image: ri},
			viewCache: make(map[viewKey]*imageViewHandle),
		}
		img.state.set(vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), 0, vk.ImageLayoutUndefined)
		images[i] = img
	}

	for _, old := range sc.acquireSemaphores {
		old.Release()
	}
	for _, old := range sc.presentSemaphores {
		old.Release()
	}

	acquireSems := make([]*semaphoreHandle, imageCount)
	presentSems := make([]*semaphoreHandle, imageCount)
	for i := range acquireSems {
		var s1, s2 vk.Semaphore
		vk.CreateSemaphore(sc.ctx.device, &vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}, nil, &s1)
		vk.CreateSemaphore(sc.ctx.device, &vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}, nil, &s2)
		acquireSems[i] = newSemaphoreHandle(sc.ctx.device, "acquire", s1)
		presentSems[i] = newSemaphoreHandle(sc.ctx.device, "present", s2)
	}

	sc.handle = newSwapchainHandle(sc.ctx.device, "swapchain", raw)
	sc.extent = extent
	sc.images = images
	sc.imageCount = imageCount
	sc.acquireSemaphores = acquireSems
	sc.presentSemaphores = presentSems
	return nil
}

// AcquireNext blocks until the next presentable image is available,
// returning its index and whether the swapchain had to be rebuilt
// (suboptimal/out-of-date) to get there.
func (sc *Swapchain) AcquireNext() (uint32, bool, error) {
	sem := sc.acquireSemaphores[sc.frameIdx%len(sc.acquireSemaphores)].Value()
	var idx uint32
	ret := vk.AcquireNextImage(sc.ctx.device, sc.handle.Value(), vk.MaxUint64, sem, vk.NullFence, &idx)
	if ret == vk.ErrorOutOfDate || ret == vk.Suboptimal {
		if err := sc.rebuild(sc.extent.Width, sc.extent.Height, sc.handle.Value()); err != nil {
			return 0, false, err
		}
		sem = sc.acquireSemaphores[sc.frameIdx%len(sc.acquireSemaphores)].Value()
		ret = vk.AcquireNextImage(sc.ctx.device, sc.handle.Value(), vk.MaxUint64, sem, vk.NullFence, &idx)
		if err := checkResult("swapchain", ret); err != nil {
			return 0, false, err
		}
		sc.currentIdx = idx
		return idx, true, nil
	}
	if err := checkResult("swapchain", ret); err != nil {
		return 0, false, err
	}
	sc.currentIdx = idx
	return idx, false, nil
}

// Image returns the color Image wrapper for swapchain image idx.
func (sc *Swapchain) Image(idx uint32) *Image { return sc.images[idx] }

// Width reports the current chain extent; it may change across a
// rebuild.
func (sc *Swapchain) Width() uint32 { return sc.extent.Width }

// Height reports the current chain extent.
func (sc *Swapchain) Height() uint32 { return sc.extent.Height }

// Format reports the negotiated surface format.
func (sc *Swapchain) Format() vk.Format { return sc.format.Format }

// ImageCount reports how many presentable images the chain holds.
func (sc *Swapchain) ImageCount() uint32 { return sc.imageCount }

func (sc *Swapchain) acquireSemaphore() vk.Semaphore {
	return sc.acquireSemaphores[sc.frameIdx%len(sc.acquireSemaphores)].Value()
}

func (sc *Swapchain) presentSemaphore() vk.Semaphore {
	return sc.presentSemaphores[sc.frameIdx%len(sc.presentSemaphores)].Value()
}

// present submits a present request for the currently-acquired image on
// queue, advancing the frame index regardless of outcome so the next
// AcquireNext rotates semaphores correctly.
func (sc *Swapchain) present(queue vk.Queue) error {
	defer func() { sc.frameIdx++ }()
	idx := sc.currentIdx
	chain := sc.handle.Value()
	sem := sc.presentSemaphore()
	ret := vk.QueuePresent(queue, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{sem},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{chain},
		PImageIndices:      []uint32{idx},
	})
	if ret == vk.ErrorOutOfDate || ret == vk.Suboptimal {
		return sc.rebuild(sc.extent.Width, sc.extent.Height, chain)
	}
	return checkResult("swapchain", ret)
}

// Destroy releases every acquire/present semaphore and the swapchain
// itself. The wrapped per-image Image objects own no memory (the
// swapchain does), so they need no separate Destroy.
func (sc *Swapchain) Destroy() {
	for _, s := range sc.acquireSemaphores {
		s.Release()
	}
	for _, s := range sc.presentSemaphores {
		s.Release()
	}
	for _, img := range sc.images {
		img.viewMu.Lock()
		for _, v := range img.viewCache {
			v.Release()
		}
		img.viewMu.Unlock()
	}
	sc.handle.Release()
}
