package vkhal

import (
	"sync"

	vk "github.com/vulkan-go/vulkan"
)

// AttachmentDesc declares one RenderPass attachment: its kind (color or
// depth), format, and the clear/load/store/fetch access pattern the
// pass uses it with.
type AttachmentDesc struct {
	Type   AttachmentType
	Format vk.Format
	Access AttachmentAccess
}

func loadOpFor(access AttachmentAccess) vk.AttachmentLoadOp {
	switch {
	case access&AttachmentClear != 0:
		return vk.AttachmentLoadOpClear
	case access&AttachmentLoad != 0:
		return vk.AttachmentLoadOpLoad
	default:
		return vk.AttachmentLoadOpDontCare
	}
}

func storeOpFor(access AttachmentAccess) vk.AttachmentStoreOp {
	if access&AttachmentStore != 0 {
		return vk.AttachmentStoreOpStore
	}
	return vk.AttachmentStoreOpDontCare
}

// clearValueFor supplies the default clear value for an attachment that
// declares AttachmentClear: zero color for color attachments, 1.0/0
// depth-stencil for depth attachments.
func clearValueFor(a AttachmentDesc) vk.ClearValue {
	if a.Type == AttachmentDepth {
		return vk.NewClearDepthStencil(1.0, 0)
	}
	return vk.NewClearValue([]float32{0, 0, 0, 0})
}

// RenderPass owns a vk.RenderPass built from an ordered attachment list
// and lazily caches one vk.Framebuffer per distinct set of bound image
// views, pool-backed so re-binding the same views (the common swapchain
// case, one framebuffer per image index) doesn't rebuild anything.
type RenderPass struct {
	ctx             *Context
	label           string
	attachments     []AttachmentDesc
	handle          *renderPassHandle
	width, height   uint32
	clearValues     []vk.ClearValue
	framebufferPool *pool[string, *framebufferHandle]
	framebufferKeys map[string]bool
	fbKeysMu        sync.Mutex
}

// NewRenderPass builds a single-subpass render pass over attachments,
// in the order given; at most one AttachmentDepth entry is permitted.
func NewRenderPass(ctx *Context, label string, attachments []AttachmentDesc, width, height uint32) (*RenderPass, error) {
	depthCount := 0
	for _, a := range attachments {
		if a.Type == AttachmentDepth {
			depthCount++
		}
	}
	if depthCount > 1 {
		return nil, configErr(label, "render pass declares more than one depth attachment")
	}

	descs := make([]vk.AttachmentDescription, len(attachments))
	var colorRefs []vk.AttachmentReference
	var depthRef *vk.AttachmentReference
	for i, a := range attachments {
		finalLayout := vk.ImageLayoutShaderReadOnlyOptimal
		if a.Type == AttachmentDepth {
			finalLayout = vk.ImageLayoutDepthStencilAttachmentOptimal
		} else if a.Access&AttachmentFetch == 0 {
			finalLayout = vk.ImageLayoutColorAttachmentOptimal
		}
		descs[i] = vk.AttachmentDescription{
			Format:         a.Format,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         loadOpFor(a.Access),
			StoreOp:        storeOpFor(a.Access),
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    finalLayout,
		}
		if a.Type == AttachmentDepth {
			ref := vk.AttachmentReference{Attachment: uint32(i), Layout: vk.ImageLayoutDepthStencilAttachmentOptimal}
			depthRef = &ref
		} else {
			colorRefs = append(colorRefs, vk.AttachmentReference{Attachment: uint32(i), Layout: vk.ImageLayoutColorAttachmentOptimal})
		}
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    uint32(len(colorRefs)),
		PColorAttachments:       colorRefs,
		PDepthStencilAttachment: depthRef,
	}

	dependencies := []vk.SubpassDependency{
		{
			SrcSubpass:    vk.SubpassExternal,
			DstSubpass:    0,
			SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
			DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
			SrcAccessMask: 0,
			DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
		},
	}

	var raw vk.RenderPass
	ret := vk.CreateRenderPass(ctx.device, &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(descs)),
		PAttachments:    descs,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}, nil, &raw)
	if err := checkResult(label, ret); err != nil {
		return nil, err
	}

	clearValues := make([]vk.ClearValue, len(attachments))
	for i, a := range attachments {
		clearValues[i] = clearValueFor(a)
	}

	return &RenderPass{
		ctx: ctx, label: label, attachments: attachments, width: width, height: height,
		clearValues:     clearValues,
		handle:          newRenderPassHandle(ctx.device, label, raw),
		framebufferPool: newPool[string, *framebufferHandle](),
		framebufferKeys: make(map[string]bool),
	}, nil
}

func (rp *RenderPass) raw() vk.RenderPass { return rp.handle.Value() }

// ClearValues returns the ordered per-attachment clear values
// (vk.CmdBeginRenderPass needs one slot per attachment regardless of
// which declare AttachmentClear).
func (rp *RenderPass) ClearValues() []vk.ClearValue {
	return rp.clearValues
}

// SetClearColor overrides attachment index's clear color for subsequent
// recordings.
func (rp *RenderPass) SetClearColor(index int, rgba [4]float32) {
	rp.clearValues[index] = vk.NewClearValue(rgba[:])
}

// framebufferFor resolves (building and caching on first use) the
// framebuffer for a specific tuple of bound image views, keyed by the
// views' identity so re-invoking against the same swapchain image
// index reuses the same vk.Framebuffer instead of rebuilding per frame.
func (rp *RenderPass) framebufferFor(key string, views []vk.ImageView) (vk.Framebuffer, error) {
	if item, ok := rp.framebufferPool.Acquire(key); ok {
		fb := item.Value().Value()
		item.Release()
		return fb, nil
	}
	var raw vk.Framebuffer
	ret := vk.CreateFramebuffer(rp.ctx.device, &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp.handle.Value(),
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           rp.width,
		Height:          rp.height,
		Layers:          1,
	}, nil, &raw)
	if err := checkResult(rp.label, ret); err != nil {
		return vk.NullFramebuffer, err
	}
	handle := newFramebufferHandle(rp.ctx.device, rp.label, raw)
	rp.fbKeysMu.Lock()
	rp.framebufferKeys[key] = true
	rp.fbKeysMu.Unlock()
	rp.framebufferPool.Create(key, handle).Release()
	return raw, nil
}

// Destroy releases every cached framebuffer and the render pass itself.
func (rp *RenderPass) Destroy() {
	rp.fbKeysMu.Lock()
	keys := make([]string, 0, len(rp.framebufferKeys))
	for k := range rp.framebufferKeys {
		keys = append(keys, k)
	}
	rp.fbKeysMu.Unlock()
	for _, key := range keys {
		if item, ok := rp.framebufferPool.Acquire(key); ok {
			item.Value().Release()
		}
	}
	rp.handle.Release()
}
