package vkhal

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// invocationKind tags the variant an Invocation node carries. Leaves
// are transfers, compute dispatches, draws, baked replays and presents;
// interior nodes are render passes and composites.
type invocationKind int

const (
	invTransferBufferToBuffer invocationKind = iota
	invTransferBufferToImage
	invTransferImageToBuffer
	invTransferImageToImage
	invCompute
	invGraphics
	invRenderPass
	invComposite
	invPresent
	invBaked
)

// IndexType selects the width of the indices a draw reads.
type IndexType int

const (
	IndexU16 IndexType = iota
	IndexU32
)

func (t IndexType) vk() vk.IndexType {
	if t == IndexU16 {
		return vk.IndexTypeUint16
	}
	return vk.IndexTypeUint32
}

// Binding pairs a descriptor slot's ResourceType with the view backing
// it; exactly one of Buffer/Image/Depth is set, matching ResourceType.
type Binding struct {
	Type   ResourceType
	Buffer BufferView
	Image  ImageView
	Depth  DepthImageView
}

func bufferUsageForResourceType(rt ResourceType) BufferUsage {
	if rt == ResourceStorageBuffer {
		return BufferUsageStorage
	}
	return BufferUsageUniform
}

func imageUsageForResourceType(rt ResourceType) ImageUsage {
	if rt == ResourceStorageImage {
		return ImageUsageStorage
	}
	return ImageUsageSampled
}

// Invocation is one node of the composition tree an application builds
// and hands to a Recorder. Nodes are immutable value-holders; building
// one does not touch the device — recording does. Construction
// validates shape eagerly (attachment arity, child kinds, binding
// counts) so a malformed tree fails before anything is submitted.
type Invocation struct {
	kind  invocationKind
	label string
	class SubmitClass
	timed bool

	// transfer
	srcBuffer, dstBuffer *Buffer
	srcImage, dstImage   *Image
	copyOffset           uint64
	copySize             uint64
	copyRegion           Region

	// compute
	computeTask     *ComputeTask
	computeBindings []Binding
	groupsX         uint32
	groupsY         uint32
	groupsZ         uint32

	// graphics draw (valid only inside a RenderPass's children)
	graphicsTask     *GraphicsTask
	graphicsBindings []Binding
	vertexBuffers    []BufferView
	indexBuffer      *BufferView
	indexType        IndexType
	vertexCount      uint32
	instanceCount    uint32

	// render pass interior node
	renderPass       *RenderPass
	colorAttachments []*Image
	colorViews       []ImageView
	depthAttachment  *DepthImage
	depthView        *DepthImageView
	draws            []*Invocation

	// composite interior node
	children []*Invocation

	// present leaf
	swapchain *Swapchain

	// baked replay leaf
	baked *BakedInvocation
}

// NewTransferBufferToBuffer copies [offset, offset+size) of src into dst
// at the same offset.
func NewTransferBufferToBuffer(label string, src, dst *Buffer, offset, size uint64) *Invocation {
	return &Invocation{kind: invTransferBufferToBuffer, label: label, class: SubmitTransfer, srcBuffer: src, dstBuffer: dst, copyOffset: offset, copySize: size}
}

// NewTransferBufferToImage copies a linear buffer range into an image
// region (e.g. uploading a staged texture). Depth images are not
// transferable; the API only admits color Images here.
func NewTransferBufferToImage(label string, src *Buffer, offset uint64, dst *Image, region Region) *Invocation {
	return &Invocation{kind: invTransferBufferToImage, label: label, class: SubmitTransfer, srcBuffer: src, dstImage: dst, copyOffset: offset, copyRegion: region}
}

// NewTransferImageToBuffer copies an image region into a linear buffer
// range (e.g. reading back a render target).
func NewTransferImageToBuffer(label string, src *Image, region Region, dst *Buffer, offset uint64) *Invocation {
	return &Invocation{kind: invTransferImageToBuffer, label: label, class: SubmitTransfer, srcImage: src, dstBuffer: dst, copyOffset: offset, copyRegion: region}
}

// NewTransferImageToImage copies one image's region into another.
func NewTransferImageToImage(label string, src, dst *Image, region Region) *Invocation {
	return &Invocation{kind: invTransferImageToImage, label: label, class: SubmitTransfer, srcImage: src, dstImage: dst, copyRegion: region}
}

// validateBindings checks a binding list against the resource-type
// sequence a task was compiled with: same count, same kind per slot.
func validateBindings(label string, bindings []Binding, want []ResourceType) error {
	if len(bindings) != len(want) {
		return configErr(label, "binding count does not match the task's resource types")
	}
	for i, b := range bindings {
		if b.Type != want[i] {
			return configErr(label, fmt.Sprintf("binding kind mismatch at slot %d", i))
		}
	}
	return nil
}

// NewCompute dispatches task over (groupsX, groupsY, groupsZ) workgroups
// with bindings bound to its descriptor set, in declaration order.
func NewCompute(label string, task *ComputeTask, bindings []Binding, groupsX, groupsY, groupsZ uint32) (*Invocation, error) {
	if err := validateBindings(label, bindings, task.resourceTypes); err != nil {
		return nil, err
	}
	return &Invocation{kind: invCompute, label: label, class: SubmitCompute, computeTask: task, computeBindings: bindings, groupsX: groupsX, groupsY: groupsY, groupsZ: groupsZ}, nil
}

// GraphicsDrawDesc collects a single draw's inputs. IndexBuffer nil
// means a non-indexed draw of Count vertices; otherwise Count is the
// index count read at IndexType width.
type GraphicsDrawDesc struct {
	Bindings      []Binding
	VertexBuffers []BufferView
	IndexBuffer   *BufferView
	IndexType     IndexType
	Count         uint32
	InstanceCount uint32
}

// NewGraphicsDraw is a leaf draw call; it is only valid as one of a
// RenderPass invocation's draws.
func NewGraphicsDraw(label string, task *GraphicsTask, desc GraphicsDrawDesc) (*Invocation, error) {
	if err := validateBindings(label, desc.Bindings, task.resourceTypes); err != nil {
		return nil, err
	}
	return &Invocation{
		kind: invGraphics, label: label, class: SubmitGraphics, graphicsTask: task, graphicsBindings: desc.Bindings,
		vertexBuffers: desc.VertexBuffers, indexBuffer: desc.IndexBuffer, indexType: desc.IndexType,
		vertexCount: desc.Count, instanceCount: desc.InstanceCount,
	}, nil
}

// NewRenderPassInvocation binds attachments to rp and sequences draws
// inside it. The attachment views must match rp's declared attachment
// list index-for-index: as many color views as rp has color
// attachments, and a depth view exactly when rp declares a depth
// attachment. Children must all be graphics draws.
func NewRenderPassInvocation(label string, rp *RenderPass, colorAttachments []*Image, colorViews []ImageView, depthAttachment *DepthImage, depthView *DepthImageView, draws []*Invocation) (*Invocation, error) {
	wantColor, wantDepth := 0, false
	for _, a := range rp.attachments {
		if a.Type == AttachmentDepth {
			wantDepth = true
		} else {
			wantColor++
		}
	}
	if len(colorViews) != wantColor || len(colorAttachments) != wantColor {
		return nil, configErr(label, "color attachment count does not match the render pass")
	}
	if wantDepth != (depthView != nil) || wantDepth != (depthAttachment != nil) {
		return nil, configErr(label, "depth attachment presence does not match the render pass")
	}
	for _, d := range draws {
		if d.kind != invGraphics {
			return nil, configErr(label, "render pass children must be graphics draws")
		}
	}
	return &Invocation{
		kind: invRenderPass, label: label, class: SubmitGraphics, renderPass: rp,
		colorAttachments: colorAttachments, colorViews: colorViews,
		depthAttachment: depthAttachment, depthView: depthView, draws: draws,
	}, nil
}

// NewComposite groups children under one node, recorded in order.
// Graphics draws cannot appear directly — they only make sense inside
// a render pass. The composite's own class is inferred from its first
// child with a concrete class; the recorder does not route by it, since
// every leaf is recorded under its own class.
func NewComposite(label string, children []*Invocation) (*Invocation, error) {
	class := SubmitAny
	for _, c := range children {
		if c.kind == invGraphics {
			return nil, configErr(label, "graphics draws must be inside a render pass invocation")
		}
		if class == SubmitAny && c.class != SubmitAny {
			class = c.class
		}
	}
	return &Invocation{kind: invComposite, label: label, class: class, children: children}, nil
}

// NewPresent presents the swapchain's currently-acquired image.
func NewPresent(label string, sc *Swapchain) *Invocation {
	return &Invocation{kind: invPresent, label: label, class: SubmitPresent, swapchain: sc}
}

// WithTiming marks the invocation for GPU timestamp capture (start/end
// query pair), surfaced later via Transaction.GetTimeUs.
func (inv *Invocation) WithTiming() *Invocation {
	inv.timed = true
	return inv
}

// retainResources walks the tree, retaining every Buffer/Image/
// DepthImage it touches so Destroy on a still-referenced resource can
// warn instead of silently corrupting an in-flight transaction.
func (inv *Invocation) retainResources() {
	switch inv.kind {
	case invTransferBufferToBuffer:
		inv.srcBuffer.retain()
		inv.dstBuffer.retain()
	case invTransferBufferToImage:
		inv.srcBuffer.retain()
		inv.dstImage.retain()
	case invTransferImageToBuffer:
		inv.srcImage.retain()
		inv.dstBuffer.retain()
	case invTransferImageToImage:
		inv.srcImage.retain()
		inv.dstImage.retain()
	case invCompute:
		for _, b := range inv.computeBindings {
			retainBinding(b)
		}
	case invGraphics:
		for _, b := range inv.graphicsBindings {
			retainBinding(b)
		}
		for _, v := range inv.vertexBuffers {
			v.Buffer.retain()
		}
		if inv.indexBuffer != nil {
			inv.indexBuffer.Buffer.retain()
		}
	case invRenderPass:
		for _, c := range inv.colorAttachments {
			c.retain()
		}
		if inv.depthAttachment != nil {
			inv.depthAttachment.retain()
		}
		for _, d := range inv.draws {
			d.retainResources()
		}
	case invComposite:
		for _, c := range inv.children {
			c.retainResources()
		}
	case invBaked:
		inv.baked.source.retainResources()
	}
}

func (inv *Invocation) releaseResources() {
	switch inv.kind {
	case invTransferBufferToBuffer:
		inv.srcBuffer.release()
		inv.dstBuffer.release()
	case invTransferBufferToImage:
		inv.srcBuffer.release()
		inv.dstImage.release()
	case invTransferImageToBuffer:
		inv.srcImage.release()
		inv.dstBuffer.release()
	case invTransferImageToImage:
		inv.srcImage.release()
		inv.dstImage.release()
	case invCompute:
		for _, b := range inv.computeBindings {
			releaseBinding(b)
		}
	case invGraphics:
		for _, b := range inv.graphicsBindings {
			releaseBinding(b)
		}
		for _, v := range inv.vertexBuffers {
			v.Buffer.release()
		}
		if inv.indexBuffer != nil {
			inv.indexBuffer.Buffer.release()
		}
	case invRenderPass:
		for _, c := range inv.colorAttachments {
			c.release()
		}
		if inv.depthAttachment != nil {
			inv.depthAttachment.release()
		}
		for _, d := range inv.draws {
			d.releaseResources()
		}
	case invComposite:
		for _, c := range inv.children {
			c.releaseResources()
		}
	case invBaked:
		inv.baked.source.releaseResources()
	}
}

// isDepthView reports whether a sampled-image binding borrows a
// DepthImage rather than a color Image (shadow-map sampling).
func (b Binding) isDepthView() bool {
	return b.Type == ResourceSampledImage && b.Depth.DepthImage != nil
}

func retainBinding(b Binding) {
	switch b.Type {
	case ResourceUniformBuffer, ResourceStorageBuffer:
		b.Buffer.Buffer.retain()
	case ResourceSampledImage, ResourceStorageImage:
		if b.isDepthView() {
			b.Depth.DepthImage.retain()
		} else {
			b.Image.Image.retain()
		}
	}
}

func releaseBinding(b Binding) {
	switch b.Type {
	case ResourceUniformBuffer, ResourceStorageBuffer:
		b.Buffer.Buffer.release()
	case ResourceSampledImage, ResourceStorageImage:
		if b.isDepthView() {
			b.Depth.DepthImage.release()
		} else {
			b.Image.Image.release()
		}
	}
}

// writeDescriptorSet updates set's bindings (in declaration order) to
// point at the views in bindings.
func writeDescriptorSet(device vk.Device, set vk.DescriptorSet, bindings []Binding, samplerFor func(SamplerKind) (vk.Sampler, error)) error {
	writes := make([]vk.WriteDescriptorSet, 0, len(bindings))
	bufferInfos := make([]vk.DescriptorBufferInfo, len(bindings))
	imageInfos := make([]vk.DescriptorImageInfo, len(bindings))
	for i, b := range bindings {
		switch b.Type {
		case ResourceUniformBuffer, ResourceStorageBuffer:
			bufferInfos[i] = vk.DescriptorBufferInfo{Buffer: b.Buffer.Buffer.alloc.Buffer, Offset: vk.DeviceSize(b.Buffer.Offset), Range: vk.DeviceSize(b.Buffer.Size)}
			writes = append(writes, vk.WriteDescriptorSet{
				SType: vk.StructureTypeWriteDescriptorSet, DstSet: set, DstBinding: uint32(i), DescriptorCount: 1,
				DescriptorType: descriptorTypeFor(b.Type), PBufferInfo: bufferInfos[i : i+1],
			})
		case ResourceSampledImage, ResourceStorageImage:
			var view vk.ImageView
			var samplerKind SamplerKind
			var err error
			if b.isDepthView() {
				view, err = b.Depth.Raw()
				samplerKind = b.Depth.Sampler
			} else {
				view, err = b.Image.Raw()
				samplerKind = b.Image.Sampler
			}
			if err != nil {
				return err
			}
			sampler, err := samplerFor(samplerKind)
			if err != nil {
				return err
			}
			layout := vk.ImageLayoutShaderReadOnlyOptimal
			if b.Type == ResourceStorageImage {
				layout = vk.ImageLayoutGeneral
			}
			imageInfos[i] = vk.DescriptorImageInfo{Sampler: sampler, ImageView: view, ImageLayout: layout}
			writes = append(writes, vk.WriteDescriptorSet{
				SType: vk.StructureTypeWriteDescriptorSet, DstSet: set, DstBinding: uint32(i), DescriptorCount: 1,
				DescriptorType: descriptorTypeFor(b.Type), PImageInfo: imageInfos[i : i+1],
			})
		}
	}
	vk.UpdateDescriptorSets(device, uint32(len(writes)), writes, 0, nil)
	return nil
}
