package vkhal

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// Recorder turns an Invocation tree into submitted command buffers. It
// holds no state of its own beyond the Context; all per-submission
// state lives in the Transaction Record returns.
type Recorder struct {
	ctx *Context
}

func NewRecorder(ctx *Context) *Recorder {
	return &Recorder{ctx: ctx}
}

// recordingState accumulates the per-class command buffers a single
// Record pass fills in, plus the descriptor sets leased along the way
// (released once the Transaction is waited).
type recordingState struct {
	ctx          *Context
	cmdPools     map[SubmitClass]*poolItem[SubmitClass, *commandPoolHandle]
	cmdBuffers   map[SubmitClass]vk.CommandBuffer
	order        []SubmitClass // classes in first-appearance order, for deterministic submit/chain order
	leasedSets   []*poolItem[string, vk.DescriptorSet]
	presentAfter *Swapchain
	queryPool    *poolItem[uint32, *queryPoolHandle]
	nextQuery    uint32
	timedStart   map[*Invocation]uint32
	timedEnd     map[*Invocation]uint32

	// bakeOnly pins recording to the single pre-seeded secondary
	// buffer: a command needing any other class is a caller error.
	bakeOnly bool
}

func (rs *recordingState) cmdFor(class SubmitClass) (vk.CommandBuffer, error) {
	if cmd, ok := rs.cmdBuffers[class]; ok {
		return cmd, nil
	}
	if rs.bakeOnly {
		return nil, configErr(class.String(), "baked recording cannot span submission classes")
	}
	item, err := rs.ctx.acquireCommandPool(class)
	if err != nil {
		return nil, err
	}
	rs.cmdPools[class] = item
	rs.order = append(rs.order, class)
	buffers := make([]vk.CommandBuffer, 1)
	ret := vk.AllocateCommandBuffers(rs.ctx.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        item.Value().Value(),
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, buffers)
	if err := checkResult(class.String(), ret); err != nil {
		return nil, err
	}
	cmd := buffers[0]
	ret = vk.BeginCommandBuffer(cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	if err := checkResult(class.String(), ret); err != nil {
		return nil, err
	}
	rs.cmdBuffers[class] = cmd
	return cmd, nil
}

func (rs *recordingState) timestamp(cmd vk.CommandBuffer, stage vk.PipelineStageFlagBits) (uint32, error) {
	if rs.bakeOnly {
		rs.ctx.log.warnf("timing request ignored inside a baked recording")
		return 0, nil
	}
	if rs.queryPool == nil {
		item, err := rs.ctx.acquireQueryPool(64)
		if err != nil {
			return 0, err
		}
		rs.queryPool = item
		vk.CmdResetQueryPool(cmd, item.Value().Value(), 0, 64)
	}
	idx := rs.nextQuery
	rs.nextQuery++
	vk.CmdWriteTimestamp(cmd, stage, rs.queryPool.Value().Value(), idx)
	return idx, nil
}

// Record walks root in pre-order, recording every transfer/compute/
// render-pass node into the command buffer for its SubmitClass and
// emitting barriers immediately before each resource use. It does not
// submit; call Submit on the returned Transaction, or use
// RecordAndSubmit.
func (r *Recorder) Record(label string, root *Invocation) (*Transaction, error) {
	root.retainResources()

	rs := &recordingState{
		ctx:        r.ctx,
		cmdPools:   make(map[SubmitClass]*poolItem[SubmitClass, *commandPoolHandle]),
		cmdBuffers: make(map[SubmitClass]vk.CommandBuffer),
		timedStart: make(map[*Invocation]uint32),
		timedEnd:   make(map[*Invocation]uint32),
	}

	if err := rs.recordNode(root); err != nil {
		root.releaseResources()
		return nil, err
	}

	for _, class := range rs.order {
		ret := vk.EndCommandBuffer(rs.cmdBuffers[class])
		if err := checkResult(class.String(), ret); err != nil {
			root.releaseResources()
			return nil, err
		}
	}

	return &Transaction{
		ctx: r.ctx, label: label, root: root, rs: rs, order: rs.order,
	}, nil
}

// recordNode is the recursive pre-order walk. Graphics leaves are only
// valid as children of a RenderPass node and are recorded from within
// recordRenderPass, never reached directly here.
func (rs *recordingState) recordNode(node *Invocation) error {
	switch node.kind {
	case invTransferBufferToBuffer:
		return rs.recordTransferBB(node)
	case invTransferBufferToImage:
		return rs.recordTransferBI(node)
	case invTransferImageToBuffer:
		return rs.recordTransferIB(node)
	case invTransferImageToImage:
		return rs.recordTransferII(node)
	case invCompute:
		return rs.recordCompute(node)
	case invRenderPass:
		return rs.recordRenderPass(node)
	case invComposite:
		for _, c := range node.children {
			if err := rs.recordNode(c); err != nil {
				return err
			}
		}
		return nil
	case invPresent:
		sc := node.swapchain
		cmd, err := rs.cmdFor(SubmitGraphics)
		if err != nil {
			return err
		}
		img := sc.images[sc.currentIdx]
		emitImageBarrier(cmd, &img.state, img.alloc.Image,
			imageTransitionFor(ImageUsagePresent, false),
			vk.ImageAspectFlags(vk.ImageAspectColorBit), vk.QueueFamilyIgnored, vk.QueueFamilyIgnored)
		rs.presentAfter = sc
		return nil
	case invBaked:
		return rs.recordBaked(node)
	default:
		return configErr(node.label, "invocation kind not directly recordable")
	}
}

func (rs *recordingState) recordTransferBB(node *Invocation) error {
	if node.copySize == 0 {
		rs.ctx.log.warnf("transfer %q: zero-sized copy ignored", node.label)
		return nil
	}
	cmd, err := rs.cmdFor(SubmitTransfer)
	if err != nil {
		return err
	}
	emitBufferBarrier(cmd, node.srcBuffer, bufferTransitionFor(BufferUsageTransferSrc), node.copyOffset, node.copySize)
	emitBufferBarrier(cmd, node.dstBuffer, bufferTransitionFor(BufferUsageTransferDst), node.copyOffset, node.copySize)
	vk.CmdCopyBuffer(cmd, node.srcBuffer.alloc.Buffer, node.dstBuffer.alloc.Buffer, 1, []vk.BufferCopy{
		{SrcOffset: vk.DeviceSize(node.copyOffset), DstOffset: vk.DeviceSize(node.copyOffset), Size: vk.DeviceSize(node.copySize)},
	})
	return nil
}

func (rs *recordingState) recordTransferBI(node *Invocation) error {
	cmd, err := rs.cmdFor(SubmitTransfer)
	if err != nil {
		return err
	}
	emitBufferBarrier(cmd, node.srcBuffer, bufferTransitionFor(BufferUsageTransferSrc), node.copyOffset, node.srcBuffer.Size()-node.copyOffset)
	emitImageBarrier(cmd, &node.dstImage.state, node.dstImage.alloc.Image, imageTransitionFor(ImageUsageTransferDst, false), vk.ImageAspectFlags(vk.ImageAspectColorBit), vk.QueueFamilyIgnored, vk.QueueFamilyIgnored)
	vk.CmdCopyBufferToImage(cmd, node.srcBuffer.alloc.Buffer, node.dstImage.alloc.Image, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{
		{
			BufferOffset:     vk.DeviceSize(node.copyOffset),
			ImageSubresource: vk.ImageSubresourceLayers{AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit), MipLevel: node.copyRegion.BaseMipLevel, BaseArrayLayer: node.copyRegion.BaseArrayLayer, LayerCount: maxu32(node.copyRegion.ArrayLayers, 1)},
			ImageExtent:      vk.Extent3D{Width: node.dstImage.width, Height: node.dstImage.height, Depth: 1},
		},
	})
	return nil
}

func (rs *recordingState) recordTransferIB(node *Invocation) error {
	cmd, err := rs.cmdFor(SubmitTransfer)
	if err != nil {
		return err
	}
	emitImageBarrier(cmd, &node.srcImage.state, node.srcImage.alloc.Image, imageTransitionFor(ImageUsageTransferSrc, false), vk.ImageAspectFlags(vk.ImageAspectColorBit), vk.QueueFamilyIgnored, vk.QueueFamilyIgnored)
	emitBufferBarrier(cmd, node.dstBuffer, bufferTransitionFor(BufferUsageTransferDst), node.copyOffset, node.dstBuffer.Size()-node.copyOffset)
	vk.CmdCopyImageToBuffer(cmd, node.srcImage.alloc.Image, vk.ImageLayoutTransferSrcOptimal, node.dstBuffer.alloc.Buffer, 1, []vk.BufferImageCopy{
		{
			BufferOffset:     vk.DeviceSize(node.copyOffset),
			ImageSubresource: vk.ImageSubresourceLayers{AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit), MipLevel: node.copyRegion.BaseMipLevel, BaseArrayLayer: node.copyRegion.BaseArrayLayer, LayerCount: maxu32(node.copyRegion.ArrayLayers, 1)},
			ImageExtent:      vk.Extent3D{Width: node.srcImage.width, Height: node.srcImage.height, Depth: 1},
		},
	})
	return nil
}

func (rs *recordingState) recordTransferII(node *Invocation) error {
	cmd, err := rs.cmdFor(SubmitTransfer)
	if err != nil {
		return err
	}
	emitImageBarrier(cmd, &node.srcImage.state, node.srcImage.alloc.Image, imageTransitionFor(ImageUsageTransferSrc, false), vk.ImageAspectFlags(vk.ImageAspectColorBit), vk.QueueFamilyIgnored, vk.QueueFamilyIgnored)
	emitImageBarrier(cmd, &node.dstImage.state, node.dstImage.alloc.Image, imageTransitionFor(ImageUsageTransferDst, false), vk.ImageAspectFlags(vk.ImageAspectColorBit), vk.QueueFamilyIgnored, vk.QueueFamilyIgnored)
	layers := vk.ImageSubresourceLayers{AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit), MipLevel: node.copyRegion.BaseMipLevel, BaseArrayLayer: node.copyRegion.BaseArrayLayer, LayerCount: maxu32(node.copyRegion.ArrayLayers, 1)}
	vk.CmdCopyImage(cmd, node.srcImage.alloc.Image, vk.ImageLayoutTransferSrcOptimal, node.dstImage.alloc.Image, vk.ImageLayoutTransferDstOptimal, 1, []vk.ImageCopy{
		{SrcSubresource: layers, DstSubresource: layers, Extent: vk.Extent3D{Width: node.dstImage.width, Height: node.dstImage.height, Depth: 1}},
	})
	return nil
}

// framebufferKey derives the cache identity for a framebuffer from the
// raw view handles it binds, so the same attachment set maps to the
// same framebuffer regardless of which invocation binds it.
func framebufferKey(views []vk.ImageView) string {
	var b strings.Builder
	for _, v := range views {
		fmt.Fprintf(&b, "%v|", v)
	}
	return b.String()
}

func maxu32(v, min uint32) uint32 {
	if v < min {
		return min
	}
	return v
}

func (rs *recordingState) bindAndWrite(task interface {
	descSig() string
	descLayout() vk.DescriptorSetLayout
}, bindings []Binding) (vk.DescriptorSet, error) {
	item, err := rs.ctx.acquireDescriptorSet(task.descSig(), bindingsToResourceTypes(bindings), task.descLayout())
	if err != nil {
		return vk.NullDescriptorSet, err
	}
	rs.leasedSets = append(rs.leasedSets, item)
	set := item.Value()
	if err := writeDescriptorSet(rs.ctx.device, set, bindings, rs.ctx.Sampler); err != nil {
		return vk.NullDescriptorSet, err
	}
	return set, nil
}

func bindingsToResourceTypes(bindings []Binding) []ResourceType {
	out := make([]ResourceType, len(bindings))
	for i, b := range bindings {
		out[i] = b.Type
	}
	return out
}

type computeTaskAdapter struct{ t *ComputeTask }

func (a computeTaskAdapter) descSig() string                      { return a.t.descSetSig }
func (a computeTaskAdapter) descLayout() vk.DescriptorSetLayout   { return a.t.descSetLayout }

type graphicsTaskAdapter struct{ t *GraphicsTask }

func (a graphicsTaskAdapter) descSig() string                    { return a.t.descSetSig }
func (a graphicsTaskAdapter) descLayout() vk.DescriptorSetLayout { return a.t.descSetLayout }

// emitBindingBarrier transitions one descriptor binding's resource to
// the state its ResourceType demands, routing depth-sampled views
// through the depth aspect.
func emitBindingBarrier(cmd vk.CommandBuffer, b Binding) {
	switch b.Type {
	case ResourceUniformBuffer, ResourceStorageBuffer:
		emitBufferBarrier(cmd, b.Buffer.Buffer, bufferTransitionFor(bufferUsageForResourceType(b.Type)), b.Buffer.Offset, b.Buffer.Size)
	case ResourceSampledImage, ResourceStorageImage:
		if b.isDepthView() {
			d := b.Depth.DepthImage
			emitImageBarrier(cmd, &d.state, d.alloc.Image, imageTransitionFor(ImageUsageSampled, true), depthAspectMask(d.format), vk.QueueFamilyIgnored, vk.QueueFamilyIgnored)
			return
		}
		img := b.Image.Image
		emitImageBarrier(cmd, &img.state, img.alloc.Image, imageTransitionFor(imageUsageForResourceType(b.Type), false), vk.ImageAspectFlags(vk.ImageAspectColorBit), vk.QueueFamilyIgnored, vk.QueueFamilyIgnored)
	}
}

// recordBaked replays a secondary command buffer. The barriers inside
// it were computed at bake time, so only the tracked dynamic state is
// advanced here; no fresh barriers are emitted.
func (rs *recordingState) recordBaked(node *Invocation) error {
	cmd, err := rs.cmdFor(node.class)
	if err != nil {
		return err
	}
	vk.CmdExecuteCommands(cmd, 1, []vk.CommandBuffer{node.baked.cmd})
	applyTrackedStates(node.baked.source)
	return nil
}

// applyTrackedStates advances each touched resource's dynamic state to
// the destination the baked barriers move it to.
func applyTrackedStates(inv *Invocation) {
	setBuffer := func(b *Buffer, usage BufferUsage) {
		t := bufferTransitionFor(usage)
		b.state.set(t.stage, t.access, vk.ImageLayoutUndefined)
	}
	setImage := func(state *syncState, usage ImageUsage, isDepth bool) {
		t := imageTransitionFor(usage, isDepth)
		state.set(t.stage, t.access, t.layout)
	}
	switch inv.kind {
	case invTransferBufferToBuffer:
		setBuffer(inv.srcBuffer, BufferUsageTransferSrc)
		setBuffer(inv.dstBuffer, BufferUsageTransferDst)
	case invTransferBufferToImage:
		setBuffer(inv.srcBuffer, BufferUsageTransferSrc)
		setImage(&inv.dstImage.state, ImageUsageTransferDst, false)
	case invTransferImageToBuffer:
		setImage(&inv.srcImage.state, ImageUsageTransferSrc, false)
		setBuffer(inv.dstBuffer, BufferUsageTransferDst)
	case invTransferImageToImage:
		setImage(&inv.srcImage.state, ImageUsageTransferSrc, false)
		setImage(&inv.dstImage.state, ImageUsageTransferDst, false)
	case invCompute:
		for _, b := range inv.computeBindings {
			switch b.Type {
			case ResourceUniformBuffer, ResourceStorageBuffer:
				setBuffer(b.Buffer.Buffer, bufferUsageForResourceType(b.Type))
			case ResourceSampledImage, ResourceStorageImage:
				if b.isDepthView() {
					setImage(&b.Depth.DepthImage.state, ImageUsageSampled, true)
				} else {
					setImage(&b.Image.Image.state, imageUsageForResourceType(b.Type), false)
				}
			}
		}
	case invComposite:
		for _, c := range inv.children {
			applyTrackedStates(c)
		}
	}
}

func (rs *recordingState) recordCompute(node *Invocation) error {
	cmd, err := rs.cmdFor(SubmitCompute)
	if err != nil {
		return err
	}
	for _, b := range node.computeBindings {
		emitBindingBarrier(cmd, b)
	}
	if node.timed {
		idx, err := rs.timestamp(cmd, vk.PipelineStageTopOfPipeBit)
		if err != nil {
			return err
		}
		rs.timedStart[node] = idx
	}
	set, err := rs.bindAndWrite(computeTaskAdapter{node.computeTask}, node.computeBindings)
	if err != nil {
		return err
	}
	vk.CmdBindPipeline(cmd, vk.PipelineBindPointCompute, node.computeTask.pipeline.Value())
	vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointCompute, node.computeTask.pipelineLayout.Value(), 0, 1, []vk.DescriptorSet{set}, 0, nil)
	vk.CmdDispatch(cmd, node.groupsX, node.groupsY, node.groupsZ)
	if node.timed {
		idx, err := rs.timestamp(cmd, vk.PipelineStageBottomOfPipeBit)
		if err != nil {
			return err
		}
		rs.timedEnd[node] = idx
	}
	return nil
}

func (rs *recordingState) recordRenderPass(node *Invocation) error {
	cmd, err := rs.cmdFor(SubmitGraphics)
	if err != nil {
		return err
	}

	for _, img := range node.colorAttachments {
		emitImageBarrier(cmd, &img.state, img.alloc.Image, imageTransitionFor(ImageUsageAttachment, false), vk.ImageAspectFlags(vk.ImageAspectColorBit), vk.QueueFamilyIgnored, vk.QueueFamilyIgnored)
	}
	if node.depthAttachment != nil {
		emitImageBarrier(cmd, &node.depthAttachment.state, node.depthAttachment.alloc.Image, imageTransitionFor(ImageUsageAttachment, true), depthAspectMask(node.depthAttachment.format), vk.QueueFamilyIgnored, vk.QueueFamilyIgnored)
	}

	for _, draw := range node.draws {
		for _, b := range draw.graphicsBindings {
			emitBindingBarrier(cmd, b)
		}
		for _, v := range draw.vertexBuffers {
			emitBufferBarrier(cmd, v.Buffer, bufferTransitionFor(BufferUsageVertex), v.Offset, v.Size)
		}
		if draw.indexBuffer != nil {
			emitBufferBarrier(cmd, draw.indexBuffer.Buffer, bufferTransitionFor(BufferUsageIndex), draw.indexBuffer.Offset, draw.indexBuffer.Size)
		}
	}

	views := make([]vk.ImageView, 0, len(node.colorViews)+1)
	for _, v := range node.colorViews {
		raw, err := v.Raw()
		if err != nil {
			return err
		}
		views = append(views, raw)
	}
	if node.depthView != nil {
		raw, err := node.depthView.Raw()
		if err != nil {
			return err
		}
		views = append(views, raw)
	}
	fb, err := node.renderPass.framebufferFor(framebufferKey(views), views)
	if err != nil {
		return err
	}

	if node.timed {
		idx, err := rs.timestamp(cmd, vk.PipelineStageTopOfPipeBit)
		if err != nil {
			return err
		}
		rs.timedStart[node] = idx
	}

	clearValues := node.renderPass.ClearValues()
	vk.CmdBeginRenderPass(cmd, &vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      node.renderPass.raw(),
		Framebuffer:     fb,
		RenderArea:      vk.Rect2D{Extent: vk.Extent2D{Width: node.renderPass.width, Height: node.renderPass.height}},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}, vk.SubpassContentsInline)

	vk.CmdSetViewport(cmd, 0, 1, []vk.Viewport{{Width: float32(node.renderPass.width), Height: float32(node.renderPass.height), MaxDepth: 1}})
	vk.CmdSetScissor(cmd, 0, 1, []vk.Rect2D{{Extent: vk.Extent2D{Width: node.renderPass.width, Height: node.renderPass.height}}})

	for _, draw := range node.draws {
		set, err := rs.bindAndWrite(graphicsTaskAdapter{draw.graphicsTask}, draw.graphicsBindings)
		if err != nil {
			return err
		}
		vk.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, draw.graphicsTask.pipeline.Value())
		if len(draw.graphicsBindings) > 0 {
			vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointGraphics, draw.graphicsTask.pipelineLayout.Value(), 0, 1, []vk.DescriptorSet{set}, 0, nil)
		}
		if len(draw.vertexBuffers) > 0 {
			bufs := make([]vk.Buffer, len(draw.vertexBuffers))
			offsets := make([]vk.DeviceSize, len(draw.vertexBuffers))
			for i, v := range draw.vertexBuffers {
				bufs[i] = v.Buffer.alloc.Buffer
				offsets[i] = vk.DeviceSize(v.Offset)
			}
			vk.CmdBindVertexBuffers(cmd, 0, uint32(len(bufs)), bufs, offsets)
		}
		if draw.indexBuffer != nil {
			vk.CmdBindIndexBuffer(cmd, draw.indexBuffer.Buffer.alloc.Buffer, vk.DeviceSize(draw.indexBuffer.Offset), draw.indexType.vk())
			vk.CmdDrawIndexed(cmd, draw.vertexCount, maxu32(draw.instanceCount, 1), 0, 0, 0)
		} else {
			vk.CmdDraw(cmd, draw.vertexCount, maxu32(draw.instanceCount, 1), 0, 0)
		}
	}

	vk.CmdEndRenderPass(cmd)
	if node.timed {
		idx, err := rs.timestamp(cmd, vk.PipelineStageBottomOfPipeBit)
		if err != nil {
			return err
		}
		rs.timedEnd[node] = idx
	}
	return nil
}

// RecordAndSubmit records root and submits it in one step.
func (r *Recorder) RecordAndSubmit(label string, root *Invocation) (*Transaction, error) {
	t, err := r.Record(label, root)
	if err != nil {
		return nil, err
	}
	if err := t.Submit(); err != nil {
		return nil, err
	}
	return t, nil
}

// Transaction is the result of recording an Invocation tree: a set of
// submitted (or about-to-be-submitted) command buffers, one fence per
// distinct SubmitClass used, and the leased pool resources that must be
// released once the work is known complete.
type Transaction struct {
	ctx   *Context
	label string
	root  *Invocation
	rs    *recordingState
	order []SubmitClass

	mu        sync.Mutex
	fences    map[SubmitClass]vk.Fence
	chainSems []*semaphoreHandle
	submitted bool
	waited    bool
}

// Submit submits every recorded command buffer, one per distinct
// SubmitClass, on its class's queue in the order classes first appeared
// while recording. Consecutive classes are chained with a semaphore so
// e.g. a compute pass writing a buffer a later graphics pass reads
// actually waits for it.
// When the tree ends in a Present node, the graphics submission also
// waits on the swapchain's acquire semaphore and signals its present
// semaphore, and present() runs after every submission is enqueued.
func (t *Transaction) Submit() error {
	t.fences = make(map[SubmitClass]vk.Fence)

	var prevSignal vk.Semaphore
	havePrev := false
	for i, class := range t.order {
		queue, _, err := t.ctx.queueFor(class)
		if err != nil {
			return err
		}

		fence, err := t.ctx.fences.acquire(class.String())
		if err != nil {
			return err
		}
		t.fences[class] = fence

		waitSems := []vk.Semaphore{}
		waitStages := []vk.PipelineStageFlags{}
		if havePrev {
			waitSems = append(waitSems, prevSignal)
			waitStages = append(waitStages, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit))
		}

		signalToPresent := class == SubmitGraphics && t.rs.presentAfter != nil
		if signalToPresent {
			waitSems = append(waitSems, t.rs.presentAfter.acquireSemaphore())
			waitStages = append(waitStages, vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit))
		}

		signalSems := []vk.Semaphore{}
		if signalToPresent {
			signalSems = append(signalSems, t.rs.presentAfter.presentSemaphore())
		}
		var nextChain vk.Semaphore
		if i < len(t.order)-1 {
			ret := vk.CreateSemaphore(t.ctx.device, &vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}, nil, &nextChain)
			if err := checkResult(class.String(), ret); err != nil {
				return err
			}
			sh := newSemaphoreHandle(t.ctx.device, t.label+":chain", nextChain)
			t.chainSems = append(t.chainSems, sh)
			signalSems = append(signalSems, nextChain)
		}

		submit := vk.SubmitInfo{
			SType:              vk.StructureTypeSubmitInfo,
			CommandBufferCount: 1,
			PCommandBuffers:    []vk.CommandBuffer{t.rs.cmdBuffers[class]},
		}
		if len(waitSems) > 0 {
			submit.WaitSemaphoreCount = uint32(len(waitSems))
			submit.PWaitSemaphores = waitSems
			submit.PWaitDstStageMask = waitStages
		}
		if len(signalSems) > 0 {
			submit.SignalSemaphoreCount = uint32(len(signalSems))
			submit.PSignalSemaphores = signalSems
		}

		ret := vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submit}, fence)
		if err := checkResult(class.String(), ret); err != nil {
			return err
		}

		prevSignal = nextChain
		havePrev = i < len(t.order)-1
	}

	if t.rs.presentAfter != nil {
		queue, _, err := t.ctx.queueFor(SubmitPresent)
		if err != nil {
			return err
		}
		if err := t.rs.presentAfter.present(queue); err != nil {
			return err
		}
	}

	t.submitted = true
	return nil
}

// IsDone reports whether every fence this transaction holds has
// signaled, without blocking.
func (t *Transaction) IsDone() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, f := range t.fences {
		if vk.GetFenceStatus(t.ctx.device, f) != vk.Success {
			return false
		}
	}
	return true
}

// spinWaitInterval is how often Wait polls fence status: short enough
// that frame-loop latencies stay bounded, long enough not to hammer
// the driver.
const spinWaitInterval = 30 * time.Microsecond

// Wait blocks until every submitted command buffer has completed,
// then releases the transaction's leased command pools/descriptor sets
// and the resources the invocation tree retained.
func (t *Transaction) Wait() error {
	t.mu.Lock()
	if t.waited {
		t.mu.Unlock()
		return nil
	}
	t.waited = true
	t.mu.Unlock()

	for _, f := range t.fences {
		for {
			ret := vk.WaitForFences(t.ctx.device, 1, []vk.Fence{f}, vk.True, uint64(spinWaitInterval.Nanoseconds()))
			if ret == vk.Success {
				break
			}
			if ret != vk.Timeout {
				return checkResult(t.label, ret)
			}
		}
	}

	for _, f := range t.fences {
		t.ctx.fences.release(f)
	}
	for _, s := range t.chainSems {
		s.Release()
	}
	for _, item := range t.rs.leasedSets {
		item.Release()
	}
	for _, item := range t.rs.cmdPools {
		vk.ResetCommandPool(t.ctx.device, item.Value().Value(), vk.CommandPoolResetFlags(vk.CommandPoolResetReleaseResourcesBit))
		item.Release()
	}
	if t.rs.queryPool != nil {
		t.rs.queryPool.Release()
	}
	t.root.releaseResources()
	return nil
}

// Destroy forces completion of a transaction the caller failed to
// wait: a submitted-but-unwaited transaction blocks here with a logged
// warning, since tearing down command buffers still in flight corrupts
// the device.
func (t *Transaction) Destroy() {
	t.mu.Lock()
	waited := t.waited
	submitted := t.submitted
	t.mu.Unlock()
	if submitted && !waited {
		t.ctx.log.warnf("transaction %q destroyed before Wait; blocking until the device finishes", t.label)
	}
	t.Wait()
}

// GetTimeUs returns the elapsed GPU time in microseconds for a timed
// invocation within this transaction's tree. If the device reports no
// timestamp support, it logs a warning and returns 0 rather than erroring.
func (t *Transaction) GetTimeUs(node *Invocation) (uint64, error) {
	if !t.ctx.TimingSupported() {
		t.ctx.log.warnf("transaction %q: timing requested but device has no timestamp support", t.label)
		return 0, nil
	}
	start, ok := t.rs.timedStart[node]
	if !ok {
		return 0, configErr(node.label, "invocation was not recorded with WithTiming")
	}
	end := t.rs.timedEnd[node]
	raw := make([]uint64, 2)
	ret := vk.GetQueryPoolResults(t.ctx.device, t.rs.queryPool.Value().Value(), start, 1, 8, unsafe.Pointer(&raw[0]), 8, vk.QueryResultFlags(vk.QueryResult64Bit|vk.QueryResultWaitBit))
	if err := checkResult(node.label, ret); err != nil {
		return 0, err
	}
	startTicks := raw[0]
	ret = vk.GetQueryPoolResults(t.ctx.device, t.rs.queryPool.Value().Value(), end, 1, 8, unsafe.Pointer(&raw[1]), 8, vk.QueryResultFlags(vk.QueryResult64Bit|vk.QueryResultWaitBit))
	if err := checkResult(node.label, ret); err != nil {
		return 0, err
	}
	endTicks := raw[1]
	ns := float64(endTicks-startTicks) * float64(t.ctx.TimestampPeriod())
	return uint64(ns / 1000.0), nil
}
