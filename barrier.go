package vkhal

import vk "github.com/vulkan-go/vulkan"

// transition is the (stage, access[, layout]) triple a resource must
// be in for a given usage. Image transitions carry a layout; buffer
// transitions leave it at vk.ImageLayoutUndefined, which the buffer
// barrier path ignores.
type transition struct {
	stage  vk.PipelineStageFlags
	access vk.AccessFlags
	layout vk.ImageLayout
}

// bufferTransitionFor maps a BufferUsage bit to the (stage, access)
// pair a Transfer/Compute/Graphics invocation needs the buffer in
// before it runs. Only one bit should be set for a given invocation's
// use of the buffer; callers resolve which bit from the
// ResourceType/role the invocation declares.
func bufferTransitionFor(usage BufferUsage) transition {
	switch usage {
	case BufferUsageTransferSrc:
		return transition{stage: vk.PipelineStageFlags(vk.PipelineStageTransferBit), access: vk.AccessFlags(vk.AccessTransferReadBit)}
	case BufferUsageTransferDst:
		return transition{stage: vk.PipelineStageFlags(vk.PipelineStageTransferBit), access: vk.AccessFlags(vk.AccessTransferWriteBit)}
	case BufferUsageUniform:
		return transition{stage: shaderResourceStages(), access: vk.AccessFlags(vk.AccessUniformReadBit)}
	case BufferUsageStorage:
		return transition{stage: shaderResourceStages(), access: vk.AccessFlags(vk.AccessShaderReadBit | vk.AccessShaderWriteBit)}
	case BufferUsageVertex:
		return transition{stage: vk.PipelineStageFlags(vk.PipelineStageVertexInputBit), access: vk.AccessFlags(vk.AccessVertexAttributeReadBit)}
	case BufferUsageIndex:
		return transition{stage: vk.PipelineStageFlags(vk.PipelineStageVertexInputBit), access: vk.AccessFlags(vk.AccessIndexReadBit)}
	default:
		return transition{stage: vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)}
	}
}

// shaderResourceStages is the fixed stage scope for shader-visible
// resources (uniform/storage buffers, sampled/storage images): the
// union of all graphics stages and the compute stage, independent of
// which submission class touches the resource. A constant scope keeps
// the barrier table deterministic when the same resource crosses
// classes within one transaction.
func shaderResourceStages() vk.PipelineStageFlags {
	return vk.PipelineStageFlags(vk.PipelineStageAllGraphicsBit | vk.PipelineStageComputeShaderBit)
}

// imageTransitionFor maps an ImageUsage bit to the fixed
// (stage, access, layout) triple an image must be in:
// transferSrc/transferDst/sampled/storage/attachment/present.
func imageTransitionFor(usage ImageUsage, isDepth bool) transition {
	switch usage {
	case ImageUsageTransferSrc:
		return transition{vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.AccessFlags(vk.AccessTransferReadBit), vk.ImageLayoutTransferSrcOptimal}
	case ImageUsageTransferDst:
		return transition{vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.AccessFlags(vk.AccessTransferWriteBit), vk.ImageLayoutTransferDstOptimal}
	case ImageUsageSampled:
		return transition{shaderResourceStages(), vk.AccessFlags(vk.AccessShaderReadBit), vk.ImageLayoutShaderReadOnlyOptimal}
	case ImageUsageStorage:
		return transition{shaderResourceStages(), vk.AccessFlags(vk.AccessShaderReadBit | vk.AccessShaderWriteBit), vk.ImageLayoutGeneral}
	case ImageUsageAttachment:
		if isDepth {
			return transition{
				vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit),
				vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit),
				vk.ImageLayoutDepthStencilAttachmentOptimal,
			}
		}
		return transition{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
			vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
			vk.ImageLayoutColorAttachmentOptimal,
		}
	case ImageUsageSubpassData:
		return transition{vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit), vk.AccessFlags(vk.AccessInputAttachmentReadBit), vk.ImageLayoutShaderReadOnlyOptimal}
	case ImageUsagePresent:
		return transition{vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit), 0, vk.ImageLayoutPresentSrc}
	default:
		return transition{vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), 0, vk.ImageLayoutUndefined}
	}
}

// needsTransition reports whether moving a resource's dynamic state
// from cur to want requires a barrier: any stage/access/layout mismatch
// does, since a barrier also establishes the execution-order dependency
// even when access masks happen to already be compatible.
func needsTransition(cur, want transition) bool {
	return cur.stage != want.stage || cur.access != want.access || cur.layout != want.layout
}

// bufferBarrier builds the vk.BufferMemoryBarrier for a state change,
// returning the source/destination pipeline stage masks vkCmdPipelineBarrier
// needs alongside it.
func bufferBarrier(buf vk.Buffer, from, to transition, size, offset vk.DeviceSize) (vk.BufferMemoryBarrier, vk.PipelineStageFlags, vk.PipelineStageFlags) {
	return vk.BufferMemoryBarrier{
		SType:               vk.StructureTypeBufferMemoryBarrier,
		SrcAccessMask:       from.access,
		DstAccessMask:       to.access,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Buffer:              buf,
		Offset:              offset,
		Size:                size,
	}, from.stage, to.stage
}

// imageBarrier builds the vk.ImageMemoryBarrier for a layout/access
// change, performing a queue-family ownership transfer when
// srcFamily != dstFamily. The recorder passes vk.QueueFamilyIgnored for
// both, so its barriers never transfer ownership.
func imageBarrier(img vk.Image, from, to transition, aspect vk.ImageAspectFlags, srcFamily, dstFamily uint32) (vk.ImageMemoryBarrier, vk.PipelineStageFlags, vk.PipelineStageFlags) {
	return vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       from.access,
		DstAccessMask:       to.access,
		OldLayout:           from.layout,
		NewLayout:           to.layout,
		SrcQueueFamilyIndex: srcFamily,
		DstQueueFamilyIndex: dstFamily,
		Image:               img,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: vk.RemainingMipLevels,
			LayerCount: vk.RemainingArrayLayers,
		},
	}, from.stage, to.stage
}

// emitBufferBarrier records a pipeline barrier transitioning buf from
// its current dynamic state to want, and commits want as the new
// current state. No-op if no transition is needed.
func emitBufferBarrier(cmd vk.CommandBuffer, b *Buffer, want transition, offset, size uint64) {
	curStage, curAccess, _ := b.state.get()
	cur := transition{stage: curStage, access: curAccess}
	if !needsTransition(cur, want) {
		return
	}
	barrier, srcStage, dstStage := bufferBarrier(b.alloc.Buffer, cur, want, vk.DeviceSize(size), vk.DeviceSize(offset))
	vk.CmdPipelineBarrier(cmd, srcStage, dstStage, 0, 0, nil, 1, []vk.BufferMemoryBarrier{barrier}, 0, nil)
	b.state.set(want.stage, want.access, vk.ImageLayoutUndefined)
}

// emitImageBarrier is emitBufferBarrier's image counterpart, tracking
// layout alongside stage/access.
func emitImageBarrier(cmd vk.CommandBuffer, state *syncState, rawImage vk.Image, want transition, aspect vk.ImageAspectFlags, srcFamily, dstFamily uint32) {
	curStage, curAccess, curLayout := state.get()
	cur := transition{stage: curStage, access: curAccess, layout: curLayout}
	if !needsTransition(cur, want) && srcFamily == dstFamily {
		return
	}
	barrier, srcStage, dstStage := imageBarrier(rawImage, cur, want, aspect, srcFamily, dstFamily)
	vk.CmdPipelineBarrier(cmd, srcStage, dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	state.set(want.stage, want.access, want.layout)
}
