package vkhal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	vk "github.com/vulkan-go/vulkan"
)

func TestBufferTransitionTable(t *testing.T) {
	shaderStages := vk.PipelineStageFlags(vk.PipelineStageAllGraphicsBit | vk.PipelineStageComputeShaderBit)

	cases := []struct {
		usage  BufferUsage
		stage  vk.PipelineStageFlags
		access vk.AccessFlags
	}{
		{BufferUsageTransferSrc, vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.AccessFlags(vk.AccessTransferReadBit)},
		{BufferUsageTransferDst, vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.AccessFlags(vk.AccessTransferWriteBit)},
		{BufferUsageStorage, shaderStages, vk.AccessFlags(vk.AccessShaderReadBit | vk.AccessShaderWriteBit)},
		{BufferUsageUniform, shaderStages, vk.AccessFlags(vk.AccessUniformReadBit)},
		{BufferUsageVertex, vk.PipelineStageFlags(vk.PipelineStageVertexInputBit), vk.AccessFlags(vk.AccessVertexAttributeReadBit)},
		{BufferUsageIndex, vk.PipelineStageFlags(vk.PipelineStageVertexInputBit), vk.AccessFlags(vk.AccessIndexReadBit)},
	}
	for _, c := range cases {
		got := bufferTransitionFor(c.usage)
		assert.Equal(t, c.stage, got.stage, "usage %v", c.usage)
		assert.Equal(t, c.access, got.access, "usage %v", c.usage)
	}
}

// Shader-resource usages carry a fixed all-graphics|compute stage
// scope; the submission class a resource happens to be bound under
// never narrows it.
func TestShaderResourceStagesAreClassIndependent(t *testing.T) {
	want := vk.PipelineStageFlags(vk.PipelineStageAllGraphicsBit | vk.PipelineStageComputeShaderBit)

	assert.Equal(t, want, shaderResourceStages())
	assert.Equal(t, want, bufferTransitionFor(BufferUsageUniform).stage)
	assert.Equal(t, want, bufferTransitionFor(BufferUsageStorage).stage)
	assert.Equal(t, want, imageTransitionFor(ImageUsageSampled, false).stage)
	assert.Equal(t, want, imageTransitionFor(ImageUsageSampled, true).stage)
	assert.Equal(t, want, imageTransitionFor(ImageUsageStorage, false).stage)
}

func TestImageTransitionTable(t *testing.T) {
	sampled := imageTransitionFor(ImageUsageSampled, false)
	assert.Equal(t, vk.ImageLayoutShaderReadOnlyOptimal, sampled.layout)
	assert.Equal(t, vk.AccessFlags(vk.AccessShaderReadBit), sampled.access)

	storage := imageTransitionFor(ImageUsageStorage, false)
	assert.Equal(t, vk.ImageLayoutGeneral, storage.layout)

	colorAttm := imageTransitionFor(ImageUsageAttachment, false)
	assert.Equal(t, vk.ImageLayoutColorAttachmentOptimal, colorAttm.layout)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit), colorAttm.stage)

	depthAttm := imageTransitionFor(ImageUsageAttachment, true)
	assert.Equal(t, vk.ImageLayoutDepthStencilAttachmentOptimal, depthAttm.layout)

	present := imageTransitionFor(ImageUsagePresent, false)
	assert.Equal(t, vk.ImageLayoutPresentSrc, present.layout)
	assert.Equal(t, vk.AccessFlags(0), present.access)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit), present.stage)
}

func TestNeedsTransitionIffStateDiffers(t *testing.T) {
	a := transition{stage: vk.PipelineStageFlags(vk.PipelineStageTransferBit), access: vk.AccessFlags(vk.AccessTransferReadBit), layout: vk.ImageLayoutTransferSrcOptimal}
	assert.False(t, needsTransition(a, a), "identical states must suppress the barrier")

	b := a
	b.access = vk.AccessFlags(vk.AccessTransferWriteBit)
	assert.True(t, needsTransition(a, b))

	c := a
	c.layout = vk.ImageLayoutGeneral
	assert.True(t, needsTransition(a, c))

	d := a
	d.stage = vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit)
	assert.True(t, needsTransition(a, d))
}

func TestAllocationHintMapping(t *testing.T) {
	assert.Equal(t, AllocationGPUOnly, allocationHintFor(HostAccessNone))
	assert.Equal(t, AllocationGPUToCPU, allocationHintFor(HostAccessRead))
	assert.Equal(t, AllocationCPUToGPU, allocationHintFor(HostAccessWrite))
	assert.Equal(t, AllocationCPUOnly, allocationHintFor(HostAccessRead|HostAccessWrite))
}

func TestDepthAspectMask(t *testing.T) {
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit|vk.ImageAspectStencilBit), depthAspectMask(vk.FormatD24UnormS8Uint))
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit|vk.ImageAspectStencilBit), depthAspectMask(vk.FormatD32SfloatS8Uint))
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit), depthAspectMask(vk.FormatD16Unorm))
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit), depthAspectMask(vk.FormatD32Sfloat))
}

// A compute write followed by a transfer read is the canonical
// automatic-barrier case: the emitted barrier must carry
// srcStage=ALL_GRAPHICS|COMPUTE with SHADER_WRITE in its source access,
// and dstStage=TRANSFER with dstAccess=TRANSFER_READ.
func TestComputeWriteThenTransferReadBarrier(t *testing.T) {
	from := bufferTransitionFor(BufferUsageStorage)
	to := bufferTransitionFor(BufferUsageTransferSrc)
	barrier, srcStage, dstStage := bufferBarrier(vk.NullBuffer, from, to, 64, 0)

	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageAllGraphicsBit|vk.PipelineStageComputeShaderBit), srcStage)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageTransferBit), dstStage)
	assert.NotZero(t, barrier.SrcAccessMask&vk.AccessFlags(vk.AccessShaderWriteBit))
	assert.Equal(t, vk.AccessFlags(vk.AccessTransferReadBit), barrier.DstAccessMask)
	assert.Equal(t, vk.DeviceSize(64), barrier.Size)
	assert.True(t, needsTransition(from, to), "the state change must actually demand a barrier")
}

func TestImageBarrierCarriesLayouts(t *testing.T) {
	from := imageTransitionFor(ImageUsageAttachment, false)
	to := imageTransitionFor(ImageUsageTransferSrc, false)
	barrier, _, _ := imageBarrier(vk.NullImage, from, to, vk.ImageAspectFlags(vk.ImageAspectColorBit), vk.QueueFamilyIgnored, vk.QueueFamilyIgnored)

	assert.Equal(t, vk.ImageLayoutColorAttachmentOptimal, barrier.OldLayout)
	assert.Equal(t, vk.ImageLayoutTransferSrcOptimal, barrier.NewLayout)
}
