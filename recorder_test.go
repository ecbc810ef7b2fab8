package vkhal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func TestMaxU32(t *testing.T) {
	assert.Equal(t, uint32(1), maxu32(0, 1))
	assert.Equal(t, uint32(5), maxu32(5, 1))
}

func TestBindingsToResourceTypes(t *testing.T) {
	bindings := []Binding{{Type: ResourceStorageBuffer}, {Type: ResourceSampledImage}}
	assert.Equal(t, []ResourceType{ResourceStorageBuffer, ResourceSampledImage}, bindingsToResourceTypes(bindings))
}

// applyTrackedStates must leave each resource's dynamic state at the
// destination the baked barriers transition it to, exactly as inline
// recording would.
func TestApplyTrackedStatesTransfer(t *testing.T) {
	src := &Buffer{label: "src", size: 64}
	dst := &Buffer{label: "dst", size: 64}
	src.state.set(vk.PipelineStageFlags(vk.PipelineStageHostBit), 0, vk.ImageLayoutUndefined)
	dst.state.set(vk.PipelineStageFlags(vk.PipelineStageHostBit), 0, vk.ImageLayoutUndefined)

	inv := NewTransferBufferToBuffer("copy", src, dst, 0, 64)
	applyTrackedStates(inv)

	wantSrc := bufferTransitionFor(BufferUsageTransferSrc)
	stage, access, _ := src.state.get()
	assert.Equal(t, wantSrc.stage, stage)
	assert.Equal(t, wantSrc.access, access)

	wantDst := bufferTransitionFor(BufferUsageTransferDst)
	stage, access, _ = dst.state.get()
	assert.Equal(t, wantDst.stage, stage)
	assert.Equal(t, wantDst.access, access)
}

func TestApplyTrackedStatesComposite(t *testing.T) {
	buf := &Buffer{label: "b", size: 64}
	inner := NewTransferBufferToBuffer("copy", buf, &Buffer{size: 64}, 0, 64)
	root, err := NewComposite("root", []*Invocation{inner})
	require.NoError(t, err)

	applyTrackedStates(root)

	want := bufferTransitionFor(BufferUsageTransferSrc)
	stage, access, _ := buf.state.get()
	assert.Equal(t, want.stage, stage)
	assert.Equal(t, want.access, access)
}

func TestSyncStateRoundTrip(t *testing.T) {
	var s syncState
	s.set(vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.AccessFlags(vk.AccessTransferWriteBit), vk.ImageLayoutTransferDstOptimal)
	stage, access, layout := s.get()
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageTransferBit), stage)
	assert.Equal(t, vk.AccessFlags(vk.AccessTransferWriteBit), access)
	assert.Equal(t, vk.ImageLayoutTransferDstOptimal, layout)
}
