package vkhal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferPresets(t *testing.T) {
	streaming := StreamingBuffer("s", 64)
	assert.Equal(t, HostAccessWrite, streaming.HostAccess)
	assert.Equal(t, BufferUsageTransferSrc, streaming.Usage)

	readBack := ReadBackBuffer("r", 64)
	assert.Equal(t, HostAccessRead, readBack.HostAccess)
	assert.Equal(t, BufferUsageTransferDst, readBack.Usage)

	uniform := UniformBuffer("u", 64)
	assert.Equal(t, HostAccessNone, uniform.HostAccess)
	assert.Equal(t, BufferUsageTransferDst|BufferUsageUniform, uniform.Usage)

	storage := StorageBuffer("st", 64)
	assert.Equal(t, BufferUsageTransferSrc|BufferUsageTransferDst|BufferUsageStorage, storage.Usage)

	vertex := VertexBuffer("v", 64)
	assert.Equal(t, BufferUsageTransferDst|BufferUsageVertex, vertex.Usage)

	index := IndexBuffer("i", 64)
	assert.Equal(t, BufferUsageTransferDst|BufferUsageIndex, index.Usage)
}

func TestDefaultContextClasses(t *testing.T) {
	classes := defaultContextClasses()
	assert.Equal(t, []SubmitClass{SubmitGraphics, SubmitCompute, SubmitTransfer}, classes)
}
