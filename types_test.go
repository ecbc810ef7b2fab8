package vkhal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	vk "github.com/vulkan-go/vulkan"
)

func TestSubmitClassString(t *testing.T) {
	assert.Equal(t, "any", SubmitAny.String())
	assert.Equal(t, "graphics", SubmitGraphics.String())
	assert.Equal(t, "compute", SubmitCompute.String())
	assert.Equal(t, "transfer", SubmitTransfer.String())
	assert.Equal(t, "present", SubmitPresent.String())
}

func TestBufferUsageFlagMapping(t *testing.T) {
	flags := bufferUsageFlags(BufferUsageTransferSrc | BufferUsageStorage | BufferUsageIndex)
	assert.Equal(t,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit|vk.BufferUsageStorageBufferBit|vk.BufferUsageIndexBufferBit),
		flags)
	assert.Equal(t, vk.BufferUsageFlags(0), bufferUsageFlags(0))
}

func TestImageUsageFlagMapping(t *testing.T) {
	flags := imageUsageFlags(ImageUsageSampled | ImageUsageAttachment)
	assert.Equal(t,
		vk.ImageUsageFlags(vk.ImageUsageSampledBit|vk.ImageUsageColorAttachmentBit),
		flags)
}

func TestImageDimensionality(t *testing.T) {
	assert.Equal(t, vk.ImageType1d, imageDimensionality(64, 1, 0))
	assert.Equal(t, vk.ImageType2d, imageDimensionality(64, 64, 0))
	assert.Equal(t, vk.ImageType3d, imageDimensionality(64, 64, 8))
}

func TestImageViewTypeFor(t *testing.T) {
	assert.Equal(t, vk.ImageViewType2d, imageViewTypeFor(0, 1))
	assert.Equal(t, vk.ImageViewType2dArray, imageViewTypeFor(0, 4))
	assert.Equal(t, vk.ImageViewType3d, imageViewTypeFor(8, 1))
}

func TestTopologyMapping(t *testing.T) {
	topo, poly := vkTopology(TopologyPoint)
	assert.Equal(t, vk.PrimitiveTopologyPointList, topo)
	assert.Equal(t, vk.PolygonModeFill, poly)

	topo, poly = vkTopology(TopologyLine)
	assert.Equal(t, vk.PrimitiveTopologyLineList, topo)

	topo, poly = vkTopology(TopologyTriangle)
	assert.Equal(t, vk.PrimitiveTopologyTriangleList, topo)
	assert.Equal(t, vk.PolygonModeFill, poly)

	topo, poly = vkTopology(TopologyTriangleWireframe)
	assert.Equal(t, vk.PrimitiveTopologyTriangleList, topo)
	assert.Equal(t, vk.PolygonModeLine, poly)
}

func TestDepthImageUsageSubset(t *testing.T) {
	assert.Zero(t, ImageUsageSampled&^depthImageAllowedUsage)
	assert.Zero(t, ImageUsageAttachment&^depthImageAllowedUsage)
	assert.NotZero(t, ImageUsageTransferSrc&^depthImageAllowedUsage)
	assert.NotZero(t, ImageUsageStorage&^depthImageAllowedUsage)
	assert.NotZero(t, ImageUsagePresent&^depthImageAllowedUsage)
}
