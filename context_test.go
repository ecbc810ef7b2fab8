package vkhal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	vk "github.com/vulkan-go/vulkan"
)

func TestDescriptorSetLayoutSignature(t *testing.T) {
	a := descriptorSetLayoutSignature([]ResourceType{ResourceUniformBuffer, ResourceStorageBuffer})
	b := descriptorSetLayoutSignature([]ResourceType{ResourceUniformBuffer, ResourceStorageBuffer})
	c := descriptorSetLayoutSignature([]ResourceType{ResourceStorageBuffer, ResourceUniformBuffer})

	assert.Equal(t, a, b, "equal sequences must share one cache key")
	assert.NotEqual(t, a, c, "order is part of the key")
	assert.NotEqual(t, a, descriptorSetLayoutSignature(nil))
}

func TestDescriptorTypeFor(t *testing.T) {
	assert.Equal(t, vk.DescriptorTypeUniformBuffer, descriptorTypeFor(ResourceUniformBuffer))
	assert.Equal(t, vk.DescriptorTypeStorageBuffer, descriptorTypeFor(ResourceStorageBuffer))
	assert.Equal(t, vk.DescriptorTypeCombinedImageSampler, descriptorTypeFor(ResourceSampledImage))
	assert.Equal(t, vk.DescriptorTypeStorageImage, descriptorTypeFor(ResourceStorageImage))
}

func TestDescriptorPoolSizesBatch(t *testing.T) {
	sizes := descriptorPoolSizesFor([]ResourceType{ResourceStorageBuffer, ResourceStorageBuffer, ResourceSampledImage})

	byType := map[vk.DescriptorType]uint32{}
	for _, s := range sizes {
		byType[s.Type] = s.DescriptorCount
	}
	assert.Equal(t, uint32(2*descriptorPoolBatchSize), byType[vk.DescriptorTypeStorageBuffer])
	assert.Equal(t, uint32(1*descriptorPoolBatchSize), byType[vk.DescriptorTypeCombinedImageSampler])
}

func TestSelectQueueFamilyPrefersRichest(t *testing.T) {
	families := []vk.QueueFamilyProperties{
		{QueueFlags: vk.QueueFlags(vk.QueueTransferBit)},
		{QueueFlags: vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueComputeBit | vk.QueueTransferBit)},
		{QueueFlags: vk.QueueFlags(vk.QueueComputeBit | vk.QueueTransferBit)},
	}

	idx, ok := selectQueueFamily(families, vk.QueueTransferBit)
	assert.True(t, ok)
	assert.Equal(t, uint32(1), idx, "the family with the most capability bits wins")

	idx, ok = selectQueueFamily(families, vk.QueueGraphicsBit)
	assert.True(t, ok)
	assert.Equal(t, uint32(1), idx)

	_, ok = selectQueueFamily(families, vk.QueueSparseBindingBit)
	assert.False(t, ok)
}

func TestSelectQueueFamilyAnyClass(t *testing.T) {
	families := []vk.QueueFamilyProperties{
		{QueueFlags: vk.QueueFlags(vk.QueueTransferBit)},
	}
	idx, ok := selectQueueFamily(families, requiredFlagsFor(SubmitAny))
	assert.True(t, ok)
	assert.Equal(t, uint32(0), idx)
}

func TestRequiredFlagsFor(t *testing.T) {
	assert.Equal(t, vk.QueueGraphicsBit, requiredFlagsFor(SubmitGraphics))
	assert.Equal(t, vk.QueueComputeBit, requiredFlagsFor(SubmitCompute))
	assert.Equal(t, vk.QueueTransferBit, requiredFlagsFor(SubmitTransfer))
	assert.Equal(t, vk.QueueFlagBits(0), requiredFlagsFor(SubmitPresent))
	assert.Equal(t, vk.QueueFlagBits(0), requiredFlagsFor(SubmitAny))
}

func TestSafeStrings(t *testing.T) {
	out := safeStrings([]string{"VK_KHR_swapchain"})
	assert.Equal(t, "VK_KHR_swapchain\x00", out[0])
}
