package vkhal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	vk "github.com/vulkan-go/vulkan"
)

func TestLoadOpDerivation(t *testing.T) {
	assert.Equal(t, vk.AttachmentLoadOpClear, loadOpFor(AttachmentClear))
	assert.Equal(t, vk.AttachmentLoadOpClear, loadOpFor(AttachmentClear|AttachmentLoad), "clear wins over load")
	assert.Equal(t, vk.AttachmentLoadOpLoad, loadOpFor(AttachmentLoad))
	assert.Equal(t, vk.AttachmentLoadOpDontCare, loadOpFor(AttachmentStore))
	assert.Equal(t, vk.AttachmentLoadOpDontCare, loadOpFor(0))
}

func TestStoreOpDerivation(t *testing.T) {
	assert.Equal(t, vk.AttachmentStoreOpStore, storeOpFor(AttachmentStore))
	assert.Equal(t, vk.AttachmentStoreOpStore, storeOpFor(AttachmentClear|AttachmentStore))
	assert.Equal(t, vk.AttachmentStoreOpDontCare, storeOpFor(AttachmentClear))
	assert.Equal(t, vk.AttachmentStoreOpDontCare, storeOpFor(0))
}

func TestDefaultClearValues(t *testing.T) {
	color := clearValueFor(AttachmentDesc{Type: AttachmentColor, Access: AttachmentClear})
	assert.Equal(t, vk.NewClearValue([]float32{0, 0, 0, 0}), color)

	depth := clearValueFor(AttachmentDesc{Type: AttachmentDepth, Access: AttachmentClear})
	assert.Equal(t, vk.NewClearDepthStencil(1.0, 0), depth)
}
