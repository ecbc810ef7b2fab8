package vkhal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtensionSetNegotiation(t *testing.T) {
	actual := []string{"VK_KHR_surface", "VK_KHR_swapchain", "VK_EXT_debug_report"}

	set := newExtensionSet([]string{"VK_KHR_swapchain", "VK_KHR_ray_tracing_pipeline"}, actual)
	assert.Equal(t, []string{"VK_KHR_swapchain"}, set.Enabled())
	assert.Equal(t, []string{"VK_KHR_ray_tracing_pipeline"}, set.Missing())

	empty := newExtensionSet(nil, actual)
	assert.Empty(t, empty.Enabled())
	assert.Empty(t, empty.Missing())
}

func TestExtensionSetPreservesWantedOrder(t *testing.T) {
	actual := []string{"c", "a", "b"}
	set := newExtensionSet([]string{"a", "b", "c"}, actual)
	assert.Equal(t, []string{"a", "b", "c"}, set.Enabled())
}
