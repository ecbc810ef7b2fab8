package vkhal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	vk "github.com/vulkan-go/vulkan"
)

func TestErrorStringCarriesLabel(t *testing.T) {
	err := configErr("my-buffer", "zero-sized buffer")
	assert.Contains(t, err.Error(), "my-buffer")
	assert.Contains(t, err.Error(), "InvalidConfig")
	assert.Contains(t, err.Error(), "zero-sized buffer")
}

func TestGpuErrorCarriesCode(t *testing.T) {
	err := gpuErr("my-task", vk.ErrorDeviceLost)
	assert.Contains(t, err.Error(), "my-task")
	assert.Contains(t, err.Error(), "Gpu")
}

func TestCheckResult(t *testing.T) {
	assert.NoError(t, checkResult("x", vk.Success))
	assert.Error(t, checkResult("x", vk.ErrorOutOfDeviceMemory))
}

func TestKindStrings(t *testing.T) {
	assert.Equal(t, "UnsupportedSubmitClass", KindUnsupportedSubmitClass.String())
	assert.Equal(t, "NoCompatibleSurfaceFormat", KindNoCompatibleSurfaceFormat.String())
	assert.Equal(t, "BufferTooSmall", KindBufferTooSmall.String())
	assert.Equal(t, "TimingUnsupported", KindTimingUnsupported.String())
}
