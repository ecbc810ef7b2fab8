package vkhal

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShaderWords(t *testing.T) {
	code := make([]byte, 8)
	binary.LittleEndian.PutUint32(code[0:4], 0x07230203) // SPIR-V magic
	binary.LittleEndian.PutUint32(code[4:8], 0x00010000)

	words := shaderWords(code)
	require.Len(t, words, 2)
	assert.Equal(t, uint32(0x07230203), words[0])
	assert.Equal(t, uint32(0x00010000), words[1])
}

func TestWorkgroupSizeZero(t *testing.T) {
	assert.False(t, WorkgroupSize{1, 1, 1}.zero())
	assert.True(t, WorkgroupSize{0, 1, 1}.zero())
	assert.True(t, WorkgroupSize{1, 0, 1}.zero())
	assert.True(t, WorkgroupSize{4, 4, 0}.zero())
}

func TestComputeTaskRejectsZeroWorkgroup(t *testing.T) {
	_, err := NewComputeTask(nil, "bad-task", nil, "main", nil, WorkgroupSize{0, 0, 0})
	invalidConfig(t, err)
}

func TestSafeNameNulTerminates(t *testing.T) {
	assert.Equal(t, "main\x00", safeName("main"))
}
