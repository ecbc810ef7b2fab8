package vkhal

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMappedBuffer(t *testing.T, size uint64) (*MappedBuffer, []byte) {
	t.Helper()
	backing := make([]byte, size)
	buf := &Buffer{ctx: &Context{log: newLoggers()}, label: "mapped", size: size}
	return &MappedBuffer{buffer: buf, ptr: unsafe.Pointer(&backing[0]), size: size}, backing
}

func TestMappedBufferCopyFrom(t *testing.T) {
	m, backing := testMappedBuffer(t, 16)

	require.NoError(t, m.CopyFrom(4, []byte{1, 2, 3, 4}))
	assert.Equal(t, []byte{1, 2, 3, 4}, backing[4:8])
}

func TestMappedBufferCopyTo(t *testing.T) {
	m, backing := testMappedBuffer(t, 8)
	copy(backing, []byte{9, 8, 7, 6, 5, 4, 3, 2})

	dst := make([]byte, 4)
	require.NoError(t, m.CopyTo(2, dst))
	assert.Equal(t, []byte{7, 6, 5, 4}, dst)
}

func TestMappedBufferZeroSizedCopyIsNoOp(t *testing.T) {
	m, backing := testMappedBuffer(t, 8)

	assert.NoError(t, m.CopyFrom(0, nil))
	assert.NoError(t, m.CopyTo(0, nil))
	assert.Equal(t, make([]byte, 8), backing, "zero-sized copy must not touch memory")
}

func TestMappedBufferRangeChecks(t *testing.T) {
	m, _ := testMappedBuffer(t, 8)

	err := m.CopyFrom(6, []byte{1, 2, 3, 4})
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindBufferTooSmall, e.Kind)

	err = m.CopyTo(8, make([]byte, 1))
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindBufferTooSmall, e.Kind)
}

func TestMapRequiresDeclaredHostAccess(t *testing.T) {
	buf := &Buffer{ctx: &Context{log: newLoggers()}, label: "gpu-only", size: 64, hostAccess: HostAccessNone}

	_, err := buf.MapRead(0, 64)
	invalidConfig(t, err)
	_, err = buf.MapWrite(0, 64)
	invalidConfig(t, err)
	_, err = buf.MapReadWrite(0, 64)
	invalidConfig(t, err)
}

func TestViewBorrowsRegion(t *testing.T) {
	buf := &Buffer{label: "b", size: 256}

	full := buf.FullView()
	assert.Same(t, buf, full.Buffer)
	assert.EqualValues(t, 0, full.Offset)
	assert.EqualValues(t, 256, full.Size)

	part := buf.View(64, 32)
	assert.EqualValues(t, 64, part.Offset)
	assert.EqualValues(t, 32, part.Size)
}

func TestSamplerKindStrings(t *testing.T) {
	assert.Equal(t, "linear-none", SamplerLinearNone.String())
	assert.Equal(t, "aniso4-lessCompare", SamplerAniso4LessCompare.String())
}
