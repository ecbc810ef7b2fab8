package vkhal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRoundTrip(t *testing.T) {
	p := newPool[string, int]()
	assert.False(t, p.HasFree("a"))

	item := p.Create("a", 42)
	assert.Equal(t, 42, item.Value())
	assert.Equal(t, "a", item.Key())
	assert.False(t, p.HasFree("a"), "leased item must not appear free")

	item.Release()
	assert.True(t, p.HasFree("a"), "released item must return to its bucket")

	again, ok := p.Acquire("a")
	require.True(t, ok)
	assert.Equal(t, 42, again.Value())
	assert.False(t, p.HasFree("a"))
}

func TestPoolDoubleReleaseIsNoOp(t *testing.T) {
	p := newPool[string, int]()
	item := p.Create("k", 7)
	item.Release()
	item.Release()
	assert.Equal(t, 1, p.Stats("k"), "double release must not duplicate the item")
}

func TestPoolAcquireEmptyBucket(t *testing.T) {
	p := newPool[int, string]()
	_, ok := p.Acquire(3)
	assert.False(t, ok)

	p.Create(3, "x").Release()
	p.Create(4, "y").Release()
	_, ok = p.Acquire(5)
	assert.False(t, ok, "keys must not alias")
}

func TestPoolLIFOOrder(t *testing.T) {
	p := newPool[string, int]()
	p.Create("k", 1).Release()
	p.Create("k", 2).Release()

	item, ok := p.Acquire("k")
	require.True(t, ok)
	assert.Equal(t, 2, item.Value(), "most recently released comes back first")
}

func TestPoolDrain(t *testing.T) {
	p := newPool[string, int]()
	p.Create("a", 1).Release()
	p.Create("a", 2).Release()
	p.Create("b", 3).Release()

	var drained []int
	p.drain(func(v int) { drained = append(drained, v) })
	assert.Len(t, drained, 3)
	assert.False(t, p.HasFree("a"))
	assert.False(t, p.HasFree("b"))
}
