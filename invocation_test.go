package vkhal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func invalidConfig(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindInvalidConfig, e.Kind)
}

func TestValidateBindings(t *testing.T) {
	want := []ResourceType{ResourceStorageBuffer, ResourceSampledImage}

	err := validateBindings("t", []Binding{{Type: ResourceStorageBuffer}}, want)
	invalidConfig(t, err)

	err = validateBindings("t", []Binding{{Type: ResourceStorageBuffer}, {Type: ResourceStorageImage}}, want)
	invalidConfig(t, err)

	err = validateBindings("t", []Binding{{Type: ResourceStorageBuffer}, {Type: ResourceSampledImage}}, want)
	assert.NoError(t, err)
}

func TestRenderPassInvocationArity(t *testing.T) {
	rp := &RenderPass{attachments: []AttachmentDesc{
		{Type: AttachmentColor, Format: vk.FormatR8g8b8a8Unorm, Access: AttachmentClear | AttachmentStore},
		{Type: AttachmentDepth, Format: vk.FormatD16Unorm, Access: AttachmentClear},
	}}

	_, err := NewRenderPassInvocation("no-views", rp, nil, nil, nil, nil, nil)
	invalidConfig(t, err)

	img := &Image{}
	depth := &DepthImage{}
	depthView := depth.FullView()

	_, err = NewRenderPassInvocation("no-depth", rp, []*Image{img}, []ImageView{img.FullView()}, nil, nil, nil)
	invalidConfig(t, err)

	inv, err := NewRenderPassInvocation("ok", rp, []*Image{img}, []ImageView{img.FullView()}, depth, &depthView, nil)
	require.NoError(t, err)
	assert.Equal(t, SubmitGraphics, inv.class)
}

func TestRenderPassChildrenMustBeDraws(t *testing.T) {
	rp := &RenderPass{attachments: []AttachmentDesc{
		{Type: AttachmentColor, Format: vk.FormatR8g8b8a8Unorm, Access: AttachmentClear},
	}}
	img := &Image{}
	xfer := NewTransferBufferToBuffer("t", &Buffer{}, &Buffer{}, 0, 4)

	_, err := NewRenderPassInvocation("bad-child", rp, []*Image{img}, []ImageView{img.FullView()}, nil, nil, []*Invocation{xfer})
	invalidConfig(t, err)
}

func TestCompositeRejectsBareGraphics(t *testing.T) {
	draw := &Invocation{kind: invGraphics, label: "draw", class: SubmitGraphics}
	_, err := NewComposite("bad", []*Invocation{draw})
	invalidConfig(t, err)
}

func TestCompositeClassInference(t *testing.T) {
	xfer := NewTransferBufferToBuffer("t", &Buffer{}, &Buffer{}, 0, 4)
	compute := &Invocation{kind: invCompute, label: "c", class: SubmitCompute}

	inner, err := NewComposite("inner", nil)
	require.NoError(t, err)
	assert.Equal(t, SubmitAny, inner.class, "empty composite stays class-agnostic")

	root, err := NewComposite("root", []*Invocation{inner, xfer, compute})
	require.NoError(t, err)
	assert.Equal(t, SubmitTransfer, root.class, "first concrete child's class wins")
}

func TestConcreteClassForBaking(t *testing.T) {
	xfer1 := NewTransferBufferToBuffer("a", &Buffer{}, &Buffer{}, 0, 4)
	xfer2 := NewTransferBufferToBuffer("b", &Buffer{}, &Buffer{}, 0, 4)
	compute := &Invocation{kind: invCompute, class: SubmitCompute}

	class, err := concreteClass(xfer1)
	require.NoError(t, err)
	assert.Equal(t, SubmitTransfer, class)

	uniform, err := NewComposite("uniform", []*Invocation{xfer1, xfer2})
	require.NoError(t, err)
	class, err = concreteClass(uniform)
	require.NoError(t, err)
	assert.Equal(t, SubmitTransfer, class)

	mixed, err := NewComposite("mixed", []*Invocation{xfer1, compute})
	require.NoError(t, err)
	_, err = concreteClass(mixed)
	invalidConfig(t, err)

	rpInv := &Invocation{kind: invRenderPass, label: "rp"}
	_, err = concreteClass(rpInv)
	invalidConfig(t, err)

	present := &Invocation{kind: invPresent, label: "p"}
	_, err = concreteClass(present)
	invalidConfig(t, err)
}

func TestWithTiming(t *testing.T) {
	inv := NewTransferBufferToBuffer("t", &Buffer{}, &Buffer{}, 0, 4)
	assert.False(t, inv.timed)
	assert.Same(t, inv, inv.WithTiming())
	assert.True(t, inv.timed)
}

func TestIndexTypeMapping(t *testing.T) {
	assert.Equal(t, vk.IndexTypeUint16, IndexU16.vk())
	assert.Equal(t, vk.IndexTypeUint32, IndexU32.vk())
}

func TestRetainReleaseRoundTrip(t *testing.T) {
	src := &Buffer{}
	dst := &Buffer{}
	inv := NewTransferBufferToBuffer("t", src, dst, 0, 16)

	inv.retainResources()
	assert.True(t, src.inUse())
	assert.True(t, dst.inUse())

	inv.releaseResources()
	assert.False(t, src.inUse())
	assert.False(t, dst.inUse())
}

func TestRetainReleaseThroughComposite(t *testing.T) {
	buf := &Buffer{}
	inner := NewTransferBufferToBuffer("t", buf, &Buffer{}, 0, 16)
	root, err := NewComposite("root", []*Invocation{inner})
	require.NoError(t, err)

	root.retainResources()
	root.retainResources()
	assert.EqualValues(t, 2, buf.count())
	root.releaseResources()
	assert.EqualValues(t, 1, buf.count())
	root.releaseResources()
	assert.False(t, buf.inUse())
}
