package vkhal

import (
	vk "github.com/vulkan-go/vulkan"
)

// BakedInvocation is a reusable secondary command buffer holding one
// invocation's commands, recorded once and executed from any number of
// later transactions. Render passes and presents are never bakeable,
// and a composite is bakeable only when every leaf agrees on one
// concrete submission class — the secondary buffer can only ever be
// executed from a single queue.
//
// The barriers captured at bake time assume the resources are in the
// same dynamic state on every replay; a baked invocation that is
// interleaved with other work touching the same resources replays
// stale transitions. The recorder re-registers the bake's transition
// list on each execute so the tracked state stays truthful.
type BakedInvocation struct {
	ctx    *Context
	label  string
	class  SubmitClass
	source *Invocation

	cmdPool *poolItem[SubmitClass, *commandPoolHandle]
	cmd     vk.CommandBuffer
	sets    []*poolItem[string, vk.DescriptorSet]
}

// concreteClass resolves the single submission class an invocation tree
// records under, or fails when the tree mixes classes or contains an
// unbakeable node.
func concreteClass(inv *Invocation) (SubmitClass, error) {
	switch inv.kind {
	case invTransferBufferToBuffer, invTransferBufferToImage, invTransferImageToBuffer, invTransferImageToImage:
		return SubmitTransfer, nil
	case invCompute:
		return SubmitCompute, nil
	case invRenderPass:
		return SubmitAny, configErr(inv.label, "render pass invocations are not bakeable")
	case invPresent:
		return SubmitAny, configErr(inv.label, "present invocations are not bakeable")
	case invGraphics:
		return SubmitAny, configErr(inv.label, "graphics draws only record inside a render pass")
	case invComposite:
		resolved := SubmitAny
		for _, c := range inv.children {
			class, err := concreteClass(c)
			if err != nil {
				return SubmitAny, err
			}
			if resolved == SubmitAny {
				resolved = class
			} else if class != resolved {
				return SubmitAny, configErr(inv.label, "composite mixes submission classes, not bakeable")
			}
		}
		if resolved == SubmitAny {
			return SubmitAny, configErr(inv.label, "empty composite has no submission class")
		}
		return resolved, nil
	default:
		return SubmitAny, configErr(inv.label, "invocation kind not bakeable")
	}
}

// Bake records inv into a secondary command buffer once, returning the
// handle later invocation trees embed via Node.
func (r *Recorder) Bake(label string, inv *Invocation) (*BakedInvocation, error) {
	class, err := concreteClass(inv)
	if err != nil {
		return nil, err
	}

	lease, err := r.ctx.acquireCommandPool(class)
	if err != nil {
		return nil, err
	}

	buffers := make([]vk.CommandBuffer, 1)
	ret := vk.AllocateCommandBuffers(r.ctx.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        lease.Value().Value(),
		Level:              vk.CommandBufferLevelSecondary,
		CommandBufferCount: 1,
	}, buffers)
	if err := checkResult(label, ret); err != nil {
		lease.Release()
		return nil, err
	}
	cmd := buffers[0]

	ret = vk.BeginCommandBuffer(cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit),
		PInheritanceInfo: []vk.CommandBufferInheritanceInfo{{
			SType: vk.StructureTypeCommandBufferInheritanceInfo,
		}},
	})
	if err := checkResult(label, ret); err != nil {
		lease.Release()
		return nil, err
	}

	rs := &recordingState{
		ctx:        r.ctx,
		cmdPools:   make(map[SubmitClass]*poolItem[SubmitClass, *commandPoolHandle]),
		cmdBuffers: map[SubmitClass]vk.CommandBuffer{class: cmd},
		bakeOnly:   true,
		timedStart: make(map[*Invocation]uint32),
		timedEnd:   make(map[*Invocation]uint32),
	}
	if err := rs.recordNode(inv); err != nil {
		lease.Release()
		return nil, err
	}

	ret = vk.EndCommandBuffer(cmd)
	if err := checkResult(label, ret); err != nil {
		lease.Release()
		return nil, err
	}

	return &BakedInvocation{
		ctx: r.ctx, label: label, class: class, source: inv,
		cmdPool: lease, cmd: cmd, sets: rs.leasedSets,
	}, nil
}

// Node wraps the baked buffer as an invocation-tree leaf: recording it
// emits one vkCmdExecuteCommands rather than re-walking the source.
func (b *BakedInvocation) Node() *Invocation {
	return &Invocation{kind: invBaked, label: b.label, class: b.class, baked: b}
}

// Destroy returns the command pool lease and descriptor sets. No
// transaction embedding this bake may still be un-waited.
func (b *BakedInvocation) Destroy() {
	for _, s := range b.sets {
		s.Release()
	}
	b.cmdPool.Release()
}
