package vkhal

import (
	"math/bits"

	vk "github.com/vulkan-go/vulkan"
)

// queueBinding is the queue handle plus the family index it was vended
// from, kept together because every submit and every command-pool
// allocation needs both.
type queueBinding struct {
	queue  vk.Queue
	family uint32
}

// requiredFlagsFor maps a SubmitClass to the vk.QueueFlagBits every
// candidate family must carry. SubmitPresent has no flag requirement —
// presentation support is a per-surface query, handled separately in
// selectPresentFamily. SubmitAny accepts any family.
func requiredFlagsFor(class SubmitClass) vk.QueueFlagBits {
	switch class {
	case SubmitGraphics:
		return vk.QueueGraphicsBit
	case SubmitCompute:
		return vk.QueueComputeBit
	case SubmitTransfer:
		return vk.QueueTransferBit
	default:
		return 0
	}
}

// selectQueueFamily picks, among families whose flags are a superset of
// required, the one exposing the most capability bits — so a single
// general-purpose family absorbs several SubmitClasses on devices
// without dedicated queues — breaking ties by the lowest family index.
func selectQueueFamily(families []vk.QueueFamilyProperties, required vk.QueueFlagBits) (uint32, bool) {
	best := -1
	bestPopcount := -1
	for i, fam := range families {
		flags := vk.QueueFlagBits(fam.QueueFlags)
		if flags&required != required {
			continue
		}
		pc := bits.OnesCount32(uint32(flags))
		if pc > bestPopcount {
			bestPopcount = pc
			best = i
		}
	}
	if best < 0 {
		return 0, false
	}
	return uint32(best), true
}

// selectPresentFamily finds the first family that can present to
// surface; unlike the capability classes there is no richest-family
// preference, presentation support is binary.
func selectPresentFamily(physical vk.PhysicalDevice, families []vk.QueueFamilyProperties, surface vk.Surface) (uint32, bool) {
	for i := range families {
		var supported vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(physical, uint32(i), surface, &supported)
		if supported.B() {
			return uint32(i), true
		}
	}
	return 0, false
}

// assignQueueFamilies resolves one family index per requested class, or
// reports the first class the device cannot serve.
func assignQueueFamilies(gpu vk.PhysicalDevice, surface vk.Surface, required []SubmitClass) (map[SubmitClass]uint32, SubmitClass, bool) {
	var famCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &famCount, nil)
	families := make([]vk.QueueFamilyProperties, famCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &famCount, families)
	for i := range families {
		families[i].Deref()
	}

	assign := make(map[SubmitClass]uint32, len(required))
	for _, class := range required {
		var idx uint32
		var has bool
		if class == SubmitPresent {
			idx, has = selectPresentFamily(gpu, families, surface)
		} else {
			idx, has = selectQueueFamily(families, requiredFlagsFor(class))
		}
		if !has {
			return nil, class, false
		}
		assign[class] = idx
	}
	return assign, SubmitAny, true
}
