package vkhal

import (
	vk "github.com/vulkan-go/vulkan"
)

// InstanceExtensions lists the instance extensions available on this
// platform.
func InstanceExtensions() ([]string, error) {
	var count uint32
	ret := vk.EnumerateInstanceExtensionProperties("", &count, nil)
	if err := checkResult("instance-extensions", ret); err != nil {
		return nil, err
	}
	list := make([]vk.ExtensionProperties, count)
	ret = vk.EnumerateInstanceExtensionProperties("", &count, list)
	if err := checkResult("instance-extensions", ret); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

// DeviceExtensions lists the device extensions available on gpu.
func DeviceExtensions(gpu vk.PhysicalDevice) ([]string, error) {
	var count uint32
	ret := vk.EnumerateDeviceExtensionProperties(gpu, "", &count, nil)
	if err := checkResult("device-extensions", ret); err != nil {
		return nil, err
	}
	list := make([]vk.ExtensionProperties, count)
	ret = vk.EnumerateDeviceExtensionProperties(gpu, "", &count, list)
	if err := checkResult("device-extensions", ret); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

// ValidationLayers lists the validation layers available on this
// platform.
func ValidationLayers() ([]string, error) {
	var count uint32
	ret := vk.EnumerateInstanceLayerProperties(&count, nil)
	if err := checkResult("validation-layers", ret); err != nil {
		return nil, err
	}
	list := make([]vk.LayerProperties, count)
	ret = vk.EnumerateInstanceLayerProperties(&count, list)
	if err := checkResult("validation-layers", ret); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, layer := range list {
		layer.Deref()
		names = append(names, vk.ToString(layer.LayerName[:]))
	}
	return names, nil
}

// extensionSet resolves a wanted-versus-available extension negotiation:
// the names the caller would like enabled, intersected against what the
// platform or device actually exposes. Missing wanted names are reported
// rather than failed on; only the caller knows which are load-bearing.
type extensionSet struct {
	wanted  []string
	actual  []string
	missing []string
}

func newExtensionSet(wanted, actual []string) extensionSet {
	set := extensionSet{wanted: wanted, actual: actual}
	for _, w := range wanted {
		if !containsString(actual, w) {
			set.missing = append(set.missing, w)
		}
	}
	return set
}

// Enabled returns the wanted names the platform actually has, in wanted
// order.
func (e extensionSet) Enabled() []string {
	out := make([]string, 0, len(e.wanted))
	for _, w := range e.wanted {
		if containsString(e.actual, w) {
			out = append(out, w)
		}
	}
	return out
}

func (e extensionSet) Missing() []string { return e.missing }

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
