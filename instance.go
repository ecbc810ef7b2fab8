package vkhal

import (
	"log"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// Instance owns the vk.Instance every Context hangs off. There is no
// process-wide singleton; applications create one explicitly and pass
// it to NewContext, which keeps multi-instance setups (offscreen tools,
// test harnesses) possible without hidden state.
type Instance struct {
	log           *loggers
	handle        *instanceHandle
	debugCallback vk.DebugReportCallback
	appName       string
}

// defaultValidationLayers are requested when InstanceConfig.Debug is
// set; any the platform lacks are logged and skipped.
var defaultValidationLayers = []string{
	"VK_LAYER_KHRONOS_validation",
}

// NewInstance creates the vk.Instance from cfg, negotiating extensions
// and (when cfg.Debug) validation layers against what the platform
// exposes. vk.Init (loader setup) must have been called by the host
// application before this, since loader wiring is per-platform glue the
// HAL stays out of.
func NewInstance(cfg InstanceConfig) (*Instance, error) {
	logs := newLoggers()

	actualExt, err := InstanceExtensions()
	if err != nil {
		return nil, err
	}
	extSet := newExtensionSet(cfg.Extensions, actualExt)
	if missing := extSet.Missing(); len(missing) > 0 {
		logs.warnf("instance %q: missing %d requested instance extensions: %v", cfg.Label, len(missing), missing)
	}
	extensions := extSet.Enabled()

	var layers []string
	if cfg.Debug {
		actualLayers, err := ValidationLayers()
		if err != nil {
			return nil, err
		}
		laySet := newExtensionSet(defaultValidationLayers, actualLayers)
		if missing := laySet.Missing(); len(missing) > 0 {
			logs.warnf("instance %q: missing validation layers: %v", cfg.Label, missing)
		}
		layers = laySet.Enabled()
		extensions = append(extensions, "VK_EXT_debug_report")
	}

	var instance vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
			ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
			PApplicationName:   safeName(cfg.AppName),
			PEngineName:        safeName("vkhal"),
		},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     safeStrings(layers),
	}, nil, &instance)
	if err := checkResult(cfg.Label, ret); err != nil {
		return nil, err
	}
	vk.InitInstance(instance)

	inst := &Instance{
		log:     logs,
		handle:  newInstanceHandle(cfg.Label, instance),
		appName: cfg.AppName,
	}

	if cfg.Debug {
		ret := vk.CreateDebugReportCallback(instance, &vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit),
			PfnCallback: debugReportFunc,
		}, nil, &inst.debugCallback)
		if isError(ret) {
			logs.warnf("instance %q: debug requested but callback registration failed: %d", cfg.Label, ret)
		}
	}

	return inst, nil
}

// Raw exposes the vk.Instance for surface-creation glue (GLFW, platform
// shims) that lives outside the HAL.
func (i *Instance) Raw() vk.Instance { return i.handle.Value() }

// Destroy releases the debug callback (if any) and the instance. Every
// Context created from this Instance must be destroyed first.
func (i *Instance) Destroy() {
	if i.debugCallback != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(i.handle.Value(), i.debugCallback, nil)
	}
	i.handle.Release()
}

func debugReportFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		log.Printf("vkhal-debug ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		log.Printf("vkhal-debug WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		log.Printf("vkhal-debug: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
