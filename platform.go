package vkhal

import (
	"sync"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// SurfaceKind names the window-system a SurfaceSource wraps. The HAL
// never dereferences the native handles; they are carried opaquely to
// whatever per-platform glue turns them into a vk.Surface.
type SurfaceKind int

const (
	SurfaceNone SurfaceKind = iota
	SurfaceWindows
	SurfaceAndroid
	SurfaceMetal
	// SurfaceRaw wraps a vk.Surface the host application already
	// created (e.g. through GLFW's CreateWindowSurface).
	SurfaceRaw
)

func (k SurfaceKind) String() string {
	switch k {
	case SurfaceNone:
		return "none"
	case SurfaceWindows:
		return "windows"
	case SurfaceAndroid:
		return "android"
	case SurfaceMetal:
		return "metal"
	case SurfaceRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// SurfaceSource is the opaque description of where a Context may
// present to. Headless/compute-only Contexts use NoSurface.
type SurfaceSource struct {
	Kind SurfaceKind

	// windows
	HWND      unsafe.Pointer
	HInstance unsafe.Pointer

	// android
	ANativeWindow unsafe.Pointer

	// metal
	CAMetalLayer unsafe.Pointer

	// raw
	Surface vk.Surface
}

// NoSurface is the headless SurfaceSource: SubmitPresent is unavailable
// on a Context built with it.
func NoSurface() SurfaceSource {
	return SurfaceSource{Kind: SurfaceNone}
}

// WindowsSurface wraps a Win32 HWND/HINSTANCE pair.
func WindowsSurface(hwnd, hinstance unsafe.Pointer) SurfaceSource {
	return SurfaceSource{Kind: SurfaceWindows, HWND: hwnd, HInstance: hinstance}
}

// AndroidSurface wraps an ANativeWindow pointer.
func AndroidSurface(window unsafe.Pointer) SurfaceSource {
	return SurfaceSource{Kind: SurfaceAndroid, ANativeWindow: window}
}

// MetalSurface wraps a CAMetalLayer pointer.
func MetalSurface(layer unsafe.Pointer) SurfaceSource {
	return SurfaceSource{Kind: SurfaceMetal, CAMetalLayer: layer}
}

// RawSurface wraps a vk.Surface the host created through its own
// window-system glue.
func RawSurface(s vk.Surface) SurfaceSource {
	return SurfaceSource{Kind: SurfaceRaw, Surface: s}
}

// resolve turns the source into the vk.Surface the Context stores. The
// native-handle variants require the host's windowing glue to have
// registered a surface factory for the platform; vulkan-go exposes no
// portable create call, so those variants go through
// RegisterSurfaceFactory.
func (s SurfaceSource) resolve(instance vk.Instance) (vk.Surface, error) {
	switch s.Kind {
	case SurfaceNone:
		return vk.NullSurface, nil
	case SurfaceRaw:
		return s.Surface, nil
	default:
		factoryMu.Lock()
		factory := surfaceFactories[s.Kind]
		factoryMu.Unlock()
		if factory == nil {
			return vk.NullSurface, configErr(s.Kind.String(), "no surface factory registered for platform")
		}
		return factory(instance, s)
	}
}

// SurfaceFactory creates a vk.Surface from a native-handle source; one
// is registered per platform by the host's windowing glue (cmd/demo
// registers none — it uses RawSurface via GLFW).
type SurfaceFactory func(vk.Instance, SurfaceSource) (vk.Surface, error)

var (
	factoryMu        sync.Mutex
	surfaceFactories = map[SurfaceKind]SurfaceFactory{}
)

// RegisterSurfaceFactory installs the platform glue for kind. Later
// registrations replace earlier ones.
func RegisterSurfaceFactory(kind SurfaceKind, f SurfaceFactory) {
	factoryMu.Lock()
	surfaceFactories[kind] = f
	factoryMu.Unlock()
}
