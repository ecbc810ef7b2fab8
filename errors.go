package vkhal

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// Kind identifies the taxonomy of an Error, independent of the label or
// the underlying vk.Result that may have triggered it.
type Kind int

const (
	// KindGpu wraps a raw vk.Result failure code, surfaced verbatim.
	KindGpu Kind = iota
	// KindUnsupportedSubmitClass means no queue family on this device
	// satisfies the requested SubmitClass.
	KindUnsupportedSubmitClass
	// KindNoCompatibleSurfaceFormat means a swapchain could not match
	// any of its allowed formats against the surface.
	KindNoCompatibleSurfaceFormat
	// KindBufferTooSmall is a precondition failure on a buffer copy or map.
	KindBufferTooSmall
	// KindImageTooSmall is a precondition failure on an image copy or map.
	KindImageTooSmall
	// KindInvalidConfig covers zero workgroup size, >1 depth attachment,
	// graphics invocations outside a render pass, depth images used as
	// transfer endpoints, and similar caller-construction errors.
	KindInvalidConfig
	// KindTimingUnsupported means timing was requested but the device
	// has no timestamp support; callers see this only via GetTimeUs
	// returning 0 after a warn-level log, it is not normally surfaced.
	KindTimingUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindGpu:
		return "Gpu"
	case KindUnsupportedSubmitClass:
		return "UnsupportedSubmitClass"
	case KindNoCompatibleSurfaceFormat:
		return "NoCompatibleSurfaceFormat"
	case KindBufferTooSmall:
		return "BufferTooSmall"
	case KindImageTooSmall:
		return "ImageTooSmall"
	case KindInvalidConfig:
		return "InvalidConfig"
	case KindTimingUnsupported:
		return "TimingUnsupported"
	default:
		return "Unknown"
	}
}

// Error carries the label of the offending resource/task/invocation so a
// caller can diagnose which object a failure belongs to.
type Error struct {
	Kind   Kind
	Label  string
	Result vk.Result
	Msg    string
}

func (e *Error) Error() string {
	if e.Label == "" {
		if e.Kind == KindGpu {
			return fmt.Sprintf("vkhal: %s: result=%d", e.Kind, e.Result)
		}
		return fmt.Sprintf("vkhal: %s: %s", e.Kind, e.Msg)
	}
	if e.Kind == KindGpu {
		return fmt.Sprintf("vkhal: %s %q: result=%d", e.Kind, e.Label, e.Result)
	}
	return fmt.Sprintf("vkhal: %s %q: %s", e.Kind, e.Label, e.Msg)
}

func gpuErr(label string, ret vk.Result) *Error {
	return &Error{Kind: KindGpu, Label: label, Result: ret}
}

func configErr(label, msg string) *Error {
	return &Error{Kind: KindInvalidConfig, Label: label, Msg: msg}
}

func isError(ret vk.Result) bool {
	return ret != vk.Success
}

// checkResult converts a vk.Result into an *Error carrying label, or nil
// on vk.Success.
func checkResult(label string, ret vk.Result) error {
	if isError(ret) {
		return gpuErr(label, ret)
	}
	return nil
}

// orPanic is for call sites where failure can only mean a programmer
// error (cache invariants, pool bookkeeping), not a condition callers
// are expected to recover from.
func orPanic(err error) {
	if err != nil {
		panic(err)
	}
}
