//go:build vkhal_integration

package test

import (
	"runtime"
	"testing"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"

	vkhal "github.com/andewx/vkhal"
)

const (
	width  = 500
	height = 500
)

// TestPresentCycle drives the full frame loop against a real driver:
// window, instance, context, swapchain, clear-only render pass, present.
// Requires a display and a Vulkan ICD; build with -tags vkhal_integration.
func TestPresentCycle(t *testing.T) {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		t.Skipf("no display available: %v", err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		t.Skipf("no Vulkan loader: %v", err)
	}

	window, err := glfw.CreateWindow(width, height, "vkhal test", nil, nil)
	if err != nil {
		t.Fatalf("window: %v", err)
	}

	instance, err := vkhal.NewInstance(vkhal.InstanceConfig{
		Label:      "test-instance",
		AppName:    "vkhal-test",
		Debug:      true,
		Extensions: window.GetRequiredInstanceExtensions(),
	})
	if err != nil {
		t.Fatalf("instance: %v", err)
	}
	defer instance.Destroy()

	surfPtr, err := window.CreateWindowSurface(instance.Raw(), nil)
	if err != nil {
		t.Fatalf("surface: %v", err)
	}
	surface := vk.SurfaceFromPointer(surfPtr)

	ctx, err := instance.NewContext(vkhal.ContextConfig{
		Label:       "test-context",
		DeviceIndex: -1,
		Classes: []vkhal.SubmitClass{
			vkhal.SubmitGraphics, vkhal.SubmitCompute, vkhal.SubmitTransfer, vkhal.SubmitPresent,
		},
		Surface:          vkhal.RawSurface(surface),
		DeviceExtensions: []string{"VK_KHR_swapchain"},
	})
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	defer ctx.Destroy()

	swapchain, err := vkhal.NewSwapchain(ctx, vkhal.SwapchainConfig{
		Label:          "test-swapchain",
		Surface:        surface,
		Width:          width,
		Height:         height,
		ImageCount:     3,
		AllowedFormats: []vk.Format{vk.FormatB8g8r8a8Srgb, vk.FormatB8g8r8a8Unorm},
		ColorSpace:     vk.ColorSpaceSrgbNonlinear,
		VSync:          true,
	})
	if err != nil {
		t.Fatalf("swapchain: %v", err)
	}
	defer swapchain.Destroy()

	pass, err := vkhal.RenderPassConfig{
		Label:  "test-clear",
		Width:  swapchain.Width(),
		Height: swapchain.Height(),
		Attachments: []vkhal.AttachmentDesc{
			{Type: vkhal.AttachmentColor, Format: swapchain.Format(), Access: vkhal.AttachmentClear | vkhal.AttachmentStore},
		},
	}.Build(ctx)
	if err != nil {
		t.Fatalf("render pass: %v", err)
	}
	defer pass.Destroy()

	recorder := vkhal.NewRecorder(ctx)

	lastIdx := ^uint32(0)
	for frame := 0; frame < 60 && !window.ShouldClose(); frame++ {
		idx, _, err := swapchain.AcquireNext()
		if err != nil {
			t.Fatalf("frame %d acquire: %v", frame, err)
		}
		if frame > 0 && idx == lastIdx {
			t.Errorf("frame %d acquired the same image index %d twice in a row", frame, idx)
		}
		lastIdx = idx

		img := swapchain.Image(idx)
		clear, err := vkhal.NewRenderPassInvocation("test-frame", pass,
			[]*vkhal.Image{img}, []vkhal.ImageView{img.FullView()}, nil, nil, nil)
		if err != nil {
			t.Fatalf("frame %d invocation: %v", frame, err)
		}
		root, err := vkhal.NewComposite("test-root", []*vkhal.Invocation{
			clear,
			vkhal.NewPresent("test-present", swapchain),
		})
		if err != nil {
			t.Fatalf("frame %d composite: %v", frame, err)
		}

		txn, err := recorder.RecordAndSubmit("test-frame", root)
		if err != nil {
			t.Fatalf("frame %d submit: %v", frame, err)
		}
		if err := txn.Wait(); err != nil {
			t.Fatalf("frame %d wait: %v", frame, err)
		}
		if !txn.IsDone() {
			t.Errorf("frame %d: IsDone false after Wait", frame)
		}

		glfw.PollEvents()
	}
}
