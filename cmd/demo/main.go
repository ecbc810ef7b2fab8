// Command demo opens a window and runs the full frame loop end to end:
// instance, context, swapchain, a clear-only render pass whose color
// cycles through hues, and a present per frame. It is the smoke path
// for driving the HAL against a real driver.
package main

import (
	"log"
	"math"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"

	vkhal "github.com/andewx/vkhal"
)

const (
	width  = 640
	height = 480
	frames = 600
)

func main() {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		log.Fatalf("glfw: %v", err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		log.Fatalf("vulkan loader: %v", err)
	}

	window, err := glfw.CreateWindow(width, height, "vkhal demo", nil, nil)
	if err != nil {
		log.Fatalf("window: %v", err)
	}

	instance, err := vkhal.NewInstance(vkhal.InstanceConfig{
		Label:      "demo-instance",
		AppName:    "vkhal-demo",
		Extensions: window.GetRequiredInstanceExtensions(),
	})
	if err != nil {
		log.Fatalf("instance: %v", err)
	}
	defer instance.Destroy()

	surfPtr, err := window.CreateWindowSurface(instance.Raw(), nil)
	if err != nil {
		log.Fatalf("surface: %v", err)
	}
	surface := vk.SurfaceFromPointer(surfPtr)

	ctx, err := instance.NewContext(vkhal.ContextConfig{
		Label:       "demo-context",
		DeviceIndex: -1,
		Classes: []vkhal.SubmitClass{
			vkhal.SubmitGraphics, vkhal.SubmitCompute, vkhal.SubmitTransfer, vkhal.SubmitPresent,
		},
		Surface:          vkhal.RawSurface(surface),
		DeviceExtensions: []string{"VK_KHR_swapchain"},
	})
	if err != nil {
		log.Fatalf("context: %v", err)
	}
	defer ctx.Destroy()

	swapchain, err := vkhal.NewSwapchain(ctx, vkhal.SwapchainConfig{
		Label:          "demo-swapchain",
		Surface:        surface,
		Width:          width,
		Height:         height,
		ImageCount:     3,
		AllowedFormats: []vk.Format{vk.FormatB8g8r8a8Srgb, vk.FormatB8g8r8a8Unorm},
		ColorSpace:     vk.ColorSpaceSrgbNonlinear,
		VSync:          true,
	})
	if err != nil {
		log.Fatalf("swapchain: %v", err)
	}
	defer swapchain.Destroy()

	pass, err := vkhal.RenderPassConfig{
		Label:  "demo-clear",
		Width:  swapchain.Width(),
		Height: swapchain.Height(),
		Attachments: []vkhal.AttachmentDesc{
			{Type: vkhal.AttachmentColor, Format: swapchain.Format(), Access: vkhal.AttachmentClear | vkhal.AttachmentStore},
		},
	}.Build(ctx)
	if err != nil {
		log.Fatalf("render pass: %v", err)
	}
	defer pass.Destroy()

	recorder := vkhal.NewRecorder(ctx)

	for frame := 0; frame < frames && !window.ShouldClose(); frame++ {
		idx, rebuilt, err := swapchain.AcquireNext()
		if err != nil {
			log.Fatalf("acquire: %v", err)
		}
		if rebuilt {
			pass.Destroy()
			pass, err = vkhal.RenderPassConfig{
				Label:  "demo-clear",
				Width:  swapchain.Width(),
				Height: swapchain.Height(),
				Attachments: []vkhal.AttachmentDesc{
					{Type: vkhal.AttachmentColor, Format: swapchain.Format(), Access: vkhal.AttachmentClear | vkhal.AttachmentStore},
				},
			}.Build(ctx)
			if err != nil {
				log.Fatalf("render pass rebuild: %v", err)
			}
		}

		hue := float64(frame) / 90.0
		pass.SetClearColor(0, [4]float32{
			float32(0.5 + 0.5*math.Sin(hue)),
			float32(0.5 + 0.5*math.Sin(hue+2.1)),
			float32(0.5 + 0.5*math.Sin(hue+4.2)),
			1,
		})

		img := swapchain.Image(idx)
		clear, err := vkhal.NewRenderPassInvocation("demo-frame", pass,
			[]*vkhal.Image{img}, []vkhal.ImageView{img.FullView()}, nil, nil, nil)
		if err != nil {
			log.Fatalf("frame invocation: %v", err)
		}
		root, err := vkhal.NewComposite("demo-root", []*vkhal.Invocation{
			clear,
			vkhal.NewPresent("demo-present", swapchain),
		})
		if err != nil {
			log.Fatalf("frame composite: %v", err)
		}

		txn, err := recorder.RecordAndSubmit("demo-frame", root)
		if err != nil {
			log.Fatalf("submit: %v", err)
		}
		if err := txn.Wait(); err != nil {
			log.Fatalf("wait: %v", err)
		}

		glfw.PollEvents()
	}
}
