package vkhal

import vk "github.com/vulkan-go/vulkan"

// InstanceConfig configures NewInstance. Extensions is the
// window-system's required instance extension list (GLFW reports these);
// Debug additionally enables validation layers and the debug-report
// callback.
type InstanceConfig struct {
	Label      string
	AppName    string
	Debug      bool
	Extensions []string
}

// ContextConfig configures Instance.NewContext. DeviceIndex selects the
// physical device by enumeration order; a negative index means "first
// device satisfying every required SubmitClass". Classes defaults to
// {graphics, compute, transfer} when empty; add SubmitPresent for a
// presenting Context and supply a Surface.
type ContextConfig struct {
	Label            string
	DeviceIndex      int
	Classes          []SubmitClass
	Surface          SurfaceSource
	DeviceExtensions []string
}

func defaultContextClasses() []SubmitClass {
	return []SubmitClass{SubmitGraphics, SubmitCompute, SubmitTransfer}
}

// BufferConfig configures Context.CreateBuffer.
type BufferConfig struct {
	Label      string
	Size       uint64
	HostAccess HostAccess
	Usage      BufferUsage
}

// Buffer presets for the common role/host-access pairings.

// StreamingBuffer is host-written and copied out of every frame.
func StreamingBuffer(label string, size uint64) BufferConfig {
	return BufferConfig{Label: label, Size: size, HostAccess: HostAccessWrite, Usage: BufferUsageTransferSrc}
}

// ReadBackBuffer receives device results for host reads.
func ReadBackBuffer(label string, size uint64) BufferConfig {
	return BufferConfig{Label: label, Size: size, HostAccess: HostAccessRead, Usage: BufferUsageTransferDst}
}

// UniformBuffer is device-read shader data, filled by transfer.
func UniformBuffer(label string, size uint64) BufferConfig {
	return BufferConfig{Label: label, Size: size, Usage: BufferUsageTransferDst | BufferUsageUniform}
}

// StorageBuffer is shader read/write data, movable in both directions.
func StorageBuffer(label string, size uint64) BufferConfig {
	return BufferConfig{Label: label, Size: size, Usage: BufferUsageTransferSrc | BufferUsageTransferDst | BufferUsageStorage}
}

// VertexBuffer holds vertex attributes, filled by transfer.
func VertexBuffer(label string, size uint64) BufferConfig {
	return BufferConfig{Label: label, Size: size, Usage: BufferUsageTransferDst | BufferUsageVertex}
}

// IndexBuffer holds draw indices, filled by transfer.
func IndexBuffer(label string, size uint64) BufferConfig {
	return BufferConfig{Label: label, Size: size, Usage: BufferUsageTransferDst | BufferUsageIndex}
}

// Build creates the Buffer on ctx.
func (cfg BufferConfig) Build(ctx *Context) (*Buffer, error) {
	return ctx.CreateBuffer(cfg.Label, cfg.Size, cfg.Usage, cfg.HostAccess)
}

// ImageConfig configures Context.CreateImage. Depth of 0 declares a 2D
// (or 1D, when Height is 1) image.
type ImageConfig struct {
	Label      string
	Width      uint32
	Height     uint32
	Depth      uint32
	Format     vk.Format
	ColorSpace vk.ColorSpace
	Usage      ImageUsage
}

func (cfg ImageConfig) Build(ctx *Context) (*Image, error) {
	return ctx.CreateImage(cfg.Label, cfg.Width, cfg.Height, cfg.Depth, cfg.Format, cfg.ColorSpace, cfg.Usage)
}

// DepthImageConfig configures Context.CreateDepthImage. DepthFormat must
// be one of the depth/depth-stencil formats.
type DepthImageConfig struct {
	Label       string
	Width       uint32
	Height      uint32
	Depth       uint32
	DepthFormat vk.Format
	Usage       ImageUsage
}

func (cfg DepthImageConfig) Build(ctx *Context) (*DepthImage, error) {
	return ctx.CreateDepthImage(cfg.Label, cfg.Width, cfg.Height, cfg.Depth, cfg.DepthFormat, cfg.Usage)
}

// RenderPassConfig configures NewRenderPass.
type RenderPassConfig struct {
	Label       string
	Width       uint32
	Height      uint32
	Attachments []AttachmentDesc
}

func (cfg RenderPassConfig) Build(ctx *Context) (*RenderPass, error) {
	return NewRenderPass(ctx, cfg.Label, cfg.Attachments, cfg.Width, cfg.Height)
}

// ComputeTaskConfig configures NewComputeTask.
type ComputeTaskConfig struct {
	Label         string
	EntryName     string
	Code          []byte
	ResourceTypes []ResourceType
	Workgroup     WorkgroupSize
}

func (cfg ComputeTaskConfig) Build(ctx *Context) (*ComputeTask, error) {
	return NewComputeTask(ctx, cfg.Label, cfg.Code, cfg.EntryName, cfg.ResourceTypes, cfg.Workgroup)
}

// GraphicsTaskConfig configures NewGraphicsTask. Vertex input is
// declared per task; the pipeline needs the attribute/binding layout
// up front even though the buffers themselves bind at draw time.
type GraphicsTaskConfig struct {
	Label          string
	VertEntry      string
	VertCode       []byte
	FragEntry      string
	FragCode       []byte
	Topology       Topology
	ResourceTypes  []ResourceType
	VertexAttrs    []VertexAttribute
	VertexBindings []VertexBinding
}

func (cfg GraphicsTaskConfig) Build(ctx *Context, rp *RenderPass) (*GraphicsTask, error) {
	vertEntry := cfg.VertEntry
	if vertEntry == "" {
		vertEntry = "main"
	}
	fragEntry := cfg.FragEntry
	if fragEntry == "" {
		fragEntry = "main"
	}
	return NewGraphicsTask(ctx, cfg.Label, rp, shaderStage{cfg.VertCode, vertEntry}, shaderStage{cfg.FragCode, fragEntry},
		cfg.Topology, cfg.VertexAttrs, cfg.VertexBindings, cfg.ResourceTypes)
}
