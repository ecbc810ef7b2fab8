package vkhal

import (
	"encoding/binary"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// shaderWords repacks a SPIR-V byte blob into the uint32 words
// vk.ShaderModuleCreateInfo.PCode expects.
func shaderWords(code []byte) []uint32 {
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words
}

func createShaderModule(device vk.Device, label string, code []byte) (vk.ShaderModule, error) {
	var module vk.ShaderModule
	ret := vk.CreateShaderModule(device, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    shaderWords(code),
	}, nil, &module)
	if err := checkResult(label, ret); err != nil {
		return vk.NullShaderModule, err
	}
	return module, nil
}

// WorkgroupSize is a compute Task's local work-group dimensions, wired
// into the shader as specialization constants 0/1/2 rather than baked
// into the SPIR-V at compile time — so the same shader binary serves
// several workgroup shapes.
type WorkgroupSize struct {
	X, Y, Z uint32
}

func (w WorkgroupSize) zero() bool { return w.X == 0 || w.Y == 0 || w.Z == 0 }

// ComputeTask is an immutable, reusable compute pipeline: one SPIR-V
// module, one entry point, the ordered resource-type sequence its
// descriptor set binds, and a workgroup size applied via specialization
// constants.
type ComputeTask struct {
	ctx            *Context
	label          string
	resourceTypes  []ResourceType
	workgroup      WorkgroupSize
	shaderModule   *owned[vk.ShaderModule]
	descSetLayout  vk.DescriptorSetLayout
	descSetSig     string
	pipelineLayout *pipelineLayoutHandle
	pipeline       *pipelineHandle
}

// NewComputeTask builds the pipeline immediately; task construction is
// the point pipeline compilation happens, not first use.
func NewComputeTask(ctx *Context, label string, spirv []byte, entryPoint string, resourceTypes []ResourceType, workgroup WorkgroupSize) (*ComputeTask, error) {
	if workgroup.zero() {
		return nil, configErr(label, "zero workgroup size")
	}

	module, err := createShaderModule(ctx.device, label, spirv)
	if err != nil {
		return nil, err
	}
	moduleHandle := newOwned(label, module, func(m vk.ShaderModule) { vk.DestroyShaderModule(ctx.device, m, nil) })

	layout, sig, err := ctx.descriptorSetLayout(resourceTypes, vk.ShaderStageFlags(vk.ShaderStageComputeBit))
	if err != nil {
		moduleHandle.Release()
		return nil, err
	}

	var pipelineLayout vk.PipelineLayout
	ret := vk.CreatePipelineLayout(ctx.device, &vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{layout},
	}, nil, &pipelineLayout)
	if err := checkResult(label, ret); err != nil {
		moduleHandle.Release()
		return nil, err
	}
	pipelineLayoutHandle := newPipelineLayoutHandle(ctx.device, label, pipelineLayout)

	entries := []vk.SpecializationMapEntry{
		{ConstantID: 0, Offset: 0, Size: 4},
		{ConstantID: 1, Offset: 4, Size: 4},
		{ConstantID: 2, Offset: 8, Size: 4},
	}
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], workgroup.X)
	binary.LittleEndian.PutUint32(data[4:8], workgroup.Y)
	binary.LittleEndian.PutUint32(data[8:12], workgroup.Z)
	spec := vk.SpecializationInfo{
		MapEntryCount: 3,
		PMapEntries:   entries,
		DataSize:      uint(len(data)),
		PData:         unsafe.Pointer(&data[0]),
	}

	pipelines := make([]vk.Pipeline, 1)
	ret = vk.CreateComputePipelines(ctx.device, vk.NullPipelineCache, 1, []vk.ComputePipelineCreateInfo{{
		SType: vk.StructureTypeComputePipelineCreateInfo,
		Stage: vk.PipelineShaderStageCreateInfo{
			SType:               vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:               vk.ShaderStageComputeBit,
			Module:              module,
			PName:               safeName(entryPoint),
			PSpecializationInfo: []vk.SpecializationInfo{spec},
		},
		Layout: pipelineLayout,
	}}, nil, pipelines)
	if err := checkResult(label, ret); err != nil {
		pipelineLayoutHandle.Release()
		moduleHandle.Release()
		return nil, err
	}

	return &ComputeTask{
		ctx: ctx, label: label, resourceTypes: resourceTypes, workgroup: workgroup,
		shaderModule: moduleHandle, descSetLayout: layout, descSetSig: sig,
		pipelineLayout: pipelineLayoutHandle, pipeline: newPipelineHandle(ctx.device, label, pipelines[0]),
	}, nil
}

func safeName(s string) string { return s + "\x00" }

func (t *ComputeTask) Destroy() {
	t.pipeline.Release()
	t.pipelineLayout.Release()
	t.shaderModule.Release()
}

// VertexAttribute describes one shader-visible input slot. The vertex
// input layout is declared per task: a conformant pipeline must know
// its attribute descriptions up front even though the buffers
// themselves bind at draw time.
type VertexAttribute struct {
	Location uint32
	Binding  uint32
	Format   vk.Format
	Offset   uint32
}

// VertexBinding describes one vertex-buffer binding's stride and rate.
type VertexBinding struct {
	Binding   uint32
	Stride    uint32
	PerVertex bool // false means per-instance
}

// GraphicsTask is an immutable, reusable graphics pipeline owned by a
// RenderPass: vertex+fragment SPIR-V, topology, vertex input layout, and
// the resource-type sequence its descriptor set binds. Fixed-function
// state is not configurable: no culling, clockwise front face, blending
// off with an RGBA write mask, depth test+write on with a <= compare.
type GraphicsTask struct {
	ctx            *Context
	label          string
	renderPass     *RenderPass
	resourceTypes  []ResourceType
	topology       Topology
	vertModule     *owned[vk.ShaderModule]
	fragModule     *owned[vk.ShaderModule]
	descSetLayout  vk.DescriptorSetLayout
	descSetSig     string
	pipelineLayout *pipelineLayoutHandle
	pipeline       *pipelineHandle
}

func vkTopology(t Topology) (vk.PrimitiveTopology, vk.PolygonMode) {
	switch t {
	case TopologyPoint:
		return vk.PrimitiveTopologyPointList, vk.PolygonModeFill
	case TopologyLine:
		return vk.PrimitiveTopologyLineList, vk.PolygonModeFill
	case TopologyTriangleWireframe:
		return vk.PrimitiveTopologyTriangleList, vk.PolygonModeLine
	default:
		return vk.PrimitiveTopologyTriangleList, vk.PolygonModeFill
	}
}

// shaderStage pairs a SPIR-V blob with its entry-point name.
type shaderStage struct {
	code  []byte
	entry string
}

// NewGraphicsTask compiles a graphics pipeline bound to rp's subpass 0.
func NewGraphicsTask(ctx *Context, label string, rp *RenderPass, vert, frag shaderStage, topology Topology, attrs []VertexAttribute, bindings []VertexBinding, resourceTypes []ResourceType) (*GraphicsTask, error) {
	vertModule, err := createShaderModule(ctx.device, label+":vert", vert.code)
	if err != nil {
		return nil, err
	}
	vertHandle := newOwned(label+":vert", vertModule, func(m vk.ShaderModule) { vk.DestroyShaderModule(ctx.device, m, nil) })

	fragModule, err := createShaderModule(ctx.device, label+":frag", frag.code)
	if err != nil {
		vertHandle.Release()
		return nil, err
	}
	fragHandle := newOwned(label+":frag", fragModule, func(m vk.ShaderModule) { vk.DestroyShaderModule(ctx.device, m, nil) })

	layout, sig, err := ctx.descriptorSetLayout(resourceTypes, vk.ShaderStageFlags(vk.ShaderStageVertexBit|vk.ShaderStageFragmentBit))
	if err != nil {
		fragHandle.Release()
		vertHandle.Release()
		return nil, err
	}

	var pipelineLayout vk.PipelineLayout
	ret := vk.CreatePipelineLayout(ctx.device, &vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{layout},
	}, nil, &pipelineLayout)
	if err := checkResult(label, ret); err != nil {
		fragHandle.Release()
		vertHandle.Release()
		return nil, err
	}
	pipelineLayoutHandle := newPipelineLayoutHandle(ctx.device, label, pipelineLayout)

	vkAttrs := make([]vk.VertexInputAttributeDescription, len(attrs))
	for i, a := range attrs {
		vkAttrs[i] = vk.VertexInputAttributeDescription{Location: a.Location, Binding: a.Binding, Format: a.Format, Offset: a.Offset}
	}
	vkBindings := make([]vk.VertexInputBindingDescription, len(bindings))
	for i, b := range bindings {
		rate := vk.VertexInputRateVertex
		if !b.PerVertex {
			rate = vk.VertexInputRateInstance
		}
		vkBindings[i] = vk.VertexInputBindingDescription{Binding: b.Binding, Stride: b.Stride, InputRate: rate}
	}

	topo, polygonMode := vkTopology(topology)

	colorBlendAttachment := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
		BlendEnable:    vk.False,
	}

	colorCount := 0
	for _, a := range rp.attachments {
		if a.Type == AttachmentColor {
			colorCount++
		}
	}
	blendStates := make([]vk.PipelineColorBlendAttachmentState, colorCount)
	for i := range blendStates {
		blendStates[i] = colorBlendAttachment
	}

	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}

	stages := []vk.PipelineShaderStageCreateInfo{
		{SType: vk.StructureTypePipelineShaderStageCreateInfo, Stage: vk.ShaderStageVertexBit, Module: vertModule, PName: safeName(vert.entry)},
		{SType: vk.StructureTypePipelineShaderStageCreateInfo, Stage: vk.ShaderStageFragmentBit, Module: fragModule, PName: safeName(frag.entry)},
	}

	pipelines := make([]vk.Pipeline, 1)
	ret = vk.CreateGraphicsPipelines(ctx.device, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{{
		SType:      vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount: uint32(len(stages)),
		PStages:    stages,
		PVertexInputState: &vk.PipelineVertexInputStateCreateInfo{
			SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
			VertexBindingDescriptionCount:   uint32(len(vkBindings)),
			PVertexBindingDescriptions:      vkBindings,
			VertexAttributeDescriptionCount: uint32(len(vkAttrs)),
			PVertexAttributeDescriptions:    vkAttrs,
		},
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: topo,
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode: polygonMode,
			CullMode:    vk.CullModeFlags(vk.CullModeNone),
			FrontFace:   vk.FrontFaceClockwise,
			LineWidth:   1.0,
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
			MinSampleShading:     1.0,
		},
		PDepthStencilState: &vk.PipelineDepthStencilStateCreateInfo{
			SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
			DepthTestEnable:  vk.True,
			DepthWriteEnable: vk.True,
			DepthCompareOp:   vk.CompareOpLessOrEqual,
			MaxDepthBounds:   1.0,
		},
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			AttachmentCount: uint32(len(blendStates)),
			PAttachments:    blendStates,
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: uint32(len(dynamicStates)),
			PDynamicStates:    dynamicStates,
		},
		Layout:     pipelineLayout,
		RenderPass: rp.raw(),
		Subpass:    0,
	}}, nil, pipelines)
	if err := checkResult(label, ret); err != nil {
		pipelineLayoutHandle.Release()
		fragHandle.Release()
		vertHandle.Release()
		return nil, err
	}

	return &GraphicsTask{
		ctx: ctx, label: label, renderPass: rp, resourceTypes: resourceTypes, topology: topology,
		vertModule: vertHandle, fragModule: fragHandle, descSetLayout: layout, descSetSig: sig,
		pipelineLayout: pipelineLayoutHandle, pipeline: newPipelineHandle(ctx.device, label, pipelines[0]),
	}, nil
}

func (t *GraphicsTask) Destroy() {
	t.pipeline.Release()
	t.pipelineLayout.Release()
	t.fragModule.Release()
	t.vertModule.Release()
}
