package vkhal

import (
	"fmt"
	"sync"

	vk "github.com/vulkan-go/vulkan"
)

// Context is the HAL's central object: one logical device, its
// per-SubmitClass queues, its resource caches (samplers, descriptor-set
// layouts), and its lifetime-managed pools (descriptor sets, command
// pools, query pools, recycled fences — framebuffers are owned per
// RenderPass, see renderpass.go).
type Context struct {
	log            *loggers
	label          string
	instance       vk.Instance
	physicalDevice vk.PhysicalDevice
	memProps       vk.PhysicalDeviceMemoryProperties
	deviceProps    vk.PhysicalDeviceProperties
	device         vk.Device
	allocator      Allocator
	surface        vk.Surface // NullSurface for headless/compute-only contexts

	queues map[SubmitClass]queueBinding

	samplerMu sync.Mutex
	samplers  map[SamplerKind]*samplerHandle

	descLayoutMu sync.Mutex
	descLayouts  map[string]*descriptorSetLayoutHandle // keyed by resource-type signature, append-only

	descSetPool *pool[string, vk.DescriptorSet]
	descPools   map[string][]*descriptorPoolHandle // backing vk.DescriptorPool objects per layout signature
	descPoolMu  sync.Mutex

	cmdPoolPool *pool[SubmitClass, *commandPoolHandle]

	queryPoolPool *pool[uint32, *queryPoolHandle] // keyed by query count

	fences *fenceManager

	timestampPeriod float32
}

// NewContext selects a physical device per cfg, creates the logical
// device with one queue per distinct family selected, and builds the
// Context's caches and pools. With cfg.Surface of kind SurfaceNone the
// Context is headless and SubmitPresent must not appear in cfg.Classes.
func (inst *Instance) NewContext(cfg ContextConfig) (*Context, error) {
	log := inst.log
	required := cfg.Classes
	if len(required) == 0 {
		required = defaultContextClasses()
	}

	surface, err := cfg.Surface.resolve(inst.Raw())
	if err != nil {
		return nil, err
	}

	var gpuCount uint32
	vk.EnumeratePhysicalDevices(inst.Raw(), &gpuCount, nil)
	if gpuCount == 0 {
		return nil, configErr(cfg.Label, "no physical devices available")
	}
	gpus := make([]vk.PhysicalDevice, gpuCount)
	vk.EnumeratePhysicalDevices(inst.Raw(), &gpuCount, gpus)

	var chosen vk.PhysicalDevice
	var chosenFamilies map[SubmitClass]uint32
	found := false

	if cfg.DeviceIndex >= 0 {
		if cfg.DeviceIndex >= int(gpuCount) {
			return nil, configErr(cfg.Label, fmt.Sprintf("device index %d out of range, %d device(s) present", cfg.DeviceIndex, gpuCount))
		}
		gpu := gpus[cfg.DeviceIndex]
		assign, missing, ok := assignQueueFamilies(gpu, surface, required)
		if !ok {
			return nil, &Error{Kind: KindUnsupportedSubmitClass, Label: cfg.Label, Msg: missing.String()}
		}
		chosen, chosenFamilies, found = gpu, assign, true
	} else {
		for _, gpu := range gpus {
			if assign, _, ok := assignQueueFamilies(gpu, surface, required); ok {
				chosen, chosenFamilies, found = gpu, assign, true
				break
			}
		}
	}
	if !found {
		return nil, &Error{Kind: KindUnsupportedSubmitClass, Label: cfg.Label, Msg: fmt.Sprintf("no device satisfies submit classes %v", required)}
	}

	var memProps vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(chosen, &memProps)
	memProps.Deref()

	var devProps vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(chosen, &devProps)
	devProps.Deref()
	devProps.Limits.Deref()

	distinctFamilies := map[uint32]bool{}
	for _, f := range chosenFamilies {
		distinctFamilies[f] = true
	}
	queueInfos := make([]vk.DeviceQueueCreateInfo, 0, len(distinctFamilies))
	priority := float32(1.0)
	for fam := range distinctFamilies {
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: fam,
			QueueCount:       1,
			PQueuePriorities: []float32{priority},
		})
	}

	extSet := newExtensionSet(cfg.DeviceExtensions, mustDeviceExtensions(chosen))
	if missing := extSet.Missing(); len(missing) > 0 {
		log.warnf("context %q: missing requested device extensions: %v", cfg.Label, missing)
	}
	deviceExtensions := extSet.Enabled()

	var device vk.Device
	ret := vk.CreateDevice(chosen, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(deviceExtensions)),
		PpEnabledExtensionNames: safeStrings(deviceExtensions),
	}, nil, &device)
	if err := checkResult(cfg.Label, ret); err != nil {
		return nil, err
	}

	queues := make(map[SubmitClass]queueBinding, len(chosenFamilies))
	for class, fam := range chosenFamilies {
		var q vk.Queue
		vk.GetDeviceQueue(device, fam, 0, &q)
		queues[class] = queueBinding{queue: q, family: fam}
	}

	ctx := &Context{
		log:             log,
		label:           cfg.Label,
		instance:        inst.Raw(),
		physicalDevice:  chosen,
		memProps:        memProps,
		deviceProps:     devProps,
		device:          device,
		surface:         surface,
		allocator:       newDirectAllocator(memProps),
		queues:          queues,
		samplers:        make(map[SamplerKind]*samplerHandle),
		descLayouts:     make(map[string]*descriptorSetLayoutHandle),
		descSetPool:     newPool[string, vk.DescriptorSet](),
		descPools:       make(map[string][]*descriptorPoolHandle),
		cmdPoolPool:     newPool[SubmitClass, *commandPoolHandle](),
		queryPoolPool:   newPool[uint32, *queryPoolHandle](),
		fences:          newFenceManager(device),
		timestampPeriod: devProps.Limits.TimestampPeriod,
	}
	return ctx, nil
}

// mustDeviceExtensions wraps enumeration for negotiation; an
// enumeration failure degrades to "nothing available" since the create
// call will surface the real error anyway.
func mustDeviceExtensions(gpu vk.PhysicalDevice) []string {
	names, err := DeviceExtensions(gpu)
	if err != nil {
		return nil
	}
	return names
}

// safeStrings NUL-terminates every element; vulkan-go passes string
// slices to C verbatim.
func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s + "\x00"
	}
	return out
}

// Device exposes the logical device for callers that need to build
// additional raw Vulkan objects the HAL doesn't wrap (e.g. shader
// modules, see task.go).
func (c *Context) Device() vk.Device { return c.device }

// QueueFamily reports the family index backing class, or false if this
// Context was not built with that class in its required set.
func (c *Context) QueueFamily(class SubmitClass) (uint32, bool) {
	b, ok := c.queues[class]
	return b.family, ok
}

func (c *Context) queueFor(class SubmitClass) (vk.Queue, uint32, error) {
	b, ok := c.queues[class]
	if !ok {
		return nil, 0, &Error{Kind: KindUnsupportedSubmitClass, Msg: class.String()}
	}
	return b.queue, b.family, nil
}

// Sampler returns the cached vk.Sampler for kind, creating it on first
// use. Only the combinations an application actually binds are ever
// built.
func (c *Context) Sampler(kind SamplerKind) (vk.Sampler, error) {
	c.samplerMu.Lock()
	defer c.samplerMu.Unlock()
	if h, ok := c.samplers[kind]; ok {
		return h.Value(), nil
	}
	info := samplerCreateInfo(kind)
	var s vk.Sampler
	ret := vk.CreateSampler(c.device, &info, nil, &s)
	if err := checkResult(kind.String(), ret); err != nil {
		return vk.NullSampler, err
	}
	c.samplers[kind] = newSamplerHandle(c.device, kind.String(), s)
	return s, nil
}

// descriptorSetLayoutSignature derives a cache key from an ordered
// resource-type sequence; two tasks declaring the same sequence share
// one layout.
func descriptorSetLayoutSignature(types []ResourceType) string {
	buf := make([]byte, len(types))
	for i, t := range types {
		buf[i] = byte(t)
	}
	return string(buf)
}

func descriptorTypeFor(rt ResourceType) vk.DescriptorType {
	switch rt {
	case ResourceUniformBuffer:
		return vk.DescriptorTypeUniformBuffer
	case ResourceStorageBuffer:
		return vk.DescriptorTypeStorageBuffer
	case ResourceSampledImage:
		return vk.DescriptorTypeCombinedImageSampler
	case ResourceStorageImage:
		return vk.DescriptorTypeStorageImage
	default:
		return vk.DescriptorTypeUniformBuffer
	}
}

// descriptorSetLayout returns the cached layout for types, building and
// inserting it on first request. The cache is append-only for the
// Context's lifetime; layouts are never evicted since the number of
// distinct signatures an application uses is bounded by its task count.
func (c *Context) descriptorSetLayout(types []ResourceType, stages vk.ShaderStageFlags) (vk.DescriptorSetLayout, string, error) {
	sig := descriptorSetLayoutSignature(types)
	c.descLayoutMu.Lock()
	defer c.descLayoutMu.Unlock()
	if h, ok := c.descLayouts[sig]; ok {
		return h.Value(), sig, nil
	}
	bindings := make([]vk.DescriptorSetLayoutBinding, len(types))
	for i, t := range types {
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         uint32(i),
			DescriptorType:  descriptorTypeFor(t),
			DescriptorCount: 1,
			StageFlags:      stages,
		}
	}
	var layout vk.DescriptorSetLayout
	ret := vk.CreateDescriptorSetLayout(c.device, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}, nil, &layout)
	if err := checkResult(sig, ret); err != nil {
		return vk.NullDescriptorSetLayout, "", err
	}
	c.descLayouts[sig] = newDescriptorSetLayoutHandle(c.device, sig, layout)
	return layout, sig, nil
}

// Each vk.DescriptorPool backs a batch of sets rather than one, so a
// steady stream of identical dispatches stops allocating pools once the
// free list covers the in-flight window.
const descriptorPoolBatchSize = 16

func descriptorPoolSizesFor(types []ResourceType) []vk.DescriptorPoolSize {
	counts := make(map[vk.DescriptorType]uint32)
	for _, t := range types {
		counts[descriptorTypeFor(t)]++
	}
	sizes := make([]vk.DescriptorPoolSize, 0, len(counts))
	for dt, n := range counts {
		sizes = append(sizes, vk.DescriptorPoolSize{Type: dt, DescriptorCount: n * descriptorPoolBatchSize})
	}
	return sizes
}

// acquireDescriptorSet leases a descriptor set for the resource-type
// signature sig/layout, minting a fresh batch of descriptorPoolBatchSize
// sets from a new vk.DescriptorPool whenever the free list is empty.
func (c *Context) acquireDescriptorSet(sig string, types []ResourceType, layout vk.DescriptorSetLayout) (*poolItem[string, vk.DescriptorSet], error) {
	if item, ok := c.descSetPool.Acquire(sig); ok {
		return item, nil
	}

	sizes := descriptorPoolSizesFor(types)
	var rawPool vk.DescriptorPool
	ret := vk.CreateDescriptorPool(c.device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       descriptorPoolBatchSize,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}, nil, &rawPool)
	if err := checkResult(sig, ret); err != nil {
		return nil, err
	}
	c.descPoolMu.Lock()
	c.descPools[sig] = append(c.descPools[sig], newDescriptorPoolHandle(c.device, sig, rawPool))
	c.descPoolMu.Unlock()

	layouts := make([]vk.DescriptorSetLayout, descriptorPoolBatchSize)
	for i := range layouts {
		layouts[i] = layout
	}
	sets := make([]vk.DescriptorSet, descriptorPoolBatchSize)
	ret = vk.AllocateDescriptorSets(c.device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     rawPool,
		DescriptorSetCount: descriptorPoolBatchSize,
		PSetLayouts:        layouts,
	}, &sets[0])
	if err := checkResult(sig, ret); err != nil {
		return nil, err
	}

	for _, s := range sets[1:] {
		c.descSetPool.Create(sig, s).Release()
	}
	return c.descSetPool.Create(sig, sets[0]), nil
}

// acquireCommandPool leases a command pool bound to class's queue
// family, minting one if none are free.
func (c *Context) acquireCommandPool(class SubmitClass) (*poolItem[SubmitClass, *commandPoolHandle], error) {
	if item, ok := c.cmdPoolPool.Acquire(class); ok {
		return item, nil
	}
	_, family, err := c.queueFor(class)
	if err != nil {
		return nil, err
	}
	var raw vk.CommandPool
	ret := vk.CreateCommandPool(c.device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}, nil, &raw)
	if err := checkResult(class.String(), ret); err != nil {
		return nil, err
	}
	return c.cmdPoolPool.Create(class, newCommandPoolHandle(c.device, class.String(), raw)), nil
}

// acquireQueryPool leases a timestamp query pool with capacity for at
// least count queries. Timed recordings issue their queries whether or
// not the device supports timestamps; when it reports no support
// (timestampPeriod == 0), Transaction.GetTimeUs logs a warning and
// returns 0.
func (c *Context) acquireQueryPool(count uint32) (*poolItem[uint32, *queryPoolHandle], error) {
	if item, ok := c.queryPoolPool.Acquire(count); ok {
		return item, nil
	}
	var raw vk.QueryPool
	ret := vk.CreateQueryPool(c.device, &vk.QueryPoolCreateInfo{
		SType:      vk.StructureTypeQueryPoolCreateInfo,
		QueryType:  vk.QueryTypeTimestamp,
		QueryCount: count,
	}, nil, &raw)
	if err := checkResult("timestamp-query-pool", ret); err != nil {
		return nil, err
	}
	return c.queryPoolPool.Create(count, newQueryPoolHandle(c.device, "timestamp-query-pool", raw)), nil
}

// TimingSupported reports whether GetTimeUs on a timed Invocation will
// return a real value rather than 0-after-warn.
func (c *Context) TimingSupported() bool { return c.timestampPeriod > 0 }

// TimestampPeriod is the nanoseconds-per-tick conversion factor a
// Transaction divides raw timestamp deltas by.
func (c *Context) TimestampPeriod() float32 { return c.timestampPeriod }

// CreateBuffer builds a Buffer with the given size, usage and host
// access, wired through the Context's Allocator.
func (c *Context) CreateBuffer(label string, size uint64, usage BufferUsage, hostAccess HostAccess) (*Buffer, error) {
	if size == 0 {
		return nil, configErr(label, "zero-sized buffer")
	}
	return newBuffer(c, label, size, hostAccess, usage)
}

// CreateImage builds a color Image.
func (c *Context) CreateImage(label string, width, height, depth uint32, format vk.Format, colorSpace vk.ColorSpace, usage ImageUsage) (*Image, error) {
	if width == 0 || height == 0 {
		return nil, configErr(label, "zero-sized image")
	}
	return newImage(c, label, width, height, depth, format, colorSpace, usage)
}

// CreateDepthImage builds a DepthImage. Passing vk.FormatUndefined
// selects the first depth format the device supports for optimal-tiling
// attachments, in preference order.
func (c *Context) CreateDepthImage(label string, width, height, depth uint32, format vk.Format, usage ImageUsage) (*DepthImage, error) {
	if width == 0 || height == 0 {
		return nil, configErr(label, "zero-sized depth image")
	}
	if format == vk.FormatUndefined {
		picked, ok := c.pickDepthFormat()
		if !ok {
			return nil, configErr(label, "device supports no depth attachment format")
		}
		format = picked
	}
	return newDepthImage(c, label, width, height, depth, format, usage)
}

func (c *Context) pickDepthFormat() (vk.Format, bool) {
	for _, f := range preferredDepthFormats {
		var props vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(c.physicalDevice, f, &props)
		props.Deref()
		if props.OptimalTilingFeatures&vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit) != 0 {
			return f, true
		}
	}
	return vk.FormatUndefined, false
}

// Destroy waits for the device to go idle and releases every cached
// sampler, descriptor-set layout, descriptor pool, pooled command/query
// pool and recycled fence, then the device itself. Items still leased
// out are the caller's bug.
func (c *Context) Destroy() {
	vk.DeviceWaitIdle(c.device)

	c.cmdPoolPool.drain(func(h *commandPoolHandle) { h.Release() })
	c.queryPoolPool.drain(func(h *queryPoolHandle) { h.Release() })
	c.fences.destroy()

	c.samplerMu.Lock()
	for _, s := range c.samplers {
		s.Release()
	}
	c.samplerMu.Unlock()

	c.descLayoutMu.Lock()
	for _, l := range c.descLayouts {
		l.Release()
	}
	c.descLayoutMu.Unlock()

	c.descPoolMu.Lock()
	for _, pools := range c.descPools {
		for _, p := range pools {
			p.Release()
		}
	}
	c.descPoolMu.Unlock()

	vk.DestroyDevice(c.device, nil)
}
