package renderer

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-copy/common"
	"github.com/Carmen-Shannon/oxy-copy/engine/kernel"
	"github.com/Carmen-Shannon/oxy-copy/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-copy/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrNoComputeFrame is returned when a compute command is encoded outside BeginComputeFrame/EndComputeFrame.
var ErrNoComputeFrame = errors.New("renderer: no compute frame in progress")

// ErrPipelineNotRegistered is returned when a pipeline has no GPU compute pipeline yet.
var ErrPipelineNotRegistered = errors.New("renderer: pipeline not registered")

// ErrBindGroupNotInitialized is returned when a provider without a bind group is dispatched.
var ErrBindGroupNotInitialized = errors.New("renderer: bind group not initialized")

// ErrWriteOutOfBounds is returned by WriteBuffers when a write does not fit its buffer.
var ErrWriteOutOfBounds = errors.New("renderer: buffer write out of bounds")

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter

	adapterInfo AdapterInfo
	limits      wgpu.Limits

	// Compute frame state for batching all compute dispatches into a single GPU submission
	computeFrameEncoder *wgpu.CommandEncoder
}

type wgpuRendererBackend interface {
	Device() *wgpu.Device
	Queue() *wgpu.Queue
	Instance() *wgpu.Instance
	Adapter() *wgpu.Adapter

	// AdapterInfo returns the description of the selected adapter.
	//
	// Returns:
	//   - AdapterInfo: name, backend and adapter type
	AdapterInfo() AdapterInfo

	// Limits returns the compute limits the device was created with.
	//
	// Returns:
	//   - kernel.Limits: the work group and storage buffer limits
	Limits() kernel.Limits

	// BeginComputeFrame creates a single command encoder for batching every compute dispatch and
	// buffer copy of a job into one GPU submission. Must be paired with EndComputeFrame.
	//
	// Returns:
	//   - error: an error if a frame is already open or the command encoder could not be created
	BeginComputeFrame() error

	// EndComputeFrame finishes the batched command encoder and submits the resulting command
	// buffer to the GPU queue.
	//
	// Returns:
	//   - error: ErrNoComputeFrame if no frame is open, or the encoder finish error
	EndComputeFrame() error

	// DispatchCompute encodes a compute pass within the current compute frame.
	//
	// Parameters:
	//   - p: the registered Pipeline to dispatch
	//   - computeProvider: the BindGroupProvider whose BindGroup will be set on the compute pass
	//   - workGroupCount: the number of workgroups to dispatch in the x, y, and z dimensions
	//
	// Returns:
	//   - error: an error if no frame is open or the pipeline or bind group is missing
	DispatchCompute(p pipeline.Pipeline, computeProvider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error

	// DispatchComputeIndirect encodes a compute pass whose work group counts are read by the GPU
	// from three consecutive u32 values in an indirect buffer.
	//
	// Parameters:
	//   - p: the registered Pipeline to dispatch
	//   - computeProvider: the BindGroupProvider whose BindGroup will be set on the compute pass
	//   - indirectBuffer: a buffer created with BufferUsageIndirect
	//   - offset: the byte offset of the counts, a multiple of 4
	//
	// Returns:
	//   - error: an error if no frame is open or the inputs are invalid
	DispatchComputeIndirect(p pipeline.Pipeline, computeProvider bind_group_provider.BindGroupProvider, indirectBuffer *wgpu.Buffer, offset uint64) error

	// CopyBufferToBuffer encodes a buffer copy within the current compute frame.
	//
	// Parameters:
	//   - src: the source buffer, created with BufferUsageCopySrc
	//   - dst: the destination buffer, created with BufferUsageCopyDst
	//   - size: the number of bytes to copy, a multiple of 4
	//
	// Returns:
	//   - error: an error if no frame is open
	CopyBufferToBuffer(src, dst *wgpu.Buffer, size uint64) error

	// RegisterComputePipeline creates the shader module, bind group layouts, pipeline layout and
	// compute pipeline for the provided pipeline, and attaches them to it.
	//
	// Parameters:
	//   - p: the pipeline object containing the shader and configuration for the pipeline
	//
	// Returns:
	//   - error: an error if the pipeline could not be created, otherwise nil
	RegisterComputePipeline(p pipeline.Pipeline) error

	// InitBindGroup creates GPU buffers and a bind group based on a layout descriptor, storing them
	// back on the provider for later use.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to store the buffers and bind group on
	//   - layout: the layout to create the bind group against, or nil to create one from the descriptor
	//   - descriptor: the BindGroupLayoutDescriptor describing the layout of the bind group
	//   - bufferUsageOverrides: buffer usage flags ORed into the derived usage, keyed by binding
	//   - bufferSizeOverrides: buffer sizes used instead of MinBindingSize, keyed by binding
	//
	// Returns:
	//   - error: an error if the bind group could not be initialized, otherwise nil
	InitBindGroup(provider bind_group_provider.BindGroupProvider, layout *wgpu.BindGroupLayout, descriptor wgpu.BindGroupLayoutDescriptor, bufferUsageOverrides map[int]wgpu.BufferUsage, bufferSizeOverrides map[int]uint64) error

	// WriteBuffers queues writes into provider buffers.
	//
	// Parameters:
	//   - writes: the writes to perform, in order
	//
	// Returns:
	//   - error: an error if a target buffer is missing or a write does not fit
	WriteBuffers(writes []bind_group_provider.BufferWrite) error

	// CreateBuffer creates a standalone buffer, optionally initialized with contents.
	//
	// Parameters:
	//   - label: the debug label
	//   - size: the buffer size in bytes, ignored when contents is non-empty
	//   - usage: the buffer usage flags
	//   - contents: initial contents, or nil
	//
	// Returns:
	//   - *wgpu.Buffer: the created buffer
	//   - error: an error if the buffer could not be created
	CreateBuffer(label string, size uint64, usage wgpu.BufferUsage, contents []byte) (*wgpu.Buffer, error)

	// ReadBuffer copies size bytes from the start of a buffer into host memory through a
	// MapRead staging buffer. The copy is submitted on its own and waited for.
	//
	// Parameters:
	//   - buf: the buffer to read, created with BufferUsageCopySrc
	//   - size: the number of bytes to read, a multiple of 4
	//
	// Returns:
	//   - []byte: a copy of the buffer contents
	//   - error: an error if the staging copy or the map failed
	ReadBuffer(buf *wgpu.Buffer, size uint64) ([]byte, error)

	// Release frees the device, queue, adapter and instance.
	Release()
}

var _ wgpuRendererBackend = &wgpuRendererBackendImpl{}

// wgpuBackendOptions carries the device creation settings collected by the renderer builder.
type wgpuBackendOptions struct {
	forceFallbackAdapter bool
	powerPreference      PowerPreference
	deviceLabel          string
	maxStorageBufferSize uint64
}

func newWGPURendererBackend(opts wgpuBackendOptions) (wgpuRendererBackend, error) {
	w := &wgpuRendererBackendImpl{
		mu:       &sync.Mutex{},
		instance: wgpu.CreateInstance(nil),
	}
	if w.instance == nil {
		return nil, errors.New("renderer: failed to create WebGPU instance")
	}

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: opts.forceFallbackAdapter,
		PowerPreference:      opts.powerPreference.wgpu(),
	})
	if err != nil {
		w.instance.Release()
		return nil, fmt.Errorf("renderer: request adapter: %w", err)
	}
	w.adapter = a

	info := a.GetInfo()
	w.adapterInfo = AdapterInfo{
		Name:        info.Name,
		Backend:     fmt.Sprint(info.BackendType),
		AdapterType: fmt.Sprint(info.AdapterType),
		Fallback:    opts.forceFallbackAdapter,
	}

	// Start from the WebGPU default limits; only the storage binding size is raised on request.
	limits := wgpu.DefaultLimits()
	if opts.maxStorageBufferSize > uint64(limits.MaxStorageBufferBindingSize) {
		limits.MaxStorageBufferBindingSize = opts.maxStorageBufferSize
		if opts.maxStorageBufferSize > uint64(limits.MaxBufferSize) {
			limits.MaxBufferSize = opts.maxStorageBufferSize
		}
	}

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: opts.deviceLabel,
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		a.Release()
		w.instance.Release()
		return nil, fmt.Errorf("renderer: request device: %w", err)
	}
	w.device = d
	w.queue = d.GetQueue()
	w.limits = limits

	return w, nil
}

func (b *wgpuRendererBackendImpl) AdapterInfo() AdapterInfo {
	return b.adapterInfo
}

func (b *wgpuRendererBackendImpl) Limits() kernel.Limits {
	return kernel.Limits{
		MaxWorkgroupsPerDimension:   uint32(b.limits.MaxComputeWorkgroupsPerDimension),
		MaxStorageBufferBindingSize: uint64(b.limits.MaxStorageBufferBindingSize),
	}
}

func (b *wgpuRendererBackendImpl) BeginComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder != nil {
		return errors.New("renderer: compute frame already in progress")
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	b.computeFrameEncoder = encoder
	return nil
}

func (b *wgpuRendererBackendImpl) EndComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder == nil {
		return ErrNoComputeFrame
	}
	defer func() {
		b.computeFrameEncoder.Release()
		b.computeFrameEncoder = nil
	}()

	commandBuffer, err := b.computeFrameEncoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("renderer: finish compute frame: %w", err)
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	return nil
}

// beginPass validates the dispatch inputs and opens a compute pass with the pipeline and bind group set.
// The caller must hold b.mu.
func (b *wgpuRendererBackendImpl) beginPass(p pipeline.Pipeline, provider bind_group_provider.BindGroupProvider) (*wgpu.ComputePassEncoder, error) {
	if b.computeFrameEncoder == nil {
		return nil, ErrNoComputeFrame
	}
	if p.ComputePipeline() == nil {
		return nil, fmt.Errorf("%s: %w", p.PipelineKey(), ErrPipelineNotRegistered)
	}
	bindGroup := provider.BindGroup()
	if bindGroup == nil {
		return nil, fmt.Errorf("%s: %w", provider.Label(), ErrBindGroupNotInitialized)
	}

	pass := b.computeFrameEncoder.BeginComputePass(nil)
	pass.SetPipeline(p.ComputePipeline())
	pass.SetBindGroup(uint32(provider.Group()), bindGroup, nil)
	return pass, nil
}

func (b *wgpuRendererBackendImpl) DispatchCompute(
	p pipeline.Pipeline,
	computeProvider bind_group_provider.BindGroupProvider,
	workGroupCount [3]uint32,
) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	pass, err := b.beginPass(p, computeProvider)
	if err != nil {
		return err
	}
	pass.DispatchWorkgroups(workGroupCount[0], workGroupCount[1], workGroupCount[2])
	pass.End()
	pass.Release()
	return nil
}

func (b *wgpuRendererBackendImpl) DispatchComputeIndirect(
	p pipeline.Pipeline,
	computeProvider bind_group_provider.BindGroupProvider,
	indirectBuffer *wgpu.Buffer,
	offset uint64,
) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if indirectBuffer == nil {
		return errors.New("renderer: nil indirect buffer")
	}
	if !common.IsAligned(offset, common.CopyBufferAlignment) {
		return fmt.Errorf("renderer: indirect offset %d is not a multiple of %d", offset, common.CopyBufferAlignment)
	}
	pass, err := b.beginPass(p, computeProvider)
	if err != nil {
		return err
	}
	pass.DispatchWorkgroupsIndirect(indirectBuffer, offset)
	pass.End()
	pass.Release()
	return nil
}

func (b *wgpuRendererBackendImpl) CopyBufferToBuffer(src, dst *wgpu.Buffer, size uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder == nil {
		return ErrNoComputeFrame
	}
	b.computeFrameEncoder.CopyBufferToBuffer(src, 0, dst, 0, size)
	return nil
}

func (b *wgpuRendererBackendImpl) RegisterComputePipeline(p pipeline.Pipeline) error {
	if err := p.Validate(); err != nil {
		return err
	}

	computeShader := p.Shader()
	s, err := b.device.CreateShaderModule(computeShader.Module())
	if err != nil {
		return err
	}
	defer s.Release()

	descriptors := computeShader.BindGroupLayoutDescriptors()
	groups := make([]int, 0, len(descriptors))
	for g := range descriptors {
		groups = append(groups, g)
	}
	slices.Sort(groups)

	maxGroup := -1
	if len(groups) > 0 {
		maxGroup = groups[len(groups)-1]
	}
	layouts := make(map[int]*wgpu.BindGroupLayout, len(groups))
	bindGroupLayouts := make([]*wgpu.BindGroupLayout, maxGroup+1)
	release := func() {
		for _, l := range layouts {
			l.Release()
		}
	}
	for g := 0; g <= maxGroup; g++ {
		desc, ok := descriptors[g]
		if !ok {
			// gaps in the group numbering still need a layout slot
			desc = wgpu.BindGroupLayoutDescriptor{Label: fmt.Sprintf("%s Empty Group %d", p.Label(), g)}
		}
		bgl, bglErr := b.device.CreateBindGroupLayout(&desc)
		if bglErr != nil {
			release()
			return fmt.Errorf("failed to create bind group layout for group %d: %w", g, bglErr)
		}
		layouts[g] = bgl
		bindGroupLayouts[g] = bgl
	}

	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.Label(),
		BindGroupLayouts: bindGroupLayouts,
	})
	if err != nil {
		release()
		return err
	}
	defer layout.Release()

	created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  p.Label() + " Compute Pipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     s,
			EntryPoint: computeShader.EntryPoint(),
		},
	})
	if err != nil {
		release()
		return err
	}

	p.SetComputePipeline(created, layouts)
	return nil
}

func (b *wgpuRendererBackendImpl) InitBindGroup(
	provider bind_group_provider.BindGroupProvider,
	layout *wgpu.BindGroupLayout,
	descriptor wgpu.BindGroupLayoutDescriptor,
	bufferUsageOverrides map[int]wgpu.BufferUsage,
	bufferSizeOverrides map[int]uint64,
) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(descriptor.Entries) == 0 {
		return nil
	}

	if layout == nil {
		layout = provider.BindGroupLayout()
	}
	if layout == nil {
		var err error
		layout, err = b.device.CreateBindGroupLayout(&descriptor)
		if err != nil {
			return err
		}
	}
	provider.SetBindGroupLayout(layout)

	bindGroupEntries := make([]wgpu.BindGroupEntry, len(descriptor.Entries))
	for i, entry := range descriptor.Entries {
		binding := int(entry.Binding)

		var usage wgpu.BufferUsage
		switch entry.Buffer.Type {
		case wgpu.BufferBindingTypeUniform:
			usage = wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
		case wgpu.BufferBindingTypeStorage, wgpu.BufferBindingTypeReadOnlyStorage:
			usage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
		default:
			return fmt.Errorf("binding %d is not a buffer binding", binding)
		}
		if overrideUsage, ok := bufferUsageOverrides[binding]; ok {
			usage |= overrideUsage
		}

		bufSize := entry.Buffer.MinBindingSize
		if overrideSize, ok := bufferSizeOverrides[binding]; ok {
			bufSize = overrideSize
		}
		if bufSize < entry.Buffer.MinBindingSize {
			return fmt.Errorf("binding %d: size %d is below the minimum binding size %d", binding, bufSize, entry.Buffer.MinBindingSize)
		}
		if limit := uint64(b.limits.MaxStorageBufferBindingSize); limit > 0 && bufSize > limit {
			return fmt.Errorf("binding %d: size %d: %w", binding, bufSize, kernel.ErrBufferExceedsLimit)
		}

		buf := provider.Buffer(binding)
		if buf == nil || provider.BufferSize(binding) != bufSize {
			if buf != nil {
				buf.Release()
			}
			var bufErr error
			buf, bufErr = b.device.CreateBuffer(&wgpu.BufferDescriptor{
				Label: fmt.Sprintf("%s Buffer %d", provider.Label(), binding),
				Size:  bufSize,
				Usage: usage,
			})
			if bufErr != nil {
				return bufErr
			}
			provider.SetBuffer(binding, buf, bufSize)
		}
		bindGroupEntries[i] = wgpu.BindGroupEntry{
			Binding: entry.Binding,
			Buffer:  buf,
			Offset:  0,
			Size:    wgpu.WholeSize,
		}
	}

	if old := provider.BindGroup(); old != nil {
		old.Release()
	}
	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   provider.Label() + " Bind Group",
		Layout:  layout,
		Entries: bindGroupEntries,
	})
	if err != nil {
		return err
	}
	provider.SetBindGroup(bindGroup)

	return nil
}

func (b *wgpuRendererBackendImpl) WriteBuffers(writes []bind_group_provider.BufferWrite) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, w := range writes {
		buf := w.Provider.Buffer(w.Binding)
		if buf == nil {
			return fmt.Errorf("%s: no buffer at binding %d", w.Provider.Label(), w.Binding)
		}
		if !w.Fits() {
			return fmt.Errorf("%s binding %d: %d bytes at offset %d: %w", w.Provider.Label(), w.Binding, len(w.Data), w.Offset, ErrWriteOutOfBounds)
		}
		if len(w.Data) == 0 {
			continue
		}
		if err := b.queue.WriteBuffer(buf, w.Offset, w.Data); err != nil {
			return fmt.Errorf("%s binding %d: %w", w.Provider.Label(), w.Binding, err)
		}
	}
	return nil
}

func (b *wgpuRendererBackendImpl) CreateBuffer(label string, size uint64, usage wgpu.BufferUsage, contents []byte) (*wgpu.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(contents) > 0 {
		return b.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
			Label:    label,
			Contents: contents,
			Usage:    usage,
		})
	}
	return b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  common.AlignUp(size, common.CopyBufferAlignment),
		Usage: usage,
	})
}

func (b *wgpuRendererBackendImpl) ReadBuffer(buf *wgpu.Buffer, size uint64) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if size == 0 {
		return nil, nil
	}
	if !common.IsAligned(size, common.CopyBufferAlignment) {
		return nil, fmt.Errorf("renderer: read size %d is not a multiple of %d", size, common.CopyBufferAlignment)
	}

	staging, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Readback Staging Buffer",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	defer staging.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	encoder.CopyBufferToBuffer(buf, 0, staging, 0, size)
	commands, err := encoder.Finish(nil)
	encoder.Release()
	if err != nil {
		return nil, err
	}
	b.queue.Submit(commands)
	commands.Release()

	var mapStatus wgpu.BufferMapAsyncStatus
	done := make(chan struct{})
	err = staging.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		mapStatus = status
		close(done)
	})
	if err != nil {
		return nil, fmt.Errorf("renderer: map staging buffer: %w", err)
	}

	b.device.Poll(true, nil)
	<-done
	if mapStatus != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("renderer: map staging buffer: status %v", mapStatus)
	}

	mapped := staging.GetMappedRange(0, uint(size))
	out := make([]byte, len(mapped))
	copy(out, mapped)
	staging.Unmap()

	return out, nil
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder != nil {
		b.computeFrameEncoder.Release()
		b.computeFrameEncoder = nil
	}
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

func (b *wgpuRendererBackendImpl) Device() *wgpu.Device {
	return b.device
}

func (b *wgpuRendererBackendImpl) Queue() *wgpu.Queue {
	return b.queue
}

func (b *wgpuRendererBackendImpl) Instance() *wgpu.Instance {
	return b.instance
}

func (b *wgpuRendererBackendImpl) Adapter() *wgpu.Adapter {
	return b.adapter
}
