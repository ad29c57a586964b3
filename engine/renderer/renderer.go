package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-copy/engine/kernel"
	"github.com/Carmen-Shannon/oxy-copy/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-copy/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-copy/internal/logging"
	"github.com/cogentcore/webgpu/wgpu"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	pipelineCache map[string]pipeline.Pipeline

	backendType RendererBackendType
	backend     RendererBackend

	// Pre-creation config collected from builder options
	backendOptions wgpuBackendOptions
}

// Renderer defines the interface for the headless compute host.
//
// This is a high-level API that reduces GPU compute work to a streamlined flow: register
// pipelines, initialize bind groups, upload, dispatch inside a compute frame, read back.
// The Renderer manages a cache of pipelines keyed by pipeline key and delegates every GPU call
// to a backend, which allows for multiple backend API implementations to exist.
type Renderer interface {
	// AdapterInfo describes the adapter the backend selected.
	//
	// Returns:
	//   - AdapterInfo: name, backend and adapter type
	AdapterInfo() AdapterInfo

	// Limits returns the compute limits the device was created with.
	//
	// Returns:
	//   - kernel.Limits: the work group and storage buffer limits
	Limits() kernel.Limits

	// Pipeline retrieves the cached Pipeline associated with the given key.
	// If the Pipeline does not exist, this will return nil.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key, or nil if not found
	Pipeline(key string) pipeline.Pipeline

	// Pipelines retrieves the entire cache of Pipelines.
	//
	// Returns:
	//   - map[string]pipeline.Pipeline: a map of pipeline keys to their corresponding Pipeline objects
	Pipelines() map[string]pipeline.Pipeline

	// RegisterPipelines creates the GPU compute pipeline objects for one or more pipelines via
	// the backend, then caches them by PipelineKey. Pipelines whose keys are already registered
	// are skipped to avoid duplicate GPU resource creation.
	//
	// Parameters:
	//   - pipelines: the Pipelines to register
	//
	// Returns:
	//   - error: an error if pipeline validation or creation fails
	RegisterPipelines(pipelines ...pipeline.Pipeline) error

	// SetPipeline adds or updates a Pipeline in the cache with the given key.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to add or update in the cache
	//   - p: the Pipeline to add or update in the cache
	SetPipeline(key string, p pipeline.Pipeline)

	// SetPipelines replaces the entire pipeline cache with the provided map of Pipelines.
	//
	// Parameters:
	//   - pipelines: a map of pipeline keys to their corresponding Pipeline objects to set as the new cache
	SetPipelines(pipelines map[string]pipeline.Pipeline)

	// InitBindGroup creates GPU buffers and a bind group for a group of a registered pipeline and
	// stores them on the given BindGroupProvider. Buffer usage and size can be overridden per
	// binding; a size override re-creates an existing buffer of a different size.
	//
	// Parameters:
	//   - pipelineKey: the registered pipeline whose layout the bind group must match
	//   - provider: the BindGroupProvider to store the created bind group on
	//   - bufferUsageOverrides: additional buffer usage flags to OR into the derived usage, keyed by binding index (nil safe)
	//   - bufferSizeOverrides: custom buffer sizes to use instead of MinBindingSize, keyed by binding index (nil safe)
	//
	// Returns:
	//   - error: an error if the pipeline is unknown or bind group creation fails
	InitBindGroup(pipelineKey string, provider bind_group_provider.BindGroupProvider, bufferUsageOverrides map[int]wgpu.BufferUsage, bufferSizeOverrides map[int]uint64) error

	// WriteBuffers writes data to GPU buffers held by BindGroupProviders.
	//
	// Parameters:
	//   - writes: a slice of BufferWrite structs describing the writes to perform
	//
	// Returns:
	//   - error: an error if a target buffer is missing or a write does not fit
	WriteBuffers(writes []bind_group_provider.BufferWrite) error

	// CreateBuffer creates a standalone buffer such as an indirect dispatch buffer.
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

	// ReadBuffer copies the first size bytes of a buffer back to the host and waits for the copy.
	//
	// Parameters:
	//   - buf: the buffer to read, created with BufferUsageCopySrc
	//   - size: the number of bytes to read
	//
	// Returns:
	//   - []byte: the buffer contents
	//   - error: an error if the readback failed
	ReadBuffer(buf *wgpu.Buffer, size uint64) ([]byte, error)

	// BeginComputeFrame starts a new compute frame by creating a command encoder for batching
	// all compute dispatches and copies into a single GPU submission.
	//
	// Returns:
	//   - error: an error if the compute frame could not be started
	BeginComputeFrame() error

	// EndComputeFrame finishes the batched command encoder and submits it to the GPU queue.
	//
	// Returns:
	//   - error: an error if no frame is open or the submission could not be built
	EndComputeFrame() error

	// DispatchCompute encodes a compute pass within the current compute frame.
	//
	// Parameters:
	//   - pipelineKey: the key of the registered compute pipeline
	//   - computeProvider: the BindGroupProvider whose BindGroup will be set on the compute pass
	//   - workGroupCount: the number of workgroups to dispatch in the x, y, and z dimensions
	//
	// Returns:
	//   - error: an error if the pipeline key is unknown or the pass could not be encoded
	DispatchCompute(pipelineKey string, computeProvider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error

	// DispatchComputeIndirect encodes a compute pass whose work group counts are read from an
	// indirect buffer on the GPU.
	//
	// Parameters:
	//   - pipelineKey: the key of the registered compute pipeline
	//   - computeProvider: the BindGroupProvider whose BindGroup will be set on the compute pass
	//   - indirectBuffer: a buffer holding three u32 work group counts
	//   - offset: the byte offset of the counts within the buffer
	//
	// Returns:
	//   - error: an error if the pipeline key is unknown or the pass could not be encoded
	DispatchComputeIndirect(pipelineKey string, computeProvider bind_group_provider.BindGroupProvider, indirectBuffer *wgpu.Buffer, offset uint64) error

	// CopyBufferToBuffer encodes a copy of size bytes from src to dst within the current compute frame.
	//
	// Parameters:
	//   - src: the source buffer
	//   - dst: the destination buffer
	//   - size: the number of bytes to copy
	//
	// Returns:
	//   - error: an error if no frame is open
	CopyBufferToBuffer(src, dst *wgpu.Buffer, size uint64) error

	// Release frees every cached pipeline and the backend device.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer instance with the specified backend type and options.
// It initializes the backend (instance, adapter, device and queue) and registers any pipelines
// supplied through options.
//
// Parameters:
//   - backendType: the type of GPU backend to use
//   - options: variadic list of RendererBuilderOption to customize the renderer
//
// Returns:
//   - Renderer: the created renderer
//   - error: an error if no adapter or device is available or a pipeline fails to register
func NewRenderer(backendType RendererBackendType, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:            &sync.Mutex{},
		pipelineCache: make(map[string]pipeline.Pipeline),
		backendType:   backendType,
		backendOptions: wgpuBackendOptions{
			deviceLabel: "Compute Device",
		},
	}
	for _, opt := range options {
		opt(r)
	}

	switch backendType {
	case BackendTypeWGPU:
		backend, err := newWGPURendererBackend(r.backendOptions)
		if err != nil {
			return nil, err
		}
		r.backend = backend
	default:
		return nil, fmt.Errorf("renderer: unsupported backend %s", backendType)
	}

	log := logging.Component("renderer")
	log.Infof("adapter selected: %s", r.backend.AdapterInfo())
	log.Debugf("device limits: %+v", r.backend.Limits())

	pending := make([]pipeline.Pipeline, 0, len(r.pipelineCache))
	for _, p := range r.pipelineCache {
		pending = append(pending, p)
	}
	r.pipelineCache = make(map[string]pipeline.Pipeline, len(pending))
	if err := r.RegisterPipelines(pending...); err != nil {
		r.Release()
		return nil, err
	}

	return r, nil
}

func (r *renderer) AdapterInfo() AdapterInfo {
	return r.backend.AdapterInfo()
}

func (r *renderer) Limits() kernel.Limits {
	return r.backend.Limits()
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) Pipelines() map[string]pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache
}

func (r *renderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range pipelines {
		key := p.PipelineKey()
		if _, exists := r.pipelineCache[key]; exists {
			continue
		}
		if err := r.backend.RegisterComputePipeline(p); err != nil {
			return fmt.Errorf("register pipeline %s: %w", key, err)
		}
		r.pipelineCache[key] = p
		logging.Component("renderer").Infof("pipeline registered: %s", key)
	}
	return nil
}

func (r *renderer) SetPipeline(key string, p pipeline.Pipeline) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipelineCache[key] = p
}

func (r *renderer) SetPipelines(pipelines map[string]pipeline.Pipeline) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipelineCache = pipelines
}

// lookup returns the registered pipeline for a key.
func (r *renderer) lookup(key string) (pipeline.Pipeline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pipelineCache[key]
	if !ok || p == nil {
		return nil, fmt.Errorf("%s: %w", key, ErrPipelineNotRegistered)
	}
	return p, nil
}

func (r *renderer) InitBindGroup(pipelineKey string, provider bind_group_provider.BindGroupProvider, bufferUsageOverrides map[int]wgpu.BufferUsage, bufferSizeOverrides map[int]uint64) error {
	p, err := r.lookup(pipelineKey)
	if err != nil {
		return err
	}
	descriptor := p.Shader().BindGroupLayoutDescriptor(provider.Group())
	if len(descriptor.Entries) == 0 {
		return fmt.Errorf("%s: shader declares no bind group %d", pipelineKey, provider.Group())
	}
	return r.backend.InitBindGroup(provider, p.BindGroupLayout(provider.Group()), descriptor, bufferUsageOverrides, bufferSizeOverrides)
}

func (r *renderer) WriteBuffers(writes []bind_group_provider.BufferWrite) error {
	return r.backend.WriteBuffers(writes)
}

func (r *renderer) CreateBuffer(label string, size uint64, usage wgpu.BufferUsage, contents []byte) (*wgpu.Buffer, error) {
	return r.backend.CreateBuffer(label, size, usage, contents)
}

func (r *renderer) ReadBuffer(buf *wgpu.Buffer, size uint64) ([]byte, error) {
	return r.backend.ReadBuffer(buf, size)
}

func (r *renderer) BeginComputeFrame() error {
	return r.backend.BeginComputeFrame()
}

func (r *renderer) EndComputeFrame() error {
	return r.backend.EndComputeFrame()
}

func (r *renderer) DispatchCompute(pipelineKey string, computeProvider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error {
	p, err := r.lookup(pipelineKey)
	if err != nil {
		return err
	}
	return r.backend.DispatchCompute(p, computeProvider, workGroupCount)
}

func (r *renderer) DispatchComputeIndirect(pipelineKey string, computeProvider bind_group_provider.BindGroupProvider, indirectBuffer *wgpu.Buffer, offset uint64) error {
	p, err := r.lookup(pipelineKey)
	if err != nil {
		return err
	}
	return r.backend.DispatchComputeIndirect(p, computeProvider, indirectBuffer, offset)
}

func (r *renderer) CopyBufferToBuffer(src, dst *wgpu.Buffer, size uint64) error {
	return r.backend.CopyBufferToBuffer(src, dst, size)
}

func (r *renderer) Release() {
	r.mu.Lock()
	for _, p := range r.pipelineCache {
		p.Release()
	}
	r.pipelineCache = make(map[string]pipeline.Pipeline)
	r.mu.Unlock()

	if r.backend != nil {
		r.backend.Release()
	}
}
