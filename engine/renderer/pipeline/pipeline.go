package pipeline

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-copy/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrNoComputeShader is returned by Validate when the pipeline was built without a shader.
var ErrNoComputeShader = errors.New("pipeline: no compute shader")

// ErrWorkgroupSizeMismatch is returned by Validate when the shader declares a different
// @workgroup_size than the pipeline expects.
var ErrWorkgroupSizeMismatch = errors.New("pipeline: workgroup size mismatch")

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	pipelineKey   string
	label         string
	computeShader shader.Shader

	// expectedWorkgroupSize is checked against the shader when non-zero.
	expectedWorkgroupSize [3]uint32

	computePipeline  *wgpu.ComputePipeline
	bindGroupLayouts map[int]*wgpu.BindGroupLayout
}

// Pipeline defines the interface for a compute pipeline built from a single compute shader.
// The GPU objects are created by the renderer backend and attached with the setters.
type Pipeline interface {
	// PipelineKey returns the unique key associated with this pipeline, used for caching and lookups.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Label returns the debug label used for GPU objects, defaulting to the pipeline key.
	//
	// Returns:
	//   - string: the label
	Label() string

	// Shader returns the compute shader this pipeline is built from.
	//
	// Returns:
	//   - shader.Shader: the compute shader, or nil if not set
	Shader() shader.Shader

	// Validate checks that a shader is set and that its declared workgroup size matches the
	// expected one, if any.
	//
	// Returns:
	//   - error: ErrNoComputeShader or a wrapped ErrWorkgroupSizeMismatch
	Validate() error

	// ComputePipeline returns the GPU pipeline, nil until the backend registers it.
	//
	// Returns:
	//   - *wgpu.ComputePipeline: the GPU pipeline
	ComputePipeline() *wgpu.ComputePipeline

	// BindGroupLayout returns the GPU layout created for a group index.
	//
	// Parameters:
	//   - group: the bind group index
	//
	// Returns:
	//   - *wgpu.BindGroupLayout: the layout, or nil if not registered
	BindGroupLayout(group int) *wgpu.BindGroupLayout

	// SetComputePipeline attaches the GPU pipeline and its bind group layouts.
	//
	// Parameters:
	//   - p: the WebGPU compute pipeline
	//   - layouts: the bind group layouts keyed by group index
	SetComputePipeline(p *wgpu.ComputePipeline, layouts map[int]*wgpu.BindGroupLayout)

	// Release frees the GPU pipeline and layouts. The pipeline may be registered again afterwards.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline creates a compute Pipeline with the provided options applied.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance
func NewPipeline(pipelineKey string, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey: pipelineKey,
		label:       pipelineKey,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Label() string {
	return p.label
}

func (p *pipeline) Shader() shader.Shader {
	return p.computeShader
}

func (p *pipeline) Validate() error {
	if p.computeShader == nil {
		return fmt.Errorf("%s: %w", p.pipelineKey, ErrNoComputeShader)
	}
	if p.expectedWorkgroupSize == ([3]uint32{}) {
		return nil
	}
	if got := p.computeShader.WorkgroupSize(); got != p.expectedWorkgroupSize {
		return fmt.Errorf("%s: shader declares %v, expected %v: %w", p.pipelineKey, got, p.expectedWorkgroupSize, ErrWorkgroupSizeMismatch)
	}
	return nil
}

func (p *pipeline) ComputePipeline() *wgpu.ComputePipeline {
	return p.computePipeline
}

func (p *pipeline) BindGroupLayout(group int) *wgpu.BindGroupLayout {
	return p.bindGroupLayouts[group]
}

func (p *pipeline) SetComputePipeline(cp *wgpu.ComputePipeline, layouts map[int]*wgpu.BindGroupLayout) {
	p.computePipeline = cp
	p.bindGroupLayouts = layouts
}

func (p *pipeline) Release() {
	for _, l := range p.bindGroupLayouts {
		l.Release()
	}
	p.bindGroupLayouts = nil
	if p.computePipeline != nil {
		p.computePipeline.Release()
		p.computePipeline = nil
	}
}
