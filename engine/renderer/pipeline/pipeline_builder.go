package pipeline

import (
	"github.com/Carmen-Shannon/oxy-copy/engine/renderer/shader"
)

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithComputeShader sets the compute shader for this pipeline.
//
// Parameters:
//   - s: the compute shader to use for this pipeline
//
// Returns:
//   - PipelineBuilderOption: a function that sets the compute shader for this pipeline
func WithComputeShader(s shader.Shader) PipelineBuilderOption {
	return func(p *pipeline) {
		p.computeShader = s
	}
}

// WithLabel overrides the debug label used for the GPU objects of this pipeline.
func WithLabel(label string) PipelineBuilderOption {
	return func(p *pipeline) {
		p.label = label
	}
}

// WithExpectedWorkgroupSize makes Validate reject shaders that declare a different @workgroup_size.
//
// Parameters:
//   - size: the local size the host-side dispatch math assumes
//
// Returns:
//   - PipelineBuilderOption: a function that sets the expected workgroup size
func WithExpectedWorkgroupSize(size [3]uint32) PipelineBuilderOption {
	return func(p *pipeline) {
		p.expectedWorkgroupSize = size
	}
}
