package renderer

import (
	"github.com/Carmen-Shannon/oxy-copy/common"
	"github.com/Carmen-Shannon/oxy-copy/engine/renderer/pipeline"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithPipeline queues a single Pipeline for registration under the given key once the device exists.
//
// Parameters:
//   - key: the unique identifier for the pipeline
//   - p: the Pipeline to register
//
// Returns:
//   - RendererBuilderOption: a function that applies the pipeline option to a renderer
func WithPipeline(key string, p pipeline.Pipeline) RendererBuilderOption {
	return func(r *renderer) {
		r.pipelineCache[key] = p
	}
}

// WithPipelines replaces the renderer's pending pipelines with the provided map.
//
// Parameters:
//   - pipelines: a map of pipeline keys to their corresponding Pipeline objects
//
// Returns:
//   - RendererBuilderOption: a function that applies the pipelines option to a renderer
func WithPipelines(pipelines map[string]pipeline.Pipeline) RendererBuilderOption {
	return func(r *renderer) {
		r.pipelineCache = pipelines
	}
}

// WithForceFallbackAdapter forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the fallback adapter option to a renderer
func WithForceFallbackAdapter(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.backendOptions.forceFallbackAdapter = force
	}
}

// WithPowerPreference sets which adapter is preferred when several are available.
//
// Parameters:
//   - pref: the PowerPreference to request
//
// Returns:
//   - RendererBuilderOption: a function that applies the power preference to a renderer
func WithPowerPreference(pref PowerPreference) RendererBuilderOption {
	return func(r *renderer) {
		r.backendOptions.powerPreference = pref
	}
}

// WithDeviceLabel sets the debug label of the requested device. An empty label keeps the default.
func WithDeviceLabel(label string) RendererBuilderOption {
	return func(r *renderer) {
		r.backendOptions.deviceLabel = common.Coalesce(label, r.backendOptions.deviceLabel)
	}
}

// WithMaxStorageBufferBindingSize raises the storage buffer binding size requested from the
// adapter above the WebGPU default of 128 MiB. Device creation fails if the adapter cannot
// satisfy it.
func WithMaxStorageBufferBindingSize(size uint64) RendererBuilderOption {
	return func(r *renderer) {
		r.backendOptions.maxStorageBufferSize = size
	}
}
