package commands

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-copy/engine"
	"github.com/Carmen-Shannon/oxy-copy/engine/kernel"
	"github.com/Carmen-Shannon/oxy-copy/engine/renderer"
	"github.com/Carmen-Shannon/oxy-copy/internal/config"
	"github.com/Carmen-Shannon/oxy-copy/internal/logging"
)

// backend is the executor selected for a run together with the limits to plan against.
type backend struct {
	executor kernel.Executor
	limits   kernel.Limits
	renderer renderer.Renderer
	gpu      engine.GPUExecutor
}

func (b *backend) Release() {
	if b.gpu != nil {
		b.gpu.Release()
	}
	if b.renderer != nil {
		b.renderer.Release()
	}
}

// openRenderer creates a headless renderer from the backend config section.
func openRenderer(cfg *config.Config) (renderer.Renderer, error) {
	pref, err := renderer.ParsePowerPreference(cfg.Backend.PowerPreference)
	if err != nil {
		return nil, err
	}
	return renderer.NewRenderer(renderer.BackendTypeWGPU,
		renderer.WithForceFallbackAdapter(cfg.Backend.ForceFallbackAdapter),
		renderer.WithPowerPreference(pref),
		renderer.WithDeviceLabel("oxycopy"),
	)
}

// openBackend selects the executor for cfg.Backend.Kind. auto falls back to the CPU
// executor when no adapter is available.
func openBackend(cfg *config.Config, indirect bool) (*backend, error) {
	limits := kernel.Limits{MaxWorkgroupsPerDimension: cfg.Planner.MaxWorkgroupsPerDimension}.WithDefaults()
	cpu := func() *backend {
		return &backend{
			executor: kernel.NewCPUExecutor(kernel.WithCPUWorkers(cfg.Planner.Workers)),
			limits:   limits,
		}
	}

	if cfg.Backend.Kind == "cpu" {
		return cpu(), nil
	}

	r, err := openRenderer(cfg)
	if err != nil {
		if cfg.Backend.Kind == "gpu" {
			return nil, fmt.Errorf("opening GPU backend: %w", err)
		}
		logging.Warnf("no GPU available, falling back to the CPU executor: %v", err)
		return cpu(), nil
	}

	gpu, err := engine.NewGPUExecutor(r, engine.WithIndirectDispatch(indirect))
	if err != nil {
		r.Release()
		return nil, err
	}

	device := r.Limits()
	limits.MaxWorkgroupsPerDimension = min(limits.MaxWorkgroupsPerDimension, device.MaxWorkgroupsPerDimension)
	limits.MaxStorageBufferBindingSize = min(limits.MaxStorageBufferBindingSize, device.MaxStorageBufferBindingSize)
	return &backend{executor: gpu, limits: limits, renderer: r, gpu: gpu}, nil
}
