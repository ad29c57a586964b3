package renderer

import (
	"fmt"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based compute backend.
	BackendTypeWGPU RendererBackendType = iota
)

func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "wgpu"
	default:
		return fmt.Sprintf("backend(%d)", int(t))
	}
}

// PowerPreference selects which adapter the instance prefers when several are available.
type PowerPreference int

const (
	// PowerPreferenceDefault lets the WebGPU implementation choose.
	PowerPreferenceDefault PowerPreference = iota

	// PowerPreferenceHighPerformance prefers a discrete GPU.
	PowerPreferenceHighPerformance

	// PowerPreferenceLowPower prefers an integrated GPU.
	PowerPreferenceLowPower
)

// ParsePowerPreference parses "", "default", "high", "high_performance", "low" or "low_power".
func ParsePowerPreference(s string) (PowerPreference, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return PowerPreferenceDefault, nil
	case "high", "high_performance", "high-performance":
		return PowerPreferenceHighPerformance, nil
	case "low", "low_power", "low-power":
		return PowerPreferenceLowPower, nil
	default:
		return PowerPreferenceDefault, fmt.Errorf("unknown power preference %q", s)
	}
}

func (p PowerPreference) wgpu() wgpu.PowerPreference {
	switch p {
	case PowerPreferenceHighPerformance:
		return wgpu.PowerPreferenceHighPerformance
	case PowerPreferenceLowPower:
		return wgpu.PowerPreferenceLowPower
	default:
		return wgpu.PowerPreferenceUndefined
	}
}

// AdapterInfo describes the adapter the backend selected.
type AdapterInfo struct {
	Name        string
	Backend     string
	AdapterType string
	Fallback    bool
}

func (a AdapterInfo) String() string {
	return fmt.Sprintf("%s (%s, %s)", a.Name, a.Backend, a.AdapterType)
}

// RendererBackend is the top-level backend interface for the Renderer.
// It embeds the concrete backend interface for the selected GPU API.
type RendererBackend interface {
	wgpuRendererBackend
}
