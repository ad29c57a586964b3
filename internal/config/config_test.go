package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "oxycopy.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error = %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
backend:
  kind: cpu
dispatch:
  x: 2
  y: 3
  z: 4
buffers:
  length: 4096
  fill: random
  sentinel: -7.5
planner:
  overlap_policy: reject
  workers: 4
logging:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Backend.Kind != "cpu" {
		t.Errorf("Backend.Kind = %q, want cpu", cfg.Backend.Kind)
	}
	if cfg.Dispatch != (DispatchConfig{X: 2, Y: 3, Z: 4}) {
		t.Errorf("Dispatch = %+v, want {2 3 4}", cfg.Dispatch)
	}
	if cfg.Buffers.Length != 4096 || cfg.Buffers.Fill != "random" || cfg.Buffers.Sentinel != -7.5 {
		t.Errorf("Buffers = %+v", cfg.Buffers)
	}
	if cfg.Planner.OverlapPolicy != "reject" || cfg.Planner.Workers != 4 {
		t.Errorf("Planner = %+v", cfg.Planner)
	}
	// untouched keys keep their defaults
	if cfg.Planner.MaxWorkgroupsPerDimension != 65535 {
		t.Errorf("MaxWorkgroupsPerDimension = %d, want 65535", cfg.Planner.MaxWorkgroupsPerDimension)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "dispatch:\n  x: 2\n")
	t.Setenv("OXYCOPY_DISPATCH_X", "9")
	t.Setenv("OXYCOPY_BACKEND_KIND", "gpu")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Dispatch.X != 9 {
		t.Errorf("Dispatch.X = %d, want 9", cfg.Dispatch.X)
	}
	if cfg.Backend.Kind != "gpu" {
		t.Errorf("Backend.Kind = %q, want gpu", cfg.Backend.Kind)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load() with missing explicit file should fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad backend", func(c *Config) { c.Backend.Kind = "tpu" }, "backend.kind"},
		{"bad power preference", func(c *Config) { c.Backend.PowerPreference = "max" }, "backend.power_preference"},
		{"zero dispatch", func(c *Config) { c.Dispatch.Y = 0 }, "dispatch"},
		{"bad fill", func(c *Config) { c.Buffers.Fill = "zeros" }, "buffers.fill"},
		{"bad overlap policy", func(c *Config) { c.Planner.OverlapPolicy = "ignore" }, "planner.overlap_policy"},
		{"negative workers", func(c *Config) { c.Planner.Workers = -1 }, "planner.workers"},
		{"zero workgroup limit", func(c *Config) { c.Planner.MaxWorkgroupsPerDimension = 0 }, "max_workgroups_per_dimension"},
		{"zero repeat", func(c *Config) { c.Planner.Repeat = 0 }, "planner.repeat"},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}
