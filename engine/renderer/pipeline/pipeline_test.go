package pipeline

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-copy/engine/kernel"
	"github.com/Carmen-Shannon/oxy-copy/engine/renderer/shader"
)

func TestPipelineValidate(t *testing.T) {
	s, err := shader.NewShader("copy_kernel", kernel.CopyKernelSource)
	if err != nil {
		t.Fatalf("NewShader() error = %v", err)
	}

	tests := []struct {
		name    string
		opts    []PipelineBuilderOption
		wantErr error
	}{
		{"no shader", nil, ErrNoComputeShader},
		{"no expectation", []PipelineBuilderOption{WithComputeShader(s)}, nil},
		{"matching size", []PipelineBuilderOption{WithComputeShader(s), WithExpectedWorkgroupSize(kernel.WorkgroupSize())}, nil},
		{"mismatched size", []PipelineBuilderOption{WithComputeShader(s), WithExpectedWorkgroupSize([3]uint32{64, 1, 1})}, ErrWorkgroupSizeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPipeline("copy", tt.opts...)
			if err := p.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPipelineLabel(t *testing.T) {
	if got := NewPipeline("copy").Label(); got != "copy" {
		t.Errorf("Label() = %q, want %q", got, "copy")
	}
	if got := NewPipeline("copy", WithLabel("Copy Kernel")).Label(); got != "Copy Kernel" {
		t.Errorf("Label() = %q, want %q", got, "Copy Kernel")
	}
	p := NewPipeline("copy")
	if p.ComputePipeline() != nil || p.BindGroupLayout(0) != nil {
		t.Error("unregistered pipeline has GPU objects")
	}
	// releasing an unregistered pipeline is a no-op
	p.Release()
}
