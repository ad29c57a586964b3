package bind_group_provider

import (
	"slices"
	"testing"
)

func TestNewBindGroupProvider(t *testing.T) {
	p := NewBindGroupProvider("copy", WithGroup(2))
	if p.Label() != "copy" {
		t.Errorf("Label() = %q, want %q", p.Label(), "copy")
	}
	if p.Group() != 2 {
		t.Errorf("Group() = %d, want 2", p.Group())
	}
	if p.BindGroup() != nil || p.Buffer(0) != nil {
		t.Error("new provider has GPU resources")
	}
	if len(p.Bindings()) != 0 {
		t.Errorf("Bindings() = %v, want empty", p.Bindings())
	}
}

func TestBufferSizesAndWrites(t *testing.T) {
	p := NewBindGroupProvider("copy")
	// nil buffers stand in for GPU objects; only the bookkeeping is exercised
	p.SetBuffer(1, nil, 64)
	p.SetBuffer(0, nil, 32)

	if got := p.Bindings(); !slices.Equal(got, []int{0, 1}) {
		t.Errorf("Bindings() = %v, want [0 1]", got)
	}
	if got := p.BufferSize(1); got != 64 {
		t.Errorf("BufferSize(1) = %d, want 64", got)
	}

	tests := []struct {
		name string
		w    BufferWrite
		want bool
	}{
		{"whole buffer", BufferWrite{Provider: p, Binding: 0, Data: make([]byte, 32)}, true},
		{"tail", BufferWrite{Provider: p, Binding: 1, Offset: 48, Data: make([]byte, 16)}, true},
		{"past end", BufferWrite{Provider: p, Binding: 1, Offset: 56, Data: make([]byte, 16)}, false},
		{"offset beyond size", BufferWrite{Provider: p, Binding: 0, Offset: 40}, false},
		{"missing binding", BufferWrite{Provider: p, Binding: 3, Data: []byte{1}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.w.Fits(); got != tt.want {
				t.Errorf("Fits() = %v, want %v", got, tt.want)
			}
		})
	}

	p.Release()
	if len(p.Bindings()) != 0 || p.BufferSize(0) != 0 {
		t.Errorf("after Release() Bindings() = %v, BufferSize(0) = %d", p.Bindings(), p.BufferSize(0))
	}
}
