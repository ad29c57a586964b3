package shader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-copy/engine/kernel"
	"github.com/cogentcore/webgpu/wgpu"
)

func TestCopyKernelShader(t *testing.T) {
	s, err := NewShader("copy_kernel", kernel.CopyKernelSource)
	if err != nil {
		t.Fatalf("NewShader() error = %v", err)
	}

	if got := s.EntryPoint(); got != "main" {
		t.Errorf("EntryPoint() = %q, want %q", got, "main")
	}
	if got, want := s.WorkgroupSize(), kernel.WorkgroupSize(); got != want {
		t.Errorf("WorkgroupSize() = %v, want %v", got, want)
	}
	if strings.Contains(s.Source(), annotationPrefix) {
		t.Errorf("Source() still contains %q annotations", annotationPrefix)
	}
	if !strings.Contains(s.Source(), "struct AttribData") {
		t.Errorf("Source() missing included AttribData struct")
	}
	if m := s.Module(); m == nil || m.Label != "copy_kernel" || m.WGSLDescriptor == nil || m.WGSLDescriptor.Code != s.Source() {
		t.Errorf("Module() = %+v, want the pre-processed source labelled copy_kernel", m)
	}

	want := []struct {
		name     string
		binding  int
		bufType  wgpu.BufferBindingType
		provider AnnotationArg
	}{
		{"outBuffer", 0, wgpu.BufferBindingTypeStorage, AnnotationArgCopyOutput},
		{"inBuffer", 1, wgpu.BufferBindingTypeReadOnlyStorage, AnnotationArgCopyInput},
	}
	bindings := s.Bindings()
	if len(bindings) != len(want) {
		t.Fatalf("len(Bindings()) = %d, want %d", len(bindings), len(want))
	}
	for i, w := range want {
		b := bindings[i]
		if b.Name != w.name || b.Binding != w.binding || b.Group != 0 {
			t.Errorf("Bindings()[%d] = %s@%d/%d, want %s@0/%d", i, b.Name, b.Group, b.Binding, w.name, w.binding)
		}
		if b.BufferType != w.bufType {
			t.Errorf("Bindings()[%d].BufferType = %v, want %v", i, b.BufferType, w.bufType)
		}
		if want := w.bufType == wgpu.BufferBindingTypeStorage; b.Writable() != want {
			t.Errorf("Bindings()[%d].Writable() = %v, want %v", i, b.Writable(), want)
		}
		if !b.RuntimeSized || b.ElementStride != kernel.AttribDataStride {
			t.Errorf("Bindings()[%d] runtime=%v stride=%d, want runtime array of stride %d", i, b.RuntimeSized, b.ElementStride, kernel.AttribDataStride)
		}
		if got, ok := ProviderFor(s.Declarations(), 0, w.binding); !ok || got != w.provider {
			t.Errorf("ProviderFor(0, %d) = %q, %v, want %q", w.binding, got, ok, w.provider)
		}
		if got, ok := s.BindGroupFromVarName(0, w.name); !ok || got != w.binding {
			t.Errorf("BindGroupFromVarName(0, %q) = %d, %v, want %d", w.name, got, ok, w.binding)
		}
	}

	desc := s.BindGroupLayoutDescriptor(0)
	if len(desc.Entries) != 2 || desc.Entries[0].Buffer.MinBindingSize != kernel.AttribDataStride {
		t.Errorf("BindGroupLayoutDescriptor(0) = %+v, want two entries with MinBindingSize %d", desc, kernel.AttribDataStride)
	}
	if desc.Entries[0].Visibility != wgpu.ShaderStageCompute {
		t.Errorf("Entries[0].Visibility = %v, want compute", desc.Entries[0].Visibility)
	}
}

func TestCopyKernelShaderValidates(t *testing.T) {
	s, err := NewShader("copy_kernel", kernel.CopyKernelSource)
	if err != nil {
		t.Fatalf("NewShader() error = %v", err)
	}
	spirv, err := s.Validate()
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(spirv) == 0 || len(spirv)%4 != 0 {
		t.Errorf("Validate() returned %d bytes, want a whole number of SPIR-V words", len(spirv))
	}
}

func TestNewShaderErrors(t *testing.T) {
	const body = "\n@compute @workgroup_size(1)\nfn main() {}\n"
	tests := []struct {
		name    string
		source  string
		wantErr string
	}{
		{"unknown include", "//@oxy:include vertex" + body, "unknown struct type"},
		{"double include", "//@oxy:include attrib_data\n//@oxy:include attrib_data" + body, "included twice"},
		{"bad group arity", "//@oxy:group 0 0 storage_read buf" + body, "exactly five arguments"},
		{"bad address space", "//@oxy:group 0 0 private buf array<attrib_data>" + body, "unknown address space"},
		{"negative binding", "//@oxy:provider 0 -1 copy_input" + body, "invalid binding number"},
		{"unknown provider", "//@oxy:provider 0 0 camera" + body, "unknown provider identity"},
		{"unknown annotation", "//@oxy:define X" + body, "unknown @oxy annotation type"},
		{"no entry point", "fn main() {}", "no @compute entry point"},
		{"texture binding", "@group(0) @binding(0) var tex: texture_2d<f32>;" + body, "not supported"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewShader(tt.name, tt.source)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("NewShader() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewShaderFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "copy.wgsl")
	if err := os.WriteFile(path, []byte(kernel.CopyKernelSource), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	s, err := NewShaderFromPath("copy", path)
	if err != nil {
		t.Fatalf("NewShaderFromPath() error = %v", err)
	}
	if s.Key() != "copy" {
		t.Errorf("Key() = %q, want %q", s.Key(), "copy")
	}

	if _, err := NewShaderFromPath("missing", filepath.Join(t.TempDir(), "nope.wgsl")); err == nil {
		t.Error("NewShaderFromPath() on a missing file error = nil, want error")
	}
}

func TestResolveTypeLayout(t *testing.T) {
	known := map[string]wgslTypeLayout{"AttribData": {size: 16, align: 16}}
	tests := []struct {
		typeName string
		want     wgslTypeLayout
		ok       bool
	}{
		{"u32", wgslTypeLayout{size: 4, align: 4}, true},
		{"vec3<f32>", wgslTypeLayout{size: 12, align: 16}, true},
		{"array<AttribData>", wgslTypeLayout{size: 16, align: 16, runtime: true}, true},
		{"array<vec3<f32>, 4>", wgslTypeLayout{size: 64, align: 16}, true},
		{"array<u32, n>", wgslTypeLayout{}, false},
		{"Unknown", wgslTypeLayout{}, false},
	}
	for _, tt := range tests {
		got, ok := resolveTypeLayout(tt.typeName, known)
		if ok != tt.ok || got != tt.want {
			t.Errorf("resolveTypeLayout(%q) = %+v, %v, want %+v, %v", tt.typeName, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseWorkgroupSize(t *testing.T) {
	tests := []struct {
		source string
		want   [3]uint32
	}{
		{"@compute @workgroup_size(8, 8, 1) fn main() {}", [3]uint32{8, 8, 1}},
		{"@compute @workgroup_size(64) fn main() {}", [3]uint32{64, 1, 1}},
		{"// @workgroup_size(2, 2)\n@compute fn main() {}", [3]uint32{1, 1, 1}},
	}
	for _, tt := range tests {
		if got := parseWorkgroupSize(tt.source); got != tt.want {
			t.Errorf("parseWorkgroupSize(%q) = %v, want %v", tt.source, got, tt.want)
		}
	}
}
