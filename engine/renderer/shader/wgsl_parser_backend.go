package shader

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// wgslPrimitiveLayoutMap maps WGSL scalar, vector, matrix and atomic type names to their
// byte size and alignment.
//
// Reference: https://www.w3.org/TR/WGSL/#alignment-and-size
var wgslPrimitiveLayoutMap = map[string]wgslTypeLayout{
	"f32":  {size: 4, align: 4},
	"i32":  {size: 4, align: 4},
	"u32":  {size: 4, align: 4},
	"f16":  {size: 2, align: 2},
	"bool": {size: 4, align: 4},

	"vec2<f32>": {size: 8, align: 8},
	"vec2f":     {size: 8, align: 8},
	"vec3<f32>": {size: 12, align: 16},
	"vec3f":     {size: 12, align: 16},
	"vec4<f32>": {size: 16, align: 16},
	"vec4f":     {size: 16, align: 16},

	"vec2<i32>": {size: 8, align: 8},
	"vec2i":     {size: 8, align: 8},
	"vec3<i32>": {size: 12, align: 16},
	"vec3i":     {size: 12, align: 16},
	"vec4<i32>": {size: 16, align: 16},
	"vec4i":     {size: 16, align: 16},

	"vec2<u32>": {size: 8, align: 8},
	"vec2u":     {size: 8, align: 8},
	"vec3<u32>": {size: 12, align: 16},
	"vec3u":     {size: 12, align: 16},
	"vec4<u32>": {size: 16, align: 16},
	"vec4u":     {size: 16, align: 16},

	"mat4x4<f32>": {size: 64, align: 16},

	"atomic<u32>": {size: 4, align: 4},
	"atomic<i32>": {size: 4, align: 4},
}

// roundUpAlign rounds value up to the next multiple of alignment, a power of two.
func roundUpAlign(alignment, value uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

// resolveTypeLayout resolves a WGSL type name to its size and alignment using primitives
// and previously computed struct layouts. A runtime-sized array resolves to its element
// stride with runtime set.
//
// Parameters:
//   - typeName: the WGSL type name, e.g. "u32", "AttribData", "array<AttribData>"
//   - knownTypes: already-resolved struct layouts
//
// Returns:
//   - wgslTypeLayout: the resolved layout
//   - bool: false for unknown types
func resolveTypeLayout(typeName string, knownTypes map[string]wgslTypeLayout) (wgslTypeLayout, bool) {
	if layout, ok := wgslPrimitiveLayoutMap[typeName]; ok {
		return layout, true
	}
	if layout, ok := knownTypes[typeName]; ok {
		return layout, true
	}

	inner, ok := strings.CutPrefix(typeName, "array<")
	if !ok || !strings.HasSuffix(inner, ">") {
		return wgslTypeLayout{}, false
	}
	parts := strings.SplitN(strings.TrimSuffix(inner, ">"), ",", 2)

	elem, ok := resolveTypeLayout(strings.TrimSpace(parts[0]), knownTypes)
	if !ok || elem.runtime {
		return wgslTypeLayout{}, false
	}
	stride := roundUpAlign(elem.align, elem.size)

	if len(parts) == 1 {
		return wgslTypeLayout{size: stride, align: elem.align, runtime: true}, true
	}
	count, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return wgslTypeLayout{}, false
	}
	return wgslTypeLayout{size: count * stride, align: elem.align}, true
}

// computeStructLayout lays out a struct by placing each field at its next aligned offset
// and rounding the total to the largest field alignment. A trailing runtime-sized array
// contributes its element stride, so the size is the minimum binding size.
func computeStructLayout(ps parsedStruct, knownTypes map[string]wgslTypeLayout) (wgslTypeLayout, bool) {
	offset := uint64(0)
	maxAlign := uint64(1)

	for _, field := range ps.fields {
		if field.isBuiltin {
			continue
		}
		fl, ok := resolveTypeLayout(field.typeName, knownTypes)
		if !ok {
			return wgslTypeLayout{}, false
		}
		offset = roundUpAlign(fl.align, offset) + fl.size
		maxAlign = max(maxAlign, fl.align)
	}

	return wgslTypeLayout{size: roundUpAlign(maxAlign, offset), align: maxAlign}, true
}

// computeStructSizes resolves every parsed struct, repeating until no further struct can be
// resolved so that structs may reference structs declared after them.
func computeStructSizes(structs []parsedStruct) map[string]wgslTypeLayout {
	resolved := make(map[string]wgslTypeLayout, len(structs))
	remaining := append([]parsedStruct(nil), structs...)

	for len(remaining) > 0 {
		next := remaining[:0]
		for _, ps := range remaining {
			if layout, ok := computeStructLayout(ps, resolved); ok {
				resolved[ps.name] = layout
			} else {
				next = append(next, ps)
			}
		}
		if len(next) == len(remaining) {
			break
		}
		remaining = next
	}
	return resolved
}

// classifyBuffer maps a WGSL address space qualifier to a buffer binding type.
// Handle types (textures, samplers) have no address space and are rejected.
func classifyBuffer(addressSpace string) (wgpu.BufferBindingType, error) {
	switch {
	case addressSpace == "uniform":
		return wgpu.BufferBindingTypeUniform, nil
	case strings.HasPrefix(addressSpace, "storage"):
		if strings.Contains(addressSpace, "read_write") {
			return wgpu.BufferBindingTypeStorage, nil
		}
		return wgpu.BufferBindingTypeReadOnlyStorage, nil
	case addressSpace == "":
		return wgpu.BufferBindingTypeUndefined, errors.New("texture and sampler bindings are not supported")
	default:
		return wgpu.BufferBindingTypeUndefined, fmt.Errorf("unknown address space %q", addressSpace)
	}
}

// stripComments removes both // and nested /* */ comments from WGSL source.
func stripComments(source string) string {
	return stripLineComments(stripBlockComments(source))
}

func stripLineComments(source string) string {
	var sb strings.Builder
	for line := range strings.SplitSeq(source, "\n") {
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func stripBlockComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	for i := 0; i < len(source); i++ {
		if i+1 < len(source) {
			switch {
			case source[i] == '/' && source[i+1] == '*':
				depth++
				i++
				continue
			case source[i] == '*' && source[i+1] == '/' && depth > 0:
				depth--
				i++
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
	}
	return sb.String()
}

// splitAtTopLevelCommas splits s at commas outside angle brackets, so array<T, N>
// stays one field.
func splitAtTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
