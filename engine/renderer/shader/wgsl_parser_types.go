package shader

import "github.com/cogentcore/webgpu/wgpu"

// wgslTypeLayout holds the byte size and alignment for a WGSL type.
// For runtime-sized arrays size is the element stride.
type wgslTypeLayout struct {
	size    uint64
	align   uint64
	runtime bool
}

// parsedField represents a single field extracted from a WGSL struct during parsing
type parsedField struct {
	name      string
	typeName  string
	isBuiltin bool
}

// parsedStruct represents a WGSL struct block extracted during parsing
type parsedStruct struct {
	name   string
	fields []parsedField
}

// BindingInfo describes one buffer binding declared by a shader.
type BindingInfo struct {
	Group   int
	Binding int

	// Name is the WGSL variable name.
	Name string

	// Type is the declared WGSL type, e.g. "array<AttribData>".
	Type string

	// BufferType is the binding type derived from the address space.
	BufferType wgpu.BufferBindingType

	// ElementStride is the byte stride of one element for runtime-sized arrays, or the
	// full type size otherwise.
	ElementStride uint64

	// RuntimeSized reports whether the binding is a runtime-sized array.
	RuntimeSized bool
}

// Writable reports whether the shader may write through this binding.
func (b BindingInfo) Writable() bool {
	return b.BufferType == wgpu.BufferBindingTypeStorage
}
