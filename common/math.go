package common

import (
	"unsafe"
)

// CopyBufferAlignment is the byte alignment WebGPU requires for buffer copy sizes and offsets,
// mapped ranges and indirect dispatch offsets.
const CopyBufferAlignment = 4

// Unsigned is the set of unsigned integer types the alignment helpers accept.
type Unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// CeilDiv returns n divided by d, rounded up. d must be greater than zero.
func CeilDiv[T Unsigned](n, d T) T {
	return (n + d - 1) / d
}

// AlignUp rounds n up to the next multiple of align.
//
// Parameters:
//   - n: the value to round
//   - align: the alignment, must be greater than zero
//
// Returns:
//   - T: the smallest multiple of align that is >= n
func AlignUp[T Unsigned](n, align T) T {
	return CeilDiv(n, align) * align
}

// IsAligned reports whether n is a multiple of align.
func IsAligned[T Unsigned](n, align T) bool {
	return n%align == 0
}

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}
