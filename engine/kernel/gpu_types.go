package kernel

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"
)

// GPUAttribDataSource is the canonical WGSL definition of the AttribData struct.
// Matches GPUAttribData layout exactly (16 bytes, std430 aligned).
//
//go:embed assets/attrib_data.wgsl
var GPUAttribDataSource string

// CopyKernelSource is the annotated WGSL source of the copy kernel. The @oxy: annotations
// are resolved by the shader pre-processor before compilation.
//
//go:embed assets/copy_kernel.wgsl
var CopyKernelSource string

// AttribDataStride is the std430 array stride of AttribData in bytes.
const AttribDataStride = 16

// GPUAttribData is the GPU-aligned representation of a single AttribData record.
// Size: 16 bytes (std430 aligned, no padding).
type GPUAttribData struct {
	Vec [4]float32 // offset 0, size 16 (vec4<f32>)
}

// Size returns the size of the GPUAttribData struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (16)
func (g *GPUAttribData) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Equal reports whether g and o hold the same bits. Unlike ==, a NaN component equals
// itself and -0 differs from +0, which is what a copy has to preserve.
//
// Parameters:
//   - o: the record to compare with
//
// Returns:
//   - bool: true if all four components are bitwise identical
func (g *GPUAttribData) Equal(o GPUAttribData) bool {
	for i := range g.Vec {
		if math.Float32bits(g.Vec[i]) != math.Float32bits(o.Vec[i]) {
			return false
		}
	}
	return true
}

// Marshal serializes the GPUAttribData struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload
func (g *GPUAttribData) Marshal() []byte {
	buf := make([]byte, AttribDataStride)
	g.put(buf)
	return buf
}

// Unmarshal decodes a 16-byte little-endian record into g.
//
// Parameters:
//   - buf: the raw record bytes, at least 16 bytes long
//
// Returns:
//   - error: ErrMisalignedRecordData if buf is shorter than one record
func (g *GPUAttribData) Unmarshal(buf []byte) error {
	if len(buf) < AttribDataStride {
		return fmt.Errorf("unmarshal attrib data of %d bytes: %w", len(buf), ErrMisalignedRecordData)
	}
	for i := range 4 {
		g.Vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return nil
}

func (g *GPUAttribData) put(buf []byte) {
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.Vec[i]))
	}
}

// MarshalAttribData serializes a run of records into one contiguous std430 buffer.
//
// Parameters:
//   - records: the records to serialize
//
// Returns:
//   - []byte: len(records)*16 bytes
func MarshalAttribData(records []GPUAttribData) []byte {
	buf := make([]byte, len(records)*AttribDataStride)
	for i := range records {
		records[i].put(buf[i*AttribDataStride:])
	}
	return buf
}

// UnmarshalAttribData decodes a std430 buffer of AttribData records.
//
// Parameters:
//   - buf: raw buffer bytes, a whole multiple of 16
//
// Returns:
//   - []GPUAttribData: the decoded records
//   - error: ErrMisalignedRecordData if the length is not a multiple of the stride
func UnmarshalAttribData(buf []byte) ([]GPUAttribData, error) {
	if len(buf)%AttribDataStride != 0 {
		return nil, fmt.Errorf("unmarshal %d bytes: %w", len(buf), ErrMisalignedRecordData)
	}
	records := make([]GPUAttribData, len(buf)/AttribDataStride)
	for i := range records {
		// length already checked, cannot fail
		_ = records[i].Unmarshal(buf[i*AttribDataStride:])
	}
	return records, nil
}
