package kernel

import (
	"fmt"
	"math"
	"math/bits"
)

// Local work group size declared by the copy kernel (@workgroup_size(8, 8, 1)).
const (
	WorkgroupSizeX uint32 = 8
	WorkgroupSizeY uint32 = 8
	WorkgroupSizeZ uint32 = 1
)

// WritesPerInvocation is the number of records each invocation copies.
const WritesPerInvocation = 4

// WriteStride is the index distance between consecutive writes of one invocation.
const WriteStride = 4

// WorkgroupSize returns the declared local size as [x, y, z].
func WorkgroupSize() [3]uint32 {
	return [3]uint32{WorkgroupSizeX, WorkgroupSizeY, WorkgroupSizeZ}
}

// Limits are the device limits a dispatch is validated against.
type Limits struct {
	// MaxWorkgroupsPerDimension bounds each of Dispatch.X, Y and Z.
	MaxWorkgroupsPerDimension uint32
	// MaxStorageBufferBindingSize bounds the byte size of each bound buffer. It also bounds
	// the host allocations made while planning, so zero means the WebGPU default.
	MaxStorageBufferBindingSize uint64
}

// WithDefaults returns l with a zero MaxStorageBufferBindingSize replaced by the default.
// A zero MaxWorkgroupsPerDimension stays unbounded.
func (l Limits) WithDefaults() Limits {
	if l.MaxStorageBufferBindingSize == 0 {
		l.MaxStorageBufferBindingSize = DefaultLimits().MaxStorageBufferBindingSize
	}
	return l
}

// MaxRecords returns the number of AttribData records that fit one storage binding.
func (l Limits) MaxRecords() uint64 {
	return l.WithDefaults().MaxStorageBufferBindingSize / AttribDataStride
}

// CheckRecords fails with ErrBufferExceedsLimit when a buffer of n records does not fit one
// storage binding.
//
// Parameters:
//   - d: the dispatch the buffer is for, reported in the error
//   - n: the buffer length in records
//
// Returns:
//   - error: a *PreconditionError wrapping ErrBufferExceedsLimit, or nil
func (l Limits) CheckRecords(d Dispatch, n uint64) error {
	if limit := l.MaxRecords(); n > limit {
		return &PreconditionError{Op: "plan", Dispatch: d,
			Err: fmt.Errorf("%d records > %d (%d bytes): %w", n, limit, l.WithDefaults().MaxStorageBufferBindingSize, ErrBufferExceedsLimit)}
	}
	return nil
}

// DefaultLimits returns the WebGPU default limits for compute dispatch and storage bindings.
func DefaultLimits() Limits {
	return Limits{
		MaxWorkgroupsPerDimension:   65535,
		MaxStorageBufferBindingSize: 128 << 20,
	}
}

// GlobalID is a global invocation id as [x, y, z].
type GlobalID [3]uint32

// BaseOffset returns the first index the invocation copies: x*y*z in wrapping u32 arithmetic,
// exactly as the kernel computes it.
func (g GlobalID) BaseOffset() uint32 {
	return g[0] * g[1] * g[2]
}

// WriteOffsets returns the four indices the invocation copies, in write order.
func (g GlobalID) WriteOffsets() [WritesPerInvocation]uint32 {
	var out [WritesPerInvocation]uint32
	offset := g.BaseOffset()
	for k := range out {
		out[k] = offset
		offset += WriteStride
	}
	return out
}

// Degenerate reports whether any coordinate is zero, which forces the base offset to 0.
func (g GlobalID) Degenerate() bool {
	return g[0] == 0 || g[1] == 0 || g[2] == 0
}

// Dispatch is the number of work groups launched along x, y and z.
type Dispatch struct {
	X, Y, Z uint32
}

func (d Dispatch) String() string {
	return fmt.Sprintf("dispatch(%d,%d,%d)", d.X, d.Y, d.Z)
}

// Validate checks the work group counts against the device limits.
//
// Parameters:
//   - limits: the device limits to check against
//
// Returns:
//   - error: a *PreconditionError wrapping ErrWorkgroupCountZero or ErrWorkgroupCountExceedsLimit
func (d Dispatch) Validate(limits Limits) error {
	for axis, n := range [3]uint32{d.X, d.Y, d.Z} {
		if n == 0 {
			return &PreconditionError{Op: "validate", Dispatch: d,
				Err: fmt.Errorf("axis %c: %w", "xyz"[axis], ErrWorkgroupCountZero)}
		}
		if limits.MaxWorkgroupsPerDimension > 0 && n > limits.MaxWorkgroupsPerDimension {
			return &PreconditionError{Op: "validate", Dispatch: d,
				Err: fmt.Errorf("axis %c: %d > %d: %w", "xyz"[axis], n, limits.MaxWorkgroupsPerDimension, ErrWorkgroupCountExceedsLimit)}
		}
	}
	return nil
}

// GlobalSize returns the invocation grid extent along each axis.
func (d Dispatch) GlobalSize() [3]uint64 {
	return [3]uint64{
		uint64(d.X) * uint64(WorkgroupSizeX),
		uint64(d.Y) * uint64(WorkgroupSizeY),
		uint64(d.Z) * uint64(WorkgroupSizeZ),
	}
}

// WorkgroupCount returns X*Y*Z.
func (d Dispatch) WorkgroupCount() uint64 {
	return uint64(d.X) * uint64(d.Y) * uint64(d.Z)
}

// InvocationCount returns the total number of kernel invocations.
func (d Dispatch) InvocationCount() uint64 {
	g := d.GlobalSize()
	return g[0] * g[1] * g[2]
}

// MaxBaseOffset returns the largest base offset over all invocations, computed without wrapping.
// It is reached by the invocation with the largest coordinate on every axis. The result
// saturates at math.MaxUint64 when the product does not fit.
func (d Dispatch) MaxBaseOffset() uint64 {
	g := d.GlobalSize()
	if g[0] <= 1 || g[1] <= 1 || g[2] <= 1 {
		return 0
	}
	hi, xy := bits.Mul64(g[0]-1, g[1]-1)
	if hi != 0 {
		return math.MaxUint64
	}
	hi, xyz := bits.Mul64(xy, g[2]-1)
	if hi != 0 {
		return math.MaxUint64
	}
	return xyz
}

// MaxWriteIndex returns the largest index any invocation writes.
//
// Returns:
//   - uint32: MaxBaseOffset()+12
//   - error: ErrOffsetOverflow if the kernel's u32 arithmetic would wrap
func (d Dispatch) MaxWriteIndex() (uint32, error) {
	const lastDelta = WriteStride * (WritesPerInvocation - 1)
	base := d.MaxBaseOffset()
	if base > math.MaxUint32-lastDelta {
		return 0, &PreconditionError{Op: "max write index", Dispatch: d, Err: ErrOffsetOverflow}
	}
	return uint32(base + lastDelta), nil
}

// RequiredLength returns the minimum record count both buffers need for every access to be in bounds.
//
// Returns:
//   - int: MaxWriteIndex()+1
//   - error: ErrOffsetOverflow if the kernel's u32 arithmetic would wrap
func (d Dispatch) RequiredLength() (int, error) {
	last, err := d.MaxWriteIndex()
	if err != nil {
		return 0, err
	}
	return int(last) + 1, nil
}

// ForEachInvocation calls fn for every global invocation id of the dispatch in x-fastest order.
// Iteration stops early when fn returns false. Intended for small grids and tests; the planner
// uses a layered walk instead.
func (d Dispatch) ForEachInvocation(fn func(GlobalID) bool) {
	g := d.GlobalSize()
	for z := uint64(0); z < g[2]; z++ {
		for y := uint64(0); y < g[1]; y++ {
			for x := uint64(0); x < g[0]; x++ {
				if !fn(GlobalID{uint32(x), uint32(y), uint32(z)}) {
					return
				}
			}
		}
	}
}
