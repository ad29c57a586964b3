package kernel

import (
	"errors"
	"fmt"
)

// Dispatch and buffer precondition errors.
var (
	// ErrWorkgroupCountZero is returned when any work group count is zero.
	ErrWorkgroupCountZero = errors.New("kernel: workgroup count must be greater than zero")

	// ErrWorkgroupCountExceedsLimit is returned when a work group count exceeds the device limit.
	ErrWorkgroupCountExceedsLimit = errors.New("kernel: workgroup count exceeds device limit")

	// ErrOffsetOverflow is returned when the largest written index does not fit in a u32.
	// The kernel computes offsets in u32 and would silently wrap.
	ErrOffsetOverflow = errors.New("kernel: write offset overflows u32")

	// ErrOutputTooSmall is returned when the output buffer cannot hold every written index.
	ErrOutputTooSmall = errors.New("kernel: output buffer shorter than required length")

	// ErrInputTooSmall is returned when the input buffer cannot serve every read index.
	ErrInputTooSmall = errors.New("kernel: input buffer shorter than required length")

	// ErrBufferExceedsLimit is returned when a buffer is larger than the storage binding limit.
	ErrBufferExceedsLimit = errors.New("kernel: buffer exceeds max storage buffer binding size")

	// ErrOverlappingWrites is returned under OverlapReject when two invocations write one index.
	ErrOverlappingWrites = errors.New("kernel: invocations write overlapping output indices")

	// ErrBufferLengthMismatch is returned when an executor receives buffers the plan was not built for.
	ErrBufferLengthMismatch = errors.New("kernel: buffer length does not match plan")

	// ErrNilPlan is returned when an executor is handed a nil plan.
	ErrNilPlan = errors.New("kernel: plan is nil")

	// ErrVerificationFailed is returned when an output does not match what the plan predicts.
	ErrVerificationFailed = errors.New("kernel: output does not match plan")

	// ErrMisalignedRecordData is returned when raw bytes are not a whole number of AttribData records.
	ErrMisalignedRecordData = errors.New("kernel: byte length is not a multiple of the AttribData stride")
)

// PreconditionError reports a failed host-side check together with the dispatch it was made for.
type PreconditionError struct {
	Op       string
	Dispatch Dispatch
	Err      error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Dispatch, e.Err)
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}
