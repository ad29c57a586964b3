package kernel

import (
	"fmt"
)

// VerifyError describes the first output record that disagrees with the plan.
type VerifyError struct {
	Index   uint32
	Written bool
	Got     GPUAttribData
	Want    GPUAttribData
}

func (e *VerifyError) Error() string {
	kind := "untouched"
	if e.Written {
		kind = "written"
	}
	return fmt.Sprintf("%s index %d holds %v, want %v", kind, e.Index, e.Got.Vec, e.Want.Vec)
}

func (e *VerifyError) Unwrap() error {
	return ErrVerificationFailed
}

// Verify checks an executed output against its plan: every written index must hold the
// input record and every other index must still hold its value from before.
//
// Parameters:
//   - plan: the plan the output was produced with
//   - input: the input records
//   - before: a copy of the output taken before execution
//   - after: the output after execution
//
// Returns:
//   - error: a *VerifyError for the lowest mismatching index, or a buffer length error
func Verify(plan *Plan, input, before, after []GPUAttribData) error {
	if err := CheckBuffers(plan, input, after); err != nil {
		return err
	}
	if len(before) != len(after) {
		return fmt.Errorf("snapshot has %d records, output %d: %w", len(before), len(after), ErrBufferLengthMismatch)
	}

	next := 0
	for i := range after {
		idx := uint32(i)
		if next < len(plan.Written) && plan.Written[next] == idx {
			next++
			if !after[i].Equal(input[i]) {
				return &VerifyError{Index: idx, Written: true, Got: after[i], Want: input[i]}
			}
			continue
		}
		if !after[i].Equal(before[i]) {
			return &VerifyError{Index: idx, Got: after[i], Want: before[i]}
		}
	}
	return nil
}
