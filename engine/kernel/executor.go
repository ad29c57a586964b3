package kernel

import (
	"context"
	"fmt"
)

// Executor runs a validated plan against concrete buffers.
type Executor interface {
	// Name returns a short identifier for logs, e.g. "cpu" or "gpu".
	//
	// Returns:
	//   - string: the executor name
	Name() string

	// Execute performs out[i] = in[i] for every index the plan writes. Indices the plan
	// does not write keep their previous contents.
	//
	// Parameters:
	//   - ctx: cancels execution between work units
	//   - plan: a plan returned by Planner.Plan
	//   - input: the input records, len(input) == plan.InputLen
	//   - output: the output records, len(output) == plan.OutputLen
	//
	// Returns:
	//   - error: ErrNilPlan, a wrapped ErrBufferLengthMismatch, ctx.Err() or a backend error
	Execute(ctx context.Context, plan *Plan, input, output []GPUAttribData) error
}

// CheckBuffers verifies that input and output have the lengths the plan was built for.
func CheckBuffers(plan *Plan, input, output []GPUAttribData) error {
	if plan == nil {
		return ErrNilPlan
	}
	if len(input) != plan.InputLen {
		return fmt.Errorf("input has %d records, plan expects %d: %w", len(input), plan.InputLen, ErrBufferLengthMismatch)
	}
	if len(output) != plan.OutputLen {
		return fmt.Errorf("output has %d records, plan expects %d: %w", len(output), plan.OutputLen, ErrBufferLengthMismatch)
	}
	return nil
}
