package engine

import (
	"github.com/Carmen-Shannon/oxy-copy/common"
)

// GPUExecutorBuilderOption is a functional option for configuring a GPUExecutor.
type GPUExecutorBuilderOption func(*gpuExecutor)

// WithIndirectDispatch makes the executor read the work group counts from an indirect
// buffer on the GPU instead of passing them with the dispatch call.
//
// Parameters:
//   - enabled: true to dispatch indirectly
//
// Returns:
//   - GPUExecutorBuilderOption: option function to apply
func WithIndirectDispatch(enabled bool) GPUExecutorBuilderOption {
	return func(e *gpuExecutor) {
		e.indirect = enabled
	}
}

// WithExecutorLabel sets the debug label prefix of the executor's GPU objects.
// An empty label keeps the default.
func WithExecutorLabel(label string) GPUExecutorBuilderOption {
	return func(e *gpuExecutor) {
		e.label = common.Coalesce(label, e.label)
	}
}
