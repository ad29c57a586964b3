package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-copy/engine/kernel"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables stage timing output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithProfileInterval sets the minimum time between profiler reports. Values <= 0 mean 1 second.
//
// Parameters:
//   - interval: the report interval
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfileInterval(interval time.Duration) EngineBuilderOption {
	return func(e *engine) {
		e.profileInterval = interval
	}
}

// WithExecutor sets the executor jobs run on. The default is a CPU executor.
//
// Parameters:
//   - exec: the executor
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithExecutor(exec kernel.Executor) EngineBuilderOption {
	return func(e *engine) {
		e.executor = exec
	}
}

// WithPlanner sets a pre-configured planner. WithLimits, WithOverlapPolicy and WithWorkers
// are ignored for planning when a planner is supplied.
//
// Parameters:
//   - p: the planner
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithPlanner(p kernel.Planner) EngineBuilderOption {
	return func(e *engine) {
		e.planner = p
	}
}

// WithLimits sets the device limits dispatches are validated against.
//
// Parameters:
//   - limits: the limits, usually renderer.Renderer.Limits()
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithLimits(limits kernel.Limits) EngineBuilderOption {
	return func(e *engine) {
		e.limits = limits
	}
}

// WithOverlapPolicy sets how overlapping kernel writes are handled.
//
// Parameters:
//   - policy: kernel.OverlapReport (default) or kernel.OverlapReject
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithOverlapPolicy(policy kernel.OverlapPolicy) EngineBuilderOption {
	return func(e *engine) {
		e.policy = policy
	}
}

// WithWorkers sets the worker count of the default planner and CPU executor.
// Values <= 0 use one worker per CPU.
//
// Parameters:
//   - n: the number of workers
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWorkers(n int) EngineBuilderOption {
	return func(e *engine) {
		e.workers = n
	}
}

// WithVerification enables or disables the post-run output check. It is enabled by default.
//
// Parameters:
//   - enabled: false to skip verification
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithVerification(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.skipVerify = !enabled
	}
}
