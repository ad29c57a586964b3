package kernel

import (
	"runtime"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// PlannerBuilderOption is a functional option for configuring a Planner.
type PlannerBuilderOption func(*planner)

// WithLimits sets the device limits dispatches are validated against.
func WithLimits(limits Limits) PlannerBuilderOption {
	return func(p *planner) {
		p.limits = limits
	}
}

// WithOverlapPolicy sets how the planner treats colliding writes.
func WithOverlapPolicy(policy OverlapPolicy) PlannerBuilderOption {
	return func(p *planner) {
		p.policy = policy
	}
}

// WithWorkers sets the number of workers used to enumerate writes. Values <= 0 use runtime.NumCPU().
func WithWorkers(n int) PlannerBuilderOption {
	return func(p *planner) {
		if n <= 0 {
			n = runtime.NumCPU()
		}
		p.workers = n
	}
}

// WithWorkerPool shares an existing pool with the planner instead of creating one.
func WithWorkerPool(pool worker.DynamicWorkerPool) PlannerBuilderOption {
	return func(p *planner) {
		p.pool = pool
	}
}
