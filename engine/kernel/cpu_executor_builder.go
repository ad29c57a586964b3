package kernel

import (
	"runtime"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// CPUExecutorBuilderOption is a functional option for configuring the CPU executor.
type CPUExecutorBuilderOption func(*cpuExecutor)

// WithCPUWorkers sets the number of concurrent copy tasks. Values <= 0 use runtime.NumCPU().
func WithCPUWorkers(n int) CPUExecutorBuilderOption {
	return func(e *cpuExecutor) {
		if n <= 0 {
			n = runtime.NumCPU()
		}
		e.workers = n
	}
}

// WithCPUWorkerPool shares an existing pool with the executor.
func WithCPUWorkerPool(pool worker.DynamicWorkerPool) CPUExecutorBuilderOption {
	return func(e *cpuExecutor) {
		e.pool = pool
	}
}

// WithMinChunkSize sets the smallest number of records handed to one task.
func WithMinChunkSize(n int) CPUExecutorBuilderOption {
	return func(e *cpuExecutor) {
		if n > 0 {
			e.minChunkSize = n
		}
	}
}
