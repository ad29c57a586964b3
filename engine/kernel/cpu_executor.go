package kernel

import (
	"context"
	"runtime"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-copy/internal/logging"
)

// defaultMinChunkSize keeps tiny plans on a single task.
const defaultMinChunkSize = 1024

// cpuExecutor is the implementation of the Executor interface that runs on the host.
type cpuExecutor struct {
	workers      int
	minChunkSize int
	pool         worker.DynamicWorkerPool
}

var _ Executor = &cpuExecutor{}

// NewCPUExecutor creates an Executor that applies a plan on the host. The plan's written
// indices are split into disjoint chunks and copied on the worker pool, so no two tasks
// ever touch the same record and colliding kernel writes collapse into one store.
//
// Parameters:
//   - options: functional options configuring the executor
//
// Returns:
//   - Executor: the CPU executor
func NewCPUExecutor(options ...CPUExecutorBuilderOption) Executor {
	e := &cpuExecutor{
		workers:      runtime.NumCPU(),
		minChunkSize: defaultMinChunkSize,
	}
	for _, opt := range options {
		opt(e)
	}
	if e.pool == nil {
		e.pool = NewWorkerPool(e.workers)
	}
	return e
}

func (e *cpuExecutor) Name() string {
	return "cpu"
}

func (e *cpuExecutor) Execute(ctx context.Context, plan *Plan, input, output []GPUAttribData) error {
	if err := CheckBuffers(plan, input, output); err != nil {
		return err
	}

	chunks := splitRange(len(plan.Written), e.workers*4, e.minChunkSize)
	logging.Component("cpu").Debugf("copying %d records of %s in %d chunks", len(plan.Written), plan.Dispatch, len(chunks))

	return runTasks(ctx, e.pool, len(chunks), func(i int) {
		for _, idx := range plan.Written[chunks[i][0]:chunks[i][1]] {
			output[idx] = input[idx]
		}
	})
}
