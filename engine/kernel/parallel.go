package kernel

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// taskQueueSize is the worker pool queue depth. runTasks never has more than this many
// tasks in flight, so submission cannot outrun the queue.
const taskQueueSize = 256

// NewWorkerPool creates the dynamic worker pool shared by the planner and the CPU executor.
// A workers value <= 0 uses runtime.NumCPU().
//
// Parameters:
//   - workers: the maximum number of concurrent workers
//
// Returns:
//   - worker.DynamicWorkerPool: the pool; idle workers exit after one second
func NewWorkerPool(workers int) worker.DynamicWorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return worker.NewDynamicWorkerPool(workers, taskQueueSize, 1*time.Second)
}

// runTasks runs fn(0..n-1) on the pool in rounds of at most taskQueueSize tasks.
// A WaitGroup is the per-round barrier; ctx is checked between rounds.
func runTasks(ctx context.Context, pool worker.DynamicWorkerPool, n int, fn func(i int)) error {
	for start := 0; start < n; start += taskQueueSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+taskQueueSize, n)

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			id := i
			pool.SubmitTask(worker.Task{
				ID: id,
				Do: func() (any, error) {
					defer wg.Done()
					fn(id)
					return nil, nil
				},
			})
		}
		wg.Wait()
	}
	return nil
}

// splitRange cuts [0, n) into at most parts contiguous ranges of at least minSize elements.
func splitRange(n, parts, minSize int) [][2]int {
	if n <= 0 {
		return nil
	}
	parts = max(parts, 1)
	minSize = max(minSize, 1)
	size := max((n+parts-1)/parts, minSize)

	ranges := make([][2]int, 0, (n+size-1)/size)
	for lo := 0; lo < n; lo += size {
		ranges = append(ranges, [2]int{lo, min(lo+size, n)})
	}
	return ranges
}
