package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-copy/engine/kernel"
	"github.com/Carmen-Shannon/oxy-copy/engine/profiler"
	"github.com/Carmen-Shannon/oxy-copy/internal/logging"
)

// ErrNotIdempotent is returned by RunRepeated when a later run produces a different output.
var ErrNotIdempotent = errors.New("engine: repeated run produced a different output")

// ErrInvalidRepeat is returned by RunRepeated for a non-positive run count.
var ErrInvalidRepeat = errors.New("engine: repeat count must be at least 1")

// Job is one kernel run: a dispatch over caller-owned buffers. Output is updated in place.
type Job struct {
	Dispatch kernel.Dispatch
	Input    []kernel.GPUAttribData
	Output   []kernel.GPUAttribData
}

// Result reports a finished job.
type Result struct {
	Plan     *kernel.Plan
	Executor string

	// Runs is the number of executions, 1 for Run.
	Runs int

	PlanDuration    time.Duration
	ExecuteDuration time.Duration
	VerifyDuration  time.Duration
}

// Summary renders the plan summary followed by the run timings.
func (r *Result) Summary() string {
	return fmt.Sprintf("%sexecutor %s, %d run(s): plan %s, execute %s, verify %s\n",
		r.Plan.Summary(), r.Executor, r.Runs, r.PlanDuration, r.ExecuteDuration, r.VerifyDuration)
}

// engine implements the Engine interface.
// Coordinates the planner, the executor and the profiler for each job.
type engine struct {
	mu sync.Mutex

	planner  kernel.Planner
	executor kernel.Executor

	// Planner settings, used when no planner is supplied
	limits  kernel.Limits
	policy  kernel.OverlapPolicy
	workers int

	profiler         *profiler.Profiler
	profilingEnabled bool
	profileInterval  time.Duration

	skipVerify bool
}

// Engine is the main entry point for running the copy kernel.
// It plans a job, executes it and verifies the output against the plan.
type Engine interface {
	// Planner returns the planner jobs are checked with.
	//
	// Returns:
	//   - kernel.Planner: the planner
	Planner() kernel.Planner

	// Executor returns the executor jobs run on.
	//
	// Returns:
	//   - kernel.Executor: the executor
	Executor() kernel.Executor

	// EnableProfiler enables stage timing output to the log.
	EnableProfiler()

	// DisableProfiler disables stage timing output.
	DisableProfiler()

	// Plan checks a job without running it.
	//
	// Parameters:
	//   - ctx: cancels enumeration
	//   - job: the job to check
	//
	// Returns:
	//   - *kernel.Plan: the validated plan
	//   - error: a *kernel.PreconditionError or ctx.Err()
	Plan(ctx context.Context, job Job) (*kernel.Plan, error)

	// Run plans a job, executes it into job.Output and verifies that every written index holds
	// the input value and every other index is unchanged.
	//
	// Parameters:
	//   - ctx: cancels planning and execution
	//   - job: the job to run
	//
	// Returns:
	//   - *Result: the plan and timings
	//   - error: a precondition, execution or verification error
	Run(ctx context.Context, job Job) (*Result, error)

	// RunRepeated runs a job n times, each run starting from the previous run's output, and
	// fails when any run changes the output of the first.
	//
	// Parameters:
	//   - ctx: cancels the runs
	//   - job: the job to run
	//   - n: the number of runs, at least 1
	//
	// Returns:
	//   - *Result: the plan and accumulated timings
	//   - error: ErrNotIdempotent, ErrInvalidRepeat or any Run error
	RunRepeated(ctx context.Context, job Job, n int) (*Result, error)
}

// NewEngine creates a new Engine instance with the provided options.
// Without options it plans with the default limits, reports overlaps and executes on the CPU.
//
// Parameters:
//   - options: functional options for engine configuration (executor, limits, profiling, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		limits:          kernel.DefaultLimits(),
		policy:          kernel.OverlapReport,
		profileInterval: time.Second,
	}
	for _, opt := range options {
		opt(e)
	}

	if e.planner == nil {
		e.planner = kernel.NewPlanner(
			kernel.WithLimits(e.limits),
			kernel.WithOverlapPolicy(e.policy),
			kernel.WithWorkers(e.workers),
		)
	}
	if e.executor == nil {
		e.executor = kernel.NewCPUExecutor(kernel.WithCPUWorkers(e.workers))
	}
	e.profiler = profiler.NewProfiler(e.profileInterval)

	return e
}

func (e *engine) Planner() kernel.Planner {
	return e.planner
}

func (e *engine) Executor() kernel.Executor {
	return e.executor
}

func (e *engine) EnableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = true
}

func (e *engine) DisableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = false
}

func (e *engine) profiling() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profilingEnabled
}

func (e *engine) Plan(ctx context.Context, job Job) (*kernel.Plan, error) {
	return e.planner.Plan(ctx, job.Dispatch, len(job.Input), len(job.Output))
}

func (e *engine) Run(ctx context.Context, job Job) (*Result, error) {
	start := time.Now()
	plan, err := e.Plan(ctx, job)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Plan:         plan,
		Executor:     e.executor.Name(),
		PlanDuration: time.Since(start),
	}
	e.record("plan", res.PlanDuration)
	if err := e.execute(ctx, plan, job, res); err != nil {
		return nil, err
	}
	res.Runs = 1
	e.tick()

	logging.Component("engine").Infof("%s finished on %s: %d records written, plan %s, execute %s",
		job.Dispatch, res.Executor, len(plan.Written), res.PlanDuration, res.ExecuteDuration)
	return res, nil
}

// execute runs one validated plan into job.Output and verifies it, adding timings to res.
func (e *engine) execute(ctx context.Context, plan *kernel.Plan, job Job, res *Result) error {
	var before []kernel.GPUAttribData
	if !e.skipVerify {
		before = slices.Clone(job.Output)
	}

	start := time.Now()
	if err := e.executor.Execute(ctx, plan, job.Input, job.Output); err != nil {
		return fmt.Errorf("%s executor: %w", e.executor.Name(), err)
	}
	elapsed := time.Since(start)
	res.ExecuteDuration += elapsed
	e.record("execute", elapsed)

	if e.skipVerify {
		return nil
	}
	start = time.Now()
	if err := kernel.Verify(plan, job.Input, before, job.Output); err != nil {
		return fmt.Errorf("%s executor: %w", e.executor.Name(), err)
	}
	elapsed = time.Since(start)
	res.VerifyDuration += elapsed
	e.record("verify", elapsed)
	return nil
}

func (e *engine) RunRepeated(ctx context.Context, job Job, n int) (*Result, error) {
	if n < 1 {
		return nil, fmt.Errorf("%d: %w", n, ErrInvalidRepeat)
	}

	res, err := e.Run(ctx, job)
	if err != nil {
		return nil, err
	}
	first := slices.Clone(job.Output)

	for run := 2; run <= n; run++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.execute(ctx, res.Plan, job, res); err != nil {
			return nil, fmt.Errorf("run %d: %w", run, err)
		}
		res.Runs++
		e.tick()

		if i := firstDifference(first, job.Output); i >= 0 {
			return nil, fmt.Errorf("run %d, index %d holds %v, first run %v: %w", run, i, job.Output[i].Vec, first[i].Vec, ErrNotIdempotent)
		}
	}

	logging.Component("engine").Debugf("%s: %d identical runs", job.Dispatch, n)
	return res, nil
}

// firstDifference returns the lowest index where a and b differ, or -1.
func firstDifference(a, b []kernel.GPUAttribData) int {
	if len(a) != len(b) {
		return min(len(a), len(b))
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return i
		}
	}
	return -1
}

func (e *engine) record(stage string, d time.Duration) {
	if e.profiling() {
		e.profiler.Record(stage, d)
	}
}

func (e *engine) tick() {
	if e.profiling() {
		e.profiler.Tick()
	}
}
