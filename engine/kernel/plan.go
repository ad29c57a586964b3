package kernel

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-copy/internal/logging"
)

// OverlapPolicy decides what the planner does when two invocations write the same index.
type OverlapPolicy int

const (
	// OverlapReport keeps the plan and records the collisions. Every write to index i stores
	// input[i], so colliding writes agree and the result stays deterministic.
	OverlapReport OverlapPolicy = iota

	// OverlapReject fails planning with ErrOverlappingWrites on any collision.
	OverlapReject
)

func (p OverlapPolicy) String() string {
	switch p {
	case OverlapReport:
		return "report"
	case OverlapReject:
		return "reject"
	default:
		return fmt.Sprintf("Unknown(%d)", int(p))
	}
}

// ParseOverlapPolicy parses "report" or "reject".
func ParseOverlapPolicy(s string) (OverlapPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "report", "":
		return OverlapReport, nil
	case "reject":
		return OverlapReject, nil
	default:
		return 0, fmt.Errorf("unknown overlap policy %q", s)
	}
}

// Collision is an output index written by more than one invocation.
type Collision struct {
	Index   uint32
	Writers uint64
}

// Plan is the checked result of enumerating every write of a dispatch against concrete
// buffer lengths. Executors only run validated plans.
type Plan struct {
	Dispatch  Dispatch
	Policy    OverlapPolicy
	InputLen  int
	OutputLen int

	// RequiredLen is the minimum length of both buffers.
	RequiredLen int

	// Invocations is the total number of kernel invocations.
	Invocations uint64

	// DegenerateInvocations counts invocations with a zero coordinate. All of them write {0,4,8,12}.
	DegenerateInvocations uint64

	// Written holds every output index the dispatch writes, sorted ascending and unique.
	Written []uint32

	// Collisions holds every index with more than one writer, sorted by index.
	Collisions []Collision
}

// TotalWrites returns the number of record writes the dispatch performs, counting repeats.
func (p *Plan) TotalWrites() uint64 {
	return p.Invocations * WritesPerInvocation
}

// Overlapping reports whether any index is written more than once.
func (p *Plan) Overlapping() bool {
	return len(p.Collisions) > 0
}

// Writes reports whether the dispatch writes index i.
func (p *Plan) Writes(i uint32) bool {
	_, found := slices.BinarySearch(p.Written, i)
	return found
}

// Coverage returns the fraction of the output buffer the dispatch writes.
func (p *Plan) Coverage() float64 {
	if p.OutputLen == 0 {
		return 0
	}
	return float64(len(p.Written)) / float64(p.OutputLen)
}

// MaxCollision returns the most-written index, or false when there are no collisions.
func (p *Plan) MaxCollision() (Collision, bool) {
	if len(p.Collisions) == 0 {
		return Collision{}, false
	}
	best := p.Collisions[0]
	for _, c := range p.Collisions[1:] {
		if c.Writers > best.Writers {
			best = c
		}
	}
	return best, true
}

// Summary renders the plan as human readable lines for logs and the CLI.
func (p *Plan) Summary() string {
	var sb strings.Builder
	g := p.Dispatch.GlobalSize()
	fmt.Fprintf(&sb, "%s, grid %dx%dx%d, %d invocations\n", p.Dispatch, g[0], g[1], g[2], p.Invocations)
	fmt.Fprintf(&sb, "buffers: input %d, output %d, required %d records\n", p.InputLen, p.OutputLen, p.RequiredLen)
	fmt.Fprintf(&sb, "writes: %d total, %d unique indices, coverage %.2f%%\n", p.TotalWrites(), len(p.Written), p.Coverage()*100)
	fmt.Fprintf(&sb, "degenerate invocations (zero coordinate, base offset 0): %d\n", p.DegenerateInvocations)
	if c, ok := p.MaxCollision(); ok {
		fmt.Fprintf(&sb, "overlap: %d indices written more than once, worst index %d with %d writers (policy %s)\n",
			len(p.Collisions), c.Index, c.Writers, p.Policy)
	} else {
		sb.WriteString("overlap: none\n")
	}
	return sb.String()
}

// planner is the implementation of the Planner interface.
type planner struct {
	limits  Limits
	policy  OverlapPolicy
	workers int
	pool    worker.DynamicWorkerPool
}

// Planner validates dispatches and buffer sizing for the copy kernel and enumerates
// the exact set of indices a dispatch writes.
type Planner interface {
	// Plan checks the dispatch against the device limits and the buffer lengths, then
	// enumerates every invocation's four writes.
	//
	// Parameters:
	//   - ctx: cancels enumeration between rounds of worker tasks
	//   - d: the work group counts
	//   - inputLen: the input buffer length in records
	//   - outputLen: the output buffer length in records
	//
	// Returns:
	//   - *Plan: the validated plan
	//   - error: a *PreconditionError wrapping one of the package sentinel errors, or ctx.Err()
	Plan(ctx context.Context, d Dispatch, inputLen, outputLen int) (*Plan, error)

	// Limits returns the device limits the planner validates against.
	//
	// Returns:
	//   - Limits: the configured limits
	Limits() Limits

	// OverlapPolicy returns the policy applied to colliding writes.
	//
	// Returns:
	//   - OverlapPolicy: the configured policy
	OverlapPolicy() OverlapPolicy
}

var _ Planner = &planner{}

// NewPlanner creates a Planner with the provided options applied. Without options it
// validates against DefaultLimits, reports overlaps and uses one worker per CPU. A zero
// storage binding size in the limits is replaced by the default.
//
// Parameters:
//   - options: functional options configuring the planner
//
// Returns:
//   - Planner: the planner
func NewPlanner(options ...PlannerBuilderOption) Planner {
	p := &planner{
		limits:  DefaultLimits(),
		policy:  OverlapReport,
		workers: runtime.NumCPU(),
	}
	for _, opt := range options {
		opt(p)
	}
	p.limits = p.limits.WithDefaults()
	if p.pool == nil {
		p.pool = NewWorkerPool(p.workers)
	}
	return p
}

func (p *planner) Limits() Limits {
	return p.limits
}

func (p *planner) OverlapPolicy() OverlapPolicy {
	return p.policy
}

func (p *planner) Plan(ctx context.Context, d Dispatch, inputLen, outputLen int) (*Plan, error) {
	if err := d.Validate(p.limits); err != nil {
		return nil, err
	}
	required, err := d.RequiredLength()
	if err != nil {
		return nil, err
	}
	// the writer counts below are sized by required, so it is bounded before anything else
	if err := p.limits.CheckRecords(d, uint64(required)); err != nil {
		return nil, err
	}
	if outputLen < required {
		return nil, &PreconditionError{Op: "plan", Dispatch: d,
			Err: fmt.Errorf("output length %d < %d: %w", outputLen, required, ErrOutputTooSmall)}
	}
	if inputLen < required {
		return nil, &PreconditionError{Op: "plan", Dispatch: d,
			Err: fmt.Errorf("input length %d < %d: %w", inputLen, required, ErrInputTooSmall)}
	}
	for _, n := range []int{inputLen, outputLen} {
		if err := p.limits.CheckRecords(d, uint64(n)); err != nil {
			return nil, err
		}
	}

	log := logging.Component("planner")
	log.Debugf("enumerating %s over %d records", d, required)

	counts := make([]uint64, required)
	degenerate, err := p.enumerate(ctx, d, counts)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Dispatch:              d,
		Policy:                p.policy,
		InputLen:              inputLen,
		OutputLen:             outputLen,
		RequiredLen:           required,
		Invocations:           d.InvocationCount(),
		DegenerateInvocations: degenerate,
	}
	for i, c := range counts {
		if c == 0 {
			continue
		}
		plan.Written = append(plan.Written, uint32(i))
		if c > 1 {
			plan.Collisions = append(plan.Collisions, Collision{Index: uint32(i), Writers: c})
		}
	}

	if plan.Overlapping() {
		worst, _ := plan.MaxCollision()
		if p.policy == OverlapReject {
			return nil, &PreconditionError{Op: "plan", Dispatch: d,
				Err: fmt.Errorf("index %d written by %d invocations: %w", plan.Collisions[0].Index, plan.Collisions[0].Writers, ErrOverlappingWrites)}
		}
		log.WithField("collisions", len(plan.Collisions)).
			Warnf("%s writes overlapping indices, worst index %d with %d writers", d, worst.Index, worst.Writers)
	}

	return plan, nil
}

// enumerate adds every invocation's writes to counts and returns the number of degenerate
// invocations. The z=0 layer and every zero row or column are counted in closed form since
// they all land on base 0. The remaining invocations all have distinct non-zero factors and
// are walked one by one, split by z layer across the worker pool. Their count equals
// MaxBaseOffset, which is bounded by the buffer length.
func (p *planner) enumerate(ctx context.Context, d Dispatch, counts []uint64) (uint64, error) {
	g := d.GlobalSize()

	// layer z=0: every invocation is degenerate
	degenerate := g[0] * g[1]
	// layers z>=1: row y=0 (g0 invocations) and column x=0 of the other rows (g1-1)
	degenerate += (g[2] - 1) * (g[0] + g[1] - 1)
	for k := range uint32(WritesPerInvocation) {
		counts[k*WriteStride] += degenerate
	}

	if g[2] <= 1 {
		return degenerate, nil
	}

	layers := splitRange(int(g[2]-1), p.workers*4, 1)
	err := runTasks(ctx, p.pool, len(layers), func(i int) {
		lo, hi := layers[i][0]+1, layers[i][1]+1
		for z := uint64(lo); z < uint64(hi); z++ {
			for y := uint64(1); y < g[1]; y++ {
				yz := y * z
				for x := uint64(1); x < g[0]; x++ {
					base := x * yz
					for k := range uint64(WritesPerInvocation) {
						atomic.AddUint64(&counts[base+k*WriteStride], 1)
					}
				}
			}
		}
	})
	if err != nil {
		return 0, err
	}
	return degenerate, nil
}
