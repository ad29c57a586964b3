package kernel

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
)

// bruteCounts walks every invocation and tallies its writes.
func bruteCounts(d Dispatch) (map[uint32]uint64, uint64) {
	counts := make(map[uint32]uint64)
	var degenerate uint64
	d.ForEachInvocation(func(id GlobalID) bool {
		if id.Degenerate() {
			degenerate++
		}
		for _, off := range id.WriteOffsets() {
			counts[off]++
		}
		return true
	})
	return counts, degenerate
}

func mustRequired(t *testing.T, d Dispatch) int {
	t.Helper()
	n, err := d.RequiredLength()
	if err != nil {
		t.Fatalf("%v RequiredLength() error = %v", d, err)
	}
	return n
}

func TestPlanMatchesBruteForce(t *testing.T) {
	dispatches := []Dispatch{
		{1, 1, 1},
		{1, 1, 2},
		{2, 1, 3},
		{1, 3, 2},
		{2, 2, 5},
	}

	for _, workers := range []int{1, 3} {
		p := NewPlanner(WithWorkers(workers))
		for _, d := range dispatches {
			t.Run(d.String(), func(t *testing.T) {
				n := mustRequired(t, d)
				plan, err := p.Plan(context.Background(), d, n, n)
				if err != nil {
					t.Fatalf("Plan() error = %v", err)
				}

				want, wantDeg := bruteCounts(d)
				if plan.DegenerateInvocations != wantDeg {
					t.Errorf("DegenerateInvocations = %d, want %d", plan.DegenerateInvocations, wantDeg)
				}
				if len(plan.Written) != len(want) {
					t.Fatalf("len(Written) = %d, want %d", len(plan.Written), len(want))
				}
				for i, idx := range plan.Written {
					if want[idx] == 0 {
						t.Errorf("Written contains %d, which no invocation writes", idx)
					}
					if i > 0 && plan.Written[i-1] >= idx {
						t.Errorf("Written not strictly ascending at %d", i)
					}
				}

				wantCollisions := 0
				for _, c := range want {
					if c > 1 {
						wantCollisions++
					}
				}
				if len(plan.Collisions) != wantCollisions {
					t.Errorf("len(Collisions) = %d, want %d", len(plan.Collisions), wantCollisions)
				}
				for _, c := range plan.Collisions {
					if c.Writers != want[c.Index] {
						t.Errorf("Collisions[%d].Writers = %d, want %d", c.Index, c.Writers, want[c.Index])
					}
				}
				if plan.TotalWrites() != d.InvocationCount()*WritesPerInvocation {
					t.Errorf("TotalWrites() = %d, want %d", plan.TotalWrites(), d.InvocationCount()*WritesPerInvocation)
				}
			})
		}
	}
}

func TestPlanSingleLayerIsFullyDegenerate(t *testing.T) {
	d := Dispatch{4, 4, 1}
	plan, err := NewPlanner().Plan(context.Background(), d, 13, 20)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if got, want := plan.Written, []uint32{0, 4, 8, 12}; !slices.Equal(got, want) {
		t.Errorf("Written = %v, want %v", got, want)
	}
	if plan.DegenerateInvocations != d.InvocationCount() {
		t.Errorf("DegenerateInvocations = %d, want %d", plan.DegenerateInvocations, d.InvocationCount())
	}
	for _, c := range plan.Collisions {
		if c.Writers != d.InvocationCount() {
			t.Errorf("Collisions[%d].Writers = %d, want %d", c.Index, c.Writers, d.InvocationCount())
		}
	}
	if plan.Writes(1) || !plan.Writes(12) {
		t.Errorf("Writes(1) = %v, Writes(12) = %v, want false, true", plan.Writes(1), plan.Writes(12))
	}
	if got, want := plan.Coverage(), 4.0/20.0; got != want {
		t.Errorf("Coverage() = %v, want %v", got, want)
	}
}

func TestPlanPreconditions(t *testing.T) {
	d := Dispatch{1, 1, 2}
	n := mustRequired(t, d)

	tests := []struct {
		name      string
		opts      []PlannerBuilderOption
		d         Dispatch
		inputLen  int
		outputLen int
		wantErr   error
	}{
		{"zero workgroups", nil, Dispatch{1, 0, 1}, n, n, ErrWorkgroupCountZero},
		{"over limit", []PlannerBuilderOption{WithLimits(Limits{MaxWorkgroupsPerDimension: 1})}, d, n, n, ErrWorkgroupCountExceedsLimit},
		{"output too small", nil, d, n, n - 1, ErrOutputTooSmall},
		{"input too small", nil, d, n - 1, n, ErrInputTooSmall},
		{"binding too large", []PlannerBuilderOption{WithLimits(Limits{MaxStorageBufferBindingSize: uint64(n-1) * AttribDataStride})}, d, n, n, ErrBufferExceedsLimit},
		{"overflow", nil, Dispatch{65535, 65535, 65535}, n, n, ErrOffsetOverflow},
		// 4293918733 records: fits a u32 offset, but not the default storage binding size
		{"required length over default binding size", nil, Dispatch{1024, 1024, 65}, 4293918733, 4293918733, ErrBufferExceedsLimit},
		{"zero limits use default binding size", []PlannerBuilderOption{WithLimits(Limits{})}, Dispatch{1024, 1024, 65}, 4293918733, 4293918733, ErrBufferExceedsLimit},
		{"reject overlap", []PlannerBuilderOption{WithOverlapPolicy(OverlapReject)}, d, n, n, ErrOverlappingWrites},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := NewPlanner(tt.opts...).Plan(context.Background(), tt.d, tt.inputLen, tt.outputLen)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Plan() error = %v, want %v", err, tt.wantErr)
			}
			if plan != nil {
				t.Errorf("Plan() = %v, want nil on error", plan)
			}
			var pe *PreconditionError
			if !errors.As(err, &pe) {
				t.Errorf("Plan() error type = %T, want *PreconditionError", err)
			}
		})
	}
}

func TestPlanCanceledContext(t *testing.T) {
	d := Dispatch{1, 1, 2}
	n := mustRequired(t, d)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewPlanner().Plan(ctx, d, n, n); !errors.Is(err, context.Canceled) {
		t.Errorf("Plan() error = %v, want %v", err, context.Canceled)
	}
}

func TestPlanSummary(t *testing.T) {
	d := Dispatch{1, 1, 2}
	n := mustRequired(t, d)
	plan, err := NewPlanner().Plan(context.Background(), d, n, n)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	s := plan.Summary()
	for _, want := range []string{"dispatch(1,1,2)", "grid 8x8x2", "required 62 records", "policy report"} {
		if !strings.Contains(s, want) {
			t.Errorf("Summary() = %q, missing %q", s, want)
		}
	}
}

func TestParseOverlapPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    OverlapPolicy
		wantErr bool
	}{
		{"report", OverlapReport, false},
		{"REJECT", OverlapReject, false},
		{"", OverlapReport, false},
		{"ignore", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseOverlapPolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOverlapPolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseOverlapPolicy(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
