package kernel

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"
)

func TestVerify(t *testing.T) {
	d := Dispatch{1, 1, 2}
	n := mustRequired(t, d) + 3
	plan, err := NewPlanner().Plan(context.Background(), d, n, n)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	in := indexRecords(n)
	before := sentinelRecords(n)

	executed := slices.Clone(before)
	if err := NewCPUExecutor(WithCPUWorkers(2)).Execute(context.Background(), plan, in, executed); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	untouched := -1
	for i := range n {
		if !plan.Writes(uint32(i)) {
			untouched = i
			break
		}
	}
	if untouched < 0 {
		t.Fatal("plan writes every index, test needs an untouched one")
	}

	tests := []struct {
		name        string
		mutate      func(out []GPUAttribData)
		wantErr     error
		wantIndex   uint32
		wantWritten bool
	}{
		{"correct output", func([]GPUAttribData) {}, nil, 0, false},
		{"missed write", func(out []GPUAttribData) { out[plan.Written[2]] = before[plan.Written[2]] }, ErrVerificationFailed, plan.Written[2], true},
		{"side channel write", func(out []GPUAttribData) { out[untouched] = in[untouched] }, ErrVerificationFailed, uint32(untouched), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			after := slices.Clone(executed)
			tt.mutate(after)
			err := Verify(plan, in, before, after)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Verify() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil {
				return
			}
			var ve *VerifyError
			if !errors.As(err, &ve) {
				t.Fatalf("Verify() error = %T, want *VerifyError", err)
			}
			if ve.Index != tt.wantIndex || ve.Written != tt.wantWritten {
				t.Errorf("VerifyError = {Index %d, Written %v}, want {Index %d, Written %v}", ve.Index, ve.Written, tt.wantIndex, tt.wantWritten)
			}
		})
	}
}

func TestVerifySnapshotMismatch(t *testing.T) {
	d := Dispatch{1, 1, 1}
	n := mustRequired(t, d)
	plan, err := NewPlanner().Plan(context.Background(), d, n, n)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	err = Verify(plan, indexRecords(n), sentinelRecords(n-1), sentinelRecords(n))
	if !errors.Is(err, ErrBufferLengthMismatch) {
		t.Errorf("Verify() error = %v, want %v", err, ErrBufferLengthMismatch)
	}
}

func TestVerifyNaNRecords(t *testing.T) {
	d := Dispatch{1, 1, 1}
	n := mustRequired(t, d) + 2
	plan, err := NewPlanner().Plan(context.Background(), d, n, n)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	nan := float32(math.NaN())

	tests := []struct {
		name     string
		input    func() []GPUAttribData
		sentinel func() []GPUAttribData
	}{
		{
			name: "nan input copied",
			input: func() []GPUAttribData {
				in := indexRecords(n)
				in[4].Vec[0] = nan
				return in
			},
			sentinel: func() []GPUAttribData { return sentinelRecords(n) },
		},
		{
			name:  "nan sentinel untouched",
			input: func() []GPUAttribData { return indexRecords(n) },
			sentinel: func() []GPUAttribData {
				out := make([]GPUAttribData, n)
				for i := range out {
					out[i] = GPUAttribData{Vec: [4]float32{nan, nan, nan, nan}}
				}
				return out
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.input()
			before := tt.sentinel()
			after := slices.Clone(before)
			if err := NewCPUExecutor().Execute(context.Background(), plan, in, after); err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if err := Verify(plan, in, before, after); err != nil {
				t.Errorf("Verify() error = %v, want nil", err)
			}
		})
	}
}
