package engine

import (
	"errors"
	"slices"
	"testing"

	"github.com/Carmen-Shannon/oxy-copy/engine/kernel"
)

func TestNewInput(t *testing.T) {
	tests := []struct {
		name    string
		kind    FillKind
		wantErr bool
	}{
		{"index", FillIndex, false},
		{"random", FillRandom, false},
		{"constant", FillConstant, false},
		{"unknown", FillKind("zeros"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewInput(tt.kind, 8, 42)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewInput() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != 8 {
				t.Errorf("len(NewInput()) = %d, want 8", len(got))
			}
		})
	}

	idx, _ := NewInput(FillIndex, 3, 0)
	if want := [4]float32{2, 2.25, 2.5, 2.75}; idx[2].Vec != want {
		t.Errorf("index fill [2] = %v, want %v", idx[2].Vec, want)
	}

	a, _ := NewInput(FillRandom, 16, 7)
	b, _ := NewInput(FillRandom, 16, 7)
	c, _ := NewInput(FillRandom, 16, 8)
	if !slices.Equal(a, b) {
		t.Error("random fill with the same seed differs")
	}
	if slices.Equal(a, c) {
		t.Error("random fill with different seeds is identical")
	}
}

func TestNewJob(t *testing.T) {
	d := kernel.Dispatch{X: 1, Y: 1, Z: 2}
	job, err := NewJob(d, 0, FillIndex, 0, -1)
	if err != nil {
		t.Fatalf("NewJob() error = %v", err)
	}
	if len(job.Input) != 62 || len(job.Output) != 62 {
		t.Errorf("NewJob() lengths = %d/%d, want 62/62", len(job.Input), len(job.Output))
	}
	if want := [4]float32{-1, -1, -1, -1}; job.Output[61].Vec != want {
		t.Errorf("Output[61] = %v, want %v", job.Output[61].Vec, want)
	}

	_, err = NewJob(kernel.Dispatch{X: 1024, Y: 1024, Z: 66}, 0, FillIndex, 0, 0)
	if !errors.Is(err, kernel.ErrOffsetOverflow) {
		t.Errorf("NewJob() error = %v, want %v", err, kernel.ErrOffsetOverflow)
	}

	_, err = NewJob(kernel.Dispatch{X: 1024, Y: 1024, Z: 65}, 0, FillIndex, 0, 0)
	if !errors.Is(err, kernel.ErrBufferExceedsLimit) {
		t.Errorf("NewJob() error = %v, want %v", err, kernel.ErrBufferExceedsLimit)
	}
}
