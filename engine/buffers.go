package engine

import (
	"fmt"
	"math/rand/v2"

	"github.com/Carmen-Shannon/oxy-copy/engine/kernel"
)

// FillKind selects how NewInput fills the input records.
type FillKind string

const (
	// FillIndex sets record i to {i, i+0.25, i+0.5, i+0.75}, so every index is distinguishable.
	FillIndex FillKind = "index"

	// FillRandom draws every component from a seeded PCG source in [0, 1).
	FillRandom FillKind = "random"

	// FillConstant sets every record to {1, 1, 1, 1}.
	FillConstant FillKind = "constant"
)

// NewInput creates n input records filled according to kind.
//
// Parameters:
//   - kind: the fill pattern
//   - n: the record count
//   - seed: the random seed, used by FillRandom only
//
// Returns:
//   - []kernel.GPUAttribData: the records
//   - error: an error for an unknown fill kind
func NewInput(kind FillKind, n int, seed int64) ([]kernel.GPUAttribData, error) {
	out := make([]kernel.GPUAttribData, n)
	switch kind {
	case FillIndex:
		for i := range out {
			f := float32(i)
			out[i].Vec = [4]float32{f, f + 0.25, f + 0.5, f + 0.75}
		}
	case FillRandom:
		rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
		for i := range out {
			out[i].Vec = [4]float32{rng.Float32(), rng.Float32(), rng.Float32(), rng.Float32()}
		}
	case FillConstant:
		for i := range out {
			out[i].Vec = [4]float32{1, 1, 1, 1}
		}
	default:
		return nil, fmt.Errorf("unknown fill %q", kind)
	}
	return out, nil
}

// NewSentinelOutput creates n output records with every component set to v, so records the
// kernel never writes are easy to spot.
func NewSentinelOutput(n int, v float32) []kernel.GPUAttribData {
	out := make([]kernel.GPUAttribData, n)
	for i := range out {
		out[i].Vec = [4]float32{v, v, v, v}
	}
	return out
}

// NewJob builds a job over freshly filled buffers. A length of 0 sizes both buffers to the
// dispatch's required length. Lengths beyond the default storage binding size are rejected
// before anything is allocated.
//
// Parameters:
//   - d: the dispatch
//   - length: the record count of both buffers, or 0
//   - kind: the input fill pattern
//   - seed: the random seed for FillRandom
//   - sentinel: the output fill value
//
// Returns:
//   - Job: the job
//   - error: an offset overflow, buffer size or unknown fill error
func NewJob(d kernel.Dispatch, length int, kind FillKind, seed int64, sentinel float32) (Job, error) {
	if length == 0 {
		n, err := d.RequiredLength()
		if err != nil {
			return Job{}, err
		}
		length = n
	}
	if err := kernel.DefaultLimits().CheckRecords(d, uint64(length)); err != nil {
		return Job{}, err
	}
	input, err := NewInput(kind, length, seed)
	if err != nil {
		return Job{}, err
	}
	return Job{
		Dispatch: d,
		Input:    input,
		Output:   NewSentinelOutput(length, sentinel),
	}, nil
}
