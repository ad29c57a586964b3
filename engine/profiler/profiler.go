package profiler

import (
	"fmt"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-copy/internal/logging"
)

// StageStats aggregates the durations recorded for one stage since the last report.
type StageStats struct {
	Count int
	Total time.Duration
	Max   time.Duration
}

// Average returns the mean duration, or zero when nothing was recorded.
func (s StageStats) Average() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Profiler tracks job stage timings and memory statistics for performance monitoring.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	mu             sync.Mutex
	stages         map[string]StageStats
	jobCount       int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// NewProfiler creates a new Profiler that reports at most once per interval.
// A non-positive interval defaults to 1 second.
//
// Parameters:
//   - interval: the minimum time between reports
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(interval time.Duration) *Profiler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Profiler{
		stages:         make(map[string]StageStats),
		lastTime:       time.Now(),
		updateInterval: interval,
	}
}

// Record adds one duration sample to a stage such as "plan" or "execute".
func (p *Profiler) Record(stage string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.stages[stage]
	s.Count++
	s.Total += d
	if d > s.Max {
		s.Max = d
	}
	p.stages[stage] = s
}

// Snapshot returns a copy of the stage statistics collected since the last report.
func (p *Profiler) Snapshot() map[string]StageStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	cp := make(map[string]StageStats, len(p.stages))
	for k, v := range p.stages {
		cp[k] = v
	}
	return cp
}

// Tick should be called once per finished job.
// Logs performance statistics when the update interval has elapsed, then resets the stage
// statistics. Statistics include: jobs per second, per-stage timings, heap usage, allocation
// rate, GC count/pause times, total memory.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.jobCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	jobsPerSec := float64(p.jobCount) / elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	// Alloc is live heap, Sys is the process footprint obtained from the OS
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024

	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 GC pauses
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			pause := p.memStats.PauseNs[i%256] / 1000
			if pause > maxPauseUs {
				maxPauseUs = pause
			}
		}
	}

	logging.Component("profiler").Infof("Jobs: %.2f/s | %s | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
		jobsPerSec, p.formatStages(), allocMB, allocRateMB, gcCount, lastPauseUs, maxPauseUs, sysMB)

	p.jobCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	clear(p.stages)
	return true
}

// formatStages renders the stage statistics in name order. The caller must hold p.mu.
func (p *Profiler) formatStages() string {
	if len(p.stages) == 0 {
		return "no stages"
	}
	names := make([]string, 0, len(p.stages))
	for name := range p.stages {
		names = append(names, name)
	}
	slices.Sort(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		s := p.stages[name]
		parts = append(parts, fmt.Sprintf("%s: avg %s, max %s (%d)", name, s.Average(), s.Max, s.Count))
	}
	return strings.Join(parts, ", ")
}
