// Package stats aggregates per-run timings and outcomes across repeated
// fixture runs.
package stats

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"
)

// Phase identifies a step of the orchestration protocol.
type Phase string

const (
	PhaseRegistryStart Phase = "registry_start"
	PhaseNodeStart     Phase = "node_start"
	PhaseDeploy        Phase = "deploy"
	PhaseClient        Phase = "client"
	PhaseRemove        Phase = "remove"
	PhaseNodeStop      Phase = "node_stop"
	PhaseRegistryStop  Phase = "registry_stop"
	PhaseTotal         Phase = "total"
)

// phaseOrder is the display order in the exit summary.
var phaseOrder = []Phase{
	PhaseRegistryStart,
	PhaseNodeStart,
	PhaseDeploy,
	PhaseClient,
	PhaseRemove,
	PhaseNodeStop,
	PhaseRegistryStop,
	PhaseTotal,
}

// RunResult is the outcome of one fixture run.
type RunResult struct {
	Run        int
	Passed     bool
	ClientExit int
	Duration   time.Duration

	// FailedStep names the orchestration step that failed, empty for a
	// client-determined outcome.
	FailedStep string
}

// Recorder accumulates phase durations and run results. Safe for use from
// the supervisor callbacks and the orchestrator goroutine.
type Recorder struct {
	mu      sync.Mutex
	digests map[Phase]*tdigest.TDigest
	counts  map[Phase]int
	runs    []RunResult
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		digests: make(map[Phase]*tdigest.TDigest),
		counts:  make(map[Phase]int),
	}
}

// Observe records one phase duration.
func (r *Recorder) Observe(phase Phase, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	td, ok := r.digests[phase]
	if !ok {
		td = tdigest.NewWithCompression(100)
		r.digests[phase] = td
	}
	td.Add(float64(d.Nanoseconds()), 1)
	r.counts[phase]++
}

// RecordRun records a completed run.
func (r *Recorder) RecordRun(res RunResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, res)
}

// Quantile returns the q-quantile of the recorded durations for a phase, or
// 0 when the phase was never observed.
func (r *Recorder) Quantile(phase Phase, q float64) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	td, ok := r.digests[phase]
	if !ok {
		return 0
	}
	return time.Duration(td.Quantile(q))
}

// Count returns how many times a phase was observed.
func (r *Recorder) Count(phase Phase) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[phase]
}

// Runs returns a copy of the recorded run results.
func (r *Recorder) Runs() []RunResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RunResult, len(r.runs))
	copy(out, r.runs)
	return out
}

// Failed returns the number of failed runs.
func (r *Recorder) Failed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, res := range r.runs {
		if !res.Passed {
			n++
		}
	}
	return n
}
