package stats

import (
	"testing"
	"time"
)

func TestRecorder_ObserveAndQuantile(t *testing.T) {
	r := NewRecorder()

	for i := 1; i <= 100; i++ {
		r.Observe(PhaseDeploy, time.Duration(i)*time.Millisecond)
	}

	if got := r.Count(PhaseDeploy); got != 100 {
		t.Errorf("Count = %d, want 100", got)
	}

	p50 := r.Quantile(PhaseDeploy, 0.50)
	if p50 < 40*time.Millisecond || p50 > 60*time.Millisecond {
		t.Errorf("P50 = %s, want roughly 50ms", p50)
	}

	p99 := r.Quantile(PhaseDeploy, 0.99)
	if p99 < 95*time.Millisecond || p99 > 100*time.Millisecond {
		t.Errorf("P99 = %s, want roughly 99ms", p99)
	}
	if p99 < p50 {
		t.Errorf("P99 (%s) < P50 (%s)", p99, p50)
	}
}

func TestRecorder_UnobservedPhase(t *testing.T) {
	r := NewRecorder()

	if got := r.Quantile(PhaseClient, 0.5); got != 0 {
		t.Errorf("Quantile of unobserved phase = %s, want 0", got)
	}
	if got := r.Count(PhaseClient); got != 0 {
		t.Errorf("Count of unobserved phase = %d, want 0", got)
	}
}

func TestRecorder_Runs(t *testing.T) {
	r := NewRecorder()

	r.RecordRun(RunResult{Run: 1, Passed: true, ClientExit: 0, Duration: time.Second})
	r.RecordRun(RunResult{Run: 2, Passed: false, ClientExit: 1, Duration: time.Second})
	r.RecordRun(RunResult{Run: 3, Passed: false, FailedStep: "deploy", Duration: time.Second})

	runs := r.Runs()
	if len(runs) != 3 {
		t.Fatalf("Runs returned %d results, want 3", len(runs))
	}
	if got := r.Failed(); got != 2 {
		t.Errorf("Failed = %d, want 2", got)
	}
	if runs[2].FailedStep != "deploy" {
		t.Errorf("FailedStep = %q, want deploy", runs[2].FailedStep)
	}

	// The returned slice is a copy.
	runs[0].Passed = false
	if got := r.Failed(); got != 2 {
		t.Errorf("Failed after mutating copy = %d, want 2", got)
	}
}

func TestRecorder_Empty(t *testing.T) {
	r := NewRecorder()

	if got := r.Failed(); got != 0 {
		t.Errorf("Failed on empty recorder = %d, want 0", got)
	}
	if got := len(r.Runs()); got != 0 {
		t.Errorf("Runs on empty recorder has %d entries", got)
	}
}

func TestRecorder_Concurrent(t *testing.T) {
	r := NewRecorder()

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				r.Observe(PhaseTotal, time.Millisecond)
			}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}

	if got := r.Count(PhaseTotal); got != 400 {
		t.Errorf("Count = %d, want 400", got)
	}
}
