package stats

import (
	"strings"
	"testing"
	"time"
)

func TestFormatExitSummary_Pass(t *testing.T) {
	r := NewRecorder()
	r.Observe(PhaseRegistryStart, 200*time.Millisecond)
	r.Observe(PhaseClient, 2*time.Second)
	r.Observe(PhaseTotal, 3*time.Second)
	r.RecordRun(RunResult{Run: 1, Passed: true, ClientExit: 0, Duration: 3 * time.Second})

	out := FormatExitSummary(r, SummaryConfig{
		Application: "test",
		Repeat:      1,
		MetricsAddr: "localhost:9108",
	})

	for _, want := range []string{
		"Exit Summary",
		"PASS",
		"Application:            test",
		"1 passed, 0 failed of 1",
		"registry_start",
		"client",
		"total",
		"http://localhost:9108/metrics",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "failed at") || strings.Contains(out, "failed: client exit") {
		t.Errorf("pass summary should not list failed runs:\n%s", out)
	}
}

func TestFormatExitSummary_Failures(t *testing.T) {
	r := NewRecorder()
	r.Observe(PhaseTotal, time.Second)
	r.RecordRun(RunResult{Run: 1, Passed: true, Duration: time.Second})
	r.RecordRun(RunResult{Run: 2, Passed: false, ClientExit: 137, Duration: time.Second})
	r.RecordRun(RunResult{Run: 3, Passed: false, FailedStep: "deploy", Duration: time.Second})

	out := FormatExitSummary(r, SummaryConfig{Application: "test", Repeat: 3})

	for _, want := range []string{
		"FAIL",
		"1 passed, 2 failed of 3",
		"run 2 failed: client exit code 137",
		"run 3 failed at deploy",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Metrics endpoint") {
		t.Errorf("summary should omit metrics line when disabled:\n%s", out)
	}
}

func TestFormatExitSummary_NoRuns(t *testing.T) {
	out := FormatExitSummary(NewRecorder(), SummaryConfig{Application: "test", Repeat: 1})

	if !strings.Contains(out, "FAIL") {
		t.Errorf("zero runs should be a FAIL:\n%s", out)
	}
	if strings.Contains(out, "Phase Durations") {
		t.Errorf("zero runs should skip the phase table:\n%s", out)
	}
}

func TestRoundDuration(t *testing.T) {
	testCases := []struct {
		input    time.Duration
		expected time.Duration
	}{
		{1234567 * time.Nanosecond, time.Millisecond},
		{1500 * time.Microsecond, 2 * time.Millisecond},
		{0, 0},
	}
	for _, tc := range testCases {
		if got := roundDuration(tc.input); got != tc.expected {
			t.Errorf("roundDuration(%s) = %s, want %s", tc.input, got, tc.expected)
		}
	}
}
