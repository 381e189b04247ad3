package stats

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	passStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#06B6D4")).
			Bold(true)
)

// SummaryConfig holds the run-level facts the summary needs beyond the
// recorder's own data.
type SummaryConfig struct {
	// Application is the deployed application name.
	Application string

	// Repeat is the configured number of runs.
	Repeat int

	// MetricsAddr is the Prometheus endpoint address, empty if disabled.
	MetricsAddr string
}

// FormatExitSummary formats the recorded runs for display at program exit.
func FormatExitSummary(rec *Recorder, cfg SummaryConfig) string {
	runs := rec.Runs()
	failed := rec.Failed()
	passed := len(runs) - failed

	var b strings.Builder

	rule := strings.Repeat("═", 67)
	b.WriteString("\n")
	b.WriteString(rule + "\n")
	b.WriteString(headerStyle.Render("                 go-icegrid-harness Exit Summary") + "\n")
	b.WriteString(rule + "\n")

	verdict := passStyle.Render("PASS")
	if failed > 0 || len(runs) == 0 {
		verdict = failStyle.Render("FAIL")
	}
	b.WriteString(fmt.Sprintf("Result:                 %s\n", verdict))
	b.WriteString(fmt.Sprintf("Application:            %s\n", cfg.Application))
	b.WriteString(fmt.Sprintf("Runs:                   %d passed, %d failed of %d\n", passed, failed, cfg.Repeat))
	b.WriteString("\n")

	if len(runs) > 0 {
		b.WriteString("Phase Durations (P50 / P95 / P99):\n")
		for _, phase := range phaseOrder {
			if rec.Count(phase) == 0 {
				continue
			}
			b.WriteString(fmt.Sprintf("  %-16s %10s / %10s / %10s\n",
				string(phase),
				roundDuration(rec.Quantile(phase, 0.50)),
				roundDuration(rec.Quantile(phase, 0.95)),
				roundDuration(rec.Quantile(phase, 0.99)),
			))
		}
		b.WriteString("\n")
	}

	for _, res := range runs {
		if res.Passed {
			continue
		}
		if res.FailedStep != "" {
			b.WriteString(fmt.Sprintf("  run %d failed at %s\n", res.Run, res.FailedStep))
		} else {
			b.WriteString(fmt.Sprintf("  run %d failed: client exit code %d\n", res.Run, res.ClientExit))
		}
	}
	if failed > 0 {
		b.WriteString("\n")
	}

	if cfg.MetricsAddr != "" {
		b.WriteString(fmt.Sprintf("Metrics endpoint was: http://%s/metrics\n", cfg.MetricsAddr))
	}
	b.WriteString(rule + "\n")

	return b.String()
}

// roundDuration trims sub-millisecond noise for display.
func roundDuration(d time.Duration) time.Duration {
	return d.Round(time.Millisecond)
}
