package metrics

import (
	"fmt"
	"os"

	"github.com/prometheus/common/expfmt"

	dto "github.com/prometheus/client_model/go"
)

// Snapshot gathers the current metric families from the collector's
// registry.
func (c *Collector) Snapshot() ([]*dto.MetricFamily, error) {
	return c.registry.Gather()
}

// Dump writes the current metrics to a file in the Prometheus text
// exposition format. Used at exit so short-lived runs leave an inspectable
// record even when no scraper ever polled /metrics.
func (c *Collector) Dump(path string) error {
	families, err := c.Snapshot()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metrics dump: %w", err)
	}
	defer f.Close()

	encoder := expfmt.NewEncoder(f, expfmt.FmtText)
	for _, mf := range families {
		if err := encoder.Encode(mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// CounterValue returns the summed value of the named counter across its
// label combinations in a gathered snapshot, or 0 when absent.
func CounterValue(families []*dto.MetricFamily, name string) float64 {
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		var total float64
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return total
	}
	return 0
}
