// Package metrics provides Prometheus metrics for go-icegrid-harness.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Collector owns the harness's Prometheus registry and instruments. A fresh
// registry per Collector keeps repeated runs and tests free of
// double-registration panics.
type Collector struct {
	registry *prometheus.Registry

	info               *prometheus.GaugeVec
	serviceStartsTotal *prometheus.CounterVec
	serviceStopsTotal  *prometheus.CounterVec
	serviceReadySecs   *prometheus.GaugeVec
	serviceState       *prometheus.GaugeVec

	deploysTotal        prometheus.Counter
	deployFailuresTotal prometheus.Counter
	removeFailuresTotal prometheus.Counter

	clientExitsTotal *prometheus.CounterVec
	runsTotal        *prometheus.CounterVec

	phaseDurationSecs *prometheus.GaugeVec
}

// NewCollector creates a Collector with all harness metrics registered.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		info: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "icegrid_harness_info",
				Help: "Information about the harness run (value always 1)",
			},
			[]string{"version", "application"},
		),
		serviceStartsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "icegrid_harness_service_starts_total",
				Help: "Services that reached the Running state",
			},
			[]string{"service"},
		),
		serviceStopsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "icegrid_harness_service_stops_total",
				Help: "Services stopped",
			},
			[]string{"service"},
		),
		serviceReadySecs: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "icegrid_harness_service_ready_seconds",
				Help: "Seconds from spawn to readiness signal, last run",
			},
			[]string{"service"},
		),
		serviceState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "icegrid_harness_service_state",
				Help: "Current service state (0=stopped 1=starting 2=running 3=stopping)",
			},
			[]string{"service"},
		),
		deploysTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "icegrid_harness_deploys_total",
				Help: "Successful application deployments",
			},
		),
		deployFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "icegrid_harness_deploy_failures_total",
				Help: "Application deployments rejected by the registry",
			},
		),
		removeFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "icegrid_harness_remove_failures_total",
				Help: "Best-effort application removals that failed",
			},
		),
		clientExitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "icegrid_harness_client_exits_total",
				Help: "Client exits by exit code",
			},
			[]string{"exit_code"},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "icegrid_harness_runs_total",
				Help: "Fixture runs by result",
			},
			[]string{"result"},
		),
		phaseDurationSecs: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "icegrid_harness_phase_duration_seconds",
				Help: "Duration of each orchestration phase, last run",
			},
			[]string{"phase"},
		),
	}

	c.registry.MustRegister(
		c.info,
		c.serviceStartsTotal,
		c.serviceStopsTotal,
		c.serviceReadySecs,
		c.serviceState,
		c.deploysTotal,
		c.deployFailuresTotal,
		c.removeFailuresTotal,
		c.clientExitsTotal,
		c.runsTotal,
		c.phaseDurationSecs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the collector's registry, for the metrics server and the
// exit dump.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// SetInfo records the run's identifying labels.
func (c *Collector) SetInfo(version, application string) {
	c.info.WithLabelValues(version, application).Set(1)
}

// ServiceStarted records a service reaching Running.
func (c *Collector) ServiceStarted(service string, readyAfter time.Duration) {
	c.serviceStartsTotal.WithLabelValues(service).Inc()
	c.serviceReadySecs.WithLabelValues(service).Set(readyAfter.Seconds())
}

// ServiceStopped records a service stop.
func (c *Collector) ServiceStopped(service string) {
	c.serviceStopsTotal.WithLabelValues(service).Inc()
}

// SetServiceState records a service state transition.
func (c *Collector) SetServiceState(service string, state int) {
	c.serviceState.WithLabelValues(service).Set(float64(state))
}

// DeploySucceeded records a successful deployment.
func (c *Collector) DeploySucceeded() { c.deploysTotal.Inc() }

// DeployFailed records a rejected deployment.
func (c *Collector) DeployFailed() { c.deployFailuresTotal.Inc() }

// RemoveFailed records a failed best-effort removal.
func (c *Collector) RemoveFailed() { c.removeFailuresTotal.Inc() }

// ClientExited records the client's exit code.
func (c *Collector) ClientExited(code int) {
	c.clientExitsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}

// RunCompleted records a whole fixture run's result.
func (c *Collector) RunCompleted(passed bool) {
	result := "fail"
	if passed {
		result = "pass"
	}
	c.runsTotal.WithLabelValues(result).Inc()
}

// PhaseObserved records a phase duration.
func (c *Collector) PhaseObserved(phase string, d time.Duration) {
	c.phaseDurationSecs.WithLabelValues(phase).Set(d.Seconds())
}
