// Package orchestrator drives the IceGrid allocation fixture: registry up,
// node up, deploy, client, and guaranteed teardown in reverse order.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/randomizedcoder/go-icegrid-harness/internal/admin"
	"github.com/randomizedcoder/go-icegrid-harness/internal/config"
	"github.com/randomizedcoder/go-icegrid-harness/internal/logging"
	"github.com/randomizedcoder/go-icegrid-harness/internal/metrics"
	"github.com/randomizedcoder/go-icegrid-harness/internal/process"
	"github.com/randomizedcoder/go-icegrid-harness/internal/stats"
	"github.com/randomizedcoder/go-icegrid-harness/internal/supervisor"
)

const (
	serviceRegistry = "registry"
	serviceNode     = "node"
)

// ErrClientFailed reports a client that ran but exited non-zero.
var ErrClientFailed = errors.New("client exited with non-zero status")

// Runner coordinates one or more fixture runs.
type Runner struct {
	config  *config.Config
	logger  *slog.Logger
	version string

	supervisor *supervisor.Supervisor
	admin      *admin.Controller
	metrics    *metrics.Collector
	recorder   *stats.Recorder

	metricsServer *metrics.Server

	// clientOut receives the client's forwarded output. os.Stdout in
	// production, a buffer in tests.
	clientOut io.Writer
}

// New creates a Runner wired to a fresh supervisor, admin controller, and
// metrics collector.
func New(cfg *config.Config, logger *slog.Logger, version string) *Runner {
	r := &Runner{
		config:    cfg,
		logger:    logger,
		version:   version,
		metrics:   metrics.NewCollector(),
		recorder:  stats.NewRecorder(),
		clientOut: os.Stdout,
	}

	r.supervisor = supervisor.New(logger, supervisor.Callbacks{
		OnStateChange: func(name string, _, newState supervisor.State) {
			r.metrics.SetServiceState(name, int(newState))
		},
		OnStart: func(name string, pid int, readyAfter time.Duration) {
			r.metrics.ServiceStarted(name, readyAfter)
		},
	})

	r.admin = admin.New(cfg.AdminPath, cfg.RegistryPort, func() bool {
		return r.supervisor.IsRunning(serviceRegistry)
	}, logger)

	if cfg.MetricsAddr != "" {
		r.metricsServer = metrics.NewServer(cfg.MetricsAddr, r.metrics.Registry(), logger)
	}

	r.metrics.SetInfo(version, cfg.AppName)
	return r
}

// Recorder returns the run statistics recorder.
func (r *Runner) Recorder() *stats.Recorder { return r.recorder }

// Metrics returns the metrics collector.
func (r *Runner) Metrics() *metrics.Collector { return r.metrics }

// Run executes the fixture cfg.Repeat times. It returns nil only when every
// run passed; the error is the first run's failure cause otherwise.
func (r *Runner) Run(ctx context.Context) error {
	if r.metricsServer != nil {
		if err := r.metricsServer.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := r.metricsServer.Shutdown(shutdownCtx); err != nil {
				r.logger.Warn("metrics_server_shutdown_error", "error", err)
			}
		}()
	}

	var firstErr error
	for run := 1; run <= r.config.Repeat; run++ {
		res := r.runOnce(ctx, run)
		r.recorder.RecordRun(res.result)
		r.metrics.RunCompleted(res.result.Passed)
		if res.err != nil && firstErr == nil {
			firstErr = res.err
		}
	}

	fmt.Print(stats.FormatExitSummary(r.recorder, stats.SummaryConfig{
		Application: r.config.AppName,
		Repeat:      r.config.Repeat,
		MetricsAddr: r.config.MetricsAddr,
	}))

	if r.config.MetricsDump != "" {
		if err := r.metrics.Dump(r.config.MetricsDump); err != nil {
			r.logger.Warn("metrics_dump_failed", "path", r.config.MetricsDump, "error", err)
		}
	}

	return firstErr
}

// runOutcome carries one run's result and its failure cause.
type runOutcome struct {
	result stats.RunResult
	err    error
}

// runOnce executes the linear protocol once. Every acquisition step defers
// its release immediately after succeeding, so teardown runs in exact
// reverse order of startup on every exit path: remove application, stop
// node, stop registry.
func (r *Runner) runOnce(ctx context.Context, run int) (out runOutcome) {
	runStart := time.Now()
	out.result = stats.RunResult{Run: run}

	defer func() {
		out.result.Duration = time.Since(runStart)
		out.result.Passed = out.err == nil
		r.observe(stats.PhaseTotal, out.result.Duration)
		r.logger.Info("run_finished",
			"run", run,
			"passed", out.result.Passed,
			"duration", out.result.Duration.String(),
		)
	}()

	r.logger.Info("run_starting", "run", run, "application", r.config.AppName)

	// Registry. A failure here is fatal; nothing has been acquired yet.
	if err := r.timed(stats.PhaseRegistryStart, func() error {
		return r.supervisor.Start(ctx, r.registryDescriptor())
	}); err != nil {
		out.result.FailedStep = string(stats.PhaseRegistryStart)
		out.err = err
		return out
	}
	defer r.stopService(ctx, serviceRegistry, stats.PhaseRegistryStop)

	// Node. On failure the registry teardown above still runs.
	if err := r.timed(stats.PhaseNodeStart, func() error {
		return r.supervisor.Start(ctx, r.nodeDescriptor())
	}); err != nil {
		out.result.FailedStep = string(stats.PhaseNodeStart)
		out.err = err
		return out
	}
	defer r.stopService(ctx, serviceNode, stats.PhaseNodeStop)

	// Deploy. The removal defer is registered only after a successful
	// deployment; a rejected descriptor needs no removal.
	fmt.Print("deploying application... ")
	if err := r.timed(stats.PhaseDeploy, func() error {
		return r.admin.Deploy(ctx, r.config.Descriptor, map[string]string{
			"ice.dir":  r.config.InstallRoot,
			"test.dir": r.config.TestDir,
		})
	}); err != nil {
		fmt.Println("failed")
		r.metrics.DeployFailed()
		out.result.FailedStep = string(stats.PhaseDeploy)
		out.err = err
		return out
	}
	fmt.Println("ok")
	r.metrics.DeploySucceeded()
	defer r.removeApplication(ctx)

	// Client. A spawn failure yields a synthetic non-zero outcome; teardown
	// still runs through the defers above.
	exitCode := r.runClient(ctx)
	out.result.ClientExit = exitCode
	r.metrics.ClientExited(exitCode)
	if exitCode != 0 {
		out.err = fmt.Errorf("%w: exit code %d", ErrClientFailed, exitCode)
	}
	return out
}

// runClient spawns the test client, forwards its output unmodified, and
// returns its exit code. Spawn failures return 1.
func (r *Runner) runClient(ctx context.Context) int {
	cmd := &process.ClientCommand{
		BinaryPath:  r.config.ClientPath,
		BaseOptions: r.config.ClientOptions,
		LocatorPort: r.config.RegistryPort,
		InstallRoot: r.config.InstallRoot,
		TestDir:     r.config.TestDir,
	}

	clientStart := time.Now()
	defer func() {
		r.observe(stats.PhaseClient, time.Since(clientStart))
	}()

	fmt.Print("starting client... ")
	handle, err := process.Spawn(ctx, "client", cmd.Command(), process.Options{Dir: r.config.TestDir})
	if err != nil {
		fmt.Println("failed")
		r.logger.Error("client_spawn_failed", "error", err)
		return 1
	}
	fmt.Println("ok")

	// Pass-through forwarding must never abort the run: the forwarder
	// swallows write failures (logging them) and keeps draining so the
	// client can exit and teardown proceeds.
	forwarder := logging.NewForwarder(r.clientOut, r.logger)
	forwarder.Drain(handle.Lines())

	exitCode := handle.Wait()
	r.logger.Info("client_exited", "exit_code", exitCode)
	return exitCode
}

// removeApplication is the best-effort removal step. Failures are recorded
// and logged, never escalated: they must not override an already-determined
// outcome or prevent the service shutdowns that follow.
func (r *Runner) removeApplication(ctx context.Context) {
	fmt.Print("removing application... ")
	err := r.timed(stats.PhaseRemove, func() error {
		return r.admin.Remove(ctx, r.config.AppName)
	})
	if err != nil {
		fmt.Println("failed")
		r.metrics.RemoveFailed()
		r.logger.Warn("application_remove_failed", "application", r.config.AppName, "error", err)
		return
	}
	fmt.Println("ok")
}

// stopService stops a managed service if it is active. Stop on a service
// that never reached Running is a no-op by contract.
func (r *Runner) stopService(ctx context.Context, name string, phase stats.Phase) {
	wasActive := r.supervisor.State(name).IsActive()

	err := r.timed(phase, func() error {
		return r.supervisor.Stop(ctx, name)
	})
	if err != nil {
		r.logger.Warn("service_stop_error", "service", name, "error", err)
	}
	if wasActive {
		r.metrics.ServiceStopped(name)
	}
}

// timed runs fn and records its duration under the given phase.
func (r *Runner) timed(phase stats.Phase, fn func() error) error {
	start := time.Now()
	err := fn()
	r.observe(phase, time.Since(start))
	return err
}

func (r *Runner) observe(phase stats.Phase, d time.Duration) {
	r.recorder.Observe(phase, d)
	r.metrics.PhaseObserved(string(phase), d)
}

// registryDescriptor builds the registry's service descriptor. The data
// directory is reset by the supervisor before the process starts, never
// while it or the node is running.
func (r *Runner) registryDescriptor() supervisor.Descriptor {
	cmd := &process.RegistryCommand{
		BinaryPath: r.config.RegistryPath,
		Port:       r.config.RegistryPort,
		DataDir:    process.DefaultDataDir(r.config.TestDir, "registry"),
	}
	return supervisor.Descriptor{
		Name:    serviceRegistry,
		Command: cmd.Command(),
		Dir:     r.config.TestDir,
		DataDir: cmd.DataDir,
		Ready: supervisor.Ready{
			LineContains: "IceGrid.Registry.Internal ready",
			Timeout:      r.config.StartupTimeout,
		},
		Shutdown:      r.admin.ShutdownRegistry,
		ShutdownGrace: r.config.ShutdownGrace,
	}
}

// nodeDescriptor builds the node's service descriptor. The node's shutdown
// goes through the registry, which is why the orchestrator stops the node
// first: the registry must still be reachable while the node deregisters.
func (r *Runner) nodeDescriptor() supervisor.Descriptor {
	cmd := &process.NodeCommand{
		BinaryPath:  r.config.NodePath,
		Name:        r.config.NodeName,
		DataDir:     process.DefaultDataDir(r.config.TestDir, "node"),
		LocatorPort: r.config.RegistryPort,
	}
	return supervisor.Descriptor{
		Name:    serviceNode,
		Command: cmd.Command(),
		Dir:     r.config.TestDir,
		DataDir: cmd.DataDir,
		Ready: supervisor.Ready{
			LineContains: "IceGrid.Node ready",
			Timeout:      r.config.StartupTimeout,
		},
		Shutdown: func(ctx context.Context) error {
			return r.admin.ShutdownNode(ctx, r.config.NodeName)
		},
		ShutdownGrace: r.config.ShutdownGrace,
	}
}
