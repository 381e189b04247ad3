package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/randomizedcoder/go-icegrid-harness/internal/process"
)

// StartupError indicates a service process that exited or timed out before
// signaling readiness.
type StartupError struct {
	Name     string
	Reason   string
	ExitCode int
}

func (e *StartupError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("service %s: %s (exit code %d)", e.Name, e.Reason, e.ExitCode)
	}
	return fmt.Sprintf("service %s: %s", e.Name, e.Reason)
}

// Ready describes how a service signals that it is serving. At least one of
// LineContains or Port must be set; when both are set, both must be observed.
type Ready struct {
	// LineContains is a substring the service prints on its combined output
	// once ready (e.g. the Ice adapter-ready handshake line).
	LineContains string

	// Port, if non-zero, is a TCP port that must accept a connection.
	Port int

	// Timeout bounds the whole readiness wait.
	Timeout time.Duration
}

// Descriptor describes a managed service. It is immutable once handed to
// Start.
type Descriptor struct {
	// Name identifies the service. At most one running service exists per
	// name at any time.
	Name string

	// Command is the argv launching the service.
	Command []string

	// Dir is the working directory for the service process.
	Dir string

	// DataDir, if set, is the service's on-disk state directory. It is
	// removed and recreated before the process starts so every run begins
	// from fresh state.
	DataDir string

	// Ready is the readiness signal policy.
	Ready Ready

	// Shutdown issues the service's own shutdown command (its control
	// protocol, not a signal). Nil means signal-based termination only.
	Shutdown func(ctx context.Context) error

	// ShutdownGrace bounds how long Stop waits for the process to exit
	// after the shutdown command before escalating to a kill.
	ShutdownGrace time.Duration
}

// Callbacks contains optional callback functions for supervisor events.
type Callbacks struct {
	// OnStateChange is called when a service's state changes.
	OnStateChange func(name string, oldState, newState State)

	// OnStart is called when a service reaches Running.
	OnStart func(name string, pid int, readyAfter time.Duration)

	// OnExit is called when a service process exits.
	OnExit func(name string, exitCode int, uptime time.Duration)
}

// service is a running service owned exclusively by the Supervisor.
type service struct {
	desc      Descriptor
	handle    *process.Handle
	state     State
	startTime time.Time

	// done is closed by the background goroutine once the process has
	// exited and its output is fully drained.
	done     chan struct{}
	exitCode int
}

// Supervisor manages named services as orderable background tasks. It
// enforces no shutdown order itself; callers stop services explicitly, in
// reverse order of start.
type Supervisor struct {
	logger    *slog.Logger
	callbacks Callbacks

	mu       sync.Mutex
	services map[string]*service
}

// New creates a Supervisor.
func New(logger *slog.Logger, callbacks Callbacks) *Supervisor {
	return &Supervisor{
		logger:    logger,
		callbacks: callbacks,
		services:  make(map[string]*service),
	}
}

// State returns the current state of the named service. Unknown names report
// StateStopped.
func (s *Supervisor) State(name string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if svc, ok := s.services[name]; ok {
		return svc.state
	}
	return StateStopped
}

// IsRunning reports whether the named service is in StateRunning.
func (s *Supervisor) IsRunning(name string) bool {
	return s.State(name) == StateRunning
}

// Start clears the service's data directory, spawns its process on a
// supervisor-owned goroutine, and blocks until the readiness signal is
// observed. It fails with *StartupError if the process exits or the timeout
// elapses before readiness, and with *process.SpawnError if the executable
// cannot be launched.
func (s *Supervisor) Start(ctx context.Context, desc Descriptor) error {
	s.mu.Lock()
	if prev, ok := s.services[desc.Name]; ok && prev.state.IsActive() {
		s.mu.Unlock()
		return fmt.Errorf("service %s already %s", desc.Name, prev.state)
	}
	svc := &service{
		desc:  desc,
		state: StateStopped,
		done:  make(chan struct{}),
	}
	s.services[desc.Name] = svc
	s.mu.Unlock()

	if desc.DataDir != "" {
		if err := resetDataDir(desc.DataDir); err != nil {
			return fmt.Errorf("reset data dir for %s: %w", desc.Name, err)
		}
	}

	s.setState(svc, StateStarting)

	handle, err := process.Spawn(ctx, desc.Name, desc.Command, process.Options{Dir: desc.Dir})
	if err != nil {
		s.setState(svc, StateStopped)
		return err
	}
	svc.handle = handle
	svc.startTime = time.Now()

	s.logger.Info("service_spawned",
		"service", desc.Name,
		"pid", handle.Pid(),
	)

	readyCh := make(chan struct{})

	// Background execution context for the service: drains output, watches
	// for the readiness line, observes exit. Joined by Stop.
	go func() {
		defer close(svc.done)

		readySeen := false
		for line := range handle.Lines() {
			s.logger.Debug("service_output", "service", desc.Name, "line", line)
			if !readySeen && desc.Ready.LineContains != "" &&
				strings.Contains(line, desc.Ready.LineContains) {
				readySeen = true
				close(readyCh)
			}
		}

		svc.exitCode = handle.Wait()
		uptime := time.Since(svc.startTime)

		s.logger.Info("service_exited",
			"service", desc.Name,
			"exit_code", svc.exitCode,
			"uptime", uptime.String(),
		)
		if s.callbacks.OnExit != nil {
			s.callbacks.OnExit(desc.Name, svc.exitCode, uptime)
		}
	}()

	if err := s.awaitReady(ctx, svc, readyCh); err != nil {
		// The process may still be up (timeout case); make sure it is not.
		handle.Terminate(2 * time.Second)
		<-svc.done
		s.setState(svc, StateStopped)
		return err
	}

	s.setState(svc, StateRunning)
	readyAfter := time.Since(svc.startTime)

	s.logger.Info("service_ready",
		"service", desc.Name,
		"ready_after", readyAfter.String(),
	)
	if s.callbacks.OnStart != nil {
		s.callbacks.OnStart(desc.Name, handle.Pid(), readyAfter)
	}
	return nil
}

// awaitReady blocks until the descriptor's readiness conditions hold, the
// process exits, or the readiness timeout elapses.
func (s *Supervisor) awaitReady(ctx context.Context, svc *service, readyCh chan struct{}) error {
	desc := svc.desc

	timeout := desc.Ready.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	lineOK := desc.Ready.LineContains == ""
	portOK := desc.Ready.Port == 0

	var poll *time.Ticker
	var pollCh <-chan time.Time
	if !portOK {
		poll = time.NewTicker(100 * time.Millisecond)
		defer poll.Stop()
		pollCh = poll.C
	}

	for !lineOK || !portOK {
		select {
		case <-readyCh:
			lineOK = true
			readyCh = nil
		case <-pollCh:
			if portDialable(desc.Ready.Port) {
				portOK = true
				pollCh = nil
			}
		case <-svc.done:
			return &StartupError{
				Name:     desc.Name,
				Reason:   "process exited before signaling readiness",
				ExitCode: svc.exitCode,
			}
		case <-deadline.C:
			return &StartupError{
				Name:   desc.Name,
				Reason: fmt.Sprintf("readiness not observed within %s", timeout),
			}
		case <-ctx.Done():
			return &StartupError{Name: desc.Name, Reason: ctx.Err().Error()}
		}
	}
	return nil
}

// Stop shuts the named service down via its own shutdown command and blocks
// until its background goroutine has joined, escalating to a kill after the
// grace period. Stopping a service that is not running is a no-op; cleanup
// code calls Stop unconditionally on the failure path.
func (s *Supervisor) Stop(ctx context.Context, name string) error {
	s.mu.Lock()
	svc, ok := s.services[name]
	if !ok || !svc.state.IsActive() {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.setState(svc, StateStopping)

	var shutdownErr error
	if svc.desc.Shutdown != nil {
		if err := svc.desc.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("shutdown command for %s: %w", name, err)
			s.logger.Warn("service_shutdown_command_failed",
				"service", name,
				"error", err,
			)
		}
	}

	grace := svc.desc.ShutdownGrace
	if grace <= 0 {
		grace = 10 * time.Second
	}

	select {
	case <-svc.done:
	case <-time.After(grace):
		s.logger.Warn("service_shutdown_timeout",
			"service", name,
			"grace", grace.String(),
		)
		svc.handle.Terminate(2 * time.Second)
		<-svc.done
	}

	s.setState(svc, StateStopped)
	s.logger.Info("service_stopped", "service", name)
	return shutdownErr
}

// setState updates the state and calls the callback if registered.
func (s *Supervisor) setState(svc *service, newState State) {
	s.mu.Lock()
	oldState := svc.state
	svc.state = newState
	s.mu.Unlock()

	if s.callbacks.OnStateChange != nil && oldState != newState {
		s.callbacks.OnStateChange(svc.desc.Name, oldState, newState)
	}
}

// resetDataDir removes any stale on-disk state and recreates the directory.
func resetDataDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

func portDialable(port int) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), 250*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
