// Package process provides abstractions for running external processes.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

const (
	// MaxLineLength is the maximum length of a single output line before the
	// scanner gives up on it.
	MaxLineLength = 64 * 1024

	// drainTimeout bounds how long Wait blocks on the output scanner after
	// the process has exited. A grandchild holding the pipe open must not
	// wedge the harness.
	drainTimeout = 5 * time.Second
)

// SpawnError indicates that an executable could not be launched at all
// (missing binary, permission denied, bad working directory).
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Options holds optional spawn parameters.
type Options struct {
	// Dir is the working directory for the process. Empty means inherit.
	Dir string

	// Env is the environment for the process. Nil means inherit.
	Env []string
}

// Handle wraps a spawned external process. It captures the process's combined
// stdout/stderr as a lazy, finite, non-restartable sequence of lines, and
// exposes idempotent termination and join operations.
type Handle struct {
	name string
	cmd  *exec.Cmd

	lines    chan string
	scanDone chan struct{}

	waitOnce sync.Once
	exitCode int
}

// Spawn starts the given command with stdout and stderr merged into a single
// line stream. The returned handle owns the process. A *SpawnError is
// returned if the executable cannot be launched.
func Spawn(ctx context.Context, name string, argv []string, opts Options) (*Handle, error) {
	if len(argv) == 0 {
		return nil, &SpawnError{Path: "", Err: errors.New("empty command line")}
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env

	// Own process group so Terminate can signal children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	// Single pipe carries both streams so output ordering is preserved.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, &SpawnError{Path: argv[0], Err: fmt.Errorf("output pipe: %w", err)}
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, &SpawnError{Path: argv[0], Err: err}
	}

	// Parent must drop its write end after Start so the reader sees EOF when
	// the child exits.
	pw.Close()

	h := &Handle{
		name:     name,
		cmd:      cmd,
		lines:    make(chan string),
		scanDone: make(chan struct{}),
	}

	go func() {
		defer close(h.lines)
		defer close(h.scanDone)
		defer pr.Close()

		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 64*1024), MaxLineLength)
		for scanner.Scan() {
			h.lines <- scanner.Text()
		}
	}()

	return h, nil
}

// Name returns the name the process was spawned under.
func (h *Handle) Name() string { return h.name }

// Pid returns the OS process ID.
func (h *Handle) Pid() int { return h.cmd.Process.Pid }

// Lines returns the process's combined output as a channel of lines. The
// channel is closed when the process closes its output. Consuming it may
// block until the process produces output or exits. The sequence is finite
// and cannot be restarted; all callers share the same channel.
func (h *Handle) Lines() <-chan string { return h.lines }

// Wait blocks until the process terminates and returns its exit code. It is
// idempotent: subsequent calls return the same code without error. Signal
// exits are reported as 128+signal.
func (h *Handle) Wait() int {
	h.waitOnce.Do(func() {
		err := h.cmd.Wait()
		h.exitCode = extractExitCode(err)

		// Let the scanner deliver whatever is left in the pipe, but do not
		// wait forever on an inherited descriptor.
		select {
		case <-h.scanDone:
		case <-time.After(drainTimeout):
		}
	})
	return h.exitCode
}

// Terminate requests graceful shutdown: SIGTERM to the process group, then
// SIGKILL if the process has not exited within grace. It returns an error
// only when the kill escalation was needed.
func (h *Handle) Terminate(grace time.Duration) error {
	if h.cmd.Process == nil {
		return nil
	}

	pid := h.cmd.Process.Pid
	if pgid, err := syscall.Getpgid(pid); err == nil {
		syscall.Kill(-pgid, syscall.SIGTERM)
	} else {
		h.cmd.Process.Signal(syscall.SIGTERM)
	}

	done := make(chan struct{})
	go func() {
		h.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(grace):
		if pgid, err := syscall.Getpgid(pid); err == nil {
			syscall.Kill(-pgid, syscall.SIGKILL)
		} else {
			h.cmd.Process.Kill()
		}
		<-done
		return fmt.Errorf("process %s (pid %d) did not exit within %s", h.name, pid, grace)
	}
}

// extractExitCode extracts the exit code from a Wait() error.
func extractExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				// Signal exit: 128 + signal number
				return 128 + int(status.Signal())
			}
			return status.ExitStatus()
		}
	}

	// Unknown error, assume exit code 1
	return 1
}
