package logging

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// MaxBufferedLines is the number of recent client output lines kept for the
// exit summary.
const MaxBufferedLines = 100

// Forwarder passes a process's output lines through to a writer unmodified,
// as they are produced, while keeping a bounded buffer of recent lines.
// Forwarding failures never stop consumption: the remaining lines are still
// drained so the process can exit, and the failure is logged once.
type Forwarder struct {
	dst    io.Writer
	logger *slog.Logger

	mu       sync.Mutex
	buffer   []string
	bufIdx   int
	buffered int
	writeErr error
}

// NewForwarder creates a Forwarder writing to dst.
func NewForwarder(dst io.Writer, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		dst:    dst,
		logger: logger,
		buffer: make([]string, MaxBufferedLines),
	}
}

// Drain consumes the line channel until it is closed, forwarding every line.
// It never fails; a broken destination downgrades the drain to buffering
// only, with the swallowed error logged rather than silently dropped.
func (f *Forwarder) Drain(lines <-chan string) {
	for line := range lines {
		f.forward(line)
	}
}

func (f *Forwarder) forward(line string) {
	f.mu.Lock()
	f.buffer[f.bufIdx] = line
	f.bufIdx = (f.bufIdx + 1) % MaxBufferedLines
	if f.buffered < MaxBufferedLines {
		f.buffered++
	}
	broken := f.writeErr != nil
	f.mu.Unlock()

	if broken {
		return
	}
	if _, err := fmt.Fprintln(f.dst, line); err != nil {
		f.mu.Lock()
		f.writeErr = err
		f.mu.Unlock()
		f.logger.Warn("client_output_forwarding_failed", "error", err)
	}
}

// RecentLines returns up to n of the most recent lines, oldest first.
func (f *Forwarder) RecentLines(n int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if n > f.buffered {
		n = f.buffered
	}
	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx := (f.bufIdx - n + i + MaxBufferedLines) % MaxBufferedLines
		lines = append(lines, f.buffer[idx])
	}
	return lines
}

// Err returns the first forwarding error, or nil.
func (f *Forwarder) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writeErr
}
