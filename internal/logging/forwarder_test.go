package logging

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
)

// failingWriter fails every write after the first failAfter successes.
type failingWriter struct {
	failAfter int
	writes    int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.writes++
	if w.writes > w.failAfter {
		return 0, errors.New("broken pipe")
	}
	return len(p), nil
}

func drainLines(f *Forwarder, lines ...string) {
	ch := make(chan string)
	go func() {
		for _, line := range lines {
			ch <- line
		}
		close(ch)
	}()
	f.Drain(ch)
}

func TestForwarder_PassesLinesThrough(t *testing.T) {
	var out bytes.Buffer
	f := NewForwarder(&out, slog.New(slog.NewTextHandler(io.Discard, nil)))

	drainLines(f, "line one", "line two", "line three")

	expected := "line one\nline two\nline three\n"
	if out.String() != expected {
		t.Errorf("forwarded output = %q, want %q", out.String(), expected)
	}
	if f.Err() != nil {
		t.Errorf("unexpected forwarding error: %v", f.Err())
	}
}

func TestForwarder_WriteFailureDoesNotStopDrain(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	w := &failingWriter{failAfter: 1}
	f := NewForwarder(w, logger)

	drainLines(f, "first", "second", "third")

	if f.Err() == nil {
		t.Fatal("expected a forwarding error after writer broke")
	}
	// Only the first failed write is attempted; later lines go to the
	// buffer without touching the broken writer again.
	if w.writes != 2 {
		t.Errorf("writer called %d times, want 2", w.writes)
	}
	if !strings.Contains(logBuf.String(), "client_output_forwarding_failed") {
		t.Errorf("expected forwarding failure to be logged, got: %s", logBuf.String())
	}

	// All lines must still be buffered.
	recent := f.RecentLines(3)
	if len(recent) != 3 || recent[0] != "first" || recent[2] != "third" {
		t.Errorf("RecentLines(3) = %v, want all three lines", recent)
	}
}

func TestForwarder_RecentLines(t *testing.T) {
	testCases := []struct {
		name     string
		total    int
		request  int
		expected []string
	}{
		{
			name:     "fewer_lines_than_requested",
			total:    2,
			request:  5,
			expected: []string{"line 0", "line 1"},
		},
		{
			name:     "exact",
			total:    3,
			request:  3,
			expected: []string{"line 0", "line 1", "line 2"},
		},
		{
			name:     "wraps_around_buffer",
			total:    MaxBufferedLines + 10,
			request:  3,
			expected: []string{"line 107", "line 108", "line 109"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := NewForwarder(io.Discard, slog.New(slog.NewTextHandler(io.Discard, nil)))
			lines := make([]string, tc.total)
			for i := range lines {
				lines[i] = fmt.Sprintf("line %d", i)
			}
			drainLines(f, lines...)

			got := f.RecentLines(tc.request)
			if len(got) != len(tc.expected) {
				t.Fatalf("RecentLines(%d) returned %d lines, want %d",
					tc.request, len(got), len(tc.expected))
			}
			for i := range got {
				if got[i] != tc.expected[i] {
					t.Errorf("RecentLines[%d] = %q, want %q", i, got[i], tc.expected[i])
				}
			}
		})
	}
}

func TestForwarder_EmptyChannel(t *testing.T) {
	var out bytes.Buffer
	f := NewForwarder(&out, slog.New(slog.NewTextHandler(io.Discard, nil)))

	drainLines(f)

	if out.Len() != 0 {
		t.Errorf("expected no output, got: %q", out.String())
	}
	if got := f.RecentLines(5); len(got) != 0 {
		t.Errorf("expected no buffered lines, got: %v", got)
	}
}
