package process

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestSpawn_MissingExecutable(t *testing.T) {
	_, err := Spawn(context.Background(), "missing", []string{"/nonexistent/binary"}, Options{})
	if err == nil {
		t.Fatal("expected error for missing executable")
	}

	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("expected *SpawnError, got %T: %v", err, err)
	}
	if spawnErr.Path != "/nonexistent/binary" {
		t.Errorf("Path = %q, want /nonexistent/binary", spawnErr.Path)
	}
}

func TestSpawn_EmptyCommand(t *testing.T) {
	_, err := Spawn(context.Background(), "empty", nil, Options{})
	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("expected *SpawnError, got %T: %v", err, err)
	}
}

func TestHandle_Lines(t *testing.T) {
	h, err := Spawn(context.Background(), "echo", []string{"sh", "-c", "echo one; echo two >&2; echo three"}, Options{})
	if err != nil {
		t.Fatal(err)
	}

	var lines []string
	for line := range h.Lines() {
		lines = append(lines, line)
	}
	if code := h.Wait(); code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}

	// stdout and stderr share one pipe
	if len(lines) != 3 {
		t.Fatalf("got %d lines %v, want 3", len(lines), lines)
	}
	seen := map[string]bool{}
	for _, l := range lines {
		seen[l] = true
	}
	for _, want := range []string{"one", "two", "three"} {
		if !seen[want] {
			t.Errorf("missing line %q in %v", want, lines)
		}
	}
}

func TestHandle_Wait_ExitCodes(t *testing.T) {
	testCases := []int{0, 1, 7, 42}

	for _, code := range testCases {
		t.Run(fmt.Sprintf("exit_%d", code), func(t *testing.T) {
			h, err := Spawn(context.Background(), "exit", []string{"sh", "-c", fmt.Sprintf("exit %d", code)}, Options{})
			if err != nil {
				t.Fatal(err)
			}
			for range h.Lines() {
			}
			if got := h.Wait(); got != code {
				t.Errorf("Wait() = %d, want %d", got, code)
			}
		})
	}
}

func TestHandle_Wait_Idempotent(t *testing.T) {
	h, err := Spawn(context.Background(), "exit", []string{"sh", "-c", "exit 3"}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	for range h.Lines() {
	}

	first := h.Wait()
	second := h.Wait()
	if first != 3 || second != 3 {
		t.Errorf("Wait() = %d then %d, want 3 both times", first, second)
	}
}

func TestHandle_Terminate_Graceful(t *testing.T) {
	h, err := Spawn(context.Background(), "sleep", []string{"sleep", "10"}, Options{})
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		for range h.Lines() {
		}
	}()

	if err := h.Terminate(5 * time.Second); err != nil {
		t.Errorf("Terminate returned error: %v", err)
	}

	// SIGTERM exit: 128 + 15
	if code := h.Wait(); code != 143 {
		t.Errorf("Wait() = %d, want 143", code)
	}
}

func TestHandle_Terminate_Escalates(t *testing.T) {
	// Process ignores SIGTERM; Terminate must SIGKILL it.
	h, err := Spawn(context.Background(), "stubborn", []string{"sh", "-c", "trap '' TERM; sleep 10"}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		for range h.Lines() {
		}
	}()

	// Give the shell a moment to install the trap.
	time.Sleep(100 * time.Millisecond)

	if err := h.Terminate(300 * time.Millisecond); err == nil {
		t.Error("expected escalation error from Terminate")
	}

	// SIGKILL exit: 128 + 9
	if code := h.Wait(); code != 137 {
		t.Errorf("Wait() = %d, want 137", code)
	}
}

func TestHandle_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	h, err := Spawn(context.Background(), "pwd", []string{"pwd"}, Options{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}

	var lines []string
	for line := range h.Lines() {
		lines = append(lines, line)
	}
	h.Wait()

	if len(lines) != 1 || lines[0] != dir {
		t.Errorf("pwd output = %v, want [%s]", lines, dir)
	}
}

func TestExtractExitCode_Nil(t *testing.T) {
	if got := extractExitCode(nil); got != 0 {
		t.Errorf("extractExitCode(nil) = %d, want 0", got)
	}
}

func TestExtractExitCode_UnknownError(t *testing.T) {
	if got := extractExitCode(errors.New("boom")); got != 1 {
		t.Errorf("extractExitCode = %d, want 1", got)
	}
}
