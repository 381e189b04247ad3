// Package preflight provides startup validation checks.
package preflight

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/randomizedcoder/go-icegrid-harness/internal/config"
)

// Check represents the result of a single preflight check.
type Check struct {
	Name    string // Name of the check
	Passed  bool   // Whether the check passed
	Warning bool   // True if it's a warning (non-fatal)
	Message string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// RunAll executes all preflight checks for a fixture run.
func RunAll(cfg *config.Config) *Result {
	result := &Result{
		Checks: make([]Check, 0, 7),
		Passed: true,
	}

	add := func(c Check) {
		result.Checks = append(result.Checks, c)
		if !c.Passed {
			result.Passed = false
		}
	}

	add(checkBinary("icegridregistry", cfg.RegistryPath))
	add(checkBinary("icegridnode", cfg.NodePath))
	add(checkBinary("icegridadmin", cfg.AdminPath))
	add(checkBinary("client", cfg.ClientPath))
	add(checkDescriptor(cfg.Descriptor))
	add(checkTestDirWritable(cfg.TestDir))

	// Port-in-use is a warning: a stale registry usually explains it, and
	// the startup failure that follows is clearer than a preflight abort.
	result.Checks = append(result.Checks, checkPortFree(cfg.RegistryPort))

	return result
}

// PrintResults prints all check results to stdout.
func PrintResults(result *Result) {
	fmt.Println("Preflight checks:")
	for _, c := range result.Checks {
		fmt.Println(c.String())
	}
	fmt.Println()
}

// checkBinary verifies an executable exists, either at its path or on PATH.
func checkBinary(name, path string) Check {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return Check{
			Name:    name,
			Passed:  false,
			Message: fmt.Sprintf("not found: %s (%v)", path, err),
		}
	}
	return Check{
		Name:    name,
		Passed:  true,
		Message: "found at " + resolved,
	}
}

// checkDescriptor verifies the application descriptor file is readable.
func checkDescriptor(path string) Check {
	info, err := os.Stat(path)
	if err != nil {
		return Check{
			Name:    "descriptor",
			Passed:  false,
			Message: fmt.Sprintf("not readable: %s (%v)", path, err),
		}
	}
	if info.IsDir() {
		return Check{
			Name:    "descriptor",
			Passed:  false,
			Message: path + " is a directory",
		}
	}
	return Check{
		Name:    "descriptor",
		Passed:  true,
		Message: fmt.Sprintf("%s (%d bytes)", path, info.Size()),
	}
}

// checkTestDirWritable verifies the registry/node db directories can be
// created under the test directory.
func checkTestDirWritable(dir string) Check {
	probe := filepath.Join(dir, ".preflight-probe")
	if err := os.WriteFile(probe, []byte("probe"), 0o644); err != nil {
		return Check{
			Name:    "test_dir",
			Passed:  false,
			Message: fmt.Sprintf("not writable: %s (%v)", dir, err),
		}
	}
	os.Remove(probe)
	return Check{
		Name:    "test_dir",
		Passed:  true,
		Message: dir + " writable",
	}
}

// checkPortFree reports whether the registry port is currently unbound.
func checkPortFree(port int) Check {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, 250*time.Millisecond)
	if err == nil {
		conn.Close()
		return Check{
			Name:    "registry_port",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("port %d already accepting connections (stale registry?)", port),
		}
	}
	return Check{
		Name:    "registry_port",
		Passed:  true,
		Message: fmt.Sprintf("port %d free", port),
	}
}
