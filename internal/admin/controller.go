// Package admin talks to a running IceGrid registry through the icegridadmin
// console to deploy and remove application descriptors.
package admin

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viant/afs"
	"github.com/viant/afs/file"

	"github.com/randomizedcoder/go-icegrid-harness/internal/process"
)

// DeployError indicates that the registry rejected an application descriptor
// (malformed XML, port conflict, duplicate application name).
type DeployError struct {
	Descriptor string
	Output     []string
	Err        error
}

func (e *DeployError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("deploy %s: %v", e.Descriptor, e.Err)
	}
	return fmt.Sprintf("deploy %s rejected: %s", e.Descriptor, strings.Join(e.Output, "; "))
}

func (e *DeployError) Unwrap() error { return e.Err }

// CleanupError indicates a best-effort removal that failed. It is reported
// but never overrides an already-determined test outcome.
type CleanupError struct {
	Application string
	Output      []string
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("remove application %s: %s", e.Application, strings.Join(e.Output, "; "))
}

// Gate reports whether the registry is currently able to accept admin calls.
// The controller refuses to issue deploy/remove calls while it returns false.
type Gate func() bool

// Controller issues admin console commands against a running registry.
type Controller struct {
	cmd    *process.AdminCommand
	gate   Gate
	logger *slog.Logger
	fs     afs.Service

	// tmpDir holds substituted descriptor copies for the run's duration.
	tmpDir string

	// Timeout bounds each one-shot admin invocation.
	Timeout time.Duration
}

// New creates a Controller driving the given icegridadmin binary against the
// registry on locatorPort. The gate must report true only while the registry
// is running.
func New(binaryPath string, locatorPort int, gate Gate, logger *slog.Logger) *Controller {
	return &Controller{
		cmd:     &process.AdminCommand{BinaryPath: binaryPath, LocatorPort: locatorPort},
		gate:    gate,
		logger:  logger,
		fs:      afs.New(),
		tmpDir:  os.TempDir(),
		Timeout: 30 * time.Second,
	}
}

// Deploy reads the descriptor at descriptorPath, applies the ${name}
// substitution variables, and submits the result to the registry. The
// registry registers the application under the name declared inside the
// descriptor. A *DeployError is returned when the registry rejects it.
func (c *Controller) Deploy(ctx context.Context, descriptorPath string, substitutions map[string]string) error {
	if !c.gate() {
		return fmt.Errorf("deploy %s: registry is not running", descriptorPath)
	}

	data, err := c.fs.DownloadWithURL(ctx, descriptorPath)
	if err != nil {
		return &DeployError{Descriptor: descriptorPath, Err: fmt.Errorf("read descriptor: %w", err)}
	}

	substituted := Substitute(data, substitutions)
	if err := ValidateXML(substituted); err != nil {
		return &DeployError{Descriptor: descriptorPath, Err: err}
	}

	tmpPath := filepath.Join(c.tmpDir, fmt.Sprintf("icegrid-app-%s.xml", uuid.NewString()))
	if err := c.fs.Upload(ctx, tmpPath, file.DefaultFileOsMode, bytes.NewReader(substituted)); err != nil {
		return &DeployError{Descriptor: descriptorPath, Err: fmt.Errorf("write substituted descriptor: %w", err)}
	}
	defer func() {
		if err := c.fs.Delete(ctx, tmpPath); err != nil {
			c.logger.Warn("temp_descriptor_delete_failed", "path", tmpPath, "error", err)
		}
	}()

	exitCode, output, err := c.run(ctx, fmt.Sprintf("application add %q", tmpPath))
	if err != nil {
		return &DeployError{Descriptor: descriptorPath, Err: err}
	}
	if exitCode != 0 {
		return &DeployError{Descriptor: descriptorPath, Output: output}
	}

	c.logger.Info("application_deployed", "descriptor", descriptorPath)
	return nil
}

// Remove removes the named application from the registry. Removal of an
// already-removed application is benign. Failures are returned as
// *CleanupError for the caller to record, never to escalate.
func (c *Controller) Remove(ctx context.Context, name string) error {
	if !c.gate() {
		return &CleanupError{Application: name, Output: []string{"registry is not running"}}
	}

	exitCode, output, err := c.run(ctx, fmt.Sprintf("application remove %q", name))
	if err != nil {
		return &CleanupError{Application: name, Output: []string{err.Error()}}
	}
	if exitCode != 0 {
		if removalBenign(output) {
			c.logger.Info("application_already_removed", "application", name)
			return nil
		}
		return &CleanupError{Application: name, Output: output}
	}

	c.logger.Info("application_removed", "application", name)
	return nil
}

// ShutdownRegistry asks the registry to shut itself down gracefully.
func (c *Controller) ShutdownRegistry(ctx context.Context) error {
	return c.shutdown(ctx, "registry shutdown")
}

// ShutdownNode asks the named node to shut itself down gracefully. The
// registry must still be reachable: the node deregisters through it.
func (c *Controller) ShutdownNode(ctx context.Context, nodeName string) error {
	return c.shutdown(ctx, fmt.Sprintf("node shutdown %q", nodeName))
}

func (c *Controller) shutdown(ctx context.Context, console string) error {
	exitCode, output, err := c.run(ctx, console)
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return fmt.Errorf("%s: %s", console, strings.Join(output, "; "))
	}
	return nil
}

// run executes a single admin console command and returns the invocation's
// exit code and combined output.
func (c *Controller) run(ctx context.Context, console string) (int, []string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	argv := c.cmd.Command(console)
	c.logger.Debug("admin_command", "console", console)

	handle, err := process.Spawn(ctx, "icegridadmin", argv, process.Options{})
	if err != nil {
		return -1, nil, err
	}

	var output []string
	for line := range handle.Lines() {
		output = append(output, line)
	}
	return handle.Wait(), output, nil
}

// removalBenign reports whether the admin output indicates the application
// was already gone.
func removalBenign(output []string) bool {
	for _, line := range output {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "doesn't exist") ||
			strings.Contains(lower, "does not exist") ||
			strings.Contains(lower, "couldn't find application") ||
			strings.Contains(lower, "applicationnotexistexception") {
			return true
		}
	}
	return false
}
