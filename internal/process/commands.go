package process

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Locator returns the stringified locator proxy for a registry listening on
// the given port, as passed to every Ice process in the fixture.
func Locator(port int) string {
	return fmt.Sprintf("IceGrid/Locator:default -p %d", port)
}

// RegistryCommand builds the command line for the IceGrid registry service.
type RegistryCommand struct {
	// BinaryPath is the path to the icegridregistry binary.
	BinaryPath string

	// Port is the client endpoint port the registry listens on.
	Port int

	// DataDir is the registry's persistent storage directory.
	DataDir string
}

// Command returns the argv for the registry process.
func (c *RegistryCommand) Command() []string {
	return []string{
		c.BinaryPath,
		"--nowarn",
		"--Ice.PrintAdapterReady=1",
		fmt.Sprintf("--IceGrid.Registry.Client.Endpoints=default -p %d", c.Port),
		"--IceGrid.Registry.Server.Endpoints=default",
		"--IceGrid.Registry.Internal.Endpoints=default",
		"--IceGrid.Registry.Admin.Endpoints=default",
		"--IceGrid.Registry.Data=" + c.DataDir,
		"--IceGrid.Registry.DynamicRegistration=1",
		"--IceGrid.Registry.PermissionsVerifier=IceGrid/NullPermissionsVerifier",
		"--IceGrid.Registry.AdminPermissionsVerifier=IceGrid/NullPermissionsVerifier",
	}
}

// NodeCommand builds the command line for the IceGrid node service.
type NodeCommand struct {
	// BinaryPath is the path to the icegridnode binary.
	BinaryPath string

	// Name is the node name declared to the registry. Application
	// descriptors reference it when placing servers.
	Name string

	// DataDir is the node's persistent storage directory.
	DataDir string

	// LocatorPort is the registry's client endpoint port.
	LocatorPort int
}

// Command returns the argv for the node process.
func (c *NodeCommand) Command() []string {
	return []string{
		c.BinaryPath,
		"--nowarn",
		"--Ice.PrintAdapterReady=1",
		"--Ice.Default.Locator=" + Locator(c.LocatorPort),
		"--IceGrid.Node.Name=" + c.Name,
		"--IceGrid.Node.Endpoints=default",
		"--IceGrid.Node.Data=" + c.DataDir,
		"--IceGrid.Node.WaitTime=30",
	}
}

// AdminCommand builds a one-shot icegridadmin invocation executing a single
// admin console command (application add, application remove, node shutdown,
// registry shutdown).
type AdminCommand struct {
	// BinaryPath is the path to the icegridadmin binary.
	BinaryPath string

	// LocatorPort is the registry's client endpoint port.
	LocatorPort int
}

// Command returns the argv running the given admin console command.
func (c *AdminCommand) Command(console string) []string {
	return []string{
		c.BinaryPath,
		"--Ice.Default.Locator=" + Locator(c.LocatorPort),
		"-e", console,
	}
}

// ClientCommand builds the command line for the test client. The composed
// options (locator, quieting flags, per-test directories) are appended to a
// caller-supplied base option string.
type ClientCommand struct {
	// BinaryPath is the path to the client executable.
	BinaryPath string

	// BaseOptions is the caller-supplied option string, split on whitespace.
	BaseOptions string

	// LocatorPort is the registry's client endpoint port.
	LocatorPort int

	// InstallRoot is the Ice installation root passed as --IceDir.
	InstallRoot string

	// TestDir is the per-test directory passed as --TestDir.
	TestDir string
}

// Command returns the argv for the client process.
func (c *ClientCommand) Command() []string {
	argv := []string{c.BinaryPath}
	argv = append(argv, strings.Fields(c.BaseOptions)...)
	argv = append(argv,
		"--Ice.Default.Locator="+Locator(c.LocatorPort),
		"--Ice.PrintAdapterReady=0",
		"--Ice.PrintProcessId=0",
		"--IceDir="+c.InstallRoot,
		"--TestDir="+c.TestDir,
	)
	return argv
}

// CommandString renders an argv for display, quoting arguments that contain
// whitespace. Used by the -print-cmd diagnostic mode.
func CommandString(argv []string) string {
	parts := make([]string, 0, len(argv))
	for _, a := range argv {
		if strings.ContainsAny(a, " \t") {
			parts = append(parts, `"`+a+`"`)
		} else {
			parts = append(parts, a)
		}
	}
	return strings.Join(parts, " ")
}

// DefaultDataDir returns the conventional db subdirectory for a service under
// the test directory, e.g. <testdir>/db/registry.
func DefaultDataDir(testDir, service string) string {
	return filepath.Join(testDir, "db", service)
}
