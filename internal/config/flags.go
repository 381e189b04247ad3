package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// ParseFlags parses command-line flags and returns a Config. An optional
// -config YAML file is applied first, so flags given explicitly win over file
// values.
func ParseFlags() (*Config, error) {
	return parseFlags(os.Args[1:])
}

func parseFlags(args []string) (*Config, error) {
	cfg := DefaultConfig()

	// Peek at -config before defining the real flag set so file values act
	// as defaults for everything else.
	configFile := peekConfigFlag(args)
	if configFile != "" {
		if err := LoadFile(configFile, cfg); err != nil {
			return nil, err
		}
	}

	fs := flag.NewFlagSet("go-icegrid-harness", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `go-icegrid-harness - IceGrid allocation test fixture orchestration

Usage:
  go-icegrid-harness [flags]

Brings up an IceGrid registry and node, deploys the application descriptor,
runs the test client, forwards its output, and tears everything down in
reverse order. Exits 0 only when the client exited 0.

Flags:
`)
		fs.PrintDefaults()
	}

	fs.String("config", "", "YAML harness config file (applied before other flags)")

	// Test layout
	fs.StringVar(&cfg.InstallRoot, "install-root", cfg.InstallRoot, "Ice installation root (ice.dir substitution, --IceDir)")
	fs.StringVar(&cfg.TestDir, "test-dir", cfg.TestDir, "Per-test directory (test.dir substitution, --TestDir)")
	fs.StringVar(&cfg.Descriptor, "descriptor", cfg.Descriptor, "Application descriptor path (default <test-dir>/application.xml)")
	fs.StringVar(&cfg.AppName, "app", cfg.AppName, "Application name used for removal")
	fs.StringVar(&cfg.NodeName, "node-name", cfg.NodeName, "IceGrid node name")

	// Binaries / ports
	fs.IntVar(&cfg.RegistryPort, "port", cfg.RegistryPort, "Registry client endpoint port")
	fs.StringVar(&cfg.RegistryPath, "registry", cfg.RegistryPath, "Path to icegridregistry")
	fs.StringVar(&cfg.NodePath, "node", cfg.NodePath, "Path to icegridnode")
	fs.StringVar(&cfg.AdminPath, "admin", cfg.AdminPath, "Path to icegridadmin")
	fs.StringVar(&cfg.ClientPath, "client", cfg.ClientPath, "Path to the test client (default <test-dir>/client)")
	fs.StringVar(&cfg.ClientOptions, "client-options", cfg.ClientOptions, "Base option string appended to the client command line")

	// Timeouts
	fs.DurationVar(&cfg.StartupTimeout, "startup-timeout", cfg.StartupTimeout, "Per-service readiness timeout")
	fs.DurationVar(&cfg.ShutdownGrace, "shutdown-grace", cfg.ShutdownGrace, "Per-service graceful shutdown period before kill")

	// Orchestration
	fs.IntVar(&cfg.Repeat, "repeat", cfg.Repeat, "Run the fixture this many times (flake hunting)")

	// Observability
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics listen address (empty = disabled)")
	fs.StringVar(&cfg.MetricsDump, "metrics-dump", cfg.MetricsDump, "Write metrics in text exposition format to this file at exit")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose (debug) logging")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "text" or "json"`)

	// Diagnostics
	fs.BoolVar(&cfg.PrintCmd, "print-cmd", cfg.PrintCmd, "Print the composed command lines and exit")
	fs.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip environment preflight checks")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.Finalize()
	return cfg, nil
}

// peekConfigFlag extracts the -config value without disturbing normal flag
// parsing.
func peekConfigFlag(args []string) string {
	for i, a := range args {
		if a == "-config" || a == "--config" {
			if i+1 < len(args) {
				return args[i+1]
			}
			return ""
		}
		if v, ok := strings.CutPrefix(a, "--config="); ok {
			return v
		}
		if v, ok := strings.CutPrefix(a, "-config="); ok {
			return v
		}
	}
	return ""
}
