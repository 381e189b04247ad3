// Package main provides the go-icegrid-harness CLI entry point.
//
// go-icegrid-harness drives the IceGrid allocation test fixture: it brings up
// an IceGrid registry and node, deploys an application descriptor, runs the
// test client while forwarding its output, then removes the application and
// shuts the services down in reverse order. The process exits 0 only when the
// client exited 0.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/randomizedcoder/go-icegrid-harness/internal/config"
	"github.com/randomizedcoder/go-icegrid-harness/internal/logging"
	"github.com/randomizedcoder/go-icegrid-harness/internal/orchestrator"
	"github.com/randomizedcoder/go-icegrid-harness/internal/preflight"
	"github.com/randomizedcoder/go-icegrid-harness/internal/process"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/go-icegrid-harness
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// Handle version flag early (before flag parsing)
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("go-icegrid-harness %s\n", version)
			return 0
		}
	}

	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	// Logs go to stderr; stdout is reserved for the progress trace and the
	// client's forwarded output.
	logger := logging.NewLogger(cfg.LogFormat, "info", cfg.Verbose)
	logging.SetDefault(logger)

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	if cfg.PrintCmd {
		printCommands(cfg)
		return 0
	}

	if !cfg.SkipPreflight {
		result := preflight.RunAll(cfg)
		preflight.PrintResults(result)
		if !result.Passed {
			logger.Error("preflight_failed")
			fmt.Fprintln(os.Stderr, "preflight checks failed (use -skip-preflight to override)")
			return 1
		}
	}

	logger.Info("starting",
		"version", version,
		"application", cfg.AppName,
		"registry_port", cfg.RegistryPort,
		"test_dir", cfg.TestDir,
		"repeat", cfg.Repeat,
	)

	runner := orchestrator.New(cfg, logger, version)
	if err := runner.Run(context.Background()); err != nil {
		if !errors.Is(err, orchestrator.ErrClientFailed) {
			logger.Error("run_failed", "error", err)
		}
		return 1
	}
	return 0
}

// printCommands prints the command lines the harness would run.
func printCommands(cfg *config.Config) {
	registry := &process.RegistryCommand{
		BinaryPath: cfg.RegistryPath,
		Port:       cfg.RegistryPort,
		DataDir:    process.DefaultDataDir(cfg.TestDir, "registry"),
	}
	node := &process.NodeCommand{
		BinaryPath:  cfg.NodePath,
		Name:        cfg.NodeName,
		DataDir:     process.DefaultDataDir(cfg.TestDir, "node"),
		LocatorPort: cfg.RegistryPort,
	}
	client := &process.ClientCommand{
		BinaryPath:  cfg.ClientPath,
		BaseOptions: cfg.ClientOptions,
		LocatorPort: cfg.RegistryPort,
		InstallRoot: cfg.InstallRoot,
		TestDir:     cfg.TestDir,
	}

	fmt.Println("# registry:")
	fmt.Println(process.CommandString(registry.Command()))
	fmt.Println()
	fmt.Println("# node:")
	fmt.Println(process.CommandString(node.Command()))
	fmt.Println()
	fmt.Println("# client:")
	fmt.Println(process.CommandString(client.Command()))
}
