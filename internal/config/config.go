// Package config provides configuration management for go-icegrid-harness.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds all configuration options for the harness.
type Config struct {
	// Test layout
	InstallRoot string `json:"install_root"`
	TestDir     string `json:"test_dir"`
	Descriptor  string `json:"descriptor"`
	AppName     string `json:"app_name"`
	NodeName    string `json:"node_name"`

	// Registry
	RegistryPort int    `json:"registry_port"`
	RegistryPath string `json:"registry_path"`
	NodePath     string `json:"node_path"`
	AdminPath    string `json:"admin_path"`

	// Client
	ClientPath    string `json:"client_path"`
	ClientOptions string `json:"client_options"`

	// Timeouts
	StartupTimeout time.Duration `json:"startup_timeout"`
	ShutdownGrace  time.Duration `json:"shutdown_grace"`

	// Orchestration
	Repeat int `json:"repeat"`

	// Observability
	MetricsAddr string `json:"metrics_addr"`
	MetricsDump string `json:"metrics_dump"`
	Verbose     bool   `json:"verbose"`
	LogFormat   string `json:"log_format"` // json, text

	// Diagnostic modes
	PrintCmd      bool `json:"print_cmd"`
	SkipPreflight bool `json:"skip_preflight"`
}

// DefaultConfig returns a Config with sensible defaults. The test directory
// defaults to the current working directory, matching how the fixture is
// normally invoked from inside a test's directory.
func DefaultConfig() *Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	return &Config{
		InstallRoot: filepath.Dir(filepath.Dir(cwd)),
		TestDir:     cwd,
		Descriptor:  "", // resolved against TestDir in Finalize
		AppName:     "test",
		NodeName:    "localnode",

		RegistryPort: 12010,
		RegistryPath: "icegridregistry",
		NodePath:     "icegridnode",
		AdminPath:    "icegridadmin",

		ClientPath: "", // resolved against TestDir in Finalize

		StartupTimeout: 30 * time.Second,
		ShutdownGrace:  30 * time.Second,

		Repeat: 1,

		MetricsAddr: "", // disabled
		Verbose:     false,
		LogFormat:   "text",
	}
}

// Finalize resolves paths that default relative to the test directory. It is
// called after flag and file parsing.
func (c *Config) Finalize() {
	if c.Descriptor == "" {
		c.Descriptor = filepath.Join(c.TestDir, "application.xml")
	}
	if c.ClientPath == "" {
		c.ClientPath = filepath.Join(c.TestDir, "client")
	}
}
