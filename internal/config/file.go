package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config for YAML decoding. Durations are strings in the
// file ("30s", "1m") since yaml.v3 has no native time.Duration support.
type fileConfig struct {
	InstallRoot *string `yaml:"install_root"`
	TestDir     *string `yaml:"test_dir"`
	Descriptor  *string `yaml:"descriptor"`
	AppName     *string `yaml:"app_name"`
	NodeName    *string `yaml:"node_name"`

	RegistryPort *int    `yaml:"registry_port"`
	RegistryPath *string `yaml:"registry_path"`
	NodePath     *string `yaml:"node_path"`
	AdminPath    *string `yaml:"admin_path"`

	ClientPath    *string `yaml:"client_path"`
	ClientOptions *string `yaml:"client_options"`

	StartupTimeout *string `yaml:"startup_timeout"`
	ShutdownGrace  *string `yaml:"shutdown_grace"`

	Repeat *int `yaml:"repeat"`

	MetricsAddr *string `yaml:"metrics_addr"`
	MetricsDump *string `yaml:"metrics_dump"`
	Verbose     *bool   `yaml:"verbose"`
	LogFormat   *string `yaml:"log_format"`
}

// LoadFile applies a YAML harness file on top of the given config. Fields
// absent from the file keep their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.InstallRoot, fc.InstallRoot)
	setString(&cfg.TestDir, fc.TestDir)
	setString(&cfg.Descriptor, fc.Descriptor)
	setString(&cfg.AppName, fc.AppName)
	setString(&cfg.NodeName, fc.NodeName)
	setString(&cfg.RegistryPath, fc.RegistryPath)
	setString(&cfg.NodePath, fc.NodePath)
	setString(&cfg.AdminPath, fc.AdminPath)
	setString(&cfg.ClientPath, fc.ClientPath)
	setString(&cfg.ClientOptions, fc.ClientOptions)
	setString(&cfg.MetricsAddr, fc.MetricsAddr)
	setString(&cfg.MetricsDump, fc.MetricsDump)
	setString(&cfg.LogFormat, fc.LogFormat)

	if fc.RegistryPort != nil {
		cfg.RegistryPort = *fc.RegistryPort
	}
	if fc.Repeat != nil {
		cfg.Repeat = *fc.Repeat
	}
	if fc.Verbose != nil {
		cfg.Verbose = *fc.Verbose
	}

	if err := setDuration(&cfg.StartupTimeout, fc.StartupTimeout); err != nil {
		return fmt.Errorf("config file %s: startup_timeout: %w", path, err)
	}
	if err := setDuration(&cfg.ShutdownGrace, fc.ShutdownGrace); err != nil {
		return fmt.Errorf("config file %s: shutdown_grace: %w", path, err)
	}

	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
