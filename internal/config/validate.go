package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for values that would only fail later,
// mid-run.
func Validate(cfg *Config) error {
	if cfg.RegistryPort <= 0 || cfg.RegistryPort > 65535 {
		return fmt.Errorf("invalid registry port %d", cfg.RegistryPort)
	}
	if cfg.Repeat < 1 {
		return fmt.Errorf("repeat must be at least 1, got %d", cfg.Repeat)
	}
	if cfg.AppName == "" {
		return fmt.Errorf("application name must not be empty")
	}
	if cfg.NodeName == "" {
		return fmt.Errorf("node name must not be empty")
	}
	if cfg.StartupTimeout <= 0 {
		return fmt.Errorf("startup timeout must be positive, got %s", cfg.StartupTimeout)
	}
	if cfg.ShutdownGrace <= 0 {
		return fmt.Errorf("shutdown grace must be positive, got %s", cfg.ShutdownGrace)
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("log format must be \"json\" or \"text\", got %q", cfg.LogFormat)
	}
	return nil
}
