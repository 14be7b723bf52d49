// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package config provides configuration loading for the bridge. Grounded
// on config/config.go's DefaultConfig/LoadFromFile/Merge shape; adapted so
// that environment variables, not a second YAML file, take precedence
// over the file's values (SPEC_FULL.md §4.8 requires this, since the
// plugin installer writes no YAML of its own — only env vars and flags).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// configPathEnvVar names the path to an optional YAML config file,
// resolved by ResolvePath ahead of the built-in default location
// (SPEC_FULL.md §4.8).
const configPathEnvVar = "STUDIO_MCP_BRIDGE_CONFIG"

// Config is the complete bridge configuration.
type Config struct {
	// Port is the well-known loopback port the primary instance binds.
	// spec.md fixes this at 44755; overridable for tests and local dev.
	Port int `yaml:"port"`
	// PollTimeout bounds how long GET /request parks before returning 423.
	PollTimeout time.Duration `yaml:"pollTimeout"`
	// LogLevel records the configured level name (see internal/obslog's
	// doc comment for the recognized values). The running logger does not
	// read this field: obslog.New takes its level from
	// STUDIO_MCP_BRIDGE_LOG directly, so a logLevel set only in the YAML
	// file does not change logging.
	LogLevel string `yaml:"logLevel"`
}

// DefaultConfig returns the bridge's built-in defaults, matching spec.md
// §4.1 and §4.3.
func DefaultConfig() *Config {
	return &Config{
		Port:        44755,
		PollTimeout: 15 * time.Second,
		LogLevel:    "info",
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if c.PollTimeout <= 0 {
		return fmt.Errorf("config: pollTimeout must be positive, got %s", c.PollTimeout)
	}
	return nil
}

// LoadFromFile reads a YAML config file into a copy of DefaultConfig. A
// missing file is returned as an error wrapping os.ErrNotExist; Load
// checks for it with errors.Is and falls back to defaults, mirroring how
// the plugin installer treats an absent config as "use defaults".
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg's fields from STUDIO_MCP_BRIDGE_PORT,
// STUDIO_MCP_BRIDGE_POLL_TIMEOUT, and STUDIO_MCP_BRIDGE_LOG when they are
// set, taking precedence over both the built-in defaults and any YAML file
// (SPEC_FULL.md §4.8).
func (c *Config) ApplyEnv() error {
	if raw := os.Getenv("STUDIO_MCP_BRIDGE_PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("config: STUDIO_MCP_BRIDGE_PORT=%q: %w", raw, err)
		}
		c.Port = port
	}
	if raw := os.Getenv("STUDIO_MCP_BRIDGE_POLL_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("config: STUDIO_MCP_BRIDGE_POLL_TIMEOUT=%q: %w", raw, err)
		}
		c.PollTimeout = d
	}
	if raw := os.Getenv("STUDIO_MCP_BRIDGE_LOG"); raw != "" {
		c.LogLevel = raw
	}
	return nil
}

// ResolvePath decides which YAML file, if any, Load should read, honoring
// SPEC_FULL.md §4.8's precedence: an explicit flagPath (from the --config
// flag) wins outright; otherwise $STUDIO_MCP_BRIDGE_CONFIG; otherwise
// ~/.config/studio-mcp-bridge/config.yaml if it exists. Returns "" when
// none apply, meaning Load should use its built-in defaults.
func ResolvePath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if envPath := os.Getenv(configPathEnvVar); envPath != "" {
		return envPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	defaultPath := filepath.Join(home, ".config", "studio-mcp-bridge", "config.yaml")
	if _, err := os.Stat(defaultPath); err != nil {
		return ""
	}
	return defaultPath
}

// Load resolves the full configuration: defaults, then an optional YAML
// file at path (skipped entirely if absent), then environment overrides.
// Callers typically pass the result of ResolvePath.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if fileCfg, err := LoadFromFile(path); err == nil {
			cfg = fileCfg
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
