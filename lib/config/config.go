// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for the capsule CLI.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Seal configures sealing defaults.
	Seal SealConfig `yaml:"seal"`

	// Broadcast configures the anchor broadcast endpoint.
	Broadcast BroadcastConfig `yaml:"broadcast"`

	// Per-environment overrides, applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Paths     *PathsConfig     `yaml:"paths,omitempty"`
	Seal      *SealConfig      `yaml:"seal,omitempty"`
	Broadcast *BroadcastConfig `yaml:"broadcast,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for capsule data.
	Root string `yaml:"root"`

	// Output is where sealed artifacts are written when the command
	// does not pass --output-dir.
	Output string `yaml:"output"`

	// Registry is the path of the registry index file.
	Registry string `yaml:"registry"`
}

// SealConfig configures sealing defaults.
type SealConfig struct {
	// DefaultReplayWindowS is the replay window, in seconds, applied
	// when the binding template does not carry one.
	DefaultReplayWindowS int `yaml:"default_replay_window_s"`
}

// BroadcastConfig configures the anchor broadcast endpoint.
type BroadcastConfig struct {
	// Endpoint is the HTTP URL anchors are POSTed to.
	Endpoint string `yaml:"endpoint"`

	// TimeoutSeconds bounds each broadcast request.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Default returns the default configuration. These defaults are used as a
// base before loading the config file. They exist primarily to ensure all
// fields have sensible zero-values, not as a fallback - the config file is
// required for Load.
func Default() *Config {
	homeDirectory, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDirectory, ".cache", "capsule")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:     defaultRoot,
			Output:   filepath.Join(defaultRoot, "sealed"),
			Registry: filepath.Join(defaultRoot, "registry.cbor"),
		},
		Seal: SealConfig{
			DefaultReplayWindowS: 300,
		},
		Broadcast: BroadcastConfig{
			TimeoutSeconds: 30,
		},
	}
}

// Load loads configuration from the CAPSULE_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults - if CAPSULE_CONFIG is not set, this
// fails. This ensures deterministic, auditable configuration with no
// hidden overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("CAPSULE_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("CAPSULE_CONFIG environment variable not set; " +
			"set it to the path of your capsule.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables do
// not override config values. The only expansion performed is ${HOME} and
// similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.Output != "" {
			c.Paths.Output = overrides.Paths.Output
		}
		if overrides.Paths.Registry != "" {
			c.Paths.Registry = overrides.Paths.Registry
		}
	}

	if overrides.Seal != nil {
		if overrides.Seal.DefaultReplayWindowS != 0 {
			c.Seal.DefaultReplayWindowS = overrides.Seal.DefaultReplayWindowS
		}
	}

	if overrides.Broadcast != nil {
		if overrides.Broadcast.Endpoint != "" {
			c.Broadcast.Endpoint = overrides.Broadcast.Endpoint
		}
		if overrides.Broadcast.TimeoutSeconds != 0 {
			c.Broadcast.TimeoutSeconds = overrides.Broadcast.TimeoutSeconds
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"CAPSULE_ROOT": c.Paths.Root,
		"HOME":         os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["CAPSULE_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.Output = expandVars(c.Paths.Output, vars)
	c.Paths.Registry = expandVars(c.Paths.Registry, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Paths.Registry == "" {
		errs = append(errs, fmt.Errorf("paths.registry is required"))
	}
	if c.Seal.DefaultReplayWindowS <= 0 {
		errs = append(errs, fmt.Errorf("seal.default_replay_window_s must be positive"))
	}
	if c.Broadcast.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("broadcast.timeout_seconds must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		c.Paths.Output,
		filepath.Dir(c.Paths.Registry),
	}
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}
