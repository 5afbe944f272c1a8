// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capsule.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
environment: development
paths:
  root: /tmp/capsule-test
  registry: /tmp/capsule-test/index.cbor
seal:
  default_replay_window_s: 600
broadcast:
  endpoint: https://anchors.example.com/submit
  timeout_seconds: 10
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Paths.Root != "/tmp/capsule-test" {
		t.Errorf("root = %q", cfg.Paths.Root)
	}
	if cfg.Seal.DefaultReplayWindowS != 600 {
		t.Errorf("replay window = %d, want 600", cfg.Seal.DefaultReplayWindowS)
	}
	if cfg.Broadcast.Endpoint != "https://anchors.example.com/submit" {
		t.Errorf("endpoint = %q", cfg.Broadcast.Endpoint)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
environment: production
paths:
  root: /var/lib/capsule
production:
  seal:
    default_replay_window_s: 120
  broadcast:
    endpoint: https://anchors.internal/submit
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Seal.DefaultReplayWindowS != 120 {
		t.Errorf("replay window = %d, want production override 120", cfg.Seal.DefaultReplayWindowS)
	}
	if cfg.Broadcast.Endpoint != "https://anchors.internal/submit" {
		t.Errorf("endpoint = %q", cfg.Broadcast.Endpoint)
	}
}

func TestVariableExpansion(t *testing.T) {
	path := writeConfig(t, `
environment: development
paths:
  root: /srv/capsule
  output: ${CAPSULE_ROOT}/sealed
  registry: ${CAPSULE_ROOT}/registry.cbor
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Paths.Output != "/srv/capsule/sealed" {
		t.Errorf("output = %q", cfg.Paths.Output)
	}
	if cfg.Paths.Registry != "/srv/capsule/registry.cbor" {
		t.Errorf("registry = %q", cfg.Paths.Registry)
	}
}

func TestLoadRequiresEnvironmentVariable(t *testing.T) {
	t.Setenv("CAPSULE_CONFIG", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when CAPSULE_CONFIG is unset")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Environment = "testing"
	cfg.Seal.DefaultReplayWindowS = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
}
