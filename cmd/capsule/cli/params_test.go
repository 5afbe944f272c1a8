// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"testing"
)

func TestFlagsFromParamsBindsTaggedFields(t *testing.T) {
	type params struct {
		Manifest string   `flag:"manifest" desc:"manifest path"`
		Window   int      `flag:"window" default:"300" desc:"replay window"`
		Verbose  bool     `flag:"verbose,v" desc:"verbose output"`
		Paths    []string `flag:"path" desc:"audit path entries"`
		ignored  string
	}

	var p params
	flagSet := FlagsFromParams("test", &p)
	if err := flagSet.Parse([]string{
		"--manifest", "m.json", "-v", "--path", "sha256:aa", "--path", "sha256:bb",
	}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if p.Manifest != "m.json" {
		t.Errorf("Manifest = %q", p.Manifest)
	}
	if p.Window != 300 {
		t.Errorf("Window = %d, want default 300", p.Window)
	}
	if !p.Verbose {
		t.Error("Verbose not set by shorthand")
	}
	if len(p.Paths) != 2 || p.Paths[1] != "sha256:bb" {
		t.Errorf("Paths = %v", p.Paths)
	}
	_ = p.ignored
}

func TestFlagsFromParamsEmbedded(t *testing.T) {
	type params struct {
		JSONOutput
		Output string `flag:"output" desc:"output directory"`
	}

	var p params
	flagSet := FlagsFromParams("test", &p)
	if err := flagSet.Parse([]string{"--json", "--output", "/tmp/out"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !p.OutputJSON {
		t.Error("embedded --json flag not bound")
	}
	if p.Output != "/tmp/out" {
		t.Errorf("Output = %q", p.Output)
	}
}

func TestBindFlagsRejectsNonPointer(t *testing.T) {
	type params struct{}
	defer func() {
		if recover() == nil {
			t.Error("expected panic for non-pointer params")
		}
	}()
	FlagsFromParams("test", params{})
}

func TestToolErrorUnwrap(t *testing.T) {
	inner := Validation("missing --manifest")
	if inner.Category != CategoryValidation {
		t.Errorf("category = %s", inner.Category)
	}
	if inner.Error() != "missing --manifest" {
		t.Errorf("message = %q", inner.Error())
	}
	if inner.Unwrap() == nil {
		t.Error("Unwrap returned nil")
	}
}
