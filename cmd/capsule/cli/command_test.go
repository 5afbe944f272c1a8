// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestExecuteDispatchesSubcommand(t *testing.T) {
	ran := ""
	root := &Command{
		Name: "capsule",
		Subcommands: []*Command{
			{Name: "seal", Run: func(args []string) error { ran = "seal"; return nil }},
			{Name: "verify", Run: func(args []string) error { ran = "verify"; return nil }},
		},
	}
	if err := root.Execute([]string{"verify"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if ran != "verify" {
		t.Errorf("ran = %q, want verify", ran)
	}
}

func TestExecuteSuggestsCommand(t *testing.T) {
	root := &Command{
		Name: "capsule",
		Subcommands: []*Command{
			{Name: "seal", Run: func(args []string) error { return nil }},
			{Name: "verify", Run: func(args []string) error { return nil }},
		},
	}
	err := root.Execute([]string{"vrify"})
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(err.Error(), `"verify"`) {
		t.Errorf("error lacks suggestion: %v", err)
	}
}

func TestExecutePassesRemainingArgs(t *testing.T) {
	var gotArgs []string
	var verbose bool
	command := &Command{
		Name: "verify",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("verify", pflag.ContinueOnError)
			flagSet.BoolVar(&verbose, "verbose", false, "")
			return flagSet
		},
		Run: func(args []string) error { gotArgs = args; return nil },
	}
	if err := command.Execute([]string{"--verbose", "a.json", "b.json"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !verbose {
		t.Error("flag not parsed")
	}
	if len(gotArgs) != 2 || gotArgs[0] != "a.json" {
		t.Errorf("args = %v", gotArgs)
	}
}

func TestExecuteSuggestsFlag(t *testing.T) {
	command := &Command{
		Name: "seal",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("seal", pflag.ContinueOnError)
			flagSet.String("manifest", "", "")
			return flagSet
		},
		Run: func(args []string) error { return nil },
	}
	err := command.Execute([]string{"--manifset", "m.json"})
	if err == nil {
		t.Fatal("expected error for unknown flag")
	}
	if !strings.Contains(err.Error(), "--manifest") {
		t.Errorf("error lacks flag suggestion: %v", err)
	}
}

func TestPrintHelpListsSubcommands(t *testing.T) {
	root := &Command{
		Name: "capsule",
		Subcommands: []*Command{
			{Name: "seal", Summary: "seal an attestation frame"},
			{Name: "verify", Summary: "verify a sealed artifact set"},
		},
	}
	var output strings.Builder
	root.PrintHelp(&output)
	help := output.String()
	for _, want := range []string{"seal", "verify", "seal an attestation frame"} {
		if !strings.Contains(help, want) {
			t.Errorf("help output lacks %q:\n%s", want, help)
		}
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "seal", 4},
		{"seal", "seal", 0},
		{"vrify", "verify", 1},
		{"regstry", "registry", 1},
		{"bundle", "seal", 5},
	}
	for _, test := range tests {
		if got := levenshtein(test.a, test.b); got != test.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
		}
	}
}
