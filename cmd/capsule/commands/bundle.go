// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/capsule-foundation/capsule/cmd/capsule/cli"
	"github.com/capsule-foundation/capsule/lib/bundle"
	"github.com/capsule-foundation/capsule/lib/seal"
	"github.com/capsule-foundation/capsule/lib/verify"
)

// Bundle entry names for the optional trust inputs. The three sealed
// artifacts use their on-disk names from the seal package.
const (
	rosterEntryName   = "roster.json"
	manifestEntryName = "manifest.json"
)

type bundleExportParams struct {
	cli.JSONOutput
	Output      string `flag:"output" desc:"bundle file to write"`
	Compression string `flag:"compression" default:"zstd" desc:"payload compression: zstd, lz4, or none"`
	Roster      string `flag:"roster" desc:"roster document to embed"`
	Manifest    string `flag:"manifest" desc:"manifest document to embed"`
}

type bundleImportParams struct {
	cli.JSONOutput
	Output   string `flag:"output" desc:"directory to extract into"`
	Roster   string `flag:"roster" desc:"roster document, when not embedded in the bundle"`
	Manifest string `flag:"manifest" desc:"manifest document, when not embedded in the bundle"`
	Parent   string `flag:"parent" desc:"expected parent lineage identifier"`
	NoVerify bool   `flag:"no-verify" desc:"extract without verifying (inspection only)"`
}

func bundleCommand() *cli.Command {
	var exportParams bundleExportParams
	var importParams bundleImportParams
	return &cli.Command{
		Name:    "bundle",
		Summary: "pack and unpack sealed artifact sets",
		Description: "A bundle is a single checksummed container holding a sealed\n" +
			"artifact set, optionally with the roster and manifest it was\n" +
			"sealed against, for transfer between machines.",
		Subcommands: []*cli.Command{
			{
				Name:    "export",
				Summary: "pack a sealed artifact set into a bundle file",
				Usage:   "capsule bundle export --output <bundle> [flags] <artifact-dir>",
				Examples: []cli.Example{
					{
						Description: "bundle a sealed set with its trust inputs",
						Command:     "capsule bundle export --output release.capb --roster roster.json --manifest manifest.json out/",
					},
				},
				Flags: func() *pflag.FlagSet {
					return cli.FlagsFromParams("export", &exportParams)
				},
				Run: func(args []string) error {
					return runBundleExport(&exportParams, args)
				},
			},
			{
				Name:    "import",
				Summary: "extract and verify a bundle",
				Usage:   "capsule bundle import --output <dir> [flags] <bundle>",
				Examples: []cli.Example{
					{
						Description: "extract a bundle and verify its contents",
						Command:     "capsule bundle import --output extracted/ release.capb",
					},
				},
				Flags: func() *pflag.FlagSet {
					return cli.FlagsFromParams("import", &importParams)
				},
				Run: func(args []string) error {
					return runBundleImport(&importParams, args)
				},
			},
		},
	}
}

func runBundleExport(params *bundleExportParams, args []string) error {
	if len(args) != 1 {
		return cli.Validation("expected 1 argument: <artifact-dir>")
	}
	if params.Output == "" {
		return cli.Validation("--output is required")
	}
	tag, err := bundle.ParseCompressionTag(params.Compression)
	if err != nil {
		return cli.Validation("%v", err)
	}

	dir := args[0]
	var entries []bundle.Entry
	for _, name := range []string{seal.FrameFileName, seal.AnchorFileName, seal.BindingFileName} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return cli.NotFound("reading artifact: %v", err)
		}
		entries = append(entries, bundle.Entry{Name: name, Data: data})
	}
	for _, extra := range []struct{ path, name string }{
		{params.Roster, rosterEntryName},
		{params.Manifest, manifestEntryName},
	} {
		if extra.path == "" {
			continue
		}
		data, err := os.ReadFile(extra.path)
		if err != nil {
			return cli.NotFound("reading %s: %v", extra.name, err)
		}
		entries = append(entries, bundle.Entry{Name: extra.name, Data: data})
	}

	if err := bundle.Export(params.Output, entries, tag); err != nil {
		return cli.Internal("%v", err)
	}

	if done, err := params.EmitJSON(map[string]any{
		"bundle":  params.Output,
		"entries": len(entries),
	}); done {
		return err
	}
	reportPass(fmt.Sprintf("exported %d entries to %s", len(entries), params.Output))
	return nil
}

func runBundleImport(params *bundleImportParams, args []string) error {
	if len(args) != 1 {
		return cli.Validation("expected 1 argument: <bundle>")
	}
	if params.Output == "" {
		return cli.Validation("--output is required")
	}

	entries, err := bundle.Import(args[0])
	if err != nil {
		return cli.Validation("%v", err)
	}
	if err := os.MkdirAll(params.Output, 0o755); err != nil {
		return cli.Internal("creating output directory: %w", err)
	}

	extracted := make(map[string]string, len(entries))
	for _, entry := range entries {
		// Entry names come from untrusted input; confine them to the
		// output directory.
		if filepath.Base(entry.Name) != entry.Name {
			return cli.Validation("bundle entry %q has a path separator in its name", entry.Name)
		}
		path := filepath.Join(params.Output, entry.Name)
		if err := os.WriteFile(path, entry.Data, 0o644); err != nil {
			return cli.Internal("extracting %s: %w", entry.Name, err)
		}
		extracted[entry.Name] = path
	}

	if params.NoVerify {
		if done, err := params.EmitJSON(map[string]any{
			"status":  "extracted",
			"entries": len(entries),
		}); done {
			return err
		}
		reportLine("extracted", params.Output)
		return nil
	}

	for _, name := range []string{seal.FrameFileName, seal.AnchorFileName, seal.BindingFileName} {
		if extracted[name] == "" {
			return cli.Validation("bundle is missing entry %q", name)
		}
	}
	rosterPath := params.Roster
	if rosterPath == "" {
		rosterPath = extracted[rosterEntryName]
	}
	manifestPath := params.Manifest
	if manifestPath == "" {
		manifestPath = extracted[manifestEntryName]
	}
	if rosterPath == "" || manifestPath == "" {
		return cli.Validation("bundle does not embed its roster and manifest: pass --roster and --manifest, or --no-verify to extract without checking")
	}

	inputs, err := readArtifactSet(
		extracted[seal.FrameFileName],
		extracted[seal.AnchorFileName],
		extracted[seal.BindingFileName],
		rosterPath,
		manifestPath,
	)
	if err != nil {
		return err
	}
	if err := verify.Verify(inputs, verify.Options{ExpectedParent: params.Parent}); err != nil {
		if violation, ok := verify.AsViolation(err); ok {
			if done, jsonErr := params.EmitJSON(map[string]any{
				"status": "fail",
				"code":   violation.Code,
				"detail": violation.Detail,
			}); done {
				if jsonErr != nil {
					return jsonErr
				}
				return &cli.ExitError{Code: 1}
			}
			reportFail(string(violation.Code))
			reportLine("detail", violation.Detail)
			return &cli.ExitError{Code: 1}
		}
		return cli.Internal("%v", err)
	}

	if done, err := params.EmitJSON(map[string]any{
		"status":  "pass",
		"entries": len(entries),
	}); done {
		return err
	}
	reportPass(fmt.Sprintf("extracted and verified %d entries", len(entries)))
	return nil
}
