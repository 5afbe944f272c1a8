// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/capsule-foundation/capsule/cmd/capsule/cli"
	"github.com/capsule-foundation/capsule/lib/artifactdef"
	"github.com/capsule-foundation/capsule/lib/canonical"
	"github.com/capsule-foundation/capsule/lib/registry"
)

type registryParams struct {
	cli.JSONOutput
	Registry string `flag:"registry" desc:"registry index file"`
	Config   string `flag:"config" desc:"config file path"`
}

func registryCommand() *cli.Command {
	var params registryParams
	flags := func() *pflag.FlagSet {
		return cli.FlagsFromParams("registry", &params)
	}
	return &cli.Command{
		Name:    "registry",
		Summary: "manage the registry of sealed frames",
		Description: "The registry keeps sealed frames in a Merkle tree; audit paths\n" +
			"from the tree anchor new frames into the registry root.",
		Subcommands: []*cli.Command{
			{
				Name:    "add",
				Summary: "register a sealed attestation frame",
				Usage:   "capsule registry add --registry <path> <attestation>",
				Flags:   flags,
				Run: func(args []string) error {
					return runRegistryAdd(&params, args)
				},
			},
			{
				Name:    "root",
				Summary: "print the registry's Merkle root",
				Usage:   "capsule registry root --registry <path>",
				Flags:   flags,
				Run: func(args []string) error {
					return runRegistryRoot(&params)
				},
			},
			{
				Name:    "path",
				Summary: "print a registered frame's audit path",
				Usage:   "capsule registry path --registry <path> <frame-id>",
				Flags:   flags,
				Run: func(args []string) error {
					return runRegistryPath(&params, args)
				},
			},
			{
				Name:    "list",
				Summary: "list registered frames",
				Usage:   "capsule registry list --registry <path>",
				Flags:   flags,
				Run: func(args []string) error {
					return runRegistryList(&params)
				},
			},
		},
	}
}

// openRegistry resolves the registry path (flag, then config) and
// loads the index.
func openRegistry(params *registryParams) (*registry.Registry, string, error) {
	path := params.Registry
	if path == "" {
		cfg, err := loadConfig(params.Config)
		if err != nil {
			return nil, "", cli.Internal("loading config: %w", err)
		}
		path = cfg.Paths.Registry
	}
	reg, err := registry.Load(path)
	if err != nil {
		return nil, "", cli.Internal("%v", err)
	}
	return reg, path, nil
}

func runRegistryAdd(params *registryParams, args []string) error {
	if len(args) != 1 {
		return cli.Validation("expected 1 argument: <attestation>")
	}
	reg, path, err := openRegistry(params)
	if err != nil {
		return err
	}

	frame, err := artifactdef.ReadDocument(args[0])
	if err != nil {
		return cli.Validation("%v", err)
	}
	frameHash, err := canonical.HashOf(frame)
	if err != nil {
		return cli.Validation("hashing frame: %v", err)
	}
	entry := registry.Entry{
		FrameID:      artifactdef.StringField(frame, "frame_id"),
		ManifestHash: artifactdef.StringField(frame, "manifest_hash"),
		FrameHash:    frameHash,
		SealedAt:     artifactdef.NestedString(frame, "anti_replay", "timestamp"),
	}
	if err := reg.Add(entry); err != nil {
		return cli.Conflict("%v", err)
	}
	if err := reg.Save(path); err != nil {
		return cli.Internal("saving registry: %w", err)
	}

	root, err := reg.Root()
	if err != nil {
		return cli.Internal("%v", err)
	}
	if done, err := params.EmitJSON(map[string]any{
		"frame_id": entry.FrameID,
		"root":     root,
	}); done {
		return err
	}
	reportPass(fmt.Sprintf("registered %s", entry.FrameID))
	reportLine("root", root)
	return nil
}

func runRegistryRoot(params *registryParams) error {
	reg, _, err := openRegistry(params)
	if err != nil {
		return err
	}
	root, err := reg.Root()
	if err != nil {
		return cli.NotFound("%v", err)
	}
	if done, err := params.EmitJSON(map[string]any{"root": root}); done {
		return err
	}
	fmt.Println(root)
	return nil
}

func runRegistryPath(params *registryParams, args []string) error {
	if len(args) != 1 {
		return cli.Validation("expected 1 argument: <frame-id>")
	}
	reg, _, err := openRegistry(params)
	if err != nil {
		return err
	}
	path, err := reg.AuditPath(args[0])
	if err != nil {
		return cli.NotFound("%v", err)
	}
	if done, err := params.EmitJSON(map[string]any{
		"frame_id": args[0],
		"path":     path,
	}); done {
		return err
	}
	for _, digest := range path {
		fmt.Println(digest)
	}
	return nil
}

func runRegistryList(params *registryParams) error {
	reg, _, err := openRegistry(params)
	if err != nil {
		return err
	}
	entries := reg.Entries()
	if done, err := params.EmitJSON(entries); done {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "FRAME\tSEALED AT\tFRAME HASH")
	for _, entry := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", entry.FrameID, entry.SealedAt, entry.FrameHash)
	}
	return tw.Flush()
}
