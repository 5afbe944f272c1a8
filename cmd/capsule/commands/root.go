// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"os"

	"github.com/capsule-foundation/capsule/cmd/capsule/cli"
	"github.com/capsule-foundation/capsule/lib/config"
)

// Root returns the capsule command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name:    "capsule",
		Summary: "seal and verify multi-signer attestation frames",
		Description: "capsule seals data manifests into quorum-signed attestation frames\n" +
			"and independently verifies them: canonical hashing, per-signer\n" +
			"Ed25519 signatures, an attester counter-signature, Merkle anchoring,\n" +
			"and replay-window defense.",
		Subcommands: []*cli.Command{
			sealCommand(),
			verifyCommand(),
			keygenCommand(),
			registryCommand(),
			bundleCommand(),
			broadcastCommand(),
		},
	}
}

// loadConfig resolves configuration for a command: an explicit
// --config path wins, then the CAPSULE_CONFIG environment variable,
// then built-in defaults. Commands that can run entirely from flags
// never require a config file.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if os.Getenv("CAPSULE_CONFIG") != "" {
		return config.Load()
	}
	return config.Default(), nil
}
