// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/capsule-foundation/capsule/cmd/capsule/cli"
	"github.com/capsule-foundation/capsule/lib/artifactdef"
	"github.com/capsule-foundation/capsule/lib/keycodec"
	"github.com/capsule-foundation/capsule/lib/sealed"
)

type keygenParams struct {
	cli.JSONOutput
	NodeID     string `flag:"node-id" desc:"signer identity for the new keypair"`
	EncryptTo  string `flag:"encrypt-to" desc:"age public key; emit the secret as an encrypted wrapper"`
	Passphrase bool   `flag:"passphrase" desc:"prompt for a passphrase; emit the secret as an encrypted wrapper"`
}

// keygenResult is the machine-readable keygen output. The secret half
// appears either in SignerSet (plaintext) or Sealed (encrypted),
// never both. Both forms hold a one-entry signer set skeleton, with
// the secret under attester when the node id is the reserved
// counter-signing role, so keygen outputs feed seal's --signers
// directly and merge with each other.
type keygenResult struct {
	RosterEntry artifactdef.RosterEntry `json:"roster_entry"`
	SignerSet   *artifactdef.SignerSet  `json:"signer_set,omitempty"`
	Sealed      string                  `json:"sealed,omitempty"`
}

func keygenCommand() *cli.Command {
	var params keygenParams
	return &cli.Command{
		Name:    "keygen",
		Summary: "generate an Ed25519 keypair for a signer or attester",
		Description: "Keygen prints a roster entry and a one-entry signer set for a\n" +
			"fresh keypair; generating for the reserved counter-signing role\n" +
			"places the secret under attester instead. Each output feeds seal's\n" +
			"--signers flag, which merges one file per signer. With --encrypt-to\n" +
			"or --passphrase the secret half is age-encrypted and printed as a\n" +
			"sealed wrapper instead of plaintext.",
		Usage: "capsule keygen --node-id <id> [flags]",
		Examples: []cli.Example{
			{
				Description: "generate a signer keypair",
				Command:     "capsule keygen --node-id node::alpha",
			},
			{
				Description: "generate the attester keypair, encrypted at rest",
				Command:     "capsule keygen --node-id attester::quorum-witness --encrypt-to age1...",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("keygen", &params)
		},
		Run: func(args []string) error {
			return runKeygen(&params)
		},
	}
}

func runKeygen(params *keygenParams) error {
	if params.NodeID == "" {
		return cli.Validation("--node-id is required")
	}
	if params.EncryptTo != "" && params.Passphrase {
		return cli.Validation("--encrypt-to and --passphrase are mutually exclusive")
	}

	publicKey, privateKey, fingerprint, err := keycodec.GenerateKeypair()
	if err != nil {
		return cli.Internal("generating keypair: %w", err)
	}

	result := keygenResult{
		RosterEntry: artifactdef.RosterEntry{
			NodeID:      params.NodeID,
			PublicKey:   publicKey,
			Fingerprint: fingerprint,
		},
	}
	secret := artifactdef.SignerSecret{
		NodeID:         params.NodeID,
		SecretKey:      privateKey,
		PublicKey:      publicKey,
		KeyFingerprint: fingerprint,
	}
	set := &artifactdef.SignerSet{}
	if params.NodeID == artifactdef.AttesterRole {
		set.Attester = secret
	} else {
		set.Signers = []artifactdef.SignerSecret{secret}
	}

	switch {
	case params.EncryptTo != "":
		ciphertext, err := encryptSecret(set, func(plaintext []byte) (string, error) {
			return sealed.Encrypt(plaintext, []string{params.EncryptTo})
		})
		if err != nil {
			return err
		}
		result.Sealed = ciphertext

	case params.Passphrase:
		passphrase, err := sealed.ReadPassphrase(true)
		if err != nil {
			return cli.Validation("%v", err)
		}
		ciphertext, err := encryptSecret(set, func(plaintext []byte) (string, error) {
			return sealed.EncryptWithPassphrase(plaintext, passphrase)
		})
		if err != nil {
			return err
		}
		result.Sealed = ciphertext

	default:
		result.SignerSet = set
	}

	if done, err := params.EmitJSON(result); done {
		return err
	}

	fmt.Fprintf(os.Stderr, "generated keypair for %s\n", params.NodeID)
	reportLine("fingerprint", fingerprint)
	return cli.WriteJSON(result)
}

func encryptSecret(set *artifactdef.SignerSet, encrypt func([]byte) (string, error)) (string, error) {
	plaintext, err := json.Marshal(set)
	if err != nil {
		return "", cli.Internal("encoding signer secret: %w", err)
	}
	ciphertext, err := encrypt(plaintext)
	if err != nil {
		return "", cli.Validation("encrypting signer secret: %w", err)
	}
	return ciphertext, nil
}
