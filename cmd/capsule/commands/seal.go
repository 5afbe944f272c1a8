// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/capsule-foundation/capsule/cmd/capsule/cli"
	"github.com/capsule-foundation/capsule/lib/artifactdef"
	"github.com/capsule-foundation/capsule/lib/registry"
	"github.com/capsule-foundation/capsule/lib/seal"
	"github.com/capsule-foundation/capsule/lib/sealed"
)

type sealParams struct {
	cli.JSONOutput
	Manifest        string   `flag:"manifest" desc:"manifest document to attest"`
	FrameTemplate   string   `flag:"attestation-template" desc:"frame template skeleton"`
	AnchorTemplate  string   `flag:"anchor-template" desc:"anchor template skeleton"`
	BindingTemplate string   `flag:"replay-template" desc:"replay binding template skeleton"`
	Signers         []string `flag:"signers" desc:"signer secret file, repeatable; full sets, keygen outputs, and age-encrypted wrappers merge"`
	Roster          string   `flag:"roster" desc:"roster of signer public keys"`
	Output          string   `flag:"output" desc:"output directory for the three artifacts"`
	Registry        string   `flag:"registry" desc:"registry index to anchor into and update"`
	Identity        string   `flag:"identity" desc:"age identity file for encrypted signer sets"`
	PassphraseFile  string   `flag:"passphrase-file" desc:"file holding the signer-set passphrase"`
	Passphrase      bool     `flag:"passphrase" desc:"prompt for the signer-set passphrase"`
	Parent          string   `flag:"parent" desc:"expected parent lineage identifier"`
	AuditPath       []string `flag:"audit-path" desc:"explicit audit path digests"`
	Config          string   `flag:"config" desc:"config file path"`
}

func sealCommand() *cli.Command {
	var params sealParams
	return &cli.Command{
		Name:    "seal",
		Summary: "seal a manifest into a quorum-signed attestation frame",
		Description: "Seal populates the frame template, signs it with every designated\n" +
			"signer, counter-signs with the attester, derives the Merkle anchor\n" +
			"and replay binding, and self-verifies the written artifacts.",
		Usage: "capsule seal --manifest <path> --attestation-template <path> --anchor-template <path> --replay-template <path> --signers <path> --roster <path> [flags]",
		Examples: []cli.Example{
			{
				Description: "seal with registry anchoring",
				Command:     "capsule seal --manifest m.json --attestation-template f.json --anchor-template a.json --replay-template r.json --signers s.json --roster ro.json --registry reg.cbor --output out/",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("seal", &params)
		},
		Run: func(args []string) error {
			return runSeal(&params)
		},
	}
}

func runSeal(params *sealParams) error {
	for flag, value := range map[string]string{
		"--manifest":             params.Manifest,
		"--attestation-template": params.FrameTemplate,
		"--anchor-template":      params.AnchorTemplate,
		"--replay-template":      params.BindingTemplate,
		"--roster":               params.Roster,
	} {
		if value == "" {
			return cli.Validation("%s is required", flag)
		}
	}
	if len(params.Signers) == 0 {
		return cli.Validation("--signers is required")
	}

	cfg, err := loadConfig(params.Config)
	if err != nil {
		return cli.Internal("loading config: %w", err)
	}
	outputDir := params.Output
	if outputDir == "" {
		outputDir = cfg.Paths.Output
	}

	manifest, err := artifactdef.ReadDocument(params.Manifest)
	if err != nil {
		return cli.Validation("%v", err)
	}
	frameTemplate, err := artifactdef.ReadDocument(params.FrameTemplate)
	if err != nil {
		return cli.Validation("%v", err)
	}
	anchorTemplate, err := artifactdef.ReadDocument(params.AnchorTemplate)
	if err != nil {
		return cli.Validation("%v", err)
	}
	bindingTemplate, err := artifactdef.ReadDocument(params.BindingTemplate)
	if err != nil {
		return cli.Validation("%v", err)
	}
	roster, err := artifactdef.ReadRoster(params.Roster)
	if err != nil {
		return cli.Validation("%v", err)
	}
	signerSet, err := loadSignerSets(params.Signers, params.Identity, params.PassphraseFile, params.Passphrase)
	if err != nil {
		return err
	}

	sealParams := seal.Params{
		Manifest:             manifest,
		FrameTemplate:        frameTemplate,
		AnchorTemplate:       anchorTemplate,
		BindingTemplate:      bindingTemplate,
		Signers:              signerSet,
		Roster:               roster,
		ExpectedParent:       params.Parent,
		OutputDir:            outputDir,
		DefaultReplayWindowS: cfg.Seal.DefaultReplayWindowS,
	}
	if len(params.AuditPath) > 0 {
		sealParams.AuditPath = params.AuditPath
	}

	var reg *registry.Registry
	if params.Registry != "" {
		if len(params.AuditPath) > 0 {
			return cli.Validation("--audit-path and --registry are mutually exclusive")
		}
		reg, err = registry.Load(params.Registry)
		if err != nil {
			return cli.Internal("%v", err)
		}
		frameID := artifactdef.StringField(frameTemplate, "frame_id")
		sealParams.AuditPathFunc = func(manifestHash, frameHash string) ([]string, error) {
			return reg.CandidatePath(registry.Entry{
				FrameID:      frameID,
				ManifestHash: manifestHash,
				FrameHash:    frameHash,
			})
		}
	}

	result, err := seal.Seal(sealParams)
	if err != nil {
		reportFail(fmt.Sprintf("seal: %v", err))
		return &cli.ExitError{Code: 1}
	}

	if reg != nil {
		entry := registry.Entry{
			FrameID:      artifactdef.StringField(result.Frame, "frame_id"),
			ManifestHash: result.ManifestHash,
			FrameHash:    result.FrameHash,
			SealedAt:     artifactdef.NestedString(result.Frame, "anti_replay", "timestamp"),
		}
		if err := reg.Add(entry); err != nil {
			return cli.Conflict("registering frame: %w", err)
		}
		if err := reg.Save(params.Registry); err != nil {
			return cli.Internal("saving registry: %w", err)
		}
	}

	if done, err := params.EmitJSON(map[string]any{
		"frame_id":      artifactdef.StringField(result.Frame, "frame_id"),
		"manifest_hash": result.ManifestHash,
		"frame_hash":    result.FrameHash,
		"root":          result.Root,
		"artifacts":     []string{result.FramePath, result.AnchorPath, result.BindingPath},
	}); done {
		return err
	}

	reportPass(fmt.Sprintf("sealed %s", artifactdef.StringField(result.Frame, "frame_id")))
	reportLine("manifest", result.ManifestHash)
	reportLine("frame", result.FrameHash)
	reportLine("root", result.Root)
	reportLine("artifacts", outputDir)
	return nil
}

// loadSignerSets reads the signer secret files and merges them into
// one sealing set. Each file may be a full set, a keygen output, or
// an age-encrypted wrapper ({"sealed": "<ciphertext>"}) around
// either.
func loadSignerSets(paths []string, identityFile, passphraseFile string, promptPassphrase bool) (*artifactdef.SignerSet, error) {
	sets := make([]*artifactdef.SignerSet, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, cli.Validation("reading %s: %w", path, err)
		}

		var wrapper struct {
			Sealed string `json:"sealed"`
		}
		if err := json.Unmarshal(data, &wrapper); err == nil && wrapper.Sealed != "" {
			plaintext, err := decryptSealed(wrapper.Sealed, identityFile, passphraseFile, promptPassphrase)
			if err != nil {
				return nil, err
			}
			data = plaintext
		}

		set, err := artifactdef.ParsePartialSignerSet(data)
		if err != nil {
			return nil, cli.Validation("%s: %w", path, err)
		}
		sets = append(sets, set)
	}

	merged, err := artifactdef.MergeSignerSets(sets...)
	if err != nil {
		return nil, cli.Validation("%w", err)
	}
	return merged, nil
}

func decryptSealed(ciphertext, identityFile, passphraseFile string, promptPassphrase bool) ([]byte, error) {
	switch {
	case identityFile != "":
		keyData, err := os.ReadFile(identityFile)
		if err != nil {
			return nil, cli.Validation("reading %s: %w", identityFile, err)
		}
		plaintext, err := sealed.Decrypt(ciphertext, strings.TrimSpace(string(keyData)))
		if err != nil {
			return nil, cli.Validation("decrypting signer set: %w", err)
		}
		return plaintext, nil

	case passphraseFile != "":
		passphrase, err := sealed.ReadPassphraseFile(passphraseFile)
		if err != nil {
			return nil, cli.Validation("%v", err)
		}
		plaintext, err := sealed.DecryptWithPassphrase(ciphertext, passphrase)
		if err != nil {
			return nil, cli.Validation("decrypting signer set: %w", err)
		}
		return plaintext, nil

	case promptPassphrase:
		passphrase, err := sealed.ReadPassphrase(false)
		if err != nil {
			return nil, cli.Validation("%v", err)
		}
		plaintext, err := sealed.DecryptWithPassphrase(ciphertext, passphrase)
		if err != nil {
			return nil, cli.Validation("decrypting signer set: %w", err)
		}
		return plaintext, nil

	default:
		return nil, cli.Validation("signer set is encrypted: pass --identity, --passphrase-file, or --passphrase")
	}
}
