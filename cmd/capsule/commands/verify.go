// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/capsule-foundation/capsule/cmd/capsule/cli"
	"github.com/capsule-foundation/capsule/lib/artifactdef"
	"github.com/capsule-foundation/capsule/lib/verify"
)

type verifyParams struct {
	cli.JSONOutput
	Now    string `flag:"now" desc:"verification instant, RFC 3339 UTC (operator-only, for historical audits)"`
	Parent string `flag:"parent" desc:"expected parent lineage identifier"`
}

func verifyCommand() *cli.Command {
	var params verifyParams
	return &cli.Command{
		Name:    "verify",
		Summary: "verify a sealed artifact set against a roster and manifest",
		Description: "Verify re-derives every value the sealer produced: schema shape,\n" +
			"quorum arithmetic, the manifest hash, each signature against the\n" +
			"roster's keys, the attester counter-signature, the Merkle root, the\n" +
			"replay binding, lineage, and the replay window. The first violated\n" +
			"gate aborts with its reason.",
		Usage: "capsule verify [flags] <attestation> <anchor> <replay_binding> <roster> <manifest>",
		Examples: []cli.Example{
			{
				Description: "verify a sealed set",
				Command:     "capsule verify out/attestation.json out/anchor.json out/replay_binding.json roster.json manifest.json",
			},
			{
				Description: "audit a historical artifact outside its replay window",
				Command:     "capsule verify --now 2026-08-30T12:00:00Z out/attestation.json out/anchor.json out/replay_binding.json roster.json manifest.json",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("verify", &params)
		},
		Run: func(args []string) error {
			return runVerify(&params, args)
		},
	}
}

func runVerify(params *verifyParams, args []string) error {
	if len(args) != 5 {
		return cli.Validation("expected 5 arguments: <attestation> <anchor> <replay_binding> <roster> <manifest>, got %d", len(args))
	}

	inputs, err := readArtifactSet(args[0], args[1], args[2], args[3], args[4])
	if err != nil {
		return err
	}

	options := verify.Options{ExpectedParent: params.Parent}
	if params.Now != "" {
		instant, err := time.Parse(time.RFC3339, params.Now)
		if err != nil {
			return cli.Validation("parsing --now: %v", err)
		}
		instant = instant.UTC()
		options.Now = &instant
	}

	err = verify.Verify(inputs, options)
	if err == nil {
		if done, jsonErr := params.EmitJSON(map[string]any{"status": "pass"}); done {
			return jsonErr
		}
		reportPass(fmt.Sprintf("verified %s", artifactdef.StringField(inputs.Frame, "frame_id")))
		return nil
	}

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

// readArtifactSet loads the five verification inputs from disk.
func readArtifactSet(framePath, anchorPath, bindingPath, rosterPath, manifestPath string) (verify.Inputs, error) {
	frame, err := artifactdef.ReadDocument(framePath)
	if err != nil {
		return verify.Inputs{}, cli.Validation("%v", err)
	}
	anchor, err := artifactdef.ReadDocument(anchorPath)
	if err != nil {
		return verify.Inputs{}, cli.Validation("%v", err)
	}
	binding, err := artifactdef.ReadDocument(bindingPath)
	if err != nil {
		return verify.Inputs{}, cli.Validation("%v", err)
	}
	roster, err := artifactdef.ReadRoster(rosterPath)
	if err != nil {
		return verify.Inputs{}, cli.Validation("%v", err)
	}
	manifest, err := artifactdef.ReadDocument(manifestPath)
	if err != nil {
		return verify.Inputs{}, cli.Validation("%v", err)
	}
	return verify.Inputs{
		Frame:    frame,
		Anchor:   anchor,
		Binding:  binding,
		Roster:   roster,
		Manifest: manifest,
	}, nil
}
