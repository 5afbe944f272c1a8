// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/pflag"

	"github.com/capsule-foundation/capsule/cmd/capsule/cli"
	"github.com/capsule-foundation/capsule/lib/artifactdef"
	"github.com/capsule-foundation/capsule/lib/verify"
)

type broadcastParams struct {
	cli.JSONOutput
	Endpoint string `flag:"endpoint" desc:"anchor submission endpoint URL"`
	Timeout  int    `flag:"timeout" desc:"request timeout in seconds"`
	Parent   string `flag:"parent" desc:"expected parent lineage identifier"`
	Config   string `flag:"config" desc:"config file path"`
}

func broadcastCommand() *cli.Command {
	var params broadcastParams
	return &cli.Command{
		Name:    "broadcast",
		Summary: "submit a verified anchor to a registry endpoint",
		Description: "Broadcast re-verifies a sealed artifact set locally, then POSTs\n" +
			"the anchor document to the endpoint. Nothing is transmitted if\n" +
			"verification fails.",
		Usage: "capsule broadcast [flags] <attestation> <anchor> <replay_binding> <roster> <manifest>",
		Examples: []cli.Example{
			{
				Description: "publish a sealed anchor",
				Command:     "capsule broadcast --endpoint https://registry.example/anchors out/attestation.json out/anchor.json out/replay_binding.json roster.json manifest.json",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("broadcast", &params)
		},
		Run: func(args []string) error {
			return runBroadcast(&params, args)
		},
	}
}

func runBroadcast(params *broadcastParams, args []string) error {
	if len(args) != 5 {
		return cli.Validation("expected 5 arguments: <attestation> <anchor> <replay_binding> <roster> <manifest>, got %d", len(args))
	}

	cfg, err := loadConfig(params.Config)
	if err != nil {
		return cli.Internal("loading config: %w", err)
	}
	endpoint := params.Endpoint
	if endpoint == "" {
		endpoint = cfg.Broadcast.Endpoint
	}
	if endpoint == "" {
		return cli.Validation("--endpoint is required")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = cfg.Broadcast.TimeoutSeconds
	}

	inputs, err := readArtifactSet(args[0], args[1], args[2], args[3], args[4])
	if err != nil {
		return err
	}
	if err := verify.Verify(inputs, verify.Options{ExpectedParent: params.Parent}); err != nil {
		if violation, ok := verify.AsViolation(err); ok {
			reportFail(string(violation.Code))
			reportLine("detail", violation.Detail)
			return &cli.ExitError{Code: 1}
		}
		return cli.Internal("%v", err)
	}

	body, err := json.Marshal(inputs.Anchor)
	if err != nil {
		return cli.Internal("encoding anchor: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return cli.Validation("building request: %v", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := http.DefaultClient.Do(request)
	if err != nil {
		return cli.Transient("submitting anchor: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode < 200 || response.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return cli.Transient("endpoint returned %s: %s", response.Status, bytes.TrimSpace(detail))
	}

	frameID := artifactdef.StringField(inputs.Frame, "frame_id")
	if done, err := params.EmitJSON(map[string]any{
		"frame_id": frameID,
		"endpoint": endpoint,
		"status":   response.Status,
	}); done {
		return err
	}
	reportPass(fmt.Sprintf("broadcast %s to %s", frameID, endpoint))
	return nil
}
