// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package seal

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/capsule-foundation/capsule/lib/artifactdef"
	"github.com/capsule-foundation/capsule/lib/canonical"
	"github.com/capsule-foundation/capsule/lib/clock"
	"github.com/capsule-foundation/capsule/lib/merkle"
	"github.com/capsule-foundation/capsule/lib/testutil"
)

var sealInstant = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func sealFixture(t *testing.T, fixture *testutil.Fixture) (*Result, error) {
	t.Helper()
	return Seal(Params{
		Manifest:        fixture.Manifest,
		FrameTemplate:   fixture.FrameTemplate,
		AnchorTemplate:  fixture.AnchorTemplate,
		BindingTemplate: fixture.BindingTemplate,
		Signers:         fixture.Signers,
		Roster:          fixture.Roster,
		OutputDir:       t.TempDir(),
		Clock:           clock.Fake(sealInstant),
	})
}

func TestSealRoundTrip(t *testing.T) {
	fixture := testutil.NewFixture(t, 2, "node::b", "node::a", "node::c")
	result, err := sealFixture(t, fixture)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	signers, err := artifactdef.FrameSigners(result.Frame)
	if err != nil {
		t.Fatalf("FrameSigners: %v", err)
	}
	wantOrder := []string{"node::a", "node::b", "node::c"}
	for index, signer := range signers {
		if signer.NodeID != wantOrder[index] {
			t.Errorf("signers[%d] = %s, want %s", index, signer.NodeID, wantOrder[index])
		}
		if signer.Signature == "" {
			t.Errorf("signers[%d] has no signature", index)
		}
	}

	if result.Frame["status"] != artifactdef.StatusSealed {
		t.Errorf("status = %v", result.Frame["status"])
	}

	for _, path := range []string{result.FramePath, result.AnchorPath, result.BindingPath} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("artifact not written: %v", err)
		}
	}
}

func TestSealAnchorRoot(t *testing.T) {
	fixture := testutil.NewFixture(t, 2, "node::a", "node::b", "node::c")
	result, err := sealFixture(t, fixture)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	manifestHash, err := canonical.HashOf(fixture.Manifest)
	if err != nil {
		t.Fatalf("HashOf: %v", err)
	}
	if result.ManifestHash != manifestHash {
		t.Errorf("manifest hash = %s, want %s", result.ManifestHash, manifestHash)
	}

	wantRoot, err := merkle.ComputeRoot(manifestHash, result.FrameHash, nil)
	if err != nil {
		t.Fatalf("ComputeRoot: %v", err)
	}
	if got := result.Anchor["root"]; got != wantRoot {
		t.Errorf("anchor root = %v, want %s", got, wantRoot)
	}
	if got := result.Binding["auth_scope"]; got != "scope::fixture" {
		t.Errorf("binding auth_scope = %v", got)
	}
}

func TestSealWithAuditPath(t *testing.T) {
	fixture := testutil.NewFixture(t, 1, "node::a")
	extra, err := canonical.HashOf(map[string]any{"other": "entry"})
	if err != nil {
		t.Fatalf("HashOf: %v", err)
	}

	result, err := Seal(Params{
		Manifest:        fixture.Manifest,
		FrameTemplate:   fixture.FrameTemplate,
		AnchorTemplate:  fixture.AnchorTemplate,
		BindingTemplate: fixture.BindingTemplate,
		Signers:         fixture.Signers,
		Roster:          fixture.Roster,
		AuditPath:       []string{extra},
		OutputDir:       t.TempDir(),
		Clock:           clock.Fake(sealInstant),
	})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	wantRoot, err := merkle.ComputeRoot(result.ManifestHash, result.FrameHash, []string{extra})
	if err != nil {
		t.Fatalf("ComputeRoot: %v", err)
	}
	if got := result.Anchor["root"]; got != wantRoot {
		t.Errorf("anchor root = %v, want %s", got, wantRoot)
	}
}

func TestSealRejectsAttesterAsSigner(t *testing.T) {
	fixture := testutil.NewFixture(t, 2, "node::a", "node::b")
	signers := fixture.FrameTemplate["signers"].([]any)
	fixture.FrameTemplate["signers"] = append(signers, map[string]any{
		"node_id":         fixture.Signers.Attester.NodeID,
		"key_fingerprint": fixture.Signers.Attester.KeyFingerprint,
		"signature":       "",
	})
	fixture.FrameTemplate["quorum"].(map[string]any)["total"] = float64(3)

	outputDir := t.TempDir()
	_, err := Seal(Params{
		Manifest:        fixture.Manifest,
		FrameTemplate:   fixture.FrameTemplate,
		AnchorTemplate:  fixture.AnchorTemplate,
		BindingTemplate: fixture.BindingTemplate,
		Signers:         fixture.Signers,
		Roster:          fixture.Roster,
		OutputDir:       outputDir,
		Clock:           clock.Fake(sealInstant),
	})
	if err == nil || !strings.Contains(err.Error(), artifactdef.AttesterRole) {
		t.Fatalf("Seal error = %v, want rejection naming %s", err, artifactdef.AttesterRole)
	}

	entries, readErr := os.ReadDir(outputDir)
	if readErr != nil {
		t.Fatalf("ReadDir: %v", readErr)
	}
	if len(entries) != 0 {
		t.Errorf("output directory has %d entries, want none", len(entries))
	}
}

func TestSealFingerprintMismatchWritesNothing(t *testing.T) {
	fixture := testutil.NewFixture(t, 2, "node::a", "node::b", "node::c")
	// Replace one signer's key material so its fingerprint disagrees
	// with the roster.
	_, rogue := testutil.GenerateSigner(t, "node::b")
	for index, secret := range fixture.Signers.Signers {
		if secret.NodeID == "node::b" {
			fixture.Signers.Signers[index] = rogue
		}
	}

	outputDir := t.TempDir()
	_, err := Seal(Params{
		Manifest:        fixture.Manifest,
		FrameTemplate:   fixture.FrameTemplate,
		AnchorTemplate:  fixture.AnchorTemplate,
		BindingTemplate: fixture.BindingTemplate,
		Signers:         fixture.Signers,
		Roster:          fixture.Roster,
		OutputDir:       outputDir,
		Clock:           clock.Fake(sealInstant),
	})
	var mismatch *artifactdef.FingerprintMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Seal error = %v, want FingerprintMismatchError", err)
	}

	entries, readErr := os.ReadDir(outputDir)
	if readErr != nil {
		t.Fatalf("ReadDir: %v", readErr)
	}
	if len(entries) != 0 {
		t.Errorf("output directory has %d entries, want none", len(entries))
	}
}

func TestSealMissingSecret(t *testing.T) {
	fixture := testutil.NewFixture(t, 2, "node::a", "node::b", "node::c")
	fixture.Signers.Signers = fixture.Signers.Signers[:2]

	_, err := sealFixture(t, fixture)
	var missing *artifactdef.MissingEntryError
	if !errors.As(err, &missing) {
		t.Fatalf("Seal error = %v, want MissingEntryError", err)
	}
	if missing.NodeID != "node::c" {
		t.Errorf("missing entry names %s, want node::c", missing.NodeID)
	}
}

func TestSealQuorumInvariant(t *testing.T) {
	fixture := testutil.NewFixture(t, 2, "node::a", "node::b")
	fixture.FrameTemplate["quorum"] = map[string]any{
		"required": float64(3),
		"total":    float64(2),
	}
	if _, err := sealFixture(t, fixture); err == nil {
		t.Fatal("expected error for required > total")
	}
}

func TestSealDoesNotMutateTemplates(t *testing.T) {
	fixture := testutil.NewFixture(t, 1, "node::a")
	before, err := canonical.HashOf(fixture.FrameTemplate)
	if err != nil {
		t.Fatalf("HashOf: %v", err)
	}
	if _, err := sealFixture(t, fixture); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	after, err := canonical.HashOf(fixture.FrameTemplate)
	if err != nil {
		t.Fatalf("HashOf: %v", err)
	}
	if before != after {
		t.Error("frame template mutated by sealing")
	}
}

func TestSealFreshNonces(t *testing.T) {
	fixture := testutil.NewFixture(t, 1, "node::a")
	first, err := sealFixture(t, fixture)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	second, err := sealFixture(t, fixture)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	firstNonce := artifactdef.NestedString(first.Frame, "anti_replay", "nonce")
	secondNonce := artifactdef.NestedString(second.Frame, "anti_replay", "nonce")
	if firstNonce == "" || firstNonce == secondNonce {
		t.Errorf("nonces not fresh: %q, %q", firstNonce, secondNonce)
	}
}
