// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package verify_test

import (
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/capsule-foundation/capsule/lib/artifactdef"
	"github.com/capsule-foundation/capsule/lib/canonical"
	"github.com/capsule-foundation/capsule/lib/clock"
	"github.com/capsule-foundation/capsule/lib/keycodec"
	"github.com/capsule-foundation/capsule/lib/merkle"
	"github.com/capsule-foundation/capsule/lib/seal"
	"github.com/capsule-foundation/capsule/lib/testutil"
	"github.com/capsule-foundation/capsule/lib/verify"
)

var sealInstant = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

// sealed artifacts for a fixture, produced through the sealer.
func sealedInputs(t *testing.T, fixture *testutil.Fixture) verify.Inputs {
	t.Helper()
	result, err := seal.Seal(seal.Params{
		Manifest:        fixture.Manifest,
		FrameTemplate:   fixture.FrameTemplate,
		AnchorTemplate:  fixture.AnchorTemplate,
		BindingTemplate: fixture.BindingTemplate,
		Signers:         fixture.Signers,
		Roster:          fixture.Roster,
		OutputDir:       t.TempDir(),
		Clock:           clock.Fake(sealInstant),
	})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	return verify.Inputs{
		Frame:    result.Frame,
		Anchor:   result.Anchor,
		Binding:  result.Binding,
		Roster:   fixture.Roster,
		Manifest: fixture.Manifest,
	}
}

func verifyAt(inputs verify.Inputs, now time.Time) error {
	return verify.Verify(inputs, verify.Options{Now: &now})
}

func wantViolation(t *testing.T, err error, code verify.Code) *verify.Violation {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s violation, got success", code)
	}
	violation, ok := verify.AsViolation(err)
	if !ok {
		t.Fatalf("expected %s violation, got plain error %v", code, err)
	}
	if violation.Code != code {
		t.Fatalf("violation code = %s (%s), want %s", violation.Code, violation.Detail, code)
	}
	return violation
}

func TestVerifyRoundTrip(t *testing.T) {
	fixture := testutil.NewFixture(t, 2, "node::a", "node::b", "node::c")
	inputs := sealedInputs(t, fixture)
	if err := verifyAt(inputs, sealInstant); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestTamperedSignatureNamesSigner(t *testing.T) {
	fixture := testutil.NewFixture(t, 2, "node::a", "node::b", "node::c")
	inputs := sealedInputs(t, fixture)

	signers := inputs.Frame["signers"].([]any)
	entry := signers[1].(map[string]any)
	raw, err := keycodec.DecodeSignature(entry["signature"].(string))
	if err != nil {
		t.Fatalf("DecodeSignature: %v", err)
	}
	raw[10] ^= 0x01
	entry["signature"] = keycodec.Encode(raw)

	violation := wantViolation(t, verifyAt(inputs, sealInstant), verify.CodeInvalidSignature)
	if !strings.Contains(violation.Detail, "node::b") {
		t.Errorf("violation does not name node::b: %s", violation.Detail)
	}
}

func TestManifestHashMismatch(t *testing.T) {
	fixture := testutil.NewFixture(t, 1, "node::a")
	inputs := sealedInputs(t, fixture)
	inputs.Manifest = map[string]any{"artifact": "something-else"}
	wantViolation(t, verifyAt(inputs, sealInstant), verify.CodeManifestHashMismatch)
}

func TestUnsortedSignersRejected(t *testing.T) {
	fixture := testutil.NewFixture(t, 2, "node::a", "node::b", "node::c")
	inputs := sealedInputs(t, fixture)
	signers := inputs.Frame["signers"].([]any)
	signers[0], signers[2] = signers[2], signers[0]
	wantViolation(t, verifyAt(inputs, sealInstant), verify.CodeInvariant)
}

func TestAttesterListedAsSignerRejected(t *testing.T) {
	fixture := testutil.NewFixture(t, 2, "node::a", "node::b", "node::c")
	inputs := sealedInputs(t, fixture)

	// Smuggle the counter-signing witness into the signer list so its
	// signature could count toward quorum. Sorted position is first
	// ("attester::" < "node::"); total tracks the longer list.
	attester := inputs.Frame["attester"].(map[string]any)
	signers := inputs.Frame["signers"].([]any)
	inputs.Frame["signers"] = append([]any{map[string]any{
		"node_id":         artifactdef.AttesterRole,
		"key_fingerprint": attester["key_fingerprint"],
		"signature":       "",
	}}, signers...)
	inputs.Frame["quorum"].(map[string]any)["total"] = float64(4)

	violation := wantViolation(t, verifyAt(inputs, sealInstant), verify.CodeInvariant)
	if !strings.Contains(violation.Detail, artifactdef.AttesterRole) {
		t.Errorf("violation does not name the attester role: %s", violation.Detail)
	}
}

func TestMissingRosterEntry(t *testing.T) {
	fixture := testutil.NewFixture(t, 2, "node::a", "node::b", "node::c")
	inputs := sealedInputs(t, fixture)

	trimmed := &artifactdef.Roster{}
	for _, entry := range fixture.Roster.Keys {
		if entry.NodeID != "node::c" {
			trimmed.Keys = append(trimmed.Keys, entry)
		}
	}
	inputs.Roster = trimmed
	violation := wantViolation(t, verifyAt(inputs, sealInstant), verify.CodeMissingEntry)
	if !strings.Contains(violation.Detail, "node::c") {
		t.Errorf("violation does not name node::c: %s", violation.Detail)
	}
}

func TestSubstitutedFingerprintRejected(t *testing.T) {
	fixture := testutil.NewFixture(t, 2, "node::a", "node::b", "node::c")
	inputs := sealedInputs(t, fixture)

	_, rogueSecret := testutil.GenerateSigner(t, "node::a")
	entry := inputs.Frame["signers"].([]any)[0].(map[string]any)
	entry["key_fingerprint"] = rogueSecret.KeyFingerprint
	wantViolation(t, verifyAt(inputs, sealInstant), verify.CodeFingerprintMismatch)
}

func TestTamperedAnchorRoot(t *testing.T) {
	fixture := testutil.NewFixture(t, 1, "node::a")
	inputs := sealedInputs(t, fixture)

	root := inputs.Anchor["root"].(string)
	tampered := []byte(root)
	last := tampered[len(tampered)-1]
	if last == '0' {
		tampered[len(tampered)-1] = '1'
	} else {
		tampered[len(tampered)-1] = '0'
	}
	inputs.Anchor["root"] = string(tampered)
	wantViolation(t, verifyAt(inputs, sealInstant), verify.CodeMerkleMismatch)
}

func TestBindingMismatch(t *testing.T) {
	fixture := testutil.NewFixture(t, 1, "node::a")
	inputs := sealedInputs(t, fixture)
	inputs.Binding["nonce"] = keycodec.Encode(make([]byte, artifactdef.NonceLength))
	wantViolation(t, verifyAt(inputs, sealInstant), verify.CodeBindingMismatch)
}

func TestLineageMismatch(t *testing.T) {
	fixture := testutil.NewFixture(t, 1, "node::a")
	inputs := sealedInputs(t, fixture)
	now := sealInstant
	err := verify.Verify(inputs, verify.Options{
		Now:            &now,
		ExpectedParent: "lineage::somewhere-else",
	})
	wantViolation(t, err, verify.CodeLineageMismatch)
}

func TestReplayWindowInclusiveBoundary(t *testing.T) {
	fixture := testutil.NewFixture(t, 1, "node::a")
	inputs := sealedInputs(t, fixture)

	if err := verifyAt(inputs, sealInstant.Add(300*time.Second)); err != nil {
		t.Errorf("verify at T+300s: %v, want success (inclusive boundary)", err)
	}
	wantViolation(t, verifyAt(inputs, sealInstant.Add(301*time.Second)), verify.CodeReplayWindow)
	if err := verifyAt(inputs, sealInstant.Add(-300*time.Second)); err != nil {
		t.Errorf("verify at T-300s: %v, want success (window is symmetric)", err)
	}
}

func TestTamperedClockSourceRejected(t *testing.T) {
	fixture := testutil.NewFixture(t, 1, "node::a")
	inputs := sealedInputs(t, fixture)
	inputs.Anchor["clock_source"] = "ntp::stratum-9"
	if err := verifyAt(inputs, sealInstant); err == nil {
		t.Fatal("expected failure for tampered clock source")
	}
}

// buildFrameWithAbstentions assembles the artifact set by hand, signing
// only the named signers and leaving the rest as abstentions. This
// exercises the verifier without going through the sealer, which always
// signs for every signer.
func buildFrameWithAbstentions(t *testing.T, fixture *testutil.Fixture, signing map[string]bool) verify.Inputs {
	t.Helper()

	manifestHash, err := canonical.HashOf(fixture.Manifest)
	if err != nil {
		t.Fatalf("HashOf(manifest): %v", err)
	}

	secrets, err := fixture.Signers.SecretMap()
	if err != nil {
		t.Fatalf("SecretMap: %v", err)
	}
	attester, err := fixture.Signers.AttesterSecret()
	if err != nil {
		t.Fatalf("AttesterSecret: %v", err)
	}

	timestamp := sealInstant.UTC().Format("2006-01-02T15:04:05Z")
	nonce := keycodec.Encode(make([]byte, artifactdef.NonceLength))

	frame := map[string]any{
		"frame_id":      fixture.FrameTemplate["frame_id"],
		"capsule_id":    fixture.FrameTemplate["capsule_id"],
		"manifest_hash": manifestHash,
		"quorum":        fixture.FrameTemplate["quorum"],
		"bindings":      fixture.FrameTemplate["bindings"],
		"anti_replay": map[string]any{
			"nonce":           nonce,
			"timestamp":       timestamp,
			"replay_window_s": float64(300),
		},
		"status": artifactdef.StatusSealed,
	}

	nodeIDs := make([]string, 0, len(secrets))
	for nodeID := range secrets {
		nodeIDs = append(nodeIDs, nodeID)
	}
	sort.Strings(nodeIDs)

	entries := make([]any, 0, len(nodeIDs))
	for _, nodeID := range nodeIDs {
		entries = append(entries, map[string]any{
			"node_id":         nodeID,
			"key_fingerprint": secrets[nodeID].Fingerprint,
			"signature":       "",
		})
	}
	frame["signers"] = entries

	for _, element := range entries {
		entry := element.(map[string]any)
		nodeID := entry["node_id"].(string)
		if !signing[nodeID] {
			continue
		}
		preimage, err := canonical.Canonicalize(
			artifactdef.SignerPreimage(frame, nodeID, secrets[nodeID].Fingerprint))
		if err != nil {
			t.Fatalf("Canonicalize: %v", err)
		}
		signature, err := keycodec.Sign(preimage, secrets[nodeID].PrivateKey)
		if err != nil {
			t.Fatalf("Sign: %v", err)
		}
		entry["signature"] = keycodec.Encode(signature)
	}

	counterDocument, err := artifactdef.CounterPreimage(frame, attester.Fingerprint)
	if err != nil {
		t.Fatalf("CounterPreimage: %v", err)
	}
	counterPreimage, err := canonical.Canonicalize(counterDocument)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	counterSignature, err := keycodec.Sign(counterPreimage, attester.PrivateKey)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	frame["attester"] = map[string]any{
		"role":              artifactdef.AttesterRole,
		"key_fingerprint":   attester.Fingerprint,
		"counter_signature": keycodec.Encode(counterSignature),
	}

	frameHash, err := canonical.HashOf(frame)
	if err != nil {
		t.Fatalf("HashOf(frame): %v", err)
	}
	root, err := merkle.ComputeRoot(manifestHash, frameHash, nil)
	if err != nil {
		t.Fatalf("ComputeRoot: %v", err)
	}

	anchor := map[string]any{
		"leaf":         manifestHash,
		"sibling":      frameHash,
		"path":         []any{},
		"root":         root,
		"timestamp":    timestamp,
		"clock_source": artifactdef.ClockSourceTag,
	}
	binding := map[string]any{
		"manifest_hash":    manifestHash,
		"attestation_hash": frameHash,
		"nonce":            nonce,
		"timestamp":        timestamp,
		"replay_window_s":  float64(300),
		"auth_scope":       "scope::fixture",
		"clock_source":     artifactdef.ClockSourceTag,
	}

	return verify.Inputs{
		Frame:    frame,
		Anchor:   anchor,
		Binding:  binding,
		Roster:   fixture.Roster,
		Manifest: fixture.Manifest,
	}
}

func TestQuorumBoundary(t *testing.T) {
	fixture := testutil.NewFixture(t, 2, "node::a", "node::b", "node::c")

	// Exactly the required number of valid signatures passes.
	twoOfThree := buildFrameWithAbstentions(t, fixture,
		map[string]bool{"node::a": true, "node::c": true})
	if err := verifyAt(twoOfThree, sealInstant); err != nil {
		t.Errorf("2 of 3 with required 2: %v, want success", err)
	}

	// One below the threshold fails with the quorum code, not a
	// signature error: abstentions are skipped, not invalid.
	oneOfThree := buildFrameWithAbstentions(t, fixture,
		map[string]bool{"node::b": true})
	wantViolation(t, verifyAt(oneOfThree, sealInstant), verify.CodeQuorumNotMet)
}

func TestVerifierIndependentOfSealer(t *testing.T) {
	// A frame assembled entirely by hand must pass the verifier when
	// all signatures are present.
	fixture := testutil.NewFixture(t, 2, "node::a", "node::b", "node::c")
	inputs := buildFrameWithAbstentions(t, fixture,
		map[string]bool{"node::a": true, "node::b": true, "node::c": true})
	if err := verifyAt(inputs, sealInstant); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}
