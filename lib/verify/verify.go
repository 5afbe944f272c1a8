// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package verify

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/capsule-foundation/capsule/lib/artifactdef"
	"github.com/capsule-foundation/capsule/lib/canonical"
	"github.com/capsule-foundation/capsule/lib/clock"
	"github.com/capsule-foundation/capsule/lib/keycodec"
	"github.com/capsule-foundation/capsule/lib/merkle"
	"github.com/capsule-foundation/capsule/lib/schema"
)

// Code tags a violation with the contract gate that rejected the
// artifact set. Codes are stable wire values for machine consumers.
type Code string

const (
	CodeSchema               Code = "schema"
	CodeInvariant            Code = "invariant"
	CodeFingerprintMismatch  Code = "fingerprint_mismatch"
	CodeMissingEntry         Code = "missing_entry"
	CodeManifestHashMismatch Code = "manifest_hash_mismatch"
	CodeInvalidSignature     Code = "invalid_signature"
	CodeQuorumNotMet         Code = "quorum_not_met"
	CodeMerkleMismatch       Code = "merkle_mismatch"
	CodeBindingMismatch      Code = "binding_mismatch"
	CodeLineageMismatch      Code = "lineage_mismatch"
	CodeReplayWindow         Code = "replay_window"
	CodeClockSource          Code = "clock_source"
)

// Violation is the first gate failure encountered during
// verification. Verification never aggregates: one violation, one
// reason, nothing after it is evaluated.
type Violation struct {
	Code   Code
	Detail string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Code, v.Detail)
}

func violationf(code Code, format string, args ...any) *Violation {
	return &Violation{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// AsViolation unwraps err into a *Violation when verification
// produced one.
func AsViolation(err error) (*Violation, bool) {
	var violation *Violation
	if errors.As(err, &violation) {
		return violation, true
	}
	return nil, false
}

// Inputs is the artifact set under verification plus the two trusted
// references: the roster (trust anchor for keys) and the manifest
// (source of the expected manifest hash).
type Inputs struct {
	Frame    map[string]any
	Anchor   map[string]any
	Binding  map[string]any
	Roster   *artifactdef.Roster
	Manifest any
}

// Options carries the verification knobs.
type Options struct {
	// Clock supplies wall time for the replay-window gate. Nil means
	// the real clock.
	Clock clock.Clock

	// Now, when set, replaces the clock entirely. This is an
	// operator-only affordance for auditing historical artifacts
	// outside their original window; keep it out of automated
	// verification paths.
	Now *time.Time

	// ExpectedParent is the parent lineage identifier the frame's
	// bindings must reference. Empty means the default lineage.
	ExpectedParent string
}

// Verify runs every gate over the artifact set. A nil return means
// the set passed all gates; otherwise the error is a *Violation for
// contract failures, or a plain error for unusable inputs.
func Verify(inputs Inputs, options Options) error {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.ExpectedParent == "" {
		options.ExpectedParent = artifactdef.DefaultParentLineage
	}

	// Gate 1: structural validation of all three artifacts.
	if issues := schema.Validate(inputs.Frame, schema.Frame()); len(issues) > 0 {
		return violationf(CodeSchema, "frame: %s", strings.Join(issues, "; "))
	}
	if issues := schema.Validate(inputs.Anchor, schema.Anchor()); len(issues) > 0 {
		return violationf(CodeSchema, "anchor: %s", strings.Join(issues, "; "))
	}
	if issues := schema.Validate(inputs.Binding, schema.Binding()); len(issues) > 0 {
		return violationf(CodeSchema, "binding: %s", strings.Join(issues, "; "))
	}

	// Gate 2: quorum arithmetic and signer list shape.
	required, total, err := artifactdef.Quorum(inputs.Frame)
	if err != nil {
		return violationf(CodeInvariant, "%v", err)
	}
	if required > total {
		return violationf(CodeInvariant, "quorum required %d exceeds total %d", required, total)
	}
	signers, err := artifactdef.FrameSigners(inputs.Frame)
	if err != nil {
		return violationf(CodeInvariant, "%v", err)
	}
	if len(signers) != total {
		return violationf(CodeInvariant, "frame has %d signers, quorum total is %d", len(signers), total)
	}
	for index := 1; index < len(signers); index++ {
		if signers[index-1].NodeID >= signers[index].NodeID {
			return violationf(CodeInvariant, "signers not strictly sorted: %q before %q",
				signers[index-1].NodeID, signers[index].NodeID)
		}
	}
	// The counter-signing witness is a distinguished role; letting it
	// also sit in signers would let its signature count toward its own
	// quorum.
	for _, signer := range signers {
		if signer.NodeID == artifactdef.AttesterRole {
			return violationf(CodeInvariant, "%s is the counter-signing role and cannot be a quorum signer",
				artifactdef.AttesterRole)
		}
	}

	// Gate 3: the supplied manifest hashes to the frame's claim.
	manifestHash, err := canonical.HashOf(inputs.Manifest)
	if err != nil {
		return fmt.Errorf("hashing manifest: %w", err)
	}
	frameManifestHash := artifactdef.StringField(inputs.Frame, "manifest_hash")
	if manifestHash != frameManifestHash {
		return violationf(CodeManifestHashMismatch, "manifest hashes to %s, frame claims %s",
			manifestHash, frameManifestHash)
	}

	// Gate 4: per-signer signature verification against roster keys,
	// in the frame's (sorted) order, aborting on the first invalid
	// signature. Empty signatures are abstentions.
	rosterKeys, err := inputs.Roster.KeyMap()
	if err != nil {
		return rosterViolation(err)
	}
	validSignatures := 0
	for _, signer := range signers {
		rosterKey, ok := rosterKeys[signer.NodeID]
		if !ok {
			return violationf(CodeMissingEntry, "no roster entry for signer %s", signer.NodeID)
		}
		if signer.KeyFingerprint != rosterKey.Fingerprint {
			return violationf(CodeFingerprintMismatch, "signer %s: frame declares %s, roster key derives %s",
				signer.NodeID, signer.KeyFingerprint, rosterKey.Fingerprint)
		}
		if signer.Signature == "" {
			continue
		}
		signature, err := keycodec.DecodeSignature(signer.Signature)
		if err != nil {
			return violationf(CodeInvalidSignature, "signer %s: %v", signer.NodeID, err)
		}
		preimage, err := canonical.Canonicalize(
			artifactdef.SignerPreimage(inputs.Frame, signer.NodeID, signer.KeyFingerprint))
		if err != nil {
			return fmt.Errorf("building preimage for %s: %w", signer.NodeID, err)
		}
		if !keycodec.Verify(preimage, signature, rosterKey.PublicKey) {
			return violationf(CodeInvalidSignature, "signature of %s does not verify", signer.NodeID)
		}
		validSignatures++
	}

	// Gate 5: quorum threshold.
	if validSignatures < required {
		return violationf(CodeQuorumNotMet, "%d valid signatures, quorum requires %d",
			validSignatures, required)
	}

	// Gate 6: attester counter-signature over the assembled signer list.
	attesterKey, ok := rosterKeys[artifactdef.AttesterRole]
	if !ok {
		return violationf(CodeMissingEntry, "no roster entry for %s", artifactdef.AttesterRole)
	}
	frameAttesterFingerprint := artifactdef.NestedString(inputs.Frame, "attester", "key_fingerprint")
	if frameAttesterFingerprint != attesterKey.Fingerprint {
		return violationf(CodeFingerprintMismatch, "attester: frame declares %s, roster key derives %s",
			frameAttesterFingerprint, attesterKey.Fingerprint)
	}
	counterSignature, err := keycodec.DecodeSignature(
		artifactdef.NestedString(inputs.Frame, "attester", "counter_signature"))
	if err != nil {
		return violationf(CodeInvalidSignature, "attester: %v", err)
	}
	counterDocument, err := artifactdef.CounterPreimage(inputs.Frame, attesterKey.Fingerprint)
	if err != nil {
		return violationf(CodeInvariant, "%v", err)
	}
	counterPreimage, err := canonical.Canonicalize(counterDocument)
	if err != nil {
		return fmt.Errorf("building counter-signature preimage: %w", err)
	}
	if !keycodec.Verify(counterPreimage, counterSignature, attesterKey.PublicKey) {
		return violationf(CodeInvalidSignature, "attester counter-signature does not verify")
	}

	// Gate 7: anchor leaf, sibling, and timestamp agree with the frame.
	frameHash, err := canonical.HashOf(inputs.Frame)
	if err != nil {
		return fmt.Errorf("hashing frame: %w", err)
	}
	anchorLeaf := artifactdef.StringField(inputs.Anchor, "leaf")
	if anchorLeaf != frameManifestHash {
		return violationf(CodeMerkleMismatch, "anchor leaf %s does not equal manifest hash %s",
			anchorLeaf, frameManifestHash)
	}
	anchorSibling := artifactdef.StringField(inputs.Anchor, "sibling")
	if anchorSibling != frameHash {
		return violationf(CodeMerkleMismatch, "anchor sibling %s does not equal frame hash %s",
			anchorSibling, frameHash)
	}
	frameTimestamp := artifactdef.NestedString(inputs.Frame, "anti_replay", "timestamp")
	if anchorTimestamp := artifactdef.StringField(inputs.Anchor, "timestamp"); anchorTimestamp != frameTimestamp {
		return violationf(CodeMerkleMismatch, "anchor timestamp %s does not equal frame timestamp %s",
			anchorTimestamp, frameTimestamp)
	}

	// Gate 8: the anchor root is recomputed, never trusted as input.
	path, err := anchorPath(inputs.Anchor)
	if err != nil {
		return violationf(CodeMerkleMismatch, "%v", err)
	}
	root, err := merkle.ComputeRoot(anchorLeaf, anchorSibling, path)
	if err != nil {
		return violationf(CodeMerkleMismatch, "recomputing root: %v", err)
	}
	if claimed := artifactdef.StringField(inputs.Anchor, "root"); claimed != root {
		return violationf(CodeMerkleMismatch, "anchor root %s, recomputed %s", claimed, root)
	}

	// Gate 9: the binding mirrors the frame exactly.
	if err := checkBindingMirror(inputs.Frame, inputs.Binding, frameHash); err != nil {
		return err
	}

	// Gate 10: lineage.
	parent := artifactdef.NestedString(inputs.Frame, "bindings", "parent")
	if parent != options.ExpectedParent {
		return violationf(CodeLineageMismatch, "frame parent %q, expected %q", parent, options.ExpectedParent)
	}

	// Gate 11: replay window, inclusive at the boundary.
	sealedAt, err := time.Parse(schema.TimestampLayout, frameTimestamp)
	if err != nil {
		return violationf(CodeInvariant, "frame timestamp %q: %v", frameTimestamp, err)
	}
	window, ok := artifactdef.AsInt(nestedField(inputs.Frame, "anti_replay", "replay_window_s"))
	if !ok {
		return violationf(CodeInvariant, "frame replay_window_s is not an integer")
	}
	now := options.Clock.Now()
	if options.Now != nil {
		now = *options.Now
	}
	skew := now.Sub(sealedAt)
	if skew < 0 {
		skew = -skew
	}
	if skew > time.Duration(window)*time.Second {
		return violationf(CodeReplayWindow, "sealed at %s, now %s: outside %ds replay window",
			frameTimestamp, now.UTC().Format(schema.TimestampLayout), window)
	}

	// Gate 12: clock source tags.
	if tag := artifactdef.StringField(inputs.Anchor, "clock_source"); tag != artifactdef.ClockSourceTag {
		return violationf(CodeClockSource, "anchor clock_source %q, expected %q", tag, artifactdef.ClockSourceTag)
	}
	if tag := artifactdef.StringField(inputs.Binding, "clock_source"); tag != artifactdef.ClockSourceTag {
		return violationf(CodeClockSource, "binding clock_source %q, expected %q", tag, artifactdef.ClockSourceTag)
	}

	return nil
}

// rosterViolation maps roster construction failures onto the
// violation taxonomy.
func rosterViolation(err error) error {
	var fingerprintMismatch *artifactdef.FingerprintMismatchError
	if errors.As(err, &fingerprintMismatch) {
		return violationf(CodeFingerprintMismatch, "%v", err)
	}
	return violationf(CodeInvariant, "roster: %v", err)
}

func anchorPath(anchor map[string]any) ([]string, error) {
	raw, ok := anchor["path"].([]any)
	if !ok {
		return nil, fmt.Errorf("anchor path is not a list")
	}
	path := make([]string, len(raw))
	for index, element := range raw {
		entry, ok := element.(string)
		if !ok {
			return nil, fmt.Errorf("anchor path[%d] is not a string", index)
		}
		path[index] = entry
	}
	return path, nil
}

func nestedField(document map[string]any, outer, inner string) any {
	nested, _ := document[outer].(map[string]any)
	return nested[inner]
}

// checkBindingMirror requires every binding field to equal its frame
// counterpart.
func checkBindingMirror(frame, binding map[string]any, frameHash string) error {
	mirrors := []struct {
		field string
		frame any
	}{
		{"manifest_hash", frame["manifest_hash"]},
		{"attestation_hash", frameHash},
		{"nonce", nestedField(frame, "anti_replay", "nonce")},
		{"timestamp", nestedField(frame, "anti_replay", "timestamp")},
		{"replay_window_s", nestedField(frame, "anti_replay", "replay_window_s")},
		{"auth_scope", nestedField(frame, "bindings", "auth_scope")},
	}
	for _, mirror := range mirrors {
		if !canonical.Equal(binding[mirror.field], mirror.frame) {
			return violationf(CodeBindingMismatch, "binding %s %v does not mirror frame value %v",
				mirror.field, binding[mirror.field], mirror.frame)
		}
	}
	return nil
}
