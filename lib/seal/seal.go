// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package seal

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/capsule-foundation/capsule/lib/artifactdef"
	"github.com/capsule-foundation/capsule/lib/canonical"
	"github.com/capsule-foundation/capsule/lib/clock"
	"github.com/capsule-foundation/capsule/lib/keycodec"
	"github.com/capsule-foundation/capsule/lib/merkle"
	"github.com/capsule-foundation/capsule/lib/schema"
	"github.com/capsule-foundation/capsule/lib/verify"
)

// Artifact file names within the output directory.
const (
	FrameFileName   = "attestation.json"
	AnchorFileName  = "anchor.json"
	BindingFileName = "replay_binding.json"
)

// Params carries one Seal invocation's inputs.
type Params struct {
	// Manifest is the document being attested. Opaque except for its
	// canonical hash.
	Manifest any

	// FrameTemplate, AnchorTemplate, and BindingTemplate are the
	// skeletons the sealer populates. The templates themselves are
	// never mutated.
	FrameTemplate   map[string]any
	AnchorTemplate  map[string]any
	BindingTemplate map[string]any

	// Signers holds the secret key material for every designated
	// signer and the attester.
	Signers *artifactdef.SignerSet

	// Roster is the trust anchor the self-verification pass checks
	// signatures against.
	Roster *artifactdef.Roster

	// AuditPath anchors the two-leaf proof into a larger external
	// tree. Empty means the root is just the leaf-sibling pair hash.
	AuditPath []string

	// AuditPathFunc, when set and AuditPath is nil, supplies the
	// audit path once the frame hash is known. This is how registry
	// anchoring works: the registry derives the candidate path from
	// the manifest and frame hashes of the entry being added.
	AuditPathFunc func(manifestHash, frameHash string) ([]string, error)

	// ExpectedParent is the parent lineage the frame's bindings must
	// reference. Empty means the default lineage.
	ExpectedParent string

	// OutputDir receives the three artifact files.
	OutputDir string

	// Clock supplies the seal timestamp. Nil means the real clock.
	Clock clock.Clock

	// DefaultReplayWindowS applies when the frame template's
	// anti_replay carries no replay_window_s.
	DefaultReplayWindowS int
}

// Result reports a successful seal.
type Result struct {
	Frame   map[string]any
	Anchor  map[string]any
	Binding map[string]any

	ManifestHash string
	FrameHash    string
	Root         string

	FramePath   string
	AnchorPath  string
	BindingPath string
}

// Seal runs the whole operation: populate, sign, counter-sign,
// derive anchor and binding, schema-check, write, self-verify.
func Seal(params Params) (*Result, error) {
	if params.Clock == nil {
		params.Clock = clock.Real()
	}
	if params.ExpectedParent == "" {
		params.ExpectedParent = artifactdef.DefaultParentLineage
	}

	frame := cloneDocument(params.FrameTemplate)
	anchor := cloneDocument(params.AnchorTemplate)
	binding := cloneDocument(params.BindingTemplate)

	manifestHash, err := canonical.HashOf(params.Manifest)
	if err != nil {
		return nil, fmt.Errorf("hashing manifest: %w", err)
	}
	frame["manifest_hash"] = manifestHash

	timestamp := params.Clock.Now().UTC().Format(schema.TimestampLayout)
	nonce, err := generateNonce()
	if err != nil {
		return nil, err
	}
	antiReplay, _ := frame["anti_replay"].(map[string]any)
	if antiReplay == nil {
		antiReplay = map[string]any{}
	}
	antiReplay["nonce"] = nonce
	antiReplay["timestamp"] = timestamp
	if _, ok := artifactdef.AsInt(antiReplay["replay_window_s"]); !ok {
		if params.DefaultReplayWindowS <= 0 {
			return nil, fmt.Errorf("frame template carries no replay_window_s and no default is configured")
		}
		antiReplay["replay_window_s"] = float64(params.DefaultReplayWindowS)
	}
	frame["anti_replay"] = antiReplay
	frame["status"] = artifactdef.StatusSealed

	required, total, err := artifactdef.Quorum(frame)
	if err != nil {
		return nil, err
	}
	if required > total {
		return nil, fmt.Errorf("quorum required %d exceeds total %d", required, total)
	}

	rosterKeys, err := params.Roster.KeyMap()
	if err != nil {
		return nil, err
	}
	secrets, err := params.Signers.SecretMap()
	if err != nil {
		return nil, err
	}

	if err := signFrame(frame, required, total, rosterKeys, secrets); err != nil {
		return nil, err
	}
	if err := counterSign(frame, rosterKeys, params.Signers); err != nil {
		return nil, err
	}

	frameHash, err := canonical.HashOf(frame)
	if err != nil {
		return nil, fmt.Errorf("hashing frame: %w", err)
	}

	path := params.AuditPath
	if path == nil && params.AuditPathFunc != nil {
		path, err = params.AuditPathFunc(manifestHash, frameHash)
		if err != nil {
			return nil, fmt.Errorf("deriving audit path: %w", err)
		}
	}
	if path == nil {
		path = []string{}
	}
	root, err := merkle.ComputeRoot(manifestHash, frameHash, path)
	if err != nil {
		return nil, fmt.Errorf("computing anchor root: %w", err)
	}
	anchor["leaf"] = manifestHash
	anchor["sibling"] = frameHash
	anchor["path"] = toAnyList(path)
	anchor["root"] = root
	anchor["timestamp"] = timestamp
	anchor["clock_source"] = artifactdef.ClockSourceTag

	binding["manifest_hash"] = manifestHash
	binding["attestation_hash"] = frameHash
	binding["nonce"] = nonce
	binding["timestamp"] = timestamp
	binding["replay_window_s"] = antiReplay["replay_window_s"]
	binding["auth_scope"] = artifactdef.NestedString(frame, "bindings", "auth_scope")
	binding["clock_source"] = artifactdef.ClockSourceTag

	if issues := schema.Validate(frame, schema.Frame()); len(issues) > 0 {
		return nil, fmt.Errorf("frame fails schema validation: %s", strings.Join(issues, "; "))
	}
	if issues := schema.Validate(anchor, schema.Anchor()); len(issues) > 0 {
		return nil, fmt.Errorf("anchor fails schema validation: %s", strings.Join(issues, "; "))
	}
	if issues := schema.Validate(binding, schema.Binding()); len(issues) > 0 {
		return nil, fmt.Errorf("binding fails schema validation: %s", strings.Join(issues, "; "))
	}

	result := &Result{
		Frame:        frame,
		Anchor:       anchor,
		Binding:      binding,
		ManifestHash: manifestHash,
		FrameHash:    frameHash,
		Root:         root,
		FramePath:    filepath.Join(params.OutputDir, FrameFileName),
		AnchorPath:   filepath.Join(params.OutputDir, AnchorFileName),
		BindingPath:  filepath.Join(params.OutputDir, BindingFileName),
	}

	if err := os.MkdirAll(params.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	if err := writeArtifact(result.FramePath, frame); err != nil {
		return nil, err
	}
	if err := writeArtifact(result.AnchorPath, anchor); err != nil {
		return nil, err
	}
	if err := writeArtifact(result.BindingPath, binding); err != nil {
		return nil, err
	}

	if err := selfVerify(result, params); err != nil {
		return nil, fmt.Errorf("self-verification failed, written artifacts must not be trusted: %w", err)
	}
	return result, nil
}

// signFrame sorts the frame's signer list, cross-checks every
// fingerprint, and produces each signature in sorted order. Any
// missing entry or fingerprint disagreement aborts before the first
// signature is produced.
func signFrame(frame map[string]any, required, total int, rosterKeys map[string]artifactdef.RosterKey, secrets map[string]artifactdef.DecodedSecret) error {
	signers, err := artifactdef.FrameSigners(frame)
	if err != nil {
		return err
	}
	if len(signers) != total {
		return fmt.Errorf("frame template has %d signers, quorum total is %d", len(signers), total)
	}

	sort.Slice(signers, func(i, j int) bool { return signers[i].NodeID < signers[j].NodeID })
	for index := 1; index < len(signers); index++ {
		if signers[index-1].NodeID == signers[index].NodeID {
			return fmt.Errorf("frame template has duplicate signer %s", signers[index].NodeID)
		}
	}
	for _, signer := range signers {
		if signer.NodeID == artifactdef.AttesterRole {
			return fmt.Errorf("%s counter-signs the frame and cannot appear in signers", artifactdef.AttesterRole)
		}
	}

	// Cross-check phase: every signer resolves and every fingerprint
	// agrees before anything is signed.
	for index, signer := range signers {
		rosterKey, ok := rosterKeys[signer.NodeID]
		if !ok {
			return &artifactdef.MissingEntryError{Kind: "roster", NodeID: signer.NodeID}
		}
		secret, ok := secrets[signer.NodeID]
		if !ok {
			return &artifactdef.MissingEntryError{Kind: "signer config", NodeID: signer.NodeID}
		}
		if secret.Fingerprint != rosterKey.Fingerprint {
			return &artifactdef.FingerprintMismatchError{
				NodeID:   signer.NodeID,
				Declared: secret.Fingerprint,
				Derived:  rosterKey.Fingerprint,
			}
		}
		if signer.KeyFingerprint != "" && signer.KeyFingerprint != rosterKey.Fingerprint {
			return &artifactdef.FingerprintMismatchError{
				NodeID:   signer.NodeID,
				Declared: signer.KeyFingerprint,
				Derived:  rosterKey.Fingerprint,
			}
		}
		signers[index].KeyFingerprint = rosterKey.Fingerprint
	}

	// The signer preimage excludes the signers list, so entries can be
	// written back before signing without affecting any preimage.
	entries := make([]any, len(signers))
	for index, signer := range signers {
		entries[index] = map[string]any{
			"node_id":         signer.NodeID,
			"key_fingerprint": signer.KeyFingerprint,
			"signature":       "",
		}
	}
	frame["signers"] = entries

	for index, signer := range signers {
		preimage, err := canonical.Canonicalize(
			artifactdef.SignerPreimage(frame, signer.NodeID, signer.KeyFingerprint))
		if err != nil {
			return fmt.Errorf("building preimage for %s: %w", signer.NodeID, err)
		}
		signature, err := keycodec.Sign(preimage, secrets[signer.NodeID].PrivateKey)
		if err != nil {
			return fmt.Errorf("signing for %s: %w", signer.NodeID, err)
		}
		entries[index].(map[string]any)["signature"] = keycodec.Encode(signature)
	}
	return nil
}

// counterSign produces the attester's counter-signature over the
// assembled signer list.
func counterSign(frame map[string]any, rosterKeys map[string]artifactdef.RosterKey, signerSet *artifactdef.SignerSet) error {
	attester, err := signerSet.AttesterSecret()
	if err != nil {
		return err
	}
	rosterKey, ok := rosterKeys[artifactdef.AttesterRole]
	if !ok {
		return &artifactdef.MissingEntryError{Kind: "roster", NodeID: artifactdef.AttesterRole}
	}
	if attester.Fingerprint != rosterKey.Fingerprint {
		return &artifactdef.FingerprintMismatchError{
			NodeID:   artifactdef.AttesterRole,
			Declared: attester.Fingerprint,
			Derived:  rosterKey.Fingerprint,
		}
	}

	document, err := artifactdef.CounterPreimage(frame, attester.Fingerprint)
	if err != nil {
		return err
	}
	preimage, err := canonical.Canonicalize(document)
	if err != nil {
		return fmt.Errorf("building counter-signature preimage: %w", err)
	}
	signature, err := keycodec.Sign(preimage, attester.PrivateKey)
	if err != nil {
		return fmt.Errorf("counter-signing: %w", err)
	}

	frame["attester"] = map[string]any{
		"role":              artifactdef.AttesterRole,
		"key_fingerprint":   attester.Fingerprint,
		"counter_signature": keycodec.Encode(signature),
	}
	return nil
}

// selfVerify re-reads exactly what landed on disk and runs the
// verifier over it with the same clock and lineage expectations.
func selfVerify(result *Result, params Params) error {
	frame, err := artifactdef.ReadDocument(result.FramePath)
	if err != nil {
		return err
	}
	anchor, err := artifactdef.ReadDocument(result.AnchorPath)
	if err != nil {
		return err
	}
	binding, err := artifactdef.ReadDocument(result.BindingPath)
	if err != nil {
		return err
	}
	return verify.Verify(verify.Inputs{
		Frame:    frame,
		Anchor:   anchor,
		Binding:  binding,
		Roster:   params.Roster,
		Manifest: params.Manifest,
	}, verify.Options{
		Clock:          params.Clock,
		ExpectedParent: params.ExpectedParent,
	})
}

func generateNonce() (string, error) {
	nonce := make([]byte, artifactdef.NonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	return keycodec.Encode(nonce), nil
}

// writeArtifact writes a JSON document atomically: temp file in the
// target directory, fsync, rename.
func writeArtifact(path string, document map[string]any) error {
	data, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')

	temp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", filepath.Base(path), err)
	}
	tempPath := temp.Name()
	if _, err := temp.Write(data); err != nil {
		temp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := temp.Sync(); err != nil {
		temp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("syncing %s: %w", filepath.Base(path), err)
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}

func toAnyList(entries []string) []any {
	list := make([]any, len(entries))
	for index, entry := range entries {
		list[index] = entry
	}
	return list
}

// cloneDocument deep-copies a generic JSON document so templates are
// never mutated.
func cloneDocument(document map[string]any) map[string]any {
	clone := make(map[string]any, len(document))
	for key, value := range document {
		clone[key] = cloneValue(value)
	}
	return clone
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return cloneDocument(typed)
	case []any:
		list := make([]any, len(typed))
		for index, element := range typed {
			list[index] = cloneValue(element)
		}
		return list
	default:
		return typed
	}
}
