// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package artifactdef

import "fmt"

// SignerPreimage builds the document a signer signs. Sealer and
// verifier must construct this identically byte for byte, so both
// call this one builder. The signature field of the frame's signer
// entries is deliberately absent: each signer signs the frame state
// before any signature exists.
func SignerPreimage(frame map[string]any, nodeID, keyFingerprint string) map[string]any {
	return map[string]any{
		"frame_id":      frame["frame_id"],
		"capsule_id":    frame["capsule_id"],
		"manifest_hash": frame["manifest_hash"],
		"quorum":        frame["quorum"],
		"bindings":      frame["bindings"],
		"anti_replay":   frame["anti_replay"],
		"signer_context": map[string]any{
			"node_id":         nodeID,
			"key_fingerprint": keyFingerprint,
		},
	}
}

// CounterPreimage builds the document the attester counter-signs: the
// fully assembled signer list (already sorted by node_id) together
// with the manifest hash, the quorum, and the attester's own key
// fingerprint. Witnessing the signer list after signing is what makes
// the counter-signature a quorum-math witness.
func CounterPreimage(frame map[string]any, attesterFingerprint string) (map[string]any, error) {
	signers, err := FrameSigners(frame)
	if err != nil {
		return nil, err
	}
	signerList := make([]any, len(signers))
	for index, signer := range signers {
		signerList[index] = map[string]any{
			"node_id":         signer.NodeID,
			"key_fingerprint": signer.KeyFingerprint,
			"signature":       signer.Signature,
		}
	}
	return map[string]any{
		"manifest_hash": frame["manifest_hash"],
		"quorum":        frame["quorum"],
		"signers":       signerList,
		"attester_key":  attesterFingerprint,
	}, nil
}

// FrameSigner is one entry of a frame's signers list in typed form.
type FrameSigner struct {
	NodeID         string
	KeyFingerprint string
	Signature      string
}

// FrameSigners extracts the frame's signers list. An empty signature
// string marks an abstention.
func FrameSigners(frame map[string]any) ([]FrameSigner, error) {
	raw, ok := frame["signers"].([]any)
	if !ok {
		return nil, fmt.Errorf("frame signers is not a list")
	}
	signers := make([]FrameSigner, len(raw))
	for index, element := range raw {
		entry, ok := element.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("frame signers[%d] is not an object", index)
		}
		nodeID, _ := entry["node_id"].(string)
		fingerprint, _ := entry["key_fingerprint"].(string)
		signature, _ := entry["signature"].(string)
		signers[index] = FrameSigner{
			NodeID:         nodeID,
			KeyFingerprint: fingerprint,
			Signature:      signature,
		}
	}
	return signers, nil
}

// Quorum extracts a frame's quorum thresholds.
func Quorum(frame map[string]any) (required, total int, err error) {
	quorum, ok := frame["quorum"].(map[string]any)
	if !ok {
		return 0, 0, fmt.Errorf("frame quorum is not an object")
	}
	required, ok = AsInt(quorum["required"])
	if !ok {
		return 0, 0, fmt.Errorf("frame quorum.required is not an integer")
	}
	total, ok = AsInt(quorum["total"])
	if !ok {
		return 0, 0, fmt.Errorf("frame quorum.total is not an integer")
	}
	return required, total, nil
}

// AsInt normalizes the numeric representations JSON and CBOR decoding
// produce. Rejects fractional values.
func AsInt(value any) (int, bool) {
	switch number := value.(type) {
	case int:
		return number, true
	case int64:
		return int(number), true
	case uint64:
		return int(number), true
	case float64:
		if number != float64(int(number)) {
			return 0, false
		}
		return int(number), true
	default:
		return 0, false
	}
}

// StringField extracts a top-level string field from a generic
// document, empty when absent or not a string.
func StringField(document map[string]any, key string) string {
	value, _ := document[key].(string)
	return value
}

// NestedString extracts document[outer][inner] as a string.
func NestedString(document map[string]any, outer, inner string) string {
	nested, _ := document[outer].(map[string]any)
	value, _ := nested[inner].(string)
	return value
}
