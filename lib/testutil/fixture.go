// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"testing"

	"github.com/capsule-foundation/capsule/lib/artifactdef"
	"github.com/capsule-foundation/capsule/lib/keycodec"
)

// Fixture is a complete, self-consistent sealing input set built
// around freshly generated keys.
type Fixture struct {
	Manifest        map[string]any
	Roster          *artifactdef.Roster
	Signers         *artifactdef.SignerSet
	FrameTemplate   map[string]any
	AnchorTemplate  map[string]any
	BindingTemplate map[string]any
}

// GenerateSigner creates a fresh keypair and returns the matching
// roster entry and signer secret for nodeID.
func GenerateSigner(t *testing.T, nodeID string) (artifactdef.RosterEntry, artifactdef.SignerSecret) {
	t.Helper()
	publicKey, privateKey, fingerprint, err := keycodec.GenerateKeypair()
	if err != nil {
		t.Fatalf("generating keypair for %s: %v", nodeID, err)
	}
	entry := artifactdef.RosterEntry{
		NodeID:      nodeID,
		PublicKey:   publicKey,
		Fingerprint: fingerprint,
	}
	secret := artifactdef.SignerSecret{
		NodeID:         nodeID,
		SecretKey:      privateKey,
		PublicKey:      publicKey,
		KeyFingerprint: fingerprint,
	}
	return entry, secret
}

// NewFixture builds a fixture for the given signer node ids with the
// given quorum requirement. The roster holds every signer plus the
// attester under its reserved role identity. The frame template's
// signers are listed in the order given, unsorted on purpose so that
// sealing exercises the sort.
func NewFixture(t *testing.T, required int, nodeIDs ...string) *Fixture {
	t.Helper()
	if len(nodeIDs) == 0 {
		t.Fatalf("fixture needs at least one signer")
	}

	roster := &artifactdef.Roster{}
	signerSet := &artifactdef.SignerSet{}
	templateSigners := make([]any, 0, len(nodeIDs))
	for _, nodeID := range nodeIDs {
		entry, secret := GenerateSigner(t, nodeID)
		roster.Keys = append(roster.Keys, entry)
		signerSet.Signers = append(signerSet.Signers, secret)
		templateSigners = append(templateSigners, map[string]any{
			"node_id":         nodeID,
			"key_fingerprint": secret.KeyFingerprint,
			"signature":       "",
		})
	}

	attesterEntry, attesterSecret := GenerateSigner(t, artifactdef.AttesterRole)
	roster.Keys = append(roster.Keys, attesterEntry)
	signerSet.Attester = attesterSecret

	return &Fixture{
		Manifest: map[string]any{
			"artifact": "release-2026-08",
			"payload":  map[string]any{"x": float64(1)},
		},
		Roster:  roster,
		Signers: signerSet,
		FrameTemplate: map[string]any{
			"frame_id":   "frame::fixture-0001",
			"capsule_id": "capsule::fixture",
			"quorum": map[string]any{
				"required": float64(required),
				"total":    float64(len(nodeIDs)),
			},
			"bindings": map[string]any{
				"parent":     artifactdef.DefaultParentLineage,
				"auth_scope": "scope::fixture",
			},
			"anti_replay": map[string]any{
				"replay_window_s": float64(300),
			},
			"signers": templateSigners,
		},
		AnchorTemplate:  map[string]any{},
		BindingTemplate: map[string]any{},
	}
}
