// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package artifactdef

import (
	"crypto/ed25519"
	"fmt"

	"github.com/capsule-foundation/capsule/lib/keycodec"
)

// RosterEntry maps a signer identity to its public key. The
// fingerprint field is optional; when present it must equal the
// fingerprint derived from the public key bytes.
type RosterEntry struct {
	NodeID      string `json:"node_id"`
	PublicKey   string `json:"public_key"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Roster is the trust anchor for verification: the set of identities
// whose keys signatures are checked against. Keys embedded in an
// artifact are never used for verification.
type Roster struct {
	Keys []RosterEntry `json:"keys"`
}

// RosterKey is a decoded, fingerprint-checked roster entry.
type RosterKey struct {
	NodeID      string
	PublicKey   ed25519.PublicKey
	Fingerprint string
}

// KeyMap decodes and fingerprint-checks every roster entry, returning
// a lookup map keyed by node id. Fails on a duplicate node id, an
// undecodable key, or a fingerprint disagreement.
func (r *Roster) KeyMap() (map[string]RosterKey, error) {
	keys := make(map[string]RosterKey, len(r.Keys))
	for _, entry := range r.Keys {
		if entry.NodeID == "" {
			return nil, fmt.Errorf("roster entry has an empty node_id")
		}
		if _, exists := keys[entry.NodeID]; exists {
			return nil, fmt.Errorf("roster has duplicate entries for %s", entry.NodeID)
		}

		publicKey, err := keycodec.DecodePublicKey(entry.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("roster entry %s: %w", entry.NodeID, err)
		}
		derived := keycodec.Fingerprint(publicKey)
		if entry.Fingerprint != "" && entry.Fingerprint != derived {
			return nil, &FingerprintMismatchError{
				NodeID:   entry.NodeID,
				Declared: entry.Fingerprint,
				Derived:  derived,
			}
		}

		keys[entry.NodeID] = RosterKey{
			NodeID:      entry.NodeID,
			PublicKey:   publicKey,
			Fingerprint: derived,
		}
	}
	return keys, nil
}

// SignerSecret is one signer's key material, used only by the sealer
// and never persisted into output artifacts. The secret key is 64 raw
// bytes (seed followed by public key) in portable encoding.
type SignerSecret struct {
	NodeID         string `json:"node_id"`
	SecretKey      string `json:"secret_key"`
	PublicKey      string `json:"public_key"`
	KeyFingerprint string `json:"key_fingerprint"`
}

// SignerSet is the sealer's input: secrets for each designated signer
// plus the attester's counter-signing secret.
type SignerSet struct {
	Signers  []SignerSecret `json:"signers"`
	Attester SignerSecret   `json:"attester"`
}

// DecodedSecret is a decoded, fingerprint-checked signer secret.
type DecodedSecret struct {
	NodeID      string
	PrivateKey  ed25519.PrivateKey
	PublicKey   ed25519.PublicKey
	Fingerprint string
}

// decodeSecret validates one secret config: both key halves decode,
// the private key embeds the declared public key, and the declared
// fingerprint (when present) matches the derived one.
func decodeSecret(secret SignerSecret, identity string) (DecodedSecret, error) {
	privateKey, err := keycodec.DecodePrivateKey(secret.SecretKey)
	if err != nil {
		return DecodedSecret{}, fmt.Errorf("secret for %s: %w", identity, err)
	}
	publicKey, err := keycodec.DecodePublicKey(secret.PublicKey)
	if err != nil {
		return DecodedSecret{}, fmt.Errorf("secret for %s: %w", identity, err)
	}
	if !publicKey.Equal(privateKey.Public().(ed25519.PublicKey)) {
		return DecodedSecret{}, fmt.Errorf("secret for %s: public key does not match the private key's embedded public half", identity)
	}

	derived := keycodec.Fingerprint(publicKey)
	if secret.KeyFingerprint != "" && secret.KeyFingerprint != derived {
		return DecodedSecret{}, &FingerprintMismatchError{
			NodeID:   identity,
			Declared: secret.KeyFingerprint,
			Derived:  derived,
		}
	}

	return DecodedSecret{
		NodeID:      identity,
		PrivateKey:  privateKey,
		PublicKey:   publicKey,
		Fingerprint: derived,
	}, nil
}

// SecretMap decodes and fingerprint-checks every signer secret,
// returning a lookup map keyed by node id.
func (s *SignerSet) SecretMap() (map[string]DecodedSecret, error) {
	secrets := make(map[string]DecodedSecret, len(s.Signers))
	for _, secret := range s.Signers {
		if secret.NodeID == "" {
			return nil, fmt.Errorf("signer secret has an empty node_id")
		}
		if _, exists := secrets[secret.NodeID]; exists {
			return nil, fmt.Errorf("signer set has duplicate secrets for %s", secret.NodeID)
		}
		decoded, err := decodeSecret(secret, secret.NodeID)
		if err != nil {
			return nil, err
		}
		secrets[secret.NodeID] = decoded
	}
	return secrets, nil
}

// AttesterSecret decodes and fingerprint-checks the attester's secret.
// The attester is addressed by its reserved role identity, not a
// node id of its own.
func (s *SignerSet) AttesterSecret() (DecodedSecret, error) {
	return decodeSecret(s.Attester, AttesterRole)
}
