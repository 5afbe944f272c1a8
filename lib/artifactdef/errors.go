// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package artifactdef

import "fmt"

// FingerprintMismatchError reports a disagreement between a derived
// key fingerprint and one declared in a roster entry, a signer secret
// config, or a frame template. Any disagreement is treated as a
// possible key substitution and fails the whole operation.
type FingerprintMismatchError struct {
	// NodeID identifies the signer (or attester role) whose
	// fingerprints disagree.
	NodeID string

	// Declared is the fingerprint the input claimed.
	Declared string

	// Derived is the fingerprint computed from the public key bytes.
	Derived string
}

func (e *FingerprintMismatchError) Error() string {
	return fmt.Sprintf("fingerprint mismatch for %s: declared %s, derived %s", e.NodeID, e.Declared, e.Derived)
}

// MissingEntryError reports a lookup miss: a signer named in a frame
// or template has no matching roster entry or secret config.
type MissingEntryError struct {
	// Kind names the collection that missed ("roster" or "signer config").
	Kind string

	// NodeID is the identity that was looked up.
	NodeID string
}

func (e *MissingEntryError) Error() string {
	return fmt.Sprintf("no %s entry for %s", e.Kind, e.NodeID)
}
