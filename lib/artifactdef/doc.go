// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

// Package artifactdef defines the protocol's fixed identity constants
// and the on-disk input formats: artifact template skeletons, the
// signer roster, and the signer secret set.
//
// Inputs are authored as JSONC (JSON extended with // line comments,
// block comments, and trailing commas); this package strips the
// extensions before parsing, so the same files work whether or not
// they carry commentary. Sealed output artifacts are always plain
// JSON.
//
// The roster is the sole trust anchor for verification. [Roster.KeyMap]
// decodes every entry's public key, derives its fingerprint, and
// cross-checks any explicit fingerprint the entry carries; a
// disagreement is a [FingerprintMismatchError] and fails the load.
// [SignerSet.SecretMap] applies the same discipline to signer secret
// configs before any key is used to sign.
package artifactdef
