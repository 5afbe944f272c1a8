// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

// Package keycodec converts Ed25519 key material between its raw byte
// form and the protocol's portable encoding, derives key fingerprints,
// and wraps signing and verification.
//
// Keys travel between parties as "base64:" + base64(raw bytes) with
// fixed raw lengths: 32 bytes for a public key, 64 bytes for a private
// key (seed followed by public key, matching crypto/ed25519's
// PrivateKey layout). Any length mismatch is a [KeyFormatError].
//
// A fingerprint is "ed25519:" + hex(SHA-256(public key bytes)). It is
// the identity that rosters, signer configs, and sealed frames use to
// detect key substitution: three-way fingerprint agreement is checked
// before any signature is produced or accepted.
//
// [Verify] follows RFC 8032 semantics via crypto/ed25519 and returns
// false for any invalid input. It never panics on user-supplied data.
package keycodec
