// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

// Package canonical provides the deterministic JSON serialization and
// SHA-256 hashing that every signing preimage and artifact hash in the
// attestation protocol is built on.
//
// The byte format is the protocol: two structurally equal documents
// must canonicalize to identical bytes regardless of map insertion
// order, and a producer and an independent verifier must agree on
// every byte. Object keys are sorted lexicographically at every
// nesting level, arrays preserve element order, strings use standard
// JSON escaping, and numbers render in minimal decimal form.
// Non-finite numbers are rejected with [EncodingError].
//
// Key exports:
//
//   - [Canonicalize] -- JSON-shaped value to canonical bytes
//   - [Hash] -- "sha256:" + lowercase hex over raw bytes
//   - [HashOf] -- Hash(Canonicalize(value))
//   - [ParseDigest] -- prefixed digest string to raw 32 bytes
//
// This package has no dependencies beyond the standard library: the
// canonical rendering is a wire-compatibility contract that must not
// drift with an external library's formatting choices.
package canonical
