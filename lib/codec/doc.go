// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides deterministic CBOR encoding for on-disk
// state that is not part of the attestation wire protocol, currently
// the frame registry index and the bundle container payload.
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items.
// The same logical data always produces identical bytes, which keeps
// registry index files diffable and content-addressable.
//
// Protocol artifacts themselves are JSON (lib/canonical); this
// package never touches signing preimages.
package codec
