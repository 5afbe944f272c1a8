// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

// Package bundle packs a sealed artifact set into a single container
// file for distribution. A bundle holds named entries (the frame,
// anchor, binding, and optionally roster and manifest), each
// checksummed with BLAKE3, serialized as deterministic CBOR, and
// compressed as one block.
//
// Container layout: a 4-byte magic, a format version byte, a
// compression tag byte, the big-endian uncompressed payload size,
// then the compressed CBOR payload. Import verifies every entry
// checksum before returning data.
//
// Key exports:
//   - Export / Import
//   - Entry: one named file within a bundle
//   - CompressionTag with None, LZ4, Zstd
package bundle
