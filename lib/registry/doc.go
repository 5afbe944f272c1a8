// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry maintains an index of sealed frames and a Merkle
// tree over them. Each entry binds a frame id to its manifest hash
// and frame hash; the entry's leaf is the sorted-pair hash of those
// two digests, so an audit path from this tree plugs directly into
// the anchor engine's root recomputation.
//
// Entries are kept strictly sorted by frame id and duplicates are
// rejected. The index persists as a deterministic CBOR file: loading
// and re-saving an unchanged registry produces identical bytes.
//
// Key exports:
//   - Registry with Add, Root, AuditPath, Entries
//   - CandidatePath / Preview: audit path and root for a frame that
//     is not in the registry yet, used while sealing
//   - Load / Save: CBOR index persistence
package registry
