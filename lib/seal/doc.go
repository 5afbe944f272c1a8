// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

// Package seal populates and signs attestation frames. One Seal call
// takes a manifest, three template skeletons, a signer-secret set,
// and a roster, and produces three schema-valid artifacts: the frame,
// the Merkle anchor, and the replay binding.
//
// Sealing is fail-closed. Every fingerprint is cross-checked between
// template, roster, and secret config before the first signature is
// produced; any schema violation aborts before anything is written;
// artifact files are written via temp-file-and-rename so a failure
// never leaves a partial artifact. After writing, the sealer re-reads
// exactly what landed on disk and runs the verifier over it. A failed
// self-check fails the seal even though files exist: callers must not
// trust the output of a failed Seal.
//
// Key exports:
//   - Seal: the whole operation
//   - Params: inputs and knobs
//   - Result: the populated artifacts, their hashes, and file paths
package seal
