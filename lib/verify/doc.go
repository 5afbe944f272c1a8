// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

// Package verify independently re-derives every value the sealer
// produced and checks it against the supplied artifacts. It is the
// sole trust boundary for downstream consumers: signatures are
// verified against roster keys, never against keys embedded in the
// artifacts being checked.
//
// Verification is a fixed sequence of hard gates, evaluated in order
// and fail-fast: the first violated gate aborts with a [Violation]
// carrying a stable [Code] and a human-readable detail line. The
// gate order is part of the audit contract.
//
// A signer entry with an empty signature string is an abstention: it
// is skipped without aborting and does not count toward quorum. A
// non-empty signature that fails cryptographic verification aborts
// immediately, naming the signer.
//
// Key exports:
//   - Verify: run all gates over a frame, anchor, binding, roster, manifest
//   - Inputs, Options: the artifact set and the verification knobs
//   - Violation, Code: the tagged failure reason
package verify
