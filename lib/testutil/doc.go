// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test fixtures for capsule packages.
//
// [Fixture] assembles a complete sealing input set: a manifest, fresh
// Ed25519 keypairs for a list of signers plus the attester, the
// matching roster and signer-secret set, and template skeletons for
// the three artifacts. Tests that exercise sealing or verification
// build one fixture and mutate the copy they need.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
