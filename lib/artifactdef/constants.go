// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package artifactdef

// Protocol identity constants. These are wire values shared between
// producing and verifying parties; changing any of them invalidates
// every previously sealed artifact.
const (
	// AttesterRole is the reserved roster identity of the
	// counter-signing quorum witness. The attester is never a member
	// of the signer list.
	AttesterRole = "attester::quorum-witness"

	// ClockSourceTag is the single designated clock source recorded
	// in anchors and replay bindings.
	ClockSourceTag = "ntp::stratum-2"

	// StatusSealed is the lifecycle tag a frame carries once fully
	// populated. Frames are immutable afterward.
	StatusSealed = "SEALED"

	// NonceLength is the byte length of the anti-replay nonce before
	// portable encoding.
	NonceLength = 32

	// DefaultParentLineage is the parent-lineage identifier expected
	// in frame bindings when the operator does not supply one.
	DefaultParentLineage = "lineage::capsule-root"
)
