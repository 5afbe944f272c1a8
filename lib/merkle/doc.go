// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

// Package merkle recomputes Merkle anchor roots with order-independent
// pairwise hashing.
//
// Every pair combination sorts the two raw digests lexicographically
// before concatenating and hashing, so [ComputeRoot] is symmetric in
// its first two arguments: ComputeRoot(A, B, path) equals
// ComputeRoot(B, A, path). This lets a two-leaf anchor proof fold into
// a larger external tree without knowing that tree's branch side
// conventions, and it means audit paths carry no left/right markers.
//
// [Tree] builds a full tree over a set of leaves using the same
// sorted-pair rule and extracts audit paths consumable by
// [ComputeRoot]. The frame registry uses it to anchor each sealed
// frame into the registry-wide tree.
package merkle
