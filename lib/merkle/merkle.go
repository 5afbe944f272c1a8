// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package merkle

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/capsule-foundation/capsule/lib/canonical"
)

// ComputeRoot folds a leaf, its sibling, and an audit path into a
// Merkle root. The leaf and sibling combine as a sorted byte pair
// (lexicographically smaller digest first, regardless of argument
// position), then each path entry folds into the running value under
// the same rule. All digests are "sha256:"-prefixed hex strings.
func ComputeRoot(leaf, sibling string, path []string) (string, error) {
	leafRaw, err := canonical.ParseDigest(leaf)
	if err != nil {
		return "", fmt.Errorf("leaf: %w", err)
	}
	siblingRaw, err := canonical.ParseDigest(sibling)
	if err != nil {
		return "", fmt.Errorf("sibling: %w", err)
	}

	running := pairHash(leafRaw, siblingRaw)
	for index, entry := range path {
		entryRaw, err := canonical.ParseDigest(entry)
		if err != nil {
			return "", fmt.Errorf("path[%d]: %w", index, err)
		}
		running = pairHash(running, entryRaw)
	}
	return canonical.FormatDigest(running), nil
}

// pairHash hashes the sorted concatenation of two raw digests.
func pairHash(a, b [32]byte) [32]byte {
	if bytes.Compare(b[:], a[:]) < 0 {
		a, b = b, a
	}
	payload := make([]byte, 0, 64)
	payload = append(payload, a[:]...)
	payload = append(payload, b[:]...)
	return sha256.Sum256(payload)
}

// Tree is a binary Merkle tree built from a fixed, ordered set of
// leaf digests with the sorted-pair combination rule. Odd levels
// duplicate their last node. The tree is immutable once built.
type Tree struct {
	// levels[0] holds the leaves; each subsequent level halves
	// (rounding up) until levels[len-1] holds the single root.
	levels [][][32]byte
}

// NewTree builds a tree over the given leaf digests. At least one
// leaf is required.
func NewTree(leaves []string) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, fmt.Errorf("merkle tree requires at least one leaf")
	}

	level := make([][32]byte, len(leaves))
	for index, leaf := range leaves {
		raw, err := canonical.ParseDigest(leaf)
		if err != nil {
			return nil, fmt.Errorf("leaf[%d]: %w", index, err)
		}
		level[index] = raw
	}

	tree := &Tree{levels: [][][32]byte{level}}
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([][32]byte, 0, len(level)/2)
		for index := 0; index < len(level); index += 2 {
			next = append(next, pairHash(level[index], level[index+1]))
		}
		tree.levels = append(tree.levels, next)
		level = next
	}
	return tree, nil
}

// Root returns the tree's root digest. For a single-leaf tree the
// root is the leaf itself.
func (t *Tree) Root() string {
	top := t.levels[len(t.levels)-1]
	return canonical.FormatDigest(top[0])
}

// Path returns the audit path for the leaf at the given index: the
// sibling digest at each level from the leaves up to (but excluding)
// the root. The path composes with the sorted-pair rule, so the first
// entry is the leaf's direct sibling and ComputeRoot-style folding of
// the remaining entries reproduces Root.
func (t *Tree) Path(index int) ([]string, error) {
	if index < 0 || index >= len(t.levels[0]) {
		return nil, fmt.Errorf("leaf index %d out of range [0, %d)", index, len(t.levels[0]))
	}

	var path []string
	position := index
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := position ^ 1
		if sibling >= len(level) {
			// Odd level: the last node pairs with its own duplicate.
			sibling = position
		}
		path = append(path, canonical.FormatDigest(level[sibling]))
		position /= 2
	}
	return path, nil
}
