// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/capsule-foundation/capsule/lib/canonical"
	"github.com/capsule-foundation/capsule/lib/codec"
	"github.com/capsule-foundation/capsule/lib/merkle"
)

// indexVersion is bumped when the persisted layout changes.
const indexVersion = 1

// Entry is one sealed frame's registration.
type Entry struct {
	FrameID      string `cbor:"frame_id" json:"frame_id"`
	ManifestHash string `cbor:"manifest_hash" json:"manifest_hash"`
	FrameHash    string `cbor:"frame_hash" json:"frame_hash"`
	SealedAt     string `cbor:"sealed_at" json:"sealed_at"`
}

// index is the persisted form of a registry.
type index struct {
	Version int     `cbor:"version"`
	Entries []Entry `cbor:"entries"`
}

// Registry is an in-memory registry of sealed frames, entries sorted
// by frame id. Not safe for concurrent mutation.
type Registry struct {
	entries []Entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// Load reads a registry index from disk. A missing file is an empty
// registry, so first use needs no initialization step.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var stored index
	if err := codec.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if stored.Version != indexVersion {
		return nil, fmt.Errorf("%s: index version %d, expected %d", path, stored.Version, indexVersion)
	}
	for index := 1; index < len(stored.Entries); index++ {
		if stored.Entries[index-1].FrameID >= stored.Entries[index].FrameID {
			return nil, fmt.Errorf("%s: entries not strictly sorted at %q", path, stored.Entries[index].FrameID)
		}
	}
	return &Registry{entries: stored.Entries}, nil
}

// Save writes the registry index atomically.
func (r *Registry) Save(path string) error {
	data, err := codec.Marshal(index{Version: indexVersion, Entries: r.entries})
	if err != nil {
		return fmt.Errorf("encoding registry index: %w", err)
	}

	temp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()
	if _, err := temp.Write(data); err != nil {
		temp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("writing registry index: %w", err)
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("closing registry index: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}

// Entries returns the registered entries in frame id order. The
// returned slice is a copy.
func (r *Registry) Entries() []Entry {
	entries := make([]Entry, len(r.entries))
	copy(entries, r.entries)
	return entries
}

// Len reports the number of registered frames.
func (r *Registry) Len() int { return len(r.entries) }

// validateEntry checks an entry's shape before it enters the tree.
func validateEntry(entry Entry) error {
	if entry.FrameID == "" {
		return fmt.Errorf("entry has an empty frame_id")
	}
	if _, err := canonical.ParseDigest(entry.ManifestHash); err != nil {
		return fmt.Errorf("entry %s manifest_hash: %w", entry.FrameID, err)
	}
	if _, err := canonical.ParseDigest(entry.FrameHash); err != nil {
		return fmt.Errorf("entry %s frame_hash: %w", entry.FrameID, err)
	}
	return nil
}

// Add registers a sealed frame. Duplicate frame ids are rejected;
// the sorted order is maintained.
func (r *Registry) Add(entry Entry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	position := sort.Search(len(r.entries), func(i int) bool {
		return r.entries[i].FrameID >= entry.FrameID
	})
	if position < len(r.entries) && r.entries[position].FrameID == entry.FrameID {
		return fmt.Errorf("frame %s is already registered", entry.FrameID)
	}
	r.entries = append(r.entries, Entry{})
	copy(r.entries[position+1:], r.entries[position:])
	r.entries[position] = entry
	return nil
}

// leafHash derives an entry's tree leaf: the sorted-pair hash of its
// manifest hash and frame hash, the same combination the anchor
// engine performs for leaf and sibling.
func leafHash(entry Entry) (string, error) {
	return merkle.ComputeRoot(entry.ManifestHash, entry.FrameHash, nil)
}

func buildTree(entries []Entry) (*merkle.Tree, error) {
	leaves := make([]string, len(entries))
	for index, entry := range entries {
		leaf, err := leafHash(entry)
		if err != nil {
			return nil, err
		}
		leaves[index] = leaf
	}
	return merkle.NewTree(leaves)
}

// Root computes the Merkle root over all registered frames.
func (r *Registry) Root() (string, error) {
	if len(r.entries) == 0 {
		return "", fmt.Errorf("registry is empty")
	}
	tree, err := buildTree(r.entries)
	if err != nil {
		return "", err
	}
	return tree.Root(), nil
}

// AuditPath returns the path from a registered frame's leaf to the
// registry root, consumable by the anchor engine.
func (r *Registry) AuditPath(frameID string) ([]string, error) {
	position := sort.Search(len(r.entries), func(i int) bool {
		return r.entries[i].FrameID >= frameID
	})
	if position >= len(r.entries) || r.entries[position].FrameID != frameID {
		return nil, fmt.Errorf("frame %s is not registered", frameID)
	}
	tree, err := buildTree(r.entries)
	if err != nil {
		return nil, err
	}
	return tree.Path(position)
}

// candidateEntries returns the registry's entries with the candidate
// spliced into sorted position, without mutating the registry.
func (r *Registry) candidateEntries(entry Entry) ([]Entry, int, error) {
	if err := validateEntry(entry); err != nil {
		return nil, 0, err
	}
	position := sort.Search(len(r.entries), func(i int) bool {
		return r.entries[i].FrameID >= entry.FrameID
	})
	if position < len(r.entries) && r.entries[position].FrameID == entry.FrameID {
		return nil, 0, fmt.Errorf("frame %s is already registered", entry.FrameID)
	}
	combined := make([]Entry, 0, len(r.entries)+1)
	combined = append(combined, r.entries[:position]...)
	combined = append(combined, entry)
	combined = append(combined, r.entries[position:]...)
	return combined, position, nil
}

// CandidatePath returns the audit path a frame would have if it were
// registered, for anchoring during sealing before the registry is
// committed.
func (r *Registry) CandidatePath(entry Entry) ([]string, error) {
	combined, position, err := r.candidateEntries(entry)
	if err != nil {
		return nil, err
	}
	tree, err := buildTree(combined)
	if err != nil {
		return nil, err
	}
	return tree.Path(position)
}

// Preview returns the root the registry would have after registering
// the candidate, without mutating anything.
func (r *Registry) Preview(entry Entry) (string, error) {
	combined, _, err := r.candidateEntries(entry)
	if err != nil {
		return "", err
	}
	tree, err := buildTree(combined)
	if err != nil {
		return "", err
	}
	return tree.Root(), nil
}
