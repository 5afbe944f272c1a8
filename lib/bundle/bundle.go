// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/capsule-foundation/capsule/lib/codec"
)

// Container format constants.
const (
	// formatVersion is bumped when the container layout changes.
	formatVersion = 1

	// ChecksumPrefix tags entry checksums with their algorithm.
	ChecksumPrefix = "blake3:"

	// magic identifies a capsule bundle file.
	magic = "CAPB"

	headerLength = len(magic) + 2 + 8
)

// Entry is one named file within a bundle.
type Entry struct {
	Name string `cbor:"name"`
	Data []byte `cbor:"data"`

	// Checksum is the BLAKE3 digest of Data, blake3-prefixed hex.
	// Filled in by Export; verified by Import.
	Checksum string `cbor:"checksum"`
}

// payload is the CBOR document inside the container.
type payload struct {
	Version int     `cbor:"version"`
	Entries []Entry `cbor:"entries"`
}

// Checksum computes the blake3-prefixed digest of data.
func Checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return ChecksumPrefix + hex.EncodeToString(sum[:])
}

// Export writes entries to path as a single container file. Entry
// checksums are computed here; caller-set checksums are ignored. If
// the payload does not shrink under the requested compression, the
// bundle falls back to an uncompressed payload.
func Export(path string, entries []Entry, tag CompressionTag) error {
	if len(entries) == 0 {
		return fmt.Errorf("bundle has no entries")
	}
	seen := make(map[string]bool, len(entries))
	stamped := make([]Entry, len(entries))
	for index, entry := range entries {
		if entry.Name == "" {
			return fmt.Errorf("bundle entry %d has an empty name", index)
		}
		if seen[entry.Name] {
			return fmt.Errorf("bundle has duplicate entry %q", entry.Name)
		}
		seen[entry.Name] = true
		stamped[index] = Entry{
			Name:     entry.Name,
			Data:     entry.Data,
			Checksum: Checksum(entry.Data),
		}
	}

	encoded, err := codec.Marshal(payload{Version: formatVersion, Entries: stamped})
	if err != nil {
		return fmt.Errorf("encoding bundle payload: %w", err)
	}

	compressed, err := compress(encoded, tag)
	if err == errIncompressible {
		compressed, tag = encoded, CompressionNone
	} else if err != nil {
		return err
	}

	header := make([]byte, headerLength)
	copy(header, magic)
	header[len(magic)] = formatVersion
	header[len(magic)+1] = byte(tag)
	binary.BigEndian.PutUint64(header[len(magic)+2:], uint64(len(encoded)))

	return writeAtomic(path, append(header, compressed...))
}

// Import reads a container file and returns its entries after
// verifying every checksum.
func Import(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(data) < headerLength || string(data[:len(magic)]) != magic {
		return nil, fmt.Errorf("%s is not a capsule bundle", path)
	}
	if version := data[len(magic)]; version != formatVersion {
		return nil, fmt.Errorf("%s: bundle format version %d, expected %d", path, version, formatVersion)
	}
	tag := CompressionTag(data[len(magic)+1])
	uncompressedSize := binary.BigEndian.Uint64(data[len(magic)+2 : headerLength])

	encoded, err := decompress(data[headerLength:], tag, int(uncompressedSize))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var document payload
	if err := codec.Unmarshal(encoded, &document); err != nil {
		return nil, fmt.Errorf("decoding bundle payload: %w", err)
	}
	if document.Version != formatVersion {
		return nil, fmt.Errorf("bundle payload version %d, expected %d", document.Version, formatVersion)
	}
	for _, entry := range document.Entries {
		if derived := Checksum(entry.Data); derived != entry.Checksum {
			return nil, fmt.Errorf("entry %q: checksum %s does not match %s",
				entry.Name, derived, entry.Checksum)
		}
	}
	return document.Entries, nil
}

func writeAtomic(path string, data []byte) error {
	temp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()
	if _, err := temp.Write(data); err != nil {
		temp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("writing bundle: %w", err)
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("closing bundle: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}
