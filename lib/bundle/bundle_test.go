// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testEntries() []Entry {
	frame := bytes.Repeat([]byte(`{"frame_id":"frame::0001","status":"SEALED"}`), 20)
	return []Entry{
		{Name: "attestation.json", Data: frame},
		{Name: "anchor.json", Data: []byte(`{"leaf":"sha256:ab"}`)},
		{Name: "replay_binding.json", Data: []byte(`{"nonce":"base64:AAAA"}`)},
	}
}

func exportImport(t *testing.T, tag CompressionTag) []Entry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "set.capb")
	if err := Export(path, testEntries(), tag); err != nil {
		t.Fatalf("Export(%s): %v", tag, err)
	}
	entries, err := Import(path)
	if err != nil {
		t.Fatalf("Import(%s): %v", tag, err)
	}
	return entries
}

func TestRoundTripAllTags(t *testing.T) {
	for _, tag := range []CompressionTag{CompressionNone, CompressionLZ4, CompressionZstd} {
		entries := exportImport(t, tag)
		want := testEntries()
		if len(entries) != len(want) {
			t.Fatalf("%s: %d entries, want %d", tag, len(entries), len(want))
		}
		for index, entry := range entries {
			if entry.Name != want[index].Name {
				t.Errorf("%s: entries[%d].Name = %q, want %q", tag, index, entry.Name, want[index].Name)
			}
			if !bytes.Equal(entry.Data, want[index].Data) {
				t.Errorf("%s: entries[%d] data differs", tag, index)
			}
			if !strings.HasPrefix(entry.Checksum, ChecksumPrefix) {
				t.Errorf("%s: entries[%d].Checksum = %q", tag, index, entry.Checksum)
			}
		}
	}
}

func TestZstdShrinksRepetitivePayload(t *testing.T) {
	directory := t.TempDir()
	compressedPath := filepath.Join(directory, "zstd.capb")
	plainPath := filepath.Join(directory, "plain.capb")
	if err := Export(compressedPath, testEntries(), CompressionZstd); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if err := Export(plainPath, testEntries(), CompressionNone); err != nil {
		t.Fatalf("Export: %v", err)
	}

	compressedInfo, err := os.Stat(compressedPath)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	plainInfo, err := os.Stat(plainPath)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if compressedInfo.Size() >= plainInfo.Size() {
		t.Errorf("zstd bundle %d bytes, plain %d bytes", compressedInfo.Size(), plainInfo.Size())
	}
}

func TestImportDetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "set.capb")
	if err := Export(path, testEntries(), CompressionNone); err != nil {
		t.Fatalf("Export: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	// Flip one byte inside the payload, past the header.
	data[len(data)-10] ^= 0xff
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Import(path); err == nil {
		t.Fatal("expected corruption to be detected")
	}
}

func TestImportRejectsWrongMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-bundle")
	if err := os.WriteFile(path, []byte("just some text, long enough to pass length checks"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Import(path); err == nil {
		t.Fatal("expected magic rejection")
	}
}

func TestExportRejectsDuplicateNames(t *testing.T) {
	entries := []Entry{
		{Name: "a.json", Data: []byte("{}")},
		{Name: "a.json", Data: []byte("{}")},
	}
	if err := Export(filepath.Join(t.TempDir(), "dup.capb"), entries, CompressionNone); err == nil {
		t.Fatal("expected duplicate name rejection")
	}
}

func TestIncompressibleFallsBackToNone(t *testing.T) {
	// A tiny high-entropy payload will not shrink under lz4; export
	// must still succeed and round-trip.
	entries := []Entry{{Name: "nonce", Data: []byte{0x9f, 0x3a, 0xc4, 0x01, 0x77}}}
	path := filepath.Join(t.TempDir(), "tiny.capb")
	if err := Export(path, entries, CompressionLZ4); err != nil {
		t.Fatalf("Export: %v", err)
	}
	imported, err := Import(path)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if !bytes.Equal(imported[0].Data, entries[0].Data) {
		t.Error("data differs after fallback round trip")
	}
}

func TestParseCompressionTag(t *testing.T) {
	for _, test := range []struct {
		name string
		want CompressionTag
	}{
		{"none", CompressionNone},
		{"lz4", CompressionLZ4},
		{"zstd", CompressionZstd},
	} {
		tag, err := ParseCompressionTag(test.name)
		if err != nil {
			t.Errorf("ParseCompressionTag(%q): %v", test.name, err)
		}
		if tag != test.want {
			t.Errorf("ParseCompressionTag(%q) = %v, want %v", test.name, tag, test.want)
		}
		if tag.String() != test.name {
			t.Errorf("%v.String() = %q, want %q", tag, tag.String(), test.name)
		}
	}
	if _, err := ParseCompressionTag("brotli"); err == nil {
		t.Error("expected unknown tag rejection")
	}
}
