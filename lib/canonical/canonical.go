// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// HashPrefix tags every digest string produced by this package. The
// tag is a protocol constant; changing it invalidates every sealed
// artifact.
const HashPrefix = "sha256:"

// EncodingError indicates a value that cannot be canonically
// serialized: a non-finite number, or a Go type with no JSON
// counterpart. These are always caller-data problems, never retried.
type EncodingError struct {
	msg string
}

func (e *EncodingError) Error() string {
	return "canonical: " + e.msg
}

func encodingErrorf(format string, args ...any) *EncodingError {
	return &EncodingError{msg: fmt.Sprintf(format, args...)}
}

// Canonicalize serializes a JSON-shaped value (map[string]any, []any,
// string, number, bool, nil) to its canonical byte form. Object keys
// are sorted lexicographically, arrays keep their order, and the
// output contains no insignificant whitespace.
func Canonicalize(value any) ([]byte, error) {
	var buffer bytes.Buffer
	if err := writeValue(&buffer, value); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// Hash computes the SHA-256 digest of data and returns it in the
// protocol's portable form: "sha256:" followed by fixed lowercase hex.
func Hash(data []byte) string {
	digest := sha256.Sum256(data)
	return HashPrefix + hex.EncodeToString(digest[:])
}

// HashOf is Hash over the canonical serialization of value.
func HashOf(value any) (string, error) {
	data, err := Canonicalize(value)
	if err != nil {
		return "", err
	}
	return Hash(data), nil
}

// ParseDigest parses a "sha256:"-prefixed lowercase hex digest string
// into its raw 32 bytes. Returns an error for a missing prefix,
// non-hex characters, uppercase hex, or a wrong length.
func ParseDigest(digest string) ([32]byte, error) {
	var raw [32]byte
	hexPart, found := strings.CutPrefix(digest, HashPrefix)
	if !found {
		return raw, fmt.Errorf("digest %q lacks the %q prefix", digest, HashPrefix)
	}
	if hexPart != strings.ToLower(hexPart) {
		return raw, fmt.Errorf("digest %q contains uppercase hex", digest)
	}
	decoded, err := hex.DecodeString(hexPart)
	if err != nil {
		return raw, fmt.Errorf("parsing digest %q: %w", digest, err)
	}
	if len(decoded) != 32 {
		return raw, fmt.Errorf("digest is %d bytes, want 32", len(decoded))
	}
	copy(raw[:], decoded)
	return raw, nil
}

// FormatDigest returns the portable form of a raw SHA-256 digest.
func FormatDigest(raw [32]byte) string {
	return HashPrefix + hex.EncodeToString(raw[:])
}

func writeValue(buffer *bytes.Buffer, value any) error {
	switch v := value.(type) {
	case nil:
		buffer.WriteString("null")
	case bool:
		if v {
			buffer.WriteString("true")
		} else {
			buffer.WriteString("false")
		}
	case string:
		writeString(buffer, v)
	case float64:
		return writeFloat(buffer, v)
	case float32:
		return writeFloat(buffer, float64(v))
	case int:
		buffer.WriteString(strconv.FormatInt(int64(v), 10))
	case int64:
		buffer.WriteString(strconv.FormatInt(v, 10))
	case uint64:
		buffer.WriteString(strconv.FormatUint(v, 10))
	case map[string]any:
		return writeObject(buffer, v)
	case []any:
		return writeArray(buffer, v)
	case []string:
		// Convenience for callers building preimages from typed
		// slices (e.g., an anchor path).
		converted := make([]any, len(v))
		for index, element := range v {
			converted[index] = element
		}
		return writeArray(buffer, converted)
	default:
		return encodingErrorf("unsupported type %T", value)
	}
	return nil
}

func writeObject(buffer *bytes.Buffer, object map[string]any) error {
	keys := make([]string, 0, len(object))
	for key := range object {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	buffer.WriteByte('{')
	for index, key := range keys {
		if index > 0 {
			buffer.WriteByte(',')
		}
		writeString(buffer, key)
		buffer.WriteByte(':')
		if err := writeValue(buffer, object[key]); err != nil {
			return err
		}
	}
	buffer.WriteByte('}')
	return nil
}

func writeArray(buffer *bytes.Buffer, array []any) error {
	buffer.WriteByte('[')
	for index, element := range array {
		if index > 0 {
			buffer.WriteByte(',')
		}
		if err := writeValue(buffer, element); err != nil {
			return err
		}
	}
	buffer.WriteByte(']')
	return nil
}

// writeFloat renders a number in minimal decimal form. Values that are
// mathematically integral render without a fractional part or
// exponent, so 3.0 and 3 canonicalize identically.
func writeFloat(buffer *bytes.Buffer, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return encodingErrorf("non-finite number %v", value)
	}
	// Integral values below 1e21 render as plain decimal digits, the
	// same threshold ECMAScript number rendering uses; anything larger
	// or fractional takes the shortest round-trippable form.
	if value == math.Trunc(value) && math.Abs(value) < 1e21 {
		buffer.WriteString(strconv.FormatFloat(value, 'f', -1, 64))
		return nil
	}
	buffer.WriteString(strconv.FormatFloat(value, 'g', -1, 64))
	return nil
}

const hexDigits = "0123456789abcdef"

// writeString emits a JSON string with standard escaping: quote,
// backslash, and the named control escapes, with \u00XX for the
// remaining control characters. Non-ASCII runes pass through as
// UTF-8 rather than being escaped, so the output is byte-stable for
// any producer following the same rule.
func writeString(buffer *bytes.Buffer, s string) {
	buffer.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buffer.WriteString(`\"`)
		case '\\':
			buffer.WriteString(`\\`)
		case '\b':
			buffer.WriteString(`\b`)
		case '\f':
			buffer.WriteString(`\f`)
		case '\n':
			buffer.WriteString(`\n`)
		case '\r':
			buffer.WriteString(`\r`)
		case '\t':
			buffer.WriteString(`\t`)
		default:
			if r < 0x20 {
				buffer.WriteString(`\u00`)
				buffer.WriteByte(hexDigits[byte(r)>>4])
				buffer.WriteByte(hexDigits[byte(r)&0xf])
			} else {
				buffer.WriteRune(r)
			}
		}
	}
	buffer.WriteByte('"')
}

// Equal reports whether two JSON-shaped values canonicalize to the
// same bytes. An encoding error on either side reports false.
func Equal(a, b any) bool {
	aBytes, err := Canonicalize(a)
	if err != nil {
		return false
	}
	bBytes, err := Canonicalize(b)
	if err != nil {
		return false
	}
	return bytes.Equal(aBytes, bBytes)
}
