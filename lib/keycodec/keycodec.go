// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package keycodec

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// EncodingPrefix tags the portable base64 form of keys,
	// signatures, and nonces.
	EncodingPrefix = "base64:"

	// FingerprintPrefix tags derived public key fingerprints.
	FingerprintPrefix = "ed25519:"
)

// KeyFormatError indicates key material with the wrong shape: a
// missing encoding prefix, invalid base64, or a raw length that does
// not match the fixed Ed25519 sizes.
type KeyFormatError struct {
	msg string
}

func (e *KeyFormatError) Error() string {
	return "keycodec: " + e.msg
}

func keyFormatErrorf(format string, args ...any) *KeyFormatError {
	return &KeyFormatError{msg: fmt.Sprintf(format, args...)}
}

// Encode returns the portable encoding of raw bytes. Used for keys,
// signatures, and anti-replay nonces alike.
func Encode(raw []byte) string {
	return EncodingPrefix + base64.StdEncoding.EncodeToString(raw)
}

// Decode strips the portable encoding prefix and decodes the base64
// payload. Length validation is the caller's concern; most callers
// want DecodePublicKey, DecodePrivateKey, or DecodeSignature instead.
func Decode(encoded string) ([]byte, error) {
	payload, found := strings.CutPrefix(encoded, EncodingPrefix)
	if !found {
		return nil, keyFormatErrorf("value %q lacks the %q prefix", encoded, EncodingPrefix)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, keyFormatErrorf("invalid base64 payload: %v", err)
	}
	return raw, nil
}

// DecodePublicKey decodes a portable-encoded Ed25519 public key and
// validates its exact length (32 bytes).
func DecodePublicKey(encoded string) (ed25519.PublicKey, error) {
	raw, err := Decode(encoded)
	if err != nil {
		return nil, err
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, keyFormatErrorf("public key is %d bytes, want %d", len(raw), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(raw), nil
}

// DecodePrivateKey decodes a portable-encoded Ed25519 private key and
// validates its exact length (64 bytes: 32-byte seed followed by the
// 32-byte public key).
func DecodePrivateKey(encoded string) (ed25519.PrivateKey, error) {
	raw, err := Decode(encoded)
	if err != nil {
		return nil, err
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, keyFormatErrorf("private key is %d bytes, want %d", len(raw), ed25519.PrivateKeySize)
	}
	return ed25519.PrivateKey(raw), nil
}

// DecodeSignature decodes a portable-encoded Ed25519 signature and
// validates its exact length (64 bytes).
func DecodeSignature(encoded string) ([]byte, error) {
	raw, err := Decode(encoded)
	if err != nil {
		return nil, err
	}
	if len(raw) != ed25519.SignatureSize {
		return nil, keyFormatErrorf("signature is %d bytes, want %d", len(raw), ed25519.SignatureSize)
	}
	return raw, nil
}

// Fingerprint derives the protocol fingerprint of a raw public key:
// "ed25519:" + hex(SHA-256(public key bytes)).
func Fingerprint(publicKey ed25519.PublicKey) string {
	digest := sha256.Sum256(publicKey)
	return FingerprintPrefix + hex.EncodeToString(digest[:])
}

// Sign signs message with an Ed25519 private key. Signatures are
// deterministic per RFC 8032: the same key and message always produce
// the same 64-byte signature.
func Sign(message []byte, privateKey ed25519.PrivateKey) ([]byte, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, keyFormatErrorf("private key is %d bytes, want %d", len(privateKey), ed25519.PrivateKeySize)
	}
	return ed25519.Sign(privateKey, message), nil
}

// Verify reports whether signature is a valid Ed25519 signature of
// message under publicKey. Malformed keys and truncated signatures
// report false rather than erroring; an invalid signature is a
// verification outcome, not an exceptional condition.
func Verify(message, signature []byte, publicKey ed25519.PublicKey) bool {
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	if len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(publicKey, message, signature)
}

// GenerateKeypair generates a fresh Ed25519 keypair from
// cryptographically secure randomness and returns both halves in the
// portable encoding, along with the derived fingerprint.
func GenerateKeypair() (publicKey, privateKey, fingerprint string, err error) {
	rawPublic, rawPrivate, err := ed25519.GenerateKey(nil)
	if err != nil {
		return "", "", "", fmt.Errorf("generating Ed25519 keypair: %w", err)
	}
	return Encode(rawPublic), Encode(rawPrivate), Fingerprint(rawPublic), nil
}
