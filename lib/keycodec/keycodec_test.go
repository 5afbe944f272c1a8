// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package keycodec

import (
	"crypto/ed25519"
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	publicKey, privateKey, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	decodedPublic, err := DecodePublicKey(Encode(publicKey))
	if err != nil {
		t.Fatalf("DecodePublicKey: %v", err)
	}
	if !decodedPublic.Equal(publicKey) {
		t.Error("decoded public key does not match original")
	}

	decodedPrivate, err := DecodePrivateKey(Encode(privateKey))
	if err != nil {
		t.Fatalf("DecodePrivateKey: %v", err)
	}
	if !decodedPrivate.Equal(privateKey) {
		t.Error("decoded private key does not match original")
	}
}

func TestDecodeRejectsMissingPrefix(t *testing.T) {
	_, err := DecodePublicKey("aGVsbG8=")
	var keyFormatError *KeyFormatError
	if !errors.As(err, &keyFormatError) {
		t.Fatalf("want KeyFormatError, got %v", err)
	}
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	tests := []struct {
		name   string
		decode func(string) error
		raw    []byte
	}{
		{"short public key", func(s string) error { _, err := DecodePublicKey(s); return err }, make([]byte, 16)},
		{"long public key", func(s string) error { _, err := DecodePublicKey(s); return err }, make([]byte, 33)},
		{"short private key", func(s string) error { _, err := DecodePrivateKey(s); return err }, make([]byte, 32)},
		{"short signature", func(s string) error { _, err := DecodeSignature(s); return err }, make([]byte, 63)},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.decode(Encode(test.raw))
			var keyFormatError *KeyFormatError
			if !errors.As(err, &keyFormatError) {
				t.Errorf("want KeyFormatError, got %v", err)
			}
		})
	}
}

func TestFingerprintFormat(t *testing.T) {
	publicKey, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	fingerprint := Fingerprint(publicKey)
	if !strings.HasPrefix(fingerprint, "ed25519:") {
		t.Errorf("Fingerprint = %q, want ed25519: prefix", fingerprint)
	}
	if len(fingerprint) != len("ed25519:")+64 {
		t.Errorf("Fingerprint length = %d, want %d", len(fingerprint), len("ed25519:")+64)
	}

	// Same key, same fingerprint.
	if Fingerprint(publicKey) != fingerprint {
		t.Error("fingerprint is not deterministic")
	}
}

func TestSignVerify(t *testing.T) {
	publicKey, privateKey, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	message := []byte("attest this")
	signature, err := Sign(message, privateKey)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if len(signature) != ed25519.SignatureSize {
		t.Fatalf("signature is %d bytes, want %d", len(signature), ed25519.SignatureSize)
	}

	if !Verify(message, signature, publicKey) {
		t.Error("Verify = false for a valid signature")
	}
	if Verify([]byte("different message"), signature, publicKey) {
		t.Error("Verify = true for the wrong message")
	}

	// Deterministic signatures per RFC 8032.
	again, err := Sign(message, privateKey)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if string(again) != string(signature) {
		t.Error("two signatures over the same message differ")
	}
}

func TestVerifyNeverPanics(t *testing.T) {
	publicKey, privateKey, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	signature, err := Sign([]byte("msg"), privateKey)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if Verify([]byte("msg"), signature[:10], publicKey) {
		t.Error("Verify = true for truncated signature")
	}
	if Verify([]byte("msg"), signature, publicKey[:5]) {
		t.Error("Verify = true for truncated public key")
	}
	if Verify([]byte("msg"), nil, publicKey) {
		t.Error("Verify = true for nil signature")
	}
}

func TestSignRejectsBadKeyLength(t *testing.T) {
	_, err := Sign([]byte("msg"), make([]byte, 32))
	var keyFormatError *KeyFormatError
	if !errors.As(err, &keyFormatError) {
		t.Fatalf("want KeyFormatError, got %v", err)
	}
}

func TestGenerateKeypair(t *testing.T) {
	publicKey, privateKey, fingerprint, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}

	rawPublic, err := DecodePublicKey(publicKey)
	if err != nil {
		t.Fatalf("DecodePublicKey: %v", err)
	}
	if _, err := DecodePrivateKey(privateKey); err != nil {
		t.Fatalf("DecodePrivateKey: %v", err)
	}
	if Fingerprint(rawPublic) != fingerprint {
		t.Errorf("fingerprint %q does not match derived %q", fingerprint, Fingerprint(rawPublic))
	}
}
