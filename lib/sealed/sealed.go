// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"filippo.io/age"
)

// Identity holds an age x25519 keypair. The private key is in
// AGE-SECRET-KEY-1... format and must never be logged or written to an
// artifact. The public key (age1... format) is safe to publish.
type Identity struct {
	PrivateKey string
	PublicKey  string
}

// GenerateIdentity generates a new age x25519 keypair.
func GenerateIdentity() (*Identity, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating age keypair: %w", err)
	}
	return &Identity{
		PrivateKey: identity.String(),
		PublicKey:  identity.Recipient().String(),
	}, nil
}

// Encrypt encrypts plaintext to one or more recipients specified by their
// age public key strings (age1... format). Returns the ciphertext as a
// standard base64-encoded string. At least one recipient is required.
func Encrypt(plaintext []byte, recipientKeys []string) (string, error) {
	if len(recipientKeys) == 0 {
		return "", fmt.Errorf("at least one recipient is required")
	}

	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return "", fmt.Errorf("parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}
	return encrypt(plaintext, recipients...)
}

// Decrypt decrypts a base64-encoded ciphertext string using the given age
// private key (AGE-SECRET-KEY-1... format).
func Decrypt(ciphertext string, privateKey string) ([]byte, error) {
	identity, err := age.ParseX25519Identity(privateKey)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return decrypt(ciphertext, identity)
}

// EncryptWithPassphrase encrypts plaintext with an scrypt passphrase.
// Returns the ciphertext as a base64-encoded string.
func EncryptWithPassphrase(plaintext []byte, passphrase string) (string, error) {
	if passphrase == "" {
		return "", fmt.Errorf("passphrase is empty")
	}
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return "", fmt.Errorf("creating scrypt recipient: %w", err)
	}
	return encrypt(plaintext, recipient)
}

// DecryptWithPassphrase decrypts a base64-encoded ciphertext that was
// encrypted with EncryptWithPassphrase.
func DecryptWithPassphrase(ciphertext string, passphrase string) ([]byte, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}
	return decrypt(ciphertext, identity)
}

// ValidateRecipient checks that publicKey is a valid age x25519 public key.
// Useful for validating keys from configuration before first use.
func ValidateRecipient(publicKey string) error {
	if _, err := age.ParseX25519Recipient(publicKey); err != nil {
		return fmt.Errorf("invalid age public key: %w", err)
	}
	return nil
}

func encrypt(plaintext []byte, recipients ...age.Recipient) (string, error) {
	var ciphertextBuffer bytes.Buffer
	writer, err := age.Encrypt(&ciphertextBuffer, recipients...)
	if err != nil {
		return "", fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return "", fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalizing age encryption: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertextBuffer.Bytes()), nil
}

func decrypt(ciphertext string, identity age.Identity) ([]byte, error) {
	rawCiphertext, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decoding base64 ciphertext: %w", err)
	}
	reader, err := age.Decrypt(bytes.NewReader(rawCiphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted plaintext: %w", err)
	}
	return plaintext, nil
}
