// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed provides age encryption and decryption for capsule signer
// secret bundles. It wraps filippo.io/age for the specific operations the
// CLI needs: generate keypairs, encrypt a signer-set document to recipients
// or a passphrase, and decrypt it back.
//
// Ciphertext is base64-encoded for storage alongside JSON artifacts. The
// encoding is handled internally: callers pass plaintext []byte in and get
// base64 strings out, and vice versa for decryption.
//
// Key exports:
//   - GenerateIdentity: new age x25519 keypair
//   - Encrypt / Decrypt: recipient-key encryption
//   - EncryptWithPassphrase / DecryptWithPassphrase: scrypt passphrase encryption
//   - ReadPassphrase: terminal prompt with echo disabled
package sealed
