// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed keeps the platform's event signing key encrypted at
// rest. The key file is age-encrypted to a passphrase-derived scrypt
// recipient; the daemon unseals it once at startup and holds the
// plaintext only in locked memory (lib/secret).
package sealed

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"filippo.io/age"

	"github.com/nostrforge/nostrforge/lib/secret"
)

// SealKey encrypts the signing key with a passphrase and writes the
// ciphertext to path with owner-only permissions.
func SealKey(path string, key *secret.Buffer, passphrase string) error {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("sealed: creating scrypt recipient: %w", err)
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipient)
	if err != nil {
		return fmt.Errorf("sealed: starting encryption: %w", err)
	}
	if _, err := writer.Write(key.Bytes()); err != nil {
		return fmt.Errorf("sealed: encrypting key: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("sealed: finalizing ciphertext: %w", err)
	}

	if err := os.WriteFile(path, ciphertext.Bytes(), 0600); err != nil {
		return fmt.Errorf("sealed: writing key file: %w", err)
	}
	return nil
}

// UnsealKey reads the key file and decrypts it with the passphrase.
// The plaintext key is returned in locked memory; the caller owns the
// buffer and must Close it.
func UnsealKey(path string, passphrase string) (*secret.Buffer, error) {
	ciphertext, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sealed: reading key file: %w", err)
	}

	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("sealed: creating scrypt identity: %w", err)
	}
	reader, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("sealed: unsealing key file %s: %w", path, err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("sealed: reading unsealed key: %w", err)
	}

	buffer, err := secret.NewFromBytes(plaintext)
	if err != nil {
		return nil, fmt.Errorf("sealed: moving key to locked memory: %w", err)
	}
	return buffer, nil
}
