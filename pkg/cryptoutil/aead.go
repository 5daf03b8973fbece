// secretcore - M2M secrets management core
// Copyright (C) 2025 secretcore authors
//
// This file is part of secretcore.
//
// secretcore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// secretcore is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with secretcore. If not, see <https://www.gnu.org/licenses/>.

// Package cryptoutil holds the low-level cryptographic primitives shared
// by the rest of secretcore: AEAD envelope encryption, passphrase key
// derivation, HKDF key separation, and Shamir secret sharing for the
// master key.
package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// KeySize is the key length, in bytes, for every AES-256-GCM operation in
// secretcore.
const KeySize = 32

// ErrCiphertextTooShort is returned when Open is given fewer bytes than a
// nonce plus authentication tag.
var ErrCiphertextTooShort = errors.New("cryptoutil: ciphertext shorter than nonce+tag")

// Seal encrypts plaintext under key using AES-256-GCM, returning
// nonce || ciphertext || tag as a single slice. aad, if non-nil, is
// authenticated but not encrypted (e.g. a secret's path, so moving a
// ciphertext to a different path fails decryption).
func Seal(key, plaintext, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("cryptoutil: generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, aad), nil
}

// Open decrypts a value produced by Seal. It fails closed: any
// authentication failure, truncation, or key mismatch returns an error
// rather than partial plaintext.
func Open(key, sealed, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(sealed) < nonceSize+gcm.Overhead() {
		return nil, ErrCiphertextTooShort
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: decrypt: %w", err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("cryptoutil: key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: new GCM: %w", err)
	}
	return gcm, nil
}

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("cryptoutil: read random bytes: %w", err)
	}
	return b, nil
}

// GenerateKey returns a fresh random 256-bit key suitable for Seal/Open.
func GenerateKey() ([]byte, error) {
	return RandomBytes(KeySize)
}

// Zero overwrites b with zeros in place. Callers use it on master key
// copies and reconstructed shares once they're no longer needed; it is
// best-effort, not a defense against a determined local attacker.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
