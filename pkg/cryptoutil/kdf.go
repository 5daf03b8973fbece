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

package cryptoutil

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2Iterations is the iteration count used to stretch operator
// passphrases into AES keys. 100,000 matches OWASP's 2023 minimum
// recommendation for PBKDF2-HMAC-SHA256.
const PBKDF2Iterations = 100_000

// DeriveKeyFromPassphrase stretches passphrase with salt into a KeySize
// key via PBKDF2-HMAC-SHA256.
func DeriveKeyFromPassphrase(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, PBKDF2Iterations, KeySize, sha256.New)
}

// DeriveSubkey derives a domain-separated subkey from the master key using
// HKDF-SHA256. info distinguishes purposes (e.g. "audit-hmac",
// "secrets-aead") so a single master key can safely back multiple
// independent cryptographic uses.
func DeriveSubkey(masterKey []byte, info string) ([]byte, error) {
	reader := hkdf.New(sha256.New, masterKey, nil, []byte(info))
	sub := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, sub); err != nil {
		return nil, fmt.Errorf("cryptoutil: derive subkey %q: %w", info, err)
	}
	return sub, nil
}

// HMACSHA256 computes an HMAC-SHA256 tag over data under key.
func HMACSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// VerifyHMACSHA256 reports whether tag is the correct HMAC-SHA256 of data
// under key, using a constant-time comparison.
func VerifyHMACSHA256(key, data, tag []byte) bool {
	expected := HMACSHA256(key, data)
	return hmac.Equal(expected, tag)
}

// SHA256Sum returns the SHA-256 digest of data.
func SHA256Sum(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}
