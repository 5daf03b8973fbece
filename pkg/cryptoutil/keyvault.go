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
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	// ErrKeyShareNotFound is returned when the requested share id has no
	// backup file.
	ErrKeyShareNotFound = errors.New("cryptoutil: key share not found")
	// ErrInvalidPassphrase is returned when a backup fails to decrypt.
	ErrInvalidPassphrase = errors.New("cryptoutil: invalid passphrase or corrupted backup")
	// ErrInvalidShareID is returned for an empty share id.
	ErrInvalidShareID = errors.New("cryptoutil: invalid share id")
)

// KeyShareBackup is the on-disk representation of a passphrase-wrapped
// unseal key share, handed to an operator for out-of-band (e.g. printed,
// air-gapped) storage.
type KeyShareBackup struct {
	Version   string    `json:"version"`
	ShareID   string    `json:"share_id"`
	Salt      string    `json:"salt"`
	Sealed    string    `json:"sealed"`
	CreatedAt time.Time `json:"created_at"`
}

// KeyShareVault persists passphrase-encrypted unseal key shares to the
// filesystem, for operators who back up shares outside the storage
// backend entirely (the usual deployment for an air-gapped root key
// share holder).
type KeyShareVault struct {
	basePath string
	mu       sync.RWMutex
}

// NewKeyShareVault creates a vault rooted at basePath, creating the
// directory if necessary with operator-only permissions.
func NewKeyShareVault(basePath string) (*KeyShareVault, error) {
	if err := os.MkdirAll(basePath, 0o700); err != nil {
		return nil, fmt.Errorf("cryptoutil: create key share vault directory: %w", err)
	}
	return &KeyShareVault{basePath: basePath}, nil
}

// Store encrypts share under a key derived from passphrase and writes it
// to disk as shareID.json.
func (v *KeyShareVault) Store(shareID string, share []byte, passphrase string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if shareID == "" {
		return ErrInvalidShareID
	}

	salt, err := RandomBytes(32)
	if err != nil {
		return err
	}
	key := DeriveKeyFromPassphrase(passphrase, salt)
	sealed, err := Seal(key, share, []byte(shareID))
	if err != nil {
		return fmt.Errorf("cryptoutil: seal key share: %w", err)
	}

	backup := KeyShareBackup{
		Version:   "1",
		ShareID:   shareID,
		Salt:      base64.StdEncoding.EncodeToString(salt),
		Sealed:    base64.StdEncoding.EncodeToString(sealed),
		CreatedAt: time.Now(),
	}
	data, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		return fmt.Errorf("cryptoutil: marshal key share backup: %w", err)
	}

	return os.WriteFile(v.path(shareID), data, 0o600)
}

// Load decrypts and returns the share previously stored under shareID.
func (v *KeyShareVault) Load(shareID, passphrase string) ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if shareID == "" {
		return nil, ErrInvalidShareID
	}

	data, err := os.ReadFile(v.path(shareID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyShareNotFound
		}
		return nil, fmt.Errorf("cryptoutil: read key share backup: %w", err)
	}

	var backup KeyShareBackup
	if err := json.Unmarshal(data, &backup); err != nil {
		return nil, fmt.Errorf("cryptoutil: unmarshal key share backup: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(backup.Salt)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: decode salt: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(backup.Sealed)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: decode sealed share: %w", err)
	}

	key := DeriveKeyFromPassphrase(passphrase, salt)
	share, err := Open(key, sealed, []byte(shareID))
	if err != nil {
		return nil, ErrInvalidPassphrase
	}
	return share, nil
}

// Delete removes a stored share backup.
func (v *KeyShareVault) Delete(shareID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if shareID == "" {
		return ErrInvalidShareID
	}
	if err := os.Remove(v.path(shareID)); err != nil {
		if os.IsNotExist(err) {
			return ErrKeyShareNotFound
		}
		return fmt.Errorf("cryptoutil: delete key share backup: %w", err)
	}
	return nil
}

// List returns the IDs of every share backup in the vault.
func (v *KeyShareVault) List() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	entries, err := os.ReadDir(v.basePath)
	if err != nil {
		return nil
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			ids = append(ids, e.Name()[:len(e.Name())-len(".json")])
		}
	}
	return ids
}

func (v *KeyShareVault) path(shareID string) string {
	return filepath.Join(v.basePath, filepath.Base(shareID)+".json")
}
