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

// Package seal owns the master key lifecycle: Shamir-based
// initialization, K-of-N unseal, and sealing. Every other component
// that needs the master key takes a KeyHandle rather than the
// concrete *Manager, so it can only ever ask "give me the key or tell
// me it's sealed" — never reach into unseal state directly.
package seal

import (
	"context"
	"sync"

	"github.com/sage-x-project/secretcore/internal/logger"
	"github.com/sage-x-project/secretcore/internal/metrics"
	"github.com/sage-x-project/secretcore/pkg/cryptoutil"
	"github.com/sage-x-project/secretcore/pkg/storage"
)

const verifyInfo = "seal-verify"

// Status is the point-in-time snapshot returned by status() and by every
// mutating operation.
type Status struct {
	Initialized bool
	Sealed      bool
	Progress    int
	Threshold   int
	TotalShares int
}

// KeyHandle is the capability other components hold to read the master
// key. It never exposes unseal/seal control.
type KeyHandle interface {
	// MasterKey returns a copy of the 32-byte master key, or ErrSealed
	// if the core is not currently unsealed.
	MasterKey() ([]byte, error)
}

// AuditLogger is the minimal capability Manager needs to record
// seal/unseal transitions, satisfied by (*pkg/audit.Log).AppendSimple.
// Declared structurally rather than imported so this package doesn't
// depend on pkg/audit, which itself depends on seal.KeyHandle and would
// otherwise form an import cycle.
type AuditLogger interface {
	AppendSimple(ctx context.Context, entityID, operation, decision string) error
}

// Manager implements the seal state machine described for §4.2: every
// mutating call is serialized on mu, including its storage and audit
// writes; Status takes the same lock, so it waits for any mutation in
// flight.
type Manager struct {
	mu sync.Mutex

	store storage.SealStore
	log   logger.Logger
	audit AuditLogger

	initialized bool
	unsealed    bool
	threshold   int
	totalShares int
	verifyTag   []byte

	submitted map[byte]cryptoutil.Share
	masterKey []byte
}

// NewManager loads any persisted seal record and returns a Manager in
// Uninitialized or Sealed state accordingly. It never reconstructs the
// master key; that only happens via SubmitShare.
func NewManager(ctx context.Context, store storage.SealStore, log logger.Logger) (*Manager, error) {
	m := &Manager{
		store:     store,
		log:       log,
		submitted: make(map[byte]cryptoutil.Share),
	}

	rec, err := store.LoadSeal(ctx)
	if err == storage.ErrNotFound {
		metrics.SealState.Set(0)
		return m, nil
	}
	if err != nil {
		return nil, err
	}

	m.initialized = rec.Initialized
	m.threshold = rec.SecretThreshold
	m.totalShares = rec.SecretShares
	m.verifyTag = rec.Verification
	metrics.SealState.Set(0)
	return m, nil
}

// SetAuditLog wires the audit sink in after construction: pkg/audit.Log
// itself depends on a seal.KeyHandle, so it cannot exist yet when
// NewManager runs. A no-op until called; safe to call at most once
// during core wiring.
func (m *Manager) SetAuditLog(a AuditLogger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = a
}

// appendAudit assumes the caller already holds m.mu (every call site
// does): it only reads m.audit, so it does not re-lock.
func (m *Manager) appendAudit(ctx context.Context, operation, decision string) {
	if m.audit == nil {
		return
	}
	if err := m.audit.AppendSimple(ctx, "", operation, decision); err != nil {
		m.log.Error("seal: audit append failed", logger.Error(err), logger.String("operation", operation))
	}
}

// Initialize is a one-shot: it generates a master key, splits it into
// totalShares Shamir shares with the given threshold, persists the
// verification tag, and returns the shares. The caller must distribute
// them; secretcore never persists a share.
func (m *Manager) Initialize(ctx context.Context, totalShares, threshold int) ([]cryptoutil.Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil, ErrAlreadyInitialized
	}

	key, err := cryptoutil.GenerateKey()
	if err != nil {
		return nil, err
	}
	defer cryptoutil.Zero(key)

	shares, err := cryptoutil.ShamirSplit(key, totalShares, threshold)
	if err != nil {
		return nil, err
	}

	verifyTag := cryptoutil.HMACSHA256(key, []byte(verifyInfo))

	if err := m.store.SaveSeal(ctx, &storage.SealRecord{
		Initialized:     true,
		SecretShares:    totalShares,
		SecretThreshold: threshold,
		Verification:    verifyTag,
	}); err != nil {
		return nil, err
	}

	m.initialized = true
	m.threshold = threshold
	m.totalShares = totalShares
	m.verifyTag = verifyTag

	m.log.Info("seal initialized", logger.Int("total_shares", totalShares), logger.Int("threshold", threshold))
	metrics.SealOperations.WithLabelValues("initialize", "success").Inc()
	m.appendAudit(ctx, "seal.initialize", "success")
	return shares, nil
}

// SubmitShare accumulates one share toward the unseal threshold. Once
// enough distinct shares have been submitted, it reconstructs the
// master key, checks it against the stored verification tag, and
// either transitions to Unsealed or discards the attempt with
// ErrInvalidShareSet.
func (m *Manager) SubmitShare(ctx context.Context, share cryptoutil.Share) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return Status{}, ErrNotInitialized
	}
	if m.unsealed {
		return Status{}, ErrAlreadyUnsealed
	}
	if share.Index == 0 || int(share.Index) > m.totalShares {
		return Status{}, ErrInvalidShareIndex
	}
	if _, dup := m.submitted[share.Index]; dup {
		return Status{}, ErrDuplicateShare
	}

	m.submitted[share.Index] = share

	if len(m.submitted) < m.threshold {
		metrics.UnsealProgress.Set(float64(len(m.submitted)))
		return m.statusLocked(), nil
	}

	shares := make([]cryptoutil.Share, 0, len(m.submitted))
	for _, s := range m.submitted {
		shares = append(shares, s)
	}

	key, err := cryptoutil.ShamirCombine(shares)
	if err != nil {
		m.resetAttemptLocked()
		metrics.SealOperations.WithLabelValues("unseal", "failure").Inc()
		m.appendAudit(ctx, "seal.unseal", "failure")
		return Status{}, ErrInvalidShareSet
	}

	if !cryptoutil.VerifyHMACSHA256(key, []byte(verifyInfo), m.verifyTag) {
		cryptoutil.Zero(key)
		m.resetAttemptLocked()
		m.log.Warn("seal: reconstructed key failed verification")
		metrics.SealOperations.WithLabelValues("unseal", "failure").Inc()
		m.appendAudit(ctx, "seal.unseal", "failure")
		return Status{}, ErrInvalidShareSet
	}

	m.masterKey = key
	m.unsealed = true
	m.resetAttemptLocked()

	m.log.Info("seal unsealed")
	metrics.SealState.Set(1)
	metrics.UnsealProgress.Set(0)
	metrics.SealOperations.WithLabelValues("unseal", "success").Inc()
	m.appendAudit(ctx, "seal.unseal", "success")
	return m.statusLocked(), nil
}

func (m *Manager) resetAttemptLocked() {
	for k := range m.submitted {
		delete(m.submitted, k)
	}
}

// Seal zeroes the in-memory master key and returns to the Sealed state.
func (m *Manager) Seal(ctx context.Context) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return Status{}, ErrNotInitialized
	}

	if m.masterKey != nil {
		cryptoutil.Zero(m.masterKey)
		m.masterKey = nil
	}
	m.unsealed = false
	m.resetAttemptLocked()

	m.log.Info("seal sealed")
	metrics.SealState.Set(0)
	metrics.SealOperations.WithLabelValues("seal", "success").Inc()
	m.appendAudit(ctx, "seal.seal", "success")
	return m.statusLocked(), nil
}

// Status reports the current state without mutating it.
func (m *Manager) Status(ctx context.Context) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

func (m *Manager) statusLocked() Status {
	return Status{
		Initialized: m.initialized,
		Sealed:      !m.unsealed,
		Progress:    len(m.submitted),
		Threshold:   m.threshold,
		TotalShares: m.totalShares,
	}
}

// MasterKey implements KeyHandle: a copy of the master key while
// unsealed, ErrSealed otherwise. Callers should cryptoutil.Zero the
// returned slice once done with it.
func (m *Manager) MasterKey() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.unsealed {
		return nil, ErrSealed
	}
	cp := make([]byte, len(m.masterKey))
	copy(cp, m.masterKey)
	return cp, nil
}

var _ KeyHandle = (*Manager)(nil)
