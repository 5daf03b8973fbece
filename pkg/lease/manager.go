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

package lease

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sage-x-project/secretcore/internal/logger"
	"github.com/sage-x-project/secretcore/internal/metrics"
	"github.com/sage-x-project/secretcore/pkg/audit"
	"github.com/sage-x-project/secretcore/pkg/cryptoutil"
	"github.com/sage-x-project/secretcore/pkg/seal"
	"github.com/sage-x-project/secretcore/pkg/storage"
)

const aeadInfo = "lease-aead"

const jitterWindow = 1 * time.Second

// Manager tracks the lifecycle of dynamic credentials: issuance against
// a named Backend, renewal bounded by max_ttl, explicit revocation, and
// a background sweep that revokes and reclaims expired leases.
type Manager struct {
	store    storage.LeaseStore
	keys     seal.KeyHandle
	auditLog *audit.Log
	log      logger.Logger

	sweepInterval time.Duration
	retryBase     time.Duration
	retryMax      time.Duration
	maxAttempts   int

	mu       sync.Mutex
	backends map[string]Backend
	revoking map[string]struct{}

	ticker *time.Ticker
	stopCh chan struct{}
	doneCh chan struct{}

	lastSweep atomic.Int64 // unix nanos, read by the health checker
}

// NewManager returns a Manager. Zero-valued tuning parameters fall
// back to internal/config.LeaseConfig's defaults.
func NewManager(store storage.LeaseStore, keys seal.KeyHandle, auditLog *audit.Log, log logger.Logger, sweepInterval, retryBase, retryMax time.Duration, maxAttempts int) *Manager {
	if sweepInterval <= 0 {
		sweepInterval = 30 * time.Second
	}
	if retryBase <= 0 {
		retryBase = time.Second
	}
	if retryMax <= 0 {
		retryMax = 5 * time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &Manager{
		store:         store,
		keys:          keys,
		auditLog:      auditLog,
		log:           log,
		sweepInterval: sweepInterval,
		retryBase:     retryBase,
		retryMax:      retryMax,
		maxAttempts:   maxAttempts,
		backends:      make(map[string]Backend),
		revoking:      make(map[string]struct{}),
	}
}

// RegisterBackend makes a dynamic-credential backend available to
// Issue under name.
func (m *Manager) RegisterBackend(name string, b Backend) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backends[name] = b
}

func (m *Manager) backend(name string) (Backend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.backends[name]
	if !ok {
		return nil, ErrBackendNotFound
	}
	return b, nil
}

// Issue mints a dynamic credential against backendName and records its
// lease. The plaintext credential is returned once and is not
// retrievable again; only its AEAD-sealed form is persisted, for
// auditability, not for later decryption by callers.
func (m *Manager) Issue(ctx context.Context, backendName, entityID string, ttl, maxTTL time.Duration, renewable bool) (*Issued, error) {
	b, err := m.backend(backendName)
	if err != nil {
		return nil, err
	}

	credential, err := b.Mint(ctx, entityID, ttl)
	if err != nil {
		return nil, fmt.Errorf("lease: mint from backend %q: %w", backendName, err)
	}

	key, err := m.aeadKey()
	if err != nil {
		return nil, err
	}
	defer cryptoutil.Zero(key)

	now := time.Now()
	record := &storage.LeaseRecord{
		ID:        uuid.NewString(),
		Backend:   backendName,
		EntityID:  entityID,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
		Renewable: renewable,
		MaxTTL:    maxTTL,
	}
	sealed, err := cryptoutil.Seal(key, credential, []byte(record.ID))
	if err != nil {
		return nil, fmt.Errorf("lease: seal credential: %w", err)
	}
	record.Data = sealed

	if err := m.store.PutLease(ctx, record); err != nil {
		return nil, fmt.Errorf("lease: put lease: %w", err)
	}

	metrics.LeasesIssued.WithLabelValues(backendName).Inc()
	metrics.LeasesActive.Inc()
	m.appendAudit(ctx, entityID, "secret.dynamic_issue", record.ID, "success")

	return &Issued{Lease: toView(record), Credential: credential}, nil
}

// Get returns the lease view for id.
func (m *Manager) Get(ctx context.Context, id string) (*LeaseView, error) {
	r, err := m.store.GetLease(ctx, id)
	if err != nil {
		return nil, err
	}
	v := toView(r)
	return &v, nil
}

// List returns every non-revoked lease.
func (m *Manager) List(ctx context.Context) ([]LeaseView, error) {
	records, err := m.store.ListActiveLeases(ctx)
	if err != nil {
		return nil, fmt.Errorf("lease: list active leases: %w", err)
	}
	out := make([]LeaseView, 0, len(records))
	for _, r := range records {
		out = append(out, toView(r))
	}
	return out, nil
}

// Renew extends a lease's expiry by increment, clamped to
// issued_at+max_ttl per spec.md §4.9.
func (m *Manager) Renew(ctx context.Context, id string, increment time.Duration) (*LeaseView, error) {
	record, err := m.store.GetLease(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Revoked {
		return nil, ErrAlreadyRevoked
	}
	now := time.Now()
	if now.After(record.ExpiresAt) {
		return nil, ErrAlreadyRevoked
	}
	if !record.Renewable {
		return nil, ErrNotRenewable
	}

	maxExpiry := record.IssuedAt.Add(record.MaxTTL)
	if !maxExpiry.After(now) {
		return nil, ErrRenewalExceedsMaxTTL
	}

	if increment == 0 {
		v := toView(record)
		return &v, nil
	}

	newExpiry := now.Add(increment)
	if newExpiry.After(maxExpiry) {
		newExpiry = maxExpiry
	}
	record.ExpiresAt = newExpiry

	if err := m.store.PutLease(ctx, record); err != nil {
		return nil, fmt.Errorf("lease: put renewed lease: %w", err)
	}
	m.appendAudit(ctx, record.EntityID, "lease.renew", record.ID, "success")

	v := toView(record)
	return &v, nil
}

// Revoke immediately tears down a lease's backend credential and marks
// it revoked, retrying backend failures with exponential backoff.
func (m *Manager) Revoke(ctx context.Context, id string) error {
	record, err := m.store.GetLease(ctx, id)
	if err != nil {
		return err
	}
	if record.Revoked {
		return ErrAlreadyRevoked
	}
	return m.revokeRecord(ctx, record, "lease.revoke")
}

// Stats summarizes the current lease population.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	active, err := m.store.ListActiveLeases(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("lease: list active leases: %w", err)
	}
	return Stats{Active: len(active)}, nil
}

// SweepOnce revokes every lease past its expires_at that isn't already
// revoked or mid-revocation, per spec.md §4.9's idempotent sweeper.
// It is safe to call concurrently with itself and with explicit Revoke.
func (m *Manager) SweepOnce(ctx context.Context) (int, error) {
	expired, err := m.store.ListExpiredLeases(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("lease: list expired leases: %w", err)
	}

	revoked := 0
	for _, record := range expired {
		if !m.markRevoking(record.ID) {
			continue
		}
		if err := m.revokeRecord(ctx, record, "lease.expire"); err != nil {
			m.log.Error("lease: sweep revoke failed", logger.Error(err), logger.String("lease_id", record.ID))
			m.unmarkRevoking(record.ID)
			continue
		}
		m.unmarkRevoking(record.ID)
		revoked++
	}
	return revoked, nil
}

func (m *Manager) markRevoking(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.revoking[id]; ok {
		return false
	}
	m.revoking[id] = struct{}{}
	return true
}

func (m *Manager) unmarkRevoking(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.revoking, id)
}

// revokeRecord calls the backend's Revoke with exponential-backoff
// retry. On persistent failure it marks the lease revoked locally
// anyway per spec.md §4.9's "credential is assumed compromised" rule
// and audits lease.revocation_failed instead of failing the caller.
func (m *Manager) revokeRecord(ctx context.Context, record *storage.LeaseRecord, operation string) error {
	b, err := m.backend(record.Backend)
	if err == nil {
		credential, decErr := m.decryptCredential(record)
		if decErr != nil {
			m.log.Error("lease: decrypt credential for revoke", logger.Error(decErr), logger.String("lease_id", record.ID))
		} else {
			revokeErr := m.retryRevoke(ctx, b, credential, record.ID)
			if revokeErr != nil {
				metrics.LeaseRevocationFailures.WithLabelValues(record.Backend).Inc()
				m.log.Error("lease: backend revocation permanently failed, marking revoked locally",
					logger.Error(revokeErr), logger.String("lease_id", record.ID))
				m.appendAudit(ctx, record.EntityID, "lease.revocation_failed", record.ID, "failure")
			}
		}
	} else {
		m.log.Error("lease: unknown backend for revoke, marking revoked locally", logger.Error(err), logger.String("lease_id", record.ID))
	}

	now := time.Now()
	if err := m.store.RevokeLease(ctx, record.ID, now); err != nil {
		return fmt.Errorf("lease: mark revoked: %w", err)
	}
	metrics.LeasesActive.Dec()
	if operation == "lease.expire" {
		metrics.LeasesExpired.Inc()
	}
	m.appendAudit(ctx, record.EntityID, operation, record.ID, "success")
	return nil
}

func (m *Manager) retryRevoke(ctx context.Context, b Backend, credential []byte, leaseID string) error {
	delay := m.retryBase
	var lastErr error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		if err := b.Revoke(ctx, credential); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == m.maxAttempts {
			break
		}
		jittered := delay + rand.N(jitterWindow)
		select {
		case <-time.After(jittered):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
		if delay > m.retryMax {
			delay = m.retryMax
		}
	}
	return fmt.Errorf("lease %s: backend revoke exhausted retries: %w", leaseID, lastErr)
}

func (m *Manager) decryptCredential(record *storage.LeaseRecord) ([]byte, error) {
	key, err := m.aeadKey()
	if err != nil {
		return nil, err
	}
	defer cryptoutil.Zero(key)
	return cryptoutil.Open(key, record.Data, []byte(record.ID))
}

func (m *Manager) aeadKey() ([]byte, error) {
	master, err := m.keys.MasterKey()
	if err != nil {
		return nil, err
	}
	defer cryptoutil.Zero(master)
	key, err := cryptoutil.DeriveSubkey(master, aeadInfo)
	if err != nil {
		return nil, fmt.Errorf("lease: derive aead key: %w", err)
	}
	return key, nil
}

func (m *Manager) appendAudit(ctx context.Context, entityID, operation, leaseID, decision string) {
	_, err := m.auditLog.Append(ctx, audit.AppendInput{
		EntityID:  entityID,
		Operation: operation,
		Path:      leaseID,
		Decision:  decision,
	})
	if err != nil {
		m.log.Error("lease: audit append failed", logger.Error(err), logger.String("operation", operation))
	}
}

// StartSweep runs the background sweeper on sweepInterval until Stop
// is called or ctx is canceled, mirroring the teacher's
// runCleanup/cleanupExpiredSessions ticker shape generalized from
// session expiry to lease expiry.
func (m *Manager) StartSweep(ctx context.Context) {
	m.mu.Lock()
	if m.ticker != nil {
		m.mu.Unlock()
		return
	}
	m.ticker = time.NewTicker(m.sweepInterval)
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	ticker := m.ticker
	stopCh := m.stopCh
	doneCh := m.doneCh
	m.mu.Unlock()
	m.lastSweep.Store(time.Now().UnixNano())

	go func() {
		defer close(doneCh)
		for {
			select {
			case <-ticker.C:
				if _, err := m.SweepOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
					m.log.Error("lease: sweep failed", logger.Error(err))
				}
				m.lastSweep.Store(time.Now().UnixNano())
			case <-stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the background sweeper started by StartSweep, if running.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.ticker == nil {
		m.mu.Unlock()
		return
	}
	m.ticker.Stop()
	close(m.stopCh)
	doneCh := m.doneCh
	m.ticker = nil
	m.mu.Unlock()
	<-doneCh
}

// SweepInterval returns the configured interval between sweeper
// passes, for callers sizing a staleness threshold around it.
func (m *Manager) SweepInterval() time.Duration {
	return m.sweepInterval
}

// LastSweepTime returns when the background sweeper last completed a
// pass, for use by pkg/health.LeaseSweeperHealthCheck. StartSweep also
// stamps it, so it is zero only before StartSweep is called.
func (m *Manager) LastSweepTime() time.Time {
	ns := m.lastSweep.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func toView(r *storage.LeaseRecord) LeaseView {
	return LeaseView{
		ID:        r.ID,
		Backend:   r.Backend,
		EntityID:  r.EntityID,
		IssuedAt:  r.IssuedAt,
		ExpiresAt: r.ExpiresAt,
		Renewable: r.Renewable,
		MaxTTL:    r.MaxTTL,
		Revoked:   r.Revoked,
		RevokedAt: r.RevokedAt,
	}
}
