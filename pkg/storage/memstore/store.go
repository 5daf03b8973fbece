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

// Package memstore implements storage.Backend entirely in memory. It
// backs unit tests and single-process development runs; nothing here
// survives a restart.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sage-x-project/secretcore/pkg/storage"
)

// Store implements storage.Backend with in-memory maps guarded by a
// single RWMutex. Simplicity over sharding: this backend only ever
// serves tests and single-process demos.
type Store struct {
	mu sync.RWMutex

	seal *storage.SealRecord

	certs map[string]*storage.Certificate // by serial number

	roles      map[string]*storage.Role   // by name
	roleByID   map[string]string          // role_id -> name
	secretIDs  map[string]*storage.SecretIDRecord // key: roleName+"/"+hashedSecretID

	policies map[string]*storage.Policy

	secrets map[string][]*storage.SecretVersion // by path, ordered by version

	leases map[string]*storage.LeaseRecord

	audit []*storage.AuditEntry
}

// New creates an empty in-memory backend.
func New() *Store {
	return &Store{
		certs:     make(map[string]*storage.Certificate),
		roles:     make(map[string]*storage.Role),
		roleByID:  make(map[string]string),
		secretIDs: make(map[string]*storage.SecretIDRecord),
		policies:  make(map[string]*storage.Policy),
		secrets:   make(map[string][]*storage.SecretVersion),
		leases:    make(map[string]*storage.LeaseRecord),
	}
}

func (s *Store) Ping(ctx context.Context) error { return nil }
func (s *Store) Close() error                   { return nil }

// -- seal --

func (s *Store) LoadSeal(ctx context.Context) (*storage.SealRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.seal == nil {
		return nil, storage.ErrNotFound
	}
	rec := *s.seal
	return &rec, nil
}

func (s *Store) SaveSeal(ctx context.Context, rec *storage.SealRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.seal = &cp
	return nil
}

// -- certificates --

func (s *Store) PutCertificate(ctx context.Context, cert *storage.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *cert
	s.certs[cert.SerialNumber] = &cp
	return nil
}

func (s *Store) GetCertificate(ctx context.Context, serial string) (*storage.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cert, ok := s.certs[serial]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *cert
	return &cp, nil
}

func (s *Store) ListCertificates(ctx context.Context, role string) ([]*storage.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.Certificate
	for _, cert := range s.certs {
		if role == "" || cert.Role == role {
			cp := *cert
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SerialNumber < out[j].SerialNumber })
	return out, nil
}

func (s *Store) RevokeCertificate(ctx context.Context, serial, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cert, ok := s.certs[serial]
	if !ok {
		return storage.ErrNotFound
	}
	cert.Revoked = true
	cert.RevokedAt = &at
	cert.RevokeReason = reason
	return nil
}

func (s *Store) ListRevoked(ctx context.Context) ([]*storage.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.Certificate
	for _, cert := range s.certs {
		if cert.Revoked {
			cp := *cert
			out = append(out, &cp)
		}
	}
	return out, nil
}

// -- roles / secret IDs --

func (s *Store) PutRole(ctx context.Context, role *storage.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *role
	s.roles[role.Name] = &cp
	s.roleByID[role.RoleID] = role.Name
	return nil
}

func (s *Store) GetRole(ctx context.Context, name string) (*storage.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	role, ok := s.roles[name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *role
	return &cp, nil
}

func (s *Store) GetRoleByRoleID(ctx context.Context, roleID string) (*storage.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name, ok := s.roleByID[roleID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *s.roles[name]
	return &cp, nil
}

func (s *Store) DeleteRole(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	role, ok := s.roles[name]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.roleByID, role.RoleID)
	delete(s.roles, name)
	return nil
}

func (s *Store) ListRoles(ctx context.Context) ([]*storage.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.Role
	for _, r := range s.roles {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func secretIDKey(roleName, hashed string) string { return roleName + "/" + hashed }

func (s *Store) PutSecretID(ctx context.Context, rec *storage.SecretIDRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.secretIDs[secretIDKey(rec.RoleName, rec.HashedSecretID)] = &cp
	return nil
}

func (s *Store) GetSecretID(ctx context.Context, roleName, hashedSecretID string) (*storage.SecretIDRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.secretIDs[secretIDKey(roleName, hashedSecretID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *Store) ConsumeSecretID(ctx context.Context, roleName, hashedSecretID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := secretIDKey(roleName, hashedSecretID)
	rec, ok := s.secretIDs[key]
	if !ok {
		return storage.ErrNotFound
	}
	if rec.UsesRemaining > 0 {
		rec.UsesRemaining--
		if rec.UsesRemaining == 0 {
			delete(s.secretIDs, key)
		}
	}
	return nil
}

func (s *Store) DeleteSecretID(ctx context.Context, roleName, hashedSecretID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := secretIDKey(roleName, hashedSecretID)
	if _, ok := s.secretIDs[key]; !ok {
		return storage.ErrNotFound
	}
	delete(s.secretIDs, key)
	return nil
}

// -- policies --

func (s *Store) PutPolicy(ctx context.Context, policy *storage.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *policy
	s.policies[policy.Name] = &cp
	return nil
}

func (s *Store) GetPolicy(ctx context.Context, name string) (*storage.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.policies[name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) DeletePolicy(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.policies[name]; !ok {
		return storage.ErrNotFound
	}
	delete(s.policies, name)
	return nil
}

func (s *Store) ListPolicies(ctx context.Context) ([]*storage.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.Policy
	for _, p := range s.policies {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// -- secrets --

func (s *Store) PutSecretVersion(ctx context.Context, v *storage.SecretVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *v
	versions := s.secrets[v.Path]
	for i, existing := range versions {
		if existing.Version == v.Version {
			versions[i] = &cp
			return nil
		}
	}
	s.secrets[v.Path] = append(versions, &cp)
	return nil
}

func (s *Store) GetSecretVersion(ctx context.Context, path string, version int) (*storage.SecretVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, v := range s.secrets[path] {
		if v.Version == version {
			cp := *v
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) GetLatestSecretVersion(ctx context.Context, path string) (*storage.SecretVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.secrets[path]
	var latest *storage.SecretVersion
	for _, v := range versions {
		if v.Destroyed {
			continue
		}
		if latest == nil || v.Version > latest.Version {
			latest = v
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *Store) ListSecretVersions(ctx context.Context, path string) ([]*storage.SecretVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.secrets[path]
	if len(versions) == 0 {
		return nil, storage.ErrNotFound
	}
	out := make([]*storage.SecretVersion, len(versions))
	for i, v := range versions {
		cp := *v
		out[i] = &cp
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (s *Store) ListSecretPaths(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for path, versions := range s.secrets {
		if len(versions) == 0 {
			continue
		}
		if len(prefix) == 0 || (len(path) >= len(prefix) && path[:len(prefix)] == prefix) {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) SoftDeleteSecretVersion(ctx context.Context, path string, version int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range s.secrets[path] {
		if v.Version == version {
			v.Deleted = true
			v.DeletedAt = &at
			return nil
		}
	}
	return storage.ErrNotFound
}

func (s *Store) DestroySecretVersion(ctx context.Context, path string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range s.secrets[path] {
		if v.Version == version {
			v.Destroyed = true
			v.Data = nil
			return nil
		}
	}
	return storage.ErrNotFound
}

func (s *Store) DeleteSecretMetadata(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.secrets[path]; !ok {
		return storage.ErrNotFound
	}
	delete(s.secrets, path)
	return nil
}

// -- leases --

func (s *Store) PutLease(ctx context.Context, l *storage.LeaseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *l
	s.leases[l.ID] = &cp
	return nil
}

func (s *Store) GetLease(ctx context.Context, id string) (*storage.LeaseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.leases[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *Store) ListActiveLeases(ctx context.Context) ([]*storage.LeaseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.LeaseRecord
	for _, l := range s.leases {
		if !l.Revoked {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) ListExpiredLeases(ctx context.Context, asOf time.Time) ([]*storage.LeaseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.LeaseRecord
	for _, l := range s.leases {
		if !l.Revoked && asOf.After(l.ExpiresAt) {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) RevokeLease(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.leases[id]
	if !ok {
		return storage.ErrNotFound
	}
	l.Revoked = true
	l.RevokedAt = &at
	return nil
}

func (s *Store) DeleteLease(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.leases[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.leases, id)
	return nil
}

// -- audit --

func (s *Store) AppendAuditEntry(ctx context.Context, e *storage.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.audit) > 0 && e.Sequence != s.audit[len(s.audit)-1].Sequence+1 {
		return fmt.Errorf("memstore: out-of-order audit append: got seq %d, want %d", e.Sequence, s.audit[len(s.audit)-1].Sequence+1)
	}
	cp := *e
	s.audit = append(s.audit, &cp)
	return nil
}

func (s *Store) LastAuditEntry(ctx context.Context) (*storage.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.audit) == 0 {
		return nil, storage.ErrNotFound
	}
	cp := *s.audit[len(s.audit)-1]
	return &cp, nil
}

func (s *Store) RangeAuditEntries(ctx context.Context, fromSeq, toSeq uint64) ([]*storage.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.AuditEntry
	for _, e := range s.audit {
		if e.Sequence >= fromSeq && e.Sequence <= toSeq {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

var _ storage.Backend = (*Store)(nil)
