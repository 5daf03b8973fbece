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

package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by any sub-store when the requested record
// does not exist.
var ErrNotFound = errors.New("storage: record not found")

// ErrAlreadyExists is returned when a create would overwrite an
// existing unique record.
var ErrAlreadyExists = errors.New("storage: record already exists")

// SealStore persists the seal-state record used by pkg/seal to decide
// whether the core has been initialized and to verify a reconstructed
// master key.
type SealStore interface {
	LoadSeal(ctx context.Context) (*SealRecord, error)
	SaveSeal(ctx context.Context, rec *SealRecord) error
}

// CertStore persists issued certificates for pkg/pki.
type CertStore interface {
	PutCertificate(ctx context.Context, cert *Certificate) error
	GetCertificate(ctx context.Context, serial string) (*Certificate, error)
	ListCertificates(ctx context.Context, role string) ([]*Certificate, error)
	RevokeCertificate(ctx context.Context, serial, reason string, at time.Time) error
	ListRevoked(ctx context.Context) ([]*Certificate, error)
}

// RoleStore persists AppRole roles and their minted secret_ids for
// pkg/approle.
type RoleStore interface {
	PutRole(ctx context.Context, role *Role) error
	GetRole(ctx context.Context, name string) (*Role, error)
	GetRoleByRoleID(ctx context.Context, roleID string) (*Role, error)
	DeleteRole(ctx context.Context, name string) error
	ListRoles(ctx context.Context) ([]*Role, error)

	PutSecretID(ctx context.Context, rec *SecretIDRecord) error
	GetSecretID(ctx context.Context, roleName, hashedSecretID string) (*SecretIDRecord, error)
	ConsumeSecretID(ctx context.Context, roleName, hashedSecretID string) error
	DeleteSecretID(ctx context.Context, roleName, hashedSecretID string) error
}

// PolicyStore persists named policies for pkg/policy.
type PolicyStore interface {
	PutPolicy(ctx context.Context, policy *Policy) error
	GetPolicy(ctx context.Context, name string) (*Policy, error)
	DeletePolicy(ctx context.Context, name string) error
	ListPolicies(ctx context.Context) ([]*Policy, error)
}

// SecretStore persists versioned KV secrets for pkg/secrets.
type SecretStore interface {
	PutSecretVersion(ctx context.Context, v *SecretVersion) error
	GetSecretVersion(ctx context.Context, path string, version int) (*SecretVersion, error)
	// GetLatestSecretVersion returns the highest non-destroyed version.
	GetLatestSecretVersion(ctx context.Context, path string) (*SecretVersion, error)
	ListSecretVersions(ctx context.Context, path string) ([]*SecretVersion, error)
	ListSecretPaths(ctx context.Context, prefix string) ([]string, error)
	SoftDeleteSecretVersion(ctx context.Context, path string, version int, at time.Time) error
	DestroySecretVersion(ctx context.Context, path string, version int) error
	DeleteSecretMetadata(ctx context.Context, path string) error
}

// LeaseStore persists dynamic credential leases for pkg/lease.
type LeaseStore interface {
	PutLease(ctx context.Context, l *LeaseRecord) error
	GetLease(ctx context.Context, id string) (*LeaseRecord, error)
	ListActiveLeases(ctx context.Context) ([]*LeaseRecord, error)
	ListExpiredLeases(ctx context.Context, asOf time.Time) ([]*LeaseRecord, error)
	RevokeLease(ctx context.Context, id string, at time.Time) error
	DeleteLease(ctx context.Context, id string) error
}

// AuditStore persists the hash-chained audit log for pkg/audit.
type AuditStore interface {
	AppendAuditEntry(ctx context.Context, e *AuditEntry) error
	LastAuditEntry(ctx context.Context) (*AuditEntry, error)
	RangeAuditEntries(ctx context.Context, fromSeq, toSeq uint64) ([]*AuditEntry, error)
}

// Backend aggregates every sub-store a backend must implement, plus
// lifecycle management. memstore, boltstore, and postgres each
// implement Backend in full.
type Backend interface {
	SealStore
	CertStore
	RoleStore
	PolicyStore
	SecretStore
	LeaseStore
	AuditStore

	Ping(ctx context.Context) error
	Close() error
}
