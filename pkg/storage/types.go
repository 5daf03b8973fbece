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

// Package storage defines the persistence abstraction every secretcore
// component is built against, plus the domain records it stores. Three
// backends implement it: memory (tests), boltstore (embedded single
// node), and postgres (multi-node).
package storage

import "time"

// SealRecord is the durable seal-state record: the master key's
// verification blob and the Shamir scheme's parameters. It never holds
// the master key itself.
type SealRecord struct {
	Initialized     bool
	SecretShares    int
	SecretThreshold int
	// Verification is AEAD-sealed known plaintext under the master key,
	// used to confirm a reconstructed key is correct before trusting it.
	Verification []byte
}

// Certificate is an issued X.509 certificate tracked for revocation and
// chain verification.
type Certificate struct {
	SerialNumber string
	// Role classifies the certificate: root_ca, intermediate_ca,
	// agent_client, app_client, admin_client.
	Role         string
	KeyType      string // rsa-2048, rsa-4096, ecdsa-p384
	CommonName   string
	IsCA         bool
	// IssuerSerial is the serial of the CA that signed this certificate,
	// empty for a self-signed root.
	IssuerSerial string
	DER          []byte
	// WrappedPrivateKey is the AEAD-sealed PKCS#8 private key, present
	// only for CA certificates. Client-cert keys are never persisted.
	WrappedPrivateKey []byte
	NotBefore         time.Time
	NotAfter          time.Time
	Revoked           bool
	RevokedAt         *time.Time
	RevokeReason      string
}

// Role is an AppRole identity: the stable role_id and the policies it is
// bound to. SecretIDs are tracked separately since many can exist per
// role and each has its own TTL/use-count.
type Role struct {
	Name          string
	RoleID        string
	Policies      []string
	TokenTTL      time.Duration
	TokenMaxTTL   time.Duration
	SecretIDTTL   time.Duration
	SecretIDBound bool // require secret_id at login (vs. CIDR-only binding)
	Disabled      bool
	CreatedAt     time.Time
}

// SecretIDRecord is a minted AppRole bootstrap credential. HashedSecretID
// stores only a salted hash; the plaintext secret_id is returned once at
// generation time and never persisted.
type SecretIDRecord struct {
	RoleName       string
	HashedSecretID string
	ExpiresAt      *time.Time
	UsesRemaining  int // 0 = unlimited
	CreatedAt      time.Time
}

// Policy is a named set of path rules sharing one effect, evaluated by
// the policy engine. Deny policies always win over allow policies bound
// to the same entity.
type Policy struct {
	Name   string
	Effect string // allow, deny
	Rules  []PolicyRule
}

// PolicyRule grants or denies capabilities (under its Policy's effect)
// on a glob path pattern, with optional conditions narrowing when it
// applies.
type PolicyRule struct {
	Path         string
	Capabilities []string // read, create, update, delete, list
	Conditions   *PolicyConditions
}

// PolicyConditions restricts a PolicyRule to a time-of-day window,
// specific days of week, source CIDRs, and/or a maximum lease TTL.
type PolicyConditions struct {
	TimeOfDayStart *string // "HH:MM" UTC
	TimeOfDayEnd   *string
	DaysOfWeek     []time.Weekday
	SourceCIDRs    []string
	MaxTTL         *time.Duration
}

// SecretVersion is one version of a versioned KV secret.
type SecretVersion struct {
	Path       string
	Version    int
	Data       []byte // AEAD-sealed JSON payload
	CreatedAt  time.Time
	Deleted    bool // soft-deleted: data retained, reads blocked
	DeletedAt  *time.Time
	Destroyed  bool // permanently destroyed: data overwritten/dropped
}

// LeaseRecord tracks a dynamic credential's lifecycle.
type LeaseRecord struct {
	ID          string
	Backend     string // name of the secret backend/role that issued it
	EntityID    string // AppRole entity the lease belongs to
	Data        []byte // AEAD-sealed credential material
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Renewable   bool
	MaxTTL      time.Duration
	Revoked     bool
	RevokedAt   *time.Time
}

// AuditEntry is one hash-chained, HMAC-signed audit log record.
type AuditEntry struct {
	Sequence  uint64
	RequestID string
	Timestamp time.Time
	ActorType string // role, admin, system
	EntityID  string
	Operation string // event_kind, e.g. "secret.read", "seal.unseal"
	Path      string // target
	Decision  string // outcome: allow, deny, success, failure
	Metadata  map[string]string
	PrevHash  []byte
	EntryHash []byte
	HMAC      []byte
}
