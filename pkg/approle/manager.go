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

package approle

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sage-x-project/secretcore/internal/logger"
	"github.com/sage-x-project/secretcore/internal/metrics"
	"github.com/sage-x-project/secretcore/pkg/audit"
	"github.com/sage-x-project/secretcore/pkg/cryptoutil"
	"github.com/sage-x-project/secretcore/pkg/seal"
	"github.com/sage-x-project/secretcore/pkg/storage"
)

const (
	secretIDSubkeyInfo = "approle-secretid"
	sessionSubkeyInfo  = "approle-session"
)

// Manager implements role registry management, secret_id bootstrap
// credential minting, and session-token login/validation.
type Manager struct {
	store    storage.RoleStore
	keys     seal.KeyHandle
	auditLog *audit.Log
	log      logger.Logger

	mu      sync.Mutex
	revoked map[string]time.Time // jti -> original expiry, pruned lazily
}

// NewManager returns a Manager reading/writing roles through store and
// signing session tokens with a subkey derived from keys' master key.
func NewManager(store storage.RoleStore, keys seal.KeyHandle, auditLog *audit.Log, log logger.Logger) *Manager {
	return &Manager{
		store:    store,
		keys:     keys,
		auditLog: auditLog,
		log:      log,
		revoked:  make(map[string]time.Time),
	}
}

func (m *Manager) appendAudit(ctx context.Context, entityID, operation, decision string) {
	_, err := m.auditLog.Append(ctx, audit.AppendInput{
		ActorType: "approle",
		EntityID:  entityID,
		Operation: operation,
		Decision:  decision,
	})
	if err != nil {
		m.log.Error("approle: audit append failed", logger.Error(err), logger.String("operation", operation))
	}
}

// CreateRole registers a new AppRole identity bound to policies.
func (m *Manager) CreateRole(ctx context.Context, name string, policies []string, opts RoleOptions) (*storage.Role, error) {
	if _, err := m.store.GetRole(ctx, name); err == nil {
		return nil, ErrRoleExists
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("approle: check existing role %q: %w", name, err)
	}

	role := &storage.Role{
		Name:          name,
		RoleID:        uuid.NewString(),
		Policies:      policies,
		TokenTTL:      opts.TokenTTL,
		TokenMaxTTL:   opts.TokenMaxTTL,
		SecretIDTTL:   opts.SecretIDTTL,
		SecretIDBound: opts.SecretIDBound,
		CreatedAt:     time.Now().UTC(),
	}
	if err := m.store.PutRole(ctx, role); err != nil {
		return nil, fmt.Errorf("approle: create role %q: %w", name, err)
	}
	m.log.Info("approle: role created", logger.String("role", name), logger.String("role_id", role.RoleID))
	m.appendAudit(ctx, role.RoleID, "auth.create_role", "success")
	return role, nil
}

func (m *Manager) GetRole(ctx context.Context, name string) (*storage.Role, error) {
	role, err := m.store.GetRole(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrRoleNotFound
	}
	return role, err
}

func (m *Manager) DeleteRole(ctx context.Context, name string) error {
	return m.store.DeleteRole(ctx, name)
}

func (m *Manager) ListRoles(ctx context.Context) ([]*storage.Role, error) {
	return m.store.ListRoles(ctx)
}

// MintSecretID issues a new bootstrap credential for role. numUses caps
// how many logins it is good for; 0 means unlimited. The plaintext
// secret_id is returned once and is never persisted — only its
// HMAC-SHA256 digest under a master-key-derived subkey is, doubling as
// the deterministic lookup key and the authentication check.
func (m *Manager) MintSecretID(ctx context.Context, roleName string, numUses int) (string, *storage.SecretIDRecord, error) {
	role, err := m.store.GetRole(ctx, roleName)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil, ErrRoleNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("approle: load role %q: %w", roleName, err)
	}

	raw, err := cryptoutil.RandomBytes(32)
	if err != nil {
		return "", nil, fmt.Errorf("approle: generate secret_id: %w", err)
	}
	secretID := base64.RawURLEncoding.EncodeToString(raw)

	hashed, err := m.hashSecretID(secretID)
	if err != nil {
		return "", nil, err
	}

	rec := &storage.SecretIDRecord{
		RoleName:       roleName,
		HashedSecretID: hashed,
		UsesRemaining:  numUses,
		CreatedAt:      time.Now().UTC(),
	}
	if role.SecretIDTTL > 0 {
		expires := rec.CreatedAt.Add(role.SecretIDTTL)
		rec.ExpiresAt = &expires
	}
	if err := m.store.PutSecretID(ctx, rec); err != nil {
		return "", nil, fmt.Errorf("approle: persist secret_id for role %q: %w", roleName, err)
	}

	metrics.SecretIDsGenerated.WithLabelValues(roleName).Inc()
	m.log.Info("approle: secret_id minted", logger.String("role", roleName))
	m.appendAudit(ctx, role.RoleID, "auth.mint_secret_id", "success")
	return secretID, rec, nil
}

// Login authenticates a role_id/secret_id pair and mints a session
// token bound to the role's policies. certSerial, if non-empty, binds
// the minted token to that client certificate serial so agentsession
// can reject replay from a different connection. Every rejection
// reason collapses to ErrInvalidCredentials so a caller cannot probe
// which part of the pair was wrong.
func (m *Manager) Login(ctx context.Context, roleID, secretID, certSerial string) (*LoginResult, error) {
	role, err := m.store.GetRoleByRoleID(ctx, roleID)
	if err != nil || role.Disabled {
		m.wasteCompareTime(secretID)
		metrics.LoginAttempts.WithLabelValues("deny").Inc()
		m.appendAudit(ctx, roleID, "auth.login", "deny")
		return nil, ErrInvalidCredentials
	}

	if role.SecretIDBound {
		if secretID == "" {
			m.wasteCompareTime(secretID)
			metrics.LoginAttempts.WithLabelValues("deny").Inc()
			m.appendAudit(ctx, role.RoleID, "auth.login", "deny")
			return nil, ErrInvalidCredentials
		}
		if err := m.consumeSecretID(ctx, role.Name, secretID); err != nil {
			metrics.LoginAttempts.WithLabelValues("deny").Inc()
			m.appendAudit(ctx, role.RoleID, "auth.login", "deny")
			return nil, ErrInvalidCredentials
		}
	}

	ttl := role.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	token, expiresAt, err := m.mintSessionToken(role, certSerial, ttl)
	if err != nil {
		return nil, fmt.Errorf("approle: mint session token: %w", err)
	}

	metrics.LoginAttempts.WithLabelValues("allow").Inc()
	metrics.SessionTokensIssued.Inc()
	m.log.Info("approle: login succeeded", logger.String("role", role.Name))
	m.appendAudit(ctx, role.RoleID, "auth.login", "allow")
	return &LoginResult{
		Token:     token,
		RoleName:  role.Name,
		EntityID:  role.RoleID,
		Policies:  role.Policies,
		ExpiresAt: expiresAt,
	}, nil
}

// Validate parses and verifies a session token, returning the entity
// context and policy snapshot it carries. presentedCertSerial is
// checked against any certificate binding recorded on the token.
func (m *Manager) Validate(token, presentedCertSerial string) (*ValidateResult, error) {
	subkey, err := m.sessionSubkey()
	if err != nil {
		return nil, err
	}

	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("approle: unexpected signing method %v", t.Header["alg"])
		}
		return subkey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	if m.isRevoked(claims.ID) {
		return nil, ErrTokenRevoked
	}
	if claims.CertSerial != "" && claims.CertSerial != presentedCertSerial {
		return nil, ErrTokenInvalid
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return &ValidateResult{
		RoleName:   claims.RoleName,
		EntityID:   claims.EntityID,
		Policies:   claims.Policies,
		ExpiresAt:  expiresAt,
		CertSerial: claims.CertSerial,
	}, nil
}

// Revoke adds token's jti to the in-process revocation set. Session
// tokens are short-lived credentials for an active agent connection,
// so a single-node revocation cache is sufficient here: the set is
// pruned of entries past their own expiry as Revoke and Validate run.
func (m *Manager) Revoke(token string) error {
	subkey, err := m.sessionSubkey()
	if err != nil {
		return err
	}
	claims := &sessionClaims{}
	_, _, parseErr := jwt.NewParser().ParseUnverified(token, claims)
	if parseErr != nil {
		return ErrTokenInvalid
	}
	// Confirm the signature before trusting the claims we're about to
	// revoke by jti — an attacker shouldn't be able to poison the
	// revocation set with an unsigned token's jti.
	if _, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) { return subkey, nil }); err != nil {
		if !errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenInvalid
		}
	}

	expiry := time.Now().UTC().Add(time.Hour)
	if claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
	}

	m.mu.Lock()
	m.pruneRevokedLocked()
	m.revoked[claims.ID] = expiry
	m.mu.Unlock()
	return nil
}

func (m *Manager) isRevoked(jti string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneRevokedLocked()
	_, ok := m.revoked[jti]
	return ok
}

// pruneRevokedLocked drops entries whose token would have expired
// anyway, bounding the set's growth. Callers must hold m.mu.
func (m *Manager) pruneRevokedLocked() {
	now := time.Now().UTC()
	for jti, expiry := range m.revoked {
		if now.After(expiry) {
			delete(m.revoked, jti)
		}
	}
}

func (m *Manager) mintSessionToken(role *storage.Role, certSerial string, ttl time.Duration) (string, time.Time, error) {
	subkey, err := m.sessionSubkey()
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	claims := &sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "secretcore",
			Subject:   role.RoleID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
		RoleName:   role.Name,
		EntityID:   role.RoleID,
		Policies:   role.Policies,
		CertSerial: certSerial,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(subkey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (m *Manager) sessionSubkey() ([]byte, error) {
	master, err := m.keys.MasterKey()
	if err != nil {
		return nil, err
	}
	defer cryptoutil.Zero(master)
	return cryptoutil.DeriveSubkey(master, sessionSubkeyInfo)
}

func (m *Manager) hashSecretID(secretID string) (string, error) {
	master, err := m.keys.MasterKey()
	if err != nil {
		return "", err
	}
	defer cryptoutil.Zero(master)
	subkey, err := cryptoutil.DeriveSubkey(master, secretIDSubkeyInfo)
	if err != nil {
		return "", err
	}
	defer cryptoutil.Zero(subkey)
	return hex.EncodeToString(cryptoutil.HMACSHA256(subkey, []byte(secretID))), nil
}

// consumeSecretID verifies secretID against role's stored record and,
// if it checks out, decrements its remaining-uses counter (or deletes
// it once exhausted). A missing, expired, or exhausted record and a
// bad digest are all reported identically so Login can collapse them
// into ErrInvalidCredentials.
func (m *Manager) consumeSecretID(ctx context.Context, roleName, secretID string) error {
	hashed, err := m.hashSecretID(secretID)
	if err != nil {
		return err
	}
	rec, err := m.store.GetSecretID(ctx, roleName, hashed)
	if err != nil {
		return err
	}
	if rec.ExpiresAt != nil && time.Now().UTC().After(*rec.ExpiresAt) {
		_ = m.store.DeleteSecretID(ctx, roleName, hashed)
		return errors.New("approle: secret_id expired")
	}
	// ConsumeSecretID itself is uses-count aware: it leaves an
	// unlimited-use record (UsesRemaining == 0) untouched and deletes a
	// record that just hit zero.
	return m.store.ConsumeSecretID(ctx, roleName, hashed)
}

// wasteCompareTime runs the same HMAC computation a real secret_id
// check would, so a request for an unknown role_id takes roughly as
// long as one for a known role with a wrong secret_id.
func (m *Manager) wasteCompareTime(secretID string) {
	if secretID == "" {
		secretID = "secretcore-dummy-compare"
	}
	_, _ = m.hashSecretID(secretID)
}
