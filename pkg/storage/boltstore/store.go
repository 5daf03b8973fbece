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

// Package boltstore implements storage.Backend on an embedded BoltDB
// file, for single-node deployments that don't want an external
// database.
package boltstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/sage-x-project/secretcore/pkg/storage"
)

var (
	bucketSeal      = []byte("seal")
	bucketCerts     = []byte("certs")
	bucketRoles     = []byte("roles")
	bucketRoleIDs   = []byte("role_ids")
	bucketSecretIDs = []byte("secret_ids")
	bucketPolicies  = []byte("policies")
	bucketSecrets   = []byte("secrets")
	bucketLeases    = []byte("leases")
	bucketAudit     = []byte("audit")
)

const sealKey = "current"

// Store implements storage.Backend backed by a single bbolt file.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if needed) the bolt file at dataDir/secretcore.db
// and ensures every bucket exists.
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "secretcore.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", dbPath, err)
	}

	buckets := [][]byte{
		bucketSeal, bucketCerts, bucketRoles, bucketRoleIDs,
		bucketSecretIDs, bucketPolicies, bucketSecrets, bucketLeases, bucketAudit,
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.View(func(tx *bolt.Tx) error { return nil })
}

// -- seal --

func (s *Store) LoadSeal(ctx context.Context) (*storage.SealRecord, error) {
	var rec storage.SealRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSeal).Get([]byte(sealKey))
		if data == nil {
			return storage.ErrNotFound
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) SaveSeal(ctx context.Context, rec *storage.SealRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSeal).Put([]byte(sealKey), data)
	})
}

// -- certificates --

func (s *Store) PutCertificate(ctx context.Context, cert *storage.Certificate) error {
	data, err := json.Marshal(cert)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCerts).Put([]byte(cert.SerialNumber), data)
	})
}

func (s *Store) GetCertificate(ctx context.Context, serial string) (*storage.Certificate, error) {
	var cert storage.Certificate
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketCerts).Get([]byte(serial))
		if data == nil {
			return storage.ErrNotFound
		}
		return json.Unmarshal(data, &cert)
	})
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

func (s *Store) ListCertificates(ctx context.Context, role string) ([]*storage.Certificate, error) {
	var out []*storage.Certificate
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCerts).ForEach(func(k, v []byte) error {
			var cert storage.Certificate
			if err := json.Unmarshal(v, &cert); err != nil {
				return err
			}
			if role == "" || cert.Role == role {
				out = append(out, &cert)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SerialNumber < out[j].SerialNumber })
	return out, nil
}

func (s *Store) RevokeCertificate(ctx context.Context, serial, reason string, at time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCerts)
		data := b.Get([]byte(serial))
		if data == nil {
			return storage.ErrNotFound
		}
		var cert storage.Certificate
		if err := json.Unmarshal(data, &cert); err != nil {
			return err
		}
		cert.Revoked = true
		cert.RevokedAt = &at
		cert.RevokeReason = reason
		updated, err := json.Marshal(cert)
		if err != nil {
			return err
		}
		return b.Put([]byte(serial), updated)
	})
}

func (s *Store) ListRevoked(ctx context.Context) ([]*storage.Certificate, error) {
	all, err := s.ListCertificates(ctx, "")
	if err != nil {
		return nil, err
	}
	var out []*storage.Certificate
	for _, c := range all {
		if c.Revoked {
			out = append(out, c)
		}
	}
	return out, nil
}

// -- roles / secret IDs --

func (s *Store) PutRole(ctx context.Context, role *storage.Role) error {
	data, err := json.Marshal(role)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketRoles).Put([]byte(role.Name), data); err != nil {
			return err
		}
		return tx.Bucket(bucketRoleIDs).Put([]byte(role.RoleID), []byte(role.Name))
	})
}

func (s *Store) GetRole(ctx context.Context, name string) (*storage.Role, error) {
	var role storage.Role
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRoles).Get([]byte(name))
		if data == nil {
			return storage.ErrNotFound
		}
		return json.Unmarshal(data, &role)
	})
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (s *Store) GetRoleByRoleID(ctx context.Context, roleID string) (*storage.Role, error) {
	var name []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketRoleIDs).Get([]byte(roleID))
		if v == nil {
			return storage.ErrNotFound
		}
		name = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetRole(ctx, string(name))
}

func (s *Store) DeleteRole(ctx context.Context, name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRoles)
		data := b.Get([]byte(name))
		if data == nil {
			return storage.ErrNotFound
		}
		var role storage.Role
		if err := json.Unmarshal(data, &role); err != nil {
			return err
		}
		if err := tx.Bucket(bucketRoleIDs).Delete([]byte(role.RoleID)); err != nil {
			return err
		}
		return b.Delete([]byte(name))
	})
}

func (s *Store) ListRoles(ctx context.Context) ([]*storage.Role, error) {
	var out []*storage.Role
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRoles).ForEach(func(k, v []byte) error {
			var role storage.Role
			if err := json.Unmarshal(v, &role); err != nil {
				return err
			}
			out = append(out, &role)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func secretIDKey(roleName, hashed string) []byte { return []byte(roleName + "/" + hashed) }

func (s *Store) PutSecretID(ctx context.Context, rec *storage.SecretIDRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSecretIDs).Put(secretIDKey(rec.RoleName, rec.HashedSecretID), data)
	})
}

func (s *Store) GetSecretID(ctx context.Context, roleName, hashedSecretID string) (*storage.SecretIDRecord, error) {
	var rec storage.SecretIDRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSecretIDs).Get(secretIDKey(roleName, hashedSecretID))
		if data == nil {
			return storage.ErrNotFound
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) ConsumeSecretID(ctx context.Context, roleName, hashedSecretID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSecretIDs)
		key := secretIDKey(roleName, hashedSecretID)
		data := b.Get(key)
		if data == nil {
			return storage.ErrNotFound
		}
		var rec storage.SecretIDRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		if rec.UsesRemaining <= 0 {
			return nil
		}
		rec.UsesRemaining--
		if rec.UsesRemaining == 0 {
			return b.Delete(key)
		}
		updated, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(key, updated)
	})
}

func (s *Store) DeleteSecretID(ctx context.Context, roleName, hashedSecretID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		key := secretIDKey(roleName, hashedSecretID)
		b := tx.Bucket(bucketSecretIDs)
		if b.Get(key) == nil {
			return storage.ErrNotFound
		}
		return b.Delete(key)
	})
}

// -- policies --

func (s *Store) PutPolicy(ctx context.Context, policy *storage.Policy) error {
	data, err := json.Marshal(policy)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPolicies).Put([]byte(policy.Name), data)
	})
}

func (s *Store) GetPolicy(ctx context.Context, name string) (*storage.Policy, error) {
	var p storage.Policy
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketPolicies).Get([]byte(name))
		if data == nil {
			return storage.ErrNotFound
		}
		return json.Unmarshal(data, &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) DeletePolicy(ctx context.Context, name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPolicies)
		if b.Get([]byte(name)) == nil {
			return storage.ErrNotFound
		}
		return b.Delete([]byte(name))
	})
}

func (s *Store) ListPolicies(ctx context.Context) ([]*storage.Policy, error) {
	var out []*storage.Policy
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPolicies).ForEach(func(k, v []byte) error {
			var p storage.Policy
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			out = append(out, &p)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// -- secrets --
//
// Versions of a path are stored under keys "<path>\x00<version-be64>" so
// a bucket-ordered ForEach naturally walks them oldest to newest.

func secretVersionKey(path string, version int) []byte {
	key := make([]byte, 0, len(path)+1+8)
	key = append(key, []byte(path)...)
	key = append(key, 0)
	var vb [8]byte
	binary.BigEndian.PutUint64(vb[:], uint64(version))
	return append(key, vb[:]...)
}

func (s *Store) PutSecretVersion(ctx context.Context, v *storage.SecretVersion) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSecrets).Put(secretVersionKey(v.Path, v.Version), data)
	})
}

func (s *Store) GetSecretVersion(ctx context.Context, path string, version int) (*storage.SecretVersion, error) {
	var v storage.SecretVersion
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSecrets).Get(secretVersionKey(path, version))
		if data == nil {
			return storage.ErrNotFound
		}
		return json.Unmarshal(data, &v)
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Store) ListSecretVersions(ctx context.Context, path string) ([]*storage.SecretVersion, error) {
	prefix := append([]byte(path), 0)
	var out []*storage.SecretVersion
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSecrets).Cursor()
		for k, v := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, v = c.Next() {
			var sv storage.SecretVersion
			if err := json.Unmarshal(v, &sv); err != nil {
				return err
			}
			out = append(out, &sv)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, storage.ErrNotFound
	}
	return out, nil
}

func (s *Store) GetLatestSecretVersion(ctx context.Context, path string) (*storage.SecretVersion, error) {
	versions, err := s.ListSecretVersions(ctx, path)
	if err != nil {
		return nil, err
	}
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
	return latest, nil
}

func (s *Store) ListSecretPaths(ctx context.Context, prefix string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSecrets).ForEach(func(k, v []byte) error {
			full := string(k)
			idx := strings.IndexByte(full, 0)
			if idx < 0 {
				return nil
			}
			path := full[:idx]
			if seen[path] || !strings.HasPrefix(path, prefix) {
				return nil
			}
			seen[path] = true
			out = append(out, path)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) mutateSecretVersion(path string, version int, mutate func(*storage.SecretVersion)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSecrets)
		key := secretVersionKey(path, version)
		data := b.Get(key)
		if data == nil {
			return storage.ErrNotFound
		}
		var v storage.SecretVersion
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		mutate(&v)
		updated, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return b.Put(key, updated)
	})
}

func (s *Store) SoftDeleteSecretVersion(ctx context.Context, path string, version int, at time.Time) error {
	return s.mutateSecretVersion(path, version, func(v *storage.SecretVersion) {
		v.Deleted = true
		v.DeletedAt = &at
	})
}

func (s *Store) DestroySecretVersion(ctx context.Context, path string, version int) error {
	return s.mutateSecretVersion(path, version, func(v *storage.SecretVersion) {
		v.Destroyed = true
		v.Data = nil
	})
}

func (s *Store) DeleteSecretMetadata(ctx context.Context, path string) error {
	prefix := append([]byte(path), 0)
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSecrets)
		c := b.Cursor()
		var keys [][]byte
		for k, _ := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		if len(keys) == 0 {
			return storage.ErrNotFound
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// -- leases --

func (s *Store) PutLease(ctx context.Context, l *storage.LeaseRecord) error {
	data, err := json.Marshal(l)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLeases).Put([]byte(l.ID), data)
	})
}

func (s *Store) GetLease(ctx context.Context, id string) (*storage.LeaseRecord, error) {
	var l storage.LeaseRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketLeases).Get([]byte(id))
		if data == nil {
			return storage.ErrNotFound
		}
		return json.Unmarshal(data, &l)
	})
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *Store) listLeases(ctx context.Context, filter func(*storage.LeaseRecord) bool) ([]*storage.LeaseRecord, error) {
	var out []*storage.LeaseRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLeases).ForEach(func(k, v []byte) error {
			var l storage.LeaseRecord
			if err := json.Unmarshal(v, &l); err != nil {
				return err
			}
			if filter(&l) {
				out = append(out, &l)
			}
			return nil
		})
	})
	return out, err
}

func (s *Store) ListActiveLeases(ctx context.Context) ([]*storage.LeaseRecord, error) {
	return s.listLeases(ctx, func(l *storage.LeaseRecord) bool { return !l.Revoked })
}

func (s *Store) ListExpiredLeases(ctx context.Context, asOf time.Time) ([]*storage.LeaseRecord, error) {
	return s.listLeases(ctx, func(l *storage.LeaseRecord) bool { return !l.Revoked && asOf.After(l.ExpiresAt) })
}

func (s *Store) RevokeLease(ctx context.Context, id string, at time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLeases)
		data := b.Get([]byte(id))
		if data == nil {
			return storage.ErrNotFound
		}
		var l storage.LeaseRecord
		if err := json.Unmarshal(data, &l); err != nil {
			return err
		}
		l.Revoked = true
		l.RevokedAt = &at
		updated, err := json.Marshal(l)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), updated)
	})
}

func (s *Store) DeleteLease(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLeases)
		if b.Get([]byte(id)) == nil {
			return storage.ErrNotFound
		}
		return b.Delete([]byte(id))
	})
}

// -- audit --
//
// Entries are keyed by big-endian sequence number so iteration order
// matches chain order.

func auditKey(seq uint64) []byte {
	var kb [8]byte
	binary.BigEndian.PutUint64(kb[:], seq)
	return kb[:]
}

func (s *Store) AppendAuditEntry(ctx context.Context, e *storage.AuditEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAudit)
		if last, _ := b.Cursor().Last(); last != nil {
			lastSeq := binary.BigEndian.Uint64(last)
			if e.Sequence != lastSeq+1 {
				return fmt.Errorf("boltstore: out-of-order audit append: got seq %d, want %d", e.Sequence, lastSeq+1)
			}
		}
		return b.Put(auditKey(e.Sequence), data)
	})
}

func (s *Store) LastAuditEntry(ctx context.Context) (*storage.AuditEntry, error) {
	var e storage.AuditEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		_, v := tx.Bucket(bucketAudit).Cursor().Last()
		if v == nil {
			return storage.ErrNotFound
		}
		return json.Unmarshal(v, &e)
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) RangeAuditEntries(ctx context.Context, fromSeq, toSeq uint64) ([]*storage.AuditEntry, error) {
	var out []*storage.AuditEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketAudit).Cursor()
		for k, v := c.Seek(auditKey(fromSeq)); k != nil && binary.BigEndian.Uint64(k) <= toSeq; k, v = c.Next() {
			var e storage.AuditEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			out = append(out, &e)
		}
		return nil
	})
	return out, err
}

var _ storage.Backend = (*Store)(nil)
