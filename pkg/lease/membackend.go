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
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// MemBackend is an in-memory Backend test double. Concrete dynamic
// backends (Postgres role minting, cloud IAM, ...) are external
// collaborators outside this package's scope; MemBackend stands in
// for them in tests.
type MemBackend struct {
	counter atomic.Int64

	mu          sync.Mutex
	revoked     map[string]bool
	failUntil   int // Revoke fails for this many calls per credential before succeeding
	failCounts  map[string]int
	alwaysFail  bool
}

// NewMemBackend returns an empty MemBackend.
func NewMemBackend() *MemBackend {
	return &MemBackend{
		revoked:    make(map[string]bool),
		failCounts: make(map[string]int),
	}
}

// Mint returns a unique opaque token; ttl is ignored, the caller's
// lease record is the source of truth for expiry.
func (b *MemBackend) Mint(ctx context.Context, entityID string, ttl time.Duration) ([]byte, error) {
	n := b.counter.Add(1)
	return []byte(fmt.Sprintf("cred-%s-%d", entityID, n)), nil
}

// Revoke marks credential as torn down. If FailRevocationsFor was
// configured for this credential, it fails that many times first.
func (b *MemBackend) Revoke(ctx context.Context, credential []byte) error {
	key := string(credential)
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.alwaysFail {
		return fmt.Errorf("membackend: revoke always fails")
	}
	if b.failCounts[key] < b.failUntil {
		b.failCounts[key]++
		return fmt.Errorf("membackend: simulated transient revoke failure (%d/%d)", b.failCounts[key], b.failUntil)
	}
	b.revoked[key] = true
	return nil
}

// FailRevocationsFor makes the first n calls to Revoke for each
// credential fail before later calls for that credential succeed.
func (b *MemBackend) FailRevocationsFor(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failUntil = n
}

// AlwaysFail makes every Revoke call fail permanently.
func (b *MemBackend) AlwaysFail(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.alwaysFail = fail
}

// IsRevoked reports whether credential was successfully revoked.
func (b *MemBackend) IsRevoked(credential []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.revoked[string(credential)]
}
