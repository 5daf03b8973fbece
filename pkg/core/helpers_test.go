package core

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sage-x-project/secretcore/pkg/pki"
)

// fakeLeaseBackend is a minimal lease.Backend test double, grounded on
// pkg/lease's own MemBackend but kept local to avoid a test-only
// dependency from pkg/core on pkg/lease's internals.
type fakeLeaseBackend struct {
	counter atomic.Int64
}

func newFakeLeaseBackend() *fakeLeaseBackend { return &fakeLeaseBackend{} }

func (b *fakeLeaseBackend) Mint(ctx context.Context, entityID string, ttl time.Duration) ([]byte, error) {
	n := b.counter.Add(1)
	return []byte(fmt.Sprintf("cred-%s-%d", entityID, n)), nil
}

func (b *fakeLeaseBackend) Revoke(ctx context.Context, credential []byte) error {
	return nil
}

func pkiRootRequest() pki.RootCARequest {
	return pki.RootCARequest{
		CommonName:   "secretcore root",
		Organization: "secretcore",
		KeyType:      pki.KeyTypeECDSAP384,
		ValidityDays: 3650,
	}
}
