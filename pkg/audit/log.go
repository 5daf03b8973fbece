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

package audit

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/sage-x-project/secretcore/internal/logger"
	"github.com/sage-x-project/secretcore/internal/metrics"
	"github.com/sage-x-project/secretcore/pkg/cryptoutil"
	"github.com/sage-x-project/secretcore/pkg/seal"
	"github.com/sage-x-project/secretcore/pkg/storage"
)

const hmacSubkeyInfo = "audit-hmac"

const (
	defaultMaxAppendAttempts = 3
	defaultBaseBackoff       = 50 * time.Millisecond
	backoffJitter            = 200 * time.Millisecond // window width added to baseBackoff
)

// Log appends to and verifies secretcore's hash-chained audit trail.
type Log struct {
	store             storage.AuditStore
	keys              seal.KeyHandle
	log               logger.Logger
	maxAppendAttempts int
	baseBackoff       time.Duration
}

// NewLog returns a Log appending to store and signing entries with a
// subkey derived from keys' master key. maxAttempts and baseBackoff
// configure the contention retry loop (internal/config.AuditConfig);
// zero values fall back to the spec's default of 3 attempts starting
// at 50ms.
func NewLog(store storage.AuditStore, keys seal.KeyHandle, log logger.Logger, maxAttempts int, baseBackoff time.Duration) *Log {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAppendAttempts
	}
	if baseBackoff <= 0 {
		baseBackoff = defaultBaseBackoff
	}
	return &Log{store: store, keys: keys, log: log, maxAppendAttempts: maxAttempts, baseBackoff: baseBackoff}
}

// Append computes the next chain entry from in and persists it,
// retrying on sequence contention per spec.md §4.7: read the tail,
// build the entry, insert; on collision with a concurrent writer,
// re-read the tail and retry up to three times total with randomized,
// doubling backoff before giving up with ErrContention.
func (l *Log) Append(ctx context.Context, in AppendInput) (*storage.AuditEntry, error) {
	delay := l.baseBackoff + rand.N(backoffJitter)

	var lastErr error
	for attempt := 1; attempt <= l.maxAppendAttempts; attempt++ {
		entry, err := l.buildEntry(ctx, in)
		if err == nil {
			if err := l.store.AppendAuditEntry(ctx, entry); err == nil {
				metrics.AuditEntriesWritten.Inc()
				return entry, nil
			} else {
				lastErr = err
			}
		} else {
			lastErr = err
		}

		if attempt == l.maxAppendAttempts {
			break
		}
		metrics.AuditAppendRetries.Inc()
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		delay *= 2
	}

	l.log.Error("audit: append contention exceeded retry budget", logger.Error(lastErr))
	return nil, ErrContention
}

func (l *Log) buildEntry(ctx context.Context, in AppendInput) (*storage.AuditEntry, error) {
	var seq uint64 = 1
	prevHash := []byte(Genesis)

	tail, err := l.store.LastAuditEntry(ctx)
	if err == nil {
		seq = tail.Sequence + 1
		prevHash = tail.EntryHash
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("audit: read chain tail: %w", err)
	}

	entry := &storage.AuditEntry{
		Sequence:  seq,
		RequestID: in.RequestID,
		Timestamp: time.Now().UTC(),
		ActorType: in.ActorType,
		EntityID:  in.EntityID,
		Operation: in.Operation,
		Path:      in.Path,
		Decision:  in.Decision,
		Metadata:  in.Metadata,
		PrevHash:  prevHash,
	}

	sum := sha256.Sum256(canonicalize(entry))
	entry.EntryHash = sum[:]

	hmacKey, err := l.hmacSubkey()
	if err != nil {
		return nil, err
	}
	defer cryptoutil.Zero(hmacKey)
	entry.HMAC = cryptoutil.HMACSHA256(hmacKey, entry.EntryHash)

	return entry, nil
}

// VerifyChain streams the full chain in order and checks, for every
// entry after the first, that its previous_hash matches the prior
// entry's current_hash, that current_hash recomputes correctly, and
// that the HMAC signature verifies. It stops at the first break.
func (l *Log) VerifyChain(ctx context.Context) (VerifyResult, error) {
	entries, err := l.store.RangeAuditEntries(ctx, 1, ^uint64(0))
	if err != nil {
		return VerifyResult{}, fmt.Errorf("audit: range entries: %w", err)
	}
	if len(entries) == 0 {
		metrics.AuditChainVerifications.WithLabelValues("valid").Inc()
		return VerifyResult{Valid: true}, nil
	}

	hmacKey, err := l.hmacSubkey()
	if err != nil {
		return VerifyResult{}, err
	}
	defer cryptoutil.Zero(hmacKey)

	var prevHash []byte = []byte(Genesis)
	var expectSeq uint64 = 1
	for _, e := range entries {
		if e.Sequence != expectSeq {
			return l.invalid(e.Sequence, ReasonSequenceGap), nil
		}
		if string(e.PrevHash) != string(prevHash) {
			return l.invalid(e.Sequence, ReasonPreviousHashMismatch), nil
		}
		sum := sha256.Sum256(canonicalize(e))
		if string(sum[:]) != string(e.EntryHash) {
			return l.invalid(e.Sequence, ReasonHashMismatch), nil
		}
		if !cryptoutil.VerifyHMACSHA256(hmacKey, e.EntryHash, e.HMAC) {
			return l.invalid(e.Sequence, ReasonSignatureMismatch), nil
		}
		prevHash = e.EntryHash
		expectSeq++
	}

	metrics.AuditChainVerifications.WithLabelValues("valid").Inc()
	return VerifyResult{Valid: true}, nil
}

func (l *Log) invalid(seq uint64, reason string) VerifyResult {
	metrics.AuditChainVerifications.WithLabelValues("invalid").Inc()
	return VerifyResult{Valid: false, Sequence: seq, Reason: reason}
}

// Export returns entries matching filter, read-only and never
// mutating the chain. storage.AuditStore only indexes by sequence, so
// the time/actor/operation narrowing happens here over the full range.
func (l *Log) Export(ctx context.Context, filter ExportFilter) ([]*storage.AuditEntry, error) {
	entries, err := l.store.RangeAuditEntries(ctx, 1, ^uint64(0))
	if err != nil {
		return nil, fmt.Errorf("audit: range entries: %w", err)
	}

	out := entries[:0]
	for _, e := range entries {
		if !filter.From.IsZero() && e.Timestamp.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.Timestamp.After(filter.To) {
			continue
		}
		if filter.ActorType != "" && e.ActorType != filter.ActorType {
			continue
		}
		if filter.Operation != "" && e.Operation != filter.Operation {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// AppendSimple is a convenience wrapper over Append for callers that
// only need to record entity/operation/decision, without taking a
// dependency on AppendInput. This is how pkg/seal satisfies its own
// AuditLogger interface: pkg/audit already depends on seal.KeyHandle,
// so pkg/seal cannot import pkg/audit's types without an import cycle.
func (l *Log) AppendSimple(ctx context.Context, entityID, operation, decision string) error {
	_, err := l.Append(ctx, AppendInput{
		EntityID:  entityID,
		Operation: operation,
		Decision:  decision,
	})
	return err
}

func (l *Log) hmacSubkey() ([]byte, error) {
	master, err := l.keys.MasterKey()
	if err != nil {
		return nil, err
	}
	defer cryptoutil.Zero(master)
	return cryptoutil.DeriveSubkey(master, hmacSubkeyInfo)
}
