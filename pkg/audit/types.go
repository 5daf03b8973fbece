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

// Package audit implements secretcore's tamper-evident, hash-chained
// event log: every operation that touches key material, secrets, or
// access control appends an entry whose integrity can be verified
// independently of the storage backend that holds it.
package audit

import "time"

// Genesis is the literal previous_hash recorded on the first entry.
const Genesis = "GENESIS"

// AppendInput describes one event to record. Callers never supply
// sequence, timestamp, or the hash/signature fields — Append computes
// those from the chain tail.
type AppendInput struct {
	RequestID string
	ActorType string // role, admin, system
	EntityID  string
	Operation string // event_kind, e.g. "secret.read", "seal.unseal"
	Path      string
	Decision  string // allow, deny, success, failure
	Metadata  map[string]string
}

// Reason codes for a broken chain link, returned inside VerifyResult.
const (
	ReasonSequenceGap          = "SequenceGap"
	ReasonHashMismatch         = "HashMismatch"
	ReasonSignatureMismatch    = "SignatureMismatch"
	ReasonPreviousHashMismatch = "PreviousHashMismatch"
)

// VerifyResult is the outcome of VerifyChain. A zero-value result with
// Valid true means the full chain checked out.
type VerifyResult struct {
	Valid    bool
	Sequence uint64 // first broken entry, set only when !Valid
	Reason   string
}

// ExportFilter narrows Export to a time range and/or actor/operation.
// Zero-valued fields are not filtered on.
type ExportFilter struct {
	From      time.Time
	To        time.Time
	ActorType string
	Operation string
}
