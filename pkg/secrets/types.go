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

// Package secrets implements secretcore's versioned, path-addressed KV
// store: AEAD-encrypted payloads, policy-gated reads, and a soft-delete
// tombstone with a retention window before permanent destruction.
package secrets

import "time"

// Entity identifies the caller a Read/Write/Delete is evaluated for.
type Entity struct {
	EntityID  string
	ActorType string
	Policies  []string
}

// VersionMetadata is the non-secret-bearing view of a stored version,
// returned by ListVersions.
type VersionMetadata struct {
	Version   int
	CreatedAt time.Time
	Deleted   bool
	DeletedAt *time.Time
	Destroyed bool
}
