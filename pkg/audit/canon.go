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
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/sage-x-project/secretcore/pkg/storage"
)

// canonicalize serializes every hashable field of e in a fixed order,
// little-endian integers, length-prefixed UTF-8 strings, no separators
// or whitespace — so current_hash is reproducible byte-for-byte from
// the same logical entry regardless of encoder. current_hash and hmac
// are never part of their own input.
func canonicalize(e *storage.AuditEntry) []byte {
	var buf bytes.Buffer
	writeUint64(&buf, e.Sequence)
	writeString(&buf, e.RequestID)
	writeInt64(&buf, e.Timestamp.UTC().UnixNano())
	writeString(&buf, e.ActorType)
	writeString(&buf, e.EntityID)
	writeString(&buf, e.Operation)
	writeString(&buf, e.Path)
	writeString(&buf, e.Decision)
	writeMetadata(&buf, e.Metadata)
	writeBytes(&buf, e.PrevHash)
	return buf.Bytes()
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeInt64(buf *bytes.Buffer, v int64) {
	writeUint64(buf, uint64(v))
}

func writeString(buf *bytes.Buffer, s string) {
	writeBytes(buf, []byte(s))
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], uint32(len(b)))
	buf.Write(length[:])
	buf.Write(b)
}

// writeMetadata writes keys in sorted order so the canonical form is
// independent of map iteration order.
func writeMetadata(buf *bytes.Buffer, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], uint32(len(keys)))
	buf.Write(count[:])
	for _, k := range keys {
		writeString(buf, k)
		writeString(buf, m[k])
	}
}
