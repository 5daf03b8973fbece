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

// Package transport carries the agent<->core session channel over the
// wire. It defines a transport-agnostic envelope so the session layer
// does not depend on WebSocket specifically, even though WebSocket is
// the only implementation shipped today.
package transport

import "context"

// Envelope is a single frame exchanged over an agent session. It carries
// either a request (Method set, a response expected) or a one-way
// notification / heartbeat (Method set, CorrelationID empty on the wire
// reply side).
type Envelope struct {
	// CorrelationID ties a response back to the request that produced it.
	CorrelationID string

	// Method names the operation being invoked, e.g. "secrets.read",
	// "lease.renew", "heartbeat", "notify.lease_revoked".
	Method string

	// SessionToken is the bearer session token authenticating this frame.
	// It is only required on the first frame of a connection; subsequent
	// frames are authenticated by the established session.
	SessionToken string

	// Payload is the method-specific, already-serialized body.
	Payload []byte

	Metadata map[string]string
}

// Response is the reply to an Envelope carrying a request.
type Response struct {
	Success       bool
	CorrelationID string
	Data          []byte
	Error         error
}

// Handler processes an inbound Envelope and produces a Response. Handlers
// for one-way frames (heartbeats, notifications) return a Response with
// no meaningful payload; the caller is not required to inspect it.
type Handler func(ctx context.Context, env *Envelope) (*Response, error)

// Conn is a single bidirectional, length-framed connection to an agent.
// It is implemented by the websocket package; the session manager only
// depends on this interface so transports can be swapped in tests.
type Conn interface {
	// Send writes an Envelope to the peer. Safe for concurrent use.
	Send(env *Envelope) error

	// Recv blocks until the next Envelope arrives, ctx is cancelled, or
	// the connection closes.
	Recv(ctx context.Context) (*Envelope, error)

	// Close closes the underlying connection.
	Close() error

	// RemoteAddr identifies the peer for logging and audit purposes.
	RemoteAddr() string
}
