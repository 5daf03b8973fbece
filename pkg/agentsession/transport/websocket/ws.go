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

// Package websocket implements the agent session transport.Conn interface
// over a gorilla/websocket connection, framing each transport.Envelope as
// a single JSON text message.
package websocket

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sage-x-project/secretcore/pkg/agentsession/transport"
)

const (
	defaultReadTimeout  = 90 * time.Second
	defaultWriteTimeout = 10 * time.Second
	pongWait            = 60 * time.Second
	pingPeriod          = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type wireEnvelope struct {
	CorrelationID string            `json:"correlation_id,omitempty"`
	Method        string            `json:"method"`
	SessionToken  string            `json:"session_token,omitempty"`
	Payload       []byte            `json:"payload,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Conn wraps a *websocket.Conn to satisfy transport.Conn, adding write
// serialization (gorilla forbids concurrent writers) and a keepalive
// ping loop.
type Conn struct {
	ws         *websocket.Conn
	writeMu    sync.Mutex
	remoteAddr string

	closeOnce sync.Once
	closed    chan struct{}
}

// Upgrade upgrades an incoming HTTP request to a session Conn. Call this
// from an http.Handler mounted at the agent session endpoint.
func Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket upgrade: %w", err)
	}
	return newConn(ws, r.RemoteAddr), nil
}

// Dial opens a new agent session connection to url.
func Dial(ctx context.Context, url string) (*Conn, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	ws, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return newConn(ws, url), nil
}

func newConn(ws *websocket.Conn, remoteAddr string) *Conn {
	c := &Conn{ws: ws, remoteAddr: remoteAddr, closed: make(chan struct{})}
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	go c.pingLoop()
	return c
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.ws.SetWriteDeadline(time.Now().Add(defaultWriteTimeout))
			err := c.ws.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Send implements transport.Conn.
func (c *Conn) Send(env *transport.Envelope) error {
	wire := &wireEnvelope{
		CorrelationID: env.CorrelationID,
		Method:        env.Method,
		SessionToken:  env.SessionToken,
		Payload:       env.Payload,
		Metadata:      env.Metadata,
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(defaultWriteTimeout))
	return c.ws.WriteJSON(wire)
}

// Recv implements transport.Conn.
func (c *Conn) Recv(ctx context.Context) (*transport.Envelope, error) {
	type result struct {
		wire *wireEnvelope
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		var wire wireEnvelope
		err := c.ws.ReadJSON(&wire)
		ch <- result{&wire, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return &transport.Envelope{
			CorrelationID: r.wire.CorrelationID,
			Method:        r.wire.Method,
			SessionToken:  r.wire.SessionToken,
			Payload:       r.wire.Payload,
			Metadata:      r.wire.Metadata,
		}, nil
	}
}

// Close implements transport.Conn.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

// RemoteAddr implements transport.Conn.
func (c *Conn) RemoteAddr() string { return c.remoteAddr }

var _ transport.Conn = (*Conn)(nil)
