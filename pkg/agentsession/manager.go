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

// Package agentsession manages the persistent, mutually-authenticated
// message channel between a running agent and secretcore: connection
// registration, request/response correlation, heartbeats, server-initiated
// notifications, and idle reaping.
package agentsession

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sage-x-project/secretcore/internal/logger"
	"github.com/sage-x-project/secretcore/internal/metrics"
	"github.com/sage-x-project/secretcore/pkg/agentsession/transport"
)

// drainTimeout bounds how long Close waits for in-flight dispatches to
// finish before giving up and closing connections out from under them.
const drainTimeout = 5 * time.Second

const (
	defaultCleanupInterval = 30 * time.Second
	defaultIdleTimeout     = 5 * time.Minute
	defaultRequestTimeout  = 30 * time.Second

	// MethodHeartbeat is the well-known method name agents send to keep a
	// session alive without an outstanding request.
	MethodHeartbeat = "heartbeat"
)

// TokenValidator authenticates the session token carried on a
// connection's first frame. It is satisfied by
// (*pkg/approle.Manager).Validate, adapted at the wiring site in
// pkg/core to keep this package free of a direct approle dependency.
type TokenValidator func(token, certSerial string) (entityID string, policies []string, err error)

// Session represents one live agent connection.
type Session struct {
	ID       string
	AgentID  string // AppRole role name or entity ID bound to this channel
	Policies []string
	conn     transport.Conn
	manager  *Manager
	mu       sync.Mutex
	lastSeen time.Time
	created  time.Time

	pending   map[string]chan *transport.Response
	pendingMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

// LastSeen returns the timestamp of the most recently received frame.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// Request sends method/payload to the agent and blocks for a correlated
// response, a context cancellation, or the manager's request timeout.
func (s *Session) Request(ctx context.Context, method string, payload []byte) (*transport.Response, error) {
	start := time.Now()
	corrID := uuid.NewString()
	respCh := make(chan *transport.Response, 1)

	s.pendingMu.Lock()
	s.pending[corrID] = respCh
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, corrID)
		s.pendingMu.Unlock()
	}()

	if err := s.conn.Send(&transport.Envelope{
		CorrelationID: corrID,
		Method:        method,
		Payload:       payload,
	}); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	metrics.MessageSize.WithLabelValues("outbound").Observe(float64(len(payload)))

	timeout := time.NewTimer(defaultRequestTimeout)
	defer timeout.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, fmt.Errorf("session %s closed", s.ID)
	case <-timeout.C:
		return nil, fmt.Errorf("request %s timed out waiting for response", method)
	case resp := <-respCh:
		metrics.RequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		return resp, nil
	}
}

// Notify sends a one-way, uncorrelated frame to the agent (e.g. a
// server-initiated "lease revoked" push).
func (s *Session) Notify(method string, payload []byte) error {
	return s.conn.Send(&transport.Envelope{Method: method, Payload: payload})
}

// Close tears down the underlying connection and wakes any blocked
// Request callers with an error.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
		metrics.SessionsClosed.Inc()
	})
	return err
}

// Manager tracks all live agent sessions and drives the idle-reaping
// sweep, mirroring the ticker-plus-stop-channel lifecycle used by the
// rest of secretcore's background workers.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	handler   transport.Handler
	validator TokenValidator
	log       logger.Logger

	idleTimeout     time.Duration
	cleanupInterval time.Duration
	cleanupTicker   *time.Ticker
	stopCleanup     chan struct{}
	stopOnce        sync.Once

	// inflight tracks outstanding dispatch goroutines so Close can drain
	// them with a bounded deadline instead of yanking connections
	// mid-request.
	inflight *errgroup.Group
}

// NewManager creates a Manager and starts its idle-reaping goroutine.
// handler processes every inbound request/notification frame that is not
// a heartbeat or a correlated response. validator authenticates the
// session token on a connection's first frame in Accept; it may be nil
// if Register is used directly instead (e.g. in tests).
func NewManager(handler transport.Handler, validator TokenValidator, log logger.Logger) *Manager {
	m := &Manager{
		sessions:        make(map[string]*Session),
		handler:         handler,
		validator:       validator,
		log:             log,
		idleTimeout:     defaultIdleTimeout,
		cleanupInterval: defaultCleanupInterval,
		cleanupTicker:   time.NewTicker(defaultCleanupInterval),
		stopCleanup:     make(chan struct{}),
		inflight:        &errgroup.Group{},
	}
	go m.runCleanup()
	return m
}

// spawnDispatch runs dispatch in a tracked goroutine so Close can drain
// outstanding handler calls before tearing down sessions.
func (m *Manager) spawnDispatch(ctx context.Context, s *Session, env *transport.Envelope) {
	m.inflight.Go(func() error {
		m.dispatch(ctx, s, env)
		return nil
	})
}

// Accept reads a connection's first frame, validates its session
// token against certSerial (the peer's mTLS client certificate
// serial, binding the session to the cert per the Open Question
// decision recorded in DESIGN.md), and registers the resulting
// Session. If the first frame was itself a request (not a bare
// heartbeat), it is dispatched after registration so no frame is lost.
func (m *Manager) Accept(ctx context.Context, conn transport.Conn, certSerial string) (*Session, error) {
	env, err := conn.Recv(ctx)
	if err != nil {
		return nil, fmt.Errorf("agent session: read first frame: %w", err)
	}
	if env.SessionToken == "" {
		metrics.SessionsCreated.WithLabelValues("failure").Inc()
		return nil, ErrMissingSessionToken
	}
	if m.validator == nil {
		return nil, fmt.Errorf("agent session: no token validator configured")
	}

	entityID, policies, err := m.validator(env.SessionToken, certSerial)
	if err != nil {
		metrics.SessionsCreated.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("agent session: validate token: %w", err)
	}

	s := m.Register(entityID, conn)
	s.Policies = policies

	if env.Method != "" && env.Method != MethodHeartbeat {
		s.touch()
		m.spawnDispatch(ctx, s, env)
	}
	return s, nil
}

// Register adopts a freshly authenticated connection as a new Session and
// starts its read loop.
func (m *Manager) Register(agentID string, conn transport.Conn) *Session {
	s := &Session{
		ID:       uuid.NewString(),
		AgentID:  agentID,
		conn:     conn,
		manager:  m,
		lastSeen: time.Now(),
		created:  time.Now(),
		pending:  make(map[string]chan *transport.Response),
		done:     make(chan struct{}),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	metrics.SessionsCreated.WithLabelValues("success").Inc()
	metrics.SessionsActive.Inc()
	m.log.Info("agent session registered", logger.String("session_id", s.ID), logger.String("agent_id", agentID))

	go m.readLoop(s)
	return s
}

func (m *Manager) readLoop(s *Session) {
	ctx := context.Background()
	defer m.remove(s)

	for {
		env, err := s.conn.Recv(ctx)
		if err != nil {
			m.log.Debug("agent session read loop exiting", logger.String("session_id", s.ID), logger.Error(err))
			return
		}
		s.touch()
		metrics.MessageSize.WithLabelValues("inbound").Observe(float64(len(env.Payload)))

		switch {
		case env.Method == MethodHeartbeat:
			_ = s.conn.Send(&transport.Envelope{CorrelationID: env.CorrelationID, Method: MethodHeartbeat})
			continue
		case env.CorrelationID != "" && m.isPendingResponse(s, env.CorrelationID):
			m.deliverResponse(s, env)
			continue
		default:
			m.spawnDispatch(ctx, s, env)
		}
	}
}

func (m *Manager) isPendingResponse(s *Session, corrID string) bool {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	_, ok := s.pending[corrID]
	return ok
}

func (m *Manager) deliverResponse(s *Session, env *transport.Envelope) {
	s.pendingMu.Lock()
	ch, ok := s.pending[env.CorrelationID]
	s.pendingMu.Unlock()
	if !ok {
		return
	}
	var respErr error
	if errMsg, found := env.Metadata["error"]; found && errMsg != "" {
		respErr = fmt.Errorf("%s", errMsg)
	}
	select {
	case ch <- &transport.Response{Success: respErr == nil, CorrelationID: env.CorrelationID, Data: env.Payload, Error: respErr}:
	default:
	}
}

// sessionCtxKey is the context key dispatch uses to make the Session a
// frame arrived on available to the Handler, since transport.Handler's
// signature only carries the envelope.
type sessionCtxKey struct{}

// FromContext returns the Session a Handler is currently processing a
// frame for.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionCtxKey{}).(*Session)
	return s, ok
}

func (m *Manager) dispatch(ctx context.Context, s *Session, env *transport.Envelope) {
	if m.handler == nil {
		return
	}
	ctx = context.WithValue(ctx, sessionCtxKey{}, s)
	resp, err := m.handler(ctx, env)
	if err != nil {
		m.log.Warn("agent session handler error", logger.String("method", env.Method), logger.Error(err))
	}
	if env.CorrelationID == "" {
		return // one-way notification, no reply expected
	}
	meta := map[string]string{}
	var payload []byte
	if resp != nil {
		payload = resp.Data
		if resp.Error != nil {
			meta["error"] = resp.Error.Error()
		}
	}
	_ = s.conn.Send(&transport.Envelope{CorrelationID: env.CorrelationID, Method: env.Method, Payload: payload, Metadata: meta})
}

func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s.ID)
	m.mu.Unlock()
	s.Close()
	metrics.SessionsActive.Dec()
	m.log.Info("agent session removed", logger.String("session_id", s.ID))
}

// Get returns the session by ID, if still registered.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// List returns all currently registered sessions.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Broadcast sends a one-way notification to every registered session,
// used for cluster-wide pushes like "policy updated" or "lease revoked".
func (m *Manager) Broadcast(method string, payload []byte) {
	for _, s := range m.List() {
		if err := s.Notify(method, payload); err != nil {
			m.log.Warn("broadcast notify failed", logger.String("session_id", s.ID), logger.Error(err))
		}
	}
}

func (m *Manager) runCleanup() {
	for {
		select {
		case <-m.stopCleanup:
			return
		case <-m.cleanupTicker.C:
			m.sweepIdle()
		}
	}
}

func (m *Manager) sweepIdle() {
	cutoff := time.Now().Add(-m.idleTimeout)
	for _, s := range m.List() {
		if s.LastSeen().Before(cutoff) {
			m.log.Info("reaping idle agent session", logger.String("session_id", s.ID))
			metrics.SessionsExpired.Inc()
			m.remove(s)
		}
	}
}

// Close stops the idle-reaping sweep, waits up to drainTimeout for
// dispatches already in flight to finish, then closes every active
// session.
func (m *Manager) Close() {
	m.stopOnce.Do(func() {
		close(m.stopCleanup)
		m.cleanupTicker.Stop()
	})

	drained := make(chan struct{})
	go func() {
		m.inflight.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(drainTimeout):
		m.log.Warn("agent session drain deadline exceeded, closing sessions anyway")
	}

	for _, s := range m.List() {
		m.remove(s)
	}
}
