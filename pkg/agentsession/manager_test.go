package agentsession

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/secretcore/internal/logger"
	"github.com/sage-x-project/secretcore/pkg/agentsession/transport"
)

// pipeConn is an in-memory transport.Conn used to test the Manager
// without a real network connection.
type pipeConn struct {
	out    chan *transport.Envelope
	in     chan *transport.Envelope
	closed chan struct{}
}

func newPipePair() (*pipeConn, *pipeConn) {
	ab := make(chan *transport.Envelope, 16)
	ba := make(chan *transport.Envelope, 16)
	closed := make(chan struct{})
	return &pipeConn{out: ab, in: ba, closed: closed}, &pipeConn{out: ba, in: ab, closed: closed}
}

func (p *pipeConn) Send(env *transport.Envelope) error {
	select {
	case p.out <- env:
		return nil
	case <-p.closed:
		return context.Canceled
	}
}

func (p *pipeConn) Recv(ctx context.Context) (*transport.Envelope, error) {
	select {
	case env := <-p.in:
		return env, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.closed:
		return nil, context.Canceled
	}
}

func (p *pipeConn) Close() error {
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
	return nil
}

func (p *pipeConn) RemoteAddr() string { return "pipe" }

func TestManagerRequestResponse(t *testing.T) {
	serverSide, agentSide := newPipePair()

	handler := func(ctx context.Context, env *transport.Envelope) (*transport.Response, error) {
		return &transport.Response{Success: true, Data: []byte("pong:" + string(env.Payload))}, nil
	}
	m := NewManager(handler, nil, logger.NewDefault())
	defer m.Close()

	session := m.Register("role-web", serverSide)

	// Agent side answers requests by echoing through its own handler loop.
	go func() {
		for {
			env, err := agentSide.Recv(context.Background())
			if err != nil {
				return
			}
			_ = agentSide.Send(&transport.Envelope{CorrelationID: env.CorrelationID, Method: env.Method, Payload: []byte("pong:" + string(env.Payload))})
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := session.Request(ctx, "secrets.read", []byte("ping"))
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "pong:ping", string(resp.Data))
}

func TestManagerHeartbeatKeepsSessionAlive(t *testing.T) {
	serverSide, agentSide := newPipePair()
	m := NewManager(nil, nil, logger.NewDefault())
	m.idleTimeout = 50 * time.Millisecond
	m.cleanupTicker.Reset(10 * time.Millisecond)
	defer m.Close()

	session := m.Register("role-worker", serverSide)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_ = agentSide.Send(&transport.Envelope{Method: MethodHeartbeat})
			}
		}
	}()

	time.Sleep(100 * time.Millisecond)
	_, ok := m.Get(session.ID)
	assert.True(t, ok, "session kept alive by heartbeats should not be reaped")
}

func TestAcceptValidatesSessionToken(t *testing.T) {
	serverSide, agentSide := newPipePair()

	validator := func(token, certSerial string) (string, []string, error) {
		if token != "good-token" {
			return "", nil, assert.AnError
		}
		return "entity-1", []string{"policy-a"}, nil
	}
	m := NewManager(nil, validator, logger.NewDefault())
	defer m.Close()

	go func() {
		_ = agentSide.Send(&transport.Envelope{SessionToken: "good-token", Method: MethodHeartbeat})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	session, err := m.Accept(ctx, serverSide, "cert-serial-1")
	require.NoError(t, err)
	assert.Equal(t, "entity-1", session.AgentID)
	assert.Equal(t, []string{"policy-a"}, session.Policies)
}

func TestAcceptRejectsMissingToken(t *testing.T) {
	serverSide, agentSide := newPipePair()
	m := NewManager(nil, func(string, string) (string, []string, error) {
		return "entity-1", nil, nil
	}, logger.NewDefault())
	defer m.Close()

	go func() {
		_ = agentSide.Send(&transport.Envelope{Method: MethodHeartbeat})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := m.Accept(ctx, serverSide, "cert-serial-1")
	assert.ErrorIs(t, err, ErrMissingSessionToken)
}

func TestAcceptRejectsInvalidToken(t *testing.T) {
	serverSide, agentSide := newPipePair()
	m := NewManager(nil, func(string, string) (string, []string, error) {
		return "", nil, assert.AnError
	}, logger.NewDefault())
	defer m.Close()

	go func() {
		_ = agentSide.Send(&transport.Envelope{SessionToken: "bad-token", Method: MethodHeartbeat})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := m.Accept(ctx, serverSide, "cert-serial-1")
	assert.Error(t, err)
}

func TestManagerSweepsIdleSessions(t *testing.T) {
	serverSide, _ := newPipePair()
	m := NewManager(nil, nil, logger.NewDefault())
	m.idleTimeout = 10 * time.Millisecond
	m.cleanupTicker.Reset(5 * time.Millisecond)
	defer m.Close()

	session := m.Register("role-idle", serverSide)
	time.Sleep(80 * time.Millisecond)

	_, ok := m.Get(session.ID)
	assert.False(t, ok, "idle session should have been reaped")
}
