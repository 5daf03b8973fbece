package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/secretcore/pkg/agentsession/transport"
)

func TestUpgradeAndDialRoundTrip(t *testing.T) {
	serverConnCh := make(chan *Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrade(w, r)
		require.NoError(t, err)
		serverConnCh <- conn
	}))
	defer srv.Close()

	url := "ws" + srv.URL[len("http"):]
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	server := <-serverConnCh
	defer server.Close()

	want := &transport.Envelope{
		CorrelationID: "corr-1",
		Method:        "secrets.read",
		SessionToken:  "tok-abc",
		Payload:       []byte(`{"path":"kv/data/foo"}`),
	}
	require.NoError(t, client.Send(want))

	got, err := server.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.CorrelationID, got.CorrelationID)
	assert.Equal(t, want.Method, got.Method)
	assert.Equal(t, want.SessionToken, got.SessionToken)
	assert.Equal(t, want.Payload, got.Payload)
}

func TestRecvRespectsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrade(w, r)
		require.NoError(t, err)
		<-r.Context().Done()
		conn.Close()
	}))
	defer srv.Close()

	url := "ws" + srv.URL[len("http"):]
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := Dial(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	recvCtx, recvCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer recvCancel()
	_, err = client.Recv(recvCtx)
	assert.Error(t, err)
}
