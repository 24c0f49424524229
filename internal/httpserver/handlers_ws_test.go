package httpserver

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/pulsecast/internal/config"
	"github.com/pscheid92/pulsecast/internal/domain"
	platformconfig "github.com/pscheid92/pulsecast/internal/platform/config"
)

func wsURL(ts string) string {
	return "ws" + strings.TrimPrefix(ts, "http") + "/ws"
}

func TestHandleWebSocket_CommandRoundTrip(t *testing.T) {
	_, ts := newTestServer(t, nil, nil)

	conn, _, err := ws.DefaultDialer.Dial(wsURL(ts.URL), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte("ping")))

	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		messageType, data, err := conn.ReadMessage()
		require.NoError(t, err)
		if messageType != ws.TextMessage {
			continue
		}
		var msg map[string]any
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg["type"] == "pong" {
			assert.NotZero(t, msg["ts"])
			return
		}
	}
}

func TestHandleWebSocket_OriginDenied(t *testing.T) {
	cfg := &config.Config{
		DefaultIntervalMS: domain.MaxIntervalMS,
		DefaultMode:       domain.ModeReference,
		MaxConnections:    16,
		AllowedOrigins:    []string{"https://app.example.com"},
		ReferenceBaseURL:  "https://cdn.example.com/ref",
	}
	srv, ts := newTestServer(t, cfg, nil)

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, res, err := ws.DefaultDialer.Dial(wsURL(ts.URL), header)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 403, res.StatusCode)
	assert.Equal(t, uint64(1), srv.counters.Snapshot().Errors)

	// The allowed origin connects fine.
	header = http.Header{"Origin": []string{"https://app.example.com"}}
	conn, _, err := ws.DefaultDialer.Dial(wsURL(ts.URL), header)
	require.NoError(t, err)
	conn.Close()
}

func TestHandleWebSocket_CapacityRejectedBeforeUpgrade(t *testing.T) {
	cfg := &config.Config{
		DefaultIntervalMS: domain.MaxIntervalMS,
		DefaultMode:       domain.ModeReference,
		MaxConnections:    1,
		AllowedOrigins:    []string{"*"},
		ReferenceBaseURL:  "https://cdn.example.com/ref",
	}
	srv, ts := newTestServer(t, cfg, nil)

	first, _, err := ws.DefaultDialer.Dial(wsURL(ts.URL), nil)
	require.NoError(t, err)
	defer first.Close()

	require.Eventually(t, func() bool {
		return srv.hub.ConnectionCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, res, err := ws.DefaultDialer.Dial(wsURL(ts.URL), nil)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 503, res.StatusCode)
	assert.Equal(t, 1, srv.hub.ConnectionCount())
}

func TestHandleWebSocket_RateLimited(t *testing.T) {
	env := &platformconfig.Config{ConnectionsPerSecond: 0.001, ConnectionBurst: 1}
	_, ts := newTestServer(t, nil, env)

	first, _, err := ws.DefaultDialer.Dial(wsURL(ts.URL), nil)
	require.NoError(t, err)
	defer first.Close()

	_, res, err := ws.DefaultDialer.Dial(wsURL(ts.URL), nil)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 429, res.StatusCode)
}

func TestHandleWebSocket_UnregistersOnClose(t *testing.T) {
	srv, ts := newTestServer(t, nil, nil)

	conn, _, err := ws.DefaultDialer.Dial(wsURL(ts.URL), nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return srv.hub.ConnectionCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		return srv.hub.ConnectionCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
