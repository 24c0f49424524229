package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/pulsecast/internal/config"
	"github.com/pscheid92/pulsecast/internal/domain"
	"github.com/pscheid92/pulsecast/internal/hub"
	"github.com/pscheid92/pulsecast/internal/metrics"
	"github.com/pscheid92/pulsecast/internal/payload"
	platformconfig "github.com/pscheid92/pulsecast/internal/platform/config"
	"github.com/pscheid92/pulsecast/internal/stream"
)

type stubFetcher struct{}

func (f *stubFetcher) Fetch(_ context.Context) (*domain.FetchedPayload, error) {
	return &domain.FetchedPayload{Data: []byte("payload-bytes"), ContentType: "application/octet-stream"}, nil
}

// newTestServer wires a full server with an in-memory config store and a stub
// upstream fetcher, served over httptest.
func newTestServer(t *testing.T, cfg *config.Config, env *platformconfig.Config) (*Server, *httptest.Server) {
	t.Helper()

	if cfg == nil {
		cfg = &config.Config{
			DefaultIntervalMS: domain.MaxIntervalMS,
			DefaultMode:       domain.ModeReference,
			MaxConnections:    16,
			AllowedOrigins:    []string{"*"},
			ReferenceBaseURL:  "https://cdn.example.com/ref",
		}
	}
	if env == nil {
		env = &platformconfig.Config{ConnectionsPerSecond: 1000, ConnectionBurst: 1000}
	}

	store := config.NewStore(cfg)
	counters := metrics.NewCounters()
	generator := payload.NewGenerator(cfg.ReferenceBaseURL)
	streamHub := stream.NewHub()

	h := hub.New(store, generator, &stubFetcher{}, streamHub, counters, clockwork.NewRealClock())
	t.Cleanup(h.Stop)

	srv := NewServer(env, store, h, streamHub, generator, counters, clockwork.NewRealClock())
	ts := httptest.NewServer(srv.echo)
	t.Cleanup(ts.Close)

	return srv, ts
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()

	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	return res.StatusCode, body
}

func TestServer_Landing(t *testing.T) {
	_, ts := newTestServer(t, nil, nil)

	status, body := getJSON(t, ts.URL+"/")
	assert.Equal(t, 200, status)
	assert.Equal(t, "pulsecast", body["service"])
}

func TestServer_Stats(t *testing.T) {
	_, ts := newTestServer(t, nil, nil)

	status, body := getJSON(t, ts.URL+"/stats")
	require.Equal(t, 200, status)

	assert.Equal(t, 0.0, body["active_connections"])
	assert.Equal(t, 0.0, body["stream_subscribers"])
	assert.Equal(t, false, body["dispatcher_running"])

	counters := body["counters"].(map[string]any)
	// The stats request itself has been counted by the time it is served.
	assert.GreaterOrEqual(t, counters["requests_served"], 1.0)
	assert.Equal(t, 0.0, counters["payloads_sent"])
}

func TestServer_Config(t *testing.T) {
	cfg := &config.Config{
		DefaultIntervalMS: 3000,
		DefaultMode:       domain.ModeEmbeddedBytes,
		MaxConnections:    8,
		AllowedOrigins:    []string{"https://app.example.com"},
		ReferenceBaseURL:  "https://cdn.example.com/ref",
	}
	_, ts := newTestServer(t, cfg, nil)

	status, body := getJSON(t, ts.URL+"/config")
	require.Equal(t, 200, status)
	assert.Equal(t, 3000.0, body["default_interval_ms"])
	assert.Equal(t, "embedded-bytes", body["default_mode"])
	assert.Equal(t, 8.0, body["max_connections"])
	assert.Equal(t, []any{"https://app.example.com"}, body["allowed_origins"])
}

func TestServer_PreviewRedirectsToFreshReferenceURL(t *testing.T) {
	_, ts := newTestServer(t, nil, nil)

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	res, err := client.Get(ts.URL + "/preview")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, 302, res.StatusCode)
	assert.Contains(t, res.Header.Get("Location"), "https://cdn.example.com/ref/p/")
}

func TestServer_HealthEndpoints(t *testing.T) {
	_, ts := newTestServer(t, nil, nil)

	status, body := getJSON(t, ts.URL+"/health/live")
	assert.Equal(t, 200, status)
	assert.Equal(t, "ok", body["status"])

	status, body = getJSON(t, ts.URL+"/health/ready")
	assert.Equal(t, 200, status)
	assert.Equal(t, "ready", body["status"])
}

func TestServer_Version(t *testing.T) {
	_, ts := newTestServer(t, nil, nil)

	status, body := getJSON(t, ts.URL+"/version")
	assert.Equal(t, 200, status)
	assert.NotEmpty(t, body["version"])
}

func TestServer_MetricsExposed(t *testing.T) {
	_, ts := newTestServer(t, nil, nil)

	res, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, 200, res.StatusCode)
}
