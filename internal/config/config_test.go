package config

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/pulsecast/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pulsecast.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultIntervalMS, cfg.DefaultIntervalMS)
	assert.Equal(t, domain.ModeReference, cfg.DefaultMode)
	assert.Equal(t, DefaultMaxConnections, cfg.MaxConnections)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestLoad_ParsesFullFile(t *testing.T) {
	path := writeConfig(t, `{
		"port": 9000,
		"default_interval_ms": 500,
		"default_mode": "embedded-bytes",
		"max_connections": 8,
		"allowed_origins": ["https://example.com"],
		"upstream_url": "https://upstream.example.com/payload",
		"reference_base_url": "https://cdn.example.com"
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 500, cfg.DefaultIntervalMS)
	assert.Equal(t, domain.ModeEmbeddedBytes, cfg.DefaultMode)
	assert.Equal(t, 8, cfg.MaxConnections)
	assert.Equal(t, []string{"https://example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, "https://upstream.example.com/payload", cfg.UpstreamURL)
}

func TestLoad_ClampsInterval(t *testing.T) {
	tests := []struct {
		name     string
		interval int
		want     int
	}{
		{"below minimum", 50, 200},
		{"above maximum", 120000, 60000},
		{"at minimum", 200, 200},
		{"at maximum", 60000, 60000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, `{"default_interval_ms": `+strconv.Itoa(tt.interval)+`}`)
			cfg, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.DefaultIntervalMS)
		})
	}
}

func TestLoad_UnknownModeFallsBackToReference(t *testing.T) {
	path := writeConfig(t, `{"default_mode": "carrier-pigeon"}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeReference, cfg.DefaultMode)
}

func TestLoad_RejectsMalformedJSON(t *testing.T) {
	path := writeConfig(t, `{"port": `)

	_, err := Load(path)
	require.Error(t, err)
}

func TestConfig_OriginAllowed(t *testing.T) {
	wildcard := &Config{AllowedOrigins: []string{"*"}}
	assert.True(t, wildcard.OriginAllowed("https://anything.example.com"))

	explicit := &Config{AllowedOrigins: []string{"https://a.example.com", "https://b.example.com"}}
	assert.True(t, explicit.OriginAllowed("https://a.example.com"))
	assert.False(t, explicit.OriginAllowed("https://evil.example.com"))

	// Non-browser clients send no origin at all.
	assert.True(t, explicit.OriginAllowed(""))
}

func TestSnapshot_OmitsInternalFields(t *testing.T) {
	cfg := &Config{
		DefaultIntervalMS: 1000,
		DefaultMode:       domain.ModeReference,
		MaxConnections:    16,
		AllowedOrigins:    []string{"*"},
		UpstreamURL:       "https://internal.example.com",
	}

	snap := cfg.Snapshot()
	assert.Equal(t, 1000, snap.DefaultIntervalMS)
	assert.Equal(t, 16, snap.MaxConnections)

	// Mutating the snapshot's origin slice must not leak back into the config.
	snap.AllowedOrigins[0] = "mutated"
	assert.Equal(t, "*", cfg.AllowedOrigins[0])
}

func TestStore_ReplaceIsObservedByReaders(t *testing.T) {
	first := &Config{DefaultIntervalMS: 1000}
	store := NewStore(first)
	assert.Same(t, first, store.Current())

	second := &Config{DefaultIntervalMS: 2000}
	store.Replace(second)
	assert.Same(t, second, store.Current())
}

func TestReloader_SwapsStoreAndNotifies(t *testing.T) {
	path := writeConfig(t, `{"default_interval_ms": 1000}`)
	store := NewStore(mustLoad(t, path))

	var applied *Config
	reloader := NewReloader(path, store, nil, func(cfg *Config) { applied = cfg })

	require.NoError(t, os.WriteFile(path, []byte(`{"default_interval_ms": 3000}`), 0o600))
	reloader.reload()

	assert.Equal(t, 3000, store.Current().DefaultIntervalMS)
	require.NotNil(t, applied)
	assert.Equal(t, 3000, applied.DefaultIntervalMS)
}

func TestReloader_KeepsPreviousConfigOnFailure(t *testing.T) {
	path := writeConfig(t, `{"default_interval_ms": 1000}`)
	previous := mustLoad(t, path)
	store := NewStore(previous)

	var reported error
	reloader := NewReloader(path, store, func(err error) { reported = err })

	require.NoError(t, os.WriteFile(path, []byte(`{broken`), 0o600))
	reloader.reload()

	assert.Same(t, previous, store.Current())
	assert.Error(t, reported)
}

func mustLoad(t *testing.T, path string) *Config {
	t.Helper()
	cfg, err := Load(path)
	require.NoError(t, err)
	return cfg
}
