package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "pulsecast.json", cfg.ConfigFile)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 10.0, cfg.ConnectionsPerSecond)
	assert.Equal(t, 20, cfg.ConnectionBurst)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "/etc/pulsecast/config.json")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("CONNECTIONS_PER_SECOND", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/etc/pulsecast/config.json", cfg.ConfigFile)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 2.5, cfg.ConnectionsPerSecond)
}

func TestLoad_RejectsInvalidLimits(t *testing.T) {
	t.Setenv("CONNECTIONS_PER_SECOND", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONNECTIONS_PER_SECOND")
}

func TestLoad_RejectsZeroBurst(t *testing.T) {
	t.Setenv("CONNECTION_BURST", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONNECTION_BURST")
}
