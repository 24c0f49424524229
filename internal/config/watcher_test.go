package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_EmitsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pulsecast.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, os.WriteFile(path, []byte(`{"port": 9000}`), 0o600))

	select {
	case _, ok := <-w.Changes():
		assert.True(t, ok)
	case <-time.After(3 * time.Second):
		t.Fatal("no change notification received")
	}
}

func TestWatcher_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pulsecast.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{}`), 0o600))

	select {
	case <-w.Changes():
		t.Fatal("unexpected notification for sibling file")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatcher_CloseClosesStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pulsecast.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	select {
	case _, ok := <-w.Changes():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("change stream not closed")
	}
}

func TestReloader_RunConsumesChangeStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pulsecast.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"default_interval_ms": 1000}`), 0o600))

	store := NewStore(mustLoad(t, path))

	applied := make(chan *Config, 1)
	reloader := NewReloader(path, store, nil, func(cfg *Config) { applied <- cfg })

	changes := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reloader.Run(ctx, changes)

	require.NoError(t, os.WriteFile(path, []byte(`{"default_interval_ms": 5000}`), 0o600))
	changes <- struct{}{}

	select {
	case cfg := <-applied:
		assert.Equal(t, 5000, cfg.DefaultIntervalMS)
	case <-time.After(time.Second):
		t.Fatal("reload not applied")
	}
}
