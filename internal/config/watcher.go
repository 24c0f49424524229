package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceWindow = 250 * time.Millisecond

// Watcher turns filesystem events on the config file into a debounced stream
// of change notifications. Editors often emit several write/rename events per
// save; the debounce collapses them into one reload.
type Watcher struct {
	path    string
	fsw     *fsnotify.Watcher
	changes chan struct{}
}

// NewWatcher watches the directory containing path. Watching the directory
// instead of the file itself survives atomic-rename saves.
func NewWatcher(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &Watcher{
		path:    path,
		fsw:     fsw,
		changes: make(chan struct{}, 1),
	}
	go w.run()
	return w, nil
}

// Changes returns the debounced change notification stream. The channel is
// closed when the watcher is closed.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Close stops the watcher and closes the change stream.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) run() {
	defer close(w.changes)

	var debounce *time.Timer
	var debounceCh <-chan time.Time

	target := filepath.Clean(w.path)

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(debounceWindow)
				debounceCh = debounce.C
			} else {
				debounce.Reset(debounceWindow)
			}
		case <-debounceCh:
			debounce = nil
			debounceCh = nil
			select {
			case w.changes <- struct{}{}:
			default:
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("Config watcher error", "error", err)
		}
	}
}

// Reloader reacts to change notifications: it reloads the file, swaps the
// store, and republishes the snapshot to all listeners. Load failure keeps
// the previous configuration in effect.
type Reloader struct {
	path    string
	store   *Store
	onApply []func(*Config)
	onError func(error)
}

// NewReloader creates a reloader. Each apply function is invoked with the new
// configuration after the store swap; onError is invoked on load failure and
// may be nil.
func NewReloader(path string, store *Store, onError func(error), onApply ...func(*Config)) *Reloader {
	return &Reloader{
		path:    path,
		store:   store,
		onApply: onApply,
		onError: onError,
	}
}

// Run consumes change notifications until ctx is cancelled or the stream
// closes. It is typically run in its own goroutine.
func (r *Reloader) Run(ctx context.Context, changes <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			r.reload()
		}
	}
}

func (r *Reloader) reload() {
	cfg, err := Load(r.path)
	if err != nil {
		slog.Error("Config reload failed, keeping previous configuration", "path", r.path, "error", err)
		if r.onError != nil {
			r.onError(err)
		}
		return
	}

	r.store.Replace(cfg)
	slog.Info("Configuration reloaded",
		"default_interval_ms", cfg.DefaultIntervalMS,
		"default_mode", cfg.DefaultMode,
		"max_connections", cfg.MaxConnections,
	)

	for _, apply := range r.onApply {
		apply(cfg)
	}
}
