package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/pulsecast/internal/config"
	"github.com/pscheid92/pulsecast/internal/httpserver"
	"github.com/pscheid92/pulsecast/internal/hub"
	"github.com/pscheid92/pulsecast/internal/metrics"
	"github.com/pscheid92/pulsecast/internal/payload"
	platformconfig "github.com/pscheid92/pulsecast/internal/platform/config"
	"github.com/pscheid92/pulsecast/internal/platform/logging"
	"github.com/pscheid92/pulsecast/internal/stream"
)

func setupEnv() *platformconfig.Config {
	env, err := platformconfig.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load environment: %v", err)
	}
	return env
}

func setupStore(path string) *config.Store {
	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("Failed to load configuration", "path", path, "error", err)
		os.Exit(1)
	}
	return config.NewStore(cfg)
}

// setupReload wires the file watcher to the reloader and starts both. The
// returned stop function tears the watcher down.
func setupReload(ctx context.Context, path string, store *config.Store, h *hub.Hub, streamHub *stream.Hub, counters *metrics.Counters) (func(), error) {
	watcher, err := config.NewWatcher(path)
	if err != nil {
		return nil, err
	}

	onError := func(error) { counters.IncErrors(metrics.ErrorKindConfigLoad) }
	broadcast := func(cfg *config.Config) {
		snapshot := cfg.Snapshot()
		h.PublishConfig(snapshot)
		streamHub.PublishConfig(snapshot)
	}

	reloader := config.NewReloader(path, store, onError, broadcast)
	go reloader.Run(ctx, watcher.Changes())

	return func() { _ = watcher.Close() }, nil
}

func runGracefulShutdown(srv *httpserver.Server, h *hub.Hub, env *platformconfig.Config, stopReload func()) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), env.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		h.Stop()
		stopReload()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	env := setupEnv()

	logging.InitLogger(env.LogLevel, env.LogFormat)
	slog.Info("Application starting", "env", env.AppEnv, "config_file", env.ConfigFile)

	store := setupStore(env.ConfigFile)

	counters := metrics.NewCounters()
	generator := payload.NewGenerator(store.Current().ReferenceBaseURL)
	fetcher := payload.NewFetcher(func() string { return store.Current().UpstreamURL })
	streamHub := stream.NewHub()

	h := hub.New(store, generator, fetcher, streamHub, counters, clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopReload, err := setupReload(ctx, env.ConfigFile, store, h, streamHub, counters)
	if err != nil {
		slog.Error("Failed to start config watcher", "error", err)
		os.Exit(1)
	}

	srv := httpserver.NewServer(env, store, h, streamHub, generator, counters, clock)

	done := runGracefulShutdown(srv, h, env, stopReload)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
