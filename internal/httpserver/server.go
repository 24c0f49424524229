// Package httpserver hosts the external interfaces: the bidirectional
// upgrade endpoint, the one-way event stream, and the read-only status,
// config, health, preview, and metrics endpoints.
package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/pulsecast/internal/config"
	"github.com/pscheid92/pulsecast/internal/hub"
	"github.com/pscheid92/pulsecast/internal/metrics"
	"github.com/pscheid92/pulsecast/internal/payload"
	platformconfig "github.com/pscheid92/pulsecast/internal/platform/config"
	"github.com/pscheid92/pulsecast/internal/stream"
)

const keepaliveInterval = 15 * time.Second

type Server struct {
	echo      *echo.Echo
	env       *platformconfig.Config
	store     *config.Store
	hub       *hub.Hub
	stream    *stream.Hub
	generator *payload.Generator
	counters  *metrics.Counters
	limiter   *ConnectionRateLimiter
	clock     clockwork.Clock
	upgrader  websocket.Upgrader

	keepalive time.Duration
	startTime time.Time
}

func NewServer(env *platformconfig.Config, store *config.Store, h *hub.Hub, streamHub *stream.Hub, generator *payload.Generator, counters *metrics.Counters, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:      e,
		env:       env,
		store:     store,
		hub:       h,
		stream:    streamHub,
		generator: generator,
		counters:  counters,
		limiter:   NewConnectionRateLimiter(env.ConnectionsPerSecond, env.ConnectionBurst),
		clock:     clock,
		keepalive: keepaliveInterval,
		startTime: clock.Now(),
	}

	srv.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// Origin is checked in the handler before upgrading, where a denial
		// can be counted and answered with a proper status code.
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	srv.registerRoutes()

	return srv
}

// Start listens on the configured port. A port change requires a restart;
// every other configuration field hot-reloads.
func (s *Server) Start() error {
	port := s.store.Current().Port
	slog.Info("Starting server", "port", port)
	if err := s.echo.Start(fmt.Sprintf(":%d", port)); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
