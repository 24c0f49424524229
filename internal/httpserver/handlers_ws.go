package httpserver

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/pulsecast/internal/domain"
	"github.com/pscheid92/pulsecast/internal/metrics"
)

func (s *Server) handleWebSocket(c echo.Context) error {
	if !s.limiter.Allow(c.RealIP()) {
		slog.Warn("Connection rate limit exceeded", "remote", c.RealIP())
		return c.String(429, "Too many connection attempts")
	}

	cfg := s.store.Current()

	origin := c.Request().Header.Get("Origin")
	if !cfg.OriginAllowed(origin) {
		slog.Warn("Rejecting connection from disallowed origin", "origin", origin)
		s.counters.IncErrors(metrics.ErrorKindOrigin)
		return c.String(403, domain.ErrOriginDenied.Error())
	}

	// Cheap pre-upgrade check. The hub re-checks under its own lock-free
	// ownership, so a race here only costs one upgrade handshake.
	if s.hub.ConnectionCount() >= cfg.MaxConnections {
		return c.String(503, "Connection capacity exceeded")
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	id, err := s.hub.Register(conn)
	if err != nil {
		if errors.Is(err, domain.ErrCapacityExceeded) {
			closeMsg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "capacity exceeded")
			_ = conn.WriteMessage(websocket.CloseMessage, closeMsg)
		}
		_ = conn.Close()
		return nil
	}

	// Read pump, blocks until the connection closes.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.hub.HandleMessage(id, data)
	}

	s.hub.Unregister(id)

	return nil //nolint:nilerr // ReadMessage err is block-scoped; outer err is nil
}
