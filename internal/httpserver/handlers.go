package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/pulsecast/internal/platform/version"
)

func (s *Server) handleLanding(c echo.Context) error {
	return c.JSON(200, map[string]any{
		"service": "pulsecast",
		"endpoints": map[string]string{
			"ws":      "/ws",
			"events":  "/events",
			"stats":   "/stats",
			"config":  "/config",
			"preview": "/preview",
			"metrics": "/metrics",
		},
	})
}

func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(200, map[string]any{
		"uptime_seconds":     s.clock.Since(s.startTime).Seconds(),
		"active_connections": s.hub.ConnectionCount(),
		"stream_subscribers": s.stream.Count(),
		"dispatcher_running": s.hub.DispatcherRunning(),
		"counters":           s.counters.Snapshot(),
	})
}

func (s *Server) handleConfig(c echo.Context) error {
	return c.JSON(200, s.store.Current().Snapshot())
}

// handlePreview redirects to a freshly generated reference URL, so the
// payload clients receive can be eyeballed in a browser.
func (s *Server) handlePreview(c echo.Context) error {
	return c.Redirect(302, s.generator.Next())
}

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(200, map[string]any{
		"status": "ok",
		"uptime": s.clock.Since(s.startTime).Seconds(),
	})
}

func (s *Server) handleReadiness(c echo.Context) error {
	// The count command round-trips through the hub goroutine, so a reply
	// proves the hub is alive and processing. There is no external dependency
	// to probe: the upstream fetch is best-effort.
	if s.hub.ConnectionCount() < 0 {
		return c.JSON(503, map[string]string{"status": "unhealthy", "failed_check": "hub"})
	}
	return c.JSON(200, map[string]string{"status": "ready"})
}

func (s *Server) handleVersion(c echo.Context) error {
	return c.JSON(200, version.Get())
}
