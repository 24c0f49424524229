package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pscheid92/pulsecast/internal/platform/correlation"
)

func (s *Server) registerRoutes() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(s.requestLogger)

	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/version", s.handleVersion)

	// Read-only state
	s.echo.GET("/", s.handleLanding)
	s.echo.GET("/stats", s.handleStats)
	s.echo.GET("/config", s.handleConfig)
	s.echo.GET("/preview", s.handlePreview)

	// Live connections
	s.echo.GET("/ws", s.handleWebSocket)
	s.echo.GET("/events", s.handleEvents)
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.counters.IncRequests()

		// Tag the request context so every slog call downstream carries the
		// correlation ID.
		req := c.Request()
		ctx := correlation.WithID(req.Context(), correlation.NewID())
		c.SetRequest(req.WithContext(ctx))

		err := next(c)

		slog.DebugContext(ctx, "Request handled",
			"method", req.Method,
			"path", req.URL.Path,
			"status", c.Response().Status,
			"remote", c.RealIP(),
		)
		return err
	}
}
