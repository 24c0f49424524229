package httpserver

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/labstack/echo/v4"
)

// handleEvents serves the one-way server-sent-event stream: a hello event on
// connect, then status, config, and keepalive events until the client leaves.
func (s *Server) handleEvents(c echo.Context) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(200)

	id, events, cancel := s.stream.Subscribe()
	defer cancel()

	hello := map[string]any{
		"subscriber_id": id.String(),
		"config":        s.store.Current().Snapshot(),
	}
	if err := writeEvent(res, "hello", hello); err != nil {
		return nil
	}

	keepalive := s.clock.NewTicker(s.keepalive)
	defer keepalive.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := writeEvent(res, event.Name, event.Data); err != nil {
				return nil
			}
		case <-keepalive.Chan():
			if err := writeEvent(res, "keepalive", map[string]any{"ts": s.clock.Now().UnixMilli()}); err != nil {
				return nil
			}
		}
	}
}

func writeEvent(res *echo.Response, name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		slog.Error("Failed to marshal stream event", "event", name, "error", err)
		return nil
	}
	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return err
	}
	res.Flush()
	return nil
}
