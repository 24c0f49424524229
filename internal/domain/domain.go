// Package domain holds the shared types of the fan-out core: payload modes,
// interval bounds, and the snapshots exchanged between components.
package domain

import (
	"strings"
	"time"
)

// Mode selects how payloads are delivered to a connection.
type Mode string

const (
	// ModeReference delivers a lightweight pointer (URL) requiring no fetch.
	ModeReference Mode = "reference"
	// ModeEmbeddedBytes delivers raw content bytes plus a content-type hint.
	ModeEmbeddedBytes Mode = "embedded-bytes"
)

// ParseMode parses a mode value case-insensitively.
// Returns false if the value is not one of the two recognized modes.
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(ModeReference):
		return ModeReference, true
	case string(ModeEmbeddedBytes):
		return ModeEmbeddedBytes, true
	default:
		return "", false
	}
}

// Push interval bounds in milliseconds. Both per-connection overrides and the
// configured default are clamped to this range.
const (
	MinIntervalMS = 200
	MaxIntervalMS = 60000
)

// ValidInterval reports whether ms is within the accepted interval range.
func ValidInterval(ms float64) bool {
	return ms >= MinIntervalMS && ms <= MaxIntervalMS
}

// ClampInterval forces ms into the accepted interval range.
func ClampInterval(ms int) int {
	if ms < MinIntervalMS {
		return MinIntervalMS
	}
	if ms > MaxIntervalMS {
		return MaxIntervalMS
	}
	return ms
}

// ConfigSnapshot is the display-relevant view of the shared configuration,
// pushed to clients on connect and on hot reload. Internal fields such as the
// upstream URL are deliberately absent.
type ConfigSnapshot struct {
	DefaultIntervalMS int      `json:"default_interval_ms"`
	DefaultMode       Mode     `json:"default_mode"`
	MaxConnections    int      `json:"max_connections"`
	AllowedOrigins    []string `json:"allowed_origins"`
}

// StatusUpdate is the per-tick heartbeat emitted to one-way subscribers.
type StatusUpdate struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
	Connections   int     `json:"connections"`
	PayloadsSent  uint64  `json:"payloads_sent"`
	Phrase        string  `json:"phrase"`
}

// FetchedPayload is the result of an expensive upstream fetch.
type FetchedPayload struct {
	Data        []byte
	ContentType string
	FetchedAt   time.Time
}
