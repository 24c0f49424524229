// Package config implements the shared hot-reloadable configuration:
// a clamping JSON loader, an atomically swappable store, and a file watcher
// feeding the reload broadcaster.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/pscheid92/pulsecast/internal/domain"
)

// Defaults applied when the config file is missing or a field is absent.
const (
	DefaultPort           = 8080
	DefaultIntervalMS     = 2000
	DefaultMaxConnections = 256
)

// Config is one immutable version of the shared configuration. It is swapped
// as a whole unit on reload; connections keep their individually overridden
// interval/mode/paused state across swaps.
type Config struct {
	Port              int         `json:"port"`
	DefaultIntervalMS int         `json:"default_interval_ms"`
	DefaultMode       domain.Mode `json:"default_mode"`
	MaxConnections    int         `json:"max_connections"`
	AllowedOrigins    []string    `json:"allowed_origins"`
	UpstreamURL       string      `json:"upstream_url"`
	ReferenceBaseURL  string      `json:"reference_base_url"`
}

// Load reads and validates the configuration file at path. A missing file
// yields the full default configuration. Out-of-range numeric fields are
// clamped here so they are never observed out of range downstream.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("Config file not found, using defaults", "path", path)
		cfg := &Config{}
		clamp(cfg)
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	clamp(&cfg)
	return &cfg, nil
}

func clamp(cfg *Config) {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = DefaultPort
	}

	if cfg.DefaultIntervalMS == 0 {
		cfg.DefaultIntervalMS = DefaultIntervalMS
	}
	cfg.DefaultIntervalMS = domain.ClampInterval(cfg.DefaultIntervalMS)

	if _, ok := domain.ParseMode(string(cfg.DefaultMode)); !ok {
		if cfg.DefaultMode != "" {
			slog.Warn("Unknown default mode, falling back to reference", "mode", cfg.DefaultMode)
		}
		cfg.DefaultMode = domain.ModeReference
	}

	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = DefaultMaxConnections
	}

	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	if cfg.ReferenceBaseURL == "" {
		cfg.ReferenceBaseURL = "https://picsum.photos"
	}

	if cfg.UpstreamURL == "" {
		cfg.UpstreamURL = "https://picsum.photos/800/600"
	}
}

// Snapshot returns the display-relevant view pushed to clients.
func (c *Config) Snapshot() domain.ConfigSnapshot {
	origins := make([]string, len(c.AllowedOrigins))
	copy(origins, c.AllowedOrigins)

	return domain.ConfigSnapshot{
		DefaultIntervalMS: c.DefaultIntervalMS,
		DefaultMode:       c.DefaultMode,
		MaxConnections:    c.MaxConnections,
		AllowedOrigins:    origins,
	}
}

// OriginAllowed reports whether the given Origin header value is acceptable.
// An empty origin (non-browser client) is always allowed.
func (c *Config) OriginAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
