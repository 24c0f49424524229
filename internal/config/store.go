package config

import "sync/atomic"

// Store holds the current shared configuration and supports atomic replace
// and read. Readers always observe one complete version.
type Store struct {
	current atomic.Pointer[Config]
}

// NewStore creates a store seeded with the given configuration.
func NewStore(cfg *Config) *Store {
	s := &Store{}
	s.current.Store(cfg)
	return s
}

// Current returns the configuration version in effect. The returned value
// must be treated as immutable.
func (s *Store) Current() *Config {
	return s.current.Load()
}

// Replace atomically swaps in a new configuration version.
func (s *Store) Replace(cfg *Config) {
	s.current.Store(cfg)
}
