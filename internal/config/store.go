package config

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// Loader produces a fresh configuration snapshot.
type Loader func() (*Config, error)

// Store holds the live configuration. Readers always observe a complete
// snapshot; Reload swaps the pointer in one step.
type Store struct {
	current atomic.Pointer[Config]
	loader  Loader
}

// NewStore wraps an initial snapshot. loader may be nil, in which case
// Reload reports an error.
func NewStore(initial *Config, loader Loader) *Store {
	s := &Store{loader: loader}
	s.current.Store(initial)
	return s
}

// Get returns the current snapshot. Callers must treat it as read-only.
func (s *Store) Get() *Config {
	return s.current.Load()
}

// Reload runs the loader and, when the result validates, replaces the
// snapshot. On error the previous snapshot stays in place.
func (s *Store) Reload() (*Config, error) {
	return s.ReloadWith(nil)
}

// ReloadWith is Reload with a hook that may patch the loaded snapshot
// before it is validated and published. prev is the snapshot being
// replaced.
func (s *Store) ReloadWith(adjust func(prev, next *Config)) (*Config, error) {
	if s.loader == nil {
		return nil, errors.New("config reload: no loader configured")
	}
	next, err := s.loader()
	if err != nil {
		return nil, fmt.Errorf("config reload: %w", err)
	}
	if adjust != nil {
		adjust(s.current.Load(), next)
	}
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("config reload: %w", err)
	}
	s.current.Store(next)
	return next, nil
}

// Replace installs a snapshot directly, used by hosts that manage their own
// settings persistence.
func (s *Store) Replace(next *Config) error {
	if next == nil {
		return errors.New("config replace: nil snapshot")
	}
	if err := next.Validate(); err != nil {
		return err
	}
	s.current.Store(next)
	return nil
}
