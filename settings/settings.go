// Package settings persists the two user options of the converter:
// whether conversion is enabled and whether smart rounding is used.
//
// Three [Store] implementations are provided: [Memory] for tests and
// one-shot runs, [FileStore] for a TOML file shared between processes, and
// [SQLStore] for a SQLite database.
package settings

import (
	"context"
	"errors"
	"sync"
)

// Setting keys as they appear on disk and on the wire.
const (
	KeyEnabled       = "enabled"
	KeySmartRounding = "smartRounding"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("settings store is closed")

// Settings is the full set of options.
type Settings struct {
	Enabled       bool `toml:"enabled" json:"enabled"`
	SmartRounding bool `toml:"smartRounding" json:"smartRounding"`
}

// Default returns enabled conversion with plain rounding.
func Default() Settings {
	return Settings{Enabled: true, SmartRounding: false}
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	Enabled       *bool `json:"enabled,omitempty"`
	SmartRounding *bool `json:"smartRounding,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Enabled == nil && p.SmartRounding == nil
}

// Apply returns s with the patch applied.
func (p Patch) Apply(s Settings) Settings {
	if p.Enabled != nil {
		s.Enabled = *p.Enabled
	}
	if p.SmartRounding != nil {
		s.SmartRounding = *p.SmartRounding
	}
	return s
}

// Bool returns a pointer to v, for building patches.
func Bool(v bool) *bool {
	return &v
}

// Store loads and saves settings. Missing values load as their defaults.
type Store interface {
	Load(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
	Close() error
}

// Memory is an in-process Store.
type Memory struct {
	mu     sync.Mutex
	s      Settings
	closed bool
}

// NewMemory returns a store holding s.
func NewMemory(s Settings) *Memory {
	return &Memory{s: s}
}

// Load returns the stored settings.
func (m *Memory) Load(ctx context.Context) (Settings, error) {
	if err := ctx.Err(); err != nil {
		return Settings{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Settings{}, ErrClosed
	}
	return m.s, nil
}

// Save replaces the stored settings.
func (m *Memory) Save(ctx context.Context, s Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.s = s
	return nil
}

// Close marks the store closed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
