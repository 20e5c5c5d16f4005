package persistence

import (
	"log/slog"
	"time"
)

// Builder can be used to build a Manager.
type Builder struct {
	storage Storage
	logger  *slog.Logger
	now     func() time.Time
}

// MakeBuilder creates a new builder with in-memory storage.
func MakeBuilder() Builder {
	return Builder{
		now: time.Now,
	}
}

// WithStorage sets where the registry is persisted.
func (b Builder) WithStorage(storage Storage) Builder {
	b.storage = storage
	return b
}

// WithLogger sets the logger of the manager.
func (b Builder) WithLogger(logger *slog.Logger) Builder {
	b.logger = logger
	return b
}

// WithTimeSource sets the function used to stamp saves.
func (b Builder) WithTimeSource(now func() time.Time) Builder {
	b.now = now
	return b
}

// Build creates the Manager. The registry starts empty; call Open to hydrate
// it from storage.
func (b Builder) Build() *Manager {
	m := &Manager{
		registry:     NewRegistry(),
		storage:      b.storage,
		codec:        NewSnapshotCodec(),
		logger:       b.logger,
		now:          b.now,
		contributors: make(map[string]Contributor),
	}

	if m.storage == nil {
		m.storage = NewMemoryStorage()
	}

	if m.logger == nil {
		m.logger = slog.Default()
	}

	if m.now == nil {
		m.now = time.Now
	}

	return m
}
