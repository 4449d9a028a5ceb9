package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/nagarika-mitra/nagarika_mitra/internal/identity"
	"github.com/nagarika-mitra/nagarika_mitra/internal/metrics"
)

// DefaultRestoreTimeout bounds Restore when none is configured.
const DefaultRestoreTimeout = 5 * time.Second

// Manager opens stores bound to bearer tokens. Stores share the manager's
// backend, citizen repository and cache.
type Manager struct {
	backend        Backend
	citizens       identity.Repository
	cache          Cache
	restoreTimeout time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

func NewManager(backend Backend, citizens identity.Repository, cache Cache, restoreTimeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *Manager {
	if restoreTimeout <= 0 {
		restoreTimeout = DefaultRestoreTimeout
	}
	return &Manager{backend: backend, citizens: citizens, cache: cache, restoreTimeout: restoreTimeout, logger: logger, metrics: m}
}

// Open returns an Uninitialized store for token.
func (m *Manager) Open(token string) *Store {
	return &Store{
		backend:        m.backend,
		citizens:       m.citizens,
		cache:          m.cache,
		restoreTimeout: m.restoreTimeout,
		logger:         m.logger,
		metrics:        m.metrics,
		token:          token,
		scope:          Scope(token),
		state:          Uninitialized,
	}
}

// ProfileRequired restores the store for token and reports whether it still
// needs profile completion.
func (m *Manager) ProfileRequired(ctx context.Context, token string) (bool, error) {
	s := m.Open(token)
	if err := s.Restore(ctx); err != nil {
		return true, err
	}
	return s.State() == AwaitingProfile, nil
}
