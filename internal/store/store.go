// Package store persists connection metadata across two tiers: a Redis
// cache with expiry and a Postgres history table. Both tiers are strictly
// best-effort side channels for the in-memory registry; no failure here is
// ever surfaced to connect/disconnect callers.
package store

import (
	"context"
	"log/slog"

	"github.com/1vKSfvhNz/farm-backend/internal/metrics"
)

// Tier is the write surface shared by both persistence tiers.
type Tier interface {
	// SaveConnected records that the user connected with the given metadata.
	SaveConnected(ctx context.Context, userID string, metadata map[string]any) error

	// SaveDisconnected records the user's disconnection time.
	SaveDisconnected(ctx context.Context, userID string) error
}

// Store fans writes out to both tiers, logging and counting failures
// instead of returning them.
type Store struct {
	cache   Tier
	history Tier
	logger  *slog.Logger
}

// New creates a Store. Either tier may be nil, in which case it is skipped.
func New(cache, history Tier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		cache:   cache,
		history: history,
		logger:  logger,
	}
}

// SaveConnected writes connection metadata to both tiers.
func (s *Store) SaveConnected(ctx context.Context, userID string, metadata map[string]any) {
	if s.cache != nil {
		if err := s.cache.SaveConnected(ctx, userID, metadata); err != nil {
			s.logger.Error("failed to save connection metadata to cache",
				"user_id", userID,
				"error", err,
			)
			metrics.PersistErrors.WithLabelValues("cache").Inc()
		}
	}
	if s.history != nil {
		if err := s.history.SaveConnected(ctx, userID, metadata); err != nil {
			s.logger.Error("failed to save connection to database",
				"user_id", userID,
				"error", err,
			)
			metrics.PersistErrors.WithLabelValues("database").Inc()
		}
	}
}

// SaveDisconnected stamps the disconnection time on both tiers.
func (s *Store) SaveDisconnected(ctx context.Context, userID string) {
	if s.cache != nil {
		if err := s.cache.SaveDisconnected(ctx, userID); err != nil {
			s.logger.Error("failed to update disconnection time in cache",
				"user_id", userID,
				"error", err,
			)
			metrics.PersistErrors.WithLabelValues("cache").Inc()
		}
	}
	if s.history != nil {
		if err := s.history.SaveDisconnected(ctx, userID); err != nil {
			s.logger.Error("failed to update disconnection time in database",
				"user_id", userID,
				"error", err,
			)
			metrics.PersistErrors.WithLabelValues("database").Inc()
		}
	}
}
