package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const upsertConnectedSQL = `
INSERT INTO user_connections (user_id, last_connected, connection_data, created_at, updated_at)
VALUES ($1, now(), $2, now(), now())
ON CONFLICT (user_id) DO UPDATE
SET last_connected  = EXCLUDED.last_connected,
    connection_data = EXCLUDED.connection_data,
    updated_at      = now()`

const markDisconnectedSQL = `
UPDATE user_connections
SET last_disconnected = now(),
    updated_at        = now()
WHERE user_id = $1`

// History is the durable tier: one row per user in user_connections,
// written in a short-lived transaction per call. Rows are upserted on
// connect and stamped on disconnect; this tier never deletes them.
type History struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewHistory creates the durable tier over an existing pool.
func NewHistory(pool *pgxpool.Pool, logger *slog.Logger) *History {
	if logger == nil {
		logger = slog.Default()
	}
	return &History{
		pool:   pool,
		logger: logger,
	}
}

// SaveConnected upserts the user's history row with a fresh last_connected
// stamp and the serialized metadata blob.
func (h *History) SaveConnected(ctx context.Context, userID string, metadata map[string]any) error {
	blob, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	tx, err := h.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, upsertConnectedSQL, userID, blob); err != nil {
		return fmt.Errorf("upsert connection: %w", err)
	}

	return tx.Commit(ctx)
}

// SaveDisconnected stamps last_disconnected on the user's existing history
// row. A disconnect never creates a row: with no prior connect record the
// update matches nothing and that is fine.
func (h *History) SaveDisconnected(ctx context.Context, userID string) error {
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, markDisconnectedSQL, userID); err != nil {
		return fmt.Errorf("update disconnection: %w", err)
	}

	return tx.Commit(ctx)
}
