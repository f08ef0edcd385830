package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/1vKSfvhNz/farm-backend/internal/config"
)

// keyPrefix is the cache key schema: conn:<userID>.
const keyPrefix = "conn:"

// Cache is the ephemeral tier. The client is created once at startup and
// connectivity-checked with a single ping; if that ping fails the tier is
// marked unavailable for the process lifetime and every write becomes a
// no-op.
type Cache struct {
	client    *redis.Client
	ttl       time.Duration
	available bool
	logger    *slog.Logger
}

// NewCache opens the shared Redis client and pings it once.
func NewCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	c := &Cache{
		client: client,
		ttl:    cfg.TTL,
		logger: logger,
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Error("cache connection failed, tier disabled",
			"addr", cfg.Addr,
			"error", err,
		)
		return c
	}

	c.available = true
	logger.Info("cache connection established", "addr", cfg.Addr)
	return c
}

// Available reports whether the cache tier accepted the startup ping.
func (c *Cache) Available() bool {
	return c.available
}

// Close releases the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// SaveConnected stores the metadata copy with a fresh last_connected stamp
// and the configured TTL.
func (c *Cache) SaveConnected(ctx context.Context, userID string, metadata map[string]any) error {
	if !c.available {
		c.logger.Debug("cache unavailable, skipping write", "user_id", userID)
		return nil
	}

	entry := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		entry[k] = v
	}
	entry["last_connected"] = time.Now().UTC().Format(time.RFC3339)

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := c.client.Set(ctx, keyPrefix+userID, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cache entry: %w", err)
	}
	return nil
}

// SaveDisconnected stamps last_disconnected on the existing entry and
// refreshes its TTL. A missing entry is not an error.
func (c *Cache) SaveDisconnected(ctx context.Context, userID string) error {
	if !c.available {
		c.logger.Debug("cache unavailable, skipping write", "user_id", userID)
		return nil
	}

	key := keyPrefix + userID

	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get cache entry: %w", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(raw, &entry); err != nil {
		return fmt.Errorf("decode cache entry: %w", err)
	}
	entry["last_disconnected"] = time.Now().UTC().Format(time.RFC3339)

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cache entry: %w", err)
	}
	return nil
}
