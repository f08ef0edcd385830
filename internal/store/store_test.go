package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/1vKSfvhNz/farm-backend/internal/config"
)

// fakeTier records calls and can be forced to fail.
type fakeTier struct {
	mu            sync.Mutex
	connects      []string
	disconnects   []string
	lastMetadata  map[string]any
	failAllWrites bool
}

func (f *fakeTier) SaveConnected(ctx context.Context, userID string, metadata map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAllWrites {
		return errors.New("tier down")
	}
	f.connects = append(f.connects, userID)
	f.lastMetadata = metadata
	return nil
}

func (f *fakeTier) SaveDisconnected(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAllWrites {
		return errors.New("tier down")
	}
	f.disconnects = append(f.disconnects, userID)
	return nil
}

func (f *fakeTier) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.connects)
}

func TestStoreWritesBothTiers(t *testing.T) {
	cache := &fakeTier{}
	history := &fakeTier{}
	s := New(cache, history, nil)

	meta := map[string]any{"role": "deliver"}
	s.SaveConnected(context.Background(), "42", meta)
	s.SaveDisconnected(context.Background(), "42")

	if cache.connectCount() != 1 || history.connectCount() != 1 {
		t.Errorf("connect writes = (%d, %d), want (1, 1)", cache.connectCount(), history.connectCount())
	}
	if len(cache.disconnects) != 1 || len(history.disconnects) != 1 {
		t.Errorf("disconnect writes = (%d, %d), want (1, 1)", len(cache.disconnects), len(history.disconnects))
	}
	if history.lastMetadata["role"] != "deliver" {
		t.Errorf("history metadata role = %v, want %q", history.lastMetadata["role"], "deliver")
	}
}

func TestStoreCacheFailureDoesNotStopHistory(t *testing.T) {
	cache := &fakeTier{failAllWrites: true}
	history := &fakeTier{}
	s := New(cache, history, nil)

	// Neither call may panic or propagate an error.
	s.SaveConnected(context.Background(), "42", map[string]any{})
	s.SaveDisconnected(context.Background(), "42")

	if history.connectCount() != 1 {
		t.Errorf("history connect writes = %d, want 1", history.connectCount())
	}
	if len(history.disconnects) != 1 {
		t.Errorf("history disconnect writes = %d, want 1", len(history.disconnects))
	}
}

func TestStoreNilTiers(t *testing.T) {
	s := New(nil, nil, nil)

	// Must be a no-op, not a nil dereference.
	s.SaveConnected(context.Background(), "42", map[string]any{})
	s.SaveDisconnected(context.Background(), "42")
}

func TestCacheUnavailableSkipsWrites(t *testing.T) {
	// Nothing listens on this port; the startup ping fails fast and the
	// tier must disable itself instead of erroring per call.
	cfg := config.CacheConfig{
		Addr:        "127.0.0.1:1",
		TTL:         time.Hour,
		DialTimeout: 100 * time.Millisecond,
	}
	c := NewCache(context.Background(), cfg, nil)
	defer c.Close()

	if c.Available() {
		t.Fatal("Available() = true for unreachable cache")
	}
	if err := c.SaveConnected(context.Background(), "42", map[string]any{"role": "deliver"}); err != nil {
		t.Errorf("SaveConnected on disabled tier = %v, want nil", err)
	}
	if err := c.SaveDisconnected(context.Background(), "42"); err != nil {
		t.Errorf("SaveDisconnected on disabled tier = %v, want nil", err)
	}
}
