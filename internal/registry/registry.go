package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/1vKSfvhNz/farm-backend/internal/metrics"
)

// Recorder receives best-effort persistence writes. Implementations must
// never block past the context deadline; errors are their own problem.
type Recorder interface {
	SaveConnected(ctx context.Context, userID string, metadata map[string]any)
	SaveDisconnected(ctx context.Context, userID string)
}

// Registry is the authoritative map of live connections. A single lock
// totally orders connect, disconnect, and heartbeat start/stop per user, so
// two racing connects for the same user can never both win.
type Registry struct {
	cfg      Config
	recorder Recorder
	logger   *slog.Logger

	mu    sync.RWMutex
	conns map[string]*Connection
	tasks map[string]*heartbeatTask
}

// New creates a Registry. recorder may be nil to disable persistence.
func New(cfg Config, recorder Recorder, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = def.PersistTimeout
	}

	return &Registry{
		cfg:      cfg,
		recorder: recorder,
		logger:   logger,
		conns:    make(map[string]*Connection),
		tasks:    make(map[string]*heartbeatTask),
	}
}

// Connect registers a new connection for userID, superseding any existing
// one. It starts the heartbeat task and issues a best-effort persistence
// write. Returns false only if the channel is already dead at registration;
// persistence failures never affect the result.
func (r *Registry) Connect(ch Channel, userID string, meta Metadata) bool {
	if ch == nil || !ch.Alive() {
		r.logger.Warn("rejecting registration on dead channel", "user_id", userID)
		return false
	}

	conn := &Connection{
		ID:          uuid.NewString(),
		UserID:      userID,
		Channel:     ch,
		ConnectedAt: time.Now().UTC(),
		Metadata:    meta,
	}
	conn.Touch()

	r.mu.Lock()
	if old, ok := r.conns[userID]; ok {
		r.logger.Info("user already connected, replacing connection",
			"user_id", userID,
			"old_conn_id", old.ID,
		)
		r.stopHeartbeatLocked(userID)
		if err := old.Channel.Close(ReasonSuperseded); err != nil {
			r.logger.Debug("error closing superseded channel", "user_id", userID, "error", err)
		}
		metrics.DisconnectsTotal.WithLabelValues(metrics.CauseSuperseded).Inc()
	}
	r.conns[userID] = conn
	r.startHeartbeatLocked(conn)
	metrics.ActiveConnections.Set(float64(len(r.conns)))
	r.mu.Unlock()

	metrics.ConnectsTotal.Inc()
	r.persistConnect(userID, meta)

	r.logger.Info("user connected", "user_id", userID, "conn_id", conn.ID)
	return true
}

// Disconnect removes the live connection for userID, stopping its heartbeat
// and closing its channel. Idempotent: returns nil without error when no
// entry exists.
func (r *Registry) Disconnect(userID string) *Connection {
	r.mu.Lock()
	conn, ok := r.conns[userID]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	r.stopHeartbeatLocked(userID)
	delete(r.conns, userID)
	metrics.ActiveConnections.Set(float64(len(r.conns)))
	r.mu.Unlock()

	if err := conn.Channel.Close(ReasonNormal); err != nil {
		r.logger.Debug("error closing channel", "user_id", userID, "error", err)
	}
	metrics.DisconnectsTotal.WithLabelValues(metrics.CauseExplicit).Inc()
	r.persistDisconnect(userID)

	r.logger.Info("user disconnected", "user_id", userID, "conn_id", conn.ID)
	return conn
}

// Evict removes conn only if it is still the registered entry for its user.
// Teardown paths that hold a stale snapshot (heartbeat failure, send
// failure, reaper) use this so they can never tear down a replacement
// connection that superseded theirs.
func (r *Registry) Evict(conn *Connection, reason CloseReason, cause string) bool {
	r.mu.Lock()
	cur, ok := r.conns[conn.UserID]
	if !ok || cur.ID != conn.ID {
		r.mu.Unlock()
		return false
	}
	r.stopHeartbeatLocked(conn.UserID)
	delete(r.conns, conn.UserID)
	metrics.ActiveConnections.Set(float64(len(r.conns)))
	r.mu.Unlock()

	if err := conn.Channel.Close(reason); err != nil {
		r.logger.Debug("error closing channel", "user_id", conn.UserID, "error", err)
	}
	metrics.DisconnectsTotal.WithLabelValues(cause).Inc()
	r.persistDisconnect(conn.UserID)

	r.logger.Info("connection evicted",
		"user_id", conn.UserID,
		"conn_id", conn.ID,
		"cause", cause,
	)
	return true
}

// IsConnected reports whether userID has a live connection.
func (r *Registry) IsConnected(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[userID]
	return ok
}

// Get returns the live connection for userID, or nil.
func (r *Registry) Get(userID string) *Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[userID]
}

// All returns a copy of the live connection map.
func (r *Registry) All() map[string]*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*Connection, len(r.conns))
	for userID, conn := range r.conns {
		out[userID] = conn
	}
	return out
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// ByRole returns the user IDs whose metadata role matches, case-insensitively.
func (r *Registry) ByRole(role string) []string {
	if role == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var userIDs []string
	for userID, conn := range r.conns {
		if conn.Metadata.HasRole(role) {
			userIDs = append(userIDs, userID)
		}
	}
	return userIDs
}

// ReapStale force-disconnects every connection whose last liveness signal
// is older than olderThan and returns how many were removed.
func (r *Registry) ReapStale(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)

	r.mu.RLock()
	var stale []*Connection
	for _, conn := range r.conns {
		if conn.LastSeen().Before(cutoff) {
			stale = append(stale, conn)
		}
	}
	r.mu.RUnlock()

	reaped := 0
	for _, conn := range stale {
		r.logger.Warn("cleaning up stale connection",
			"user_id", conn.UserID,
			"last_seen", conn.LastSeen(),
		)
		if r.Evict(conn, ReasonStale, metrics.CauseStale) {
			reaped++
		}
	}
	return reaped
}

// Shutdown stops every heartbeat and closes every channel. Persistence
// writes are skipped; process shutdown is not a user disconnection.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	for userID := range r.tasks {
		r.stopHeartbeatLocked(userID)
	}
	conns := r.conns
	r.conns = make(map[string]*Connection)
	metrics.ActiveConnections.Set(0)
	r.mu.Unlock()

	for _, conn := range conns {
		conn.Channel.Close(ReasonNormal)
	}

	r.logger.Info("registry shut down", "closed", len(conns))
}

func (r *Registry) persistConnect(userID string, meta Metadata) {
	if r.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.PersistTimeout)
	defer cancel()
	r.recorder.SaveConnected(ctx, userID, meta)
}

func (r *Registry) persistDisconnect(userID string) {
	if r.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.PersistTimeout)
	defer cancel()
	r.recorder.SaveDisconnected(ctx, userID)
}
