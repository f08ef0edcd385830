// Package router fans messages out to live connections. Deliveries are
// best-effort and independent: a failed target is torn down and reported,
// never retried, and never delays the others.
package router

import (
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/1vKSfvhNz/farm-backend/internal/metrics"
	"github.com/1vKSfvhNz/farm-backend/internal/registry"
)

// Filter selects broadcast targets. Role and UserIDs are unioned when
// either is set; with neither, every live connection is a target.
// ExcludeIDs are always subtracted.
type Filter struct {
	Role       string
	UserIDs    []string
	ExcludeIDs []string
}

// Router delivers messages to connections held by the registry.
type Router struct {
	registry *registry.Registry
	logger   *slog.Logger
}

// New creates a Router.
func New(reg *registry.Registry, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		registry: reg,
		logger:   logger,
	}
}

// Send delivers message to a single user. Any failure - no connection, a
// channel that stopped being sendable, or a send error - means the
// connection is dead: it is evicted and false is returned. A successful
// send is itself a liveness signal and updates LastSeen.
func (rt *Router) Send(userID string, message any) bool {
	conn := rt.registry.Get(userID)
	if conn == nil {
		rt.logger.Debug("cannot send to disconnected user", "user_id", userID)
		return false
	}

	if !conn.Channel.Alive() {
		rt.logger.Warn("channel no longer sendable", "user_id", userID)
		rt.registry.Evict(conn, registry.ReasonInternal, metrics.CauseSendFailed)
		return false
	}

	if err := conn.Channel.SendJSON(message); err != nil {
		rt.logger.Error("failed to send message",
			"user_id", userID,
			"error", err,
		)
		rt.registry.Evict(conn, registry.ReasonInternal, metrics.CauseSendFailed)
		return false
	}

	conn.Touch()
	return true
}

// Broadcast delivers message to every target selected by f, concurrently.
// The result maps each target to its delivery outcome; failed targets are
// present with false. A broadcast is not atomic - one failure never aborts
// the rest.
func (rt *Router) Broadcast(message any, f Filter) map[string]bool {
	targets := make(map[string]struct{})

	if f.Role != "" {
		for _, userID := range rt.registry.ByRole(f.Role) {
			targets[userID] = struct{}{}
		}
	}
	for _, userID := range f.UserIDs {
		targets[userID] = struct{}{}
	}
	if f.Role == "" && len(f.UserIDs) == 0 {
		for userID := range rt.registry.All() {
			targets[userID] = struct{}{}
		}
	}
	for _, userID := range f.ExcludeIDs {
		delete(targets, userID)
	}

	results := make(map[string]bool, len(targets))
	var mu sync.Mutex
	var g errgroup.Group

	for userID := range targets {
		userID := userID
		g.Go(func() error {
			ok := rt.Send(userID, message)

			mu.Lock()
			results[userID] = ok
			mu.Unlock()

			if ok {
				metrics.BroadcastDeliveries.WithLabelValues("ok").Inc()
			} else {
				metrics.BroadcastDeliveries.WithLabelValues("failed").Inc()
			}
			return nil
		})
	}
	g.Wait()

	return results
}
