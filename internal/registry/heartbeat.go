package registry

import (
	"context"
	"time"

	"github.com/1vKSfvhNz/farm-backend/internal/metrics"
)

// pingFrame is the liveness probe sent to a connected client.
type pingFrame struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// heartbeatTask tracks one heartbeat goroutine so it can be cancelled and
// awaited. A task never outlives its connection and is never started twice
// without an intervening stop.
type heartbeatTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// startHeartbeatLocked starts the heartbeat goroutine for conn. Caller
// holds the registry write lock.
func (r *Registry) startHeartbeatLocked(conn *Connection) {
	r.stopHeartbeatLocked(conn.UserID)

	ctx, cancel := context.WithCancel(context.Background())
	task := &heartbeatTask{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.tasks[conn.UserID] = task

	go r.runHeartbeat(ctx, conn, task.done)
}

// stopHeartbeatLocked cancels the heartbeat task for userID and waits for
// it to exit. Safe to call when no task exists. Caller holds the registry
// write lock; the wait cannot deadlock because a failing task closes its
// done channel before it touches the registry again.
func (r *Registry) stopHeartbeatLocked(userID string) {
	task, ok := r.tasks[userID]
	if !ok {
		return
	}
	delete(r.tasks, userID)
	task.cancel()
	<-task.done
}

// runHeartbeat probes conn every HeartbeatInterval. A successful probe
// updates LastSeen; a failed probe (including a send cut short by
// cancellation) tears the connection down. The loop exits silently when the
// connection is no longer the registered entry for its user.
func (r *Registry) runHeartbeat(ctx context.Context, conn *Connection, done chan struct{}) {
	failed := false

	func() {
		defer close(done)

		timer := time.NewTimer(r.cfg.HeartbeatInterval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}

			if cur := r.Get(conn.UserID); cur == nil || cur.ID != conn.ID {
				return
			}

			frame := pingFrame{
				Type:      "ping",
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			}
			if err := conn.Channel.SendJSON(frame); err != nil {
				r.logger.Warn("heartbeat failed",
					"user_id", conn.UserID,
					"conn_id", conn.ID,
					"error", err,
				)
				metrics.HeartbeatFailures.Inc()
				failed = true
				return
			}
			conn.Touch()

			timer.Reset(r.cfg.HeartbeatInterval)
		}
	}()

	// Teardown happens outside the inner func so done is already closed:
	// a concurrent stopHeartbeatLocked holding the registry lock is not
	// left waiting on a task that is itself waiting for the lock.
	if failed {
		r.Evict(conn, ReasonInternal, metrics.CauseSendFailed)
	}
}
