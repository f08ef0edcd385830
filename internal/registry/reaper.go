package registry

import (
	"context"
	"log/slog"
	"time"
)

// Reaper is the singleton periodic task that removes connections whose
// heartbeats stopped producing liveness signals. It backstops the
// heartbeat mechanism: a send can keep succeeding into an OS buffer long
// after the peer is gone, so liveness is judged on LastSeen age, not on
// send success alone.
type Reaper struct {
	registry  *Registry
	interval  time.Duration
	threshold time.Duration
	logger    *slog.Logger
}

// NewReaper creates a Reaper scanning every 2x the heartbeat interval for
// connections idle longer than 3x the heartbeat interval.
func NewReaper(reg *Registry, heartbeatInterval time.Duration, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{
		registry:  reg,
		interval:  2 * heartbeatInterval,
		threshold: 3 * heartbeatInterval,
		logger:    logger,
	}
}

// Run scans until ctx is cancelled. It is meant to run for the lifetime of
// the process.
func (p *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := p.registry.ReapStale(p.threshold); n > 0 {
				p.logger.Info("cleaned up stale connections", "count", n)
			}
		}
	}
}
