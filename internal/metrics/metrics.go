// Package metrics exposes Prometheus collectors for the notification core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveConnections tracks the number of live WebSocket connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "notify_active_connections",
		Help: "Number of live WebSocket connections in the registry.",
	})

	// ConnectsTotal counts successful connection registrations.
	ConnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notify_connects_total",
		Help: "Total connections registered.",
	})

	// DisconnectsTotal counts connection removals by cause.
	DisconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_disconnects_total",
		Help: "Total connections removed, by cause.",
	}, []string{"cause"})

	// HeartbeatFailures counts liveness probes that failed to send.
	HeartbeatFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notify_heartbeat_failures_total",
		Help: "Total heartbeat probe sends that failed.",
	})

	// BroadcastDeliveries counts per-target broadcast results.
	BroadcastDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_broadcast_deliveries_total",
		Help: "Total broadcast deliveries, by result.",
	}, []string{"result"})

	// PersistErrors counts best-effort persistence failures by tier.
	PersistErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_persist_errors_total",
		Help: "Total persistence write failures, by tier.",
	}, []string{"tier"})
)

// Disconnect causes.
const (
	CauseExplicit   = "explicit"
	CauseSuperseded = "superseded"
	CauseSendFailed = "send_failed"
	CauseStale      = "stale"
)

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
