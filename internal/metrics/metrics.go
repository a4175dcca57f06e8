package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FramesTotal counts inbound frames by classification outcome.
	FramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statesync_frames_total",
		Help: "Inbound frames by class (ignore, advisory, snapshot)",
	}, []string{"channel", "class"})

	// DecodeErrorsTotal counts malformed frames dropped at the boundary.
	DecodeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statesync_decode_errors_total",
		Help: "Malformed frames dropped without affecting connection state",
	}, []string{"channel"})

	// BroadcastsTotal counts snapshot deliveries to subscribers.
	BroadcastsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statesync_broadcasts_total",
		Help: "Snapshot deliveries by origin (live, synthetic)",
	}, []string{"channel", "origin"})

	// ReconnectAttemptsTotal counts reconnection attempts.
	ReconnectAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statesync_reconnect_attempts_total",
		Help: "Reconnection attempts per channel",
	}, []string{"channel"})

	// ConnectionState is the current state machine position
	// (0 idle, 1 connecting, 2 open, 3 closed, 4 exhausted).
	ConnectionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "statesync_connection_state",
		Help: "Connection state (0 idle, 1 connecting, 2 open, 3 closed, 4 exhausted)",
	}, []string{"channel"})

	// Subscribers is the current subscriber count per channel.
	Subscribers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "statesync_subscribers",
		Help: "Currently registered subscribers per channel",
	}, []string{"channel"})

	// CacheOpsTotal counts cache operations by result.
	CacheOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statesync_cache_ops_total",
		Help: "Cache operations by result (hit, miss, write, clear)",
	}, []string{"channel", "op"})

	// FallbackEmissionsTotal counts synthetic snapshots emitted.
	FallbackEmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statesync_fallback_emissions_total",
		Help: "Synthetic snapshots emitted while exhausted",
	}, []string{"channel"})
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
