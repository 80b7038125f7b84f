// Package metrics defines the prometheus collectors for the action replay
// service. Collectors are registered via promauto at package init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Action execution metrics
var (
	// ActionsTotal tracks per-session action attempts by kind and status
	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actions_total",
			Help: "Total per-session action attempts by kind and status",
		},
		[]string{"kind", "status"},
	)

	// ActionDuration tracks per-session action latency in seconds
	ActionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "action_duration_seconds",
			Help:    "Per-session action duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)

	// BulkItemsTotal tracks bulk items by outcome
	BulkItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulk_items_total",
			Help: "Total bulk items by outcome",
		},
		[]string{"status"},
	)
)

// Session registry metrics
var (
	// SessionsActive tracks the number of active sessions as of the last
	// registry read
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Number of active sessions as of the last registry read",
		},
	)

	// SessionEvictionsTotal tracks evicted sessions
	SessionEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_evictions_total",
			Help: "Total sessions evicted after authentication loss",
		},
	)

	// SessionSavesTotal tracks session upserts by acquisition method
	SessionSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_saves_total",
			Help: "Total session upserts by acquisition method",
		},
		[]string{"method"},
	)
)

// Store backend metrics
var (
	// StoreOpsTotal tracks store operations by backend, operation and status
	StoreOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operations_total",
			Help: "Total session store operations by backend, operation and status",
		},
		[]string{"backend", "operation", "status"},
	)

	// StoreFallbacksTotal tracks writes that fell back to the secondary store
	StoreFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_fallbacks_total",
			Help: "Total writes served by the secondary store after a primary failure",
		},
		[]string{"operation"},
	)
)
