// Package metrics exposes the Prometheus collectors the indexer publishes on
// GET /metrics, tracking cursor progress, tier population, and per-user
// update outcomes.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Indexer bundles the collectors the ingestion and refresh loops record
// against.
type Indexer struct {
	CursorBlock      prometheus.Gauge
	ChainHeadBlock   prometheus.Gauge
	TierSize         *prometheus.GaugeVec
	UpdateDuration   prometheus.Histogram
	UpdateErrors     *prometheus.CounterVec
	BorrowersSeen    prometheus.Counter
	WindowsProcessed prometheus.Counter
}

var (
	once     sync.Once
	registry *Indexer
)

// New returns the process-wide singleton Indexer metrics registry,
// registering its collectors with the default Prometheus registry on first
// use.
func New() *Indexer {
	once.Do(func() {
		registry = &Indexer{
			CursorBlock: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "indexer",
				Name:      "cursor_block_number",
				Help:      "Highest block number whose borrow events have been fully processed.",
			}),
			ChainHeadBlock: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "indexer",
				Name:      "chain_head_block_number",
				Help:      "Most recently observed chain head block number.",
			}),
			TierSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "indexer",
				Name:      "tier_size",
				Help:      "Number of users currently stored in each risk tier.",
			}, []string{"tier"}),
			UpdateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "indexer",
				Name:      "user_update_duration_seconds",
				Help:      "Latency of a single user position extraction and persist cycle.",
				Buckets:   prometheus.DefBuckets,
			}),
			UpdateErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "indexer",
				Name:      "user_update_errors_total",
				Help:      "Count of user update failures segmented by the stage that failed.",
			}, []string{"stage"}),
			BorrowersSeen: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "indexer",
				Name:      "borrowers_seen_total",
				Help:      "Count of successful user position updates from the ingestion and refresh loops.",
			}),
			WindowsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "indexer",
				Name:      "log_windows_processed_total",
				Help:      "Count of ingestion block windows successfully processed.",
			}),
		}
		prometheus.MustRegister(
			registry.CursorBlock,
			registry.ChainHeadBlock,
			registry.TierSize,
			registry.UpdateDuration,
			registry.UpdateErrors,
			registry.BorrowersSeen,
			registry.WindowsProcessed,
		)
	})
	return registry
}

// ObserveUpdate records the duration of a user update cycle.
func (m *Indexer) ObserveUpdate(d time.Duration) {
	if m == nil {
		return
	}
	m.UpdateDuration.Observe(d.Seconds())
}

// RecordError increments the error counter for the supplied stage (e.g.
// "rpc", "decode", "store").
func (m *Indexer) RecordError(stage string) {
	if m == nil {
		return
	}
	if stage == "" {
		stage = "unknown"
	}
	m.UpdateErrors.WithLabelValues(stage).Inc()
}
