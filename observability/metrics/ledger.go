package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics tracks calls applied by the ledger host.
type LedgerMetrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	height   prometheus.Gauge
	pending  prometheus.Histogram
}

var (
	ledgerOnce     sync.Once
	ledgerRegistry *LedgerMetrics
)

// Ledger returns the process-wide ledger metrics.
func Ledger() *LedgerMetrics {
	ledgerOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			calls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "quest_ledger_calls_total",
				Help: "Count of ledger calls by method and outcome kind.",
			}, []string{"method", "outcome"}),
			duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "quest_ledger_call_duration_seconds",
				Help:    "Time spent applying a ledger call including commit.",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			}, []string{"method"}),
			height: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "quest_ledger_height",
				Help: "Height of the last committed mutating call.",
			}),
			pending: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "quest_ledger_commit_keys",
				Help:    "Number of keys written per committed call.",
				Buckets: []float64{1, 2, 4, 8, 16},
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.calls,
			ledgerRegistry.duration,
			ledgerRegistry.height,
			ledgerRegistry.pending,
		)
	})
	return ledgerRegistry
}

// ObserveCall records the outcome of a call. outcome is "ok" or an error kind.
func (m *LedgerMetrics) ObserveCall(method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(method, outcome).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// SetHeight publishes the committed height.
func (m *LedgerMetrics) SetHeight(height uint64) {
	if m == nil {
		return
	}
	m.height.Set(float64(height))
}

// ObserveCommit records how many keys a commit flushed.
func (m *LedgerMetrics) ObserveCommit(keys int) {
	if m == nil {
		return
	}
	m.pending.Observe(float64(keys))
}
