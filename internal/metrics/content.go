package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "qfwiki"

// Content, ledger and sitemap metrics.
var (
	ContentCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "content_cache_total",
			Help:      "Collection loads by cache result",
		},
		[]string{"collection", "result"}, // "hit" / "miss" / "error"
	)

	ContentCacheEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "content_cache_evictions_total",
			Help:      "Cache entries evicted by file system events",
		},
		[]string{"collection"},
	)

	LedgerMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_mutations_total",
			Help:      "Interaction ledger mutations by outcome",
		},
		[]string{"driver", "op", "outcome"}, // outcome: committed / noop / persist_failed / error
	)

	LedgerPersistDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ledger_persist_duration_seconds",
			Help:      "Time spent persisting the interaction ledger",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"driver"},
	)

	SitemapEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sitemap_entries",
			Help:      "URL entries in the last generated sitemap",
		},
	)

	SitemapBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sitemap_bytes",
			Help:      "Encoded size of the last generated sitemap",
		},
	)

	SitemapDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sitemap_dropped_total",
			Help:      "Sitemap candidates not admitted, by reason",
		},
		[]string{"reason"},
	)
)

var registerContent sync.Once

// RegisterContentMetrics registers content, ledger and sitemap metrics. Safe to call more than once.
func RegisterContentMetrics() {
	registerContent.Do(func() {
		prometheus.MustRegister(
			ContentCacheTotal,
			ContentCacheEvictionsTotal,
			LedgerMutationsTotal,
			LedgerPersistDuration,
			SitemapEntries,
			SitemapBytes,
			SitemapDroppedTotal,
		)
	})
}
