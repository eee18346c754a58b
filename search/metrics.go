package search

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/goliatone/go-hms-cache/cache"
)

// Metrics holds the counters of the search layer. A nil *Metrics records nothing.
type Metrics struct {
	lookups       *prometheus.CounterVec
	cacheErrors   *prometheus.CounterVec
	invalidations *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
}

// NewMetrics registers the search layer metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hms_cache_lookups_total",
			Help: "Cache lookups by category, entity and result (hit or miss)",
		}, []string{"category", "entity", "result"}),
		cacheErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hms_cache_errors_total",
			Help: "Cache failures that were degraded to a miss or a no-op",
		}, []string{"operation", "kind"}),
		invalidations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hms_cache_invalidations_total",
			Help: "Pattern deletes issued per entity and category",
		}, []string{"category", "entity"}),
		queryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hms_cache_source_query_seconds",
			Help:    "Latency of data source queries made on a cache miss",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"entity"}),
	}
}

func (m *Metrics) hit(category cache.Category, entity string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(category.String(), entity, "hit").Inc()
}

func (m *Metrics) miss(category cache.Category, entity string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(category.String(), entity, "miss").Inc()
}

func (m *Metrics) cacheError(operation string, err error) {
	if m == nil {
		return
	}
	m.cacheErrors.WithLabelValues(operation, cache.KindOf(err).String()).Inc()
}

func (m *Metrics) invalidated(category cache.Category, entity string) {
	if m == nil {
		return
	}
	m.invalidations.WithLabelValues(category.String(), entity).Inc()
}

func (m *Metrics) observeQuery(entity string, started time.Time) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(entity).Observe(time.Since(started).Seconds())
}
