package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ViewOrganization = "organization"
	ViewOverview     = "overview"
)

// Metrics provides observability for compliance aggregation and its cache.
type Metrics struct {
	CacheHits       *prometheus.CounterVec
	CacheMisses     *prometheus.CounterVec
	CacheErrors     *prometheus.CounterVec
	ComputeDuration *prometheus.HistogramVec
}

func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "amlstat_compliance_cache_hits_total",
			Help: "Compliance views served from cache",
		}, []string{"view"}),
		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "amlstat_compliance_cache_misses_total",
			Help: "Compliance views computed because no cached copy existed",
		}, []string{"view"}),
		CacheErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "amlstat_compliance_cache_errors_total",
			Help: "Cache reads or writes that failed and were bypassed",
		}, []string{"view"}),
		ComputeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "amlstat_compliance_compute_duration_seconds",
			Help:    "Time to load and aggregate a compliance view",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"view"}),
	}
}

func (m *Metrics) IncrementHit(view string) {
	m.CacheHits.WithLabelValues(view).Inc()
}

func (m *Metrics) IncrementMiss(view string) {
	m.CacheMisses.WithLabelValues(view).Inc()
}

func (m *Metrics) IncrementError(view string) {
	m.CacheErrors.WithLabelValues(view).Inc()
}

// ObserveCompute records the duration of a cache-miss computation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveCompute(view string, start time.Time) {
	m.ComputeDuration.WithLabelValues(view).Observe(time.Since(start).Seconds())
}
