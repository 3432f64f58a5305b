package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the submission lifecycle.
type Metrics struct {
	Created            prometheus.Counter
	Transitions        *prometheus.CounterVec
	Rejections         *prometheus.CounterVec
	CreateDuration     prometheus.Histogram
	TransitionDuration *prometheus.HistogramVec
}

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// New registers the submission metrics with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the submission metrics with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Created: factory.NewCounter(prometheus.CounterOpts{
			Name: "amlstat_submissions_created_total",
			Help: "Total number of submissions created",
		}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "amlstat_submission_transitions_total",
			Help: "Successful lifecycle transitions by type",
		}, []string{"transition"}),
		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "amlstat_submission_guard_failures_total",
			Help: "Lifecycle operations refused by a guard, by transition and error code",
		}, []string{"transition", "code"}),
		CreateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "amlstat_submission_create_duration_seconds",
			Help:    "Duration of submission creation",
			Buckets: durationBuckets,
		}),
		TransitionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "amlstat_submission_transition_duration_seconds",
			Help:    "Duration of lifecycle transitions",
			Buckets: durationBuckets,
		}, []string{"transition"}),
	}
}

func (m *Metrics) IncrementCreated() {
	m.Created.Inc()
}

func (m *Metrics) IncrementTransition(transition string) {
	m.Transitions.WithLabelValues(transition).Inc()
}

func (m *Metrics) IncrementGuardFailure(transition, code string) {
	m.Rejections.WithLabelValues(transition, code).Inc()
}

// ObserveCreate records the duration of a create. Call with time.Now() at
// the start of the operation.
func (m *Metrics) ObserveCreate(start time.Time) {
	m.CreateDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveTransition(transition string, start time.Time) {
	m.TransitionDuration.WithLabelValues(transition).Observe(time.Since(start).Seconds())
}
