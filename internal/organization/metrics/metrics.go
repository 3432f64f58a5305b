package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the organization registry.
// Tracks creations, status changes and lookup durations.
type Metrics struct {
	OrganizationsCreated    prometheus.Counter
	StatusChanges           *prometheus.CounterVec
	OrganizationsDeleted    prometheus.Counter
	GetOrganizationDuration prometheus.Histogram
}

// New creates a new Metrics instance registered on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OrganizationsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "amlstat_organizations_created_total",
			Help: "Total number of organizations created",
		}),
		StatusChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "amlstat_organization_status_changes_total",
			Help: "Organization deactivations and reactivations",
		}, []string{"action"}),
		OrganizationsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "amlstat_organizations_deleted_total",
			Help: "Total number of organizations deleted",
		}),
		GetOrganizationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "amlstat_get_organization_duration_seconds",
			Help:    "Duration of organization lookups",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementCreated records a successful organization creation.
func (m *Metrics) IncrementCreated() {
	m.OrganizationsCreated.Inc()
}

// IncrementStatusChange records a deactivation or reactivation.
func (m *Metrics) IncrementStatusChange(action string) {
	m.StatusChanges.WithLabelValues(action).Inc()
}

func (m *Metrics) IncrementDeleted() {
	m.OrganizationsDeleted.Inc()
}

// ObserveGetOrganization records the duration of a lookup.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveGetOrganization(start time.Time) {
	m.GetOrganizationDuration.Observe(time.Since(start).Seconds())
}
