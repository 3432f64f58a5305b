package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess              = "success"
	OutcomeInvalidCredentials   = "invalid_credentials"
	OutcomeInactiveOrganization = "inactive_organization"
	OutcomeLockedOut            = "locked_out"
)

// Metrics tracks logins and account administration.
type Metrics struct {
	LoginAttempts    *prometheus.CounterVec
	LoginDuration    prometheus.Histogram
	UsersCreated     *prometheus.CounterVec
	UsersDeactivated prometheus.Counter
}

func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LoginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "amlstat_login_attempts_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		LoginDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "amlstat_login_duration_seconds",
			Help: "Duration of login requests including password verification",
			// bcrypt dominates; buckets sit around its cost.
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}),
		UsersCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "amlstat_users_created_total",
			Help: "Accounts created by role",
		}, []string{"role"}),
		UsersDeactivated: factory.NewCounter(prometheus.CounterOpts{
			Name: "amlstat_users_deactivated_total",
			Help: "Accounts deactivated",
		}),
	}
}

func (m *Metrics) IncrementLogin(outcome string) {
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}

// ObserveLogin records the duration of a login.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveLogin(start time.Time) {
	m.LoginDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementUserCreated(role string) {
	m.UsersCreated.WithLabelValues(role).Inc()
}

func (m *Metrics) IncrementUserDeactivated() {
	m.UsersDeactivated.Inc()
}
