// Package metrics exposes prometheus counters for authentication outcomes.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels.
const (
	OutcomeSuccess      = "success"
	OutcomeInvalid      = "invalid"
	OutcomeExpired      = "expired"
	OutcomeReused       = "reused"
	OutcomeUnauthorized = "unauthorized"
	OutcomeValidation   = "validation"
	OutcomeConflict     = "conflict"
	OutcomeError        = "error"
)

// Metrics holds the auth counters. The zero value is not usable; build it
// with New.
type Metrics struct {
	Registrations *prometheus.CounterVec
	Logins        *prometheus.CounterVec
	Refreshes     *prometheus.CounterVec
}

// New creates the counters and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vidtube_registrations_total",
				Help: "Registration attempts by outcome",
			},
			[]string{"outcome"},
		),
		Logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vidtube_logins_total",
				Help: "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		Refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vidtube_session_refreshes_total",
				Help: "Refresh token presentations by outcome",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(m.Registrations, m.Logins, m.Refreshes)

	return m
}

func (m *Metrics) Registration(outcome string) { m.Registrations.WithLabelValues(outcome).Inc() }
func (m *Metrics) Login(outcome string)        { m.Logins.WithLabelValues(outcome).Inc() }
func (m *Metrics) Refresh(outcome string)      { m.Refreshes.WithLabelValues(outcome).Inc() }
