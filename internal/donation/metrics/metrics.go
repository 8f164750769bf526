package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks donation request lifecycle activity.
type Metrics struct {
	RequestsCreated    prometheus.Counter
	RequestsIneligible prometheus.Counter
	Claims             *prometheus.CounterVec
	Transitions        *prometheus.CounterVec
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "bloodlink_donation_requests_created_total",
			Help: "Total number of donation requests created",
		}),
		RequestsIneligible: factory.NewCounter(prometheus.CounterOpts{
			Name: "bloodlink_donation_requests_ineligible_total",
			Help: "Create attempts declined because the requester is not active",
		}),
		Claims: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodlink_donation_claims_total",
			Help: "Claim attempts by outcome (claimed, conflict)",
		}, []string{"outcome"}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodlink_donation_transitions_total",
			Help: "Status transitions by target status",
		}, []string{"to"}),
	}
}

func (m *Metrics) IncrementCreated() {
	m.RequestsCreated.Inc()
}

func (m *Metrics) IncrementIneligible() {
	m.RequestsIneligible.Inc()
}

func (m *Metrics) ObserveClaim(outcome string) {
	m.Claims.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveTransition(to string) {
	m.Transitions.WithLabelValues(to).Inc()
}
