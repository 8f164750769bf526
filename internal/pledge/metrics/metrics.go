package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks pledge checkout and reconciliation.
type Metrics struct {
	CheckoutsStarted  prometheus.Counter
	Confirmations     *prometheus.CounterVec
	RecordedAmount    prometheus.Counter
	ProcessorDuration *prometheus.HistogramVec
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CheckoutsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "bloodlink_pledge_checkouts_started_total",
			Help: "Payment sessions opened with the processor",
		}),
		Confirmations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodlink_pledge_confirmations_total",
			Help: "Pledge confirmations by outcome (recorded, already_recorded, unpaid)",
		}, []string{"outcome"}),
		RecordedAmount: factory.NewCounter(prometheus.CounterOpts{
			Name: "bloodlink_pledge_recorded_amount_minor_total",
			Help: "Sum of newly recorded pledge amounts in minor currency units",
		}),
		ProcessorDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bloodlink_pledge_processor_duration_seconds",
			Help:    "Duration of payment processor calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"call"}),
	}
}

func (m *Metrics) IncrementCheckout() {
	m.CheckoutsStarted.Inc()
}

func (m *Metrics) ObserveConfirmation(outcome string) {
	m.Confirmations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddRecorded(amount int64) {
	m.RecordedAmount.Add(float64(amount))
}

// ObserveProcessorCall records the duration of a processor call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveProcessorCall(call string, start time.Time) {
	m.ProcessorDuration.WithLabelValues(call).Observe(time.Since(start).Seconds())
}
