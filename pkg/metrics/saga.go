package metrics

import "github.com/prometheus/client_golang/prometheus"

// SagaMetrics records role-assignment saga outcomes at the consumer.
type SagaMetrics struct {
	outcomes   *prometheus.CounterVec
	duplicates prometheus.Counter
}

// NewSagaMetrics registers the saga metrics on the provided registerer.
func NewSagaMetrics(reg prometheus.Registerer) *SagaMetrics {
	if reg == nil {
		return &SagaMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "role_saga_outcomes_total",
		Help: "Role-assignment saga outcomes by result.",
	}, []string{"outcome"})
	duplicates := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "role_saga_duplicate_deliveries_total",
		Help: "Role-assignment requests skipped as duplicate deliveries.",
	})
	reg.MustRegister(outcomes, duplicates)
	return &SagaMetrics{
		outcomes:   outcomes,
		duplicates: duplicates,
	}
}

// IncOutcome increments the outcome counter for assigned or failed sagas.
func (s *SagaMetrics) IncOutcome(outcome string) {
	if s == nil || s.outcomes == nil {
		return
	}
	s.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncDuplicate increments the duplicate-delivery counter.
func (s *SagaMetrics) IncDuplicate() {
	if s == nil || s.duplicates == nil {
		return
	}
	s.duplicates.Inc()
}
