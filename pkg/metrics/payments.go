package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records payment initiation and reconciliation outcomes.
type PaymentMetrics struct {
	initiations    *prometheus.CounterVec
	reconciles     *prometheus.CounterVec
	gatewayLatency *prometheus.HistogramVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	initiations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_initiations_total",
		Help: "Payment initiations by gateway and flow.",
	}, []string{"gateway", "flow"})
	reconciles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_reconciliations_total",
		Help: "Gateway callback reconciliations by gateway and outcome.",
	}, []string{"gateway", "outcome"})
	gatewayLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_gateway_latency_seconds",
		Help:    "Latency of external gateway checkout calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"gateway"})
	reg.MustRegister(initiations, reconciles, gatewayLatency)
	return &PaymentMetrics{
		initiations:    initiations,
		reconciles:     reconciles,
		gatewayLatency: gatewayLatency,
	}
}

// IncInitiation increments the initiation counter for a gateway/flow pair.
func (p *PaymentMetrics) IncInitiation(gateway, flow string) {
	if p == nil || p.initiations == nil {
		return
	}
	p.initiations.WithLabelValues(normalizeLabel(gateway), normalizeLabel(flow)).Inc()
}

// IncReconcile increments the reconciliation counter for a gateway/outcome pair.
func (p *PaymentMetrics) IncReconcile(gateway, outcome string) {
	if p == nil || p.reconciles == nil {
		return
	}
	p.reconciles.WithLabelValues(normalizeLabel(gateway), normalizeLabel(outcome)).Inc()
}

// ObserveGatewayLatency records the duration of an external checkout call.
func (p *PaymentMetrics) ObserveGatewayLatency(gateway string, duration time.Duration) {
	if p == nil || p.gatewayLatency == nil {
		return
	}
	p.gatewayLatency.WithLabelValues(normalizeLabel(gateway)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
