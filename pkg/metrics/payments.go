package metrics

import "github.com/prometheus/client_golang/prometheus"

// PaymentMetrics tracks webhook deliveries and payment outcomes per provider.
type PaymentMetrics struct {
	webhooks *prometheus.CounterVec
	outcomes *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_events_total",
		Help: "Webhook events received per provider and result.",
	}, []string{"provider", "result"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_outcomes_total",
		Help: "Payment settlements per provider and final status.",
	}, []string{"provider", "status"})
	reg.MustRegister(webhooks, outcomes)
	return &PaymentMetrics{
		webhooks: webhooks,
		outcomes: outcomes,
	}
}

// IncWebhook counts one webhook delivery for the provider with its processing result.
func (p *PaymentMetrics) IncWebhook(provider, result string) {
	if p == nil || p.webhooks == nil {
		return
	}
	p.webhooks.WithLabelValues(normalizeLabel(provider), normalizeLabel(result)).Inc()
}

// IncOutcome counts one payment reaching a final status.
func (p *PaymentMetrics) IncOutcome(provider, status string) {
	if p == nil || p.outcomes == nil {
		return
	}
	p.outcomes.WithLabelValues(normalizeLabel(provider), normalizeLabel(status)).Inc()
}
