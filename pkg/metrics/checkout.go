package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics counts order placement and payment reconciliation outcomes.
type CheckoutMetrics struct {
	placed     *prometheus.CounterVec
	reconciled *prometheus.CounterVec
	refunds    *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout counters on reg. A nil registerer
// yields a no-op recorder.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	placed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_orders_placed_total",
		Help: "Orders created by payment method and resulting payment status.",
	}, []string{"method", "payment_status"})
	reconciled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_payment_reconciliations_total",
		Help: "Gateway payment attempts reaching a terminal outcome.",
	}, []string{"outcome"})
	refunds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_wallet_refunds_rupees_total",
		Help: "Rupees refunded to wallets by reason.",
	}, []string{"reason"})
	reg.MustRegister(placed, reconciled, refunds)
	return &CheckoutMetrics{placed: placed, reconciled: reconciled, refunds: refunds}
}

func (c *CheckoutMetrics) OrderPlaced(method, paymentStatus string) {
	if c == nil || c.placed == nil {
		return
	}
	c.placed.WithLabelValues(normalizeLabel(method), normalizeLabel(paymentStatus)).Inc()
}

func (c *CheckoutMetrics) PaymentReconciled(outcome string) {
	if c == nil || c.reconciled == nil {
		return
	}
	c.reconciled.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (c *CheckoutMetrics) Refunded(reason string, amount int64) {
	if c == nil || c.refunds == nil || amount <= 0 {
		return
	}
	c.refunds.WithLabelValues(normalizeLabel(reason)).Add(float64(amount))
}
