package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCheckoutMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics(reg)
	m.OrderPlaced("wallet", "paid")
	m.OrderPlaced("wallet", "paid")
	m.PaymentReconciled("verified")
	m.Refunded("order_cancelled", 450)
	m.Refunded("order_cancelled", 0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "checkout_orders_placed_total", "method", "wallet"); err != nil || got != 2 {
		t.Fatalf("expected 2 wallet orders, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "checkout_payment_reconciliations_total", "outcome", "verified"); err != nil || got != 1 {
		t.Fatalf("expected 1 reconciliation, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "checkout_wallet_refunds_rupees_total", "reason", "order_cancelled"); err != nil || got != 450 {
		t.Fatalf("expected 450 refunded, got %f err=%v", got, err)
	}
}

func TestCheckoutMetricsNilSafe(t *testing.T) {
	var m *CheckoutMetrics
	m.OrderPlaced("cod", "pending")
	NewCheckoutMetrics(nil).PaymentReconciled("expired")
}
