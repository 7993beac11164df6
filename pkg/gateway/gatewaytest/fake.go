// Package gatewaytest provides an in-memory gateway for service tests.
package gatewaytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/angelmondragon/storefront-backend/pkg/gateway"
)

const (
	ProviderName = "fake"
	Secret       = "fake-secret"
)

// Fake issues sequential order ids and verifies signatures made with Secret.
type Fake struct {
	mu        sync.Mutex
	seq       int
	Orders    []gateway.Order
	CreateErr error
	VerifyErr error
}

func New() *Fake { return &Fake{} }

func (f *Fake) Provider() string { return ProviderName }

func (f *Fake) KeyID() string { return "fake_key" }

func (f *Fake) CreateOrder(_ context.Context, amount int64, currency, _ string) (*gateway.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	f.seq++
	order := gateway.Order{ID: fmt.Sprintf("order_fake_%d", f.seq), Amount: amount, Currency: currency}
	f.Orders = append(f.Orders, order)
	return &order, nil
}

func (f *Fake) Verify(_ context.Context, v gateway.Verification) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.VerifyErr != nil {
		return false, f.VerifyErr
	}
	return v.Signature == gateway.Sign(Secret, v.OrderID, v.PaymentID), nil
}

// CreatedCount returns how many gateway orders were issued.
func (f *Fake) CreatedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Orders)
}

// Paid returns a verification a real client would submit after paying.
func Paid(orderID, paymentID string) gateway.Verification {
	return gateway.Verification{
		OrderID:   orderID,
		PaymentID: paymentID,
		Signature: gateway.Sign(Secret, orderID, paymentID),
	}
}
