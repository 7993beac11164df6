// Package gateway talks to the external payment gateway. Amounts cross this
// boundary in whole currency units; each provider converts to its own minor
// unit.
package gateway

import (
	"context"
	"errors"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Order is a gateway-side payment order the client completes in its UI.
type Order struct {
	ID           string
	Amount       int64
	Currency     string
	ClientSecret string
}

// Verification is the proof a client returns after paying.
type Verification struct {
	OrderID   string
	PaymentID string
	Signature string
}

// Client is implemented by every supported payment provider.
type Client interface {
	Provider() string
	KeyID() string
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*Order, error)
	Verify(ctx context.Context, v Verification) (bool, error)
}

var errTransient = errors.New("transient gateway failure")

func transient(err error, message string) error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, errors.Join(errTransient, err), message)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, errTransient)
}

// MinorUnits converts whole units into the gateway's smallest unit.
func MinorUnits(amount int64) int64 {
	return amount * 100
}
