package enums

import "slices"

// PaymentMethod enumerates how a customer pays for an order.
type PaymentMethod string

const (
	PaymentMethodCOD    PaymentMethod = "cod"
	PaymentMethodOnline PaymentMethod = "online"
	PaymentMethodWallet PaymentMethod = "wallet"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCOD,
	PaymentMethodOnline,
	PaymentMethodWallet,
}

// String implements fmt.Stringer.
func (m PaymentMethod) String() string {
	return string(m)
}

// IsValid reports whether the value is a known PaymentMethod.
func (m PaymentMethod) IsValid() bool {
	return slices.Contains(validPaymentMethods, m)
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return parse(validPaymentMethods, "payment method", value)
}

// Prepaid reports whether money changed hands before fulfilment, which makes
// the order eligible for wallet refunds.
func (m PaymentMethod) Prepaid() bool {
	return m == PaymentMethodOnline || m == PaymentMethodWallet
}
