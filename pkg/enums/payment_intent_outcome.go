package enums

import "slices"

// PaymentIntentOutcome is the state of one gateway payment attempt.
type PaymentIntentOutcome string

const (
	IntentCreated            PaymentIntentOutcome = "created"
	IntentAwaitingUserAction PaymentIntentOutcome = "awaiting_user_action"
	IntentVerified           PaymentIntentOutcome = "verified"
	IntentVerificationFailed PaymentIntentOutcome = "verification_failed"
	IntentUserCancelled      PaymentIntentOutcome = "user_cancelled"
	IntentExpired            PaymentIntentOutcome = "expired"
)

var validPaymentIntentOutcomes = []PaymentIntentOutcome{
	IntentCreated,
	IntentAwaitingUserAction,
	IntentVerified,
	IntentVerificationFailed,
	IntentUserCancelled,
	IntentExpired,
}

// String implements fmt.Stringer.
func (o PaymentIntentOutcome) String() string {
	return string(o)
}

// IsValid reports whether the value is a known PaymentIntentOutcome.
func (o PaymentIntentOutcome) IsValid() bool {
	return slices.Contains(validPaymentIntentOutcomes, o)
}

// ParsePaymentIntentOutcome converts raw input into a PaymentIntentOutcome.
func ParsePaymentIntentOutcome(value string) (PaymentIntentOutcome, error) {
	return parse(validPaymentIntentOutcomes, "payment intent outcome", value)
}

// IsTerminal reports whether the attempt has been reconciled.
func (o PaymentIntentOutcome) IsTerminal() bool {
	switch o {
	case IntentVerified, IntentVerificationFailed, IntentUserCancelled, IntentExpired:
		return true
	default:
		return false
	}
}

// PaymentStatus maps a terminal outcome onto the order's payment status.
func (o PaymentIntentOutcome) PaymentStatus() PaymentStatus {
	if o == IntentVerified {
		return PaymentStatusPaid
	}
	if o.IsTerminal() {
		return PaymentStatusFailed
	}
	return PaymentStatusPending
}
