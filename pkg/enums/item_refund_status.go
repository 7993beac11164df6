package enums

import "slices"

// ItemRefundStatus records the refund outcome of a single order item.
type ItemRefundStatus string

const (
	ItemRefundStatusNone          ItemRefundStatus = "none"
	ItemRefundStatusRefunded      ItemRefundStatus = "refunded"
	ItemRefundStatusNotApplicable ItemRefundStatus = "not_applicable"
)

var validItemRefundStatuses = []ItemRefundStatus{
	ItemRefundStatusNone,
	ItemRefundStatusRefunded,
	ItemRefundStatusNotApplicable,
}

// String implements fmt.Stringer.
func (r ItemRefundStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ItemRefundStatus.
func (r ItemRefundStatus) IsValid() bool {
	return slices.Contains(validItemRefundStatuses, r)
}

// ParseItemRefundStatus converts raw input into a ItemRefundStatus.
func ParseItemRefundStatus(value string) (ItemRefundStatus, error) {
	return parse(validItemRefundStatuses, "item refund status", value)
}
