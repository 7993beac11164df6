package enums

import "slices"

// ReturnDecision is an admin's ruling on a return request.
type ReturnDecision string

const (
	ReturnDecisionAccept ReturnDecision = "accept"
	ReturnDecisionReject ReturnDecision = "reject"
)

var validReturnDecisions = []ReturnDecision{
	ReturnDecisionAccept,
	ReturnDecisionReject,
}

// String implements fmt.Stringer.
func (d ReturnDecision) String() string {
	return string(d)
}

// IsValid reports whether the value is a known ReturnDecision.
func (d ReturnDecision) IsValid() bool {
	return slices.Contains(validReturnDecisions, d)
}

// ParseReturnDecision converts raw input into a ReturnDecision.
func ParseReturnDecision(value string) (ReturnDecision, error) {
	return parse(validReturnDecisions, "return decision", value)
}
