package enums

import "slices"

// OfferScope identifies what an offer is attached to.
type OfferScope string

const (
	OfferScopeProduct  OfferScope = "product"
	OfferScopeCategory OfferScope = "category"
)

var validOfferScopes = []OfferScope{
	OfferScopeProduct,
	OfferScopeCategory,
}

// String implements fmt.Stringer.
func (o OfferScope) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OfferScope.
func (o OfferScope) IsValid() bool {
	return slices.Contains(validOfferScopes, o)
}

// ParseOfferScope converts raw input into a OfferScope.
func ParseOfferScope(value string) (OfferScope, error) {
	return parse(validOfferScopes, "offer scope", value)
}
