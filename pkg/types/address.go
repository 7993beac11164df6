package types

import (
	"fmt"
	"strings"
)

// AddressSnapshot is the copy of a shipping address frozen onto an order.
type AddressSnapshot struct {
	FullName   string  `json:"full_name"`
	Phone      string  `json:"phone"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	Landmark   *string `json:"landmark,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
}

// Validate checks the fields required to ship an order.
func (a AddressSnapshot) Validate() error {
	required := map[string]string{
		"full_name":   a.FullName,
		"line1":       a.Line1,
		"city":        a.City,
		"state":       a.State,
		"postal_code": a.PostalCode,
	}
	for _, field := range []string{"full_name", "line1", "city", "state", "postal_code"} {
		if strings.TrimSpace(required[field]) == "" {
			return fmt.Errorf("address: missing %s", field)
		}
	}
	return nil
}
