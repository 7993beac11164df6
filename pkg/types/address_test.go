package types

import "testing"

func TestAddressSnapshotValidate(t *testing.T) {
	addr := AddressSnapshot{
		FullName:   "Asha Rao",
		Phone:      "9000000000",
		Line1:      "12 MG Road",
		City:       "Bengaluru",
		State:      "KA",
		PostalCode: "560001",
		Country:    "IN",
	}
	if err := addr.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	addr.PostalCode = "  "
	if err := addr.Validate(); err == nil {
		t.Fatalf("expected missing postal_code error")
	}
}
