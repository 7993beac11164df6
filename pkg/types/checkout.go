package types

import "github.com/google/uuid"

// PricedLine is one cart line after offers were applied server-side.
type PricedLine struct {
	ProductID     uuid.UUID  `json:"product_id"`
	ProductName   string     `json:"product_name"`
	SelectedSize  string     `json:"selected_size"`
	Quantity      int        `json:"quantity"`
	OriginalPrice int64      `json:"original_price"`
	UnitPrice     int64      `json:"unit_price"`
	OfferID       *uuid.UUID `json:"offer_id,omitempty"`
	LineTotal     int64      `json:"line_total"`
}

// CheckoutSnapshot freezes everything needed to materialize an order once a
// gateway attempt resolves.
type CheckoutSnapshot struct {
	AddressID  uuid.UUID       `json:"address_id"`
	Address    AddressSnapshot `json:"address"`
	CouponCode *string         `json:"coupon_code,omitempty"`
	Lines      []PricedLine    `json:"lines"`
	Subtotal   int64           `json:"subtotal"`
	Discount   int64           `json:"discount"`
	Shipping   int64           `json:"shipping"`
	Total      int64           `json:"total"`
}
