package pricing

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// ShippingPolicy is the flat-fee shipping rule with a free-shipping threshold.
type ShippingPolicy struct {
	FreeThreshold int64
	FlatFee       int64
}

// ComputeShipping returns 0 once subtotal reaches the threshold, else the flat fee.
func ComputeShipping(subtotal int64, policy ShippingPolicy) int64 {
	if subtotal >= policy.FreeThreshold {
		return 0
	}
	return policy.FlatFee
}

// ComputeTotal is subtotal - discount + shipping, kept within [0, subtotal+shipping].
func ComputeTotal(subtotal, discount, shipping int64) int64 {
	ceiling := subtotal + shipping
	total := subtotal - discount + shipping
	if total < 0 {
		return 0
	}
	if total > ceiling {
		return ceiling
	}
	return total
}

// LineInput is one cart line with the catalog data needed to price it.
type LineInput struct {
	ProductID     uuid.UUID
	ProductName   string
	SelectedSize  string
	Quantity      int
	BasePrice     int64
	ProductOffer  *Offer
	CategoryOffer *Offer
}

// Quote is a fully priced cart.
type Quote struct {
	Lines      []types.PricedLine `json:"lines"`
	Subtotal   int64              `json:"subtotal"`
	Discount   int64              `json:"discount"`
	Shipping   int64              `json:"shipping"`
	Total      int64              `json:"total"`
	CouponCode *string            `json:"coupon_code,omitempty"`
	Coupon     CouponResult       `json:"coupon"`
}

// BuildQuote prices every line with its best offer, evaluates the coupon on
// the offered subtotal and adds shipping.
func BuildQuote(lines []LineInput, coupon *Coupon, policy ShippingPolicy, now time.Time) Quote {
	q := Quote{Lines: make([]types.PricedLine, 0, len(lines))}
	for _, line := range lines {
		offer := ComputeLineOffer(line.ProductOffer, line.CategoryOffer, now)
		unit := ApplyOffer(line.BasePrice, offer)
		priced := types.PricedLine{
			ProductID:     line.ProductID,
			ProductName:   line.ProductName,
			SelectedSize:  line.SelectedSize,
			Quantity:      line.Quantity,
			OriginalPrice: line.BasePrice,
			UnitPrice:     unit,
			LineTotal:     unit * int64(line.Quantity),
		}
		if offer != nil {
			id := offer.ID
			priced.OfferID = &id
		}
		q.Subtotal += priced.LineTotal
		q.Lines = append(q.Lines, priced)
	}

	q.Coupon = EvaluateCoupon(q.Subtotal, coupon, now)
	if q.Coupon.Accepted {
		q.Discount = q.Coupon.Discount
		code := coupon.Code
		q.CouponCode = &code
	}
	q.Shipping = ComputeShipping(q.Subtotal, policy)
	q.Total = ComputeTotal(q.Subtotal, q.Discount, q.Shipping)
	return q
}

// Snapshot freezes the quote for an order or a pending gateway attempt.
func (q Quote) Snapshot(addressID uuid.UUID, address types.AddressSnapshot) types.CheckoutSnapshot {
	lines := make([]types.PricedLine, len(q.Lines))
	copy(lines, q.Lines)
	return types.CheckoutSnapshot{
		AddressID:  addressID,
		Address:    address,
		CouponCode: q.CouponCode,
		Lines:      lines,
		Subtotal:   q.Subtotal,
		Discount:   q.Discount,
		Shipping:   q.Shipping,
		Total:      q.Total,
	}
}
