package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

var hundred = decimal.NewFromInt(100)

// Offer is a percentage discount attached to a product or a category.
type Offer struct {
	ID         uuid.UUID
	Scope      enums.OfferScope
	Percent    decimal.Decimal
	ValidFrom  time.Time
	ValidUntil time.Time
	IsActive   bool
}

// OfferFromModel adapts a persisted offer. A nil model yields nil.
func OfferFromModel(m *models.Offer) *Offer {
	if m == nil {
		return nil
	}
	return &Offer{
		ID:         m.ID,
		Scope:      m.Scope,
		Percent:    m.DiscountValue,
		ValidFrom:  m.ValidFrom,
		ValidUntil: m.ValidUntil,
		IsActive:   m.IsActive,
	}
}

// ValidAt reports whether the offer can discount a price at now.
func (o *Offer) ValidAt(now time.Time) bool {
	if o == nil || !o.IsActive {
		return false
	}
	if !o.Percent.IsPositive() || o.Percent.GreaterThan(hundred) {
		return false
	}
	return !now.Before(o.ValidFrom) && !now.After(o.ValidUntil)
}

// ComputeLineOffer picks the offer for one line. A valid product offer wins
// over the category offer; the two never stack.
func ComputeLineOffer(productOffer, categoryOffer *Offer, now time.Time) *Offer {
	if productOffer.ValidAt(now) {
		return productOffer
	}
	if categoryOffer.ValidAt(now) {
		return categoryOffer
	}
	return nil
}

// ApplyOffer returns price minus the offer percentage, rounded to whole units
// and never below zero.
func ApplyOffer(price int64, offer *Offer) int64 {
	if offer == nil || price <= 0 {
		return max(price, 0)
	}
	p := decimal.NewFromInt(price)
	off := p.Mul(offer.Percent).Div(hundred)
	return max(roundUnits(p.Sub(off)), 0)
}

// DisplayDiscountPercent is the listing badge: the offer percentage when an
// offer applies, otherwise the markdown from MRP. Totals never use it.
func DisplayDiscountPercent(price, mrp int64, offer *Offer) int64 {
	if offer != nil {
		return roundUnits(offer.Percent)
	}
	if mrp <= 0 || price >= mrp {
		return 0
	}
	diff := decimal.NewFromInt(mrp - price)
	return roundUnits(diff.Mul(hundred).Div(decimal.NewFromInt(mrp)))
}

func roundUnits(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
