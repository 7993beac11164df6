package pricing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// CouponRejection explains why a coupon did not apply.
type CouponRejection string

const (
	CouponMinimumNotMet CouponRejection = "coupon_minimum_not_met"
	CouponNotYetValid   CouponRejection = "coupon_not_yet_valid"
	CouponExpired       CouponRejection = "coupon_expired"
	CouponExhausted     CouponRejection = "coupon_usage_exhausted"
	CouponInactive      CouponRejection = "coupon_inactive"
	CouponInvalid       CouponRejection = "coupon_invalid"
)

// Coupon is the pricing view of a coupon code.
type Coupon struct {
	Code            string
	Type            enums.DiscountType
	Amount          decimal.Decimal
	MinimumPurchase int64
	MaxDiscount     *int64
	ValidFrom       time.Time
	ValidUntil      time.Time
	MaxUses         int
	UsedCount       int
	IsActive        bool
}

// CouponFromModel adapts a persisted coupon. A nil model yields nil.
func CouponFromModel(m *models.Coupon) *Coupon {
	if m == nil {
		return nil
	}
	return &Coupon{
		Code:            strings.ToUpper(strings.TrimSpace(m.Code)),
		Type:            m.DiscountType,
		Amount:          m.DiscountAmount,
		MinimumPurchase: m.MinimumPurchase,
		MaxDiscount:     m.MaxDiscount,
		ValidFrom:       m.ValidFrom,
		ValidUntil:      m.ValidUntil,
		MaxUses:         m.MaxUses,
		UsedCount:       m.UsedCount,
		IsActive:        m.IsActive,
	}
}

// CouponResult is the outcome of evaluating a coupon against a subtotal.
type CouponResult struct {
	Accepted  bool            `json:"accepted"`
	Discount  int64           `json:"discount"`
	Shortfall int64           `json:"shortfall,omitempty"`
	Reason    CouponRejection `json:"reason,omitempty"`
}

// EvaluateCoupon decides whether coupon applies to subtotal at now and how
// much it takes off. A nil coupon is neither accepted nor rejected.
func EvaluateCoupon(subtotal int64, coupon *Coupon, now time.Time) CouponResult {
	if coupon == nil {
		return CouponResult{}
	}
	switch {
	case !coupon.IsActive:
		return CouponResult{Reason: CouponInactive}
	case now.Before(coupon.ValidFrom):
		return CouponResult{Reason: CouponNotYetValid}
	case now.After(coupon.ValidUntil):
		return CouponResult{Reason: CouponExpired}
	case coupon.MaxUses > 0 && coupon.UsedCount >= coupon.MaxUses:
		return CouponResult{Reason: CouponExhausted}
	case subtotal < coupon.MinimumPurchase:
		return CouponResult{Reason: CouponMinimumNotMet, Shortfall: coupon.MinimumPurchase - subtotal}
	}

	var discount int64
	switch coupon.Type {
	case enums.DiscountTypePercentage:
		if !coupon.Amount.IsPositive() || coupon.Amount.GreaterThan(hundred) {
			return CouponResult{Reason: CouponInvalid}
		}
		discount = roundUnits(decimal.NewFromInt(subtotal).Mul(coupon.Amount).Div(hundred))
		if coupon.MaxDiscount != nil && discount > *coupon.MaxDiscount {
			discount = *coupon.MaxDiscount
		}
	case enums.DiscountTypeFixed:
		if !coupon.Amount.IsPositive() {
			return CouponResult{Reason: CouponInvalid}
		}
		discount = min(roundUnits(coupon.Amount), subtotal)
	default:
		return CouponResult{Reason: CouponInvalid}
	}

	return CouponResult{Accepted: true, Discount: max(discount, 0)}
}
