// Package promotions looks up coupons and tracks how often they are redeemed.
package promotions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// AvailableCoupon is an active coupon evaluated against a cart subtotal.
type AvailableCoupon struct {
	Code            string               `json:"code"`
	Description     string               `json:"description"`
	MinimumPurchase int64                `json:"minimum_purchase"`
	ValidUntil      time.Time            `json:"valid_until"`
	Result          pricing.CouponResult `json:"result"`
}

// Service is the coupon surface used by checkout and orders.
type Service interface {
	Lookup(ctx context.Context, code string) (*pricing.Coupon, error)
	Available(ctx context.Context, subtotal int64) ([]AvailableCoupon, error)
	Redeem(ctx context.Context, tx *gorm.DB, code string, strict bool) error
	Release(ctx context.Context, tx *gorm.DB, code string) error
}

type service struct {
	repo  Repository
	clock func() time.Time
}

// NewService wires the promotions service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	return &service{repo: repo, clock: time.Now}, nil
}

// NormalizeCode upper-cases and trims a user supplied coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *service) Lookup(ctx context.Context, code string) (*pricing.Coupon, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code required")
	}
	row, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load coupon")
	}
	return pricing.CouponFromModel(row), nil
}

// Available lists active coupons that have not expired, each with the
// outcome it would have on subtotal.
func (s *service) Available(ctx context.Context, subtotal int64) ([]AvailableCoupon, error) {
	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list coupons")
	}
	now := s.clock()
	out := make([]AvailableCoupon, 0, len(rows))
	for i := range rows {
		if now.After(rows[i].ValidUntil) {
			continue
		}
		coupon := pricing.CouponFromModel(&rows[i])
		out = append(out, AvailableCoupon{
			Code:            coupon.Code,
			Description:     rows[i].Description,
			MinimumPurchase: coupon.MinimumPurchase,
			ValidUntil:      coupon.ValidUntil,
			Result:          pricing.EvaluateCoupon(subtotal, coupon, now),
		})
	}
	return out, nil
}

// Redeem counts one use of code inside tx. Strict redemption fails once the
// coupon is exhausted.
func (s *service) Redeem(ctx context.Context, tx *gorm.DB, code string, strict bool) error {
	ok, err := s.repo.WithTx(tx).IncrementUsage(ctx, NormalizeCode(code), strict)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "redeem coupon")
	}
	if !ok && strict {
		return pkgerrors.New(pkgerrors.CodePolicyViolation, "coupon usage limit reached").WithDetails(map[string]any{
			"reason": string(pricing.CouponExhausted),
			"code":   NormalizeCode(code),
		})
	}
	return nil
}

func (s *service) Release(ctx context.Context, tx *gorm.DB, code string) error {
	if err := s.repo.WithTx(tx).DecrementUsage(ctx, NormalizeCode(code)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "release coupon")
	}
	return nil
}
