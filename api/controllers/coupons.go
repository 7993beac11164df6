package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/promotions"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type couponLister interface {
	Available(ctx context.Context, subtotal int64) ([]promotions.AvailableCoupon, error)
}

type cartQuoter interface {
	Quote(ctx context.Context, userID uuid.UUID, input checkout.QuoteInput) (*checkout.Quote, error)
}

type couponListResponse struct {
	Subtotal int64                        `json:"subtotal"`
	Coupons  []promotions.AvailableCoupon `json:"coupons"`
}

// CouponsList returns the active coupons, each evaluated against the caller's
// current cart subtotal. A cart that cannot be quoted is evaluated as empty.
func CouponsList(coupons couponLister, quoter cartQuoter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if coupons == nil || quoter == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var subtotal int64
		quote, err := quoter.Quote(r.Context(), userID, checkout.QuoteInput{})
		switch {
		case err == nil:
			subtotal = quote.Subtotal
		case pkgerrors.IsCode(err, pkgerrors.CodeValidation), pkgerrors.IsCode(err, pkgerrors.CodePolicyViolation):
		default:
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := coupons.Available(r.Context(), subtotal)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if list == nil {
			list = []promotions.AvailableCoupon{}
		}
		responses.WriteSuccess(w, couponListResponse{Subtotal: subtotal, Coupons: list})
	}
}
