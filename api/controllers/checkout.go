package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type quoteRequest struct {
	CouponCode string `json:"coupon_code" validate:"max=32"`
}

// CheckoutQuote prices the caller's cart server-side. It has no side effects.
func CheckoutQuote(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload quoteRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		quote, err := svc.Quote(r.Context(), userID, checkout.QuoteInput{CouponCode: payload.CouponCode})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

type placeOrderRequest struct {
	AddressID     *uuid.UUID `json:"address_id"`
	CouponCode    string     `json:"coupon_code" validate:"max=32"`
	PaymentMethod string     `json:"payment_method" validate:"required,max=16"`
	ExpectedTotal *int64     `json:"expected_total" validate:"omitempty,min=0"`
}

// CheckoutPlace places an order. COD and wallet respond 201 with the order;
// online responds 202 with the gateway handoff and no order yet.
func CheckoutPlace(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload placeOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePaymentMethod(strings.ToLower(payload.PaymentMethod))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		placement, err := svc.PlaceOrder(r.Context(), userID, checkout.PlaceOrderInput{
			AddressID:     payload.AddressID,
			CouponCode:    payload.CouponCode,
			Method:        method,
			ExpectedTotal: payload.ExpectedTotal,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if placement.Order == nil {
			status = http.StatusAccepted
		}
		responses.WriteSuccessStatus(w, status, newPlacementResponse(placement))
	}
}
