package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/gatewaypay"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/gateway"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type paymentCallbacks interface {
	OnCallback(ctx context.Context, userID uuid.UUID, v gateway.Verification) (*gatewaypay.Result, error)
	OnDismiss(ctx context.Context, userID uuid.UUID, gatewayOrderID string) (*gatewaypay.Result, error)
}

type paymentCallbackRequest struct {
	GatewayOrderID string `json:"gateway_order_id" validate:"required,max=128"`
	PaymentID      string `json:"payment_id" validate:"max=128"`
	Signature      string `json:"signature" validate:"max=512"`
}

// PaymentCallback verifies the gateway's success callback and creates or
// updates the order. A missing or bad signature still records a failed order.
func PaymentCallback(svc paymentCallbacks, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment coordinator unavailable"))
			return
		}
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload paymentCallbackRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := svc.OnCallback(r.Context(), userID, gateway.Verification{
			OrderID:   payload.GatewayOrderID,
			PaymentID: payload.PaymentID,
			Signature: payload.Signature,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPaymentResultResponse(res))
	}
}

type paymentDismissRequest struct {
	GatewayOrderID string `json:"gateway_order_id" validate:"required,max=128"`
}

// PaymentDismiss records that the customer closed the gateway UI.
func PaymentDismiss(svc paymentCallbacks, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment coordinator unavailable"))
			return
		}
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload paymentDismissRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := svc.OnDismiss(r.Context(), userID, payload.GatewayOrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPaymentResultResponse(res))
	}
}
