package controllers

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/internal/promotions"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stubCouponLister struct {
	subtotal int64
	coupons  []promotions.AvailableCoupon
}

func (s *stubCouponLister) Available(ctx context.Context, subtotal int64) ([]promotions.AvailableCoupon, error) {
	s.subtotal = subtotal
	return s.coupons, nil
}

func TestCouponsListUsesCartSubtotal(t *testing.T) {
	lister := &stubCouponLister{coupons: []promotions.AvailableCoupon{{Code: "FLAT100", MinimumPurchase: 500}}}
	quoter := &stubCheckoutService{quote: &checkout.Quote{Quote: pricing.Quote{Subtotal: 800}}}
	rec := serve(CouponsList(lister, quoter, nil), testRequest{method: http.MethodGet, path: "/api/v1/coupons", userID: uuid.New()})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if lister.subtotal != 800 {
		t.Fatalf("expected subtotal 800 got %d", lister.subtotal)
	}
	var body couponListResponse
	decodeData(t, rec, &body)
	if len(body.Coupons) != 1 || body.Coupons[0].Code != "FLAT100" {
		t.Fatalf("unexpected coupons %+v", body.Coupons)
	}
}

func TestCouponsListWithEmptyCart(t *testing.T) {
	lister := &stubCouponLister{}
	quoter := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")}
	rec := serve(CouponsList(lister, quoter, nil), testRequest{method: http.MethodGet, path: "/api/v1/coupons", userID: uuid.New()})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if lister.subtotal != 0 {
		t.Fatalf("expected subtotal 0 got %d", lister.subtotal)
	}
	var body couponListResponse
	decodeData(t, rec, &body)
	if body.Coupons == nil {
		t.Fatalf("expected empty list, not null")
	}
}

func TestCouponsListPropagatesDependencyErrors(t *testing.T) {
	lister := &stubCouponLister{}
	quoter := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeDependency, "database unavailable")}
	rec := serve(CouponsList(lister, quoter, nil), testRequest{method: http.MethodGet, path: "/api/v1/coupons", userID: uuid.New()})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
}
