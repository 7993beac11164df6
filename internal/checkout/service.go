// Package checkout prices the cart server-side and hands the result to the
// chosen payment method.
package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/gatewaypay"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/internal/promotions"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// ReasonPriceChanged is reported when the client's expected total no longer
// matches the server quote.
const ReasonPriceChanged = "price_changed"

type cartReader interface {
	Get(ctx context.Context, userID uuid.UUID) (*cart.Cart, error)
}

type addressBook interface {
	Default(ctx context.Context, userID uuid.UUID) (*models.Address, error)
	Snapshot(ctx context.Context, userID, addressID uuid.UUID) (types.AddressSnapshot, error)
}

type couponLookup interface {
	Lookup(ctx context.Context, code string) (*pricing.Coupon, error)
}

type balanceReader interface {
	Balance(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error)
}

type strategyResolver interface {
	Resolve(method enums.PaymentMethod) (payments.Strategy, error)
}

type paymentRetrier interface {
	Retry(ctx context.Context, userID, orderID uuid.UUID) (*gatewaypay.Handoff, error)
}

// QuoteInput selects an optional coupon to price with.
type QuoteInput struct {
	CouponCode string
}

// PaymentOptions tells the client which methods can settle the quote.
type PaymentOptions struct {
	COD           bool  `json:"cod"`
	Wallet        bool  `json:"wallet"`
	Online        bool  `json:"online"`
	WalletBalance int64 `json:"wallet_balance"`
}

// Quote is the priced cart plus the payment options for its total.
type Quote struct {
	pricing.Quote
	Currency enums.Currency `json:"currency"`
	Payment  PaymentOptions `json:"payment"`
}

// PlaceOrderInput is what the client submits to check out.
type PlaceOrderInput struct {
	AddressID  *uuid.UUID
	CouponCode string
	Method     enums.PaymentMethod
	// ExpectedTotal is the total the client displayed; nil skips the check.
	ExpectedTotal *int64
}

// Placement is a created order or a gateway handoff for online payment.
type Placement struct {
	Order   *models.Order       `json:"order,omitempty"`
	Handoff *gatewaypay.Handoff `json:"payment,omitempty"`
	Quote   pricing.Quote       `json:"quote"`
}

// Service is the storefront-facing checkout surface.
type Service interface {
	Quote(ctx context.Context, userID uuid.UUID, input QuoteInput) (*Quote, error)
	PlaceOrder(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*Placement, error)
	RetryPayment(ctx context.Context, userID, orderID uuid.UUID) (*gatewaypay.Handoff, error)
}

// Deps groups the checkout collaborators.
type Deps struct {
	Cart       cartReader
	Addresses  addressBook
	Coupons    couponLookup
	Wallet     balanceReader
	Strategies strategyResolver
	Gateway    paymentRetrier
	Config     config.CheckoutConfig
	Logger     *logger.Logger
}

type service struct {
	cart       cartReader
	addresses  addressBook
	coupons    couponLookup
	wallet     balanceReader
	strategies strategyResolver
	gateway    paymentRetrier
	cfg        config.CheckoutConfig
	logg       *logger.Logger
	clock      func() time.Time
}

// NewService builds the checkout service.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Cart == nil:
		return nil, fmt.Errorf("cart service required")
	case deps.Addresses == nil:
		return nil, fmt.Errorf("address service required")
	case deps.Coupons == nil:
		return nil, fmt.Errorf("coupon lookup required")
	case deps.Wallet == nil:
		return nil, fmt.Errorf("wallet balance reader required")
	case deps.Strategies == nil:
		return nil, fmt.Errorf("payment strategies required")
	case deps.Gateway == nil:
		return nil, fmt.Errorf("gateway coordinator required")
	}
	return &service{
		cart:       deps.Cart,
		addresses:  deps.Addresses,
		coupons:    deps.Coupons,
		wallet:     deps.Wallet,
		strategies: deps.Strategies,
		gateway:    deps.Gateway,
		cfg:        deps.Config,
		logg:       deps.Logger,
		clock:      time.Now,
	}, nil
}

func (s *service) currency() enums.Currency {
	if c := enums.Currency(s.cfg.Currency); c.IsValid() {
		return c
	}
	return enums.CurrencyINR
}

func (s *service) policy() pricing.ShippingPolicy {
	return pricing.ShippingPolicy{FreeThreshold: s.cfg.FreeShippingThreshold, FlatFee: s.cfg.FlatShippingFee}
}

// price loads and validates the cart and prices it with the coupon, if any.
// An unknown code is an error; a known coupon that does not apply is
// reported on the quote.
func (s *service) price(ctx context.Context, userID uuid.UUID, code string) (pricing.Quote, error) {
	c, err := s.cart.Get(ctx, userID)
	if err != nil {
		return pricing.Quote{}, err
	}
	if err := c.Validate(); err != nil {
		return pricing.Quote{}, err
	}

	var coupon *pricing.Coupon
	if promotions.NormalizeCode(code) != "" {
		coupon, err = s.coupons.Lookup(ctx, code)
		if err != nil {
			return pricing.Quote{}, err
		}
	}
	return pricing.BuildQuote(c.PricingInputs(), coupon, s.policy(), s.clock()), nil
}

// Quote prices the current cart without side effects.
func (s *service) Quote(ctx context.Context, userID uuid.UUID, input QuoteInput) (*Quote, error) {
	q, err := s.price(ctx, userID, input.CouponCode)
	if err != nil {
		return nil, err
	}
	balance, err := s.wallet.Balance(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	return &Quote{
		Quote:    q,
		Currency: s.currency(),
		Payment: PaymentOptions{
			COD:           q.Total <= s.cfg.CODCeiling,
			Wallet:        balance >= q.Total,
			Online:        true,
			WalletBalance: balance,
		},
	}, nil
}

// PlaceOrder re-prices the cart, rejects stale client totals and runs the
// payment strategy. COD and wallet return the order; online returns the
// gateway handoff.
func (s *service) PlaceOrder(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*Placement, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	strategy, err := s.strategies.Resolve(input.Method)
	if err != nil {
		return nil, err
	}

	addressID, err := s.addressFor(ctx, userID, input.AddressID)
	if err != nil {
		return nil, err
	}
	address, err := s.addresses.Snapshot(ctx, userID, addressID)
	if err != nil {
		return nil, err
	}

	q, err := s.price(ctx, userID, input.CouponCode)
	if err != nil {
		return nil, err
	}
	if q.CouponCode == nil && promotions.NormalizeCode(input.CouponCode) != "" {
		return nil, pkgerrors.New(pkgerrors.CodePolicyViolation, "coupon cannot be applied").WithDetails(map[string]any{
			"reason":    q.Coupon.Reason,
			"shortfall": q.Coupon.Shortfall,
		})
	}
	if input.ExpectedTotal != nil && *input.ExpectedTotal != q.Total {
		return nil, pkgerrors.New(pkgerrors.CodePolicyViolation, "prices changed, please review your order").WithDetails(map[string]any{
			"reason":   ReasonPriceChanged,
			"expected": *input.ExpectedTotal,
			"total":    q.Total,
		})
	}

	outcome, err := strategy.Execute(ctx, payments.Attempt{
		UserID:   userID,
		Checkout: q.Snapshot(addressID, address),
		Currency: s.currency(),
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		fields := map[string]any{
			"payment_method": string(input.Method),
			"total":          q.Total,
		}
		if outcome.Order != nil {
			fields["order_id"] = outcome.Order.ID.String()
		}
		if outcome.Handoff != nil {
			fields["gateway_order_id"] = outcome.Handoff.GatewayOrderID
		}
		s.logg.Info(s.logg.WithFields(s.logg.WithUserID(ctx, userID.String()), fields), "checkout placed")
	}
	return &Placement{Order: outcome.Order, Handoff: outcome.Handoff, Quote: q}, nil
}

func (s *service) addressFor(ctx context.Context, userID uuid.UUID, addressID *uuid.UUID) (uuid.UUID, error) {
	if addressID != nil && *addressID != uuid.Nil {
		return *addressID, nil
	}
	addr, err := s.addresses.Default(ctx, userID)
	if err != nil {
		return uuid.Nil, err
	}
	return addr.ID, nil
}

// RetryPayment opens a new gateway attempt for a failed online order.
func (s *service) RetryPayment(ctx context.Context, userID, orderID uuid.UUID) (*gatewaypay.Handoff, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.gateway.Retry(ctx, userID, orderID)
}
