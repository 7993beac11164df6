// Package payments turns a priced checkout into an order, or an explicit
// failure, according to the chosen payment method.
package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/gatewaypay"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/userlock"
	"github.com/angelmondragon/storefront-backend/internal/wallet"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// ReasonMethodUnavailable is reported when a method is switched off for the
// order at hand.
const ReasonMethodUnavailable = "payment_method_unavailable"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderCreator interface {
	Create(ctx context.Context, tx *gorm.DB, draft orders.Draft) (*models.Order, error)
}

type cartClearer interface {
	Clear(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
}

type walletDebiter interface {
	Debit(ctx context.Context, tx *gorm.DB, entry wallet.Entry) (*models.WalletTransaction, error)
}

type gatewayStarter interface {
	Start(ctx context.Context, input gatewaypay.StartInput) (*gatewaypay.Handoff, error)
}

// Attempt is one checkout ready to be paid.
type Attempt struct {
	UserID   uuid.UUID
	Checkout types.CheckoutSnapshot
	Currency enums.Currency
}

// Outcome carries the created order, or the gateway handoff for online
// payments whose order appears on reconciliation.
type Outcome struct {
	Order   *models.Order
	Handoff *gatewaypay.Handoff
}

// Strategy executes one payment method.
type Strategy interface {
	Method() enums.PaymentMethod
	Execute(ctx context.Context, attempt Attempt) (*Outcome, error)
}

// Deps groups what the strategies need.
type Deps struct {
	Tx       txRunner
	Orders   orderCreator
	Cart     cartClearer
	Wallet   walletDebiter
	Gateway  gatewayStarter
	Locker   userlock.Locker
	Checkout config.CheckoutConfig
	Logger   *logger.Logger
}

// Strategies resolves a payment method to its strategy.
type Strategies struct {
	cod    Strategy
	wallet Strategy
	online Strategy
}

// NewStrategies builds one strategy per supported method.
func NewStrategies(deps Deps) (*Strategies, error) {
	switch {
	case deps.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case deps.Orders == nil:
		return nil, fmt.Errorf("orders service required")
	case deps.Cart == nil:
		return nil, fmt.Errorf("cart service required")
	case deps.Wallet == nil:
		return nil, fmt.Errorf("wallet ledger required")
	case deps.Gateway == nil:
		return nil, fmt.Errorf("gateway coordinator required")
	case deps.Locker == nil:
		return nil, fmt.Errorf("user locker required")
	}
	return &Strategies{
		cod:    &codStrategy{deps: deps},
		wallet: &walletStrategy{deps: deps},
		online: &onlineStrategy{gateway: deps.Gateway},
	}, nil
}

// Resolve returns the strategy for method.
func (s *Strategies) Resolve(method enums.PaymentMethod) (Strategy, error) {
	switch method {
	case enums.PaymentMethodCOD:
		return s.cod, nil
	case enums.PaymentMethodWallet:
		return s.wallet, nil
	case enums.PaymentMethodOnline:
		return s.online, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method").WithDetails(map[string]any{
			"payment_method": method,
		})
	}
}

// placeLocked creates the order and empties the cart in one transaction
// under the user's lock. before runs first inside the same transaction.
func placeLocked(ctx context.Context, deps Deps, draft orders.Draft, before func(tx *gorm.DB) error) (*models.Order, error) {
	release, err := deps.Locker.Lock(ctx, draft.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	var order *models.Order
	err = deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		if before != nil {
			if err := before(tx); err != nil {
				return err
			}
		}
		var err error
		order, err = deps.Orders.Create(ctx, tx, draft)
		if err != nil {
			return err
		}
		return deps.Cart.Clear(ctx, tx, draft.UserID)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

type codStrategy struct {
	deps Deps
}

func (s *codStrategy) Method() enums.PaymentMethod { return enums.PaymentMethodCOD }

// Execute places a pending COD order when the total is within the ceiling.
func (s *codStrategy) Execute(ctx context.Context, attempt Attempt) (*Outcome, error) {
	ceiling := s.deps.Checkout.CODCeiling
	if attempt.Checkout.Total > ceiling {
		return nil, pkgerrors.New(pkgerrors.CodePolicyViolation, "cash on delivery is not available for this order").WithDetails(map[string]any{
			"reason":  ReasonMethodUnavailable,
			"method":  enums.PaymentMethodCOD,
			"ceiling": ceiling,
		})
	}
	order, err := placeLocked(ctx, s.deps, orders.Draft{
		UserID:        attempt.UserID,
		Method:        enums.PaymentMethodCOD,
		PaymentStatus: enums.PaymentStatusPending,
		Checkout:      attempt.Checkout,
		Currency:      attempt.Currency,
		StrictStock:   true,
	}, nil)
	if err != nil {
		return nil, err
	}
	return &Outcome{Order: order}, nil
}

type walletStrategy struct {
	deps Deps
}

func (s *walletStrategy) Method() enums.PaymentMethod { return enums.PaymentMethodWallet }

// Execute debits the wallet and creates a paid order in the same
// transaction. A short balance fails before anything is written; any later
// failure rolls the debit back with the order. A fully discounted checkout
// moves no money.
func (s *walletStrategy) Execute(ctx context.Context, attempt Attempt) (*Outcome, error) {
	draft := orders.Draft{
		ID:            uuid.New(),
		UserID:        attempt.UserID,
		Method:        enums.PaymentMethodWallet,
		PaymentStatus: enums.PaymentStatusPaid,
		Checkout:      attempt.Checkout,
		Currency:      attempt.Currency,
		StrictStock:   true,
	}
	order, err := placeLocked(ctx, s.deps, draft, func(tx *gorm.DB) error {
		if attempt.Checkout.Total == 0 {
			return nil
		}
		_, err := s.deps.Wallet.Debit(ctx, tx, wallet.Entry{
			UserID:      attempt.UserID,
			Amount:      attempt.Checkout.Total,
			Description: "Payment for checkout",
			OrderID:     &draft.ID,
			Actor:       &outbox.ActorRef{UserID: attempt.UserID, Role: string(enums.UserRoleCustomer)},
		})
		return err
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds) && s.deps.Logger != nil {
			logCtx := s.deps.Logger.WithUserID(ctx, attempt.UserID.String())
			s.deps.Logger.Warn(logCtx, "wallet checkout rejected for insufficient balance")
		}
		return nil, err
	}
	return &Outcome{Order: order}, nil
}

type onlineStrategy struct {
	gateway gatewayStarter
}

func (s *onlineStrategy) Method() enums.PaymentMethod { return enums.PaymentMethodOnline }

// Execute hands the checkout to the gateway coordinator. The order is created
// when the attempt is reconciled.
func (s *onlineStrategy) Execute(ctx context.Context, attempt Attempt) (*Outcome, error) {
	handoff, err := s.gateway.Start(ctx, gatewaypay.StartInput{
		UserID:   attempt.UserID,
		Checkout: attempt.Checkout,
		Currency: attempt.Currency,
	})
	if err != nil {
		return nil, err
	}
	return &Outcome{Handoff: handoff}, nil
}
