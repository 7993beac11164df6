// Package gatewaypay coordinates online payments: it opens gateway orders for
// the server-computed total and turns every terminal attempt into exactly one
// order.
package gatewaypay

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/userlock"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/gateway"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderBook interface {
	Create(ctx context.Context, tx *gorm.DB, draft orders.Draft) (*models.Order, error)
	Get(ctx context.Context, actor orders.Actor, orderID uuid.UUID) (*models.Order, error)
	FindForUpdate(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Order, error)
	MarkPaymentPaid(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, gatewayPaymentID string) (*models.Order, error)
	MarkPaymentFailed(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Order, error)
}

type cartConsumer interface {
	Consume(ctx context.Context, tx *gorm.DB, userID uuid.UUID, lines []types.PricedLine) error
}

// StartInput is a priced checkout waiting for an online payment.
type StartInput struct {
	UserID   uuid.UUID
	Checkout types.CheckoutSnapshot
	Currency enums.Currency
}

// Handoff is what the client needs to open the gateway's payment UI.
type Handoff struct {
	IntentID       uuid.UUID      `json:"payment_intent_id"`
	OrderID        *uuid.UUID     `json:"order_id,omitempty"`
	Provider       string         `json:"provider"`
	KeyID          string         `json:"key_id,omitempty"`
	GatewayOrderID string         `json:"gateway_order_id"`
	ClientSecret   string         `json:"client_secret,omitempty"`
	Amount         int64          `json:"amount"`
	Currency       enums.Currency `json:"currency"`
}

// Result is the reconciled order and the attempt's final outcome.
type Result struct {
	Order   *models.Order
	Outcome enums.PaymentIntentOutcome
}

// Coordinator drives gateway payment attempts.
type Coordinator interface {
	Start(ctx context.Context, input StartInput) (*Handoff, error)
	OnCallback(ctx context.Context, userID uuid.UUID, v gateway.Verification) (*Result, error)
	OnDismiss(ctx context.Context, userID uuid.UUID, gatewayOrderID string) (*Result, error)
	ReconcileWebhook(ctx context.Context, gatewayOrderID, gatewayPaymentID string, succeeded bool) (*Result, error)
	ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error)
	Retry(ctx context.Context, userID, orderID uuid.UUID) (*Handoff, error)
}

// Deps groups the coordinator's collaborators.
type Deps struct {
	Repo    Repository
	Tx      txRunner
	Gateway gateway.Client
	Orders  orderBook
	Cart    cartConsumer
	Locker  userlock.Locker
	Outbox  outbox.Emitter
	Metrics *metrics.CheckoutMetrics
	Logger  *logger.Logger
}

type coordinator struct {
	repo    Repository
	tx      txRunner
	gw      gateway.Client
	orders  orderBook
	cart    cartConsumer
	locker  userlock.Locker
	outbox  outbox.Emitter
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger
	clock   func() time.Time
}

// NewCoordinator wires the gateway payment coordinator.
func NewCoordinator(deps Deps) (Coordinator, error) {
	switch {
	case deps.Repo == nil:
		return nil, fmt.Errorf("payment intent repository required")
	case deps.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case deps.Gateway == nil:
		return nil, fmt.Errorf("gateway client required")
	case deps.Orders == nil:
		return nil, fmt.Errorf("orders service required")
	case deps.Cart == nil:
		return nil, fmt.Errorf("cart service required")
	case deps.Locker == nil:
		return nil, fmt.Errorf("user locker required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &coordinator{
		repo:    deps.Repo,
		tx:      deps.Tx,
		gw:      deps.Gateway,
		orders:  deps.Orders,
		cart:    deps.Cart,
		locker:  deps.Locker,
		outbox:  deps.Outbox,
		metrics: deps.Metrics,
		logg:    deps.Logger,
		clock:   time.Now,
	}, nil
}

func receipt(id uuid.UUID) string {
	return "rcpt_" + strings.ReplaceAll(id.String(), "-", "")[:20]
}

// open creates the gateway order and checks it echoes the amount we asked for.
func (c *coordinator) open(ctx context.Context, intentID uuid.UUID, amount int64, currency enums.Currency) (*gateway.Order, error) {
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payable amount must be positive")
	}
	gwOrder, err := c.gw.CreateOrder(ctx, amount, string(currency), receipt(intentID))
	if err != nil {
		return nil, err
	}
	if gwOrder.Amount != amount {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway order amount does not match checkout total").WithDetails(map[string]any{
			"expected": amount,
			"gateway":  gwOrder.Amount,
		})
	}
	return gwOrder, nil
}

func (c *coordinator) handoff(intent *models.PaymentIntent, gwOrder *gateway.Order) *Handoff {
	return &Handoff{
		IntentID:       intent.ID,
		OrderID:        intent.OrderID,
		Provider:       c.gw.Provider(),
		KeyID:          c.gw.KeyID(),
		GatewayOrderID: gwOrder.ID,
		ClientSecret:   gwOrder.ClientSecret,
		Amount:         intent.Amount,
		Currency:       intent.Currency,
	}
}

// Start opens a gateway order for the checkout total and records the attempt.
// No order exists until the attempt is reconciled.
func (c *coordinator) Start(ctx context.Context, input StartInput) (*Handoff, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if len(input.Checkout.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout has no items")
	}
	if input.Currency == "" {
		input.Currency = enums.CurrencyINR
	}

	intentID := uuid.New()
	gwOrder, err := c.open(ctx, intentID, input.Checkout.Total, input.Currency)
	if err != nil {
		return nil, err
	}

	snapshot := input.Checkout
	intent := &models.PaymentIntent{
		ID:             intentID,
		UserID:         input.UserID,
		Provider:       c.gw.Provider(),
		GatewayOrderID: gwOrder.ID,
		Amount:         input.Checkout.Total,
		Currency:       input.Currency,
		Outcome:        enums.IntentAwaitingUserAction,
		Checkout:       &snapshot,
	}
	if err := c.repo.Create(ctx, intent); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment attempt")
	}

	if c.logg != nil {
		logCtx := c.logg.WithFields(c.logg.WithGatewayOrderID(ctx, gwOrder.ID), map[string]any{
			"payment_intent_id": intent.ID.String(),
			"amount":            intent.Amount,
		})
		c.logg.Info(logCtx, "gateway payment started")
	}
	return c.handoff(intent, gwOrder), nil
}

// OnCallback verifies the client's payment proof before reconciling. A proof
// that fails verification produces a failed order.
func (c *coordinator) OnCallback(ctx context.Context, userID uuid.UUID, v gateway.Verification) (*Result, error) {
	v.OrderID = strings.TrimSpace(v.OrderID)
	v.PaymentID = strings.TrimSpace(v.PaymentID)
	if v.OrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id required")
	}
	if _, err := c.owned(ctx, userID, v.OrderID); err != nil {
		return nil, err
	}

	outcome := enums.IntentVerificationFailed
	if v.PaymentID != "" && strings.TrimSpace(v.Signature) != "" {
		ok, err := c.gw.Verify(ctx, v)
		if err != nil {
			return nil, err
		}
		if ok {
			outcome = enums.IntentVerified
		}
	}
	if outcome != enums.IntentVerified && c.logg != nil {
		logCtx := c.logg.WithGatewayOrderID(ctx, v.OrderID)
		c.logg.Warn(logCtx, "gateway payment verification failed")
	}
	return c.reconcile(ctx, v.OrderID, outcome, v.PaymentID, "signature verification failed")
}

// OnDismiss records that the user closed the payment UI without paying.
func (c *coordinator) OnDismiss(ctx context.Context, userID uuid.UUID, gatewayOrderID string) (*Result, error) {
	gatewayOrderID = strings.TrimSpace(gatewayOrderID)
	if gatewayOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id required")
	}
	if _, err := c.owned(ctx, userID, gatewayOrderID); err != nil {
		return nil, err
	}
	return c.reconcile(ctx, gatewayOrderID, enums.IntentUserCancelled, "", "dismissed by user")
}

// ReconcileWebhook applies a server-to-server confirmation whose signature
// the caller already checked.
func (c *coordinator) ReconcileWebhook(ctx context.Context, gatewayOrderID, gatewayPaymentID string, succeeded bool) (*Result, error) {
	outcome := enums.IntentVerificationFailed
	if succeeded {
		outcome = enums.IntentVerified
	}
	return c.reconcile(ctx, strings.TrimSpace(gatewayOrderID), outcome, strings.TrimSpace(gatewayPaymentID), "gateway reported payment failure")
}

// ExpireStale fails attempts still open at cutoff. Each attempt is reconciled
// on its own; one failure does not stop the batch.
func (c *coordinator) ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	stale, err := c.repo.ListStale(ctx, cutoff, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list stale payment attempts")
	}
	var (
		expired int
		errs    error
	)
	for _, intent := range stale {
		res, err := c.reconcile(ctx, intent.GatewayOrderID, enums.IntentExpired, "", "payment window elapsed")
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire %s: %w", intent.GatewayOrderID, err))
			continue
		}
		if res.Outcome == enums.IntentExpired {
			expired++
		}
	}
	return expired, errs
}

// Retry opens a new gateway order for an existing failed order. The order
// keeps its items and totals; a verified attempt flips it to paid.
func (c *coordinator) Retry(ctx context.Context, userID, orderID uuid.UUID) (*Handoff, error) {
	order, err := c.orders.Get(ctx, orders.Actor{UserID: userID, Role: enums.UserRoleCustomer}, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != enums.PaymentMethodOnline ||
		order.PaymentStatus != enums.PaymentStatusFailed ||
		order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order payment cannot be retried").WithDetails(map[string]any{
			"status":         order.Status,
			"payment_status": order.PaymentStatus,
		})
	}

	if err := c.noOpenAttempt(ctx, c.repo, order.ID); err != nil {
		return nil, err
	}

	intentID := uuid.New()
	gwOrder, err := c.open(ctx, intentID, order.TotalAmount, order.Currency)
	if err != nil {
		return nil, err
	}

	release, err := c.locker.Lock(ctx, order.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	oid := order.ID
	intent := &models.PaymentIntent{
		ID:             intentID,
		UserID:         order.UserID,
		OrderID:        &oid,
		Provider:       c.gw.Provider(),
		GatewayOrderID: gwOrder.ID,
		Amount:         order.TotalAmount,
		Currency:       order.Currency,
		Outcome:        enums.IntentAwaitingUserAction,
	}
	err = c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := c.repo.WithTx(tx)
		if err := c.noOpenAttempt(ctx, repo, order.ID); err != nil {
			return err
		}
		if err := repo.Create(ctx, intent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment retry")
		}
		return c.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentRetried,
			AggregateType: enums.AggregatePaymentIntent,
			AggregateID:   intent.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: string(enums.UserRoleCustomer)},
			Data: payloads.PaymentRetriedEvent{
				OrderID:         order.ID,
				PaymentIntentID: intent.ID,
				GatewayOrderID:  intent.GatewayOrderID,
				Amount:          intent.Amount,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return c.handoff(intent, gwOrder), nil
}

// noOpenAttempt rejects a retry while another attempt for the order can
// still be paid.
func (c *coordinator) noOpenAttempt(ctx context.Context, repo Repository, orderID uuid.UUID) error {
	attempts, err := repo.ListByOrder(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payment attempts")
	}
	for _, a := range attempts {
		if slices.Contains(openOutcomes, a.Outcome) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "a payment attempt for this order is still open").WithDetails(map[string]any{
				"gateway_order_id": a.GatewayOrderID,
			})
		}
	}
	return nil
}

func (c *coordinator) owned(ctx context.Context, userID uuid.UUID, gatewayOrderID string) (*models.PaymentIntent, error) {
	intent, err := c.repo.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment attempt not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment attempt")
	}
	if intent.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment attempt not found")
	}
	return intent, nil
}

// reconcile settles one attempt under the owner's lock. Gateway I/O must be
// done before calling it.
func (c *coordinator) reconcile(ctx context.Context, gatewayOrderID string, outcome enums.PaymentIntentOutcome, paymentID, reason string) (*Result, error) {
	intent, err := c.repo.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment attempt not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment attempt")
	}

	release, err := c.locker.Lock(ctx, intent.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	var result *Result
	err = c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		result, err = c.settle(ctx, tx, gatewayOrderID, outcome, paymentID, reason)
		return err
	})
	if err != nil {
		return nil, err
	}

	if c.logg != nil {
		logCtx := c.logg.WithFields(c.logg.WithGatewayOrderID(ctx, gatewayOrderID), map[string]any{
			"outcome":        string(result.Outcome),
			"order_id":       result.Order.ID.String(),
			"payment_status": string(result.Order.PaymentStatus),
		})
		c.logg.Info(logCtx, "gateway payment reconciled")
	}
	return result, nil
}

func (c *coordinator) settle(ctx context.Context, tx *gorm.DB, gatewayOrderID string, outcome enums.PaymentIntentOutcome, paymentID, reason string) (*Result, error) {
	repo := c.repo.WithTx(tx)
	intent, err := repo.FindByGatewayOrderIDForUpdate(ctx, gatewayOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock payment attempt")
	}

	if intent.Outcome.IsTerminal() {
		// a verified payment beats an earlier dismissal or expiry; anything
		// else is a replay
		if intent.OrderID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciled payment attempt has no order")
		}
		if outcome != enums.IntentVerified || intent.Outcome == enums.IntentVerified {
			order, err := c.orders.FindForUpdate(ctx, tx, *intent.OrderID)
			if err != nil {
				return nil, err
			}
			return &Result{Order: order, Outcome: intent.Outcome}, nil
		}
	}

	var order *models.Order
	switch {
	case intent.OrderID != nil && outcome == enums.IntentVerified:
		order, err = c.orders.MarkPaymentPaid(ctx, tx, *intent.OrderID, paymentID)
	case intent.OrderID != nil:
		order, err = c.orders.MarkPaymentFailed(ctx, tx, *intent.OrderID)
	default:
		order, err = c.materialize(ctx, tx, intent, outcome, paymentID)
	}
	if err != nil {
		return nil, err
	}

	now := c.clock()
	updates := map[string]any{
		"outcome":     outcome,
		"order_id":    order.ID,
		"resolved_at": now,
	}
	if paymentID != "" {
		updates["gateway_payment_id"] = paymentID
	}
	if outcome == enums.IntentVerified {
		updates["failure_reason"] = nil
	} else {
		updates["failure_reason"] = reason
	}
	if err := repo.Resolve(ctx, intent.ID, intent.Outcome, updates); err != nil {
		if errors.Is(err, errStale) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "payment attempt already reconciled")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve payment attempt")
	}

	if err := c.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentReconciled,
		AggregateType: enums.AggregatePaymentIntent,
		AggregateID:   intent.ID,
		OccurredAt:    now,
		Data: payloads.PaymentReconciledEvent{
			OrderID:          order.ID,
			PaymentIntentID:  intent.ID,
			GatewayOrderID:   intent.GatewayOrderID,
			GatewayPaymentID: paymentID,
			Outcome:          outcome,
			PaymentStatus:    order.PaymentStatus,
			Amount:           intent.Amount,
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit payment reconciled")
	}

	c.metrics.PaymentReconciled(string(outcome))
	return &Result{Order: order, Outcome: outcome}, nil
}

// materialize creates the order for a first-time attempt and takes the
// purchased lines out of the cart. Stock is taken leniently once money has
// moved.
func (c *coordinator) materialize(ctx context.Context, tx *gorm.DB, intent *models.PaymentIntent, outcome enums.PaymentIntentOutcome, paymentID string) (*models.Order, error) {
	if intent.Checkout == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment attempt has no checkout snapshot")
	}
	draft := orders.Draft{
		UserID:        intent.UserID,
		Method:        enums.PaymentMethodOnline,
		PaymentStatus: outcome.PaymentStatus(),
		Checkout:      *intent.Checkout,
		Currency:      intent.Currency,
	}
	if outcome == enums.IntentVerified && paymentID != "" {
		draft.GatewayPaymentID = &paymentID
	}
	order, err := c.orders.Create(ctx, tx, draft)
	if err != nil {
		return nil, err
	}
	if err := c.cart.Consume(ctx, tx, intent.UserID, intent.Checkout.Lines); err != nil {
		return nil, err
	}
	return order, nil
}
