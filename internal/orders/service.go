// Package orders owns the order state machine: creation from a priced
// checkout, payment status changes, cancellation, returns and the wallet
// refunds they trigger.
package orders

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/internal/userlock"
	"github.com/angelmondragon/storefront-backend/internal/wallet"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// StockMover takes and returns inventory inside the caller's transaction.
type StockMover interface {
	Commit(ctx context.Context, tx *gorm.DB, lines []catalog.StockLine, strict bool) error
	Restore(ctx context.Context, tx *gorm.DB, lines []catalog.StockLine) error
}

// CouponCounter tracks coupon redemptions inside the caller's transaction.
type CouponCounter interface {
	Redeem(ctx context.Context, tx *gorm.DB, code string, strict bool) error
	Release(ctx context.Context, tx *gorm.DB, code string) error
}

// Refunder credits a user's wallet inside the caller's transaction.
type Refunder interface {
	Credit(ctx context.Context, tx *gorm.DB, entry wallet.Entry) (*models.WalletTransaction, error)
}

// Service is the order lifecycle manager.
type Service interface {
	Create(ctx context.Context, tx *gorm.DB, draft Draft) (*models.Order, error)
	Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, actor Actor, filter ListFilter, params pagination.Params) (*OrderList, error)
	FindForUpdate(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Order, error)
	MarkPaymentPaid(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, gatewayPaymentID string) (*models.Order, error)
	MarkPaymentFailed(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Order, error)
	Cancel(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) (*models.Order, error)
	CancelItem(ctx context.Context, actor Actor, orderID, itemID uuid.UUID, reason string) (*models.Order, error)
	RequestReturn(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) (*models.Order, error)
	ResolveReturn(ctx context.Context, actor Actor, orderID uuid.UUID, resolution ReturnResolution) (*models.Order, error)
	AdvanceStatus(ctx context.Context, actor Actor, orderID uuid.UUID, target enums.OrderStatus) (*models.Order, error)
}

// Deps groups the collaborators of the lifecycle manager.
type Deps struct {
	Repo         Repository
	Tx           txRunner
	Outbox       outbox.Emitter
	Stock        StockMover
	Coupons      CouponCounter
	Wallet       Refunder
	Locker       userlock.Locker
	Metrics      *metrics.CheckoutMetrics
	Logger       *logger.Logger
	ReturnWindow time.Duration
}

type service struct {
	repo         Repository
	tx           txRunner
	outbox       outbox.Emitter
	stock        StockMover
	coupons      CouponCounter
	wallet       Refunder
	locker       userlock.Locker
	metrics      *metrics.CheckoutMetrics
	logg         *logger.Logger
	returnWindow time.Duration
	clock        func() time.Time
}

// NewService builds the order lifecycle manager.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Repo == nil:
		return nil, fmt.Errorf("orders repository required")
	case deps.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case deps.Stock == nil:
		return nil, fmt.Errorf("stock mover required")
	case deps.Coupons == nil:
		return nil, fmt.Errorf("coupon counter required")
	case deps.Wallet == nil:
		return nil, fmt.Errorf("wallet refunder required")
	case deps.Locker == nil:
		return nil, fmt.Errorf("user locker required")
	}
	window := deps.ReturnWindow
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	return &service{
		repo:         deps.Repo,
		tx:           deps.Tx,
		outbox:       deps.Outbox,
		stock:        deps.Stock,
		coupons:      deps.Coupons,
		wallet:       deps.Wallet,
		locker:       deps.Locker,
		metrics:      deps.Metrics,
		logg:         deps.Logger,
		returnWindow: window,
		clock:        time.Now,
	}, nil
}

// NewOrderNumber formats ORD-YYYYMMDD-XXXXXX.
func NewOrderNumber(now time.Time) string {
	id := uuid.New()
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), strings.ToUpper(hex.EncodeToString(id[:3])))
}

func validateDraft(d Draft) error {
	if d.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !d.Method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if !d.PaymentStatus.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
	}
	if len(d.Checkout.Lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order has no items")
	}
	var subtotal int64
	for _, line := range d.Checkout.Lines {
		if line.Quantity <= 0 || line.LineTotal != line.UnitPrice*int64(line.Quantity) {
			return pkgerrors.New(pkgerrors.CodeInternal, "order line totals are inconsistent")
		}
		subtotal += line.LineTotal
	}
	c := d.Checkout
	if subtotal != c.Subtotal || c.Total != pricing.ComputeTotal(c.Subtotal, c.Discount, c.Shipping) {
		return pkgerrors.New(pkgerrors.CodeInternal, "order totals are inconsistent")
	}
	return nil
}

// payable reports whether the order holds stock: COD orders on placement,
// prepaid orders once paid.
func payable(method enums.PaymentMethod, status enums.PaymentStatus) bool {
	return method == enums.PaymentMethodCOD || status == enums.PaymentStatusPaid
}

// Create persists the order inside tx. Payable orders take their stock and
// coupon use immediately; failed gateway orders take nothing until paid.
func (s *service) Create(ctx context.Context, tx *gorm.DB, d Draft) (*models.Order, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order creation requires a transaction")
	}
	if err := validateDraft(d); err != nil {
		return nil, err
	}
	if d.Currency == "" {
		d.Currency = enums.CurrencyINR
	}

	now := s.clock()
	c := d.Checkout
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	order := &models.Order{
		ID:               d.ID,
		OrderNumber:      NewOrderNumber(now),
		UserID:           d.UserID,
		AddressID:        c.AddressID,
		ShippingAddress:  c.Address,
		PaymentMethod:    d.Method,
		PaymentStatus:    d.PaymentStatus,
		Status:           enums.OrderStatusPending,
		Currency:         d.Currency,
		SubtotalAmount:   c.Subtotal,
		DiscountAmount:   c.Discount,
		ShippingCharge:   c.Shipping,
		TotalAmount:      c.Total,
		CouponCode:       c.CouponCode,
		RefundStatus:     enums.RefundStatusNone,
		GatewayPaymentID: d.GatewayPaymentID,
	}
	if d.PaymentStatus == enums.PaymentStatusPaid {
		order.PaidAt = &now
	}
	for _, line := range c.Lines {
		order.Items = append(order.Items, models.OrderItem{
			ID:            uuid.New(),
			ProductID:     line.ProductID,
			ProductName:   line.ProductName,
			SelectedSize:  line.SelectedSize,
			Quantity:      line.Quantity,
			Price:         line.UnitPrice,
			OriginalPrice: line.OriginalPrice,
			OfferID:       line.OfferID,
			Status:        enums.OrderItemStatusActive,
			RefundStatus:  enums.ItemRefundStatusNone,
		})
	}

	if payable(d.Method, d.PaymentStatus) {
		if err := s.commit(ctx, tx, order, d.StrictStock); err != nil {
			return nil, err
		}
		order.Committed = true
	}

	if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order number collision, please retry")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: order.UserID, Role: string(enums.UserRoleCustomer)},
		Data: payloads.OrderCreatedEvent{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			UserID:        order.UserID,
			PaymentMethod: order.PaymentMethod,
			PaymentStatus: order.PaymentStatus,
			TotalAmount:   order.TotalAmount,
			CouponCode:    order.CouponCode,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order created")
	}

	s.metrics.OrderPlaced(string(order.PaymentMethod), string(order.PaymentStatus))
	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
			"order_number":   order.OrderNumber,
			"payment_method": string(order.PaymentMethod),
			"payment_status": string(order.PaymentStatus),
			"total":          order.TotalAmount,
		})
		s.logg.Info(logCtx, "order created")
	}
	return order, nil
}

func (s *service) commit(ctx context.Context, tx *gorm.DB, order *models.Order, strict bool) error {
	if err := s.stock.Commit(ctx, tx, activeStock(order), strict); err != nil {
		return err
	}
	if order.CouponCode != nil {
		if err := s.coupons.Redeem(ctx, tx, *order.CouponCode, strict); err != nil {
			return err
		}
	}
	return nil
}

func activeStock(order *models.Order) []catalog.StockLine {
	var lines []catalog.StockLine
	for _, item := range order.Items {
		if item.Status != enums.OrderItemStatusActive {
			continue
		}
		lines = append(lines, catalog.StockLine{ProductID: item.ProductID, Size: item.SelectedSize, Quantity: item.Quantity})
	}
	return lines
}

// Get returns the order when actor owns it or is an admin.
func (s *service) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, notFound()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if !actor.IsAdmin() && order.UserID != actor.UserID {
		return nil, notFound()
	}
	return order, nil
}

func notFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

// List pages orders newest first. Customers only ever see their own.
func (s *service) List(ctx context.Context, actor Actor, filter ListFilter, params pagination.Params) (*OrderList, error) {
	if !actor.IsAdmin() {
		owner := actor.UserID
		filter.UserID = &owner
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.List(ctx, filter, cursor, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	page, next := pagination.Trim(rows, limit, func(o models.Order) string {
		return pagination.EncodeCursor(pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID})
	})
	return &OrderList{Orders: page, NextCursor: next}, nil
}

func (s *service) FindForUpdate(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.WithTx(tx).FindByIDForUpdate(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, notFound()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return order, nil
}

// MarkPaymentPaid records a verified gateway payment. It is idempotent per
// payment id. An order that was not yet holding stock commits it now; an
// order cancelled while unpaid is refunded to the wallet in full. A second,
// different payment on an already paid order is credited to the wallet.
func (s *service) MarkPaymentPaid(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, gatewayPaymentID string) (*models.Order, error) {
	order, err := s.FindForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == enums.PaymentStatusPaid {
		if err := s.creditDuplicate(ctx, tx, order, gatewayPaymentID); err != nil {
			return nil, err
		}
		return order, nil
	}

	now := s.clock()
	repo := s.repo.WithTx(tx)
	updates := map[string]any{
		"payment_status": enums.PaymentStatusPaid,
		"paid_at":        now,
	}
	if id := trimmed(gatewayPaymentID); id != nil {
		updates["gateway_payment_id"] = *id
		order.GatewayPaymentID = id
	}
	if err := repo.UpdatePayment(ctx, order.ID, order.PaymentStatus, updates); err != nil {
		return nil, stateOrInternal(err, "record payment")
	}
	order.PaymentStatus = enums.PaymentStatusPaid
	order.PaidAt = &now

	switch {
	case order.Status == enums.OrderStatusPending && !order.Committed:
		if err := s.commit(ctx, tx, order, false); err != nil {
			return nil, err
		}
		if err := repo.Update(ctx, order.ID, map[string]any{"committed": true}); err != nil {
			return nil, stateOrInternal(err, "mark order committed")
		}
		order.Committed = true
	case order.Status == enums.OrderStatusCancelled:
		if err := s.refund(ctx, tx, order, order.TotalAmount-order.RefundedAmount, "Refund for payment received on cancelled order "+order.OrderNumber, "late_payment"); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// creditDuplicate returns a payment captured for an order that another
// payment already settled. Every attempt on an order is opened for its total.
func (s *service) creditDuplicate(ctx context.Context, tx *gorm.DB, order *models.Order, gatewayPaymentID string) error {
	id := trimmed(gatewayPaymentID)
	if id == nil || order.TotalAmount <= 0 || (order.GatewayPaymentID != nil && *order.GatewayPaymentID == *id) {
		return nil
	}
	orderID := order.ID
	if _, err := s.wallet.Credit(ctx, tx, wallet.Entry{
		UserID:      order.UserID,
		Amount:      order.TotalAmount,
		Description: "Refund for duplicate payment " + *id + " on " + order.OrderNumber,
		OrderID:     &orderID,
	}); err != nil {
		return err
	}
	s.metrics.Refunded("duplicate_payment", order.TotalAmount)
	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
			"gateway_payment_id": *id,
			"amount":             order.TotalAmount,
		})
		s.logg.Warn(logCtx, "duplicate payment credited to wallet")
	}
	return nil
}

// MarkPaymentFailed records a failed or abandoned attempt. A paid order is
// never downgraded.
func (s *service) MarkPaymentFailed(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.FindForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus != enums.PaymentStatusPending {
		return order, nil
	}
	if err := s.repo.WithTx(tx).UpdatePayment(ctx, order.ID, order.PaymentStatus, map[string]any{"payment_status": enums.PaymentStatusFailed}); err != nil {
		return nil, stateOrInternal(err, "record payment failure")
	}
	order.PaymentStatus = enums.PaymentStatusFailed
	return order, nil
}

func stateOrInternal(err error, msg string) error {
	if errors.Is(err, errStale) {
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, msg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}
