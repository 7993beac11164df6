package orders

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/wallet"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

var nextStatus = map[enums.OrderStatus]enums.OrderStatus{
	enums.OrderStatusPending:    enums.OrderStatusProcessing,
	enums.OrderStatusProcessing: enums.OrderStatusShipped,
	enums.OrderStatusShipped:    enums.OrderStatusDelivered,
}

var adminCancellable = map[enums.OrderStatus]bool{
	enums.OrderStatusPending:    true,
	enums.OrderStatusProcessing: true,
	enums.OrderStatusShipped:    true,
}

func stateConflict(msg string, from enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, msg).WithDetails(map[string]any{"status": from})
}

func forbidden() error {
	return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
}

// mutate locks the owning user, reloads the order for update and runs fn in
// one transaction. The reloaded order is returned.
func (s *service) mutate(ctx context.Context, actor Actor, orderID uuid.UUID, fn func(tx *gorm.DB, order *models.Order) error) (*models.Order, error) {
	current, err := s.Get(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	release, err := s.locker.Lock(ctx, current.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.FindForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		return fn(tx, order)
	})
	if err != nil {
		return nil, err
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, notFound()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
	}
	return order, nil
}

// refundable is what is left to return to the wallet for this order. Only
// prepaid orders that were actually paid are refunded.
func refundable(order *models.Order) int64 {
	if !order.PaymentMethod.Prepaid() || order.PaymentStatus != enums.PaymentStatusPaid {
		return 0
	}
	return max(order.TotalAmount-order.RefundedAmount, 0)
}

func (s *service) refund(ctx context.Context, tx *gorm.DB, order *models.Order, amount int64, description, reason string) error {
	amount = min(amount, order.TotalAmount-order.RefundedAmount)
	if amount <= 0 {
		return nil
	}
	orderID := order.ID
	if _, err := s.wallet.Credit(ctx, tx, wallet.Entry{
		UserID:      order.UserID,
		Amount:      amount,
		Description: description,
		OrderID:     &orderID,
	}); err != nil {
		return err
	}

	next := order.RefundedAmount + amount
	status := enums.RefundStatusPartial
	if next >= order.TotalAmount {
		status = enums.RefundStatusFull
	}
	if err := s.repo.WithTx(tx).SetRefunded(ctx, order.ID, order.RefundedAmount, next, status); err != nil {
		return stateOrInternal(err, "record refund")
	}
	order.RefundedAmount = next
	order.RefundStatus = status
	s.metrics.Refunded(reason, amount)
	return nil
}

func (s *service) emitStatus(ctx context.Context, tx *gorm.DB, actor Actor, order *models.Order, from enums.OrderStatus, reason string, at time.Time) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor.ref(),
		OccurredAt:    at,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      order.UserID,
			From:        from,
			To:          order.Status,
			Reason:      reason,
			ChangedAt:   at,
		},
	})
}

// Cancel cancels the whole order. Customers may cancel while it is pending;
// admins until it is delivered. Paid prepaid orders are refunded in full and
// committed stock and coupon uses are given back.
func (s *service) Cancel(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) (*models.Order, error) {
	reason = strings.TrimSpace(reason)
	return s.mutate(ctx, actor, orderID, func(tx *gorm.DB, order *models.Order) error {
		if order.Status == enums.OrderStatusCancelled {
			return stateConflict("order is already cancelled", order.Status)
		}
		allowed := order.Status == enums.OrderStatusPending
		if actor.IsAdmin() {
			allowed = adminCancellable[order.Status]
		}
		if !allowed {
			return stateConflict("order can no longer be cancelled", order.Status)
		}
		if reason == "" {
			reason = "cancelled by customer"
			if actor.IsAdmin() {
				reason = "cancelled by store"
			}
		}
		return s.cancelWhole(ctx, tx, actor, order, reason)
	})
}

func (s *service) cancelWhole(ctx context.Context, tx *gorm.DB, actor Actor, order *models.Order, reason string) error {
	now := s.clock()
	from := order.Status
	repo := s.repo.WithTx(tx)

	if err := repo.Transition(ctx, order.ID, from, enums.OrderStatusCancelled, map[string]any{
		"cancelled_at":        now,
		"cancellation_reason": reason,
	}); err != nil {
		return stateOrInternal(err, "cancel order")
	}
	order.Status = enums.OrderStatusCancelled

	if order.Committed {
		if err := s.stock.Restore(ctx, tx, activeStock(order)); err != nil {
			return err
		}
		if order.CouponCode != nil {
			if err := s.coupons.Release(ctx, tx, *order.CouponCode); err != nil {
				return err
			}
		}
	}

	amount := refundable(order)
	itemRefund := enums.ItemRefundStatusNotApplicable
	if amount > 0 {
		itemRefund = enums.ItemRefundStatusRefunded
	}
	if err := repo.CancelActiveItems(ctx, order.ID, map[string]any{
		"cancellation_reason": reason,
		"cancelled_at":        now,
		"refund_status":       itemRefund,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel order items")
	}

	if err := s.refund(ctx, tx, order, amount, "Refund for cancelled order "+order.OrderNumber, "order_cancelled"); err != nil {
		return err
	}
	return s.emitStatus(ctx, tx, actor, order, from, reason, now)
}

// CancelItem cancels one active line while the order is still pending, for
// any actor. The line's price times quantity is refunded, capped at what is
// still refundable. Cancelling the last active line cancels the order and
// refunds the remainder, shipping included.
func (s *service) CancelItem(ctx context.Context, actor Actor, orderID, itemID uuid.UUID, reason string) (*models.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "item cancelled"
	}
	return s.mutate(ctx, actor, orderID, func(tx *gorm.DB, order *models.Order) error {
		if order.Status != enums.OrderStatusPending {
			return stateConflict("items can only be cancelled while the order is pending", order.Status)
		}

		var target *models.OrderItem
		active := 0
		for i := range order.Items {
			if order.Items[i].Status == enums.OrderItemStatusActive {
				active++
			}
			if order.Items[i].ID == itemID {
				target = &order.Items[i]
			}
		}
		if target == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
		}
		if target.Status != enums.OrderItemStatusActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "item is already cancelled")
		}

		now := s.clock()
		last := active == 1
		amount := min(target.LineTotal(), refundable(order))
		if last {
			amount = refundable(order)
		}

		itemRefund := enums.ItemRefundStatusNotApplicable
		if amount > 0 {
			itemRefund = enums.ItemRefundStatusRefunded
		}
		repo := s.repo.WithTx(tx)
		if err := repo.CancelItem(ctx, target.ID, map[string]any{
			"cancellation_reason": reason,
			"cancelled_at":        now,
			"refund_status":       itemRefund,
			"refund_amount":       amount,
		}); err != nil {
			return stateOrInternal(err, "cancel order item")
		}
		target.Status = enums.OrderItemStatusCancelled

		if order.Committed {
			line := catalog.StockLine{ProductID: target.ProductID, Size: target.SelectedSize, Quantity: target.Quantity}
			if err := s.stock.Restore(ctx, tx, []catalog.StockLine{line}); err != nil {
				return err
			}
		}
		if err := s.refund(ctx, tx, order, amount, "Refund for cancelled item "+target.ProductName+" on "+order.OrderNumber, "item_cancelled"); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderItemCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor.ref(),
			OccurredAt:    now,
			Data: payloads.OrderItemCancelledEvent{
				OrderID:      order.ID,
				OrderItemID:  target.ID,
				UserID:       order.UserID,
				RefundAmount: amount,
				Reason:       reason,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit item cancelled")
		}

		if !last {
			return nil
		}
		// every line is gone; close the order without touching items again
		from := order.Status
		if err := repo.Transition(ctx, order.ID, from, enums.OrderStatusCancelled, map[string]any{
			"cancelled_at":        now,
			"cancellation_reason": reason,
		}); err != nil {
			return stateOrInternal(err, "cancel order")
		}
		order.Status = enums.OrderStatusCancelled
		if order.Committed && order.CouponCode != nil {
			if err := s.coupons.Release(ctx, tx, *order.CouponCode); err != nil {
				return err
			}
		}
		return s.emitStatus(ctx, tx, actor, order, from, reason, now)
	})
}

// RequestReturn opens a return on a delivered order inside the return window.
func (s *service) RequestReturn(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) (*models.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return reason required")
	}
	return s.mutate(ctx, actor, orderID, func(tx *gorm.DB, order *models.Order) error {
		if order.Status != enums.OrderStatusDelivered {
			return stateConflict("only delivered orders can be returned", order.Status)
		}
		now := s.clock()
		if order.DeliveredAt == nil || now.Sub(*order.DeliveredAt) > s.returnWindow {
			return pkgerrors.New(pkgerrors.CodePolicyViolation, "return window has closed").WithDetails(map[string]any{
				"reason":      "return_window_closed",
				"window_days": int(s.returnWindow.Hours() / 24),
			})
		}

		if err := s.repo.WithTx(tx).Transition(ctx, order.ID, order.Status, enums.OrderStatusReturnRequested, map[string]any{
			"return_reason":       reason,
			"return_requested_at": now,
		}); err != nil {
			return stateOrInternal(err, "request return")
		}
		order.Status = enums.OrderStatusReturnRequested

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderReturnRequested,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor.ref(),
			OccurredAt:    now,
			Data: payloads.OrderReturnEvent{
				OrderID: order.ID,
				UserID:  order.UserID,
				Reason:  reason,
			},
		})
	})
}

// ResolveReturn accepts or rejects a pending return. Accepting restores
// stock and refunds the remainder of non-COD orders to the wallet.
func (s *service) ResolveReturn(ctx context.Context, actor Actor, orderID uuid.UUID, resolution ReturnResolution) (*models.Order, error) {
	if !actor.IsAdmin() {
		return nil, forbidden()
	}
	if !resolution.Decision.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "decision must be accept or reject")
	}
	rejection := strings.TrimSpace(resolution.RejectionReason)
	if resolution.Decision == enums.ReturnDecisionReject && rejection == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason required")
	}

	return s.mutate(ctx, actor, orderID, func(tx *gorm.DB, order *models.Order) error {
		if order.Status != enums.OrderStatusReturnRequested {
			return stateConflict("order has no pending return", order.Status)
		}
		now := s.clock()
		repo := s.repo.WithTx(tx)
		from := order.Status

		var amount int64
		if resolution.Decision == enums.ReturnDecisionReject {
			if err := repo.Transition(ctx, order.ID, from, enums.OrderStatusDelivered, map[string]any{
				"return_rejection_reason": rejection,
			}); err != nil {
				return stateOrInternal(err, "reject return")
			}
			order.Status = enums.OrderStatusDelivered
		} else {
			if err := repo.Transition(ctx, order.ID, from, enums.OrderStatusReturned, map[string]any{
				"returned_at": now,
			}); err != nil {
				return stateOrInternal(err, "accept return")
			}
			order.Status = enums.OrderStatusReturned
			if order.Committed {
				if err := s.stock.Restore(ctx, tx, activeStock(order)); err != nil {
					return err
				}
			}
			if order.PaymentMethod != enums.PaymentMethodCOD {
				amount = refundable(order)
				if err := s.refund(ctx, tx, order, amount, "Refund for returned order "+order.OrderNumber, "order_returned"); err != nil {
					return err
				}
			}
		}

		decision := resolution.Decision
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderReturnResolved,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor.ref(),
			OccurredAt:    now,
			Data: payloads.OrderReturnEvent{
				OrderID:         order.ID,
				UserID:          order.UserID,
				Decision:        &decision,
				RejectionReason: rejection,
				RefundAmount:    amount,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit return resolved")
		}
		return s.emitStatus(ctx, tx, actor, order, from, rejection, now)
	})
}

// AdvanceStatus moves an order one step along pending, processing, shipped,
// delivered. Unpaid prepaid orders cannot start processing; COD orders are
// marked paid on delivery.
func (s *service) AdvanceStatus(ctx context.Context, actor Actor, orderID uuid.UUID, target enums.OrderStatus) (*models.Order, error) {
	if !actor.IsAdmin() {
		return nil, forbidden()
	}
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	return s.mutate(ctx, actor, orderID, func(tx *gorm.DB, order *models.Order) error {
		from := order.Status
		if next, ok := nextStatus[from]; !ok || next != target {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "invalid status transition").WithDetails(map[string]any{
				"from": from,
				"to":   target,
			})
		}
		if from == enums.OrderStatusPending && !payable(order.PaymentMethod, order.PaymentStatus) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order payment has not been completed")
		}

		now := s.clock()
		updates := map[string]any{}
		switch target {
		case enums.OrderStatusShipped:
			updates["shipped_at"] = now
		case enums.OrderStatusDelivered:
			updates["delivered_at"] = now
			if order.PaymentMethod == enums.PaymentMethodCOD && order.PaymentStatus != enums.PaymentStatusPaid {
				updates["payment_status"] = enums.PaymentStatusPaid
				updates["paid_at"] = now
			}
		}
		if err := s.repo.WithTx(tx).Transition(ctx, order.ID, from, target, updates); err != nil {
			return stateOrInternal(err, "advance order status")
		}
		order.Status = target
		return s.emitStatus(ctx, tx, actor, order, from, "", now)
	})
}
