package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/gatewaypay"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/internal/wallet"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type orderItemResponse struct {
	ID                 uuid.UUID              `json:"id"`
	ProductID          uuid.UUID              `json:"product_id"`
	ProductName        string                 `json:"product_name"`
	SelectedSize       string                 `json:"selected_size"`
	Quantity           int                    `json:"quantity"`
	Price              int64                  `json:"price"`
	OriginalPrice      int64                  `json:"original_price"`
	Status             enums.OrderItemStatus  `json:"status"`
	CancellationReason *string                `json:"cancellation_reason,omitempty"`
	RefundStatus       enums.ItemRefundStatus `json:"refund_status"`
	RefundAmount       int64                  `json:"refund_amount"`
	CancelledAt        *time.Time             `json:"cancelled_at,omitempty"`
}

type orderResponse struct {
	ID                    uuid.UUID             `json:"id"`
	OrderNumber           string                `json:"order_number"`
	UserID                uuid.UUID             `json:"user_id"`
	ShippingAddress       types.AddressSnapshot `json:"shipping_address"`
	PaymentMethod         enums.PaymentMethod   `json:"payment_method"`
	PaymentStatus         enums.PaymentStatus   `json:"payment_status"`
	Status                enums.OrderStatus     `json:"status"`
	Currency              enums.Currency        `json:"currency"`
	SubtotalAmount        int64                 `json:"subtotal_amount"`
	DiscountAmount        int64                 `json:"discount_amount"`
	ShippingCharge        int64                 `json:"shipping_charge"`
	TotalAmount           int64                 `json:"total_amount"`
	CouponCode            *string               `json:"coupon_code,omitempty"`
	RefundedAmount        int64                 `json:"refunded_amount"`
	RefundStatus          enums.RefundStatus    `json:"refund_status"`
	CancellationReason    *string               `json:"cancellation_reason,omitempty"`
	ReturnReason          *string               `json:"return_reason,omitempty"`
	ReturnRejectionReason *string               `json:"return_rejection_reason,omitempty"`
	PaidAt                *time.Time            `json:"paid_at,omitempty"`
	ShippedAt             *time.Time            `json:"shipped_at,omitempty"`
	DeliveredAt           *time.Time            `json:"delivered_at,omitempty"`
	CancelledAt           *time.Time            `json:"cancelled_at,omitempty"`
	ReturnRequestedAt     *time.Time            `json:"return_requested_at,omitempty"`
	ReturnedAt            *time.Time            `json:"returned_at,omitempty"`
	Items                 []orderItemResponse   `json:"items"`
	CreatedAt             time.Time             `json:"created_at"`
	UpdatedAt             time.Time             `json:"updated_at"`
}

func newOrderResponse(o *models.Order) *orderResponse {
	if o == nil {
		return nil
	}
	items := make([]orderItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = orderItemResponse{
			ID:                 item.ID,
			ProductID:          item.ProductID,
			ProductName:        item.ProductName,
			SelectedSize:       item.SelectedSize,
			Quantity:           item.Quantity,
			Price:              item.Price,
			OriginalPrice:      item.OriginalPrice,
			Status:             item.Status,
			CancellationReason: item.CancellationReason,
			RefundStatus:       item.RefundStatus,
			RefundAmount:       item.RefundAmount,
			CancelledAt:        item.CancelledAt,
		}
	}
	return &orderResponse{
		ID:                    o.ID,
		OrderNumber:           o.OrderNumber,
		UserID:                o.UserID,
		ShippingAddress:       o.ShippingAddress,
		PaymentMethod:         o.PaymentMethod,
		PaymentStatus:         o.PaymentStatus,
		Status:                o.Status,
		Currency:              o.Currency,
		SubtotalAmount:        o.SubtotalAmount,
		DiscountAmount:        o.DiscountAmount,
		ShippingCharge:        o.ShippingCharge,
		TotalAmount:           o.TotalAmount,
		CouponCode:            o.CouponCode,
		RefundedAmount:        o.RefundedAmount,
		RefundStatus:          o.RefundStatus,
		CancellationReason:    o.CancellationReason,
		ReturnReason:          o.ReturnReason,
		ReturnRejectionReason: o.ReturnRejectionReason,
		PaidAt:                o.PaidAt,
		ShippedAt:             o.ShippedAt,
		DeliveredAt:           o.DeliveredAt,
		CancelledAt:           o.CancelledAt,
		ReturnRequestedAt:     o.ReturnRequestedAt,
		ReturnedAt:            o.ReturnedAt,
		Items:                 items,
		CreatedAt:             o.CreatedAt,
		UpdatedAt:             o.UpdatedAt,
	}
}

type orderListResponse struct {
	Orders     []*orderResponse `json:"orders"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

func newOrderListResponse(list *orders.OrderList) orderListResponse {
	out := orderListResponse{Orders: make([]*orderResponse, 0, len(list.Orders))}
	for i := range list.Orders {
		out.Orders = append(out.Orders, newOrderResponse(&list.Orders[i]))
	}
	out.NextCursor = list.NextCursor
	return out
}

type placementResponse struct {
	Order   *orderResponse      `json:"order,omitempty"`
	Payment *gatewaypay.Handoff `json:"payment,omitempty"`
	Quote   pricing.Quote       `json:"quote"`
}

func newPlacementResponse(p *checkout.Placement) placementResponse {
	return placementResponse{
		Order:   newOrderResponse(p.Order),
		Payment: p.Handoff,
		Quote:   p.Quote,
	}
}

type paymentResultResponse struct {
	Order   *orderResponse             `json:"order"`
	Outcome enums.PaymentIntentOutcome `json:"outcome"`
}

func newPaymentResultResponse(res *gatewaypay.Result) paymentResultResponse {
	return paymentResultResponse{Order: newOrderResponse(res.Order), Outcome: res.Outcome}
}

type walletTransactionResponse struct {
	ID           uuid.UUID                   `json:"id"`
	Sequence     int64                       `json:"sequence"`
	Type         enums.WalletTransactionType `json:"type"`
	Amount       int64                       `json:"amount"`
	Description  string                      `json:"description"`
	BalanceAfter int64                       `json:"balance_after"`
	OrderID      *uuid.UUID                  `json:"order_id,omitempty"`
	CreatedAt    time.Time                   `json:"created_at"`
}

func newWalletTransactionResponse(t *models.WalletTransaction) walletTransactionResponse {
	return walletTransactionResponse{
		ID:           t.ID,
		Sequence:     t.Sequence,
		Type:         t.Type,
		Amount:       t.Amount,
		Description:  t.Description,
		BalanceAfter: t.BalanceAfter,
		OrderID:      t.OrderID,
		CreatedAt:    t.CreatedAt,
	}
}

type walletHistoryResponse struct {
	Balance      int64                       `json:"balance"`
	Transactions []walletTransactionResponse `json:"transactions"`
	NextCursor   string                      `json:"next_cursor,omitempty"`
}

func newWalletHistoryResponse(h *wallet.History) walletHistoryResponse {
	out := walletHistoryResponse{
		Balance:      h.Balance,
		Transactions: make([]walletTransactionResponse, 0, len(h.Transactions)),
		NextCursor:   h.NextCursor,
	}
	for i := range h.Transactions {
		out.Transactions = append(out.Transactions, newWalletTransactionResponse(&h.Transactions[i]))
	}
	return out
}
