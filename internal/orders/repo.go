package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// errStale is returned by guarded updates whose precondition no longer holds.
var errStale = errors.New("order changed concurrently")

// Repository persists orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Order, error)
	Transition(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, updates map[string]any) error
	UpdatePayment(ctx context.Context, id uuid.UUID, from enums.PaymentStatus, updates map[string]any) error
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	SetRefunded(ctx context.Context, id uuid.UUID, previous, next int64, status enums.RefundStatus) error
	CancelItem(ctx context.Context, itemID uuid.UUID, updates map[string]any) error
	CancelActiveItems(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	for i := range order.Items {
		if order.Items[i].ID == uuid.Nil {
			order.Items[i].ID = uuid.New()
		}
		order.Items[i].OrderID = order.ID
	}
	return r.db.WithContext(ctx).Create(order).Error
}

func preloadItems(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC").Order("product_name ASC")
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", preloadItems).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items", preloadItems).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{}).Preload("Items", preloadItems)
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.PaymentStatus != nil {
		query = query.Where("payment_status = ?", *filter.PaymentStatus)
	}
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	if err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Transition moves the order from one status to another, failing with
// errStale when it is no longer in from.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, updates map[string]any) error {
	values := map[string]any{"status": to}
	for k, v := range updates {
		values[k] = v
	}
	return guarded(r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values))
}

func (r *repository) UpdatePayment(ctx context.Context, id uuid.UUID, from enums.PaymentStatus, updates map[string]any) error {
	return guarded(r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", id, from).
		Updates(updates))
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return guarded(r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates))
}

// SetRefunded records a refund, guarded on the previously seen amount.
func (r *repository) SetRefunded(ctx context.Context, id uuid.UUID, previous, next int64, status enums.RefundStatus) error {
	return guarded(r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND refunded_amount = ?", id, previous).
		Updates(map[string]any{"refunded_amount": next, "refund_status": status}))
}

func (r *repository) CancelItem(ctx context.Context, itemID uuid.UUID, updates map[string]any) error {
	values := map[string]any{"status": enums.OrderItemStatusCancelled}
	for k, v := range updates {
		values[k] = v
	}
	return guarded(r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("id = ? AND status = ?", itemID, enums.OrderItemStatusActive).
		Updates(values))
}

func (r *repository) CancelActiveItems(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	values := map[string]any{"status": enums.OrderItemStatusCancelled}
	for k, v := range updates {
		values[k] = v
	}
	return r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("order_id = ? AND status = ?", orderID, enums.OrderItemStatusActive).
		Updates(values).Error
}

func guarded(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errStale
	}
	return nil
}
