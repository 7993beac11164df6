package gatewaypay

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

var errStale = errors.New("payment intent changed concurrently")

var openOutcomes = []enums.PaymentIntentOutcome{enums.IntentCreated, enums.IntentAwaitingUserAction}

// Repository persists gateway payment attempts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, intent *models.PaymentIntent) error
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.PaymentIntent, error)
	FindByGatewayOrderIDForUpdate(ctx context.Context, gatewayOrderID string) (*models.PaymentIntent, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentIntent, error)
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentIntent, error)
	Resolve(ctx context.Context, id uuid.UUID, from enums.PaymentIntentOutcome, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, intent *models.PaymentIntent) error {
	if intent.ID == uuid.Nil {
		intent.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(intent).Error
}

func (r *repository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := r.db.WithContext(ctx).Where("gateway_order_id = ?", gatewayOrderID).First(&intent).Error; err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *repository) FindByGatewayOrderIDForUpdate(ctx context.Context, gatewayOrderID string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("gateway_order_id = ?", gatewayOrderID).
		First(&intent).Error
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentIntent, error) {
	var rows []models.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// ListStale returns open attempts created before cutoff, oldest first.
func (r *repository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentIntent, error) {
	var rows []models.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("outcome IN ? AND created_at < ?", openOutcomes, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Resolve updates an attempt still in outcome from. errStale means another
// reconciliation got there first.
func (r *repository) Resolve(ctx context.Context, id uuid.UUID, from enums.PaymentIntentOutcome, updates map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("id = ? AND outcome = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errStale
	}
	return nil
}
