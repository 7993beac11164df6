// Package cart manages the per-user selection that checkout prices.
package cart

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type catalogLookup interface {
	Lookup(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]catalog.Item, error)
}

// Service exposes cart operations.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*Cart, error)
	Add(ctx context.Context, userID uuid.UUID, input ItemInput) (*Cart, error)
	UpdateQuantity(ctx context.Context, userID uuid.UUID, input ItemInput) (*Cart, error)
	Remove(ctx context.Context, userID, productID uuid.UUID, size string) (*Cart, error)
	Clear(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
	Consume(ctx context.Context, tx *gorm.DB, userID uuid.UUID, lines []types.PricedLine) error
}

// ItemInput identifies a product size and a quantity.
type ItemInput struct {
	ProductID    uuid.UUID
	SelectedSize string
	Quantity     int
}

func (in ItemInput) normalized() ItemInput {
	in.SelectedSize = strings.ToUpper(strings.TrimSpace(in.SelectedSize))
	return in
}

type service struct {
	repo    Repository
	catalog catalogLookup
}

// NewService wires the cart service.
func NewService(repo Repository, catalog catalogLookup) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog lookup required")
	}
	return &service{repo: repo, catalog: catalog}, nil
}

// Get loads the cart with prices, stock and offers read fresh from the
// catalog. Lines whose product vanished are reported unavailable.
func (s *service) Get(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	catalogItems, err := s.catalog.Lookup(ctx, ids)
	if err != nil {
		return nil, err
	}

	c := &Cart{UserID: userID, Lines: make([]Line, 0, len(items))}
	for _, item := range items {
		c.Lines = append(c.Lines, buildLine(item, catalogItems))
	}
	return c, nil
}

func buildLine(item models.CartItem, catalogItems map[uuid.UUID]catalog.Item) Line {
	line := Line{
		ProductID:    item.ProductID,
		SelectedSize: item.SelectedSize,
		Quantity:     item.Quantity,
	}
	entry, ok := catalogItems[item.ProductID]
	if !ok {
		return line
	}
	stock, hasSize := entry.StockFor(item.SelectedSize)
	line.ProductName = entry.Product.Name
	line.BasePrice = entry.Product.Price
	line.Stock = stock
	line.MaxPerPerson = entry.Product.MaxPerPerson
	line.Available = entry.Listed && hasSize
	line.ProductOffer = entry.ProductOffer
	line.CategoryOffer = entry.CategoryOffer
	return line
}

// Add puts quantity more units of a product size in the cart.
func (s *service) Add(ctx context.Context, userID uuid.UUID, input ItemInput) (*Cart, error) {
	input = input.normalized()
	if err := validateInput(input, 1); err != nil {
		return nil, err
	}
	current, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	qty := input.Quantity
	if existing, ok := current.find(input.ProductID, input.SelectedSize); ok {
		qty += existing.Quantity
	}
	return s.write(ctx, userID, ItemInput{ProductID: input.ProductID, SelectedSize: input.SelectedSize, Quantity: qty})
}

// UpdateQuantity sets the quantity of a line. Zero removes it.
func (s *service) UpdateQuantity(ctx context.Context, userID uuid.UUID, input ItemInput) (*Cart, error) {
	input = input.normalized()
	if err := validateInput(input, 0); err != nil {
		return nil, err
	}
	if input.Quantity == 0 {
		return s.Remove(ctx, userID, input.ProductID, input.SelectedSize)
	}
	return s.write(ctx, userID, input)
}

func (s *service) Remove(ctx context.Context, userID, productID uuid.UUID, size string) (*Cart, error) {
	size = strings.ToUpper(strings.TrimSpace(size))
	removed, err := s.repo.Delete(ctx, userID, productID, size)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart item")
	}
	if !removed {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return s.Get(ctx, userID)
}

// Clear empties the cart inside tx.
func (s *service) Clear(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	if err := s.repo.WithTx(tx).DeleteAll(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	return nil
}

// Consume removes the purchased quantities from the cart inside tx. Lines
// added after the checkout was priced are left alone.
func (s *service) Consume(ctx context.Context, tx *gorm.DB, userID uuid.UUID, lines []types.PricedLine) error {
	repo := s.repo.WithTx(tx)
	for _, line := range lines {
		if err := repo.Deduct(ctx, userID, line.ProductID, line.SelectedSize, line.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "consume cart line")
		}
	}
	return nil
}

func (s *service) write(ctx context.Context, userID uuid.UUID, input ItemInput) (*Cart, error) {
	items, err := s.catalog.Lookup(ctx, []uuid.UUID{input.ProductID})
	if err != nil {
		return nil, err
	}
	line := buildLine(models.CartItem{ProductID: input.ProductID, SelectedSize: input.SelectedSize, Quantity: input.Quantity}, items)
	if !line.Available {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not available")
	}
	if input.Quantity > line.Limit() {
		return nil, pkgerrors.New(pkgerrors.CodePolicyViolation, "requested quantity not available").WithDetails(map[string]any{
			"reason":  string(limitReason(line, input.Quantity)),
			"allowed": max(line.Limit(), 0),
		})
	}

	item := &models.CartItem{
		UserID:       userID,
		ProductID:    input.ProductID,
		SelectedSize: input.SelectedSize,
		Quantity:     input.Quantity,
	}
	if err := s.repo.Upsert(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save cart item")
	}
	return s.Get(ctx, userID)
}

func limitReason(line Line, qty int) IssueReason {
	if qty > line.Stock {
		return IssueOutOfStock
	}
	return IssueOverLimit
}

func validateInput(input ItemInput, minQty int) error {
	if input.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.SelectedSize == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "size required")
	}
	if input.Quantity < minQty {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be at least %d", minQty))
	}
	return nil
}
