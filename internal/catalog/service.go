// Package catalog exposes the product data checkout prices against and the
// stock movements an order commits or restores.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Item is a product with the offers that currently apply to it.
type Item struct {
	Product       models.Product
	Listed        bool
	ProductOffer  *pricing.Offer
	CategoryOffer *pricing.Offer
}

// StockFor returns the on-hand quantity for size.
func (i Item) StockFor(size string) (int, bool) {
	for _, row := range i.Product.Stock {
		if row.Size == size {
			return row.Quantity, true
		}
	}
	return 0, false
}

// StockLine is a quantity of one product size moving in or out of stock.
type StockLine struct {
	ProductID uuid.UUID
	Size      string
	Quantity  int
}

// Service is the catalog surface checkout and orders depend on.
type Service interface {
	Lookup(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]Item, error)
	Commit(ctx context.Context, tx *gorm.DB, lines []StockLine, strict bool) error
	Restore(ctx context.Context, tx *gorm.DB, lines []StockLine) error
}

type service struct {
	repo  Repository
	logg  *logger.Logger
	clock func() time.Time
}

// NewService wires the catalog service.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo, logg: logg, clock: time.Now}, nil
}

// Lookup loads products by id together with their best valid product and
// category offers. Missing ids are absent from the result.
func (s *service) Lookup(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]Item, error) {
	products, err := s.repo.FindProducts(ctx, productIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}

	categoryIDs := make([]uuid.UUID, 0, len(products))
	seen := make(map[uuid.UUID]struct{}, len(products))
	for _, p := range products {
		if _, ok := seen[p.CategoryID]; ok {
			continue
		}
		seen[p.CategoryID] = struct{}{}
		categoryIDs = append(categoryIDs, p.CategoryID)
	}

	listed, err := s.repo.ListedCategories(ctx, categoryIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load categories")
	}
	offers, err := s.repo.ActiveOffers(ctx, productIDs, categoryIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load offers")
	}

	now := s.clock()
	byProduct := map[uuid.UUID]*pricing.Offer{}
	byCategory := map[uuid.UUID]*pricing.Offer{}
	for i := range offers {
		offer := pricing.OfferFromModel(&offers[i])
		if !offer.ValidAt(now) {
			continue
		}
		switch offers[i].Scope {
		case enums.OfferScopeProduct:
			if offers[i].ProductID != nil {
				byProduct[*offers[i].ProductID] = better(byProduct[*offers[i].ProductID], offer)
			}
		case enums.OfferScopeCategory:
			if offers[i].CategoryID != nil {
				byCategory[*offers[i].CategoryID] = better(byCategory[*offers[i].CategoryID], offer)
			}
		}
	}

	out := make(map[uuid.UUID]Item, len(products))
	for _, p := range products {
		out[p.ID] = Item{
			Product:       p,
			Listed:        p.IsListed && listed[p.CategoryID],
			ProductOffer:  byProduct[p.ID],
			CategoryOffer: byCategory[p.CategoryID],
		}
	}
	return out, nil
}

func better(current, candidate *pricing.Offer) *pricing.Offer {
	if current == nil || candidate.Percent.GreaterThan(current.Percent) {
		return candidate
	}
	return current
}

// Commit takes stock for every line inside tx. In strict mode a short line
// fails the whole commit; otherwise stock is clamped at zero and the
// shortfall is logged, since the money has already been captured.
func (s *service) Commit(ctx context.Context, tx *gorm.DB, lines []StockLine, strict bool) error {
	repo := s.repo.WithTx(tx)
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		if !strict {
			if err := repo.DecrementStockClamped(ctx, line.ProductID, line.Size, line.Quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "commit stock")
			}
			continue
		}
		ok, err := repo.DecrementStock(ctx, line.ProductID, line.Size, line.Quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "commit stock")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodePolicyViolation, "item out of stock").WithDetails(map[string]any{
				"reason":     "out_of_stock",
				"product_id": line.ProductID,
				"size":       line.Size,
			})
		}
	}
	return nil
}

// Restore returns stock for every line inside tx.
func (s *service) Restore(ctx context.Context, tx *gorm.DB, lines []StockLine) error {
	repo := s.repo.WithTx(tx)
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		if err := repo.IncrementStock(ctx, line.ProductID, line.Size, line.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restore stock")
		}
	}
	if s.logg != nil && len(lines) > 0 {
		s.logg.Debug(ctx, fmt.Sprintf("restored stock for %d lines", len(lines)))
	}
	return nil
}
