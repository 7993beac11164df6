package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestLookupPicksBestOffers(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn), nil)
	require.NoError(t, err)

	cat := dbtest.SeedCategory(t, conn, "shirts")
	product := dbtest.SeedProduct(t, conn, dbtest.ProductSeed{Price: 1000, CategoryID: cat.ID, Stock: map[string]int{"M": 4}})
	dbtest.SeedOffer(t, conn, enums.OfferScopeProduct, product.ID, 10)
	best := dbtest.SeedOffer(t, conn, enums.OfferScopeProduct, product.ID, 15)
	catOffer := dbtest.SeedOffer(t, conn, enums.OfferScopeCategory, cat.ID, 20)

	items, err := svc.Lookup(context.Background(), []uuid.UUID{product.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[product.ID]
	require.True(t, item.Listed)
	require.Equal(t, best.ID, item.ProductOffer.ID)
	require.Equal(t, catOffer.ID, item.CategoryOffer.ID)

	qty, ok := item.StockFor("M")
	require.True(t, ok)
	require.Equal(t, 4, qty)
	_, ok = item.StockFor("XL")
	require.False(t, ok)
}

func TestLookupMarksUnlistedProducts(t *testing.T) {
	conn := dbtest.Open(t)
	svc, _ := NewService(NewRepository(conn), nil)

	product := dbtest.SeedProduct(t, conn, dbtest.ProductSeed{Price: 500, Unlisted: true, Stock: map[string]int{"S": 1}})
	items, err := svc.Lookup(context.Background(), []uuid.UUID{product.ID})
	require.NoError(t, err)
	require.False(t, items[product.ID].Listed)
}

func TestCommitStrictRollsBackOnShortStock(t *testing.T) {
	client := dbtest.Client(t)
	conn := client.DB()
	svc, _ := NewService(NewRepository(conn), nil)

	a := dbtest.SeedProduct(t, conn, dbtest.ProductSeed{Price: 100, Stock: map[string]int{"M": 5}})
	b := dbtest.SeedProduct(t, conn, dbtest.ProductSeed{Price: 100, Stock: map[string]int{"M": 1}})

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Commit(context.Background(), tx, []StockLine{
			{ProductID: a.ID, Size: "M", Quantity: 2},
			{ProductID: b.ID, Size: "M", Quantity: 2},
		}, true)
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodePolicyViolation))
	require.Equal(t, 5, dbtest.StockOf(t, conn, a.ID, "M"))
	require.Equal(t, 1, dbtest.StockOf(t, conn, b.ID, "M"))
}

func TestCommitLenientClampsAndRestoreAddsBack(t *testing.T) {
	client := dbtest.Client(t)
	conn := client.DB()
	svc, _ := NewService(NewRepository(conn), nil)

	p := dbtest.SeedProduct(t, conn, dbtest.ProductSeed{Price: 100, Stock: map[string]int{"L": 1}})

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Commit(context.Background(), tx, []StockLine{{ProductID: p.ID, Size: "L", Quantity: 3}}, false)
	})
	require.NoError(t, err)
	require.Equal(t, 0, dbtest.StockOf(t, conn, p.ID, "L"))

	err = client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Restore(context.Background(), tx, []StockLine{{ProductID: p.ID, Size: "L", Quantity: 2}})
	})
	require.NoError(t, err)
	require.Equal(t, 2, dbtest.StockOf(t, conn, p.ID, "L"))
}
