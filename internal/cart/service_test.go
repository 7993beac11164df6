package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

func newTestService(t *testing.T) (Service, *db.Client) {
	t.Helper()
	client := dbtest.Client(t)
	cat, err := catalog.NewService(catalog.NewRepository(client.DB()), nil)
	require.NoError(t, err)
	svc, err := NewService(NewRepository(client.DB()), cat)
	require.NoError(t, err)
	return svc, client
}

func TestAddMergesLines(t *testing.T) {
	svc, client := newTestService(t)
	product := dbtest.SeedProduct(t, client.DB(), dbtest.ProductSeed{Price: 700, Stock: map[string]int{"M": 5}})
	user := uuid.New()

	_, err := svc.Add(context.Background(), user, ItemInput{ProductID: product.ID, SelectedSize: "m", Quantity: 2})
	require.NoError(t, err)
	c, err := svc.Add(context.Background(), user, ItemInput{ProductID: product.ID, SelectedSize: "M", Quantity: 1})
	require.NoError(t, err)

	require.Len(t, c.Lines, 1)
	require.Equal(t, 3, c.Lines[0].Quantity)
	require.Equal(t, int64(700), c.Lines[0].BasePrice)
	require.True(t, c.Lines[0].Available)
}

func TestAddRejectsBeyondStockAndLimit(t *testing.T) {
	svc, client := newTestService(t)
	product := dbtest.SeedProduct(t, client.DB(), dbtest.ProductSeed{Price: 700, MaxPerPerson: 2, Stock: map[string]int{"M": 5}})
	user := uuid.New()

	_, err := svc.Add(context.Background(), user, ItemInput{ProductID: product.ID, SelectedSize: "M", Quantity: 3})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodePolicyViolation))

	_, err = svc.Add(context.Background(), user, ItemInput{ProductID: product.ID, SelectedSize: "XL", Quantity: 1})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.Add(context.Background(), user, ItemInput{ProductID: product.ID, SelectedSize: "M", Quantity: 0})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestUpdateQuantityZeroRemoves(t *testing.T) {
	svc, client := newTestService(t)
	product := dbtest.SeedProduct(t, client.DB(), dbtest.ProductSeed{Price: 300, Stock: map[string]int{"S": 4}})
	user := uuid.New()

	_, err := svc.Add(context.Background(), user, ItemInput{ProductID: product.ID, SelectedSize: "S", Quantity: 1})
	require.NoError(t, err)

	c, err := svc.UpdateQuantity(context.Background(), user, ItemInput{ProductID: product.ID, SelectedSize: "S", Quantity: 4})
	require.NoError(t, err)
	require.Equal(t, 4, c.Lines[0].Quantity)

	c, err = svc.UpdateQuantity(context.Background(), user, ItemInput{ProductID: product.ID, SelectedSize: "S", Quantity: 0})
	require.NoError(t, err)
	require.True(t, c.IsEmpty())

	_, err = svc.Remove(context.Background(), user, product.ID, "S")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestGetFlagsStockDroppedBelowQuantity(t *testing.T) {
	svc, client := newTestService(t)
	conn := client.DB()
	product := dbtest.SeedProduct(t, conn, dbtest.ProductSeed{Price: 300, Stock: map[string]int{"S": 4}})
	user := uuid.New()

	_, err := svc.Add(context.Background(), user, ItemInput{ProductID: product.ID, SelectedSize: "S", Quantity: 3})
	require.NoError(t, err)
	require.NoError(t, conn.Exec("UPDATE product_stocks SET quantity = 1 WHERE product_id = ?", product.ID).Error)

	c, err := svc.Get(context.Background(), user)
	require.NoError(t, err)
	require.True(t, pkgerrors.IsCode(c.Validate(), pkgerrors.CodePolicyViolation))
}

func TestClearInsideTransaction(t *testing.T) {
	svc, client := newTestService(t)
	product := dbtest.SeedProduct(t, client.DB(), dbtest.ProductSeed{Price: 300, Stock: map[string]int{"S": 4}})
	user := uuid.New()
	other := uuid.New()

	_, err := svc.Add(context.Background(), user, ItemInput{ProductID: product.ID, SelectedSize: "S", Quantity: 1})
	require.NoError(t, err)
	_, err = svc.Add(context.Background(), other, ItemInput{ProductID: product.ID, SelectedSize: "S", Quantity: 1})
	require.NoError(t, err)

	err = client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Clear(context.Background(), tx, user)
	})
	require.NoError(t, err)

	c, err := svc.Get(context.Background(), user)
	require.NoError(t, err)
	require.True(t, c.IsEmpty())

	c, err = svc.Get(context.Background(), other)
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
}

func TestConsumeTakesOnlyPurchasedQuantities(t *testing.T) {
	svc, client := newTestService(t)
	shirt := dbtest.SeedProduct(t, client.DB(), dbtest.ProductSeed{Price: 300, Stock: map[string]int{"S": 4}})
	scarf := dbtest.SeedProduct(t, client.DB(), dbtest.ProductSeed{Price: 200, Stock: map[string]int{"FREE": 4}})
	user := uuid.New()

	_, err := svc.Add(context.Background(), user, ItemInput{ProductID: shirt.ID, SelectedSize: "S", Quantity: 3})
	require.NoError(t, err)
	_, err = svc.Add(context.Background(), user, ItemInput{ProductID: scarf.ID, SelectedSize: "FREE", Quantity: 1})
	require.NoError(t, err)

	err = client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Consume(context.Background(), tx, user, []types.PricedLine{
			{ProductID: shirt.ID, SelectedSize: "S", Quantity: 2},
			{ProductID: scarf.ID, SelectedSize: "FREE", Quantity: 2},
		})
	})
	require.NoError(t, err)

	c, err := svc.Get(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	require.Equal(t, shirt.ID, c.Lines[0].ProductID)
	require.Equal(t, 1, c.Lines[0].Quantity)
}
