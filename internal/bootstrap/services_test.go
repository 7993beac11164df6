package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

func testConfig() *config.Config {
	return &config.Config{
		Checkout: config.CheckoutConfig{
			Currency:              "INR",
			FreeShippingThreshold: 1200,
			FlatShippingFee:       100,
			ReturnWindow:          7 * 24 * time.Hour,
			UserLockWait:          time.Second,
		},
		Gateway: config.GatewayConfig{
			Provider:  config.GatewayProviderRazorpay,
			KeyID:     "rzp_test_key",
			KeySecret: "rzp_test_secret",
			BaseURL:   "http://127.0.0.1:0",
		},
	}
}

func TestBuildWiresWalletCheckout(t *testing.T) {
	client := dbtest.Client(t)
	conn := client.DB()

	svcs, err := Build(Params{Config: testConfig(), DB: client})
	require.NoError(t, err)

	user := uuid.New()
	product := dbtest.SeedProduct(t, conn, dbtest.ProductSeed{Price: 1500, Stock: map[string]int{"M": 3}})
	dbtest.SeedAddress(t, conn, user)
	dbtest.SeedCartItem(t, conn, user, product.ID, "M", 1)
	dbtest.SeedWalletCredit(t, conn, user, 2000)

	placement, err := svcs.Checkout.PlaceOrder(context.Background(), user, checkout.PlaceOrderInput{Method: enums.PaymentMethodWallet})
	require.NoError(t, err)
	require.NotNil(t, placement.Order)
	require.Equal(t, enums.PaymentStatusPaid, placement.Order.PaymentStatus)

	balance, err := svcs.Wallet.Balance(context.Background(), nil, user)
	require.NoError(t, err)
	require.Equal(t, int64(500), balance)
	require.Equal(t, 2, dbtest.StockOf(t, conn, product.ID, "M"))
	require.Zero(t, dbtest.Count(t, conn, &models.CartItem{}))
}

func TestBuildRequiresGatewayCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.Gateway.KeySecret = ""

	_, err := Build(Params{Config: cfg, DB: dbtest.Client(t)})
	require.Error(t, err)
}

func TestBuildRequiresDatabase(t *testing.T) {
	_, err := Build(Params{Config: testConfig()})
	require.Error(t, err)
}
