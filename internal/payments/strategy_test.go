package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/gatewaypay"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/promotions"
	"github.com/angelmondragon/storefront-backend/internal/userlock"
	"github.com/angelmondragon/storefront-backend/internal/wallet"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/gateway/gatewaytest"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type harness struct {
	strategies *Strategies
	conn       *gorm.DB
	ledger     wallet.Ledger
	gw         *gatewaytest.Fake
	user       uuid.UUID
}

func newHarness(t *testing.T, codCeiling int64) *harness {
	t.Helper()
	client := dbtest.Client(t)
	conn := client.DB()
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)
	locker := userlock.NewLocal(time.Second)

	stock, err := catalog.NewService(catalog.NewRepository(conn), nil)
	require.NoError(t, err)
	coupons, err := promotions.NewService(promotions.NewRepository(conn))
	require.NoError(t, err)
	ledger, err := wallet.NewLedger(wallet.NewRepository(conn), client, emitter, nil)
	require.NoError(t, err)
	carts, err := cart.NewService(cart.NewRepository(conn), stock)
	require.NoError(t, err)
	orderSvc, err := orders.NewService(orders.Deps{
		Repo: orders.NewRepository(conn), Tx: client, Outbox: emitter,
		Stock: stock, Coupons: coupons, Wallet: ledger, Locker: locker,
	})
	require.NoError(t, err)

	gw := gatewaytest.New()
	coordinator, err := gatewaypay.NewCoordinator(gatewaypay.Deps{
		Repo: gatewaypay.NewRepository(conn), Tx: client, Gateway: gw,
		Orders: orderSvc, Cart: carts, Locker: locker, Outbox: emitter,
	})
	require.NoError(t, err)

	strategies, err := NewStrategies(Deps{
		Tx:       client,
		Orders:   orderSvc,
		Cart:     carts,
		Wallet:   ledger,
		Gateway:  coordinator,
		Locker:   locker,
		Checkout: config.CheckoutConfig{CODCeiling: codCeiling},
	})
	require.NoError(t, err)

	return &harness{strategies: strategies, conn: conn, ledger: ledger, gw: gw, user: uuid.New()}
}

// attempt puts qty of a 400-priced product in the cart and returns the
// matching checkout: 400*qty plus 100 shipping under the threshold.
func (h *harness) attempt(t *testing.T, qty, stock int) (Attempt, models.Product) {
	t.Helper()
	p := dbtest.SeedProduct(t, h.conn, dbtest.ProductSeed{Name: "Kurta", Price: 400, Stock: map[string]int{"M": stock}})
	dbtest.SeedCartItem(t, h.conn, h.user, p.ID, "M", qty)

	subtotal := 400 * int64(qty)
	var shipping int64
	if subtotal < 1200 {
		shipping = 100
	}
	return Attempt{
		UserID: h.user,
		Checkout: types.CheckoutSnapshot{
			AddressID: uuid.New(),
			Address:   types.AddressSnapshot{FullName: "A", Line1: "B", City: "C", State: "D", PostalCode: "560001", Country: "IN"},
			Lines: []types.PricedLine{{
				ProductID: p.ID, ProductName: p.Name, SelectedSize: "M", Quantity: qty,
				OriginalPrice: 400, UnitPrice: 400, LineTotal: subtotal,
			}},
			Subtotal: subtotal,
			Shipping: shipping,
			Total:    subtotal + shipping,
		},
	}, p
}

func (h *harness) execute(t *testing.T, method enums.PaymentMethod, a Attempt) (*Outcome, error) {
	t.Helper()
	strategy, err := h.strategies.Resolve(method)
	require.NoError(t, err)
	require.Equal(t, method, strategy.Method())
	return strategy.Execute(context.Background(), a)
}

func TestResolveRejectsUnknownMethod(t *testing.T) {
	h := newHarness(t, 0)
	_, err := h.strategies.Resolve(enums.PaymentMethod("upi"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCODUnavailableAboveCeiling(t *testing.T) {
	h := newHarness(t, 0)
	a, _ := h.attempt(t, 1, 5)

	_, err := h.execute(t, enums.PaymentMethodCOD, a)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodePolicyViolation))
	details := pkgerrors.As(err).Details().(map[string]any)
	require.Equal(t, ReasonMethodUnavailable, details["reason"])
	require.Zero(t, dbtest.Count(t, h.conn, &models.Order{}))
	require.Equal(t, int64(1), dbtest.Count(t, h.conn, &models.CartItem{}))
}

func TestCODWithinCeilingPlacesPendingOrder(t *testing.T) {
	h := newHarness(t, 5000)
	a, p := h.attempt(t, 2, 5)

	out, err := h.execute(t, enums.PaymentMethodCOD, a)
	require.NoError(t, err)
	require.Nil(t, out.Handoff)
	require.Equal(t, enums.PaymentStatusPending, out.Order.PaymentStatus)
	require.Equal(t, enums.OrderStatusPending, out.Order.Status)
	require.Equal(t, int64(900), out.Order.TotalAmount)
	require.Zero(t, dbtest.Count(t, h.conn, &models.CartItem{}))
	require.Equal(t, 3, dbtest.StockOf(t, h.conn, p.ID, "M"))
}

func TestWalletShortBalanceCreatesNothing(t *testing.T) {
	h := newHarness(t, 0)
	dbtest.SeedWalletCredit(t, h.conn, h.user, 500)
	a, p := h.attempt(t, 1, 5)
	a.Checkout.Lines[0].UnitPrice, a.Checkout.Lines[0].LineTotal = 700, 700
	a.Checkout.Subtotal, a.Checkout.Total = 700, 800

	_, err := h.execute(t, enums.PaymentMethodWallet, a)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds))
	details := pkgerrors.As(err).Details().(map[string]any)
	require.Equal(t, int64(500), details["balance"])
	require.Equal(t, int64(800), details["required"])

	balance, err := h.ledger.Balance(context.Background(), nil, h.user)
	require.NoError(t, err)
	require.Equal(t, int64(500), balance)
	require.Zero(t, dbtest.Count(t, h.conn, &models.Order{}))
	require.Equal(t, int64(1), dbtest.Count(t, h.conn, &models.WalletTransaction{}))
	require.Equal(t, int64(1), dbtest.Count(t, h.conn, &models.CartItem{}))
	require.Equal(t, 5, dbtest.StockOf(t, h.conn, p.ID, "M"))
}

func TestWalletDebitsAndCreatesPaidOrder(t *testing.T) {
	h := newHarness(t, 0)
	dbtest.SeedWalletCredit(t, h.conn, h.user, 2000)
	a, p := h.attempt(t, 2, 5)

	out, err := h.execute(t, enums.PaymentMethodWallet, a)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPaid, out.Order.PaymentStatus)
	require.NotNil(t, out.Order.PaidAt)

	balance, err := h.ledger.Balance(context.Background(), nil, h.user)
	require.NoError(t, err)
	require.Equal(t, int64(1100), balance)

	var debit models.WalletTransaction
	require.NoError(t, h.conn.Where("user_id = ? AND type = ?", h.user, enums.WalletTransactionDebit).First(&debit).Error)
	require.NotNil(t, debit.OrderID)
	require.Equal(t, out.Order.ID, *debit.OrderID)
	require.Zero(t, dbtest.Count(t, h.conn, &models.CartItem{}))
	require.Equal(t, 3, dbtest.StockOf(t, h.conn, p.ID, "M"))
}

func TestWalletFullyDiscountedCheckoutNeedsNoBalance(t *testing.T) {
	h := newHarness(t, 0)
	a, p := h.attempt(t, 1, 5)
	a.Checkout.Discount = a.Checkout.Subtotal + a.Checkout.Shipping
	a.Checkout.Total = 0

	out, err := h.execute(t, enums.PaymentMethodWallet, a)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPaid, out.Order.PaymentStatus)
	require.Zero(t, out.Order.TotalAmount)
	require.Zero(t, dbtest.Count(t, h.conn, &models.WalletTransaction{}))
	require.Zero(t, dbtest.Count(t, h.conn, &models.CartItem{}))
	require.Equal(t, 4, dbtest.StockOf(t, h.conn, p.ID, "M"))
}

func TestWalletDebitRolledBackWhenOrderCannotBeCreated(t *testing.T) {
	h := newHarness(t, 0)
	dbtest.SeedWalletCredit(t, h.conn, h.user, 2000)
	a, _ := h.attempt(t, 2, 1)

	_, err := h.execute(t, enums.PaymentMethodWallet, a)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodePolicyViolation))

	balance, err := h.ledger.Balance(context.Background(), nil, h.user)
	require.NoError(t, err)
	require.Equal(t, int64(2000), balance)
	require.Zero(t, dbtest.Count(t, h.conn, &models.Order{}))
	require.Equal(t, int64(1), dbtest.Count(t, h.conn, &models.WalletTransaction{}))
}

func TestOnlineOnlyOpensGatewayOrder(t *testing.T) {
	h := newHarness(t, 0)
	a, p := h.attempt(t, 1, 5)

	out, err := h.execute(t, enums.PaymentMethodOnline, a)
	require.NoError(t, err)
	require.Nil(t, out.Order)
	require.NotNil(t, out.Handoff)
	require.Equal(t, int64(500), out.Handoff.Amount)
	require.Equal(t, gatewaytest.ProviderName, out.Handoff.Provider)
	require.Equal(t, 1, h.gw.CreatedCount())
	require.Zero(t, dbtest.Count(t, h.conn, &models.Order{}))
	require.Equal(t, int64(1), dbtest.Count(t, h.conn, &models.PaymentIntent{}, "outcome = ?", enums.IntentAwaitingUserAction))
	require.Equal(t, int64(1), dbtest.Count(t, h.conn, &models.CartItem{}))
	require.Equal(t, 5, dbtest.StockOf(t, h.conn, p.ID, "M"))
}
