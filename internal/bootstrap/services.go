// Package bootstrap assembles the checkout service graph shared by the api
// and cron-worker binaries.
package bootstrap

import (
	"fmt"

	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/gatewaypay"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/promotions"
	"github.com/angelmondragon/storefront-backend/internal/userlock"
	"github.com/angelmondragon/storefront-backend/internal/wallet"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/gateway"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	pkgstripe "github.com/angelmondragon/storefront-backend/pkg/stripe"
)

// Params are the infrastructure clients the services are built on. Redis and
// Stripe may be nil.
type Params struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      *db.Client
	Redis   *redis.Client
	Stripe  *pkgstripe.Client
	Metrics *metrics.CheckoutMetrics
}

// Services is the wired checkout graph.
type Services struct {
	Catalog    catalog.Service
	Coupons    promotions.Service
	Addresses  address.Service
	Cart       cart.Service
	Wallet     wallet.Ledger
	Orders     orders.Service
	Payments   gatewaypay.Coordinator
	Strategies *payments.Strategies
	Checkout   checkout.Service
	Outbox     *outbox.Repository
}

// Build wires every checkout service from the given clients.
func Build(p Params) (*Services, error) {
	if p.Config == nil || p.DB == nil {
		return nil, fmt.Errorf("config and database client required")
	}
	conn := p.DB.DB()

	var locker userlock.Locker
	if p.Redis != nil {
		locker = userlock.New(p.Redis, p.Config.Checkout, p.Logger)
	} else {
		locker = userlock.NewLocal(p.Config.Checkout.UserLockWait)
	}

	outboxRepo := outbox.NewRepository(conn)
	emitter := outbox.NewService(outboxRepo, p.Logger)

	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn), p.Logger)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	couponSvc, err := promotions.NewService(promotions.NewRepository(conn))
	if err != nil {
		return nil, fmt.Errorf("promotions: %w", err)
	}
	addressSvc, err := address.NewService(address.NewRepository(conn))
	if err != nil {
		return nil, fmt.Errorf("address: %w", err)
	}
	cartSvc, err := cart.NewService(cart.NewRepository(conn), catalogSvc)
	if err != nil {
		return nil, fmt.Errorf("cart: %w", err)
	}
	ledger, err := wallet.NewLedger(wallet.NewRepository(conn), p.DB, emitter, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("wallet: %w", err)
	}

	orderSvc, err := orders.NewService(orders.Deps{
		Repo:         orders.NewRepository(conn),
		Tx:           p.DB,
		Outbox:       emitter,
		Stock:        catalogSvc,
		Coupons:      couponSvc,
		Wallet:       ledger,
		Locker:       locker,
		Metrics:      p.Metrics,
		Logger:       p.Logger,
		ReturnWindow: p.Config.Checkout.ReturnWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("orders: %w", err)
	}

	gw, err := gateway.New(p.Config.Gateway, p.Stripe, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}
	coordinator, err := gatewaypay.NewCoordinator(gatewaypay.Deps{
		Repo:    gatewaypay.NewRepository(conn),
		Tx:      p.DB,
		Gateway: gw,
		Orders:  orderSvc,
		Cart:    cartSvc,
		Locker:  locker,
		Outbox:  emitter,
		Metrics: p.Metrics,
		Logger:  p.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway payments: %w", err)
	}

	strategies, err := payments.NewStrategies(payments.Deps{
		Tx:       p.DB,
		Orders:   orderSvc,
		Cart:     cartSvc,
		Wallet:   ledger,
		Gateway:  coordinator,
		Locker:   locker,
		Checkout: p.Config.Checkout,
		Logger:   p.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("payment strategies: %w", err)
	}

	checkoutSvc, err := checkout.NewService(checkout.Deps{
		Cart:       cartSvc,
		Addresses:  addressSvc,
		Coupons:    couponSvc,
		Wallet:     ledger,
		Strategies: strategies,
		Gateway:    coordinator,
		Config:     p.Config.Checkout,
		Logger:     p.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}

	return &Services{
		Catalog:    catalogSvc,
		Coupons:    couponSvc,
		Addresses:  addressSvc,
		Cart:       cartSvc,
		Wallet:     ledger,
		Orders:     orderSvc,
		Payments:   coordinator,
		Strategies: strategies,
		Checkout:   checkoutSvc,
		Outbox:     outboxRepo,
	}, nil
}
