package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/gatewaypay"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/promotions"
	"github.com/angelmondragon/storefront-backend/internal/wallet"
	stripewebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
)

// Deps is everything the HTTP surface is built from. Redis, metrics and the
// Stripe trio are optional.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    *redis.Client
	Metrics  prometheus.Gatherer
	Cart     cart.Service
	Coupons  promotions.Service
	Checkout checkout.Service
	Payments gatewaypay.Coordinator
	Orders   orders.Service
	Wallet   wallet.Ledger

	StripeClient  *stripe.Client
	StripeWebhook *stripewebhook.Service
	StripeGuard   *stripewebhook.IdempotencyGuard
}

func NewRouter(deps Deps) http.Handler {
	cfg, logg := deps.Config, deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	health := map[string]controllers.Pinger{"db": deps.DB}
	policy := middleware.NewRateLimitPolicy("storefront-writes", cfg.Checkout.RateLimitWindow, cfg.Checkout.RateLimitPerUser)
	// A nil *redis.Client must not reach the middlewares as a non-nil interface.
	idempotencyStore := redis.IdempotencyStore(nil)
	rateLimiter := middleware.RateLimit(policy, nil, logg)
	if deps.Redis != nil {
		health["redis"] = deps.Redis
		idempotencyStore = deps.Redis
		rateLimiter = middleware.RateLimit(policy, deps.Redis, logg)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, health, logg))
	})
	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	if deps.StripeWebhook != nil && deps.StripeClient != nil && deps.StripeGuard != nil {
		r.Post("/api/v1/webhooks/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhook, deps.StripeClient, deps.StripeGuard, logg))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(rateLimiter)
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(deps.Cart, logg))
			r.Post("/items", controllers.CartAddItem(deps.Cart, logg))
			r.Patch("/items/{productId}/{size}", controllers.CartUpdateItem(deps.Cart, logg))
			r.Delete("/items/{productId}/{size}", controllers.CartRemoveItem(deps.Cart, logg))
		})

		r.Get("/coupons", controllers.CouponsList(deps.Coupons, deps.Checkout, logg))

		r.Post("/checkout/quote", controllers.CheckoutQuote(deps.Checkout, logg))
		r.Post("/checkout", controllers.CheckoutPlace(deps.Checkout, logg))

		r.Route("/payments", func(r chi.Router) {
			r.Post("/callback", controllers.PaymentCallback(deps.Payments, logg))
			r.Post("/dismiss", controllers.PaymentDismiss(deps.Payments, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(deps.Orders, logg))
			r.Get("/{orderId}", controllers.OrdersDetail(deps.Orders, logg))
			r.Post("/{orderId}/cancel", controllers.OrdersCancel(deps.Orders, logg))
			r.Post("/{orderId}/items/{itemId}/cancel", controllers.OrdersCancelItem(deps.Orders, logg))
			r.Post("/{orderId}/return", controllers.OrdersRequestReturn(deps.Orders, logg))
			r.Post("/{orderId}/retry-payment", controllers.OrdersRetryPayment(deps.Checkout, logg))
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", controllers.WalletBalance(deps.Wallet, logg))
			r.Get("/transactions", controllers.WalletTransactions(deps.Wallet, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(deps.Orders, logg))
			r.Get("/{orderId}", controllers.OrdersDetail(deps.Orders, logg))
			r.Post("/{orderId}/status", controllers.AdminOrdersAdvanceStatus(deps.Orders, logg))
			r.Post("/{orderId}/cancel", controllers.OrdersCancel(deps.Orders, logg))
			r.Post("/{orderId}/items/{itemId}/cancel", controllers.OrdersCancelItem(deps.Orders, logg))
			r.Post("/{orderId}/return", controllers.AdminOrdersResolveReturn(deps.Orders, logg))
		})

		r.Route("/wallets/{userId}", func(r chi.Router) {
			r.Post("/credit", controllers.AdminWalletCredit(deps.Wallet, logg))
			r.Get("/audit", controllers.AdminWalletAudit(deps.Wallet, logg))
		})
	})

	return r
}
