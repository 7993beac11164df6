package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/bootstrap"
	stripewebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const (
	serviceName      = "api"
	stripeWebhookTTL = 24 * time.Hour
	shutdownTimeout  = 15 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, logg, err := bootstrap.Start(ctx, bootstrap.RuntimeOptions{
		Service: serviceName,
		Redis:   bootstrap.IfConfigured,
		Stripe:  bootstrap.IfConfigured,
	})
	if err != nil {
		logg.Error(ctx, "startup failed", err)
		os.Exit(1)
	}
	err = run(ctx, rt)
	if cerr := rt.Close(); cerr != nil {
		logg.Error(ctx, "closing clients", cerr)
	}
	if err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, rt *bootstrap.Runtime) error {
	cfg, logg := rt.Config, rt.Logger

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svcs, err := rt.Services(metrics.NewCheckoutMetrics(registry))
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}

	deps := routes.Deps{
		Config:   cfg,
		Logger:   logg,
		DB:       rt.DB,
		Redis:    rt.Redis,
		Metrics:  registry,
		Cart:     svcs.Cart,
		Coupons:  svcs.Coupons,
		Checkout: svcs.Checkout,
		Payments: svcs.Payments,
		Orders:   svcs.Orders,
		Wallet:   svcs.Wallet,
	}
	if err := wireStripeWebhook(rt, svcs, &deps); err != nil {
		return err
	}

	addr := ":" + listenPort(cfg.App.Port)
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"gateway":  cfg.Gateway.NormalizedProvider(),
		"webhooks": deps.StripeWebhook != nil,
	})
	return serve(ctx, logg, &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	})
}

// wireStripeWebhook mounts the webhook only when both Stripe and Redis are up;
// the delivery guard lives in Redis.
func wireStripeWebhook(rt *bootstrap.Runtime, svcs *bootstrap.Services, deps *routes.Deps) error {
	if rt.Stripe == nil || rt.Redis == nil {
		return nil
	}
	webhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{Reconciler: svcs.Payments, Logger: rt.Logger})
	if err != nil {
		return fmt.Errorf("stripe webhook service: %w", err)
	}
	guard, err := stripewebhook.NewIdempotencyGuard(rt.Redis, stripeWebhookTTL, "stripe")
	if err != nil {
		return fmt.Errorf("stripe webhook guard: %w", err)
	}
	deps.StripeClient = rt.Stripe
	deps.StripeWebhook = webhookSvc
	deps.StripeGuard = guard
	return nil
}

// listenPort prefers the platform-assigned PORT.
func listenPort(fallback string) string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return fallback
}

func serve(ctx context.Context, logg *logger.Logger, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	logg.Info(ctx, "api server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "api server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
