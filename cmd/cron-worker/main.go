package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/internal/bootstrap"
	"github.com/angelmondragon/storefront-backend/internal/cron"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const serviceName = "cron-worker"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, logg, err := bootstrap.Start(ctx, bootstrap.RuntimeOptions{
		Service: serviceName,
		Redis:   bootstrap.Required,
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
	if err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shut down")
}

func run(ctx context.Context, rt *bootstrap.Runtime) error {
	cfg, logg := rt.Config, rt.Logger

	svcs, err := rt.Services(metrics.NewCheckoutMetrics(prometheus.DefaultRegisterer))
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}

	intentJob, err := cron.NewPaymentIntentTTLJob(cron.PaymentIntentTTLJobParams{
		Logger:  logg,
		Expirer: svcs.Payments,
		Window:  cfg.Checkout.PaymentWindow,
	})
	if err != nil {
		return err
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: svcs.Outbox,
		Retention:  cfg.Outbox.RetentionPeriod,
	})
	if err != nil {
		return err
	}
	registry, err := cron.NewRegistry(intentJob, retentionJob)
	if err != nil {
		return err
	}

	lock, err := cron.NewRedisLock(rt.Redis, cron.LockKey(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		return err
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "jobs": registry.Names()})
	logg.Info(ctx, "starting cron worker")
	return service.Run(ctx)
}
