package bootstrap

import (
	"context"
	"fmt"
	"io"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	pkgstripe "github.com/angelmondragon/storefront-backend/pkg/stripe"
)

// Need says whether a binary opens an optional client.
type Need uint8

const (
	Skip Need = iota
	// IfConfigured opens the client only when its config is present.
	IfConfigured
	Required
)

type RuntimeOptions struct {
	Service string
	Redis   Need
	Stripe  Need
}

// Runtime holds the clients a binary opens at startup. Redis and Stripe are
// nil when skipped or unconfigured.
type Runtime struct {
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client
	Redis  *redis.Client
	Stripe *pkgstripe.Client

	closers []io.Closer
}

// LoadConfig reads .env when present, then the environment, and returns a
// logger configured from the result. The logger is usable even on error.
func LoadConfig(service string) (*config.Config, *logger.Logger, error) {
	envErr := godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: service})

	cfg, err := config.Load()
	if err != nil {
		return nil, logg, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = service
	logg = logger.New(logger.Options{
		ServiceName: service,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	if envErr != nil {
		logg.Debug(context.Background(), ".env not loaded, using process environment")
	}
	return cfg, logg, nil
}

// Start loads config, opens the database (running dev migrations when
// enabled) and the clients opts asks for. On error the logger is still
// returned so the caller can report it.
func Start(ctx context.Context, opts RuntimeOptions) (*Runtime, *logger.Logger, error) {
	cfg, logg, err := LoadConfig(opts.Service)
	if err != nil {
		return nil, logg, err
	}
	rt := &Runtime{Config: cfg, Logger: logg}
	if err := rt.open(ctx, opts); err != nil {
		if cerr := rt.Close(); cerr != nil {
			logg.Error(ctx, "closing partially started runtime", cerr)
		}
		return nil, logg, err
	}
	return rt, logg, nil
}

func (r *Runtime) open(ctx context.Context, opts RuntimeOptions) error {
	dbClient, err := db.New(ctx, r.Config.DB, r.Logger)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	r.DB = dbClient
	r.closers = append(r.closers, dbClient)

	if err := migrate.MaybeRunDev(ctx, r.Config, r.Logger, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	switch {
	case opts.Redis == Required || (opts.Redis == IfConfigured && r.Config.Redis.Enabled()):
		client, err := redis.New(ctx, r.Config.Redis, r.Logger)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		r.Redis = client
		r.closers = append(r.closers, client)
	case opts.Redis == IfConfigured:
		r.Logger.Warn(ctx, "redis not configured, using in-process locks and no idempotency cache")
	}

	if opts.Stripe == Required || (opts.Stripe == IfConfigured && r.Config.Stripe.Enabled()) {
		client, err := pkgstripe.NewClient(ctx, r.Config.Stripe, r.Logger)
		if err != nil {
			return fmt.Errorf("stripe: %w", err)
		}
		r.Stripe = client
	}
	return nil
}

// Services wires the checkout graph on the runtime's clients.
func (r *Runtime) Services(m *metrics.CheckoutMetrics) (*Services, error) {
	return Build(Params{
		Config:  r.Config,
		Logger:  r.Logger,
		DB:      r.DB,
		Redis:   r.Redis,
		Stripe:  r.Stripe,
		Metrics: m,
	})
}

// Track registers c to be closed by Close, after everything opened before it.
func (r *Runtime) Track(c io.Closer) {
	r.closers = append(r.closers, c)
}

// Close releases clients in reverse open order and reports every failure.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	var errs error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, r.closers[i].Close())
	}
	r.closers = nil
	return errs
}
