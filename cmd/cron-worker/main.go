package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/loomline/designvault/internal/checkout"
	"github.com/loomline/designvault/internal/cron"
	"github.com/loomline/designvault/internal/imports"
	"github.com/loomline/designvault/pkg/config"
	"github.com/loomline/designvault/pkg/db"
	"github.com/loomline/designvault/pkg/logger"
	"github.com/loomline/designvault/pkg/metrics"
	"github.com/loomline/designvault/pkg/migrate"
	"github.com/loomline/designvault/pkg/redis"
)

const serviceName = "cron-worker"

// The cron worker runs periodic housekeeping: pruning expired import jobs
// and lapsing subscriptions past their end date. A redis lock keeps replicas
// from running the same job twice.
func main() {
	if err := godotenv.Load(); err != nil {
		logger.New(logger.Options{ServiceName: serviceName}).
			Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: serviceName}).
			Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceName

	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer closeWith(ctx, logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer closeWith(ctx, logg, "redis", redisClient.Close)

	locker, err := cron.NewRedisLocker(redisClient, cfg.App.Env)
	if err != nil {
		return fmt.Errorf("cron locker: %w", err)
	}
	registry, err := jobs(cfg, dbClient, logg)
	if err != nil {
		return err
	}

	var reg prometheus.Registerer
	if cfg.Metrics.Enabled {
		reg = prometheus.DefaultRegisterer
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Locker:   locker,
		Metrics:  metrics.NewCronJobMetrics(reg),
		Tick:     cfg.Cron.Tick,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func jobs(cfg *config.Config, dbClient *db.Client, logg *logger.Logger) (*cron.Registry, error) {
	retention, err := imports.NewRetentionJob(imports.NewRepository(dbClient.DB(), cfg.Import.SubBatchSize), logg, cfg.Import.JobTTL)
	if err != nil {
		return nil, fmt.Errorf("import retention job: %w", err)
	}
	expiry, err := checkout.NewExpiryJob(checkout.NewRepository(dbClient.DB()), logg)
	if err != nil {
		return nil, fmt.Errorf("subscription expiry job: %w", err)
	}

	registry := cron.NewRegistry()
	registry.Register(retention, cfg.Cron.ImportRetentionEvery)
	registry.Register(expiry, cfg.Cron.SubscriptionExpiryEvery)
	return registry, nil
}

func closeWith(ctx context.Context, logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(ctx, "error closing "+name, err)
	}
}
