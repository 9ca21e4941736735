package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/loomline/designvault/api/routes"
	"github.com/loomline/designvault/internal/assets"
	"github.com/loomline/designvault/internal/canvas"
	"github.com/loomline/designvault/internal/catalog"
	"github.com/loomline/designvault/internal/checkout"
	"github.com/loomline/designvault/internal/imports"
	"github.com/loomline/designvault/internal/plans"
	"github.com/loomline/designvault/internal/previews"
	"github.com/loomline/designvault/pkg/auth/session"
	"github.com/loomline/designvault/pkg/config"
	"github.com/loomline/designvault/pkg/db"
	"github.com/loomline/designvault/pkg/instance"
	"github.com/loomline/designvault/pkg/logger"
	"github.com/loomline/designvault/pkg/metrics"
	"github.com/loomline/designvault/pkg/migrate"
	"github.com/loomline/designvault/pkg/redis"
)

const shutdownTimeout = 20 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	var (
		registry       *prometheus.Registry
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}
	var reg prometheus.Registerer
	if registry != nil {
		reg = registry
	}

	store, err := assets.OpenStore(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to open asset store", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	resolver, err := assets.NewResolver(catalogService, store, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create asset resolver", err)
		os.Exit(1)
	}

	importService, err := imports.NewService(imports.ServiceParams{
		Repo:      imports.NewRepository(dbClient.DB(), cfg.Import.SubBatchSize),
		Logger:    logg,
		Metrics:   metrics.NewImportMetrics(reg),
		ChunkSize: cfg.Import.ChunkSize,
		JobTTL:    cfg.Import.ActiveJobIdle,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create import service", err)
		os.Exit(1)
	}

	previewService, err := previews.NewService(previews.ServiceParams{
		Assets:     resolver,
		Documents:  canvas.PDFOpener{},
		Limiter:    redisClient,
		Logger:     logg,
		Metrics:    metrics.NewPreviewMetrics(reg),
		Canvas:     cfg.Canvas,
		FrameLimit: cfg.RateLimit.FramesPerSecond,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create preview service", err)
		os.Exit(1)
	}

	planRepo := plans.NewRepository(dbClient.DB())
	planService, err := plans.NewService(dbClient, planRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create plans service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(dbClient, checkout.NewRepository(dbClient.DB()), planService, cfg.Payments, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})

	go previewService.RunReaper(ctx, time.Minute)

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, sessionManager, routes.Services{
			Catalog:  catalogService,
			Imports:  importService,
			Previews: previewService,
			Plans:    planService,
			Checkout: checkoutService,
		}, metricsHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "api server shutdown failed", err)
	}
	if err := previewService.Shutdown(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "preview sessions did not close cleanly", err)
	}
	logg.Info(shutdownCtx, "api server shut down gracefully")
}
