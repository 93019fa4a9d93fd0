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
	zlog "github.com/rs/zerolog/log"

	"github.com/angelmondragon/cartsync/api/middleware"
	"github.com/angelmondragon/cartsync/api/routes"
	"github.com/angelmondragon/cartsync/internal/cart"
	"github.com/angelmondragon/cartsync/internal/checkout"
	"github.com/angelmondragon/cartsync/internal/cron"
	"github.com/angelmondragon/cartsync/internal/migration"
	"github.com/angelmondragon/cartsync/internal/orders"
	"github.com/angelmondragon/cartsync/internal/vouchers"
	"github.com/angelmondragon/cartsync/pkg/config"
	"github.com/angelmondragon/cartsync/pkg/db"
	"github.com/angelmondragon/cartsync/pkg/enums"
	"github.com/angelmondragon/cartsync/pkg/logger"
	"github.com/angelmondragon/cartsync/pkg/metrics"
	"github.com/angelmondragon/cartsync/pkg/migrate"
	"github.com/angelmondragon/cartsync/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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
	zlog.Logger = logg.Zerolog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	var (
		redisClient *redis.Client
		redisPinger redis.Pinger
		jsonStore   redis.JSONStore
	)
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		redisPinger = redisClient
		jsonStore = redisClient
	}

	persister, err := newPersister(cfg, dbClient, jsonStore)
	if err != nil {
		logg.Error(ctx, "failed to build cart persister", err)
		os.Exit(1)
	}

	carts, err := cart.NewManager(persister, logg, cart.WithLoadHook(migration.NewService(logg).Hook()))
	if err != nil {
		logg.Error(ctx, "failed to create cart manager", err)
		os.Exit(1)
	}

	var (
		registry         *prometheus.Registry
		reconcileMetrics *metrics.ReconcileMetrics
	)
	if cfg.FeatureFlags.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		reconcileMetrics = metrics.NewReconcileMetrics(registry)
	}

	evictJob, err := cron.NewIdleCartEvictionJob(logg, carts, cfg.Cart.IdleEvictAfter)
	if err != nil {
		logg.Error(ctx, "failed to create idle cart job", err)
		os.Exit(1)
	}
	jobs, err := cron.NewRegistry(evictJob)
	if err != nil {
		logg.Error(ctx, "failed to register jobs", err)
		os.Exit(1)
	}
	scheduler, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Metrics:  metrics.NewJobMetrics(registryOrNil(registry)),
		Interval: cfg.Cart.EvictInterval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create scheduler", err)
		os.Exit(1)
	}
	go func() {
		_ = scheduler.Run(ctx)
	}()

	gateway, err := orders.NewHTTPGateway(cfg.OrdersAPI.BaseURL,
		orders.WithAPIKey(cfg.OrdersAPI.APIKey),
		orders.WithTimeout(cfg.OrdersAPI.Timeout),
		orders.WithRequestID(middleware.RequestIDFromContext),
	)
	if err != nil {
		logg.Error(ctx, "failed to create orders gateway", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orders.ServiceParams{
		Gateway: gateway,
		Cache:   orders.NewCache(jsonStore, cfg.Cart.OrderCacheTTL),
		Metrics: reconcileMetrics,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create orders service", err)
		os.Exit(1)
	}

	voucherService, err := vouchers.NewService(vouchers.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(ctx, "failed to create voucher service", err)
		os.Exit(1)
	}

	taxRate, err := cfg.Checkout.ParsedTaxRate()
	if err != nil {
		logg.Error(ctx, "invalid tax rate", err)
		os.Exit(1)
	}
	currency, err := enums.ParseCurrency(cfg.Checkout.Currency)
	if err != nil {
		logg.Error(ctx, "invalid currency", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Vouchers: voucherService,
		TaxRate:  taxRate,
		Currency: currency,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create checkout service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"cart_backend": cfg.Cart.NormalizedBackend(),
	})
	logg.Info(serverCtx, "starting api server")

	var gatherer prometheus.Gatherer
	if registry != nil {
		gatherer = registry
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisPinger, gatherer, carts, ordersService, checkoutService, voucherService),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logg.Error(serverCtx, "api server stopped unexpectedly", err)
		}
	case <-ctx.Done():
		logg.Info(serverCtx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(serverCtx, "http server shutdown failed", err)
	}
	if err := carts.Close(shutdownCtx); err != nil {
		logg.Error(serverCtx, "flushing carts failed", err)
	}
	logg.Info(serverCtx, "api server stopped")
}

func registryOrNil(reg *prometheus.Registry) prometheus.Registerer {
	if reg == nil {
		return nil
	}
	return reg
}

func newPersister(cfg *config.Config, dbClient *db.Client, store redis.JSONStore) (cart.Persister, error) {
	switch cfg.Cart.NormalizedBackend() {
	case config.CartBackendRedis:
		return cart.NewRedisPersister(store, cfg.Cart.TTL)
	case config.CartBackendSQL:
		return cart.NewRepository(dbClient.DB(), cfg.Cart.TTL), nil
	default:
		return cart.NewMemoryPersister(), nil
	}
}
