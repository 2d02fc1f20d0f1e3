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

	"github.com/watchfi/storefront/api/controllers"
	"github.com/watchfi/storefront/api/routes"
	"github.com/watchfi/storefront/internal/auth"
	"github.com/watchfi/storefront/internal/catalog"
	"github.com/watchfi/storefront/internal/receipts"
	"github.com/watchfi/storefront/internal/session"
	authsession "github.com/watchfi/storefront/pkg/auth/session"
	"github.com/watchfi/storefront/pkg/backend"
	"github.com/watchfi/storefront/pkg/config"
	"github.com/watchfi/storefront/pkg/db"
	"github.com/watchfi/storefront/pkg/env"
	"github.com/watchfi/storefront/pkg/logger"
	"github.com/watchfi/storefront/pkg/metrics"
	"github.com/watchfi/storefront/pkg/migrate"
	"github.com/watchfi/storefront/pkg/oracle"
	"github.com/watchfi/storefront/pkg/redis"
	"github.com/watchfi/storefront/pkg/solana"
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
		Format:      cfg.App.LogFormat,
	})

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

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if poolStats, err := dbClient.StatsCollector("watchfi"); err == nil {
		registry.MustRegister(poolStats)
	} else {
		logg.Warn(logg.WithField(ctx, "reason", err.Error()), "db.stats.unavailable")
	}

	backendClient, err := backend.NewClientFromConfig(cfg.Backend)
	if err != nil {
		logg.Error(ctx, "failed to create backend client", err)
		os.Exit(1)
	}

	oracleClient, err := oracle.NewClient(cfg.Oracle.BaseURL,
		oracle.WithAPIKey(cfg.Oracle.APIKey),
		oracle.WithHTTPClient(&http.Client{Timeout: cfg.Oracle.Timeout}),
		oracle.WithCache(redisClient, cfg.Oracle.CacheTTL),
		oracle.WithBreaker(cfg.Oracle.BreakerFailures, cfg.Oracle.BreakerOpenDelay),
		oracle.WithLogger(logg),
	)
	if err != nil {
		logg.Error(ctx, "failed to create price oracle", err)
		os.Exit(1)
	}

	fallback, err := fallbackPrices(cfg.Oracle)
	if err != nil {
		logg.Error(ctx, "invalid fallback prices", err)
		os.Exit(1)
	}

	geoLoader, err := newGeoLoader(cfg.Geo, redisClient, logg)
	if err != nil {
		logg.Error(ctx, "failed to create geo provider", err)
		os.Exit(1)
	}

	chain, err := solana.NewChainFromConfig(cfg.Solana, logg)
	if err != nil {
		logg.Error(ctx, "failed to create solana client", err)
		os.Exit(1)
	}

	wallets, err := newWalletFactory(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to configure wallets", err)
		os.Exit(1)
	}

	receiptService, err := receipts.NewService(receipts.ServiceParams{
		Repo:        receipts.NewRepository(dbClient.DB()),
		Bookings:    backendClient,
		Logger:      logg,
		BatchSize:   cfg.Reconcile.BatchSize,
		MaxAttempts: cfg.Reconcile.MaxAttempts,
	})
	if err != nil {
		logg.Error(ctx, "failed to create receipts service", err)
		os.Exit(1)
	}

	sessions, err := session.NewManager(session.ManagerParams{
		Store:          redisClient,
		Catalog:        backendClient,
		Geo:            geoLoader,
		Oracle:         oracleClient,
		Chain:          chain,
		Wallets:        wallets,
		Bookings:       backendClient,
		Receipts:       receiptService,
		Metrics:        metrics.NewPaymentMetrics(registry),
		BusinessWallet: cfg.Solana.BusinessWallet,
		Fallback:       fallback,
		AdvanceDelay:   cfg.Checkout.AdvanceDelay,
		SubmitDeadline: cfg.Checkout.ConfirmDeadline,
		TTL:            cfg.Checkout.SessionTTL,
		IdleTimeout:    cfg.Checkout.SessionIdle,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create session manager", err)
		os.Exit(1)
	}
	go sessions.Run(ctx)

	adminSessions, err := authsession.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(ctx, "failed to create admin session manager", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		Admin:          cfg.Admin,
		SessionManager: adminSessions,
		JWTConfig:      cfg.JWT,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create auth service", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(backendClient, logg)
	if err != nil {
		logg.Error(ctx, "failed to create catalog service", err)
		os.Exit(1)
	}

	// platform-injected PORT wins over the configured one
	addr := ":" + env.First(cfg.App.Port, "PORT")
	ctx = logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"addr":    addr,
		"network": cfg.Solana.Network,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			registry,
			metrics.NewHTTPMetrics(registry),
			map[string]controllers.Pinger{"database": dbClient, "redis": redisClient},
			redisClient,
			sessions,
			adminSessions,
			authService,
			backendClient,
			catalogService,
			receiptService,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	logg.Info(ctx, "api server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "api server shutdown failed", err)
	}
	if err := sessions.Close(shutdownCtx); err != nil {
		logg.Error(ctx, "closing sessions", err)
	}
}
