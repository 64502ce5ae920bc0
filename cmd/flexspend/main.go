package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marloweapps/flexspend-api/internal/config"
	"github.com/marloweapps/flexspend-api/internal/domain"
	"github.com/marloweapps/flexspend-api/internal/handler"
	"github.com/marloweapps/flexspend-api/internal/infra/cache"
	"github.com/marloweapps/flexspend-api/internal/infra/client"
	"github.com/marloweapps/flexspend-api/internal/infra/memstore"
	"github.com/marloweapps/flexspend-api/internal/infra/observability"
	"github.com/marloweapps/flexspend-api/internal/infra/postgrest"
	"github.com/marloweapps/flexspend-api/internal/infra/resilience"
	"github.com/marloweapps/flexspend-api/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("use_postgrest", cfg.UsePostgrest),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("recent_stats_window_months", cfg.RecentStatsWindowMonths),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "flexspend-api")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	snapshotCache := cache.New[*domain.MetricsSnapshot](cfg.CacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	providerClient := client.NewProviderClient(
		httpClient, cfg.ProviderAPIURL, cfg.ProviderClientID, cfg.ProviderSecret,
		resilience.NewCircuitBreaker("provider"), resilienceCfg, logger, metrics,
	)
	verifyClient := client.NewVerificationClient(
		httpClient, cfg.VerifyAPIURL, cfg.VerifyAPIKey,
		resilience.NewCircuitBreaker("verification"), resilienceCfg, logger, metrics,
	)

	// --- Stores ---
	var budgetSvc *service.BudgetService
	var syncSvc *service.SyncService
	var authSvc *service.AuthService

	if cfg.UsePostgrest && cfg.PostgrestURL != "" {
		logger.Info("using PostgREST as data backend",
			zap.String("postgrest_url", cfg.PostgrestURL),
		)
		store := postgrest.NewClient(
			httpClient, cfg.PostgrestURL, cfg.PostgrestKey,
			resilience.NewCircuitBreaker("postgrest"), resilienceCfg, logger,
		)
		budgetSvc = service.NewBudgetService(store, store, store, snapshotCache, metrics, logger, cfg.RecentStatsWindowMonths)
		syncSvc = service.NewSyncService(store, store, store, store, providerClient, snapshotCache, metrics, logger, cfg.MaxConcurrency)
		authSvc = service.NewAuthService(store, verifyClient, []byte(cfg.JWTSecret), cfg.JWTAccessTTL, cfg.JWTRefreshTTL, logger)
	} else {
		logger.Warn("PostgREST not configured, using in-memory store (data is not durable)")
		store := memstore.New()
		budgetSvc = service.NewBudgetService(store, store, store, snapshotCache, metrics, logger, cfg.RecentStatsWindowMonths)
		syncSvc = service.NewSyncService(store, store, store, store, providerClient, snapshotCache, metrics, logger, cfg.MaxConcurrency)
		authSvc = service.NewAuthService(store, verifyClient, []byte(cfg.JWTSecret), cfg.JWTAccessTTL, cfg.JWTRefreshTTL, logger)
	}

	// Rebuild the user's snapshots right after each sync so the first
	// read after a sync never pays the recompute.
	syncSvc.OnComplete(func(ctx context.Context, userID string) {
		if _, err := budgetSvc.GetMetrics(ctx, userID, time.Now().UTC()); err != nil {
			logger.Warn("post-sync metrics recompute failed", zap.String("user_id", userID), zap.Error(err))
		}
		if _, err := budgetSvc.GetRecentStats(ctx, userID, 0); err != nil {
			logger.Warn("post-sync recent-stats recompute failed", zap.String("user_id", userID), zap.Error(err))
		}
	})

	// --- Router ---
	router := handler.New(budgetSvc, syncSvc, authSvc, metrics, logger).Router()

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
