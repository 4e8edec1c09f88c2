package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmelo/fintrack-engine-go/internal/config"
	"github.com/dmelo/fintrack-engine-go/internal/handler"
	"github.com/dmelo/fintrack-engine-go/internal/infra/cache"
	"github.com/dmelo/fintrack-engine-go/internal/infra/observability"
	"github.com/dmelo/fintrack-engine-go/internal/infra/resilience"
	"github.com/dmelo/fintrack-engine-go/internal/infra/supabase"
	"github.com/dmelo/fintrack-engine-go/internal/service"

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
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Int("batch_limit", cfg.BatchLimit),
		zap.Duration("upcoming_horizon", cfg.UpcomingHorizon),
		zap.Float64("drift_epsilon", cfg.DriftEpsilon),
		zap.Duration("notif_dedup_ttl", cfg.NotifDedupTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
	)

	if cfg.SupabaseURL == "" {
		logger.Fatal("SUPABASE_URL is required")
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "fintrack-engine")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Notification dedup cache ---
	dedupCache := cache.New[time.Time](cfg.NotifDedupTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("supabase")

	// --- Supabase store ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	store := supabase.NewClient(
		httpClient,
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		cb,
		resilienceCfg,
		logger,
	)

	// --- Services ---
	notifySvc := service.NewNotifyService(store, dedupCache, metrics, logger)
	recurringSvc := service.NewRecurringService(store, store, notifySvc, metrics, logger, cfg.BatchLimit, cfg.UpcomingHorizon)
	installmentSvc := service.NewInstallmentService(store, store, notifySvc, metrics, logger)
	reconcileSvc := service.NewReconcileService(store, store, store, notifySvc, metrics, logger, cfg.DriftEpsilon, cfg.BatchLimit)
	sweeperSvc := service.NewSweeperService(store, reconcileSvc, notifySvc, metrics, logger, cfg.BatchLimit)
	ledgerSvc := service.NewLedgerService(store, notifySvc, metrics, logger)
	planSvc := service.NewPlanService(store, notifySvc, logger)
	statusSvc := service.NewStatusService(store, store, reconcileSvc, metrics, logger, cfg.UpcomingHorizon, cfg.BatchLimit)

	// --- Router ---
	router := handler.NewRouter(&handler.Services{
		Recurring:   recurringSvc,
		Installment: installmentSvc,
		Sweeper:     sweeperSvc,
		Reconciler:  reconcileSvc,
		Status:      statusSvc,
		Ledger:      ledgerSvc,
		Plans:       planSvc,
	}, metrics, cfg, logger)

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
