package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blagoySimandov/proaccount/internal/api"
	"github.com/blagoySimandov/proaccount/internal/auth"
	"github.com/blagoySimandov/proaccount/internal/billing"
	"github.com/blagoySimandov/proaccount/internal/cache"
	"github.com/blagoySimandov/proaccount/internal/config"
	"github.com/blagoySimandov/proaccount/internal/db"
	"github.com/blagoySimandov/proaccount/internal/logger"
	"github.com/blagoySimandov/proaccount/internal/provision"
	"github.com/blagoySimandov/proaccount/internal/reconcile"
	"github.com/blagoySimandov/proaccount/internal/services"
	"github.com/blagoySimandov/proaccount/internal/user"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger.Init()
	log := logger.Log

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is not set")
	}

	bunDB := db.NewBunPostgresClient(cfg.DatabaseURL)
	defer bunDB.Close()

	repo := user.NewUserRepository(bunDB)

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, using in-process event dedupe and no forgot-password limit")
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	var events cache.EventStore = cache.NewInMemoryEventStore()
	var forgotLimiter cache.Limiter
	if rdb != nil {
		events = cache.NewRedisEventStore(rdb)
		forgotLimiter = cache.NewWindowLimiter(rdb, "forgot-password", cfg.RateLimit.ForgotPassword, cfg.RateLimit.ForgotPasswordWindow)
	}

	// interfaces stay nil when the auth subsystem is not configured
	var authAdmin user.AuthAdmin
	var recovery api.RecoverySender
	if cfg.SupabaseURL != "" && cfg.SupabaseServiceKey != "" {
		gotrue := services.NewGoTrueClient(cfg.SupabaseURL, cfg.SupabaseServiceKey)
		authAdmin = gotrue
		recovery = gotrue
	} else {
		log.Warn().Msg("Auth subsystem not configured, password recovery is disabled")
	}

	bill := billing.NewBilling(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	backup := provision.NewBackupLog(cfg.BackupLogPath)

	var direct provision.DirectInserter
	if cfg.InternalAPISecret != "" {
		direct = services.NewDirectInsertClient(cfg.InternalBaseURL(), cfg.InternalAPISecret)
	}

	processor := provision.NewProcessor(provision.ProcessorConfig{
		Lookup: bill,
		Repo:   repo,
		Direct: direct,
		Backup: backup,
		Events: events,
	})

	var reconciler *reconcile.Reconciler
	if cfg.StripeSecretKey != "" {
		reconciler = reconcile.NewReconciler(repo, bill, reconcile.Config{
			BatchSize:  cfg.Sync.BatchSize,
			BatchPause: cfg.Sync.BatchPause,
		})
	}

	router := api.SetupRoutes(api.Handlers{
		Account: api.NewAccountHandler(user.NewUserService(repo, authAdmin), recovery, cfg.ResetRedirectURL(), forgotLimiter),
		Webhook: api.NewWebhookHandler(bill, processor),
		Sync:    api.NewSyncHandler(reconciler),
		Admin:   api.NewAdminHandler(repo, backup, cfg.Presence),
	}, api.Guards{
		Admin:    auth.NewMiddleware("admin", cfg.AdminAPISecret),
		Internal: auth.NewMiddleware("internal", cfg.InternalAPISecret),
		Cron:     auth.NewMiddleware("cron", cfg.CronSecret),
	}, api.RateLimit{
		Requests: cfg.RateLimit.Requests,
		Window:   cfg.RateLimit.Window,
	}, cfg.AllowedOrigin)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if reconciler != nil {
		go reconcile.Schedule(ctx, reconciler, cfg.Sync.Interval)
	}

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("Shutting down server...")
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	log.Info().Str("addr", cfg.ServerAddr).Msg("Server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed to start")
	}

	log.Info().Msg("Server stopped")
}
