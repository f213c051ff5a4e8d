package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/YashSaini213/virtual-conference-translator/internal/api"
	"github.com/YashSaini213/virtual-conference-translator/internal/auth"
	"github.com/YashSaini213/virtual-conference-translator/internal/config"
	"github.com/YashSaini213/virtual-conference-translator/internal/handlers"
	"github.com/YashSaini213/virtual-conference-translator/internal/relay"
	"github.com/YashSaini213/virtual-conference-translator/internal/store"
	"github.com/YashSaini213/virtual-conference-translator/internal/summarizer"
	"github.com/YashSaini213/virtual-conference-translator/internal/ws"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run migrations
	if cfg.DatabaseURL != "" {
		logger.Info().Msg("running database migrations...")
		if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Msg("migrations completed")
	}

	// Pick the primary store
	var ds store.DataStore
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		ds = pg
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		sq, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		ds = sq
		logger.Info().Str("path", cfg.SQLitePath).Msg("using SQLite")
	}
	defer ds.Close()

	// Initialize Redis store
	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		var err error
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		logger.Info().Msg("connected to Redis")
	}

	// Token verification
	verifier := auth.NewVerifier(cfg.IdentityIssuerURL, cfg.DevTokenSecret, logger)
	if err := verifier.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("jwks bootstrap failed")
	}

	// Relay core
	instanceID := uuid.NewString()
	rl := relay.New(store.NewLifecycleGate(ds), relay.Options{
		Logger:          logger,
		InstanceID:      instanceID,
		DeliveryTimeout: cfg.DeliveryTimeout,
	})

	// Cross-instance bridge, only meaningful with Redis
	if redisStore != nil {
		bridge := relay.NewRedisBridge(redisStore.Client(), instanceID, logger)
		rl.Router.SetBridge(bridge)
		go func() {
			if err := bridge.Run(ctx, rl.Router); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("bridge stopped")
			}
		}()
	}

	// Summarizer
	sm := summarizer.New(cfg.SummarizerURL, cfg.SummarizerAPIKey, logger)
	if sm.Enabled() {
		logger.Info().Msg("summarizer configured")
	}

	// HTTP surface
	h := handlers.NewHandler(ds, redisStore, rl, sm, logger)
	wsHandler := ws.NewHandler(rl, ds, redisStore, verifier, cfg.AllowedOrigins, logger)
	router := api.NewRouter(api.Deps{
		Logger:         logger,
		Handler:        h,
		WSHandler:      wsHandler,
		Verifier:       verifier,
		Redis:          redisStore,
		AllowedOrigins: cfg.AllowedOrigins,
		RateWhitelist:  cfg.RateLimitWhitelist,
	})

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// WebSocket connections outlive any sane write timeout; rely on
		// per-message deadlines instead.
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("instance", instanceID).
			Msg("starting relay server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
