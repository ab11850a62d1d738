/*
Package main is the entry point for the VAChat realtime server.

It is responsible for loading configuration, initializing the global logging
system, connecting the durable store and the shared cache, wiring the
presence/typing/chat/guest handler sets into the socket gateway, starting the
HTTP server, and gracefully handling operating system interrupt signals
(SIGINT, SIGTERM) to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vachat/internal/app/ai"
	"vachat/internal/app/cache"
	"vachat/internal/app/chat"
	"vachat/internal/app/guest"
	"vachat/internal/app/presence"
	"vachat/internal/app/socket"
	"vachat/internal/app/storage"
	"vachat/internal/app/store"
	"vachat/internal/app/typing"
	"vachat/internal/configs"
	"vachat/internal/handler"
	"vachat/internal/pkg/limiter"
	"vachat/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Durable store
	pool, err := store.NewPool(cfg.DatabaseDSN)
	if err != nil {
		logx.Fatal(err, "Failed to connect to Postgres")
	}
	defer pool.Close()

	st := store.NewPostgres(pool)

	// Shared cache. In development a Redis outage falls back to the
	// in-process cache so the server stays usable on a laptop; production
	// requires Redis.
	cacheClient, err := cache.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		if cfg.Environment != "development" {
			logx.Fatal(err, "Failed to connect to Redis")
		}
		logx.Warn("Redis unavailable, falling back to in-process cache.", "error", err.Error())
		cacheClient = cache.NewMemory()
	}

	// File storage (presigned attachment downloads)
	storageSvc, err := storage.NewService(storage.ServiceConfig{
		S3BucketName:      cfg.S3BucketName,
		S3Endpoint:        cfg.S3Endpoint,
		S3AccessKeyID:     cfg.S3AccessKeyID,
		S3SecretAccessKey: cfg.S3SecretAccessKey,
	})
	if err != nil {
		logx.Fatal(err, "Failed to initialize storage service")
	}

	// AI completion client
	aiClient := ai.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAITimeout)

	// Socket hub and domain handler sets
	hub := socket.NewHub()

	tracker := presence.NewTracker(cacheClient, hub, presence.Config{
		AwayAfter:  cfg.PresenceAwayAfter,
		RecordTTL:  cfg.PresenceRecordTTL,
		SweepEvery: cfg.PresenceSweepEvery,
		BatchLimit: cfg.PresenceBatchLimit,
	})
	go tracker.Run(ctx)

	typingCoordinator := typing.NewCoordinator(cacheClient, cfg.TypingTTL)

	chatHandlers := chat.NewHandlers(st, typingCoordinator, aiClient, storageSvc, hub, chat.Config{
		DailyLimitStandard: cfg.DailyLimitStandard,
		DailyLimitPremium:  cfg.DailyLimitPremium,
		AIHistoryWindow:    cfg.AIHistoryWindow,
		Model:              cfg.OpenAIModel,
		Temperature:        cfg.AITemperature,
		MaxTokens:          cfg.AIMaxTokens,
	})

	guestHandlers := guest.NewHandlers(guest.NewMemoryStore(), aiClient, guest.Config{
		RateLimit:   cfg.GuestRateLimit,
		RateWindow:  cfg.GuestRateWindow,
		GracePeriod: cfg.GuestGracePeriod,
		MaxTokens:   min(cfg.AIMaxTokens, cfg.GuestMaxTokens),
		Model:       cfg.OpenAIModel,
		Temperature: cfg.AITemperature,
	})

	eventLimiter := limiter.NewEventLimiter(cacheClient, cfg.EventRateLimit, cfg.EventRateWindow)

	gateway := socket.NewGateway(hub, chatHandlers, guestHandlers, tracker, st, eventLimiter, cfg.PresenceBatchLimit)

	// Setup HTTP server and routes
	router := handler.Router(&handler.AppDeps{
		Gateway: gateway,
		Store:   st,
		Config:  cfg,
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("VAChat Server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	logx.Info("Server gracefully stopped.")
}
