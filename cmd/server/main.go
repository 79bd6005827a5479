package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/api"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/chat"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/clock"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/config"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/directory"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/handlers"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/identity"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/models"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/presence"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/realtime"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/store"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/ticket"
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

	ctx := context.Background()

	// Event directory: external CRUD in production fronts this; here it is
	// seeded from a file and, in development, built-in fixtures.
	dir := directory.NewMemory()
	if cfg.EventsFile != "" {
		n, err := dir.LoadFile(cfg.EventsFile)
		if err != nil {
			logger.Fatal().Err(err).Str("file", cfg.EventsFile).Msg("loading events file failed")
		}
		logger.Info().Int("events", n).Msg("event directory seeded from file")
	}
	if cfg.IsDevelopment() {
		seedDevEvents(dir)
	}

	// Stores: in-memory by default, Redis-backed chat history when configured.
	memory := store.NewMemory(cfg.ChatHistoryLimit)
	var history store.HistoryStore = memory
	var redisHistory *store.RedisHistory
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		var err error
		redisHistory, err = store.NewRedisHistory(ctx, cfg.RedisURL, cfg.ChatHistoryLimit)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisHistory.Close()
		history = redisHistory
		redisClient = redisHistory.Client()
		logger.Info().Msg("connected to Redis")
	}

	// Core engine
	clk := clock.NewSystem()
	hub := realtime.NewHub(logger)
	tracker := presence.NewTracker(clk)
	pipeline := chat.NewPipeline(history, clk, func(roomID string, msg models.ChatMessage) {
		hub.Broadcast(roomID, realtime.ChatMessageFrame(msg))
	}, logger,
		chat.WithMaxLength(cfg.ChatMaxLength),
		chat.WithHistoryLimit(cfg.ChatHistoryLimit),
	)
	ledger := ticket.NewLedger(dir, memory, clk, logger)
	gateway := realtime.NewGateway(dir, ledger, tracker, hub, pipeline, clk, logger)

	// Identity: tokens are minted by the external identity service; we only
	// verify. Development without a secret gets a static moderator token.
	var resolver identity.Resolver
	if cfg.IdentityJWTSecret != "" {
		resolver = identity.NewJWTResolver(cfg.IdentityJWTSecret)
	} else {
		resolver = &identity.Static{Identities: map[string]*models.Identity{
			"dev-moderator": {
				ID:           "dev-moderator",
				DisplayName:  "Dev Moderator",
				Capabilities: []models.Capability{models.CapModerator},
			},
		}}
		logger.Warn().Msg("IDENTITY_JWT_SECRET not set; using static development tokens")
	}

	h := handlers.NewHandler(dir, ledger, pipeline, gateway, redisHistory, logger)
	router := api.NewRouter(logger, api.Deps{
		Handler:     h,
		Resolver:    resolver,
		RedisClient: redisClient,
		Whitelist:   cfg.RateLimitWhitelist,
	})

	// Viewer-count drift correction
	syncCtx, stopSync := context.WithCancel(ctx)
	defer stopSync()
	go realtime.NewViewerSync(hub, tracker, cfg.ViewerSyncInterval, logger).Run(syncCtx)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket connections write indefinitely
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting session engine")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")
	stopSync()

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}

// seedDevEvents installs fixtures so a fresh checkout has rooms to join.
func seedDevEvents(dir *directory.Memory) {
	now := time.Now().UTC()
	dir.Put(models.Event{
		ID:         "demo",
		Title:      "Demo Theatre",
		StartsAt:   now.Add(-time.Hour),
		EndsAt:     now.Add(24 * time.Hour),
		AccessMode: models.AccessPublicFree,
		Capacity:   5000,
		Visibility: "public",
	})
	dir.Put(models.Event{
		ID:              "fd-theatre-0001",
		Title:           "Fifth Dimension Theatre",
		StartsAt:        now.Add(-time.Hour),
		EndsAt:          now.Add(24 * time.Hour),
		AccessMode:      models.AccessTicketRequired,
		Capacity:        500,
		Visibility:      "public",
		AdmissionPolicy: models.AdmitFromEvent,
	})
}
