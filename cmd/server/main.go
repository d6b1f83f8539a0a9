package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/parmenashp/felpsbot-backend/internal/config"
	"github.com/parmenashp/felpsbot-backend/internal/database"
	"github.com/parmenashp/felpsbot-backend/internal/eventsub"
	"github.com/parmenashp/felpsbot-backend/internal/gametime"
	"github.com/parmenashp/felpsbot-backend/internal/logging"
	"github.com/parmenashp/felpsbot-backend/internal/rabbit"
	"github.com/parmenashp/felpsbot-backend/internal/redis"
	"github.com/parmenashp/felpsbot-backend/internal/server"
	"github.com/parmenashp/felpsbot-backend/internal/twitch"
)

const startupTimeout = 30 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	clock := clockwork.NewRealClock()
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() { _ = redisClient.Close() }()

	publisher, err := rabbit.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
	if err != nil {
		slog.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer func() { _ = publisher.Close() }()

	tokens := twitch.NewTokenSource(cfg.TwitchClientID, cfg.TwitchClientSecret, cfg.TwitchOAuthURL, redis.NewTokenStore(redisClient), clock)
	if err := tokens.Authorize(ctx); err != nil {
		slog.Error("Failed to authorize with Twitch", "error", err)
		os.Exit(1)
	}

	apiClient := twitch.NewClient(cfg.TwitchClientID, cfg.TwitchAPIBaseURL, tokens)
	helix := twitch.NewHelix(apiClient, redis.NewCache(redisClient))

	manager := eventsub.NewManager(apiClient, cfg.CallbackURL(), cfg.EventSubSecret)
	projector := database.NewProjector(pool)
	processor := eventsub.NewProcessor(projector, publisher, manager, clock)

	gameTime := gametime.NewService(helix, database.NewLastPlayedRepo(pool), clock)

	srv := server.NewServer(cfg, processor, manager, gameTime, pool, redisClient, publisher)

	done := runGracefulShutdown(srv)

	slog.Info("Server starting", "port", cfg.Port, "callback_url", cfg.CallbackURL())
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}

func runGracefulShutdown(srv *server.Server) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}
