package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lennartp/chatstore/internal/api"
	"github.com/lennartp/chatstore/internal/config"
	"github.com/lennartp/chatstore/internal/db"
	"github.com/lennartp/chatstore/internal/events"
	"github.com/lennartp/chatstore/internal/media"
	"github.com/lennartp/chatstore/internal/middleware"
	"github.com/lennartp/chatstore/internal/observ"
	"github.com/lennartp/chatstore/internal/repository"
	"github.com/lennartp/chatstore/internal/repository/memory"
	"github.com/lennartp/chatstore/internal/repository/postgres"
	"github.com/lennartp/chatstore/internal/store"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage backend. "memory" keeps everything in process for local
	// development; anything else is a Postgres URL.
	var (
		users     repository.UserRepository
		logs      repository.LogRepository
		directory repository.DirectoryRepository
		health    api.HealthChecker
	)
	if cfg.DatabaseURL == "memory" {
		mem := memory.NewStore()
		users, logs, directory = mem, mem, mem
		logger.Warn("using in-memory storage, data is lost on restart")
	} else {
		database, err := db.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer database.Close()

		if err := postgres.EnsureSchema(ctx, database.Pool()); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}

		users = postgres.NewUserStore(database.Pool())
		logs = postgres.NewLogStore(database.Pool())
		directory = postgres.NewDirectoryStore(database.Pool())
		health = database.Health
	}

	hub := store.NewHub()

	// Cross-instance fan-out is optional; without redis, watchers only
	// see writes made by this instance.
	var pub store.Publisher
	if cfg.RedisURL != "" {
		bus, err := events.NewBus(cfg.RedisURL, cfg.EventChannel, logger)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer bus.Close()
		if err := bus.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		go bus.Run(ctx, hub.Notify)
		pub = bus
		logger.Info("event bus connected", zap.String("channel", cfg.EventChannel))
	}

	convs := store.NewConversationStore(users, logs, hub, pub, logger, store.Options{})
	dir := store.NewDirectory(users, directory, logger)

	var mediaHandler *api.MediaHandler
	if cfg.S3Bucket != "" {
		resolver, err := media.NewS3Resolver(ctx, cfg.S3Region, cfg.S3Bucket, cfg.MediaTTL, logger)
		if err != nil {
			return fmt.Errorf("create media resolver: %w", err)
		}
		mediaHandler = api.NewMediaHandler(resolver, logger)
	} else {
		logger.Warn("S3_BUCKET not set, media endpoints disabled")
	}

	authLimiter := middleware.NewLimiterStore(cfg.AuthRatePerMinute, cfg.AuthRateBurst, 5*time.Minute)
	defer authLimiter.Stop()

	router := api.NewRouter(api.Handlers{
		Auth:          api.NewAuthHandler(dir, cfg, logger),
		Users:         api.NewUserHandler(dir, logger),
		Conversations: api.NewConversationHandler(convs, logger),
		WS:            api.NewWSHandler(convs, logger),
		Media:         mediaHandler,
		AuthLimiter:   authLimiter,
		Health:        health,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting chatstore",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
