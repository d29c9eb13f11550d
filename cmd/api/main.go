package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"craftboost/api/internal/ai"
	"craftboost/api/internal/cache"
	"craftboost/api/internal/config"
	"craftboost/api/internal/database"
	"craftboost/api/internal/handlers"
	"craftboost/api/internal/jobs"
	"craftboost/api/internal/log"
	"craftboost/api/internal/pipeline"
	"craftboost/api/internal/repository"
	"craftboost/api/internal/server"
	"craftboost/api/internal/service"
	"craftboost/api/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not up yet; a plain panic still names the missing
		// setting thanks to config.Validate.
		panic(err)
	}

	logger := log.New(cfg.Environment)

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	if err := database.Migrate(dbPool); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply migrations")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := objectStore.EnsureBuckets(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure buckets failed")
	}

	postRepo := repository.NewPostRepository(dbPool)
	userRepo := repository.NewUserRepository(dbPool)

	authService := service.NewAuthService(userRepo, redisClient, cfg, logger)
	uploadService := service.NewUploadService(postRepo, objectStore, logger)

	orchestrator := pipeline.NewOrchestrator(
		postRepo,
		objectStore,
		ai.NewPhotoroom(cfg.AI.PhotoroomEndpoint, cfg.AI.PhotoroomAPIKey, cfg.AI.RequestTimeout),
		ai.NewGemini(cfg.AI.GeminiEndpoint, cfg.AI.GeminiAPIKey, cfg.AI.GeminiModel, cfg.AI.RequestTimeout, logger),
		ai.NewStability(cfg.AI.StabilityEndpoint, cfg.AI.StabilityAPIKey, cfg.AI.RequestTimeout),
		cache.NewRunLock(redisClient, cfg.Pipeline.RunLockTTL),
		logger,
	)

	handlerSet := handlers.NewHandlerSet(
		logger, cfg, dbPool, redisClient,
		postRepo, objectStore, userRepo,
		authService, uploadService, orchestrator,
	)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(postRepo, cfg.Pipeline.StaleRunThreshold, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop()

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
