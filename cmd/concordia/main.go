package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/fortuna/concordia/internal/api/rest"
	"github.com/fortuna/concordia/internal/api/websocket"
	"github.com/fortuna/concordia/internal/cache"
	"github.com/fortuna/concordia/internal/config"
	"github.com/fortuna/concordia/internal/importjob"
	"github.com/fortuna/concordia/internal/ingest"
	"github.com/fortuna/concordia/internal/matching"
	"github.com/fortuna/concordia/internal/metrics"
	"github.com/fortuna/concordia/internal/publisher"
	"github.com/fortuna/concordia/internal/scheduler"
	"github.com/fortuna/concordia/internal/store"
	"github.com/fortuna/concordia/internal/store/repository"
)

const (
	serviceName    = "concordia"
	serviceVersion = "1.0.0"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting service",
		zap.String("service", serviceName),
		zap.String("version", serviceVersion))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize database connection
	db, err := store.NewDatabase(cfg.DatabaseDSN, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Connected to database")

	// Run migrations
	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize Redis client with retry logic
	var redisCache *cache.RedisCache
	maxRetries := 30
	retryDelay := 2 * time.Second

	logger.Info("Connecting to Redis...")
	for i := 0; i < maxRetries; i++ {
		redisCache, err = cache.NewRedisCache(cfg.RedisURL)
		if err == nil {
			break
		}

		if i < maxRetries-1 {
			logger.Warn("Redis connection attempt failed",
				zap.Int("attempt", i+1),
				zap.Int("max_attempts", maxRetries),
				zap.Error(err))
			time.Sleep(retryDelay)
		} else {
			logger.Fatal("Failed to connect to Redis",
				zap.Int("attempts", maxRetries),
				zap.Error(err))
		}
	}
	defer redisCache.Close()

	logger.Info("Connected to Redis")

	m := metrics.New(prometheus.DefaultRegisterer)

	// Repositories
	teamRepo := repository.NewTeamRepository(db)
	aliasRepo := repository.NewAliasRepository(db)
	gameRepo := repository.NewGameRepository(db)
	quarantineRepo := repository.NewQuarantineRepository(db)
	runRepo := repository.NewRunRepository(db)

	registry := ingest.NewRegistry(cfg.MatcherStrategies, cfg.StateCupState)
	streamPublisher := publisher.NewRedisStreamPublisher(redisCache.Client())

	runner := importjob.NewRunner(registry, aliasRepo, teamRepo, gameRepo, quarantineRepo, runRepo,
		matcherOptions(cfg), cfg.Pipeline.ChunkSize, m, logger)
	runner.SetPublishers(streamPublisher, streamPublisher, redisCache)

	jobRepo := importjob.NewRepository(db)
	importService := importjob.NewService(jobRepo, runner, registry, logger)

	// Initialize WebSocket server first so the job service can broadcast
	// progress to it.
	wsServer := websocket.NewServer(logger)
	importService.SetBroadcaster(wsServer)

	importService.Start()
	logger.Info("Import job service started")

	// Scheduler scans the feed directory for new provider files
	sched := scheduler.NewOrchestrator(cfg.FeedDir, cfg.CronSchedule, registry, importService, runRepo, logger)
	if err := sched.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// Initialize REST API server
	restServer := rest.NewServer(cfg.RESTPort, db, redisCache, importService, logger)
	go func() {
		logger.Info("Starting REST API server", zap.String("port", cfg.RESTPort))
		if err := restServer.Start(); err != nil {
			logger.Error("REST server error", zap.Error(err))
		}
	}()

	go func() {
		if err := wsServer.Start(cfg.WSPort); err != nil {
			logger.Error("WebSocket server error", zap.Error(err))
		}
	}()

	logger.Info("Service started",
		zap.String("rest_port", cfg.RESTPort),
		zap.String("ws_port", cfg.WSPort),
		zap.Strings("providers", registry.IDs()))

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down gracefully...")

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := importService.Shutdown(shutdownCtx); err != nil {
		logger.Error("Import service shutdown error", zap.Error(err))
	}
	if err := restServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("REST API server shutdown error", zap.Error(err))
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("WebSocket server shutdown error", zap.Error(err))
	}

	logger.Info("Service stopped")
}

func matcherOptions(cfg *config.Config) matching.Options {
	return matching.Options{
		AutoLinkThreshold:     cfg.Matching.AutoLinkThreshold,
		ManualReviewThreshold: cfg.Matching.ManualReviewThreshold,

		ConservativeMinScore:    cfg.Matching.ConservativeMinScore,
		ConservativeMinGap:      cfg.Matching.ConservativeMinGap,
		DivisionBonus:           cfg.Matching.DivisionBonus,
		DivisionPenalty:         cfg.Matching.DivisionPenalty,
		BirthYearBonus:          cfg.Matching.BirthYearBonus,
		MissingBirthYearPenalty: cfg.Matching.MissingBirthYearPenalty,
		AgeConflictYears:        cfg.Matching.AgeConflictYears,

		ClubEquivalenceThreshold: cfg.Matching.ClubEquivalenceThreshold,

		SeasonYear: cfg.SeasonYear,
	}
}
