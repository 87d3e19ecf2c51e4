package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/atlaspay/fraud-risk-engine/internal/api/rest"
	"github.com/atlaspay/fraud-risk-engine/internal/infrastructure/cache"
	"github.com/atlaspay/fraud-risk-engine/internal/infrastructure/config"
	"github.com/atlaspay/fraud-risk-engine/internal/infrastructure/database"
	"github.com/atlaspay/fraud-risk-engine/internal/infrastructure/events"
	"github.com/atlaspay/fraud-risk-engine/internal/infrastructure/repository"
	"github.com/atlaspay/fraud-risk-engine/internal/infrastructure/telemetry"
	"github.com/atlaspay/fraud-risk-engine/internal/metrics"
	fraudservice "github.com/atlaspay/fraud-risk-engine/internal/service/fraud"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fraud-risk-engine: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := telemetry.SetupLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	zapLogger, err := newZapLogger(cfg)
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := telemetry.InitializeOpenTelemetry(ctx, &telemetry.Config{
		ServiceName:    "fraud-risk-engine",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SamplingRate:   cfg.Telemetry.SampleRate,
		ExportTimeout:  30 * time.Second,
		BatchTimeout:   5 * time.Second,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	db, err := database.NewConnectionPool(ctx, &cfg.Database, zapLogger)
	if err != nil {
		return err
	}
	defer db.Close()

	attempts := repository.NewAttemptRepository(db.Pool())
	patterns := repository.NewPatternRepository(db.Pool())
	evidence := repository.NewEvidenceRepository(db.Pool())
	alerts := repository.NewAlertRepository(db.Pool())

	var profiles fraudservice.ProfileRepository = repository.NewProfileRepository(db.Pool())

	var redisClient *redis.Client
	var limiter cache.RateLimiter
	if cfg.Redis.URL != "" {
		redisClient, err = cache.NewRedisClient(&cfg.Redis, zapLogger)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		profiles = cache.NewCachedProfileRepository(profiles, redisClient, cfg.Redis.ProfileTTL, zapLogger)
		limiter = cache.NewRedisRateLimiter(redisClient, zapLogger)
	} else {
		logger.Warn("redis not configured, using in-process rate limiting and no profile cache")
		limiter = cache.NewLocalRateLimiter(cfg.Server.RateLimit.RequestsPerSecond, cfg.Server.RateLimit.BurstSize)
	}

	publisher := events.NewAlertPublisher(alerts, zapLogger, cfg.Fraud.AlertBuffer, events.LogNotifier{Logger: zapLogger})
	publisher.Start()
	defer publisher.Close()

	registry, err := metrics.NewRegistry("fraud-risk-engine")
	if err != nil {
		return err
	}

	engine := fraudservice.NewEngine(fraudservice.Config{
		HomeCountry:         cfg.Fraud.HomeCountry,
		HighValueMinorUnits: cfg.Fraud.HighValueMinorUnits,
		LowValueMinorUnits:  cfg.Fraud.LowValueMinorUnits,
		AlertScoreThreshold: cfg.Fraud.AlertScoreThreshold,
	}, fraudservice.Deps{
		Attempts: attempts,
		Patterns: patterns,
		Profiles: profiles,
		Evidence: evidence,
		Alerts:   publisher,
		Logger:   logger,
		Metrics:  registry,
	})

	if err := engine.RefreshPatterns(ctx); err != nil {
		logger.Warn("initial pattern refresh failed, starting with empty registry", "error", err)
	}
	go refreshPatternsLoop(ctx, engine, cfg.Fraud.PatternRefresh, logger)

	health := map[string]rest.HealthChecker{
		"database": db.HealthCheck,
	}
	if redisClient != nil {
		health["cache"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	handler := rest.NewHandler(engine, logger, health)
	server := rest.NewServer(cfg.Server, handler, limiter, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func refreshPatternsLoop(ctx context.Context, engine *fraudservice.Engine, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := engine.RefreshPatterns(ctx); err != nil {
				logger.Warn("pattern refresh failed", "error", err)
			}
		}
	}
}

func newZapLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
