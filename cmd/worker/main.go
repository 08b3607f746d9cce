package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/extra/redisotel/v9"

	"github.com/westgate-auto/backend-westgate/internal/app"
	"github.com/westgate-auto/backend-westgate/internal/cache"
	"github.com/westgate-auto/backend-westgate/internal/car"
	"github.com/westgate-auto/backend-westgate/internal/config"
	"github.com/westgate-auto/backend-westgate/internal/lock"
	"github.com/westgate-auto/backend-westgate/internal/obs"
	"github.com/westgate-auto/backend-westgate/internal/pricing"
	"github.com/westgate-auto/backend-westgate/internal/rates"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "westgate"), nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := app.NewDatabase(ctx, cfg, "westgate-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise database")
	}
	defer pool.Close()

	redisClient, err := app.NewRedis(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}

	style, err := rates.ParseScheduleStyle(cfg.ScheduleStyle)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse fee schedule style")
	}
	tables, err := rates.Default()
	if err != nil {
		logger.Fatal().Err(err).Msg("load rate tables")
	}
	engine := pricing.NewEngine(tables, style)
	engine.GateFee = cfg.GateFee
	engine.TitleFee = cfg.TitleFee
	engine.EnvironmentalFee = cfg.EnvironmentalFee
	engine.InsuranceMultiplier = cfg.InsuranceMultiplier

	pricingSvc := &pricing.Service{
		Store:  pricing.NewStore(pool),
		Cache:  cache.NewSheet(redisClient, cfg.SheetCacheTTL),
		Engine: engine,
		Logger: &logger,
	}
	carStore := car.NewStore(pool)
	recalcHandler := &car.TaskHandler{
		Recalc:  &car.Recalculator{Store: carStore, Pricing: pricingSvc, Logger: &logger},
		Locker:  lock.Locker{R: redisClient},
		LockTTL: cfg.RecalcLockTTL,
		Logger:  &logger,
	}

	asynqOpt, err := app.AsynqRedisOpt(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse task queue redis url")
	}
	srv := asynq.NewServer(asynqOpt, asynq.Config{
		Concurrency: envInt("WORKER_CONCURRENCY", 4),
	})

	mux := asynq.NewServeMux()
	mux.Handle(car.TaskRecalculate, recalcHandler)

	logger.Info().Msg("worker starting")
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}

	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}
