// Package main is the entry point for the screener service: an HTTP API
// that runs parameterized screening strategies over the candidate universe
// as cancellable, progress-reporting background jobs.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/config"
	"github.com/aristath/screener/internal/database"
	"github.com/aristath/screener/internal/events"
	"github.com/aristath/screener/internal/history"
	"github.com/aristath/screener/internal/jobs"
	"github.com/aristath/screener/internal/marketdata"
	"github.com/aristath/screener/internal/reliability"
	"github.com/aristath/screener/internal/scheduler"
	"github.com/aristath/screener/internal/screener"
	"github.com/aristath/screener/internal/screener/conditions"
	"github.com/aristath/screener/internal/server"
	"github.com/aristath/screener/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting screener")

	// Databases: durable market data + run history, fast profile for the
	// result cache.
	marketDB, err := database.New(database.Config{
		Path: cfg.DatabasePath("market"),
		Name: "market",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open market database")
	}
	defer marketDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath("cache"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	runsDB, err := database.New(database.Config{
		Path: cfg.DatabasePath("runs"),
		Name: "runs",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open runs database")
	}
	defer runsDB.Close()

	bus := events.NewBus(log)

	provider := marketdata.NewHistoryDB(marketDB.Conn(), log)
	if err := provider.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize market schema")
	}

	cache := screener.NewCache(cacheDB.Conn(), screener.CacheConfig{
		SuccessTTL: cfg.CacheSuccessTTL,
		FailedTTL:  cfg.CacheFailedTTL,
	}, log)
	if err := cache.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize cache schema")
	}

	registry := screener.NewRegistry()
	conditions.RegisterBuiltins(registry)

	pipeline := screener.NewPipeline(registry, cache, provider, screener.PipelineConfig{
		WindowLimit: cfg.WindowLimit,
	}, log)
	registerStrategies(pipeline)

	runs := history.NewStore(runsDB.Conn(), log)
	if err := runs.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize runs schema")
	}

	manager := jobs.NewManager(bus, log)
	reaper := jobs.NewReaper(manager, jobs.ReapPolicy{
		Timeout:    cfg.JobTimeout,
		StuckAfter: cfg.JobStuckAfter,
		StaleAfter: cfg.JobStaleAfter,
		Retention:  cfg.JobRetention,
	}, log)

	// Optional snapshot export to object storage.
	var snapshots *reliability.SnapshotService
	if cfg.Backup.Enabled() {
		s3Client, err := reliability.NewS3Client(context.Background(), reliability.S3Config{
			Bucket:    cfg.Backup.Bucket,
			Endpoint:  cfg.Backup.Endpoint,
			Region:    cfg.Backup.Region,
			AccessKey: cfg.Backup.AccessKey,
			SecretKey: cfg.Backup.SecretKey,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create object-storage client")
		}
		snapshots = reliability.NewSnapshotService(s3Client, cfg.DataDir, bus, log)
	}

	// Recurring maintenance.
	sched := scheduler.New(log)
	mustSchedule(sched, "@every 15s", reaper, log)
	mustSchedule(sched, "@every 10m", screener.NewCacheGCJob(cache, log), log)
	mustSchedule(sched, "0 0 1 * * *", history.NewCleanupJob(runs, 30*24*time.Hour, log), log)
	if snapshots != nil {
		mustSchedule(sched, "0 0 3 * * *", reliability.NewExportJob(snapshots, 5*time.Minute), log)
	}
	sched.Start()
	defer sched.Stop()

	screens := server.NewScreenService(pipeline, manager, runs, log)
	srv := server.New(cfg.Port, server.Deps{
		Handlers: server.NewHandlers(screens, registry, pipeline, runs),
		Events:   server.NewEventsStreamHandler(bus, log),
		WS:       server.NewWSHandler(bus, log),
		System:   server.NewSystemHandlers(snapshots),
	}, log)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
}

// registerStrategies installs the built-in strategy definitions. The chain
// order is fixed per strategy; the request context chooses which conditions
// actually run.
func registerStrategies(pipeline *screener.Pipeline) {
	pipeline.RegisterStrategy(&screener.Strategy{
		Name:       "daily_screen",
		Label:      "Daily technical screen",
		Conditions: []string{"trend", "rsi", "volume", "volatility"},
	})
	pipeline.RegisterStrategy(&screener.Strategy{
		Name:       "oversold",
		Label:      "Oversold candidates",
		Conditions: []string{"rsi", "volume"},
	})
	pipeline.RegisterStrategy(&screener.Strategy{
		Name:       "low_volatility",
		Label:      "Low volatility universe",
		Conditions: []string{"volatility", "trend"},
	})
}

// mustSchedule aborts start-up when a cron expression is invalid
func mustSchedule(sched *scheduler.Scheduler, schedule string, job scheduler.Job, log zerolog.Logger) {
	if err := sched.AddJob(schedule, job); err != nil {
		log.Fatal().Err(err).Str("job", job.Name()).Msg("Failed to schedule job")
	}
}
