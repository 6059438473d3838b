// Package main is the entry point for the adaptive retraining service.
// It keeps a tiered ensemble of market models fresh: a feedback loop
// scores live predictions against realized price moves, and three
// escalating tiers retrain on their own clocks or early when rolling
// accuracy degrades.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aaakaind/letsgetcrypto/internal/clientdata"
	"github.com/aaakaind/letsgetcrypto/internal/clients/binance"
	"github.com/aaakaind/letsgetcrypto/internal/clients/coingecko"
	"github.com/aaakaind/letsgetcrypto/internal/config"
	"github.com/aaakaind/letsgetcrypto/internal/database"
	"github.com/aaakaind/letsgetcrypto/internal/feedback"
	feedbackhandlers "github.com/aaakaind/letsgetcrypto/internal/feedback/handlers"
	"github.com/aaakaind/letsgetcrypto/internal/ml"
	"github.com/aaakaind/letsgetcrypto/internal/reliability"
	"github.com/aaakaind/letsgetcrypto/internal/scheduler"
	"github.com/aaakaind/letsgetcrypto/internal/server"
	"github.com/aaakaind/letsgetcrypto/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("coin", cfg.CoinID).
		Str("symbol", cfg.Symbol).
		Int("port", cfg.Port).
		Msg("Starting feedback loop service")

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("Failed to create data directory")
	}

	// Databases: feedback.db holds telemetry and scheduler state,
	// cache.db holds external API responses.
	feedbackDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "feedback.db"),
		Profile: database.ProfileStandard,
		Name:    "feedback",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open feedback database")
	}
	defer feedbackDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	for _, db := range []*database.DB{feedbackDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", db.Name()).Msg("Failed to migrate database")
		}
	}

	// External clients.
	cacheRepo := clientdata.NewRepository(cacheDB.Conn())
	marketClient := coingecko.NewClient(cfg.CoinGeckoBaseURL, cacheRepo, log)
	modelClient := ml.NewServiceClient(cfg.ModelServiceURL, log)

	ticker := binance.NewTickerClient(cfg.Symbol, cacheRepo, log)
	ticker.Start()
	defer ticker.Stop()

	// Feedback loop core.
	repo := feedback.NewRepository(feedbackDB.Conn())
	source := feedback.NewMarketDataSource(marketClient, cfg.CoinID, cfg.HorizonDays)
	retrainer := feedback.NewScheduler(cfg.Scheduler, source, modelClient, repo, repo, log)
	warmFromHistory(retrainer, repo, cfg.Scheduler.PredictionLogCap, log)

	resolver := feedback.NewOutcomeResolver(repo, retrainer, ticker, marketClient, cfg.CoinID, cfg.Symbol, log)

	// Background jobs.
	jobs := scheduler.New(log)
	if err := jobs.AddJob(cfg.CycleSchedule, feedback.NewCycleJob(retrainer, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule feedback cycle")
	}
	if err := jobs.AddJob("@every 1m", resolver); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule outcome resolver")
	}
	if err := jobs.AddJob("0 0 3 * * *", clientdata.NewCleanupJob(cacheRepo, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule cache cleanup")
	}

	if cfg.Backup.Enabled {
		store, err := reliability.NewS3Client(context.Background(),
			cfg.Backup.Bucket, cfg.Backup.Region, cfg.Backup.Endpoint, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize backup storage")
		}
		backups := reliability.NewBackupService(store,
			[]*database.DB{feedbackDB, cacheDB},
			cfg.DataDir, cfg.Backup.Prefix, cfg.Backup.KeepCount, log)
		if err := jobs.AddJob("0 30 3 * * *", reliability.NewBackupJob(backups)); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule backups")
		}
	}

	jobs.Start()
	defer jobs.Stop()

	// HTTP server.
	srv := server.New(server.Config{
		Port:       cfg.Port,
		Log:        log,
		FeedbackDB: feedbackDB,
		CacheDB:    cacheDB,
		Feedback:   feedbackhandlers.NewHandler(retrainer, resolver, log),
		DevMode:    cfg.DevMode,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal or a server failure.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shut down HTTP server cleanly")
	}

	log.Info().Msg("Feedback loop service stopped")
}

// warmFromHistory replays persisted telemetry so trends and rolling
// accuracy survive a restart.
func warmFromHistory(retrainer *feedback.Scheduler, repo *feedback.Repository, logCap int, log zerolog.Logger) {
	snaps, err := repo.RecentSnapshots(500)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load metric history")
	} else {
		retrainer.Tracker().Restore(snaps)
	}

	outcomes, err := repo.RecentOutcomes(logCap)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load outcome history")
		return
	}
	for _, rec := range outcomes {
		retrainer.PredictionLog().Restore(rec)
	}
}
