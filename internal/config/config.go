// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir          string // Base directory for all databases (always absolute)
	Port             int
	DevMode          bool
	LogLevel         string
	CoinID           string // CoinGecko coin identifier (e.g. "bitcoin")
	Symbol           string // Exchange symbol for the live ticker (e.g. "btcusdt")
	HorizonDays      int    // Days of history fetched for each training run
	ModelServiceURL  string // External model-training service
	CoinGeckoBaseURL string // Overridable for tests
	CycleSchedule    string // Cron spec for the retrain cycle driver
	Scheduler        SchedulerConfig
	Backup           BackupConfig
}

// SchedulerConfig holds the retraining scheduler parameters.
// It is immutable after Load(); invalid values abort startup.
type SchedulerConfig struct {
	Tier1Interval        time.Duration
	Tier2Interval        time.Duration
	Tier3Interval        time.Duration
	PerformanceThreshold float64 // Rolling accuracy below this triggers an early retrain
	ImprovementThreshold float64 // Trend band: |improvement| <= threshold reads as stable
	EvaluationWindow     int     // Outcomes needed before rolling accuracy is meaningful
	PredictionLogCap     int
	TrendLookback        int
	TrainingTimeout      time.Duration
}

// BackupConfig holds S3 backup configuration
type BackupConfig struct {
	Enabled   bool
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string // Optional custom endpoint (R2, MinIO)
	KeepCount int    // Remote backups retained after rotation
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FEEDBACK_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		Port:             getEnvAsInt("PORT", 8010),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		CoinID:           getEnv("COIN_ID", "bitcoin"),
		Symbol:           getEnv("TICKER_SYMBOL", "btcusdt"),
		HorizonDays:      getEnvAsInt("HORIZON_DAYS", 30),
		ModelServiceURL:  getEnv("MODEL_SERVICE_URL", "http://localhost:8501"),
		CoinGeckoBaseURL: getEnv("COINGECKO_BASE_URL", "https://api.coingecko.com/api/v3"),
		CycleSchedule:    getEnv("CYCLE_SCHEDULE", "@every 1m"),
		Scheduler: SchedulerConfig{
			Tier1Interval:        getEnvAsDuration("FEEDBACK_TIER1_INTERVAL", time.Hour),
			Tier2Interval:        getEnvAsDuration("FEEDBACK_TIER2_INTERVAL", 24*time.Hour),
			Tier3Interval:        getEnvAsDuration("FEEDBACK_TIER3_INTERVAL", 168*time.Hour),
			PerformanceThreshold: getEnvAsFloat("FEEDBACK_PERFORMANCE_THRESHOLD", 0.5),
			ImprovementThreshold: getEnvAsFloat("FEEDBACK_IMPROVEMENT_THRESHOLD", 0.01),
			EvaluationWindow:     getEnvAsInt("FEEDBACK_EVALUATION_WINDOW", 10),
			PredictionLogCap:     getEnvAsInt("FEEDBACK_PREDICTION_LOG_CAP", 1000),
			TrendLookback:        getEnvAsInt("FEEDBACK_TREND_LOOKBACK", 3),
			TrainingTimeout:      getEnvAsDuration("FEEDBACK_TRAINING_TIMEOUT", 7*time.Minute),
		},
		Backup: BackupConfig{
			Enabled:   getEnvAsBool("BACKUP_ENABLED", false),
			Bucket:    getEnv("BACKUP_BUCKET", ""),
			Prefix:    getEnv("BACKUP_PREFIX", "feedback-backups"),
			Region:    getEnv("BACKUP_REGION", "auto"),
			Endpoint:  getEnv("BACKUP_ENDPOINT", ""),
			KeepCount: getEnvAsInt("BACKUP_KEEP_COUNT", 7),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration invariants. A configuration error here is
// fatal: no scheduler is ever constructed from an invalid config.
func (c *Config) Validate() error {
	if err := c.Scheduler.Validate(); err != nil {
		return err
	}
	if c.HorizonDays <= 0 {
		return fmt.Errorf("HORIZON_DAYS must be positive, got %d", c.HorizonDays)
	}
	if c.Backup.Enabled && c.Backup.Bucket == "" {
		return fmt.Errorf("BACKUP_BUCKET is required when backups are enabled")
	}
	return nil
}

// Validate enforces the scheduler invariants: strictly increasing tier
// intervals, thresholds inside (0,1), and positive windows.
func (sc *SchedulerConfig) Validate() error {
	if sc.Tier1Interval <= 0 {
		return fmt.Errorf("tier1 interval must be positive, got %s", sc.Tier1Interval)
	}
	if sc.Tier1Interval >= sc.Tier2Interval {
		return fmt.Errorf("tier intervals must be strictly increasing: tier1 (%s) >= tier2 (%s)",
			sc.Tier1Interval, sc.Tier2Interval)
	}
	if sc.Tier2Interval >= sc.Tier3Interval {
		return fmt.Errorf("tier intervals must be strictly increasing: tier2 (%s) >= tier3 (%s)",
			sc.Tier2Interval, sc.Tier3Interval)
	}
	if sc.PerformanceThreshold <= 0 || sc.PerformanceThreshold >= 1 {
		return fmt.Errorf("performance threshold must be in (0,1), got %f", sc.PerformanceThreshold)
	}
	if sc.ImprovementThreshold <= 0 || sc.ImprovementThreshold >= 1 {
		return fmt.Errorf("improvement threshold must be in (0,1), got %f", sc.ImprovementThreshold)
	}
	if sc.EvaluationWindow <= 0 {
		return fmt.Errorf("evaluation window must be positive, got %d", sc.EvaluationWindow)
	}
	if sc.PredictionLogCap <= 0 {
		return fmt.Errorf("prediction log cap must be positive, got %d", sc.PredictionLogCap)
	}
	if sc.TrendLookback < 2 {
		return fmt.Errorf("trend lookback must be at least 2, got %d", sc.TrendLookback)
	}
	if sc.TrainingTimeout <= 0 {
		return fmt.Errorf("training timeout must be positive, got %s", sc.TrainingTimeout)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
