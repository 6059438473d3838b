package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Tier1Interval:        time.Hour,
		Tier2Interval:        24 * time.Hour,
		Tier3Interval:        168 * time.Hour,
		PerformanceThreshold: 0.5,
		ImprovementThreshold: 0.01,
		EvaluationWindow:     10,
		PredictionLogCap:     1000,
		TrendLookback:        3,
		TrainingTimeout:      7 * time.Minute,
	}
}

func TestSchedulerConfigValidate(t *testing.T) {
	t.Run("valid config passes", func(t *testing.T) {
		sc := validSchedulerConfig()
		assert.NoError(t, sc.Validate())
	})

	tests := []struct {
		name   string
		mutate func(*SchedulerConfig)
	}{
		{
			name:   "zero tier1 interval",
			mutate: func(sc *SchedulerConfig) { sc.Tier1Interval = 0 },
		},
		{
			name:   "tier1 equal to tier2",
			mutate: func(sc *SchedulerConfig) { sc.Tier1Interval = sc.Tier2Interval },
		},
		{
			name:   "tier2 greater than tier3",
			mutate: func(sc *SchedulerConfig) { sc.Tier2Interval = sc.Tier3Interval + time.Hour },
		},
		{
			name:   "performance threshold out of range",
			mutate: func(sc *SchedulerConfig) { sc.PerformanceThreshold = 1.5 },
		},
		{
			name:   "zero performance threshold",
			mutate: func(sc *SchedulerConfig) { sc.PerformanceThreshold = 0 },
		},
		{
			name:   "improvement threshold out of range",
			mutate: func(sc *SchedulerConfig) { sc.ImprovementThreshold = 1.0 },
		},
		{
			name:   "zero evaluation window",
			mutate: func(sc *SchedulerConfig) { sc.EvaluationWindow = 0 },
		},
		{
			name:   "zero prediction log cap",
			mutate: func(sc *SchedulerConfig) { sc.PredictionLogCap = 0 },
		},
		{
			name:   "trend lookback below two",
			mutate: func(sc *SchedulerConfig) { sc.TrendLookback = 1 },
		},
		{
			name:   "zero training timeout",
			mutate: func(sc *SchedulerConfig) { sc.TrainingTimeout = 0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := validSchedulerConfig()
			tt.mutate(&sc)
			assert.Error(t, sc.Validate())
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FEEDBACK_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "bitcoin", cfg.CoinID)
	assert.Equal(t, 30, cfg.HorizonDays)
	assert.Equal(t, time.Hour, cfg.Scheduler.Tier1Interval)
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.Tier2Interval)
	assert.Equal(t, 168*time.Hour, cfg.Scheduler.Tier3Interval)
	assert.Equal(t, 0.5, cfg.Scheduler.PerformanceThreshold)
	assert.Equal(t, 10, cfg.Scheduler.EvaluationWindow)
	assert.Equal(t, 1000, cfg.Scheduler.PredictionLogCap)
	assert.False(t, cfg.Backup.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FEEDBACK_DATA_DIR", t.TempDir())
	t.Setenv("FEEDBACK_TIER1_INTERVAL", "30m")
	t.Setenv("FEEDBACK_TIER2_INTERVAL", "2h")
	t.Setenv("FEEDBACK_TIER3_INTERVAL", "48h")
	t.Setenv("FEEDBACK_PERFORMANCE_THRESHOLD", "0.6")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.Scheduler.Tier1Interval)
	assert.Equal(t, 2*time.Hour, cfg.Scheduler.Tier2Interval)
	assert.Equal(t, 48*time.Hour, cfg.Scheduler.Tier3Interval)
	assert.Equal(t, 0.6, cfg.Scheduler.PerformanceThreshold)
}

func TestLoadRejectsInvalidIntervals(t *testing.T) {
	t.Setenv("FEEDBACK_DATA_DIR", t.TempDir())
	t.Setenv("FEEDBACK_TIER1_INTERVAL", "48h")
	t.Setenv("FEEDBACK_TIER2_INTERVAL", "2h")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBackupWithoutBucket(t *testing.T) {
	t.Setenv("FEEDBACK_DATA_DIR", t.TempDir())
	t.Setenv("BACKUP_ENABLED", "true")
	t.Setenv("BACKUP_BUCKET", "")

	_, err := Load()
	assert.Error(t, err)
}
