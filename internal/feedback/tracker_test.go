package feedback

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/aaakaind/letsgetcrypto/internal/ml"
)

func newTestTracker() *PerformanceTracker {
	return NewPerformanceTracker(3, 0.01, nil, zerolog.Nop())
}

func TestTrackerTrendInsufficientData(t *testing.T) {
	tracker := newTestTracker()

	report := tracker.Trend("logistic")
	assert.Equal(t, TrendInsufficientData, report.Trend)
	assert.Equal(t, 0.0, report.Improvement)

	tracker.SaveMetrics("logistic", ml.Metrics{"accuracy": 0.6})
	tracker.SaveMetrics("logistic", ml.Metrics{"accuracy": 0.7})

	report = tracker.Trend("logistic")
	assert.Equal(t, TrendInsufficientData, report.Trend, "two snapshots with lookback 3 is not enough")
}

func TestTrackerTrendImproving(t *testing.T) {
	tracker := newTestTracker()

	for _, acc := range []float64{0.50, 0.55, 0.60} {
		tracker.SaveMetrics("xgboost", ml.Metrics{"accuracy": acc})
	}

	report := tracker.Trend("xgboost")
	assert.Equal(t, TrendImproving, report.Trend)
	assert.InDelta(t, 0.10, report.Improvement, 1e-9)
}

func TestTrackerTrendDegrading(t *testing.T) {
	tracker := newTestTracker()

	for _, acc := range []float64{0.70, 0.65, 0.55} {
		tracker.SaveMetrics("lstm", ml.Metrics{"accuracy": acc})
	}

	report := tracker.Trend("lstm")
	assert.Equal(t, TrendDegrading, report.Trend)
	assert.InDelta(t, -0.15, report.Improvement, 1e-9)
}

func TestTrackerTrendStableWithinBand(t *testing.T) {
	tracker := newTestTracker()

	// Net delta of +0.005 sits inside the ±0.01 band.
	for _, acc := range []float64{0.600, 0.610, 0.605} {
		tracker.SaveMetrics("logistic", ml.Metrics{"accuracy": acc})
	}

	report := tracker.Trend("logistic")
	assert.Equal(t, TrendStable, report.Trend)
}

func TestTrackerTrendUsesOnlyLookbackWindow(t *testing.T) {
	tracker := newTestTracker()

	// Ancient history says improving; the recent window says degrading.
	for _, acc := range []float64{0.10, 0.20, 0.80, 0.70, 0.60} {
		tracker.SaveMetrics("logistic", ml.Metrics{"accuracy": acc})
	}

	report := tracker.Trend("logistic")
	assert.Equal(t, TrendDegrading, report.Trend)
	assert.InDelta(t, -0.20, report.Improvement, 1e-9)
}

func TestTrackerModelNamesSorted(t *testing.T) {
	tracker := newTestTracker()

	tracker.SaveMetrics("xgboost", ml.Metrics{"accuracy": 0.5})
	tracker.SaveMetrics("logistic", ml.Metrics{"accuracy": 0.5})
	tracker.SaveMetrics("lstm", ml.Metrics{"accuracy": 0.5})

	assert.Equal(t, []string{"logistic", "lstm", "xgboost"}, tracker.ModelNames())
}

func TestTrackerRestore(t *testing.T) {
	tracker := newTestTracker()

	tracker.Restore([]MetricSnapshot{
		{ModelName: "logistic", Metrics: ml.Metrics{"accuracy": 0.5}},
		{ModelName: "logistic", Metrics: ml.Metrics{"accuracy": 0.6}},
		{ModelName: "logistic", Metrics: ml.Metrics{"accuracy": 0.7}},
	})

	assert.Equal(t, 3, tracker.SnapshotCount("logistic"))
	assert.Equal(t, TrendImproving, tracker.Trend("logistic").Trend)
}

func TestTrackerTrendsCoversAllModels(t *testing.T) {
	tracker := newTestTracker()

	tracker.SaveMetrics("logistic", ml.Metrics{"accuracy": 0.5})
	tracker.SaveMetrics("xgboost", ml.Metrics{"accuracy": 0.5})

	trends := tracker.Trends()
	assert.Len(t, trends, 2)
	assert.Equal(t, TrendInsufficientData, trends["logistic"].Trend)
	assert.Equal(t, TrendInsufficientData, trends["xgboost"].Trend)
}
