package feedback

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aaakaind/letsgetcrypto/internal/ml"
)

// Trend classifications for a model's recent accuracy history.
const (
	TrendImproving        = "improving"
	TrendDegrading        = "degrading"
	TrendStable           = "stable"
	TrendInsufficientData = "insufficient_data"
)

// MetricSnapshot is one model's evaluation metrics at a point in time.
type MetricSnapshot struct {
	ModelName string     `json:"model_name"`
	Timestamp time.Time  `json:"timestamp"`
	Metrics   ml.Metrics `json:"metrics"`
}

// TrendReport summarizes the direction of a model's recent accuracy.
// Improvement is the accuracy delta from the oldest to the newest
// snapshot in the comparison window.
type TrendReport struct {
	Trend       string  `json:"trend"`
	Improvement float64 `json:"improvement"`
}

// SnapshotStore persists metric snapshots for post-restart trend history.
type SnapshotStore interface {
	SaveSnapshot(snap MetricSnapshot) error
}

// PerformanceTracker accumulates per-model metric snapshots and
// classifies each model's accuracy trend.
type PerformanceTracker struct {
	mu       sync.RWMutex
	history  map[string][]MetricSnapshot
	lookback int
	epsilon  float64
	store    SnapshotStore
	log      zerolog.Logger
	clock    func() time.Time
}

// NewPerformanceTracker creates a tracker that compares the newest
// snapshot against the one lookback-1 snapshots before it, treating
// deltas within epsilon of zero as stable. store may be nil.
func NewPerformanceTracker(lookback int, epsilon float64, store SnapshotStore, log zerolog.Logger) *PerformanceTracker {
	return &PerformanceTracker{
		history:  make(map[string][]MetricSnapshot),
		lookback: lookback,
		epsilon:  epsilon,
		store:    store,
		log:      log.With().Str("component", "performance_tracker").Logger(),
		clock:    time.Now,
	}
}

// SaveMetrics records a new snapshot for the model and persists it if
// a store is configured. Persistence failures are logged but do not
// lose the in-memory snapshot.
func (t *PerformanceTracker) SaveMetrics(model string, metrics ml.Metrics) MetricSnapshot {
	snap := MetricSnapshot{
		ModelName: model,
		Timestamp: t.clock(),
		Metrics:   metrics,
	}

	t.mu.Lock()
	t.history[model] = append(t.history[model], snap)
	t.mu.Unlock()

	if t.store != nil {
		if err := t.store.SaveSnapshot(snap); err != nil {
			t.log.Error().Err(err).Str("model", model).Msg("Failed to persist metric snapshot")
		}
	}
	return snap
}

// Restore re-inserts previously persisted snapshots. Snapshots must be
// supplied in chronological order per model.
func (t *PerformanceTracker) Restore(snaps []MetricSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, snap := range snaps {
		t.history[snap.ModelName] = append(t.history[snap.ModelName], snap)
	}
}

// Trend classifies the model's accuracy direction over the configured
// lookback. With fewer snapshots than the lookback the report is
// insufficient_data with zero improvement.
func (t *PerformanceTracker) Trend(model string) TrendReport {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snaps := t.history[model]
	if len(snaps) < t.lookback {
		return TrendReport{Trend: TrendInsufficientData}
	}

	window := snaps[len(snaps)-t.lookback:]
	delta := window[len(window)-1].Metrics.Accuracy() - window[0].Metrics.Accuracy()

	report := TrendReport{Improvement: delta}
	switch {
	case delta > t.epsilon:
		report.Trend = TrendImproving
	case delta < -t.epsilon:
		report.Trend = TrendDegrading
	default:
		report.Trend = TrendStable
	}
	return report
}

// Trends returns a trend report for every model seen so far.
func (t *PerformanceTracker) Trends() map[string]TrendReport {
	out := make(map[string]TrendReport)
	for _, model := range t.ModelNames() {
		out[model] = t.Trend(model)
	}
	return out
}

// ModelNames returns the models with recorded history, sorted.
func (t *PerformanceTracker) ModelNames() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.history))
	for name := range t.history {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SnapshotCount returns the number of snapshots held for a model.
func (t *PerformanceTracker) SnapshotCount(model string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.history[model])
}
