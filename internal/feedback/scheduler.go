package feedback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aaakaind/letsgetcrypto/internal/config"
	"github.com/aaakaind/letsgetcrypto/internal/domain"
	"github.com/aaakaind/letsgetcrypto/internal/ml"
)

// TierStateStore persists per-tier last-run times across restarts.
type TierStateStore interface {
	SaveTierState(tier Tier, lastRun time.Time) error
	LoadTierStates() (map[Tier]time.Time, error)
}

// OutcomeStore persists scored predictions for audit.
type OutcomeStore interface {
	SaveOutcome(rec PredictionRecord) error
}

// CycleResult reports what one scheduling pass did. TierRun is nil when
// no tier was due; Error carries a failure message instead of the
// caller ever seeing a panic or thrown error.
type CycleResult struct {
	CycleID string                `json:"cycle_id"`
	TierRun *Tier                 `json:"tier_run,omitempty"`
	Metrics map[string]ml.Metrics `json:"metrics,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// TierStatus describes one tier's schedule state.
type TierStatus struct {
	Interval string     `json:"interval"`
	LastRun  *time.Time `json:"last_run"`
	Models   []string   `json:"models"`
}

// ConfigView is the scheduler configuration exposed through Status.
type ConfigView struct {
	Tier1Interval        string  `json:"tier1_interval"`
	Tier2Interval        string  `json:"tier2_interval"`
	Tier3Interval        string  `json:"tier3_interval"`
	PerformanceThreshold float64 `json:"performance_threshold"`
	ImprovementThreshold float64 `json:"improvement_threshold"`
	EvaluationWindow     int     `json:"evaluation_window"`
}

// Status is the full introspection snapshot of the scheduler.
type Status struct {
	TrainingInProgress bool                   `json:"training_in_progress"`
	RecentPerformance  AccuracySummary        `json:"recent_performance"`
	PredictionLogSize  int                    `json:"prediction_log_size"`
	LastTraining       map[string]*time.Time  `json:"last_training"`
	Tiers              map[string]TierStatus  `json:"tiers"`
	Config             ConfigView             `json:"config"`
	ModelTrends        map[string]TrendReport `json:"model_performance_trends"`
}

// Scheduler decides when each tier retrains and runs the cycles. A
// single-permit guard ensures at most one training run is in flight
// process-wide, whatever tier it belongs to.
type Scheduler struct {
	cfg     config.SchedulerConfig
	policy  *TierPolicy
	predLog *PredictionLog
	tracker *PerformanceTracker
	source  DataSource
	backend ml.Backend
	states  TierStateStore
	outs    OutcomeStore
	log     zerolog.Logger

	guard chan struct{} // single permit

	mu      sync.Mutex
	lastRun map[Tier]time.Time

	clock func() time.Time
}

// NewScheduler wires a scheduler. states and outs may be nil, in which
// case schedule state and outcome audit live only in memory.
func NewScheduler(
	cfg config.SchedulerConfig,
	source DataSource,
	backend ml.Backend,
	states TierStateStore,
	outs OutcomeStore,
	log zerolog.Logger,
) *Scheduler {
	var snapStore SnapshotStore
	if repo, ok := states.(SnapshotStore); ok {
		snapStore = repo
	}

	s := &Scheduler{
		cfg:     cfg,
		policy:  NewTierPolicy(cfg),
		predLog: NewPredictionLog(cfg.PredictionLogCap),
		tracker: NewPerformanceTracker(cfg.TrendLookback, cfg.ImprovementThreshold, snapStore, log),
		source:  source,
		backend: backend,
		states:  states,
		outs:    outs,
		log:     log.With().Str("component", "retrain_scheduler").Logger(),
		guard:   make(chan struct{}, 1),
		lastRun: make(map[Tier]time.Time),
		clock:   time.Now,
	}
	s.restoreState()
	return s
}

// Tracker exposes the performance tracker for warm-up and handlers.
func (s *Scheduler) Tracker() *PerformanceTracker {
	return s.tracker
}

// PredictionLog exposes the rolling outcome log.
func (s *Scheduler) PredictionLog() *PredictionLog {
	return s.predLog
}

func (s *Scheduler) restoreState() {
	if s.states == nil {
		return
	}
	states, err := s.states.LoadTierStates()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load tier state, starting fresh")
		return
	}
	s.mu.Lock()
	for tier, ts := range states {
		if tier.Valid() {
			s.lastRun[tier] = ts
		}
	}
	s.mu.Unlock()
}

// ShouldRetrain reports whether the tier is due. The in-flight guard
// dominates every other condition: while any tier is training, nothing
// is due. Otherwise a tier is due when it has never run, when its
// interval has elapsed, or when rolling accuracy over a full evaluation
// window has dropped below the performance threshold.
func (s *Scheduler) ShouldRetrain(tier Tier) bool {
	if !tier.Valid() {
		return false
	}
	if s.guardHeld() {
		return false
	}

	s.mu.Lock()
	last, ran := s.lastRun[tier]
	s.mu.Unlock()

	if !ran {
		return true
	}
	if s.clock().Sub(last) >= s.policy.Interval(tier) {
		return true
	}

	perf := s.predLog.RecentAccuracy(s.cfg.EvaluationWindow)
	if perf.TotalPredictions >= s.cfg.EvaluationWindow && perf.Accuracy < s.cfg.PerformanceThreshold {
		return true
	}
	return false
}

// ExecuteCycle scans tiers cheapest-first and trains the first one
// that is due. At most one tier trains per cycle; errors are folded
// into the result, never propagated.
func (s *Scheduler) ExecuteCycle(ctx context.Context) CycleResult {
	result := CycleResult{CycleID: uuid.NewString()}

	for _, tier := range AllTiers {
		if !s.ShouldRetrain(tier) {
			continue
		}
		if !s.tryAcquireGuard() {
			// Lost the race to a concurrent cycle; nothing to do.
			return result
		}
		return s.runTier(ctx, tier, result.CycleID)
	}
	return result
}

// RunTierNow forces a training run for the given tier, bypassing the
// due checks but still respecting the guard.
func (s *Scheduler) RunTierNow(ctx context.Context, tier Tier) (CycleResult, error) {
	if !tier.Valid() {
		return CycleResult{}, fmt.Errorf("unknown tier: %d", int(tier))
	}
	if !s.tryAcquireGuard() {
		return CycleResult{}, fmt.Errorf("training already in progress")
	}
	return s.runTier(ctx, tier, uuid.NewString()), nil
}

// runTier holds the guard for the full duration: data fetch through
// the last model's metrics being recorded. The caller must have
// acquired the guard.
func (s *Scheduler) runTier(parent context.Context, tier Tier, cycleID string) CycleResult {
	defer s.releaseGuard()

	ctx, cancel := context.WithTimeout(parent, s.cfg.TrainingTimeout)
	defer cancel()

	result := CycleResult{
		CycleID: cycleID,
		Metrics: make(map[string]ml.Metrics),
	}
	started := s.clock()

	s.log.Info().
		Str("cycle_id", cycleID).
		Str("tier", tier.String()).
		Msg("Starting training cycle")

	fs, err := s.source.FetchFeatures(ctx)
	if err != nil {
		result.Error = fmt.Sprintf("training data unavailable: %v", err)
		s.log.Error().Err(err).Str("cycle_id", cycleID).Str("tier", tier.String()).
			Msg("Training cycle aborted before any model ran")
		return result
	}

	for _, kind := range s.policy.ModelSet(tier) {
		metrics, err := s.backend.Train(ctx, kind, fs)
		if err != nil {
			// Metrics from models that already finished stay recorded;
			// the tier itself counts as failed and keeps its old
			// last-run time so the next check retries promptly.
			result.Error = fmt.Sprintf("training %s failed: %v", kind, err)
			s.log.Error().Err(err).
				Str("cycle_id", cycleID).
				Str("tier", tier.String()).
				Str("model", kind.String()).
				Msg("Training cycle failed")
			return result
		}
		s.tracker.SaveMetrics(kind.String(), metrics)
		result.Metrics[kind.String()] = metrics
	}

	completed := s.clock()
	s.setLastRun(tier, completed)
	result.TierRun = &tier

	s.log.Info().
		Str("cycle_id", cycleID).
		Str("tier", tier.String()).
		Int("models", len(result.Metrics)).
		Dur("elapsed", completed.Sub(started)).
		Msg("Training cycle completed")
	return result
}

func (s *Scheduler) setLastRun(tier Tier, ts time.Time) {
	s.mu.Lock()
	s.lastRun[tier] = ts
	s.mu.Unlock()

	if s.states != nil {
		if err := s.states.SaveTierState(tier, ts); err != nil {
			s.log.Error().Err(err).Str("tier", tier.String()).Msg("Failed to persist tier state")
		}
	}
}

func (s *Scheduler) tryAcquireGuard() bool {
	select {
	case s.guard <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Scheduler) releaseGuard() {
	select {
	case <-s.guard:
	default:
		// Guard was not held; nothing to release.
	}
}

func (s *Scheduler) guardHeld() bool {
	return len(s.guard) > 0
}

// ReportOutcome scores a prediction against its materialized outcome,
// appends it to the rolling log, and writes the audit row.
func (s *Scheduler) ReportOutcome(pred domain.Prediction, actual domain.Signal) (PredictionRecord, error) {
	if !pred.Signal.Valid() {
		return PredictionRecord{}, fmt.Errorf("invalid predicted signal: %q", pred.Signal)
	}
	if !actual.Valid() {
		return PredictionRecord{}, fmt.Errorf("invalid actual outcome: %q", actual)
	}

	rec := s.predLog.Record(pred, actual)
	if s.outs != nil {
		if err := s.outs.SaveOutcome(rec); err != nil {
			s.log.Error().Err(err).Msg("Failed to persist prediction outcome")
		}
	}
	return rec, nil
}

// Status returns a point-in-time snapshot of scheduler state for
// introspection and the HTTP API.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	lastTraining := make(map[string]*time.Time, len(AllTiers))
	tiers := make(map[string]TierStatus, len(AllTiers))
	for _, tier := range AllTiers {
		var last *time.Time
		if ts, ok := s.lastRun[tier]; ok {
			t := ts
			last = &t
		}
		lastTraining[tier.String()] = last

		models := s.policy.ModelSet(tier)
		names := make([]string, len(models))
		for i, m := range models {
			names[i] = m.String()
		}
		tiers[tier.String()] = TierStatus{
			Interval: s.policy.Interval(tier).String(),
			LastRun:  last,
			Models:   names,
		}
	}
	s.mu.Unlock()

	return Status{
		TrainingInProgress: s.guardHeld(),
		RecentPerformance:  s.predLog.RecentAccuracy(s.cfg.EvaluationWindow),
		PredictionLogSize:  s.predLog.Size(),
		LastTraining:       lastTraining,
		Tiers:              tiers,
		Config: ConfigView{
			Tier1Interval:        s.cfg.Tier1Interval.String(),
			Tier2Interval:        s.cfg.Tier2Interval.String(),
			Tier3Interval:        s.cfg.Tier3Interval.String(),
			PerformanceThreshold: s.cfg.PerformanceThreshold,
			ImprovementThreshold: s.cfg.ImprovementThreshold,
			EvaluationWindow:     s.cfg.EvaluationWindow,
		},
		ModelTrends: s.tracker.Trends(),
	}
}
