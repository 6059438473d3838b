package feedback

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/aaakaind/letsgetcrypto/internal/domain"
)

// Repository persists retraining telemetry and scheduler state in
// feedback.db. Snapshots and outcomes are append-only audit trails;
// tier_state makes last-run times survive restarts.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a feedback repository over an open database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// SaveSnapshot appends a metric snapshot. Metrics are stored as a
// msgpack blob so new metric names never need a schema change.
func (r *Repository) SaveSnapshot(snap MetricSnapshot) error {
	blob, err := msgpack.Marshal(snap.Metrics)
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}

	_, err = r.db.Exec(
		"INSERT INTO metric_snapshots (model_name, recorded_at, metrics) VALUES (?, ?, ?)",
		snap.ModelName, snap.Timestamp.Unix(), blob,
	)
	if err != nil {
		return fmt.Errorf("failed to save metric snapshot: %w", err)
	}
	return nil
}

// RecentSnapshots returns up to limit snapshots across all models,
// oldest first, for warming the in-memory tracker on startup.
func (r *Repository) RecentSnapshots(limit int) ([]MetricSnapshot, error) {
	rows, err := r.db.Query(
		`SELECT model_name, recorded_at, metrics FROM metric_snapshots
		 ORDER BY recorded_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query metric snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []MetricSnapshot
	for rows.Next() {
		var (
			snap MetricSnapshot
			ts   int64
			blob []byte
		)
		if err := rows.Scan(&snap.ModelName, &ts, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan metric snapshot: %w", err)
		}
		if err := msgpack.Unmarshal(blob, &snap.Metrics); err != nil {
			return nil, fmt.Errorf("failed to decode metrics: %w", err)
		}
		snap.Timestamp = time.Unix(ts, 0)
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order.
	for i, j := 0, len(snaps)-1; i < j; i, j = i+1, j-1 {
		snaps[i], snaps[j] = snaps[j], snaps[i]
	}
	return snaps, nil
}

// SaveOutcome appends a scored prediction to the audit trail.
func (r *Repository) SaveOutcome(rec PredictionRecord) error {
	correct := 0
	if rec.Correct {
		correct = 1
	}

	_, err := r.db.Exec(
		`INSERT INTO prediction_outcomes (predicted_signal, confidence, actual_outcome, correct, recorded_at)
		 VALUES (?, ?, ?, ?, ?)`,
		string(rec.Predicted), rec.Confidence, string(rec.Actual), correct, rec.Timestamp.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save prediction outcome: %w", err)
	}
	return nil
}

// RecentOutcomes returns up to limit scored predictions, oldest first.
func (r *Repository) RecentOutcomes(limit int) ([]PredictionRecord, error) {
	rows, err := r.db.Query(
		`SELECT predicted_signal, confidence, actual_outcome, correct, recorded_at
		 FROM prediction_outcomes ORDER BY recorded_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query prediction outcomes: %w", err)
	}
	defer rows.Close()

	var recs []PredictionRecord
	for rows.Next() {
		var (
			rec       PredictionRecord
			predicted string
			actual    string
			correct   int
			ts        int64
		)
		if err := rows.Scan(&predicted, &rec.Confidence, &actual, &correct, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan prediction outcome: %w", err)
		}
		rec.Predicted = domain.Signal(predicted)
		rec.Actual = domain.Signal(actual)
		rec.Correct = correct != 0
		rec.Timestamp = time.Unix(ts, 0)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	return recs, nil
}

// SaveTierState upserts a tier's last successful run time.
func (r *Repository) SaveTierState(tier Tier, lastRun time.Time) error {
	_, err := r.db.Exec(
		"INSERT OR REPLACE INTO tier_state (tier_id, last_run) VALUES (?, ?)",
		int(tier), lastRun.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save tier state: %w", err)
	}
	return nil
}

// LoadTierStates returns the persisted last-run time per tier. Tiers
// that never ran are absent from the map.
func (r *Repository) LoadTierStates() (map[Tier]time.Time, error) {
	rows, err := r.db.Query("SELECT tier_id, last_run FROM tier_state WHERE last_run IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("failed to query tier state: %w", err)
	}
	defer rows.Close()

	states := make(map[Tier]time.Time)
	for rows.Next() {
		var (
			tierID int
			ts     int64
		)
		if err := rows.Scan(&tierID, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan tier state: %w", err)
		}
		states[Tier(tierID)] = time.Unix(ts, 0)
	}
	return states, rows.Err()
}

// PendingPrediction is a prediction awaiting resolution against the
// market price at its resolve time.
type PendingPrediction struct {
	ID         string        `json:"id"`
	Symbol     string        `json:"symbol"`
	Signal     domain.Signal `json:"signal"`
	Confidence float64       `json:"confidence"`
	EntryPrice float64       `json:"entry_price"`
	ResolveAt  time.Time     `json:"resolve_at"`
	CreatedAt  time.Time     `json:"created_at"`
}

// SavePending stores a prediction for later resolution.
func (r *Repository) SavePending(p PendingPrediction) error {
	_, err := r.db.Exec(
		`INSERT INTO pending_predictions (id, symbol, signal, confidence, entry_price, resolve_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Symbol, string(p.Signal), p.Confidence, p.EntryPrice, p.ResolveAt.Unix(), p.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save pending prediction: %w", err)
	}
	return nil
}

// DuePending returns predictions whose resolve time has passed.
func (r *Repository) DuePending(now time.Time) ([]PendingPrediction, error) {
	rows, err := r.db.Query(
		`SELECT id, symbol, signal, confidence, entry_price, resolve_at, created_at
		 FROM pending_predictions WHERE resolve_at <= ? ORDER BY resolve_at`, now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending predictions: %w", err)
	}
	defer rows.Close()

	var pending []PendingPrediction
	for rows.Next() {
		var (
			p         PendingPrediction
			signal    string
			resolveAt int64
			createdAt int64
		)
		if err := rows.Scan(&p.ID, &p.Symbol, &signal, &p.Confidence, &p.EntryPrice, &resolveAt, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan pending prediction: %w", err)
		}
		p.Signal = domain.Signal(signal)
		p.ResolveAt = time.Unix(resolveAt, 0)
		p.CreatedAt = time.Unix(createdAt, 0)
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// DeletePending removes a resolved prediction.
func (r *Repository) DeletePending(id string) error {
	_, err := r.db.Exec("DELETE FROM pending_predictions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete pending prediction: %w", err)
	}
	return nil
}

var _ SnapshotStore = (*Repository)(nil)
