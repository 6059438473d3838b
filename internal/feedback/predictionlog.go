package feedback

import (
	"sync"
	"time"

	"github.com/aaakaind/letsgetcrypto/internal/domain"
)

// PredictionRecord is one scored prediction: what the model said,
// what actually happened, and whether they agree.
type PredictionRecord struct {
	Timestamp  time.Time     `json:"timestamp"`
	Predicted  domain.Signal `json:"predicted"`
	Confidence float64       `json:"confidence"`
	Actual     domain.Signal `json:"actual"`
	Correct    bool          `json:"correct"`
}

// AccuracySummary is the rolling accuracy over a recent window.
type AccuracySummary struct {
	Accuracy         float64 `json:"accuracy"`
	TotalPredictions int     `json:"total_predictions"`
}

// PredictionLog is a fixed-capacity FIFO log of scored predictions.
// When full, recording a new outcome evicts the oldest one.
type PredictionLog struct {
	mu      sync.Mutex
	records []PredictionRecord // ring storage
	head    int                // index of oldest record
	size    int
	clock   func() time.Time
}

// NewPredictionLog creates a log holding at most capacity records.
func NewPredictionLog(capacity int) *PredictionLog {
	return &PredictionLog{
		records: make([]PredictionRecord, capacity),
		clock:   time.Now,
	}
}

// Record scores a prediction against its actual outcome and appends
// the result, evicting the oldest record if the log is full.
func (l *PredictionLog) Record(pred domain.Prediction, actual domain.Signal) PredictionRecord {
	rec := PredictionRecord{
		Timestamp:  l.clock(),
		Predicted:  pred.Signal,
		Confidence: pred.Confidence,
		Actual:     actual,
		Correct:    pred.Signal == actual,
	}
	l.append(rec)
	return rec
}

// Restore re-inserts a previously persisted record, keeping its
// original timestamp. Used to warm the log on startup.
func (l *PredictionLog) Restore(rec PredictionRecord) {
	l.append(rec)
}

func (l *PredictionLog) append(rec PredictionRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.size < len(l.records) {
		l.records[(l.head+l.size)%len(l.records)] = rec
		l.size++
		return
	}
	// Full: overwrite the oldest slot and advance the head.
	l.records[l.head] = rec
	l.head = (l.head + 1) % len(l.records)
}

// RecentAccuracy computes accuracy over the most recent window records.
// If fewer than window records exist, the accuracy is reported as 0.0
// alongside the actual count, so callers never act on a rolling figure
// computed from too little data.
func (l *PredictionLog) RecentAccuracy(window int) AccuracySummary {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.size < window {
		return AccuracySummary{Accuracy: 0.0, TotalPredictions: l.size}
	}

	correct := 0
	for i := l.size - window; i < l.size; i++ {
		if l.records[(l.head+i)%len(l.records)].Correct {
			correct++
		}
	}
	return AccuracySummary{
		Accuracy:         float64(correct) / float64(window),
		TotalPredictions: window,
	}
}

// Size returns the number of records currently held.
func (l *PredictionLog) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// Recent returns up to limit records, newest first.
func (l *PredictionLog) Recent(limit int) []PredictionRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.size
	if limit < n {
		n = limit
	}
	out := make([]PredictionRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, l.records[(l.head+l.size-1-i)%len(l.records)])
	}
	return out
}
