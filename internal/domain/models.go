// Package domain contains the core value types shared across the feedback
// loop service. The domain layer is pure: no infrastructure dependencies.
package domain

import (
	"fmt"
	"time"
)

// Signal is a directional trading signal produced by the model ensemble.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// Valid returns true for one of the known signal values.
func (s Signal) Valid() bool {
	switch s {
	case SignalBuy, SignalSell, SignalHold:
		return true
	}
	return false
}

// ParseSignal converts a string into a Signal, rejecting unknown values.
func ParseSignal(raw string) (Signal, error) {
	s := Signal(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown signal %q", raw)
	}
	return s, nil
}

// Prediction is one directional call made by the ensemble, with its
// aggregate confidence in [0,1].
type Prediction struct {
	Signal     Signal  `json:"signal"`
	Confidence float64 `json:"confidence"`
}

// PricePoint is one observation in a market data series.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	MarketCap float64   `json:"market_cap"`
}

// FeatureSet is a prepared training matrix: one row per observation, one
// label per row (1 = price rose in the next period, 0 = it did not).
type FeatureSet struct {
	Columns    []string    `json:"columns"`
	Rows       [][]float64 `json:"rows"`
	Labels     []int       `json:"labels"`
	Timestamps []time.Time `json:"timestamps"`
}

// Len returns the number of observations in the set.
func (fs *FeatureSet) Len() int {
	return len(fs.Rows)
}
