// Package ml provides the model-training backend abstraction. Training is
// delegated to an external service; models are opaque train-and-score
// capabilities identified by kind.
package ml

import (
	"context"
	"fmt"

	"github.com/aaakaind/letsgetcrypto/internal/domain"
)

// ModelKind identifies one of the classifier kinds the training service offers.
type ModelKind int

const (
	// ModelLogistic is the cheapest baseline classifier.
	ModelLogistic ModelKind = iota
	// ModelXGBoost is the stronger gradient-boosted classifier.
	ModelXGBoost
	// ModelLSTM is the expensive sequence model.
	ModelLSTM
)

// String returns the model name used in metrics, persistence and API paths.
func (k ModelKind) String() string {
	switch k {
	case ModelLogistic:
		return "logistic"
	case ModelXGBoost:
		return "xgboost"
	case ModelLSTM:
		return "lstm"
	default:
		return "unknown"
	}
}

// ParseModelKind converts a model name back into a ModelKind.
func ParseModelKind(name string) (ModelKind, error) {
	switch name {
	case "logistic":
		return ModelLogistic, nil
	case "xgboost":
		return ModelXGBoost, nil
	case "lstm":
		return ModelLSTM, nil
	default:
		return 0, fmt.Errorf("unknown model kind %q", name)
	}
}

// Metrics holds the evaluation metrics reported for one trained model.
// "accuracy" is the primary metric and is always present on success.
type Metrics map[string]float64

// Accuracy returns the primary metric.
func (m Metrics) Accuracy() float64 {
	return m["accuracy"]
}

// Backend trains one model kind on a prepared feature set and returns its
// evaluation metrics. Implementations must honor context cancellation.
type Backend interface {
	Train(ctx context.Context, kind ModelKind, fs *domain.FeatureSet) (Metrics, error)
}
