package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaakaind/letsgetcrypto/internal/domain"
)

func sampleFeatureSet() *domain.FeatureSet {
	return &domain.FeatureSet{
		Columns: []string{"rsi", "macd"},
		Rows:    [][]float64{{55.0, 0.2}, {60.0, -0.1}},
		Labels:  []int{1, 0},
	}
}

func TestModelKindNames(t *testing.T) {
	assert.Equal(t, "logistic", ModelLogistic.String())
	assert.Equal(t, "xgboost", ModelXGBoost.String())
	assert.Equal(t, "lstm", ModelLSTM.String())

	kind, err := ParseModelKind("xgboost")
	require.NoError(t, err)
	assert.Equal(t, ModelXGBoost, kind)

	_, err = ParseModelKind("perceptron")
	assert.Error(t, err)
}

func TestServiceClientTrain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/models/logistic/train", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req TrainRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Rows, 2)
		assert.Equal(t, []int{1, 0}, req.Labels)

		fmt.Fprint(w, `{"metrics": {"accuracy": 0.71, "precision": 0.68}, "elapsed_seconds": 1.5}`)
	}))
	defer srv.Close()

	c := NewServiceClient(srv.URL, zerolog.Nop())

	metrics, err := c.Train(context.Background(), ModelLogistic, sampleFeatureSet())
	require.NoError(t, err)
	assert.Equal(t, 0.71, metrics.Accuracy())
	assert.Equal(t, 0.68, metrics["precision"])
}

func TestServiceClientTrainRejectsMissingAccuracy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"metrics": {"precision": 0.68}}`)
	}))
	defer srv.Close()

	c := NewServiceClient(srv.URL, zerolog.Nop())

	_, err := c.Train(context.Background(), ModelLogistic, sampleFeatureSet())
	assert.Error(t, err)
}

func TestServiceClientTrainPropagatesServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "fit diverged", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewServiceClient(srv.URL, zerolog.Nop())

	_, err := c.Train(context.Background(), ModelLSTM, sampleFeatureSet())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestServiceClientTrainRejectsEmptyFeatureSet(t *testing.T) {
	c := NewServiceClient("http://localhost:0", zerolog.Nop())

	_, err := c.Train(context.Background(), ModelLogistic, &domain.FeatureSet{})
	assert.Error(t, err)
}
