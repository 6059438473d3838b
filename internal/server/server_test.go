package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaakaind/letsgetcrypto/internal/config"
	"github.com/aaakaind/letsgetcrypto/internal/domain"
	"github.com/aaakaind/letsgetcrypto/internal/feedback"
	feedbackhandlers "github.com/aaakaind/letsgetcrypto/internal/feedback/handlers"
	"github.com/aaakaind/letsgetcrypto/internal/ml"
	apptesting "github.com/aaakaind/letsgetcrypto/internal/testing"
)

type noopSource struct{}

func (noopSource) FetchFeatures(ctx context.Context) (*domain.FeatureSet, error) {
	return &domain.FeatureSet{Columns: []string{"close"}, Rows: [][]float64{{1}}, Labels: []int{1}}, nil
}

type noopBackend struct{}

func (noopBackend) Train(ctx context.Context, kind ml.ModelKind, fs *domain.FeatureSet) (ml.Metrics, error) {
	return ml.Metrics{"accuracy": 0.7}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	feedbackDB, cleanupFeedback := apptesting.NewTestDB(t, "feedback")
	t.Cleanup(cleanupFeedback)
	cacheDB, cleanupCache := apptesting.NewTestDB(t, "cache")
	t.Cleanup(cleanupCache)

	cfg := config.SchedulerConfig{
		Tier1Interval:        time.Hour,
		Tier2Interval:        24 * time.Hour,
		Tier3Interval:        168 * time.Hour,
		PerformanceThreshold: 0.5,
		ImprovementThreshold: 0.01,
		EvaluationWindow:     10,
		PredictionLogCap:     1000,
		TrendLookback:        3,
		TrainingTimeout:      time.Minute,
	}
	sched := feedback.NewScheduler(cfg, noopSource{}, noopBackend{}, nil, nil, zerolog.Nop())
	handler := feedbackhandlers.NewHandler(sched, nil, zerolog.Nop())

	return New(Config{
		Port:       0,
		Log:        zerolog.Nop(),
		FeedbackDB: feedbackDB,
		CacheDB:    cacheDB,
		Feedback:   handler,
		DevMode:    true,
	})
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestSystemHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/system/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "uptime_seconds")
	assert.Contains(t, body, "databases")

	databases := body["databases"].(map[string]interface{})
	feedbackHealth := databases["feedback"].(map[string]interface{})
	assert.Equal(t, true, feedbackHealth["healthy"])
}

func TestFeedbackRoutesMounted(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/feedback/status", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var status feedback.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Contains(t, status.Tiers, "tier1")
}
