// Package handlers exposes the feedback scheduler over HTTP for
// introspection and manual control.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aaakaind/letsgetcrypto/internal/domain"
	"github.com/aaakaind/letsgetcrypto/internal/feedback"
)

// Handler handles feedback loop HTTP requests
type Handler struct {
	scheduler *feedback.Scheduler
	resolver  *feedback.OutcomeResolver
	log       zerolog.Logger
}

// NewHandler creates a new feedback handler. resolver may be nil when
// automatic outcome resolution is disabled.
func NewHandler(scheduler *feedback.Scheduler, resolver *feedback.OutcomeResolver, log zerolog.Logger) *Handler {
	return &Handler{
		scheduler: scheduler,
		resolver:  resolver,
		log:       log.With().Str("handler", "feedback").Logger(),
	}
}

// HandleStatus handles GET /status - full scheduler state snapshot
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.scheduler.Status())
}

type outcomeRequest struct {
	Signal     string  `json:"signal"`
	Confidence float64 `json:"confidence"`
	Actual     string  `json:"actual"`
}

// HandleOutcome handles POST /outcome - score a prediction against its
// realized outcome
func (h *Handler) HandleOutcome(w http.ResponseWriter, r *http.Request) {
	var req outcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	predicted, err := domain.ParseSignal(req.Signal)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	actual, err := domain.ParseSignal(req.Actual)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		http.Error(w, "confidence must be in [0,1]", http.StatusBadRequest)
		return
	}

	rec, err := h.scheduler.ReportOutcome(
		domain.Prediction{Signal: predicted, Confidence: req.Confidence}, actual)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to record outcome")
		http.Error(w, "Failed to record outcome", http.StatusInternalServerError)
		return
	}

	writeJSON(w, rec)
}

// HandleCycle handles POST /cycle - run one scheduling pass now. With
// ?tier=tierN the due checks are bypassed for that tier.
func (h *Handler) HandleCycle(w http.ResponseWriter, r *http.Request) {
	tierName := r.URL.Query().Get("tier")
	if tierName == "" {
		writeJSON(w, h.scheduler.ExecuteCycle(r.Context()))
		return
	}

	tier, err := feedback.ParseTier(tierName)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.scheduler.RunTierNow(r.Context(), tier)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, result)
}

// HandleHistory handles GET /history - recent scored predictions,
// newest first
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l < 1 || l > 1000 {
			http.Error(w, "Invalid limit. Must be 1-1000", http.StatusBadRequest)
			return
		}
		limit = l
	}

	records := h.scheduler.PredictionLog().Recent(limit)
	if records == nil {
		records = []feedback.PredictionRecord{}
	}
	writeJSON(w, records)
}

// HandleTrend handles GET /trends/{model} - accuracy trend for one model
func (h *Handler) HandleTrend(w http.ResponseWriter, r *http.Request) {
	model := chi.URLParam(r, "model")

	report := h.scheduler.Tracker().Trend(model)
	writeJSON(w, map[string]interface{}{
		"model":       model,
		"trend":       report.Trend,
		"improvement": report.Improvement,
	})
}

type predictionRequest struct {
	Signal         string  `json:"signal"`
	Confidence     float64 `json:"confidence"`
	HorizonMinutes int     `json:"horizon_minutes"`
}

// HandleRegisterPrediction handles POST /predictions - queue a
// prediction for automatic resolution against the market price
func (h *Handler) HandleRegisterPrediction(w http.ResponseWriter, r *http.Request) {
	if h.resolver == nil {
		http.Error(w, "Outcome resolution is disabled", http.StatusServiceUnavailable)
		return
	}

	var req predictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	signal, err := domain.ParseSignal(req.Signal)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		http.Error(w, "confidence must be in [0,1]", http.StatusBadRequest)
		return
	}
	if req.HorizonMinutes < 1 {
		http.Error(w, "horizon_minutes must be positive", http.StatusBadRequest)
		return
	}

	pending, err := h.resolver.RegisterPrediction(r.Context(),
		domain.Prediction{Signal: signal, Confidence: req.Confidence},
		time.Duration(req.HorizonMinutes)*time.Minute)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to register prediction")
		http.Error(w, fmt.Sprintf("Failed to register prediction: %v", err), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(pending)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
