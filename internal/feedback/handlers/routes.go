package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the feedback endpoints on the given router.
// The server mounts this under /api/feedback.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/status", h.HandleStatus)
	r.Post("/outcome", h.HandleOutcome)
	r.Post("/cycle", h.HandleCycle)
	r.Get("/history", h.HandleHistory)
	r.Get("/trends/{model}", h.HandleTrend)
	r.Post("/predictions", h.HandleRegisterPrediction)
}
