package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/gregmartell-atlan/mdlh-engine/pkg/models"
	"github.com/gregmartell-atlan/mdlh-engine/pkg/services"
)

// PivotHandler serves pivot feedback collection endpoints.
type PivotHandler struct {
	feedback services.PivotFeedbackService
	logger   *zap.Logger
}

// NewPivotHandler creates a new PivotHandler.
func NewPivotHandler(feedback services.PivotFeedbackService, logger *zap.Logger) *PivotHandler {
	return &PivotHandler{feedback: feedback, logger: logger}
}

// RegisterRoutes registers the pivot routes on the given mux.
func (h *PivotHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/pivots/feedback", h.Record)
	mux.HandleFunc("GET /api/pivots/{pid}/feedback/summary", h.Summary)
}

// Record stores one feedback entry.
func (h *PivotHandler) Record(w http.ResponseWriter, r *http.Request) {
	var fb models.PivotFeedback
	if err := json.NewDecoder(r.Body).Decode(&fb); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	id, err := h.feedback.Record(r.Context(), fb)
	if err != nil {
		_ = WriteError(w, err)
		return
	}
	h.logger.Info("pivot feedback recorded", zap.String("pivot_id", fb.PivotID), zap.String("feedback_id", id))
	_ = WriteJSON(w, http.StatusCreated, map[string]string{"feedback_id": id})
}

// Summary aggregates all feedback for one pivot.
func (h *PivotHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.feedback.Summary(r.Context(), r.PathValue("pid"))
	if err != nil {
		_ = WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, summary)
}
