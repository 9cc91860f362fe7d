package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "privloc/internal/domain/analytics"
	"privloc/internal/domain/privacy"
	"privloc/internal/service/analytics"
)

// AnalyticsHandler handles event-tracking HTTP requests
type AnalyticsHandler struct {
	tracker *analytics.Tracker
	cohorts *analytics.CohortEngine
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(tracker *analytics.Tracker, cohorts *analytics.CohortEngine) *AnalyticsHandler {
	return &AnalyticsHandler{
		tracker: tracker,
		cohorts: cohorts,
	}
}

// trackEventRequest carries one interaction to record.
type trackEventRequest struct {
	Type       string            `json:"type"`
	Name       string            `json:"name"`
	Properties map[string]string `json:"properties"`
}

// TrackEvent records an interaction. Without analytics consent this still
// returns 202: the no-op is silent by contract.
func (h *AnalyticsHandler) TrackEvent(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, "Missing user ID", nil)
		return
	}

	var req trackEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid event", err)
		return
	}

	if err := h.tracker.TrackEvent(r.Context(), userID, domain.EventType(req.Type), req.Name, req.Properties); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to track event", err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// GetInsights returns the aggregate behavioral summary for a user
func (h *AnalyticsHandler) GetInsights(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, "Missing user ID", nil)
		return
	}

	insights, err := h.tracker.Insights(r.Context(), userID)
	if err != nil {
		if errors.Is(err, privacy.ErrInsufficientData) {
			respondWithError(w, http.StatusUnprocessableEntity, "Not enough data", nil)
		} else {
			respondWithError(w, http.StatusInternalServerError, "Failed to compute insights", err)
		}
		return
	}

	respondWithJSON(w, http.StatusOK, insights)
}

// ListCohorts returns the active cohort definitions
func (h *AnalyticsHandler) ListCohorts(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.cohorts.Definitions())
}
