package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"privloc/internal/domain/privacy"
	"privloc/internal/service/match"
)

// MatchHandler handles compatibility-scoring HTTP requests
type MatchHandler struct {
	scorer *match.Scorer
}

// NewMatchHandler creates a new match handler
func NewMatchHandler(scorer *match.Scorer) *MatchHandler {
	return &MatchHandler{
		scorer: scorer,
	}
}

// ScoreCandidate scores one candidate pair
func (h *MatchHandler) ScoreCandidate(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	targetID := chi.URLParam(r, "targetID")
	if userID == "" || targetID == "" {
		respondWithError(w, http.StatusBadRequest, "Missing user or target ID", nil)
		return
	}

	result, err := h.scorer.ScoreCandidate(r.Context(), userID, targetID)
	if err != nil {
		switch {
		case errors.Is(err, privacy.ErrPrivacyViolation):
			respondWithError(w, http.StatusForbidden, "Match refused by privacy settings", nil)
		case errors.Is(err, privacy.ErrInsufficientData), errors.Is(err, privacy.ErrNotFound):
			respondWithError(w, http.StatusNotFound, "Not enough location data to score", nil)
		default:
			respondWithError(w, http.StatusInternalServerError, "Failed to score candidate", err)
		}
		return
	}
	if result == nil {
		// Location-based matching disabled on one side: a refusal, not a
		// zero score.
		respondWithError(w, http.StatusForbidden, "Location-based matching disabled", nil)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// scoreBatchRequest names the candidates to score against the user.
type scoreBatchRequest struct {
	CandidateIDs []string `json:"candidateIds"`
}

// ScoreBatch scores many candidates, skipping per-candidate failures
func (h *MatchHandler) ScoreBatch(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, "Missing user ID", nil)
		return
	}

	var req scoreBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid batch request", err)
		return
	}

	results, err := h.scorer.ScoreBatch(r.Context(), userID, req.CandidateIDs)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to score batch", err)
		return
	}

	respondWithJSON(w, http.StatusOK, results)
}
