package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"privloc/internal/domain/consent"
)

// ConsentHandler handles consent-related HTTP requests
type ConsentHandler struct {
	consents consent.Manager
}

// NewConsentHandler creates a new consent handler
func NewConsentHandler(consents consent.Manager) *ConsentHandler {
	return &ConsentHandler{
		consents: consents,
	}
}

// GetConsent returns the user's consent record
func (h *ConsentHandler) GetConsent(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, "Missing user ID", nil)
		return
	}

	rec, err := h.consents.Get(r.Context(), userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get consent", err)
		return
	}
	if rec == nil {
		respondWithError(w, http.StatusNotFound, "No consent record", nil)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"record": rec,
		"stale":  h.consents.IsStale(rec),
	})
}

// SetConsent applies a partial consent update
func (h *ConsentHandler) SetConsent(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, "Missing user ID", nil)
		return
	}

	var update consent.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid consent update", err)
		return
	}

	rec, err := h.consents.Set(r.Context(), userID, update)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to update consent", err)
		return
	}

	respondWithJSON(w, http.StatusOK, rec)
}
