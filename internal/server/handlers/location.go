package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"privloc/internal/domain/location"
	"privloc/internal/domain/privacy"
)

// LocationHandler handles location-related HTTP requests
type LocationHandler struct {
	locations location.Manager
}

// NewLocationHandler creates a new location handler
func NewLocationHandler(locations location.Manager) *LocationHandler {
	return &LocationHandler{
		locations: locations,
	}
}

// updateLocationRequest carries a raw fix. It exists only for the duration of
// the request; the manager stores nothing rawer than the noised derivation.
type updateLocationRequest struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	PrivacyLevel string  `json:"privacyLevel"`
}

// UpdateLocation runs the privacy pipeline on a raw fix
func (h *LocationHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, "Missing user ID", nil)
		return
	}

	var req updateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid location update", err)
		return
	}

	rec, err := h.locations.UpdateLocation(
		r.Context(),
		userID,
		location.Coordinates{Latitude: req.Latitude, Longitude: req.Longitude},
		location.PrivacyLevel(req.PrivacyLevel),
	)
	if err != nil {
		switch {
		case errors.Is(err, privacy.ErrPrivacyViolation):
			respondWithError(w, http.StatusForbidden, "Privacy settings forbid this update", nil)
		case errors.Is(err, privacy.ErrInvalidCoordinates), errors.Is(err, privacy.ErrSuspiciousCoordinates):
			respondWithError(w, http.StatusBadRequest, "Coordinates rejected", nil)
		default:
			respondWithError(w, http.StatusInternalServerError, "Failed to update location", err)
		}
		return
	}

	respondWithJSON(w, http.StatusOK, rec)
}

// GetLocation returns the privacy-bounded location record
func (h *LocationHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, "Missing user ID", nil)
		return
	}

	rec, err := h.locations.GetRecord(r.Context(), userID)
	if err != nil {
		if errors.Is(err, privacy.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "No location record", nil)
		} else {
			respondWithError(w, http.StatusInternalServerError, "Failed to get location", err)
		}
		return
	}

	respondWithJSON(w, http.StatusOK, rec)
}

// EraseUser removes all location artifacts for a user (GDPR erasure)
func (h *LocationHandler) EraseUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, "Missing user ID", nil)
		return
	}

	if err := h.locations.EraseUser(r.Context(), userID); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to erase location data", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetPreferences returns matching preferences, defaults applied
func (h *LocationHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, "Missing user ID", nil)
		return
	}

	prefs, err := h.locations.GetPreferences(r.Context(), userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get preferences", err)
		return
	}

	respondWithJSON(w, http.StatusOK, prefs)
}

// SetPreferences stores an explicit preference update
func (h *LocationHandler) SetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, "Missing user ID", nil)
		return
	}

	var prefs location.MatchingPreferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid preferences", err)
		return
	}
	prefs.UserID = userID

	if err := h.locations.SetPreferences(r.Context(), prefs); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to save preferences", err)
		return
	}

	respondWithJSON(w, http.StatusOK, prefs)
}
