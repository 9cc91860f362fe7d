package location

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"privloc/internal/domain/consent"
	"privloc/internal/domain/location"
	"privloc/internal/domain/privacy"
	geoservice "privloc/internal/service/geo"
	privacyservice "privloc/internal/service/privacy"
)

// ManagerConfig contains configuration for the location privacy manager.
type ManagerConfig struct {
	Noise privacyservice.NoiseConfig
}

// Manager runs the location privacy pipeline. A raw fix enters, gets rejected
// or noised, and only the privacy-bounded derivation is ever stored.
type Manager struct {
	noise    *privacyservice.NoiseGenerator
	approx   *geoservice.ApproximationService
	zones    *geoservice.ZoneManager
	store    location.Store
	consents consent.Manager
	config   ManagerConfig
}

// NewManager wires the pipeline stages together.
func NewManager(
	noise *privacyservice.NoiseGenerator,
	approx *geoservice.ApproximationService,
	zones *geoservice.ZoneManager,
	store location.Store,
	consents consent.Manager,
	config ManagerConfig,
) *Manager {
	if config.Noise.Epsilon == 0 {
		config.Noise = privacyservice.DefaultNoiseConfig()
	}

	return &Manager{
		noise:    noise,
		approx:   approx,
		zones:    zones,
		store:    store,
		consents: consents,
		config:   config,
	}
}

// UpdateLocation validates a raw fix, perturbs it, derives the approximate
// location, geohash and zone memberships, and persists the result under a
// retention policy fixed by the privacy level.
func (m *Manager) UpdateLocation(
	ctx context.Context,
	userID string,
	raw location.Coordinates,
	level location.PrivacyLevel,
) (*location.Record, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("level %q: %w", level, privacy.ErrPrivacyViolation)
	}
	if !m.consents.HasConsent(ctx, userID, consent.CategoryLocation) {
		return nil, &privacy.ViolationError{Reason: "location consent not granted"}
	}

	noised, err := m.noise.ApplyNoise(raw, m.config.Noise)
	if err != nil {
		return nil, err
	}

	geohash, err := m.approx.Encode(noised, level)
	if err != nil {
		return nil, err
	}

	approx, err := m.approx.BuildApproximateLocation(ctx, noised, level)
	if err != nil {
		return nil, err
	}

	zones, err := m.zones.DetermineZones(ctx, approx, level)
	if err != nil {
		// Zone lookup failure degrades to no zones; the record itself is
		// still worth storing.
		log.Printf("zone determination degraded for user: %v", err)
		zones = nil
	}

	rec := location.Record{
		UserID:      userID,
		Approximate: approx,
		Level:       level,
		Geohash:     geohash,
		Zones:       zones,
		LastUpdated: time.Now().UTC(),
		Retention:   CreateRetentionPolicy(level),
	}

	if err := m.store.SaveRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("saving location record: %w", err)
	}

	return &rec, nil
}

// GetRecord reads the stored record, retrying a failed read once.
func (m *Manager) GetRecord(ctx context.Context, userID string) (*location.Record, error) {
	rec, err := m.store.GetRecord(ctx, userID)
	if err != nil && !errors.Is(err, privacy.ErrNotFound) {
		rec, err = m.store.GetRecord(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetPreferences returns stored matching preferences, falling back to
// defaults when the user never configured any.
func (m *Manager) GetPreferences(ctx context.Context, userID string) (location.MatchingPreferences, error) {
	prefs, err := m.store.GetPreferences(ctx, userID)
	if err != nil {
		if errors.Is(err, privacy.ErrNotFound) {
			return location.DefaultPreferences(userID), nil
		}

		// One transparent retry for reads.
		prefs, err = m.store.GetPreferences(ctx, userID)
		if err != nil {
			if errors.Is(err, privacy.ErrNotFound) {
				return location.DefaultPreferences(userID), nil
			}
			return location.MatchingPreferences{}, fmt.Errorf("reading preferences: %w", err)
		}
	}

	return *prefs, nil
}

// SetPreferences stores an explicit preference update. Preferences are never
// inferred or silently modified.
func (m *Manager) SetPreferences(ctx context.Context, prefs location.MatchingPreferences) error {
	if prefs.UserID == "" {
		return fmt.Errorf("preferences require a user id")
	}
	if prefs.MaxDistanceKm <= 0 {
		prefs.MaxDistanceKm = location.DefaultPreferences(prefs.UserID).MaxDistanceKm
	}

	if err := m.store.SavePreferences(ctx, prefs); err != nil {
		return fmt.Errorf("saving preferences: %w", err)
	}
	return nil
}

// EraseUser removes every location artifact for a user. Deleting the record
// cascades to zone membership; preferences are removed explicitly.
func (m *Manager) EraseUser(ctx context.Context, userID string) error {
	if err := m.store.DeleteRecord(ctx, userID); err != nil && !errors.Is(err, privacy.ErrNotFound) {
		return fmt.Errorf("deleting location record: %w", err)
	}
	if err := m.store.DeletePreferences(ctx, userID); err != nil && !errors.Is(err, privacy.ErrNotFound) {
		return fmt.Errorf("deleting preferences: %w", err)
	}
	return nil
}

// CreateRetentionPolicy fixes the retention ceiling for a privacy level.
// Retention shrinks as precision grows: minimal keeps a year, precise a week.
func CreateRetentionPolicy(level location.PrivacyLevel) location.RetentionPolicy {
	return location.RetentionPolicy{
		MaxRetentionDays: level.RetentionDays(),
		AutoDelete:       true,
		Purposes:         []string{"matching", "discovery"},
	}
}
