package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"privloc/internal/domain/location"
	"privloc/internal/domain/privacy"
)

// LocationStore persists privacy-bounded location records, matching
// preferences and zone membership aggregates on Postgres. Only derived,
// privacy-bounded data ever reaches this store; raw coordinates never do.
type LocationStore struct {
	db *pgxpool.Pool
}

// NewLocationStore creates a new location store.
func NewLocationStore(db *pgxpool.Pool) *LocationStore {
	return &LocationStore{
		db: db,
	}
}

// GetRecord retrieves a location record by user id.
func (s *LocationStore) GetRecord(ctx context.Context, userID string) (*location.Record, error) {
	query := `
		SELECT user_id, city, region, country, range_lat, range_lng, range_radius_km,
		       privacy_level, geohash, zones, last_updated,
		       retention_days, auto_delete, purposes
		FROM location_records
		WHERE user_id = $1
	`

	var rec location.Record
	var level string
	var rangeLat, rangeLng, rangeRadius *float64
	var zonesJSON []byte

	err := s.db.QueryRow(ctx, query, userID).Scan(
		&rec.UserID,
		&rec.Approximate.City,
		&rec.Approximate.Region,
		&rec.Approximate.Country,
		&rangeLat,
		&rangeLng,
		&rangeRadius,
		&level,
		&rec.Geohash,
		&zonesJSON,
		&rec.LastUpdated,
		&rec.Retention.MaxRetentionDays,
		&rec.Retention.AutoDelete,
		&rec.Retention.Purposes,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, privacy.ErrNotFound
		}
		return nil, storageErr("querying location record", err)
	}

	rec.Level = location.PrivacyLevel(level)

	if rangeLat != nil && rangeLng != nil && rangeRadius != nil {
		rec.Approximate.Range = &location.CoordinateRange{
			Center:   location.Coordinates{Latitude: *rangeLat, Longitude: *rangeLng},
			RadiusKm: *rangeRadius,
		}
	}

	if len(zonesJSON) > 0 {
		if err := json.Unmarshal(zonesJSON, &rec.Zones); err != nil {
			return nil, fmt.Errorf("unmarshaling zones: %w", err)
		}
	}

	return &rec, nil
}

// SaveRecord upserts a location record and its zone memberships.
func (s *LocationStore) SaveRecord(ctx context.Context, rec location.Record) error {
	query := `
		INSERT INTO location_records (
			user_id, city, region, country, range_lat, range_lng, range_radius_km,
			privacy_level, geohash, zones, last_updated,
			retention_days, auto_delete, purposes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (user_id) DO UPDATE
		SET
			city = $2,
			region = $3,
			country = $4,
			range_lat = $5,
			range_lng = $6,
			range_radius_km = $7,
			privacy_level = $8,
			geohash = $9,
			zones = $10,
			last_updated = $11,
			retention_days = $12,
			auto_delete = $13,
			purposes = $14
	`

	var rangeLat, rangeLng, rangeRadius *float64
	if rec.Approximate.Range != nil {
		rangeLat = &rec.Approximate.Range.Center.Latitude
		rangeLng = &rec.Approximate.Range.Center.Longitude
		rangeRadius = &rec.Approximate.Range.RadiusKm
	}

	zonesJSON, err := json.Marshal(rec.Zones)
	if err != nil {
		return fmt.Errorf("marshaling zones: %w", err)
	}

	_, err = s.db.Exec(
		ctx,
		query,
		rec.UserID,
		rec.Approximate.City,
		rec.Approximate.Region,
		rec.Approximate.Country,
		rangeLat,
		rangeLng,
		rangeRadius,
		string(rec.Level),
		rec.Geohash,
		zonesJSON,
		rec.LastUpdated,
		rec.Retention.MaxRetentionDays,
		rec.Retention.AutoDelete,
		rec.Retention.Purposes,
	)

	if err != nil {
		return storageErr("upserting location record", err)
	}

	return nil
}

// DeleteRecord removes a user's location record. Zone membership lives in the
// same row, so the cascade is a single delete.
func (s *LocationStore) DeleteRecord(ctx context.Context, userID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM location_records WHERE user_id = $1`, userID)
	if err != nil {
		return storageErr("deleting location record", err)
	}
	if tag.RowsAffected() == 0 {
		return privacy.ErrNotFound
	}
	return nil
}

// GetPreferences retrieves matching preferences by user id.
func (s *LocationStore) GetPreferences(ctx context.Context, userID string) (*location.MatchingPreferences, error) {
	query := `
		SELECT user_id, max_distance_km, preferred_zones, avoided_zones,
		       travel_willingness, location_importance, privacy_settings
		FROM matching_preferences
		WHERE user_id = $1
	`

	var prefs location.MatchingPreferences
	var willingness string
	var privacyJSON []byte

	err := s.db.QueryRow(ctx, query, userID).Scan(
		&prefs.UserID,
		&prefs.MaxDistanceKm,
		&prefs.PreferredZones,
		&prefs.AvoidedZones,
		&willingness,
		&prefs.LocationImportance,
		&privacyJSON,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, privacy.ErrNotFound
		}
		return nil, storageErr("querying preferences", err)
	}

	prefs.TravelWillingness = location.TravelWillingness(willingness)

	if len(privacyJSON) > 0 {
		if err := json.Unmarshal(privacyJSON, &prefs.Privacy); err != nil {
			return nil, fmt.Errorf("unmarshaling privacy settings: %w", err)
		}
	}

	return &prefs, nil
}

// SavePreferences upserts matching preferences.
func (s *LocationStore) SavePreferences(ctx context.Context, prefs location.MatchingPreferences) error {
	query := `
		INSERT INTO matching_preferences (
			user_id, max_distance_km, preferred_zones, avoided_zones,
			travel_willingness, location_importance, privacy_settings
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE
		SET
			max_distance_km = $2,
			preferred_zones = $3,
			avoided_zones = $4,
			travel_willingness = $5,
			location_importance = $6,
			privacy_settings = $7
	`

	privacyJSON, err := json.Marshal(prefs.Privacy)
	if err != nil {
		return fmt.Errorf("marshaling privacy settings: %w", err)
	}

	_, err = s.db.Exec(
		ctx,
		query,
		prefs.UserID,
		prefs.MaxDistanceKm,
		prefs.PreferredZones,
		prefs.AvoidedZones,
		string(prefs.TravelWillingness),
		prefs.LocationImportance,
		privacyJSON,
	)

	if err != nil {
		return storageErr("upserting preferences", err)
	}

	return nil
}

// DeletePreferences removes a user's matching preferences.
func (s *LocationStore) DeletePreferences(ctx context.Context, userID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM matching_preferences WHERE user_id = $1`, userID)
	if err != nil {
		return storageErr("deleting preferences", err)
	}
	if tag.RowsAffected() == 0 {
		return privacy.ErrNotFound
	}
	return nil
}

// CountUsersInZone returns the aggregate member count of a zone. The query
// only ever produces a count; no row-level user data leaves the database.
func (s *LocationStore) CountUsersInZone(ctx context.Context, zoneType location.ZoneType, label string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM location_records
		WHERE ($1 = 'city' AND city = $2)
		   OR ($1 = 'region' AND region = $2)
	`

	var count int
	if err := s.db.QueryRow(ctx, query, string(zoneType), label).Scan(&count); err != nil {
		return 0, storageErr("counting zone members", err)
	}

	return count, nil
}
