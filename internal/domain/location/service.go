package location

import (
	"context"
)

// GeocodeResult is what a reverse-geocoding collaborator can tell us about a
// point. Fields may be empty when the collaborator degrades.
type GeocodeResult struct {
	City       string
	Region     string
	Country    string
	PostalCode string
	Timezone   string
}

// Geocoder resolves coordinates to place names. Implementations must degrade
// to empty fields on failure rather than erroring the pipeline.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, coords Coordinates) (GeocodeResult, error)
}

// ZoneCounter exposes aggregate zone membership counts. It must never expose
// row-level user lists.
type ZoneCounter interface {
	CountUsersInZone(ctx context.Context, zoneType ZoneType, label string) (int, error)
}

// Store persists privacy-bounded location records and matching preferences.
type Store interface {
	GetRecord(ctx context.Context, userID string) (*Record, error)
	SaveRecord(ctx context.Context, rec Record) error
	DeleteRecord(ctx context.Context, userID string) error

	GetPreferences(ctx context.Context, userID string) (*MatchingPreferences, error)
	SavePreferences(ctx context.Context, prefs MatchingPreferences) error
	DeletePreferences(ctx context.Context, userID string) error
}

// Manager runs the location privacy pipeline: validate, noise, approximate,
// zone, persist. Raw coordinates never survive past UpdateLocation.
type Manager interface {
	// UpdateLocation ingests a raw fix and stores the privacy-bounded record
	// derived from it.
	UpdateLocation(ctx context.Context, userID string, raw Coordinates, level PrivacyLevel) (*Record, error)

	// GetRecord returns the stored privacy-bounded record for a user.
	GetRecord(ctx context.Context, userID string) (*Record, error)

	// GetPreferences returns the user's matching preferences, with defaults
	// applied when none are stored.
	GetPreferences(ctx context.Context, userID string) (MatchingPreferences, error)

	// SetPreferences stores an explicit preference update.
	SetPreferences(ctx context.Context, prefs MatchingPreferences) error

	// EraseUser removes every location artifact for a user: record, zone
	// memberships and preferences (GDPR erasure path).
	EraseUser(ctx context.Context, userID string) error
}
