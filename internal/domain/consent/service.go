package consent

import (
	"context"
)

// Store persists consent records keyed by user id.
type Store interface {
	// GetRecord returns the stored record for a user, or privacy.ErrNotFound.
	GetRecord(ctx context.Context, userID string) (*Record, error)

	// SaveRecord upserts a consent record.
	SaveRecord(ctx context.Context, rec Record) error

	// DeleteRecord removes a user's consent record.
	DeleteRecord(ctx context.Context, userID string) error
}

// Manager is the consent gate every other component consults.
type Manager interface {
	// Get returns the user's consent record, nil when none exists.
	Get(ctx context.Context, userID string) (*Record, error)

	// Set merges a partial update into the stored record, forcing
	// essential consent on, and returns the updated record.
	Set(ctx context.Context, userID string, update Update) (*Record, error)

	// HasConsent reports whether the user granted a category. A missing or
	// unreadable record denies (fail closed).
	HasConsent(ctx context.Context, userID string, category Category) bool

	// IsStale reports whether a record is older than the re-consent window.
	IsStale(rec *Record) bool

	// Revoke removes the consent record entirely (account deletion path).
	Revoke(ctx context.Context, userID string) error
}
