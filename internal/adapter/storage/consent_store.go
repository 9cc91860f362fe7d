package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"privloc/internal/domain/consent"
	"privloc/internal/domain/privacy"
)

// ConsentStore implements consent persistence on Postgres.
type ConsentStore struct {
	db *pgxpool.Pool
}

// NewConsentStore creates a new consent store.
func NewConsentStore(db *pgxpool.Pool) *ConsentStore {
	return &ConsentStore{
		db: db,
	}
}

// GetRecord retrieves a consent record by user id.
func (s *ConsentStore) GetRecord(ctx context.Context, userID string) (*consent.Record, error) {
	query := `
		SELECT user_id, essential, analytics, marketing, advertising, location,
		       updated_at, version
		FROM consent_records
		WHERE user_id = $1
	`

	var rec consent.Record
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&rec.UserID,
		&rec.Essential,
		&rec.Analytics,
		&rec.Marketing,
		&rec.Advertising,
		&rec.Location,
		&rec.UpdatedAt,
		&rec.Version,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, privacy.ErrNotFound
		}
		return nil, storageErr("querying consent record", err)
	}

	return &rec, nil
}

// SaveRecord upserts a consent record.
func (s *ConsentStore) SaveRecord(ctx context.Context, rec consent.Record) error {
	query := `
		INSERT INTO consent_records (
			user_id, essential, analytics, marketing, advertising, location,
			updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE
		SET
			essential = $2,
			analytics = $3,
			marketing = $4,
			advertising = $5,
			location = $6,
			updated_at = $7,
			version = $8
	`

	_, err := s.db.Exec(
		ctx,
		query,
		rec.UserID,
		rec.Essential,
		rec.Analytics,
		rec.Marketing,
		rec.Advertising,
		rec.Location,
		rec.UpdatedAt,
		rec.Version,
	)

	if err != nil {
		return storageErr("upserting consent record", err)
	}

	return nil
}

// DeleteRecord removes a user's consent record.
func (s *ConsentStore) DeleteRecord(ctx context.Context, userID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM consent_records WHERE user_id = $1`, userID)
	if err != nil {
		return storageErr("deleting consent record", err)
	}
	if tag.RowsAffected() == 0 {
		return privacy.ErrNotFound
	}
	return nil
}
