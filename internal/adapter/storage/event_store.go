package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"privloc/internal/domain/analytics"
)

// EventStore persists flushed anonymized event batches on Postgres. Rows are
// keyed by the salted session hash; nothing in this table links back to a
// raw user id.
type EventStore struct {
	db *pgxpool.Pool
}

// NewEventStore creates a new event store.
func NewEventStore(db *pgxpool.Pool) *EventStore {
	return &EventStore{
		db: db,
	}
}

// SaveBatch appends a flushed batch in one round trip.
func (s *EventStore) SaveBatch(ctx context.Context, events []analytics.AnonymousEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO anonymous_events (
			event_id, session_id, event_type, event_name, timestamp, properties, cohort
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING
	`

	for _, e := range events {
		propsJSON, err := json.Marshal(e.Properties)
		if err != nil {
			return fmt.Errorf("marshaling event properties: %w", err)
		}
		batch.Queue(query, e.EventID, e.SessionID, string(e.Type), e.Name, e.Timestamp, propsJSON, e.Cohort)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for range events {
		if _, err := results.Exec(); err != nil {
			return storageErr("inserting event batch", err)
		}
	}

	return nil
}

// CountEvents returns how many events are stored for a session hash.
func (s *EventStore) CountEvents(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM anonymous_events WHERE session_id = $1`, sessionID).Scan(&count)
	if err != nil {
		return 0, storageErr("counting events", err)
	}
	return count, nil
}

// EventsSince returns stored events for a session hash newer than a cutoff.
func (s *EventStore) EventsSince(ctx context.Context, sessionID string, since time.Time) ([]analytics.AnonymousEvent, error) {
	query := `
		SELECT event_id, session_id, event_type, event_name, timestamp, properties, cohort
		FROM anonymous_events
		WHERE session_id = $1 AND timestamp > $2
		ORDER BY timestamp
	`

	rows, err := s.db.Query(ctx, query, sessionID, since)
	if err != nil {
		return nil, storageErr("querying events", err)
	}
	defer rows.Close()

	var events []analytics.AnonymousEvent
	for rows.Next() {
		var e analytics.AnonymousEvent
		var typ string
		var propsJSON []byte

		if err := rows.Scan(&e.EventID, &e.SessionID, &typ, &e.Name, &e.Timestamp, &propsJSON, &e.Cohort); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}

		e.Type = analytics.EventType(typ)
		if len(propsJSON) > 0 {
			if err := json.Unmarshal(propsJSON, &e.Properties); err != nil {
				return nil, fmt.Errorf("unmarshaling event properties: %w", err)
			}
		}

		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, storageErr("reading event rows", err)
	}

	return events, nil
}

// PurgeOlderThan deletes events older than the cutoff.
func (s *EventStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM anonymous_events WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, storageErr("purging events", err)
	}
	return tag.RowsAffected(), nil
}
