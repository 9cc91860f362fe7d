package analytics

import (
	"context"
	"time"
)

// EventStore persists flushed event batches as durable aggregates.
type EventStore interface {
	// SaveBatch appends a flushed batch.
	SaveBatch(ctx context.Context, events []AnonymousEvent) error

	// CountEvents returns the number of stored events for a session hash.
	CountEvents(ctx context.Context, sessionID string) (int, error)

	// EventsSince returns stored events for a session hash newer than a cutoff.
	EventsSince(ctx context.Context, sessionID string, since time.Time) ([]AnonymousEvent, error)

	// PurgeOlderThan deletes events older than the cutoff and reports how
	// many were removed.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Tracker is the consent-gated event intake.
type Tracker interface {
	// TrackEvent sanitizes and enqueues an event. Without analytics consent
	// it is a silent, successful no-op.
	TrackEvent(ctx context.Context, userID string, typ EventType, name string, props map[string]string) error

	// Flush force-drains the queue to the event store.
	Flush(ctx context.Context) error

	// Start launches the periodic flush and retention loops.
	Start(ctx context.Context) error

	// Stop drains background loops, flushing once more on the way out.
	Stop(ctx context.Context) error
}

// CohortEngine assigns users to behavioral cohorts from aggregate metrics.
type CohortEngine interface {
	// DetermineCohort applies the rule set in priority order.
	DetermineCohort(metrics EngagementMetrics) (string, error)

	// Definitions lists the active cohort definitions.
	Definitions() []CohortDefinition
}
