package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"privloc/internal/domain/analytics"
	"privloc/internal/domain/consent"
	"privloc/internal/domain/privacy"
	privacyservice "privloc/internal/service/privacy"
)

// TrackerConfig contains configuration for the event tracker.
type TrackerConfig struct {
	QueueCap         int
	FlushInterval    time.Duration
	CleanupInterval  time.Duration
	RetentionDays    int
	MaxFlushAttempts int
	EventsTopic      string
	Strength         privacyservice.Strength
}

// queuedEvent carries the per-event flush attempt counter.
type queuedEvent struct {
	event    analytics.AnonymousEvent
	attempts int
}

// Tracker is the consent-gated behavioral event intake. Events are sanitized
// before they are ever materialized, buffered in memory, and flushed to
// durable aggregate storage on a size cap or timer.
type Tracker struct {
	consents   consent.Manager
	anonymizer *privacyservice.Anonymizer
	store      analytics.EventStore
	eventBus   *nats.Conn
	config     TrackerConfig

	mu    sync.Mutex
	queue []queuedEvent

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTracker creates an event tracker.
func NewTracker(
	consents consent.Manager,
	anonymizer *privacyservice.Anonymizer,
	store analytics.EventStore,
	eventBus *nats.Conn,
	config TrackerConfig,
) *Tracker {
	if config.QueueCap <= 0 {
		config.QueueCap = 50
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 30 * time.Second
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 6 * time.Hour
	}
	if config.RetentionDays <= 0 {
		config.RetentionDays = 90
	}
	if config.MaxFlushAttempts <= 0 {
		config.MaxFlushAttempts = 3
	}
	if config.EventsTopic == "" {
		config.EventsTopic = "analytics"
	}
	if config.Strength == "" {
		config.Strength = privacyservice.StrengthEnhanced
	}

	return &Tracker{
		consents:   consents,
		anonymizer: anonymizer,
		store:      store,
		eventBus:   eventBus,
		config:     config,
	}
}

// TrackEvent sanitizes and enqueues one interaction. Without analytics
// consent this is a silent, successful no-op, not an error. The raw user id
// never enters the queue; only its salted hash does, as the session key.
func (t *Tracker) TrackEvent(ctx context.Context, userID string, typ analytics.EventType, name string, props map[string]string) error {
	if !t.consents.HasConsent(ctx, userID, consent.CategoryAnalytics) {
		return nil
	}

	event := analytics.AnonymousEvent{
		EventID:    uuid.New().String(),
		SessionID:  t.anonymizer.HashIdentifier(userID),
		Type:       typ,
		Name:       name,
		Timestamp:  t.anonymizer.TruncateTimestamp(time.Now().UTC()),
		Properties: t.anonymizer.SanitizeProperties(props, t.config.Strength),
	}

	t.mu.Lock()
	t.queue = append(t.queue, queuedEvent{event: event})
	full := len(t.queue) >= t.config.QueueCap
	t.mu.Unlock()

	if full {
		if err := t.Flush(ctx); err != nil {
			// Flush trouble is retried from the queue; enqueue succeeded.
			log.Printf("Error flushing full event queue: %v", err)
		}
	}

	return nil
}

// Flush drains the queue to the event store. The take-and-clear is atomic
// with respect to concurrent enqueues: events enqueued during a flush land in
// the next batch, and no event is lost or duplicated across the boundary.
// Events that fail to flush are re-queued until their attempt budget runs
// out, then dropped.
func (t *Tracker) Flush(ctx context.Context) error {
	t.mu.Lock()
	batch := t.queue
	t.queue = nil
	t.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	events := make([]analytics.AnonymousEvent, len(batch))
	for i, q := range batch {
		events[i] = q.event
	}

	if err := t.store.SaveBatch(ctx, events); err != nil {
		requeued, dropped := 0, 0

		t.mu.Lock()
		for _, q := range batch {
			q.attempts++
			if q.attempts >= t.config.MaxFlushAttempts {
				dropped++
				continue
			}
			t.queue = append(t.queue, q)
			requeued++
		}
		t.mu.Unlock()

		if dropped > 0 {
			log.Printf("Dropped %d events after %d failed flush attempts", dropped, t.config.MaxFlushAttempts)
		}

		return fmt.Errorf("flushing %d events (%d requeued): %w", len(batch), requeued, err)
	}

	t.publishBatch(events)

	return nil
}

// QueueLen reports how many events are waiting to flush.
func (t *Tracker) QueueLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// Start launches the periodic flush and retention-cleanup loops.
func (t *Tracker) Start(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.flushLoop(loopCtx)

	t.wg.Add(1)
	go t.cleanupLoop(loopCtx)

	return nil
}

// Stop cancels the background loops, waits for them to drain and flushes the
// queue one final time.
func (t *Tracker) Stop(ctx context.Context) error {
	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return t.Flush(ctx)
}

func (t *Tracker) flushLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.Flush(ctx); err != nil {
				log.Printf("Error in periodic event flush: %v", err)
			}
		}
	}
}

// cleanupLoop purges events past the retention window. The purge is
// unconditional; only the window itself is configurable.
func (t *Tracker) cleanupLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().AddDate(0, 0, -t.config.RetentionDays)
			purged, err := t.store.PurgeOlderThan(ctx, cutoff)
			if err != nil {
				log.Printf("Error purging expired events: %v", err)
				continue
			}
			if purged > 0 {
				log.Printf("Purged %d events past the %d-day retention window", purged, t.config.RetentionDays)
			}
		}
	}
}

// publishBatch announces a flushed batch on the event bus. Failures are
// logged and swallowed; the batch is already durable.
func (t *Tracker) publishBatch(events []analytics.AnonymousEvent) {
	if t.eventBus == nil {
		return
	}

	data, err := json.Marshal(events)
	if err != nil {
		log.Printf("Error marshaling event batch: %v", err)
		return
	}

	topic := fmt.Sprintf("%s.flushed", t.config.EventsTopic)
	if err := t.eventBus.Publish(topic, data); err != nil {
		log.Printf("Error publishing event batch: %v", err)
	}
}

// Insights summarizes a user's stored events. Too little history surfaces
// privacy.ErrInsufficientData rather than an empty summary, so callers can
// tell "no signal" from "signal is zero".
func (t *Tracker) Insights(ctx context.Context, userID string) (*analytics.Insights, error) {
	sessionID := t.anonymizer.HashIdentifier(userID)

	count, err := t.store.CountEvents(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}
	if count < minInsightEvents {
		return nil, fmt.Errorf("%d events, need %d: %w", count, minInsightEvents, privacy.ErrInsufficientData)
	}

	since := time.Now().UTC().AddDate(0, 0, -t.config.RetentionDays)
	events, err := t.store.EventsSince(ctx, sessionID, since)
	if err != nil {
		return nil, fmt.Errorf("reading events: %w", err)
	}

	insights := &analytics.Insights{
		EventCount:    len(events),
		TopEventTypes: make(map[analytics.EventType]int),
	}

	for _, e := range events {
		insights.TopEventTypes[e.Type]++
		if insights.FirstActivity.IsZero() || e.Timestamp.Before(insights.FirstActivity) {
			insights.FirstActivity = e.Timestamp
		}
		if e.Timestamp.After(insights.LastActivity) {
			insights.LastActivity = e.Timestamp
		}
	}

	return insights, nil
}

// minInsightEvents is the least history Insights will summarize.
const minInsightEvents = 5
