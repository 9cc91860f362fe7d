package consent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"privloc/internal/domain/consent"
	"privloc/internal/domain/privacy"
	privacyservice "privloc/internal/service/privacy"
)

// staleMonths is how long a consent record stays valid before it must be
// re-obtained.
const staleMonths = 13

// ManagerConfig contains configuration for the consent manager.
type ManagerConfig struct {
	AuditTopic    string
	PolicyVersion string
}

// Manager is the consent gate. Reads fail closed: any persistence trouble is
// treated as "no consent", never as a cached grant.
type Manager struct {
	store      consent.Store
	eventBus   *nats.Conn
	anonymizer *privacyservice.Anonymizer
	config     ManagerConfig
	now        func() time.Time
}

// NewManager creates a consent manager. The NATS connection may be nil, in
// which case audit events are only logged locally. The anonymizer keys audit
// events by the salted identifier hash rather than the raw user id.
func NewManager(store consent.Store, eventBus *nats.Conn, anonymizer *privacyservice.Anonymizer, config ManagerConfig) *Manager {
	if config.AuditTopic == "" {
		config.AuditTopic = "consent"
	}

	return &Manager{
		store:      store,
		eventBus:   eventBus,
		anonymizer: anonymizer,
		config:     config,
		now:        time.Now,
	}
}

// Get returns the user's consent record, retrying a failed read once. A
// missing record is returned as nil without error.
func (m *Manager) Get(ctx context.Context, userID string) (*consent.Record, error) {
	rec, err := m.store.GetRecord(ctx, userID)
	if err != nil && !errors.Is(err, privacy.ErrNotFound) {
		rec, err = m.store.GetRecord(ctx, userID)
	}
	if err != nil {
		if errors.Is(err, privacy.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading consent record: %w", err)
	}
	return rec, nil
}

// Set merges a partial update into the stored record. Essential consent is
// forced on; it cannot be revoked while the account is active. Every call
// stamps UpdatedAt and emits an audit event with per-category transitions.
func (m *Manager) Set(ctx context.Context, userID string, update consent.Update) (*consent.Record, error) {
	existing, err := m.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	merged := consent.Record{UserID: userID, Essential: true}
	if existing != nil {
		merged = *existing
	}

	old := merged

	merged.Essential = true
	if update.Analytics != nil {
		merged.Analytics = *update.Analytics
	}
	if update.Marketing != nil {
		merged.Marketing = *update.Marketing
	}
	if update.Advertising != nil {
		merged.Advertising = *update.Advertising
	}
	if update.Location != nil {
		merged.Location = *update.Location
	}
	if update.Version != "" {
		merged.Version = update.Version
	} else if merged.Version == "" {
		merged.Version = m.config.PolicyVersion
	}
	merged.UpdatedAt = m.now().UTC()

	if err := m.store.SaveRecord(ctx, merged); err != nil {
		return nil, fmt.Errorf("saving consent record: %w", err)
	}

	m.publishAudit(old, merged)

	return &merged, nil
}

// HasConsent reports whether the user granted a category. Fails closed: no
// record, unreadable record or stale record all deny.
func (m *Manager) HasConsent(ctx context.Context, userID string, category consent.Category) bool {
	rec, err := m.Get(ctx, userID)
	if err != nil {
		log.Printf("consent read failed, denying %s: %v", category, err)
		return false
	}
	if rec == nil || m.IsStale(rec) {
		return false
	}
	return rec.Granted(category)
}

// IsStale reports whether a record is past the re-consent window.
func (m *Manager) IsStale(rec *consent.Record) bool {
	if rec == nil {
		return true
	}
	return rec.UpdatedAt.AddDate(0, staleMonths, 0).Before(m.now())
}

// Revoke deletes a user's consent record (account deletion path).
func (m *Manager) Revoke(ctx context.Context, userID string) error {
	if err := m.store.DeleteRecord(ctx, userID); err != nil && !errors.Is(err, privacy.ErrNotFound) {
		return fmt.Errorf("deleting consent record: %w", err)
	}
	return nil
}

// buildAudit assembles the per-category transitions of a consent change,
// keyed by the salted identifier hash so the audit stream never carries a raw
// user id.
func (m *Manager) buildAudit(old, updated consent.Record) consent.AuditEvent {
	changes := make([]consent.Change, 0, len(consent.Categories()))
	for _, c := range consent.Categories() {
		changes = append(changes, consent.Change{Category: c, Old: old.Granted(c), New: updated.Granted(c)})
	}

	return consent.AuditEvent{
		ID:        uuid.New().String(),
		UserID:    m.anonymizer.HashIdentifier(updated.UserID),
		Changes:   changes,
		Version:   updated.Version,
		Timestamp: updated.UpdatedAt,
	}
}

// publishAudit emits the audit event for a consent change. Audit failures are
// logged and swallowed: a logging outage never blocks consent changes.
func (m *Manager) publishAudit(old, updated consent.Record) {
	event := m.buildAudit(old, updated)

	if m.eventBus == nil {
		log.Printf("consent audit (no event bus): subject=%s changes=%d", event.UserID, len(event.Changes))
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling consent audit event: %v", err)
		return
	}

	topic := fmt.Sprintf("%s.updated", m.config.AuditTopic)
	if err := m.eventBus.Publish(topic, data); err != nil {
		log.Printf("Error publishing consent audit event: %v", err)
	}
}
