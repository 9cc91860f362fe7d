package storage

import (
	"context"
	"strings"
	"sync"
	"time"

	"privloc/internal/domain/analytics"
	"privloc/internal/domain/consent"
	"privloc/internal/domain/location"
	"privloc/internal/domain/privacy"
)

// In-memory store implementations. They mirror the Postgres adapters for
// development and tests; state is scoped to one process.

// MemoryConsentStore holds consent records in a map.
type MemoryConsentStore struct {
	mu      sync.RWMutex
	records map[string]consent.Record
}

// NewMemoryConsentStore creates an empty in-memory consent store.
func NewMemoryConsentStore() *MemoryConsentStore {
	return &MemoryConsentStore{
		records: make(map[string]consent.Record),
	}
}

func (s *MemoryConsentStore) GetRecord(ctx context.Context, userID string) (*consent.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[userID]
	if !ok {
		return nil, privacy.ErrNotFound
	}
	return &rec, nil
}

func (s *MemoryConsentStore) SaveRecord(ctx context.Context, rec consent.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.UserID] = rec
	return nil
}

func (s *MemoryConsentStore) DeleteRecord(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[userID]; !ok {
		return privacy.ErrNotFound
	}
	delete(s.records, userID)
	return nil
}

// MemoryLocationStore holds location records and preferences in maps. It also
// serves as the aggregate zone counter by counting matching records.
type MemoryLocationStore struct {
	mu      sync.RWMutex
	records map[string]location.Record
	prefs   map[string]location.MatchingPreferences
}

// NewMemoryLocationStore creates an empty in-memory location store.
func NewMemoryLocationStore() *MemoryLocationStore {
	return &MemoryLocationStore{
		records: make(map[string]location.Record),
		prefs:   make(map[string]location.MatchingPreferences),
	}
}

func (s *MemoryLocationStore) GetRecord(ctx context.Context, userID string) (*location.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[userID]
	if !ok {
		return nil, privacy.ErrNotFound
	}
	return &rec, nil
}

func (s *MemoryLocationStore) SaveRecord(ctx context.Context, rec location.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.UserID] = rec
	return nil
}

func (s *MemoryLocationStore) DeleteRecord(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[userID]; !ok {
		return privacy.ErrNotFound
	}
	delete(s.records, userID)
	return nil
}

func (s *MemoryLocationStore) GetPreferences(ctx context.Context, userID string) (*location.MatchingPreferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefs, ok := s.prefs[userID]
	if !ok {
		return nil, privacy.ErrNotFound
	}
	return &prefs, nil
}

func (s *MemoryLocationStore) SavePreferences(ctx context.Context, prefs location.MatchingPreferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prefs[prefs.UserID] = prefs
	return nil
}

func (s *MemoryLocationStore) DeletePreferences(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.prefs[userID]; !ok {
		return privacy.ErrNotFound
	}
	delete(s.prefs, userID)
	return nil
}

// CountUsersInZone counts stored records whose city or region matches.
func (s *MemoryLocationStore) CountUsersInZone(ctx context.Context, zoneType location.ZoneType, label string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, rec := range s.records {
		switch zoneType {
		case location.ZoneCity:
			if strings.EqualFold(rec.Approximate.City, label) {
				count++
			}
		case location.ZoneRegion:
			if strings.EqualFold(rec.Approximate.Region, label) {
				count++
			}
		}
	}

	return count, nil
}

// MemoryEventStore holds flushed events in a slice.
type MemoryEventStore struct {
	mu     sync.RWMutex
	events []analytics.AnonymousEvent

	// FailSaves makes the next SaveBatch calls fail, for flush-retry tests.
	FailSaves int
}

// NewMemoryEventStore creates an empty in-memory event store.
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{}
}

func (s *MemoryEventStore) SaveBatch(ctx context.Context, events []analytics.AnonymousEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailSaves > 0 {
		s.FailSaves--
		return privacy.ErrStorage
	}

	s.events = append(s.events, events...)
	return nil
}

func (s *MemoryEventStore) CountEvents(ctx context.Context, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, e := range s.events {
		if e.SessionID == sessionID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryEventStore) EventsSince(ctx context.Context, sessionID string, since time.Time) ([]analytics.AnonymousEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []analytics.AnonymousEvent
	for _, e := range s.events {
		if e.SessionID == sessionID && e.Timestamp.After(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryEventStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var purged int64
	for _, e := range s.events {
		if e.Timestamp.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept

	return purged, nil
}

// StoredEvents returns a copy of everything flushed so far.
func (s *MemoryEventStore) StoredEvents() []analytics.AnonymousEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]analytics.AnonymousEvent, len(s.events))
	copy(out, s.events)
	return out
}

// MemorySaltStore holds the anonymization salt in memory.
type MemorySaltStore struct {
	mu   sync.Mutex
	salt string
}

// NewMemorySaltStore creates an empty in-memory salt store.
func NewMemorySaltStore() *MemorySaltStore {
	return &MemorySaltStore{}
}

func (s *MemorySaltStore) GetSalt() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.salt, nil
}

func (s *MemorySaltStore) SaveSalt(salt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.salt = salt
	return nil
}
