package consent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privloc/internal/adapter/storage"
	"privloc/internal/domain/consent"
	"privloc/internal/domain/privacy"
	privacyservice "privloc/internal/service/privacy"
)

func boolPtr(b bool) *bool { return &b }

func newTestManager() (*Manager, *storage.MemoryConsentStore) {
	store := storage.NewMemoryConsentStore()
	mgr := NewManager(store, nil, privacyservice.NewAnonymizerWithSalt("test-salt"), ManagerConfig{PolicyVersion: "2026-01"})
	return mgr, store
}

func TestSetForcesEssentialOn(t *testing.T) {
	mgr, _ := newTestManager()

	rec, err := mgr.Set(context.Background(), "alice", consent.Update{
		Analytics: boolPtr(true),
	})
	require.NoError(t, err)

	assert.True(t, rec.Essential)
	assert.True(t, rec.Analytics)
	assert.False(t, rec.Marketing)
	assert.Equal(t, "2026-01", rec.Version)
	assert.False(t, rec.UpdatedAt.IsZero())
}

func TestSetMergesPartialUpdates(t *testing.T) {
	mgr, _ := newTestManager()
	ctx := context.Background()

	_, err := mgr.Set(ctx, "alice", consent.Update{Analytics: boolPtr(true), Location: boolPtr(true)})
	require.NoError(t, err)

	// A later update touching one category leaves the others untouched.
	rec, err := mgr.Set(ctx, "alice", consent.Update{Marketing: boolPtr(true)})
	require.NoError(t, err)

	assert.True(t, rec.Analytics)
	assert.True(t, rec.Location)
	assert.True(t, rec.Marketing)
	assert.False(t, rec.Advertising)
}

func TestHasConsentFailsClosed(t *testing.T) {
	mgr, _ := newTestManager()
	ctx := context.Background()

	// No record at all.
	assert.False(t, mgr.HasConsent(ctx, "nobody", consent.CategoryAnalytics))

	// Record exists but the category was never granted.
	_, err := mgr.Set(ctx, "alice", consent.Update{Location: boolPtr(true)})
	require.NoError(t, err)
	assert.False(t, mgr.HasConsent(ctx, "alice", consent.CategoryAnalytics))
	assert.True(t, mgr.HasConsent(ctx, "alice", consent.CategoryLocation))
	assert.True(t, mgr.HasConsent(ctx, "alice", consent.CategoryEssential))
}

func TestHasConsentFailsClosedOnStoreError(t *testing.T) {
	mgr := NewManager(&failingStore{}, nil, privacyservice.NewAnonymizerWithSalt("test-salt"), ManagerConfig{})
	assert.False(t, mgr.HasConsent(context.Background(), "alice", consent.CategoryEssential))
}

func TestStaleConsentDenies(t *testing.T) {
	mgr, _ := newTestManager()
	ctx := context.Background()

	_, err := mgr.Set(ctx, "alice", consent.Update{Analytics: boolPtr(true)})
	require.NoError(t, err)

	// Move the clock 13 months and a day past the grant.
	granted := mgr.now()
	mgr.now = func() time.Time { return granted.AddDate(0, 13, 1) }

	assert.False(t, mgr.HasConsent(ctx, "alice", consent.CategoryAnalytics))

	rec, err := mgr.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, mgr.IsStale(rec))

	// Re-consenting refreshes the window.
	rec, err = mgr.Set(ctx, "alice", consent.Update{Analytics: boolPtr(true)})
	require.NoError(t, err)
	assert.False(t, mgr.IsStale(rec))
	assert.True(t, mgr.HasConsent(ctx, "alice", consent.CategoryAnalytics))
}

func TestIsStaleTreatsNilAsStale(t *testing.T) {
	mgr, _ := newTestManager()
	assert.True(t, mgr.IsStale(nil))
}

func TestGetMissingRecordIsNil(t *testing.T) {
	mgr, _ := newTestManager()

	rec, err := mgr.Get(context.Background(), "nobody")
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRevokeDeletesRecord(t *testing.T) {
	mgr, store := newTestManager()
	ctx := context.Background()

	_, err := mgr.Set(ctx, "alice", consent.Update{Location: boolPtr(true)})
	require.NoError(t, err)

	require.NoError(t, mgr.Revoke(ctx, "alice"))

	_, err = store.GetRecord(ctx, "alice")
	assert.ErrorIs(t, err, privacy.ErrNotFound)

	// Revoking again is not an error.
	assert.NoError(t, mgr.Revoke(ctx, "alice"))
}

func TestAuditEventCarriesHashedSubject(t *testing.T) {
	mgr, _ := newTestManager()

	old := consent.Record{UserID: "alice", Essential: true}
	updated := consent.Record{UserID: "alice", Essential: true, Location: true, Version: "2026-01", UpdatedAt: time.Now().UTC()}

	event := mgr.buildAudit(old, updated)

	assert.NotEqual(t, "alice", event.UserID)
	assert.Equal(t, privacyservice.NewAnonymizerWithSalt("test-salt").HashIdentifier("alice"), event.UserID)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "2026-01", event.Version)

	// Every category appears with its old/new transition.
	require.Len(t, event.Changes, len(consent.Categories()))
	byCategory := make(map[consent.Category]consent.Change, len(event.Changes))
	for _, c := range event.Changes {
		byCategory[c.Category] = c
	}
	assert.False(t, byCategory[consent.CategoryLocation].Old)
	assert.True(t, byCategory[consent.CategoryLocation].New)
	assert.True(t, byCategory[consent.CategoryEssential].Old)
	assert.True(t, byCategory[consent.CategoryEssential].New)
}

func TestGetRetriesTransientReadFailure(t *testing.T) {
	store := &flakyStore{rec: consent.Record{UserID: "alice", Essential: true, Location: true, UpdatedAt: time.Now()}}
	mgr := NewManager(store, nil, privacyservice.NewAnonymizerWithSalt("test-salt"), ManagerConfig{})

	rec, err := mgr.Get(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Location)
	assert.Equal(t, 2, store.reads)
}

// failingStore fails every operation.
type failingStore struct{}

func (s *failingStore) GetRecord(ctx context.Context, userID string) (*consent.Record, error) {
	return nil, errors.New("connection refused")
}

func (s *failingStore) SaveRecord(ctx context.Context, rec consent.Record) error {
	return errors.New("connection refused")
}

func (s *failingStore) DeleteRecord(ctx context.Context, userID string) error {
	return errors.New("connection refused")
}

// flakyStore fails the first read and serves the record afterwards.
type flakyStore struct {
	rec   consent.Record
	reads int
}

func (s *flakyStore) GetRecord(ctx context.Context, userID string) (*consent.Record, error) {
	s.reads++
	if s.reads == 1 {
		return nil, privacy.ErrStorage
	}
	rec := s.rec
	return &rec, nil
}

func (s *flakyStore) SaveRecord(ctx context.Context, rec consent.Record) error { return nil }

func (s *flakyStore) DeleteRecord(ctx context.Context, userID string) error { return nil }
