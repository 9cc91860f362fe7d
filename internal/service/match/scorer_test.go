package match

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privloc/internal/domain/consent"
	"privloc/internal/domain/location"
	"privloc/internal/domain/privacy"
)

// stubConsents grants location consent to the listed users only.
type stubConsents struct {
	granted map[string]bool
}

func (s *stubConsents) Get(ctx context.Context, userID string) (*consent.Record, error) {
	return nil, nil
}

func (s *stubConsents) Set(ctx context.Context, userID string, update consent.Update) (*consent.Record, error) {
	return nil, nil
}

func (s *stubConsents) HasConsent(ctx context.Context, userID string, category consent.Category) bool {
	return s.granted[userID]
}

func (s *stubConsents) IsStale(rec *consent.Record) bool { return rec == nil }

func (s *stubConsents) Revoke(ctx context.Context, userID string) error { return nil }

// stubLocations serves canned records and preferences for batch tests.
type stubLocations struct {
	records map[string]*location.Record
	prefs   map[string]location.MatchingPreferences
}

func (s *stubLocations) UpdateLocation(ctx context.Context, userID string, raw location.Coordinates, level location.PrivacyLevel) (*location.Record, error) {
	return nil, nil
}

func (s *stubLocations) GetRecord(ctx context.Context, userID string) (*location.Record, error) {
	rec, ok := s.records[userID]
	if !ok {
		return nil, privacy.ErrNotFound
	}
	return rec, nil
}

func (s *stubLocations) GetPreferences(ctx context.Context, userID string) (location.MatchingPreferences, error) {
	if prefs, ok := s.prefs[userID]; ok {
		return prefs, nil
	}
	return location.DefaultPreferences(userID), nil
}

func (s *stubLocations) SetPreferences(ctx context.Context, prefs location.MatchingPreferences) error {
	return nil
}

func (s *stubLocations) EraseUser(ctx context.Context, userID string) error { return nil }

func record(userID, geohash string, level location.PrivacyLevel, zones ...location.ProximityZone) *location.Record {
	return &location.Record{
		UserID:      userID,
		Level:       level,
		Geohash:     geohash,
		Zones:       zones,
		LastUpdated: time.Now().UTC(),
	}
}

func allowingPrefs(userID string) location.MatchingPreferences {
	return location.DefaultPreferences(userID)
}

func newTestScorer(granted ...string) *Scorer {
	grants := make(map[string]bool, len(granted))
	for _, u := range granted {
		grants[u] = true
	}
	return NewScorer(&stubLocations{}, &stubConsents{granted: grants}, ScorerConfig{})
}

func TestScoreRefusesWhenMatchingDisabled(t *testing.T) {
	scorer := newTestScorer()
	userRec := record("a", "u4pruy", location.LevelMedium)
	targetRec := record("b", "u4pruz", location.LevelMedium)

	targetPrefs := allowingPrefs("b")
	targetPrefs.Privacy.AllowLocationBasedMatching = false

	res, err := scorer.Score(context.Background(), userRec, targetRec, allowingPrefs("a"), targetPrefs)
	assert.NoError(t, err)
	assert.Nil(t, res)

	// Disabled on the requesting side refuses just the same.
	userPrefs := allowingPrefs("a")
	userPrefs.Privacy.AllowLocationBasedMatching = false

	res, err = scorer.Score(context.Background(), userRec, targetRec, userPrefs, allowingPrefs("b"))
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestScoreRequiresRecordsOnBothSides(t *testing.T) {
	scorer := newTestScorer()

	_, err := scorer.Score(context.Background(), nil, record("b", "u4pr", location.LevelMedium), allowingPrefs("a"), allowingPrefs("b"))
	assert.ErrorIs(t, err, privacy.ErrInsufficientData)

	_, err = scorer.Score(context.Background(), record("a", "u4pr", location.LevelMedium), nil, allowingPrefs("a"), allowingPrefs("b"))
	assert.ErrorIs(t, err, privacy.ErrInsufficientData)
}

func TestScoreMinimalLevelNeedsVerifiedConsent(t *testing.T) {
	userRec := record("a", "u4pruy", location.LevelMinimal)
	targetRec := record("b", "u4pruz", location.LevelMedium)

	// Without both parties' location consent the pair is refused.
	scorer := newTestScorer("a")
	_, err := scorer.Score(context.Background(), userRec, targetRec, allowingPrefs("a"), allowingPrefs("b"))
	require.Error(t, err)
	assert.ErrorIs(t, err, privacy.ErrPrivacyViolation)

	// With both sides consenting the pair scores normally.
	scorer = newTestScorer("a", "b")
	res, err := scorer.Score(context.Background(), userRec, targetRec, allowingPrefs("a"), allowingPrefs("b"))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.PrivacyCompliant)
}

func TestScoreBoundsAndComposition(t *testing.T) {
	scorer := newTestScorer()
	zone := location.ProximityZone{ID: "city:lisbon", Type: location.ZoneCity, Label: "Lisbon", MemberCount: 120}

	// Same 6-char prefix: 0.15 km apart, same level, one shared zone,
	// travel feasible for both. Expected raw score:
	// 50 + 40*(1-0.15/50) + 10 + 5 + 15 = 119.88, scaled by 0.7 = 83.916.
	userRec := record("a", "u4pruy", location.LevelMedium, zone)
	targetRec := record("b", "u4pruy", location.LevelMedium, zone)

	res, err := scorer.Score(context.Background(), userRec, targetRec, allowingPrefs("a"), allowingPrefs("b"))
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.InDelta(t, 83.916, res.Score, 0.01)
	assert.Equal(t, 0.15, res.DistanceKm)
	assert.Equal(t, location.DistanceVeryClose, res.DistanceCategory)
	assert.Equal(t, 0.7, res.Confidence)
	assert.Len(t, res.SharedZones, 1)
	assert.Equal(t, "b", res.TargetUserID)
}

func TestScoreOutOfRangePenalty(t *testing.T) {
	scorer := newTestScorer()

	// No shared prefix: 5000 km, far outside every default ceiling.
	userRec := record("a", "u4pruy", location.LevelMedium)
	targetRec := record("b", "gbsuv7", location.LevelHigh)

	res, err := scorer.Score(context.Background(), userRec, targetRec, allowingPrefs("a"), allowingPrefs("b"))
	require.NoError(t, err)
	require.NotNil(t, res)

	// 50 - 30 = 20, no level bonus, no travel bonus, scaled by 0.7.
	assert.InDelta(t, 14.0, res.Score, 0.01)
	assert.Equal(t, location.DistanceVeryFar, res.DistanceCategory)
}

func TestScoreStaysWithinBounds(t *testing.T) {
	scorer := newTestScorer()
	zones := []location.ProximityZone{
		{ID: "city:lisbon"},
		{ID: "region:lisboa"},
	}

	userRec := record("a", "u4pruyzzzz", location.LevelPrecise, zones...)
	targetRec := record("b", "u4pruyzzzz", location.LevelPrecise, zones...)

	res, err := scorer.Score(context.Background(), userRec, targetRec, allowingPrefs("a"), allowingPrefs("b"))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.LessOrEqual(t, res.Score, 100.0)
	assert.GreaterOrEqual(t, res.Score, 0.0)
}

func TestScoreTravelFeasibilityNeedsBothSides(t *testing.T) {
	scorer := newTestScorer()

	// Two shared chars: 156 km. Metro-area ceiling (100) fails, regional
	// (500) covers it; the bonus requires both ceilings to cover.
	userRec := record("a", "u4pruy", location.LevelMedium)
	targetRec := record("b", "u4zzzz", location.LevelMedium)

	userPrefs := allowingPrefs("a")
	userPrefs.TravelWillingness = location.TravelRegional
	targetPrefs := allowingPrefs("b")
	targetPrefs.TravelWillingness = location.TravelMetroArea

	oneSided, err := scorer.Score(context.Background(), userRec, targetRec, userPrefs, targetPrefs)
	require.NoError(t, err)

	targetPrefs.TravelWillingness = location.TravelRegional
	bothSides, err := scorer.Score(context.Background(), userRec, targetRec, userPrefs, targetPrefs)
	require.NoError(t, err)

	assert.InDelta(t, TravelFeasibleBonus*0.7, bothSides.Score-oneSided.Score, 0.01)
}

func TestTravelOptionsAvailability(t *testing.T) {
	opts := travelOptions(3)
	byMode := make(map[string]location.TravelOption, len(opts))
	for _, o := range opts {
		byMode[o.Mode] = o
	}

	assert.True(t, byMode["walking"].Available)
	assert.True(t, byMode["public_transit"].Available)
	assert.True(t, byMode["driving"].Available)
	assert.False(t, byMode["flight"].Available)

	opts = travelOptions(250)
	byMode = make(map[string]location.TravelOption, len(opts))
	for _, o := range opts {
		byMode[o.Mode] = o
	}

	assert.False(t, byMode["walking"].Available)
	assert.False(t, byMode["public_transit"].Available)
	assert.True(t, byMode["driving"].Available)
	assert.True(t, byMode["flight"].Available)
}

func TestScoreBatchSkipsFailuresAndRefusals(t *testing.T) {
	locations := &stubLocations{
		records: map[string]*location.Record{
			"me":  record("me", "u4pruy", location.LevelMedium),
			"ok":  record("ok", "u4pruz", location.LevelMedium),
			"off": record("off", "u4pruz", location.LevelMedium),
		},
		prefs: map[string]location.MatchingPreferences{},
	}

	offPrefs := location.DefaultPreferences("off")
	offPrefs.Privacy.AllowLocationBasedMatching = false
	locations.prefs["off"] = offPrefs

	scorer := NewScorer(locations, &stubConsents{}, ScorerConfig{BatchSize: 2})

	results, err := scorer.ScoreBatch(context.Background(), "me", []string{"ok", "missing", "off"})
	require.NoError(t, err)

	// "missing" has no record, "off" refused matching; only "ok" scores.
	require.Len(t, results, 1)
	assert.Equal(t, "ok", results[0].TargetUserID)
}

func TestCategorizeDistanceBoundaries(t *testing.T) {
	assert.Equal(t, location.DistanceVeryClose, location.CategorizeDistance(4.999))
	assert.Equal(t, location.DistanceClose, location.CategorizeDistance(5))
	assert.Equal(t, location.DistanceClose, location.CategorizeDistance(24.999))
	assert.Equal(t, location.DistanceModerate, location.CategorizeDistance(25))
	assert.Equal(t, location.DistanceFar, location.CategorizeDistance(100))
	assert.Equal(t, location.DistanceVeryFar, location.CategorizeDistance(500))
}
