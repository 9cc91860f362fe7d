package match

import (
	"context"
	"log"
	"math"
	"time"

	"privloc/internal/domain/consent"
	"privloc/internal/domain/location"
	"privloc/internal/domain/privacy"
	"privloc/internal/service/geo"
)

// Scoring constants. These weights are heuristic and were never validated
// against real user data.
const (
	BaseScore           = 50.0
	DistancePoints      = 40.0
	OutOfRangePenalty   = 30.0
	SamePrivacyBonus    = 10.0
	SharedZoneBonus     = 5.0
	TravelFeasibleBonus = 15.0
	DefaultBatchSize    = 50
)

// minJointLevel is the lowest privacy tier at which matching proceeds without
// explicitly verified location consent on both sides.
var minJointLevel = location.LevelLow

// ScorerConfig contains configuration for the compatibility scorer.
type ScorerConfig struct {
	BatchSize int
}

// Scorer combines estimated distance, travel preferences, privacy-level
// compatibility and shared zones into one bounded score. Distance only ever
// comes from geohash prefix overlap, never from raw coordinates.
type Scorer struct {
	locations location.Manager
	consents  consent.Manager
	config    ScorerConfig
}

// NewScorer creates a compatibility scorer.
func NewScorer(locations location.Manager, consents consent.Manager, config ScorerConfig) *Scorer {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}

	return &Scorer{
		locations: locations,
		consents:  consents,
		config:    config,
	}
}

// Score computes the compatibility result for one candidate pair.
//
// It returns (nil, nil) as a hard refusal when either party has disabled
// location-based matching, and a privacy violation error when the pair's
// privacy levels fall below the jointly-acceptable tier without verified
// consent. A refusal is never a degraded zero score.
func (s *Scorer) Score(
	ctx context.Context,
	userRec, targetRec *location.Record,
	userPrefs, targetPrefs location.MatchingPreferences,
) (*location.CompatibilityResult, error) {
	if userRec == nil || targetRec == nil {
		return nil, privacy.ErrInsufficientData
	}
	if !userPrefs.Privacy.AllowLocationBasedMatching || !targetPrefs.Privacy.AllowLocationBasedMatching {
		return nil, nil
	}

	if userRec.Level.Rank() < minJointLevel.Rank() || targetRec.Level.Rank() < minJointLevel.Rank() {
		if !s.verifiedHighPrecisionConsent(ctx, userRec.UserID, targetRec.UserID) {
			return nil, &privacy.ViolationError{Reason: "privacy levels below jointly-acceptable tier"}
		}
	}

	distance := geo.EstimateDistance(userRec.Geohash, targetRec.Geohash)
	confidence := geo.Confidence(userRec.Level, targetRec.Level)
	shared := sharedZones(userRec.Zones, targetRec.Zones)

	score := BaseScore

	if distance <= userPrefs.MaxDistanceKm {
		score += DistancePoints * (1 - distance/userPrefs.MaxDistanceKm)
	} else {
		score -= OutOfRangePenalty
	}

	if userRec.Level == targetRec.Level {
		score += SamePrivacyBonus
	}

	score += SharedZoneBonus * float64(len(shared))

	if userPrefs.TravelWillingness.CeilingKm() >= distance &&
		targetPrefs.TravelWillingness.CeilingKm() >= distance {
		score += TravelFeasibleBonus
	}

	score *= confidence
	score = math.Max(0, math.Min(100, score))

	return &location.CompatibilityResult{
		TargetUserID:     targetRec.UserID,
		DistanceKm:       distance,
		DistanceCategory: location.CategorizeDistance(distance),
		Score:            score,
		Confidence:       confidence,
		SharedZones:      shared,
		TravelOptions:    travelOptions(distance),
		PrivacyCompliant: true,
	}, nil
}

// ScoreCandidate fetches both sides' records and preferences and scores the
// pair.
func (s *Scorer) ScoreCandidate(ctx context.Context, userID, targetID string) (*location.CompatibilityResult, error) {
	userRec, err := s.locations.GetRecord(ctx, userID)
	if err != nil {
		return nil, err
	}
	targetRec, err := s.locations.GetRecord(ctx, targetID)
	if err != nil {
		return nil, err
	}

	userPrefs, err := s.locations.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	targetPrefs, err := s.locations.GetPreferences(ctx, targetID)
	if err != nil {
		return nil, err
	}

	return s.Score(ctx, userRec, targetRec, userPrefs, targetPrefs)
}

// ScoreBatch scores many candidates in bounded batches. Per-candidate
// failures and refusals are skipped, never aborting the batch.
func (s *Scorer) ScoreBatch(ctx context.Context, userID string, candidateIDs []string) ([]location.CompatibilityResult, error) {
	var results []location.CompatibilityResult

	for start := 0; start < len(candidateIDs); start += s.config.BatchSize {
		end := start + s.config.BatchSize
		if end > len(candidateIDs) {
			end = len(candidateIDs)
		}

		for _, targetID := range candidateIDs[start:end] {
			res, err := s.ScoreCandidate(ctx, userID, targetID)
			if err != nil {
				log.Printf("skipping candidate in batch: %v", err)
				continue
			}
			if res == nil {
				continue
			}
			results = append(results, *res)
		}
	}

	return results, nil
}

// verifiedHighPrecisionConsent reports whether both parties explicitly
// granted location consent, which stands in for high-precision matching
// consent when a privacy level alone is too weak.
func (s *Scorer) verifiedHighPrecisionConsent(ctx context.Context, userID, targetID string) bool {
	return s.consents.HasConsent(ctx, userID, consent.CategoryLocation) &&
		s.consents.HasConsent(ctx, targetID, consent.CategoryLocation)
}

func sharedZones(a, b []location.ProximityZone) []location.ProximityZone {
	ids := make(map[string]struct{}, len(a))
	for _, z := range a {
		ids[z.ID] = struct{}{}
	}

	var shared []location.ProximityZone
	for _, z := range b {
		if _, ok := ids[z.ID]; ok {
			shared = append(shared, z)
		}
	}
	return shared
}

// travelOptions estimates per-mode feasibility for an estimated distance.
// Durations are rough planning figures, not routing results.
func travelOptions(distanceKm float64) []location.TravelOption {
	return []location.TravelOption{
		{
			Mode:      "walking",
			Duration:  time.Duration(distanceKm*12) * time.Minute,
			CostBand:  "free",
			Available: distanceKm <= 5,
		},
		{
			Mode:      "public_transit",
			Duration:  time.Duration(distanceKm*3) * time.Minute,
			CostBand:  "low",
			Available: distanceKm <= 100,
		},
		{
			Mode:      "driving",
			Duration:  time.Duration(distanceKm) * time.Minute,
			CostBand:  "medium",
			Available: distanceKm <= 500,
		},
		{
			Mode:      "flight",
			Duration:  3*time.Hour + time.Duration(distanceKm/800*60)*time.Minute,
			CostBand:  "high",
			Available: distanceKm > 100,
		},
	}
}
