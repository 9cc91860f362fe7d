package location

import (
	"math"
	"time"
)

// Coordinates is a raw latitude/longitude pair. Raw coordinates are an input
// to the privacy pipeline and are never persisted.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Valid reports whether the coordinates are inside WGS84 bounds.
func (c Coordinates) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// Suspicious reports whether the coordinates look like a placeholder fix.
// An exact (0,0) is overwhelmingly a failed GPS read, not a real user in the
// Gulf of Guinea.
func (c Coordinates) Suspicious() bool {
	return c.Latitude == 0 && c.Longitude == 0
}

// PrivacyLevel is a named precision tier for stored and disclosed location
// data. Higher tiers disclose more precision and retain data for less time.
type PrivacyLevel string

const (
	LevelMinimal PrivacyLevel = "minimal"
	LevelLow     PrivacyLevel = "low"
	LevelMedium  PrivacyLevel = "medium"
	LevelHigh    PrivacyLevel = "high"
	LevelPrecise PrivacyLevel = "precise"
)

// levelParams fixes per-level precision, disclosure radius, distance-estimate
// confidence and retention ceiling. The table is ordered minimal < precise.
var levelParams = map[PrivacyLevel]struct {
	rank            int
	geohashLen      int
	radiusKm        float64
	confidence      float64
	retentionDays   int
	disclosesCity   bool
	disclosesCoords bool
}{
	LevelMinimal: {0, 2, 50, 0.2, 365, false, false},
	LevelLow:     {1, 4, 25, 0.4, 180, true, true},
	LevelMedium:  {2, 6, 5, 0.7, 90, true, true},
	LevelHigh:    {3, 8, 1, 0.9, 30, true, true},
	LevelPrecise: {4, 10, 0.1, 0.95, 7, true, true},
}

// Valid reports whether the level is one of the known tiers.
func (l PrivacyLevel) Valid() bool {
	_, ok := levelParams[l]
	return ok
}

// Rank orders levels minimal(0) to precise(4).
func (l PrivacyLevel) Rank() int { return levelParams[l].rank }

// GeohashPrecision returns the geohash length for this level.
func (l PrivacyLevel) GeohashPrecision() int { return levelParams[l].geohashLen }

// RadiusKm returns the disclosed coordinate-range radius for this level.
func (l PrivacyLevel) RadiusKm() float64 { return levelParams[l].radiusKm }

// Confidence returns the distance-estimate confidence for this level.
func (l PrivacyLevel) Confidence() float64 { return levelParams[l].confidence }

// RetentionDays returns the retention ceiling for this level. More precise
// data is kept for less time.
func (l PrivacyLevel) RetentionDays() int { return levelParams[l].retentionDays }

// DisclosesCity reports whether the level discloses city names.
func (l PrivacyLevel) DisclosesCity() bool { return levelParams[l].disclosesCity }

// DisclosesCoordinates reports whether the level discloses a coordinate range.
func (l PrivacyLevel) DisclosesCoordinates() bool { return levelParams[l].disclosesCoords }

// CoordinateRange is a bounded disclosure of where a user roughly is.
type CoordinateRange struct {
	Center   Coordinates
	RadiusKm float64
}

// ApproximateLocation is the only location representation that leaves the
// pipeline. Field presence depends on the owning record's privacy level.
type ApproximateLocation struct {
	City    string
	Region  string
	Country string
	Range   *CoordinateRange
}

// ZoneType distinguishes zone granularities.
type ZoneType string

const (
	ZoneCity   ZoneType = "city"
	ZoneRegion ZoneType = "region"
)

// ProximityZone is a named area a user belongs to. MemberCount is an
// aggregate, never derived from a user list.
type ProximityZone struct {
	ID          string
	Type        ZoneType
	Label       string
	MemberCount int
}

// RetentionPolicy bounds how long a location record may live.
type RetentionPolicy struct {
	MaxRetentionDays int
	AutoDelete       bool
	Purposes         []string
}

// Record is the persisted, privacy-bounded location state for one user.
type Record struct {
	UserID      string
	Approximate ApproximateLocation
	Level       PrivacyLevel
	Geohash     string
	Zones       []ProximityZone
	LastUpdated time.Time
	Retention   RetentionPolicy
}

// TravelWillingness expresses how far a user is prepared to travel for a
// match. Each value implies a maximum-distance ceiling.
type TravelWillingness string

const (
	TravelLocalOnly     TravelWillingness = "local_only"
	TravelMetroArea     TravelWillingness = "metro_area"
	TravelRegional      TravelWillingness = "regional"
	TravelNational      TravelWillingness = "national"
	TravelInternational TravelWillingness = "international"
)

// CeilingKm returns the implicit distance ceiling for a willingness tier.
func (t TravelWillingness) CeilingKm() float64 {
	switch t {
	case TravelLocalOnly:
		return 25
	case TravelMetroArea:
		return 100
	case TravelRegional:
		return 500
	case TravelNational:
		return 2000
	case TravelInternational:
		return math.Inf(1)
	default:
		return 100
	}
}

// PrivacySettings controls what location detail may be shared and whether
// location-based matching is allowed at all.
type PrivacySettings struct {
	ShareExactLocation bool
	ShareCity          bool
	ShareRegion        bool
	ShareCountry       bool

	AllowLocationBasedMatching bool
	RetentionDays              int
}

// MatchingPreferences is the per-user configuration consumed by the scorer.
type MatchingPreferences struct {
	UserID             string
	MaxDistanceKm      float64
	PreferredZones     []string
	AvoidedZones       []string
	TravelWillingness  TravelWillingness
	LocationImportance float64
	Privacy            PrivacySettings
}

// DefaultPreferences returns the preferences applied when a user has never
// configured any.
func DefaultPreferences(userID string) MatchingPreferences {
	return MatchingPreferences{
		UserID:             userID,
		MaxDistanceKm:      50,
		TravelWillingness:  TravelMetroArea,
		LocationImportance: 0.5,
		Privacy: PrivacySettings{
			ShareCity:                  true,
			ShareRegion:                true,
			ShareCountry:               true,
			AllowLocationBasedMatching: true,
			RetentionDays:              90,
		},
	}
}

// DistanceCategory buckets an estimated distance for display.
type DistanceCategory string

const (
	DistanceVeryClose DistanceCategory = "very_close"
	DistanceClose     DistanceCategory = "close"
	DistanceModerate  DistanceCategory = "moderate"
	DistanceFar       DistanceCategory = "far"
	DistanceVeryFar   DistanceCategory = "very_far"
)

// CategorizeDistance maps a distance to its display bucket. Boundaries belong
// to the upper bucket: exactly 5 km is "close", exactly 25 km is "moderate".
func CategorizeDistance(km float64) DistanceCategory {
	switch {
	case km < 5:
		return DistanceVeryClose
	case km < 25:
		return DistanceClose
	case km < 100:
		return DistanceModerate
	case km < 500:
		return DistanceFar
	default:
		return DistanceVeryFar
	}
}

// TravelOption describes one way of covering the estimated distance.
type TravelOption struct {
	Mode      string
	Duration  time.Duration
	CostBand  string
	Available bool
}

// CompatibilityResult is the ephemeral outcome of scoring one candidate pair.
// It is computed per request and never persisted.
type CompatibilityResult struct {
	TargetUserID     string
	DistanceKm       float64
	DistanceCategory DistanceCategory
	Score            float64
	Confidence       float64
	SharedZones      []ProximityZone
	TravelOptions    []TravelOption
	PrivacyCompliant bool
}
