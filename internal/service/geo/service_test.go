package geo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privloc/internal/domain/location"
)

type stubGeocoder struct {
	result location.GeocodeResult
	err    error
}

func (g *stubGeocoder) ReverseGeocode(ctx context.Context, coords location.Coordinates) (location.GeocodeResult, error) {
	return g.result, g.err
}

func TestBuildApproximateLocationDisclosureByLevel(t *testing.T) {
	svc := NewApproximationService(&stubGeocoder{
		result: location.GeocodeResult{City: "Berlin", Region: "Berlin", Country: "Germany"},
	})
	coords := location.Coordinates{Latitude: 52.52, Longitude: 13.405}

	approx, err := svc.BuildApproximateLocation(context.Background(), coords, location.LevelMedium)
	require.NoError(t, err)
	assert.Equal(t, "Berlin", approx.City)
	assert.Equal(t, "Germany", approx.Country)
	require.NotNil(t, approx.Range)
	assert.Equal(t, coords, approx.Range.Center)
	assert.Equal(t, 5.0, approx.Range.RadiusKm)
}

func TestBuildApproximateLocationMinimalOmitsCityAndRange(t *testing.T) {
	svc := NewApproximationService(&stubGeocoder{
		result: location.GeocodeResult{City: "Berlin", Region: "Berlin", Country: "Germany"},
	})

	approx, err := svc.BuildApproximateLocation(
		context.Background(),
		location.Coordinates{Latitude: 52.52, Longitude: 13.405},
		location.LevelMinimal,
	)
	require.NoError(t, err)

	assert.Empty(t, approx.City)
	assert.Nil(t, approx.Range)
	assert.Equal(t, "Berlin", approx.Region)
	assert.Equal(t, "Germany", approx.Country)
}

func TestBuildApproximateLocationDegradesOnGeocoderFailure(t *testing.T) {
	svc := NewApproximationService(&stubGeocoder{err: errors.New("upstream timeout")})

	approx, err := svc.BuildApproximateLocation(
		context.Background(),
		location.Coordinates{Latitude: 52.52, Longitude: 13.405},
		location.LevelHigh,
	)
	require.NoError(t, err)

	assert.Empty(t, approx.City)
	assert.Empty(t, approx.Region)
	assert.Empty(t, approx.Country)
	require.NotNil(t, approx.Range)
}

func TestBuildApproximateLocationRejectsUnknownLevel(t *testing.T) {
	svc := NewApproximationService(&stubGeocoder{})

	_, err := svc.BuildApproximateLocation(
		context.Background(),
		location.Coordinates{Latitude: 1, Longitude: 1},
		location.PrivacyLevel("exact"),
	)
	assert.Error(t, err)
}

func TestEncodePrecisionFollowsLevel(t *testing.T) {
	svc := NewApproximationService(&stubGeocoder{})
	coords := location.Coordinates{Latitude: 48.8566, Longitude: 2.3522}

	cases := []struct {
		level location.PrivacyLevel
		want  int
	}{
		{location.LevelMinimal, 2},
		{location.LevelLow, 4},
		{location.LevelMedium, 6},
		{location.LevelHigh, 8},
		{location.LevelPrecise, 10},
	}

	var prev string
	for _, tc := range cases {
		hash, err := svc.Encode(coords, tc.level)
		require.NoError(t, err)
		assert.Len(t, hash, tc.want)

		// More precise levels extend the coarser hash.
		if prev != "" {
			assert.Equal(t, prev, hash[:len(prev)])
		}
		prev = hash
	}
}

func TestEstimateDistanceBuckets(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"gbsuv", "u4pru", 5000},
		{"u9zzz", "u4pru", 1250},
		{"u4zzz", "u4pru", 156},
		{"u4pzz", "u4pru", 39},
		{"u4prz", "u4pru", 5},
		{"u4pru", "u4pru", 1.2},
		{"u4pruy", "u4pruy", 0.15},
		{"u4pruydqqv", "u4pruydqqv", 0.15},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, EstimateDistance(tc.a, tc.b), "hashes %s / %s", tc.a, tc.b)
	}
}

func TestEstimateDistanceMonotonicAcrossCellBoundaries(t *testing.T) {
	encode := func(lat, lng float64) string {
		hash, err := EncodeGeohash(
			location.Coordinates{Latitude: lat, Longitude: lng},
			location.LevelMedium.GeohashPrecision(),
		)
		require.NoError(t, err)
		return hash
	}

	// A 1 km pair straddling the prime meridian encodes into cells that
	// share no prefix characters but touch; the estimate must stay near.
	near := EstimateDistance(encode(51.5, -0.005), encode(51.5, 0.005))
	assert.LessOrEqual(t, near, 5.0)

	// A ~700 km pair inside the same top-level cell.
	far := EstimateDistance(encode(48.8566, 2.3522), encode(48.1351, 11.582))
	assert.LessOrEqual(t, near, far)

	// A same-cell pair orders below both.
	tight := EstimateDistance(encode(51.5001, -0.0001), encode(51.5002, -0.0002))
	assert.LessOrEqual(t, tight, near)
	assert.LessOrEqual(t, tight, far)
}

func TestConfidenceTakesWeakerSide(t *testing.T) {
	assert.Equal(t, 0.2, Confidence(location.LevelMinimal, location.LevelPrecise))
	assert.Equal(t, 0.4, Confidence(location.LevelHigh, location.LevelLow))
	assert.Equal(t, 0.95, Confidence(location.LevelPrecise, location.LevelPrecise))
}
