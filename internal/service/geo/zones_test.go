package geo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privloc/internal/domain/location"
)

type stubCounter struct {
	counts map[string]int
	err    error
}

func (c *stubCounter) CountUsersInZone(ctx context.Context, zoneType location.ZoneType, label string) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	return c.counts[string(zoneType)+":"+label], nil
}

func TestDetermineZonesSuppressesSmallCity(t *testing.T) {
	mgr := NewZoneManager(&stubCounter{counts: map[string]int{
		"city:Reykjavik": 3,
		"region:Capital": 40,
	}}, ZoneManagerConfig{})

	zones, err := mgr.DetermineZones(context.Background(), location.ApproximateLocation{
		City:   "Reykjavik",
		Region: "Capital",
	}, location.LevelMedium)
	require.NoError(t, err)

	// The city zone is omitted entirely, not reported with a low count.
	require.Len(t, zones, 1)
	assert.Equal(t, location.ZoneRegion, zones[0].Type)
	assert.Equal(t, "Capital", zones[0].Label)
	assert.Equal(t, 40, zones[0].MemberCount)
}

func TestDetermineZonesIncludesCityAtThreshold(t *testing.T) {
	mgr := NewZoneManager(&stubCounter{counts: map[string]int{
		"city:Oslo":      5,
		"region:Eastern": 120,
	}}, ZoneManagerConfig{})

	zones, err := mgr.DetermineZones(context.Background(), location.ApproximateLocation{
		City:   "Oslo",
		Region: "Eastern",
	}, location.LevelMedium)
	require.NoError(t, err)

	require.Len(t, zones, 2)
	assert.Equal(t, location.ZoneCity, zones[0].Type)
	assert.Equal(t, "city:oslo", zones[0].ID)
	assert.Equal(t, 5, zones[0].MemberCount)
	assert.Equal(t, location.ZoneRegion, zones[1].Type)
}

func TestDetermineZonesSkipsCityForMinimalLevel(t *testing.T) {
	mgr := NewZoneManager(&stubCounter{counts: map[string]int{
		"city:Oslo":      500,
		"region:Eastern": 1200,
	}}, ZoneManagerConfig{})

	zones, err := mgr.DetermineZones(context.Background(), location.ApproximateLocation{
		City:   "Oslo",
		Region: "Eastern",
	}, location.LevelMinimal)
	require.NoError(t, err)

	require.Len(t, zones, 1)
	assert.Equal(t, location.ZoneRegion, zones[0].Type)
}

func TestDetermineZonesRegionAlwaysIncluded(t *testing.T) {
	mgr := NewZoneManager(&stubCounter{counts: map[string]int{
		"region:Remote Highlands": 1,
	}}, ZoneManagerConfig{})

	zones, err := mgr.DetermineZones(context.Background(), location.ApproximateLocation{
		Region: "Remote Highlands",
	}, location.LevelHigh)
	require.NoError(t, err)

	// Region zones are coarse enough to skip k-anonymity suppression.
	require.Len(t, zones, 1)
	assert.Equal(t, "region:remote_highlands", zones[0].ID)
	assert.Equal(t, 1, zones[0].MemberCount)
}

func TestDetermineZonesCounterError(t *testing.T) {
	mgr := NewZoneManager(&stubCounter{err: errors.New("db down")}, ZoneManagerConfig{})

	_, err := mgr.DetermineZones(context.Background(), location.ApproximateLocation{
		City:   "Oslo",
		Region: "Eastern",
	}, location.LevelMedium)
	assert.Error(t, err)
}

func TestNewZoneManagerDefaultsAnonymity(t *testing.T) {
	mgr := NewZoneManager(&stubCounter{}, ZoneManagerConfig{})
	assert.Equal(t, MinimumAnonymity, mgr.config.MinimumAnonymity)

	mgr = NewZoneManager(&stubCounter{}, ZoneManagerConfig{MinimumAnonymity: 10})
	assert.Equal(t, 10, mgr.config.MinimumAnonymity)
}
