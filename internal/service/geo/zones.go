package geo

import (
	"context"
	"fmt"
	"strings"

	"privloc/internal/domain/location"
)

// MinimumAnonymity is the smallest member count a city-level zone may be
// disclosed with (k-anonymity). The value is a heuristic, not derived from
// user data.
const MinimumAnonymity = 5

// ZoneManagerConfig contains configuration for the zone manager.
type ZoneManagerConfig struct {
	MinimumAnonymity int
}

// ZoneManager groups users into named city/region zones and suppresses any
// city zone that would identify too small a group.
type ZoneManager struct {
	counter location.ZoneCounter
	config  ZoneManagerConfig
}

// NewZoneManager creates a zone manager around an aggregate-count
// collaborator.
func NewZoneManager(counter location.ZoneCounter, config ZoneManagerConfig) *ZoneManager {
	if config.MinimumAnonymity <= 0 {
		config.MinimumAnonymity = MinimumAnonymity
	}

	return &ZoneManager{
		counter: counter,
		config:  config,
	}
}

// DetermineZones derives the zones an approximate location belongs to. City
// zones are included only when the aggregate member count meets the anonymity
// threshold; a suppressed zone is omitted entirely so its absence cannot leak
// a lone occupant. Region zones are coarse enough to skip suppression.
func (m *ZoneManager) DetermineZones(
	ctx context.Context,
	approx location.ApproximateLocation,
	level location.PrivacyLevel,
) ([]location.ProximityZone, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("unknown privacy level %q", level)
	}

	var zones []location.ProximityZone

	if approx.City != "" && level.DisclosesCity() {
		count, err := m.counter.CountUsersInZone(ctx, location.ZoneCity, approx.City)
		if err != nil {
			return nil, fmt.Errorf("counting city zone members: %w", err)
		}

		if count >= m.config.MinimumAnonymity {
			zones = append(zones, location.ProximityZone{
				ID:          zoneID(location.ZoneCity, approx.City),
				Type:        location.ZoneCity,
				Label:       approx.City,
				MemberCount: count,
			})
		}
	}

	if approx.Region != "" {
		count, err := m.counter.CountUsersInZone(ctx, location.ZoneRegion, approx.Region)
		if err != nil {
			return nil, fmt.Errorf("counting region zone members: %w", err)
		}

		zones = append(zones, location.ProximityZone{
			ID:          zoneID(location.ZoneRegion, approx.Region),
			Type:        location.ZoneRegion,
			Label:       approx.Region,
			MemberCount: count,
		})
	}

	return zones, nil
}

// GetUserCountInZone exposes the aggregate count for a zone. It only ever
// surfaces a number, never membership.
func (m *ZoneManager) GetUserCountInZone(ctx context.Context, zoneType location.ZoneType, label string) (int, error) {
	return m.counter.CountUsersInZone(ctx, zoneType, label)
}

func zoneID(t location.ZoneType, label string) string {
	return string(t) + ":" + strings.ToLower(strings.ReplaceAll(label, " ", "_"))
}
