package geo

import (
	"context"
	"fmt"
	"log"

	"privloc/internal/domain/location"
)

// prefixDistanceKm maps shared-geohash-prefix length to an estimated
// distance bucket in kilometers. Index 0 is "no shared prefix"; entries past
// the end of the table reuse the last bucket. The estimate is intentionally
// coarse: comparing raw coordinates with haversine would defeat the privacy
// model, so distance is only ever derived from the geohash cells.
var prefixDistanceKm = []float64{5000, 1250, 156, 39, 5, 1.2, 0.15}

// ApproximationService turns noised coordinates into privacy-bounded
// approximate locations and estimates distance between users from their
// geohashes alone.
type ApproximationService struct {
	geocoder location.Geocoder
}

// NewApproximationService creates the service around a geocoding collaborator.
func NewApproximationService(geocoder location.Geocoder) *ApproximationService {
	return &ApproximationService{
		geocoder: geocoder,
	}
}

// BuildApproximateLocation reverse-geocodes noised coordinates and bounds the
// result by the privacy level: the disclosure radius is fixed per level and
// the minimal level omits city names and coordinate ranges entirely. Geocoder
// failures degrade to empty place fields rather than failing the pipeline.
func (s *ApproximationService) BuildApproximateLocation(
	ctx context.Context,
	noised location.Coordinates,
	level location.PrivacyLevel,
) (location.ApproximateLocation, error) {
	if !level.Valid() {
		return location.ApproximateLocation{}, fmt.Errorf("unknown privacy level %q", level)
	}

	place, err := s.geocoder.ReverseGeocode(ctx, noised)
	if err != nil {
		log.Printf("reverse geocode degraded: %v", err)
		place = location.GeocodeResult{}
	}

	approx := location.ApproximateLocation{
		Region:  place.Region,
		Country: place.Country,
	}

	if level.DisclosesCity() {
		approx.City = place.City
	}

	if level.DisclosesCoordinates() {
		approx.Range = &location.CoordinateRange{
			Center:   noised,
			RadiusKm: level.RadiusKm(),
		}
	}

	return approx, nil
}

// Encode produces the geohash for coordinates at the precision the privacy
// level allows.
func (s *ApproximationService) Encode(coords location.Coordinates, level location.PrivacyLevel) (string, error) {
	if !level.Valid() {
		return "", fmt.Errorf("unknown privacy level %q", level)
	}
	return EncodeGeohash(coords, level.GeohashPrecision())
}

// EstimateDistance estimates the distance in kilometers between two users
// from their geohash cells alone. The shared-prefix length gives the base
// bucket; cells whose boxes touch at a finer precision are read as one
// character coarser than that precision, so two points straddling a cell
// boundary are not misestimated as continents apart.
func EstimateDistance(hashA, hashB string) float64 {
	shared := sharedPrefixLen(hashA, hashB)

	n := len(hashA)
	if len(hashB) < n {
		n = len(hashB)
	}
	for p := n; p > shared; p-- {
		boxA, errA := DecodeGeohash(hashA[:p])
		boxB, errB := DecodeGeohash(hashB[:p])
		if errA != nil || errB != nil {
			break
		}
		if boxesTouch(boxA, boxB) {
			shared = p - 1
			break
		}
	}

	if shared >= len(prefixDistanceKm) {
		shared = len(prefixDistanceKm) - 1
	}
	return prefixDistanceKm[shared]
}

// boxesTouch reports whether two geohash cells share an edge or corner,
// including across the antimeridian. Cell edges decode to exact binary
// fractions, so equality comparisons are safe here.
func boxesTouch(a, b BoundingBox) bool {
	latTouch := a.MinLat <= b.MaxLat && b.MinLat <= a.MaxLat
	lngTouch := a.MinLng <= b.MaxLng && b.MinLng <= a.MaxLng
	if !lngTouch {
		lngTouch = (a.MaxLng == 180 && b.MinLng == -180) ||
			(b.MaxLng == 180 && a.MinLng == -180)
	}
	return latTouch && lngTouch
}

// Confidence returns how trustworthy a distance estimate between two privacy
// levels is: the weaker side bounds the whole estimate.
func Confidence(a, b location.PrivacyLevel) float64 {
	ca := a.Confidence()
	cb := b.Confidence()
	if cb < ca {
		return cb
	}
	return ca
}
