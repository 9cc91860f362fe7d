package geo

import (
	"fmt"
	"strings"

	"privloc/internal/domain/location"
)

// base32 is the standard geohash alphabet.
const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// BoundingBox is the lat/lng cell a geohash decodes to.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() location.Coordinates {
	return location.Coordinates{
		Latitude:  (b.MinLat + b.MaxLat) / 2,
		Longitude: (b.MinLng + b.MaxLng) / 2,
	}
}

// EncodeGeohash encodes coordinates into a base-32 geohash of the given
// length. Longer hashes name smaller cells; shared prefixes imply proximity.
func EncodeGeohash(coords location.Coordinates, precision int) (string, error) {
	if !coords.Valid() {
		return "", fmt.Errorf("cannot encode out-of-range coordinates lat=%f lng=%f", coords.Latitude, coords.Longitude)
	}
	if precision < 1 || precision > 12 {
		return "", fmt.Errorf("geohash precision must be in [1,12], got %d", precision)
	}

	latLo, latHi := -90.0, 90.0
	lngLo, lngHi := -180.0, 180.0

	var sb strings.Builder
	sb.Grow(precision)

	bit := 0
	idx := 0
	even := true

	for sb.Len() < precision {
		if even {
			mid := (lngLo + lngHi) / 2
			if coords.Longitude >= mid {
				idx = idx<<1 | 1
				lngLo = mid
			} else {
				idx = idx << 1
				lngHi = mid
			}
		} else {
			mid := (latLo + latHi) / 2
			if coords.Latitude >= mid {
				idx = idx<<1 | 1
				latLo = mid
			} else {
				idx = idx << 1
				latHi = mid
			}
		}
		even = !even

		bit++
		if bit == 5 {
			sb.WriteByte(base32[idx])
			bit = 0
			idx = 0
		}
	}

	return sb.String(), nil
}

// DecodeGeohash returns the bounding box a geohash names.
func DecodeGeohash(hash string) (BoundingBox, error) {
	if hash == "" {
		return BoundingBox{}, fmt.Errorf("empty geohash")
	}

	box := BoundingBox{MinLat: -90, MaxLat: 90, MinLng: -180, MaxLng: 180}
	even := true

	for _, ch := range strings.ToLower(hash) {
		idx := strings.IndexRune(base32, ch)
		if idx < 0 {
			return BoundingBox{}, fmt.Errorf("invalid geohash character %q", ch)
		}

		for bit := 4; bit >= 0; bit-- {
			set := idx>>uint(bit)&1 == 1
			if even {
				mid := (box.MinLng + box.MaxLng) / 2
				if set {
					box.MinLng = mid
				} else {
					box.MaxLng = mid
				}
			} else {
				mid := (box.MinLat + box.MaxLat) / 2
				if set {
					box.MinLat = mid
				} else {
					box.MaxLat = mid
				}
			}
			even = !even
		}
	}

	return box, nil
}

// sharedPrefixLen counts the leading characters two geohashes agree on.
func sharedPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}
