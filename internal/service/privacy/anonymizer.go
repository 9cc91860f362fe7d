package privacy

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Strength selects how aggressively unrecognized data is treated.
type Strength string

const (
	StrengthBasic    Strength = "basic"
	StrengthEnhanced Strength = "enhanced"
	StrengthMaximum  Strength = "maximum"
)

// maskedValue replaces unrecognized values at basic strength instead of
// dropping them.
const maskedValue = "[redacted]"

// hashLength is the truncated length of anonymized identifiers, in hex chars.
const hashLength = 16

// hashedPrefix marks anonymized identifiers. An explicit marker keeps the
// transform idempotent without guessing from the shape of raw ids, which a
// 16-hex-char raw identifier would otherwise satisfy.
const hashedPrefix = "anon:"

// SaltStore persists the per-install anonymization salt. The salt never
// leaves the device.
type SaltStore interface {
	GetSalt() (string, error)
	SaveSalt(salt string) error
}

// Anonymizer converts raw identifiers, coordinates, ages, device strings and
// timestamps into bounded, non-reversible representations. All transforms are
// deterministic for a given salt and input, so reapplying the engine to
// already-anonymized data is observationally a no-op.
type Anonymizer struct {
	salt string
}

// NewAnonymizer loads or creates the per-install salt through the store.
func NewAnonymizer(salts SaltStore) (*Anonymizer, error) {
	salt, err := salts.GetSalt()
	if err == nil && salt != "" {
		return &Anonymizer{salt: salt}, nil
	}

	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	salt = hex.EncodeToString(buf[:])

	if err := salts.SaveSalt(salt); err != nil {
		return nil, fmt.Errorf("persisting salt: %w", err)
	}

	return &Anonymizer{salt: salt}, nil
}

// NewAnonymizerWithSalt builds an engine around a known salt. Used by tests
// and callers that manage salt storage themselves.
func NewAnonymizerWithSalt(salt string) *Anonymizer {
	return &Anonymizer{salt: salt}
}

// HashIdentifier one-way hashes a user or device identifier with the install
// salt, truncates the digest to a fixed short length and tags it with the
// hashed marker. Marked values are left alone so the transform stays
// idempotent.
func (a *Anonymizer) HashIdentifier(id string) string {
	if id == "" {
		return ""
	}
	if isHashedIdentifier(id) {
		return id
	}

	sum := sha256.Sum256([]byte(a.salt + id))
	return hashedPrefix + hex.EncodeToString(sum[:])[:hashLength]
}

// isHashedIdentifier reports whether a value is a marked identifier hash.
func isHashedIdentifier(s string) bool {
	if !strings.HasPrefix(s, hashedPrefix) {
		return false
	}
	rest := s[len(hashedPrefix):]
	return len(rest) == hashLength && isLowerHex(rest)
}

// RoundCoordinate rounds a coordinate to 2 decimal places, roughly 1.1 km
// cells at the equator.
func (a *Anonymizer) RoundCoordinate(v float64) float64 {
	return math.Round(v*100) / 100
}

// BucketAge maps an exact age into a fixed range label. The raw integer is
// never emitted.
func (a *Anonymizer) BucketAge(age int) string {
	switch {
	case age < 18:
		return "under_18"
	case age <= 24:
		return "18_24"
	case age <= 34:
		return "25_34"
	case age <= 44:
		return "35_44"
	case age <= 54:
		return "45_54"
	default:
		return "55_plus"
	}
}

// ReduceDevice strips a device descriptor down to platform and major OS
// version, e.g. "iOS 17.4.1; iPhone15,3" -> "ios 17".
func (a *Anonymizer) ReduceDevice(descriptor string) string {
	fields := strings.Fields(strings.TrimSpace(descriptor))
	if len(fields) == 0 {
		return ""
	}

	platform := strings.ToLower(strings.TrimRight(fields[0], ";,"))

	major := ""
	for _, f := range fields[1:] {
		f = strings.TrimRight(f, ";,")
		head := f
		if i := strings.IndexByte(f, '.'); i >= 0 {
			head = f[:i]
		}
		if _, err := strconv.Atoi(head); err == nil {
			major = head
			break
		}
	}

	if major == "" {
		return platform
	}
	return platform + " " + major
}

// TruncateTimestamp drops sub-hour precision.
func (a *Anonymizer) TruncateTimestamp(t time.Time) time.Time {
	return t.Truncate(time.Hour)
}

// propertyTransforms maps allow-listed property keys to their field rule.
// Anything not present here is unrecognized and handled per strength.
var propertyTransforms = map[string]func(a *Anonymizer, v string) string{
	"user_id":   func(a *Anonymizer, v string) string { return a.HashIdentifier(v) },
	"device_id": func(a *Anonymizer, v string) string { return a.HashIdentifier(v) },
	"age": func(a *Anonymizer, v string) string {
		n, err := strconv.Atoi(v)
		if err != nil {
			// Already a bucket label or junk; bucket labels pass through.
			return v
		}
		return a.BucketAge(n)
	},
	"device":        func(a *Anonymizer, v string) string { return a.ReduceDevice(v) },
	"latitude":      roundCoordString,
	"longitude":     roundCoordString,
	"screen":        passthrough,
	"action":        passthrough,
	"category":      passthrough,
	"duration_ms":   passthrough,
	"result_count":  passthrough,
	"privacy_level": passthrough,
}

func passthrough(_ *Anonymizer, v string) string { return v }

func roundCoordString(a *Anonymizer, v string) string {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return v
	}
	return strconv.FormatFloat(a.RoundCoordinate(f), 'f', 2, 64)
}

// SanitizeProperties applies the field rules to an event property bag.
// Unrecognized keys are masked at basic strength and dropped at enhanced or
// maximum strength.
func (a *Anonymizer) SanitizeProperties(props map[string]string, strength Strength) map[string]string {
	if len(props) == 0 {
		return nil
	}

	out := make(map[string]string, len(props))
	for k, v := range props {
		key := strings.ToLower(k)
		if transform, ok := propertyTransforms[key]; ok {
			out[key] = transform(a, v)
			continue
		}

		if strength == StrengthBasic {
			out[key] = maskedValue
		}
		// enhanced/maximum: dropped.
	}

	return out
}

func isLowerHex(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
