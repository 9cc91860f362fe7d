package privacy

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	mrand "math/rand"
	"sync"

	"privloc/internal/domain/location"
	"privloc/internal/domain/privacy"
)

// Mechanism selects the noise distribution.
type Mechanism string

const (
	MechanismLaplace  Mechanism = "laplace"
	MechanismGaussian Mechanism = "gaussian"
)

// NoiseConfig parameterizes a differential-privacy noise draw.
type NoiseConfig struct {
	Epsilon     float64
	Delta       float64
	Sensitivity float64
	Mechanism   Mechanism
}

// DefaultNoiseConfig is the budget applied to location fixes when the caller
// does not override it.
func DefaultNoiseConfig() NoiseConfig {
	return NoiseConfig{
		Epsilon:     1.0,
		Delta:       1e-5,
		Sensitivity: 1.0,
		Mechanism:   MechanismLaplace,
	}
}

// noiseScaleDegrees converts unit noise to degrees of latitude/longitude,
// targeting roughly 100m of displacement per unit of scale.
const noiseScaleDegrees = 0.001

// NoiseGenerator draws calibrated random noise for coordinate perturbation.
// Each call draws fresh randomness; outputs are intentionally non-deterministic.
type NoiseGenerator struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewNoiseGenerator creates a generator seeded from the system's secure
// random source.
func NewNoiseGenerator() *NoiseGenerator {
	var seed int64
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err == nil {
		seed = int64(binary.LittleEndian.Uint64(buf[:]))
	}

	return &NoiseGenerator{
		rng: mrand.New(mrand.NewSource(seed)),
	}
}

// ApplyNoise perturbs raw coordinates under the given budget and clamps the
// result to valid latitude/longitude ranges. Out-of-range or placeholder
// input is rejected before any noise is drawn.
func (g *NoiseGenerator) ApplyNoise(coords location.Coordinates, cfg NoiseConfig) (location.Coordinates, error) {
	if !coords.Valid() {
		return location.Coordinates{}, fmt.Errorf("lat=%f lng=%f: %w", coords.Latitude, coords.Longitude, privacy.ErrInvalidCoordinates)
	}
	if coords.Suspicious() {
		return location.Coordinates{}, fmt.Errorf("placeholder (0,0) fix: %w", privacy.ErrSuspiciousCoordinates)
	}
	if cfg.Epsilon <= 0 {
		return location.Coordinates{}, fmt.Errorf("epsilon must be positive, got %f", cfg.Epsilon)
	}

	latNoise, err := g.sample(cfg)
	if err != nil {
		return location.Coordinates{}, err
	}
	lngNoise, err := g.sample(cfg)
	if err != nil {
		return location.Coordinates{}, err
	}

	noised := location.Coordinates{
		Latitude:  clamp(coords.Latitude+latNoise*noiseScaleDegrees, -90, 90),
		Longitude: clamp(coords.Longitude+lngNoise*noiseScaleDegrees, -180, 180),
	}

	return noised, nil
}

// sample draws one unit of noise under the configured mechanism.
func (g *NoiseGenerator) sample(cfg NoiseConfig) (float64, error) {
	switch cfg.Mechanism {
	case MechanismLaplace, "":
		return g.laplace(cfg.Sensitivity / cfg.Epsilon), nil
	case MechanismGaussian:
		if cfg.Delta <= 0 {
			return 0, fmt.Errorf("gaussian mechanism requires delta > 0, got %f", cfg.Delta)
		}
		return g.gaussian(cfg.Epsilon, cfg.Delta, cfg.Sensitivity), nil
	default:
		return 0, fmt.Errorf("unsupported noise mechanism: %s", cfg.Mechanism)
	}
}

// laplace samples Laplace(0, scale) via the inverse CDF of a uniform variate.
func (g *NoiseGenerator) laplace(scale float64) float64 {
	g.mu.Lock()
	u := g.rng.Float64() - 0.5
	g.mu.Unlock()

	if u < 0 {
		return scale * math.Log(1.0+2.0*u)
	}
	return -scale * math.Log(1.0-2.0*u)
}

// gaussian samples N(0, sigma) with sigma from the analytic Gaussian
// mechanism: sigma = sqrt(2*ln(1.25/delta)) * sensitivity / epsilon.
func (g *NoiseGenerator) gaussian(epsilon, delta, sensitivity float64) float64 {
	sigma := math.Sqrt(2*math.Log(1.25/delta)) * sensitivity / epsilon

	g.mu.Lock()
	u1 := g.rng.Float64()
	u2 := g.rng.Float64()
	g.mu.Unlock()

	// Box-Muller transform. Guard u1 away from zero for the log.
	if u1 < 1e-300 {
		u1 = 1e-300
	}
	z0 := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

	return sigma * z0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
