// Package sim produces synthetic per-tick price motion for instruments
// that are not sourced from a live feed.
package sim

import (
	"math"
	"math/rand"
)

const (
	// MaxChangePct bounds the simulated percentage change in either direction.
	MaxChangePct = 10.0

	// damping pulls the change back toward zero each tick, preventing
	// unbounded drift of the random walk.
	damping = 0.98
)

// NoiseSource returns a uniform random value in [-1, 1).
// Parameterized so tests can pin the walk to a known sequence.
type NoiseSource func() float64

// NewNoise builds a NoiseSource from a seeded generator.
func NewNoise(seed int64) NoiseSource {
	rng := rand.New(rand.NewSource(seed))
	return func() float64 {
		return rng.Float64()*2 - 1
	}
}

// Generator computes synthetic percentage-change deltas using a slow
// momentum wave, uniform noise and a time-varying volatility envelope.
type Generator struct {
	noise NoiseSource
}

// NewGenerator creates a generator backed by the given noise source.
// A nil source falls back to an unseeded one.
func NewGenerator(noise NoiseSource) *Generator {
	if noise == nil {
		noise = NewNoise(rand.Int63())
	}
	return &Generator{noise: noise}
}

// Step advances the change percentage of one instrument.
// instrumentIndex phase-shifts the momentum wave so tiles do not move
// in lockstep. The result is clamped to [-MaxChangePct, MaxChangePct].
func (g *Generator) Step(oldChangePct float64, instrumentIndex int, nowMs int64, volatilityMultiplier float64) float64 {
	momentum := math.Sin(float64(nowMs)/10000+float64(instrumentIndex)) * 0.3
	noise := g.noise()
	volatility := (0.5 + math.Sin(float64(nowMs)/5000)*0.3) * volatilityMultiplier
	delta := (momentum + noise) * volatility

	return clamp(-MaxChangePct, MaxChangePct, (oldChangePct+delta)*damping)
}

func clamp(lo, hi, v float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
