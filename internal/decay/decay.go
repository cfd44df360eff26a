// Package decay implements the retention model for short-term memories.
//
// Retention follows an exponential forgetting curve: a fresh entry starts
// at strength 1.0 and decays toward zero as it ages. Each reinforcement
// (a repeated or related mention) multiplies the effective lifetime, so
// frequently touched memories flatten their own curve, the spaced
// repetition effect.
package decay

import (
	"math"
	"time"
)

// Model computes retention strength from age and reinforcement history.
// The zero value is unusable; use Default or build one explicitly.
type Model struct {
	// BaseLifetime is the decay time constant for an unreinforced entry.
	BaseLifetime time.Duration
	// GrowthFactor multiplies the lifetime once per reinforcement.
	GrowthFactor float64
}

// Default returns the standard tuning: 8-hour base lifetime, doubling per
// reinforcement. An untouched entry falls below 0.05 after roughly a day.
func Default() Model {
	return Model{
		BaseLifetime: 8 * time.Hour,
		GrowthFactor: 2.0,
	}
}

// Strength returns retention in [0, 1] for an entry of the given age with
// the given reinforcement count. Pure and total: negative ages clamp to
// zero, negative reinforcement counts clamp to zero, and the result is
// always a valid strength.
//
// strength = exp(-age / (BaseLifetime * GrowthFactor^reinforcements))
func (m Model) Strength(age time.Duration, reinforcements int) float64 {
	if age <= 0 {
		return 1.0
	}
	if reinforcements < 0 {
		reinforcements = 0
	}

	lifetime := m.BaseLifetime.Seconds() * math.Pow(m.GrowthFactor, float64(reinforcements))
	if lifetime <= 0 {
		return 0.0
	}

	s := math.Exp(-age.Seconds() / lifetime)
	if s > 1.0 {
		return 1.0
	}
	if s < 0.0 {
		return 0.0
	}
	return s
}

// Lifetime returns the effective decay time constant after the given
// number of reinforcements. Exposed for scheduling diagnostics.
func (m Model) Lifetime(reinforcements int) time.Duration {
	if reinforcements < 0 {
		reinforcements = 0
	}
	secs := m.BaseLifetime.Seconds() * math.Pow(m.GrowthFactor, float64(reinforcements))
	return time.Duration(secs * float64(time.Second))
}
