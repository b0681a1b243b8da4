package tiered

import (
	"math"
	"time"
)

// TTLStrategy determines the TTL used for each tier.
type TTLStrategy interface {
	// GetTTL returns the TTL for tier index of numTiers.
	GetTTL(index, numTiers int, baseTTL time.Duration) time.Duration
}

// UniformTTLStrategy uses the same TTL for all tiers.
type UniformTTLStrategy struct{}

// GetTTL returns baseTTL.
func (UniformTTLStrategy) GetTTL(index, numTiers int, baseTTL time.Duration) time.Duration {
	return baseTTL
}

// DecayingTTLStrategy gives faster tiers shorter TTLs. With DecayFactor 0.5
// and three tiers, L1 gets a quarter of baseTTL, L2 half, L3 all of it.
type DecayingTTLStrategy struct {
	DecayFactor float64
}

// GetTTL returns baseTTL scaled by DecayFactor^(numTiers-index-1).
func (s DecayingTTLStrategy) GetTTL(index, numTiers int, baseTTL time.Duration) time.Duration {
	if s.DecayFactor <= 0 || s.DecayFactor >= 1 || index >= numTiers {
		return baseTTL
	}

	exponent := float64(numTiers - index - 1)
	return time.Duration(float64(baseTTL) * math.Pow(s.DecayFactor, exponent))
}

// CustomTTLStrategy uses explicit TTL values for each tier.
type CustomTTLStrategy struct {
	TTLs []time.Duration
}

// GetTTL returns the configured TTL for index, or baseTTL if none is set.
func (s CustomTTLStrategy) GetTTL(index, numTiers int, baseTTL time.Duration) time.Duration {
	if index < len(s.TTLs) && s.TTLs[index] > 0 {
		return s.TTLs[index]
	}
	return baseTTL
}
