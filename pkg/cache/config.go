package cache

import (
	"fmt"
	"time"
)

// Config holds the decision memo settings shared by every layer.
type Config struct {
	// Enabled turns the memo on. It is off by default.
	Enabled bool `mapstructure:"enabled"`

	// DefaultTTL is how long a decision is memoized when no TTL is given.
	DefaultTTL time.Duration `mapstructure:"ttl"`

	// MaxTTL caps any requested TTL. Zero means no cap.
	MaxTTL time.Duration `mapstructure:"max_ttl"`
}

// DefaultConfig returns a disabled memo with a ten minute TTL.
func DefaultConfig() Config {
	return Config{
		Enabled:    false,
		DefaultTTL: 10 * time.Minute,
		MaxTTL:     time.Hour,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.DefaultTTL < 0 {
		return fmt.Errorf("%w: negative ttl", ErrInvalidValue)
	}

	if c.MaxTTL < 0 {
		return fmt.Errorf("%w: negative max_ttl", ErrInvalidValue)
	}

	if c.MaxTTL > 0 && c.DefaultTTL > c.MaxTTL {
		return fmt.Errorf("%w: ttl %s exceeds max_ttl %s", ErrInvalidValue, c.DefaultTTL, c.MaxTTL)
	}

	return nil
}

// EffectiveTTL returns DefaultTTL for a non-positive ttl and caps the rest at
// MaxTTL.
func (c *Config) EffectiveTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return c.DefaultTTL
	}

	if c.MaxTTL > 0 && ttl > c.MaxTTL {
		return c.MaxTTL
	}

	return ttl
}
