package resilience

import (
	"fmt"
	"time"
)

// ResilientConfig configures resilience features for a memo layer.
type ResilientConfig struct {
	// Timeout bounds every operation on the wrapped layer. Zero disables it.
	Timeout time.Duration `mapstructure:"timeout"`

	// CircuitBreakerConfig configures the circuit breaker behavior
	CircuitBreakerConfig CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// CircuitBreakerConfig configures circuit breaker behavior.
type CircuitBreakerConfig struct {
	// MaxRequests is the maximum number of requests allowed to pass through
	// when the CircuitBreaker is half-open.
	MaxRequests uint32 `mapstructure:"max_requests"`

	// Interval is the cyclic period of the closed state for the CircuitBreaker
	// to clear the internal counts. If Interval is 0, it never clears.
	Interval time.Duration `mapstructure:"interval"`

	// Timeout is the period of the open state after which the state becomes half-open.
	Timeout time.Duration `mapstructure:"timeout"`

	// ReadyToTrip is called with a copy of Counts whenever a request fails.
	// If nil, the breaker trips after 5 consecutive failures.
	ReadyToTrip func(counts Counts) bool `mapstructure:"-"`
}

// Counts holds the numbers of requests and their successes/failures.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// ConsecutiveFailures returns a ReadyToTrip that opens after n failures in a row.
func ConsecutiveFailures(n uint32) func(Counts) bool {
	return func(c Counts) bool {
		return c.ConsecutiveFailures >= n
	}
}

// FailureRate returns a ReadyToTrip that opens once at least minRequests
// were seen and the failure ratio reaches rate.
func FailureRate(minRequests uint32, rate float64) func(Counts) bool {
	return func(c Counts) bool {
		if c.Requests < minRequests {
			return false
		}
		return float64(c.TotalFailures)/float64(c.Requests) >= rate
	}
}

// DefaultResilientConfig returns defaults sized for a remote memo tier. A
// memo lookup sits on the request path, so the timeout is short.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		Timeout: 50 * time.Millisecond,
		CircuitBreakerConfig: CircuitBreakerConfig{
			MaxRequests: 5,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: FailureRate(20, 0.15),
		},
	}
}

// Validate checks if the configuration is valid.
func (c ResilientConfig) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("resilience: negative timeout %s", c.Timeout)
	}
	if c.CircuitBreakerConfig.Interval < 0 || c.CircuitBreakerConfig.Timeout < 0 {
		return fmt.Errorf("resilience: negative circuit breaker durations")
	}
	return nil
}

// WithTimeout returns a copy of the config with the specified timeout.
func (c ResilientConfig) WithTimeout(timeout time.Duration) ResilientConfig {
	c.Timeout = timeout
	return c
}

// WithCircuitBreakerTimeout returns a copy of the config with the specified circuit breaker timeout.
func (c ResilientConfig) WithCircuitBreakerTimeout(timeout time.Duration) ResilientConfig {
	c.CircuitBreakerConfig.Timeout = timeout
	return c
}
