package metrics

import (
	"time"
)

// Collector defines the interface for collecting decision pipeline metrics.
// Implementations can export metrics to various backends (Prometheus, in-memory, etc.).
type Collector interface {
	// Model handle
	RecordModelLoad(success bool, duration time.Duration)

	// Decision engine
	RecordDecision(label string, probability float64, duration time.Duration)
	RecordInferenceError(reason string)
	RecordUnavailable()

	// Decision memo
	RecordMemoGet(store string, hit bool, duration time.Duration)
	RecordMemoSet(store string, success bool, duration time.Duration)
	RecordCircuitState(store string, state CircuitState)

	// Write-behind queue
	RecordQueueDepth(store string, depth int)
	RecordWriteDropped(store string)
}

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed means the circuit breaker is allowing requests through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the circuit breaker is blocking requests.
	CircuitOpen
	// CircuitHalfOpen means the circuit breaker is testing if the store has recovered.
	CircuitHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// NoOpCollector is the default collector when metrics are not needed.
type NoOpCollector struct{}

func (NoOpCollector) RecordModelLoad(success bool, duration time.Duration)                      {}
func (NoOpCollector) RecordDecision(label string, probability float64, duration time.Duration) {}
func (NoOpCollector) RecordInferenceError(reason string)                                        {}
func (NoOpCollector) RecordUnavailable()                                                        {}
func (NoOpCollector) RecordMemoGet(store string, hit bool, duration time.Duration)              {}
func (NoOpCollector) RecordMemoSet(store string, success bool, duration time.Duration)          {}
func (NoOpCollector) RecordCircuitState(store string, state CircuitState)                       {}
func (NoOpCollector) RecordQueueDepth(store string, depth int)                                  {}
func (NoOpCollector) RecordWriteDropped(store string)                                           {}

// OrNoOp returns c, or a NoOpCollector when c is nil.
func OrNoOp(c Collector) Collector {
	if c == nil {
		return NoOpCollector{}
	}
	return c
}
