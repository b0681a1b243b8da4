package resilience

import (
	"context"
	"errors"
	"time"

	"fraud-gate/pkg/cache"
	"fraud-gate/pkg/engine"
	"fraud-gate/pkg/logging"
	"fraud-gate/pkg/metrics"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ResilientLayer wraps a memo layer with a circuit breaker and a per-call
// timeout. Misses do not count as failures.
type ResilientLayer struct {
	layer   cache.Layer
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	metrics metrics.Collector
	logger  *logging.Logger
}

// NewResilientLayer creates a new resilient layer wrapper around the given layer.
func NewResilientLayer(layer cache.Layer, config ResilientConfig) *ResilientLayer {
	return NewResilientLayerWithMetrics(layer, config, metrics.NoOpCollector{})
}

// NewResilientLayerWithMetrics creates a new resilient layer with custom metrics collector.
func NewResilientLayerWithMetrics(layer cache.Layer, config ResilientConfig, collector metrics.Collector) *ResilientLayer {
	logger := logging.L().Named("resilience").Named(layer.Name())

	rl := &ResilientLayer{
		layer:   layer,
		timeout: config.Timeout,
		metrics: metrics.OrNoOp(collector),
		logger:  logger,
	}

	logger.Debug("resilient layer initialized",
		zap.String("layer", layer.Name()),
		zap.Duration("timeout", config.Timeout),
		zap.Uint32("max_requests", config.CircuitBreakerConfig.MaxRequests),
		zap.Duration("circuit_interval", config.CircuitBreakerConfig.Interval),
		zap.Duration("circuit_timeout", config.CircuitBreakerConfig.Timeout),
	)

	readyToTrip := config.CircuitBreakerConfig.ReadyToTrip
	if readyToTrip == nil {
		readyToTrip = ConsecutiveFailures(5)
	}

	rl.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        layer.Name(),
		MaxRequests: config.CircuitBreakerConfig.MaxRequests,
		Interval:    config.CircuitBreakerConfig.Interval,
		Timeout:     config.CircuitBreakerConfig.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return readyToTrip(Counts{
				Requests:             counts.Requests,
				TotalSuccesses:       counts.TotalSuccesses,
				TotalFailures:        counts.TotalFailures,
				ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
				ConsecutiveFailures:  counts.ConsecutiveFailures,
			})
		},
		IsSuccessful: func(err error) bool {
			return err == nil || cache.IsNotFound(err) || errors.Is(err, cache.ErrInvalidKey)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("layer", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			rl.metrics.RecordCircuitState(name, circuitState(to))
		},
	})

	return rl
}

func circuitState(s gobreaker.State) metrics.CircuitState {
	switch s {
	case gobreaker.StateOpen:
		return metrics.CircuitOpen
	case gobreaker.StateHalfOpen:
		return metrics.CircuitHalfOpen
	default:
		return metrics.CircuitClosed
	}
}

// Name returns the name of the underlying layer.
func (rl *ResilientLayer) Name() string {
	return rl.layer.Name()
}

// State returns the current circuit breaker state.
func (rl *ResilientLayer) State() metrics.CircuitState {
	return circuitState(rl.cb.State())
}

// Get retrieves a decision with timeout and circuit breaker protection.
func (rl *ResilientLayer) Get(ctx context.Context, key string) (engine.Decision, error) {
	start := time.Now()

	ctx, cancel := rl.withTimeout(ctx)
	defer cancel()

	result, err := rl.cb.Execute(func() (interface{}, error) {
		return rl.layer.Get(ctx, key)
	})

	duration := time.Since(start)
	rl.metrics.RecordMemoGet(rl.layer.Name(), err == nil, duration)

	if err != nil {
		return engine.Decision{}, rl.translate(ctx, "get", key, duration, err)
	}

	return result.(engine.Decision), nil
}

// Set stores a decision with timeout and circuit breaker protection.
func (rl *ResilientLayer) Set(ctx context.Context, key string, d engine.Decision, ttl time.Duration) error {
	start := time.Now()

	ctx, cancel := rl.withTimeout(ctx)
	defer cancel()

	_, err := rl.cb.Execute(func() (interface{}, error) {
		return nil, rl.layer.Set(ctx, key, d, ttl)
	})

	duration := time.Since(start)
	rl.metrics.RecordMemoSet(rl.layer.Name(), err == nil, duration)

	if err != nil {
		return rl.translate(ctx, "set", key, duration, err)
	}
	return nil
}

// Delete removes a decision with timeout and circuit breaker protection.
func (rl *ResilientLayer) Delete(ctx context.Context, key string) error {
	start := time.Now()

	ctx, cancel := rl.withTimeout(ctx)
	defer cancel()

	_, err := rl.cb.Execute(func() (interface{}, error) {
		return nil, rl.layer.Delete(ctx, key)
	})

	if err != nil {
		return rl.translate(ctx, "delete", key, time.Since(start), err)
	}
	return nil
}

// Close closes the underlying layer.
func (rl *ResilientLayer) Close() error {
	return rl.layer.Close()
}

func (rl *ResilientLayer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if rl.timeout > 0 {
		return context.WithTimeout(ctx, rl.timeout)
	}
	return ctx, func() {}
}

// translate maps breaker and deadline failures onto cache sentinels.
func (rl *ResilientLayer) translate(ctx context.Context, op, key string, elapsed time.Duration, err error) error {
	switch {
	case cache.IsNotFound(err):
		return err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		rl.logger.Debug("circuit breaker open - request rejected",
			zap.String("operation", op),
			zap.String("key", key),
		)
		return cache.ErrCircuitOpen
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		rl.logger.Warn("operation timeout",
			zap.String("operation", op),
			zap.String("key", key),
			zap.Duration("timeout", rl.timeout),
			zap.Duration("elapsed", elapsed),
		)
		return cache.ErrTimeout
	default:
		rl.logger.Error("memo operation failed",
			zap.String("operation", op),
			zap.String("key", key),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return err
	}
}
