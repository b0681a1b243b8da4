// Package tiered chains memo layers from fastest (L1) to slowest. Lookups
// fall through the tiers and a hit in a lower tier is copied back into the
// tiers above it in the background.
package tiered

import (
	"context"
	"errors"
	"strings"
	"time"

	"fraud-gate/pkg/cache"
	"fraud-gate/pkg/cache/resilience"
	"fraud-gate/pkg/cache/writer"
	"fraud-gate/pkg/engine"
	"fraud-gate/pkg/metrics"

	"golang.org/x/sync/singleflight"
)

// Config configures a tiered memo.
type Config struct {
	// BaseTTL is the TTL handed to the TTL strategy when Set gets no TTL.
	BaseTTL time.Duration

	// TTLStrategy picks per-tier TTLs. Nil means uniform.
	TTLStrategy TTLStrategy

	// Resilience wraps every tier. L1Timeout overrides its timeout for the
	// first tier, which is expected to be in-process.
	Resilience resilience.ResilientConfig
	L1Timeout  time.Duration

	// Backfill configures the writers that copy hits into upper tiers.
	Backfill writer.AsyncWriterConfig
}

// DefaultConfig returns the tiered memo defaults.
func DefaultConfig() Config {
	return Config{
		BaseTTL:     10 * time.Minute,
		TTLStrategy: UniformTTLStrategy{},
		Resilience:  resilience.DefaultResilientConfig(),
		L1Timeout:   10 * time.Millisecond,
		Backfill: writer.AsyncWriterConfig{
			QueueSize:   1000,
			Workers:     2,
			MaxWaitTime: time.Millisecond,
		},
	}
}

// Tiered is a cache.Layer over several tiers.
type Tiered struct {
	layers   []cache.Layer
	writers  []*writer.AsyncWriter
	sf       singleflight.Group
	strategy TTLStrategy
	baseTTL  time.Duration
}

// New creates a tiered memo. Layers are ordered from fastest to slowest and
// each is wrapped with resilience protection.
func New(config Config, layers ...cache.Layer) (*Tiered, error) {
	return NewWithMetrics(config, metrics.NoOpCollector{}, layers...)
}

// NewWithMetrics creates a tiered memo with a custom metrics collector.
func NewWithMetrics(config Config, collector metrics.Collector, layers ...cache.Layer) (*Tiered, error) {
	if len(layers) == 0 {
		return nil, errors.New("tiered: at least one layer required")
	}
	if config.TTLStrategy == nil {
		config.TTLStrategy = UniformTTLStrategy{}
	}
	if config.BaseTTL <= 0 {
		config.BaseTTL = DefaultConfig().BaseTTL
	}

	t := &Tiered{
		layers:   make([]cache.Layer, len(layers)),
		strategy: config.TTLStrategy,
		baseTTL:  config.BaseTTL,
	}

	for i, layer := range layers {
		rc := config.Resilience
		if i == 0 && config.L1Timeout > 0 {
			rc = rc.WithTimeout(config.L1Timeout)
		}
		t.layers[i] = resilience.NewResilientLayerWithMetrics(layer, rc, collector)
	}

	// Only tiers above the last one are ever backfilled.
	t.writers = make([]*writer.AsyncWriter, len(t.layers)-1)
	for i := range t.writers {
		t.writers[i] = writer.NewAsyncWriterWithMetrics(t.layers[i], config.Backfill, collector)
	}

	return t, nil
}

// Name returns the tier names joined by "+".
func (t *Tiered) Name() string {
	names := make([]string, len(t.layers))
	for i, l := range t.layers {
		names[i] = l.Name()
	}
	return strings.Join(names, "+")
}

// Get returns the first hit walking down the tiers. Concurrent lookups for
// the same key share one walk.
func (t *Tiered) Get(ctx context.Context, key string) (engine.Decision, error) {
	if err := ctx.Err(); err != nil {
		return engine.Decision{}, err
	}

	result, err, _ := t.sf.Do(key, func() (interface{}, error) {
		return t.walk(ctx, key)
	})
	if err != nil {
		return engine.Decision{}, err
	}
	return result.(engine.Decision), nil
}

func (t *Tiered) walk(ctx context.Context, key string) (engine.Decision, error) {
	var lastErr error

	for i, layer := range t.layers {
		if err := ctx.Err(); err != nil {
			return engine.Decision{}, err
		}

		d, err := layer.Get(ctx, key)
		if err != nil {
			// Misses and tier failures both fall through to the next tier.
			lastErr = err
			continue
		}

		t.backfill(ctx, key, d, i)
		return d, nil
	}

	if lastErr == nil || !cache.IsNotFound(lastErr) {
		return engine.Decision{}, errors.Join(cache.ErrKeyNotFound, lastErr)
	}
	return engine.Decision{}, lastErr
}

// backfill copies a hit at tier hit into every tier above it.
func (t *Tiered) backfill(ctx context.Context, key string, d engine.Decision, hit int) {
	for i := hit - 1; i >= 0; i-- {
		ttl := t.strategy.GetTTL(i, len(t.layers), t.baseTTL)
		// Dropped backfills only cost a later lookup in a slower tier.
		_ = t.writers[i].Write(ctx, key, d, ttl)
	}
}

// Set writes d to every tier. All tiers are attempted and the errors joined.
func (t *Tiered) Set(ctx context.Context, key string, d engine.Decision, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = t.baseTTL
	}

	var errs []error
	for i, layer := range t.layers {
		if err := ctx.Err(); err != nil {
			return err
		}
		tierTTL := t.strategy.GetTTL(i, len(t.layers), ttl)
		if err := layer.Set(ctx, key, d, tierTTL); err != nil {
			errs = append(errs, cache.WrapError(err, layer.Name(), "set"))
		}
	}
	return errors.Join(errs...)
}

// Delete removes key from every tier.
func (t *Tiered) Delete(ctx context.Context, key string) error {
	var errs []error
	for _, layer := range t.layers {
		if err := layer.Delete(ctx, key); err != nil {
			errs = append(errs, cache.WrapError(err, layer.Name(), "delete"))
		}
	}
	return errors.Join(errs...)
}

// Flush waits for pending backfills.
func (t *Tiered) Flush(timeout time.Duration) error {
	for _, w := range t.writers {
		if err := w.Flush(timeout); err != nil {
			return err
		}
	}
	return nil
}

// Close stops the backfill writers, then closes every tier.
func (t *Tiered) Close() error {
	var errs []error
	for _, w := range t.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, layer := range t.layers {
		if err := layer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of tiers.
func (t *Tiered) Len() int {
	return len(t.layers)
}
