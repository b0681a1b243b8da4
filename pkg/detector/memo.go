package detector

import (
	"errors"
	"fmt"
	"time"

	"fraud-gate/pkg/cache"
	"fraud-gate/pkg/cache/bloom"
	"fraud-gate/pkg/cache/memory"
	"fraud-gate/pkg/cache/redis"
	"fraud-gate/pkg/cache/resilience"
	"fraud-gate/pkg/cache/tiered"
	"fraud-gate/pkg/cache/writer"
	"fraud-gate/pkg/metrics"
)

// MemoConfig configures the decision memo. It is disabled by default.
//
// The in-process L1 lives only as long as the process. Enabling Redis stores
// decisions beyond the request that produced them, shared across instances
// until the TTL expires; entries are keyed on model digest and exact vector.
type MemoConfig struct {
	cache.Config `mapstructure:",squash"`

	Memory     memory.MemoryCacheConfig   `mapstructure:"memory"`
	Redis      RedisConfig                `mapstructure:"redis"`
	Resilience resilience.ResilientConfig `mapstructure:"resilience"`
	Writer     writer.AsyncWriterConfig   `mapstructure:"writer"`
}

// RedisConfig adds the optional shared L2 tier. Decisions written there
// outlive the request and the process.
type RedisConfig struct {
	Enabled bool `mapstructure:"enabled"`

	redis.RedisCacheConfig `mapstructure:",squash"`

	Bloom BloomConfig `mapstructure:"bloom"`
}

// BloomConfig puts a bloom filter in front of the L2 tier.
type BloomConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	ExpectedItems     uint    `mapstructure:"expected_items"`
	FalsePositiveRate float64 `mapstructure:"false_positive_rate"`
}

// DefaultMemoConfig returns a disabled memo with an in-process L1 only.
func DefaultMemoConfig() MemoConfig {
	return MemoConfig{
		Config: cache.DefaultConfig(),
		Memory: memory.DefaultMemoryCacheConfig(),
		Redis: RedisConfig{
			RedisCacheConfig: redis.DefaultRedisCacheConfig(),
			Bloom: BloomConfig{
				ExpectedItems:     1_000_000,
				FalsePositiveRate: 0.01,
			},
		},
		Resilience: resilience.DefaultResilientConfig(),
		Writer:     writer.DefaultAsyncWriterConfig(),
	}
}

// Validate checks the memo settings. A disabled memo is always valid.
func (c *MemoConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if err := c.Resilience.Validate(); err != nil {
		return err
	}
	if c.Redis.Enabled && c.Redis.Bloom.Enabled {
		b := c.Redis.Bloom
		if b.ExpectedItems == 0 || b.FalsePositiveRate <= 0 || b.FalsePositiveRate >= 1 {
			return fmt.Errorf("%w: bloom needs expected_items > 0 and 0 < false_positive_rate < 1", cache.ErrInvalidValue)
		}
	}
	return nil
}

// Memo is a tiered decision memo plus the write-behind pool that fills it.
type Memo struct {
	Layer  cache.Layer
	Writer *writer.AsyncWriter
	config cache.Config
}

// TTL is the TTL given to freshly memoized decisions.
func (m *Memo) TTL() time.Duration {
	return m.config.EffectiveTTL(0)
}

// Close drains the writer, then closes every tier.
func (m *Memo) Close() error {
	return errors.Join(m.Writer.Close(), m.Layer.Close())
}

// BuildMemo assembles the memo described by config. It returns nil, nil when
// the memo is disabled.
func BuildMemo(config MemoConfig, collector metrics.Collector) (*Memo, error) {
	if !config.Enabled {
		return nil, nil
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	l1cfg := config.Memory
	if l1cfg.Name == "" {
		l1cfg.Name = "L1"
	}
	layers := []cache.Layer{memory.NewMemoryCache(l1cfg)}

	if config.Redis.Enabled {
		rc, err := redis.NewRedisCache(config.Redis.RedisCacheConfig)
		if err != nil {
			layers[0].Close()
			return nil, fmt.Errorf("memo: %w", err)
		}
		var l2 cache.Layer = rc
		if b := config.Redis.Bloom; b.Enabled {
			l2 = bloom.NewBloomLayer(rc, b.ExpectedItems, b.FalsePositiveRate)
		}
		layers = append(layers, l2)
	}

	tc := tiered.DefaultConfig()
	tc.BaseTTL = config.EffectiveTTL(0)
	tc.Resilience = config.Resilience

	t, err := tiered.NewWithMetrics(tc, collector, layers...)
	if err != nil {
		for _, l := range layers {
			l.Close()
		}
		return nil, err
	}

	return &Memo{
		Layer:  t,
		Writer: writer.NewAsyncWriterWithMetrics(t, config.Writer, collector),
		config: config.Config,
	}, nil
}
