package memory

import (
	"context"
	"sync"
	"time"

	"fraud-gate/pkg/cache"
	"fraud-gate/pkg/engine"
)

// MemoryCache is an in-process decision memo with TTL expiry and optional
// LRU eviction. It is safe for concurrent use.
type MemoryCache struct {
	// data stores the cache entries
	data map[string]*entry

	// mu protects concurrent access to data
	mu sync.RWMutex

	// config holds the cache configuration
	config MemoryCacheConfig

	// cleanupTicker controls the background cleanup interval
	cleanupTicker *time.Ticker

	// stopCleanup is used to signal cleanup goroutine to stop
	stopCleanup chan struct{}

	// wg waits for cleanup goroutine to finish
	wg sync.WaitGroup

	closeOnce sync.Once
}

type entry struct {
	cache.Entry
	accessedAt time.Time
}

// MemoryCacheConfig holds configuration for the memory cache
type MemoryCacheConfig struct {
	// Name is the cache layer identifier
	Name string `mapstructure:"name"`

	// MaxSize is the maximum number of entries (0 = unlimited)
	MaxSize int `mapstructure:"max_size"`

	// DefaultTTL is the default time-to-live for entries
	DefaultTTL time.Duration `mapstructure:"ttl"`

	// CleanupInterval is how often to check for expired entries
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// DefaultMemoryCacheConfig returns the L1 defaults.
func DefaultMemoryCacheConfig() MemoryCacheConfig {
	return MemoryCacheConfig{
		Name:            "L1",
		MaxSize:         10000,
		DefaultTTL:      10 * time.Minute,
		CleanupInterval: time.Minute,
	}
}

// NewMemoryCache creates a new in-memory cache with the given configuration.
// It starts a background goroutine for TTL cleanup.
func NewMemoryCache(config MemoryCacheConfig) *MemoryCache {
	if config.Name == "" {
		config.Name = "memory"
	}
	if config.DefaultTTL == 0 {
		config.DefaultTTL = time.Hour
	}
	if config.CleanupInterval == 0 {
		config.CleanupInterval = time.Minute
	}

	c := &MemoryCache{
		data:          make(map[string]*entry),
		config:        config,
		stopCleanup:   make(chan struct{}),
		cleanupTicker: time.NewTicker(config.CleanupInterval),
	}

	c.wg.Add(1)
	go c.cleanup()

	return c
}

// Get returns the memoized decision for key.
func (c *MemoryCache) Get(ctx context.Context, key string) (engine.Decision, error) {
	if err := cache.ValidateKey(key); err != nil {
		return engine.Decision{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if !ok {
		return engine.Decision{}, cache.ErrKeyNotFound
	}
	if e.IsExpired() {
		delete(c.data, key)
		return engine.Decision{}, cache.ErrKeyNotFound
	}

	e.accessedAt = time.Now()
	return e.Decision, nil
}

// Set stores d under key. A zero ttl uses the default TTL. When MaxSize is
// reached the least recently used entry is evicted.
func (c *MemoryCache) Set(ctx context.Context, key string, d engine.Decision, ttl time.Duration) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}

	if ttl == 0 {
		ttl = c.config.DefaultTTL
	}
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.data == nil {
		return cache.ErrLayerUnavailable
	}

	if _, exists := c.data[key]; !exists && c.config.MaxSize > 0 && len(c.data) >= c.config.MaxSize {
		c.evictLRU()
	}

	c.data[key] = &entry{
		Entry: cache.Entry{
			Key:       key,
			Decision:  d,
			ExpiresAt: now.Add(ttl),
			CreatedAt: now,
		},
		accessedAt: now,
	}

	return nil
}

// evictLRU removes the least recently used entry. Callers hold mu.
func (c *MemoryCache) evictLRU() {
	var lruKey string
	var lruTime time.Time

	for k, e := range c.data {
		if lruKey == "" || e.accessedAt.Before(lruTime) {
			lruKey = k
			lruTime = e.accessedAt
		}
	}

	if lruKey != "" {
		delete(c.data, lruKey)
	}
}

// Delete removes a key from the cache.
// Returns nil even if the key doesn't exist.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()

	return nil
}

// Name returns the cache layer name.
func (c *MemoryCache) Name() string {
	return c.config.Name
}

// Close stops the background cleanup goroutine and clears all data.
// It is safe to call more than once.
func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() {
		c.cleanupTicker.Stop()
		close(c.stopCleanup)
		c.wg.Wait()

		c.mu.Lock()
		c.data = nil
		c.mu.Unlock()
	})
	return nil
}

// cleanup runs in a background goroutine to remove expired entries.
func (c *MemoryCache) cleanup() {
	defer c.wg.Done()

	for {
		select {
		case <-c.cleanupTicker.C:
			c.removeExpired()
		case <-c.stopCleanup:
			return
		}
	}
}

// removeExpired removes all expired entries from the cache.
func (c *MemoryCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.data {
		if now.After(e.ExpiresAt) {
			delete(c.data, key)
		}
	}
}

// Stats returns current cache statistics.
func (c *MemoryCache) Stats() MemoryCacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := MemoryCacheStats{
		Size:     len(c.data),
		MaxSize:  c.config.MaxSize,
		Capacity: c.config.MaxSize,
	}

	if stats.Capacity == 0 {
		stats.Capacity = -1 // Unlimited
	}

	return stats
}

// MemoryCacheStats holds cache statistics.
type MemoryCacheStats struct {
	Size     int // Current number of entries
	MaxSize  int // Maximum allowed entries (0 = unlimited)
	Capacity int // Effective capacity (-1 = unlimited)
}
