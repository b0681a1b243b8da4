package bloom

import (
	"context"
	"sync"
	"time"

	"fraud-gate/pkg/cache"
	"fraud-gate/pkg/engine"

	"github.com/bits-and-blooms/bloom/v3"
)

// BloomLayer puts a bloom filter in front of a slower layer. Keys never Set
// through it are rejected without touching the wrapped layer.
//
// The filter lives in process memory, so after a restart every key is
// rejected until it is written again. That only costs a recomputation.
type BloomLayer struct {
	layer             cache.Layer
	filter            *bloom.BloomFilter
	expectedItems     uint
	falsePositiveRate float64
	mu                sync.RWMutex

	totalQueries   uint64
	bloomRejected  uint64
	falsePositives uint64
}

// NewBloomLayer wraps layer with a filter sized for expectedItems at the
// given false positive rate.
func NewBloomLayer(layer cache.Layer, expectedItems uint, falsePositiveRate float64) *BloomLayer {
	if expectedItems == 0 {
		expectedItems = 10000
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.01
	}

	return &BloomLayer{
		layer:             layer,
		filter:            bloom.NewWithEstimates(expectedItems, falsePositiveRate),
		expectedItems:     expectedItems,
		falsePositiveRate: falsePositiveRate,
	}
}

// Name returns the name of the underlying cache layer.
func (bl *BloomLayer) Name() string {
	return "bloom(" + bl.layer.Name() + ")"
}

// Get consults the filter before the wrapped layer.
func (bl *BloomLayer) Get(ctx context.Context, key string) (engine.Decision, error) {
	if err := ctx.Err(); err != nil {
		return engine.Decision{}, err
	}

	bl.mu.Lock()
	bl.totalQueries++
	if !bl.filter.TestString(key) {
		bl.bloomRejected++
		bl.mu.Unlock()
		return engine.Decision{}, cache.ErrKeyNotFound
	}
	bl.mu.Unlock()

	d, err := bl.layer.Get(ctx, key)

	if cache.IsNotFound(err) {
		bl.mu.Lock()
		bl.falsePositives++
		bl.mu.Unlock()
	}

	return d, err
}

// Set records key in the filter and stores the decision.
func (bl *BloomLayer) Set(ctx context.Context, key string, d engine.Decision, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	bl.mu.Lock()
	bl.filter.AddString(key)
	bl.mu.Unlock()

	return bl.layer.Set(ctx, key, d, ttl)
}

// Delete removes key from the wrapped layer. Bloom filters cannot forget a
// key, so later Gets still reach the layer and miss there.
func (bl *BloomLayer) Delete(ctx context.Context, key string) error {
	return bl.layer.Delete(ctx, key)
}

// Close closes the underlying cache layer.
func (bl *BloomLayer) Close() error {
	return bl.layer.Close()
}

// Reset clears the filter and its counters.
func (bl *BloomLayer) Reset() {
	bl.mu.Lock()
	defer bl.mu.Unlock()

	bl.filter = bloom.NewWithEstimates(bl.expectedItems, bl.falsePositiveRate)
	bl.totalQueries = 0
	bl.bloomRejected = 0
	bl.falsePositives = 0
}

// Stats returns statistics about the bloom filter.
func (bl *BloomLayer) Stats() BloomStats {
	bl.mu.RLock()
	defer bl.mu.RUnlock()

	rejectionRate := 0.0
	falsePositiveRate := 0.0

	if bl.totalQueries > 0 {
		rejectionRate = float64(bl.bloomRejected) / float64(bl.totalQueries)
		queried := bl.totalQueries - bl.bloomRejected
		if queried > 0 {
			falsePositiveRate = float64(bl.falsePositives) / float64(queried)
		}
	}

	return BloomStats{
		TotalQueries:      bl.totalQueries,
		BloomRejected:     bl.bloomRejected,
		FalsePositives:    bl.falsePositives,
		RejectionRate:     rejectionRate,
		FalsePositiveRate: falsePositiveRate,
		FilterCapacity:    bl.filter.Cap(),
	}
}

// BloomStats holds statistics about bloom filter performance.
type BloomStats struct {
	TotalQueries      uint64  `json:"total_queries"`
	BloomRejected     uint64  `json:"bloom_rejected"`
	FalsePositives    uint64  `json:"false_positives"`
	RejectionRate     float64 `json:"rejection_rate"`
	FalsePositiveRate float64 `json:"false_positive_rate"`
	FilterCapacity    uint    `json:"filter_capacity"`
}
