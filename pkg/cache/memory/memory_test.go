package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"fraud-gate/pkg/cache"
	"fraud-gate/pkg/engine"
)

var (
	fraud = engine.Decision{Label: engine.LabelFraud, Probability: 0.91}
	safe  = engine.Decision{Label: engine.LabelSafe, Probability: 0.08}
)

func newTestCache(maxSize int) *MemoryCache {
	return NewMemoryCache(MemoryCacheConfig{
		Name:            "test",
		MaxSize:         maxSize,
		DefaultTTL:      time.Hour,
		CleanupInterval: time.Minute,
	})
}

func TestMemoryCache_GetSet(t *testing.T) {
	c := newTestCache(0)
	defer c.Close()

	ctx := context.Background()

	_, err := c.Get(ctx, "nonexistent")
	if !cache.IsNotFound(err) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}

	if err := c.Set(ctx, "key1", fraud, 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := c.Get(ctx, "key1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != fraud {
		t.Errorf("Expected %+v, got %+v", fraud, got)
	}

	// Overwrite
	if err := c.Set(ctx, "key1", safe, 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, _ = c.Get(ctx, "key1")
	if got != safe {
		t.Errorf("Expected overwritten value %+v, got %+v", safe, got)
	}
}

func TestMemoryCache_Delete(t *testing.T) {
	c := newTestCache(0)
	defer c.Close()

	ctx := context.Background()

	_ = c.Set(ctx, "key1", fraud, 0)
	if err := c.Delete(ctx, "key1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := c.Get(ctx, "key1"); !cache.IsNotFound(err) {
		t.Errorf("Expected miss after delete, got %v", err)
	}

	// Deleting a missing key is fine
	if err := c.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete of missing key failed: %v", err)
	}
}

func TestMemoryCache_TTL(t *testing.T) {
	c := newTestCache(0)
	defer c.Close()

	ctx := context.Background()

	if err := c.Set(ctx, "short", fraud, 50*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, err := c.Get(ctx, "short"); err != nil {
		t.Fatalf("Expected hit before expiry: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if _, err := c.Get(ctx, "short"); !cache.IsNotFound(err) {
		t.Errorf("Expected miss after expiry, got %v", err)
	}
}

func TestMemoryCache_LRU(t *testing.T) {
	c := newTestCache(2)
	defer c.Close()

	ctx := context.Background()

	_ = c.Set(ctx, "key1", fraud, 0)
	time.Sleep(time.Millisecond)
	_ = c.Set(ctx, "key2", safe, 0)
	time.Sleep(time.Millisecond)

	// Access key1 to make key2 LRU
	if _, err := c.Get(ctx, "key1"); err != nil {
		t.Fatalf("Get key1 failed: %v", err)
	}
	time.Sleep(time.Millisecond)

	// Add third key, should evict key2
	if err := c.Set(ctx, "key3", fraud, 0); err != nil {
		t.Fatalf("Set key3 failed: %v", err)
	}

	if _, err := c.Get(ctx, "key1"); err != nil {
		t.Errorf("key1 should not be evicted: %v", err)
	}
	if _, err := c.Get(ctx, "key2"); err == nil {
		t.Error("key2 should have been evicted")
	}
	if _, err := c.Get(ctx, "key3"); err != nil {
		t.Errorf("key3 should be present: %v", err)
	}
}

func TestMemoryCache_OverwriteDoesNotEvict(t *testing.T) {
	c := newTestCache(2)
	defer c.Close()

	ctx := context.Background()

	_ = c.Set(ctx, "key1", fraud, 0)
	_ = c.Set(ctx, "key2", safe, 0)
	_ = c.Set(ctx, "key2", fraud, 0)

	if size := c.Stats().Size; size != 2 {
		t.Errorf("Expected size 2, got %d", size)
	}
	if _, err := c.Get(ctx, "key1"); err != nil {
		t.Errorf("key1 should survive an overwrite of key2: %v", err)
	}
}

func TestMemoryCache_Concurrency(t *testing.T) {
	c := newTestCache(0)
	defer c.Close()

	ctx := context.Background()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			key := fmt.Sprintf("key%d", id)
			d := engine.Decide(float64(id) / 10)

			if err := c.Set(ctx, key, d, 0); err != nil {
				t.Errorf("Concurrent Set failed: %v", err)
			}

			got, err := c.Get(ctx, key)
			if err != nil {
				t.Errorf("Concurrent Get failed: %v", err)
			}
			if got != d {
				t.Errorf("Concurrent Get got %+v, expected %+v", got, d)
			}

			if err := c.Delete(ctx, key); err != nil {
				t.Errorf("Concurrent Delete failed: %v", err)
			}
		}(i)
	}

	wg.Wait()
}

func TestMemoryCache_KeyValidation(t *testing.T) {
	c := newTestCache(0)
	defer c.Close()

	ctx := context.Background()

	invalidKeys := []string{
		"",                       // empty
		" leading",               // leading whitespace
		"key\twith\ttabs",        // control characters
		"key\nwith\nnewlines",    // control characters
		strings.Repeat("a", 251), // too long
	}

	for _, key := range invalidKeys {
		if err := c.Set(ctx, key, fraud, 0); err == nil {
			t.Errorf("Expected error for invalid key: %q", key)
		}
		if _, err := c.Get(ctx, key); err == nil {
			t.Errorf("Expected error for invalid key: %q", key)
		}
		if err := c.Delete(ctx, key); err == nil {
			t.Errorf("Expected error for invalid key: %q", key)
		}
	}
}

func TestMemoryCache_Stats(t *testing.T) {
	c := newTestCache(100)
	defer c.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_ = c.Set(ctx, fmt.Sprintf("key%d", i), fraud, 0)
	}

	stats := c.Stats()
	if stats.Size != 5 {
		t.Errorf("Expected size 5, got %d", stats.Size)
	}
	if stats.Capacity != 100 {
		t.Errorf("Expected capacity 100, got %d", stats.Capacity)
	}

	unlimited := newTestCache(0)
	defer unlimited.Close()
	if unlimited.Stats().Capacity != -1 {
		t.Errorf("Expected unlimited capacity -1, got %d", unlimited.Stats().Capacity)
	}
}

func TestMemoryCache_Close(t *testing.T) {
	c := newTestCache(0)
	ctx := context.Background()
	_ = c.Set(ctx, "key1", fraud, 0)

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	if _, err := c.Get(ctx, "key1"); !cache.IsNotFound(err) {
		t.Errorf("Expected miss after close, got %v", err)
	}
	if err := c.Set(ctx, "key1", fraud, 0); !cache.IsUnavailable(err) {
		t.Errorf("Expected ErrLayerUnavailable after close, got %v", err)
	}
}

func TestMemoryCache_Name(t *testing.T) {
	c := NewMemoryCache(MemoryCacheConfig{})
	defer c.Close()

	if c.Name() != "memory" {
		t.Errorf("Expected default name 'memory', got %q", c.Name())
	}
	if DefaultMemoryCacheConfig().Name != "L1" {
		t.Errorf("Expected default config name 'L1'")
	}
}
