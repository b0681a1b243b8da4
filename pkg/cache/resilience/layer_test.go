package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"fraud-gate/pkg/cache"
	"fraud-gate/pkg/cache/memory"
	"fraud-gate/pkg/cache/mock"
	"fraud-gate/pkg/engine"
	"fraud-gate/pkg/metrics"
	metricsmemory "fraud-gate/pkg/metrics/memory"
)

func aggressiveConfig() ResilientConfig {
	return ResilientConfig{
		Timeout: time.Second,
		CircuitBreakerConfig: CircuitBreakerConfig{
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     time.Hour,
			ReadyToTrip: ConsecutiveFailures(3),
		},
	}
}

func TestResilientLayer_GetSet(t *testing.T) {
	mem := memory.NewMemoryCache(memory.MemoryCacheConfig{Name: "test"})
	collector := metricsmemory.NewMemoryCollector()
	rl := NewResilientLayerWithMetrics(mem, DefaultResilientConfig(), collector)
	defer rl.Close()

	ctx := context.Background()
	d := engine.Decide(0.73)

	if rl.Name() != "test" {
		t.Errorf("Expected name 'test', got %q", rl.Name())
	}

	if err := rl.Set(ctx, "key1", d, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := rl.Get(ctx, "key1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != d {
		t.Errorf("Expected %+v, got %+v", d, got)
	}

	if _, err := rl.Get(ctx, "missing"); !cache.IsNotFound(err) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}

	sm := collector.Store("test")
	if sm.Hits != 1 || sm.Misses != 1 || sm.Sets != 1 {
		t.Errorf("Unexpected store metrics: %+v", sm)
	}
}

func TestResilientLayer_MissesDoNotTripCircuit(t *testing.T) {
	mem := memory.NewMemoryCache(memory.MemoryCacheConfig{Name: "test", MaxSize: 100})
	rl := NewResilientLayer(mem, aggressiveConfig())
	defer rl.Close()

	ctx := context.Background()

	for i := 0; i < 100; i++ {
		_, err := rl.Get(ctx, "nonexistent-key")
		if cache.IsCircuitOpen(err) {
			t.Fatalf("Circuit breaker opened after %d misses", i+1)
		}
		if !cache.IsNotFound(err) {
			t.Fatalf("Expected ErrKeyNotFound, got %v", err)
		}
	}

	if rl.State() != metrics.CircuitClosed {
		t.Errorf("Expected closed circuit, got %s", rl.State())
	}
}

func TestResilientLayer_FailuresTripCircuit(t *testing.T) {
	backendErr := errors.New("redis: connection refused")
	failing := mock.NewFailingLayer("flaky", backendErr)
	collector := metricsmemory.NewMemoryCollector()
	rl := NewResilientLayerWithMetrics(failing, aggressiveConfig(), collector)

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := rl.Get(ctx, "key"); !errors.Is(err, backendErr) {
			t.Fatalf("Expected backend error, got %v", err)
		}
	}

	_, err := rl.Get(ctx, "key")
	if !cache.IsCircuitOpen(err) {
		t.Fatalf("Expected ErrCircuitOpen, got %v", err)
	}
	if failing.GetCalls() != 3 {
		t.Errorf("Open circuit must not reach the layer, got %d calls", failing.GetCalls())
	}

	if rl.State() != metrics.CircuitOpen {
		t.Errorf("Expected open circuit, got %s", rl.State())
	}
	sm := collector.Store("flaky")
	if sm.CircuitOpens != 1 {
		t.Errorf("Expected 1 circuit open, got %d", sm.CircuitOpens)
	}
}

func TestResilientLayer_Timeout(t *testing.T) {
	slow := &mock.MockLayer{
		NameFunc: func() string { return "slow" },
		GetFunc: func(ctx context.Context, key string) (engine.Decision, error) {
			<-ctx.Done()
			return engine.Decision{}, ctx.Err()
		},
		SetFunc: func(ctx context.Context, key string, d engine.Decision, ttl time.Duration) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	rl := NewResilientLayer(slow, aggressiveConfig().WithTimeout(20*time.Millisecond))

	ctx := context.Background()

	if _, err := rl.Get(ctx, "key"); !cache.IsTimeout(err) {
		t.Errorf("Expected ErrTimeout from Get, got %v", err)
	}
	if err := rl.Set(ctx, "key", engine.Decide(0.1), time.Minute); !cache.IsTimeout(err) {
		t.Errorf("Expected ErrTimeout from Set, got %v", err)
	}
}

func TestResilientLayer_Delete(t *testing.T) {
	mem := memory.NewMemoryCache(memory.MemoryCacheConfig{Name: "test"})
	rl := NewResilientLayer(mem, DefaultResilientConfig())
	defer rl.Close()

	ctx := context.Background()
	_ = rl.Set(ctx, "key1", engine.Decide(0.9), time.Minute)

	if err := rl.Delete(ctx, "key1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := rl.Get(ctx, "key1"); !cache.IsNotFound(err) {
		t.Errorf("Expected miss after delete, got %v", err)
	}
}

func TestDefaultResilientConfig(t *testing.T) {
	config := DefaultResilientConfig()

	if err := config.Validate(); err != nil {
		t.Fatalf("Default config invalid: %v", err)
	}
	if config.Timeout != 50*time.Millisecond {
		t.Errorf("Expected timeout 50ms, got %v", config.Timeout)
	}

	trip := config.CircuitBreakerConfig.ReadyToTrip
	if trip(Counts{Requests: 10, TotalFailures: 10}) {
		t.Error("Should not trip below the minimum request count")
	}
	if !trip(Counts{Requests: 20, TotalFailures: 3}) {
		t.Error("Should trip at 15% failures")
	}
	if trip(Counts{Requests: 20, TotalFailures: 2}) {
		t.Error("Should not trip at 10% failures")
	}

	if config.WithTimeout(time.Second).Timeout != time.Second {
		t.Error("WithTimeout did not apply")
	}
	if config.WithCircuitBreakerTimeout(time.Second).CircuitBreakerConfig.Timeout != time.Second {
		t.Error("WithCircuitBreakerTimeout did not apply")
	}

	if err := config.WithTimeout(-time.Second).Validate(); err == nil {
		t.Error("Expected negative timeout to be rejected")
	}
}
