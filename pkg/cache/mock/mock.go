package mock

import (
	"context"
	"sync/atomic"
	"time"

	"fraud-gate/pkg/cache"
	"fraud-gate/pkg/engine"
)

// MockLayer is a mock implementation of cache.Layer for testing.
// It allows injecting custom behavior for each method and tracks call counts.
type MockLayer struct {
	// Function hooks - set these to customize behavior
	GetFunc    func(ctx context.Context, key string) (engine.Decision, error)
	SetFunc    func(ctx context.Context, key string, d engine.Decision, ttl time.Duration) error
	DeleteFunc func(ctx context.Context, key string) error
	NameFunc   func() string
	CloseFunc  func() error

	// Call tracking (must use atomic operations for race-free access)
	getCalls    int64
	setCalls    int64
	deleteCalls int64
	closeCalls  int64
}

// Get implements cache.Layer. Without a hook it reports a miss.
func (m *MockLayer) Get(ctx context.Context, key string) (engine.Decision, error) {
	atomic.AddInt64(&m.getCalls, 1)
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	return engine.Decision{}, cache.ErrKeyNotFound
}

// Set implements cache.Layer.
func (m *MockLayer) Set(ctx context.Context, key string, d engine.Decision, ttl time.Duration) error {
	atomic.AddInt64(&m.setCalls, 1)
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, d, ttl)
	}
	return nil
}

// Delete implements cache.Layer.
func (m *MockLayer) Delete(ctx context.Context, key string) error {
	atomic.AddInt64(&m.deleteCalls, 1)
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	return nil
}

// Name implements cache.Layer.
func (m *MockLayer) Name() string {
	if m.NameFunc != nil {
		return m.NameFunc()
	}
	return "mock"
}

// Close implements cache.Layer.
func (m *MockLayer) Close() error {
	atomic.AddInt64(&m.closeCalls, 1)
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// GetCalls returns the number of Get calls (thread-safe).
func (m *MockLayer) GetCalls() int {
	return int(atomic.LoadInt64(&m.getCalls))
}

// SetCalls returns the number of Set calls (thread-safe).
func (m *MockLayer) SetCalls() int {
	return int(atomic.LoadInt64(&m.setCalls))
}

// DeleteCalls returns the number of Delete calls (thread-safe).
func (m *MockLayer) DeleteCalls() int {
	return int(atomic.LoadInt64(&m.deleteCalls))
}

// CloseCalls returns the number of Close calls (thread-safe).
func (m *MockLayer) CloseCalls() int {
	return int(atomic.LoadInt64(&m.closeCalls))
}

// NewMockLayer creates a MockLayer named name that misses on every Get.
func NewMockLayer(name string) *MockLayer {
	return &MockLayer{
		NameFunc: func() string { return name },
	}
}

// NewFailingLayer creates a MockLayer whose every operation returns err.
func NewFailingLayer(name string, err error) *MockLayer {
	return &MockLayer{
		NameFunc: func() string { return name },
		GetFunc: func(ctx context.Context, key string) (engine.Decision, error) {
			return engine.Decision{}, err
		},
		SetFunc: func(ctx context.Context, key string, d engine.Decision, ttl time.Duration) error {
			return err
		},
		DeleteFunc: func(ctx context.Context, key string) error {
			return err
		},
	}
}
