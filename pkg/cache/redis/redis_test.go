package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"fraud-gate/pkg/cache"
	"fraud-gate/pkg/engine"
)

func setupTestRedis(t *testing.T) *RedisCache {
	t.Helper()

	config := DefaultRedisCacheConfig()
	config.Name = "TestRedis"
	config.KeyPrefix = "test:fraud-gate:"
	config.DialTimeout = 2 * time.Second

	r, err := NewRedisCache(config)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { r.Close() })

	return r
}

func TestRedisCache_SetGet(t *testing.T) {
	r := setupTestRedis(t)
	ctx := context.Background()

	d := engine.Decide(0.87)
	if err := r.Set(ctx, "decision:abc:1", d, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := r.Get(ctx, "decision:abc:1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != d {
		t.Errorf("Expected %+v, got %+v", d, got)
	}

	ttl, err := r.TTL(ctx, "decision:abc:1")
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("Expected TTL within (0, 1m], got %v", ttl)
	}
}

func TestRedisCache_GetMiss(t *testing.T) {
	r := setupTestRedis(t)

	_, err := r.Get(context.Background(), "decision:missing")
	if !cache.IsNotFound(err) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}
}

func TestRedisCache_Delete(t *testing.T) {
	r := setupTestRedis(t)
	ctx := context.Background()

	_ = r.Set(ctx, "decision:del", engine.Decide(0.1), time.Minute)
	if err := r.Delete(ctx, "decision:del"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := r.Get(ctx, "decision:del"); !cache.IsNotFound(err) {
		t.Errorf("Expected miss after delete, got %v", err)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    engine.Decision
		wantErr bool
	}{
		{"fraud", `{"label":"FRAUD","probability":0.73}`, engine.Decide(0.73), false},
		{"safe at threshold", `{"label":"SAFE","probability":0.5}`, engine.Decide(0.5), false},
		{"label disagrees with threshold", `{"label":"FRAUD","probability":0.5}`, engine.Decision{}, true},
		{"probability out of range", `{"label":"FRAUD","probability":1.5}`, engine.Decision{}, true},
		{"not json", `FRAUD`, engine.Decision{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decode([]byte(tt.data))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error, got %+v", got)
				}
				if !errors.Is(err, cache.ErrInvalidValue) {
					t.Errorf("Expected ErrInvalidValue, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestDefaultRedisCacheConfig(t *testing.T) {
	config := DefaultRedisCacheConfig()

	if config.Addr != "localhost:6379" {
		t.Errorf("Expected default addr localhost:6379, got %s", config.Addr)
	}
	if config.KeyPrefix != "fraud-gate:" {
		t.Errorf("Expected key prefix fraud-gate:, got %s", config.KeyPrefix)
	}
	if config.DefaultTTL != 10*time.Minute {
		t.Errorf("Expected default TTL 10m, got %v", config.DefaultTTL)
	}
}

func TestConfig_InitAddress(t *testing.T) {
	cluster := ClusterCacheConfig("c", []string{"n1:6379", "n2:6379"}, "")
	if addrs, err := cluster.initAddress(); err != nil || len(addrs) != 2 {
		t.Errorf("cluster: got %v, %v", addrs, err)
	}

	sentinel := SentinelCacheConfig("s", []string{"s1:26379"}, "mymaster", "")
	if addrs, err := sentinel.initAddress(); err != nil || addrs[0] != "s1:26379" {
		t.Errorf("sentinel: got %v, %v", addrs, err)
	}

	empty := RedisCacheConfig{}
	if _, err := empty.initAddress(); err == nil {
		t.Error("Expected error when no address is configured")
	}

	if _, err := NewRedisCache(empty); err == nil {
		t.Error("Expected NewRedisCache to fail without an address")
	}
}
