package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fraud-gate/pkg/cache"
	"fraud-gate/pkg/engine"

	"github.com/redis/rueidis"
)

// RedisCache is the shared decision memo tier. Decisions are stored as JSON
// so that other services can read them.
type RedisCache struct {
	client rueidis.Client
	name   string
	config RedisCacheConfig
}

type RedisCacheConfig struct {
	Name string `mapstructure:"name"`
	// Addr is the Redis server address for single node mode.
	// For cluster mode, use ClusterAddrs instead.
	Addr string `mapstructure:"addr"`
	// ClusterAddrs is a list of Redis cluster node addresses.
	// If set, cluster mode is enabled automatically.
	ClusterAddrs []string `mapstructure:"cluster_addrs"`
	Username     string   `mapstructure:"username"`
	Password     string   `mapstructure:"password"`
	// DB is the Redis database number. Cluster mode only supports DB 0.
	DB           int           `mapstructure:"db"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	DefaultTTL   time.Duration `mapstructure:"ttl"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// SentinelMasterSet names the master when SentinelAddrs is set.
	SentinelMasterSet string   `mapstructure:"sentinel_master_set"`
	SentinelAddrs     []string `mapstructure:"sentinel_addrs"`
	SentinelUsername  string   `mapstructure:"sentinel_username"`
	SentinelPassword  string   `mapstructure:"sentinel_password"`
}

func DefaultRedisCacheConfig() RedisCacheConfig {
	return RedisCacheConfig{
		Name:         "redis",
		Addr:         "localhost:6379",
		DB:           0,
		KeyPrefix:    "fraud-gate:",
		DefaultTTL:   10 * time.Minute,
		DialTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// ClusterCacheConfig returns a configuration for Redis Cluster mode.
func ClusterCacheConfig(name string, clusterAddrs []string, password string) RedisCacheConfig {
	config := DefaultRedisCacheConfig()
	config.Name = name
	config.ClusterAddrs = clusterAddrs
	config.Password = password
	config.Addr = ""
	config.DB = 0
	return config
}

// SentinelCacheConfig returns a configuration for Redis Sentinel mode.
func SentinelCacheConfig(name string, sentinelAddrs []string, masterSet, password string) RedisCacheConfig {
	config := DefaultRedisCacheConfig()
	config.Name = name
	config.SentinelAddrs = sentinelAddrs
	config.SentinelMasterSet = masterSet
	config.Password = password
	config.Addr = ""
	return config
}

// initAddress picks the seed addresses for the configured mode.
func (c RedisCacheConfig) initAddress() ([]string, error) {
	switch {
	case len(c.ClusterAddrs) > 0:
		return c.ClusterAddrs, nil
	case len(c.SentinelAddrs) > 0:
		return c.SentinelAddrs, nil
	case c.Addr != "":
		return []string{c.Addr}, nil
	default:
		return nil, fmt.Errorf("redis: no addresses configured (set addr, cluster_addrs or sentinel_addrs)")
	}
}

// NewRedisCache connects to Redis and verifies the connection with a PING.
func NewRedisCache(config RedisCacheConfig) (*RedisCache, error) {
	if config.Name == "" {
		config.Name = "redis"
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = 10 * time.Minute
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = 5 * time.Second
	}

	initAddress, err := config.initAddress()
	if err != nil {
		return nil, err
	}

	clientOpts := rueidis.ClientOption{
		InitAddress:      initAddress,
		Username:         config.Username,
		Password:         config.Password,
		SelectDB:         config.DB,
		ConnWriteTimeout: config.WriteTimeout,
		MaxFlushDelay:    100 * time.Microsecond,
	}

	if len(config.SentinelAddrs) > 0 {
		clientOpts.Sentinel = rueidis.SentinelOption{
			MasterSet: config.SentinelMasterSet,
			Username:  config.SentinelUsername,
			Password:  config.SentinelPassword,
		}
	}

	client, err := rueidis.NewClient(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("redis: failed to create client: %w", err)
	}

	r := &RedisCache{
		client: client,
		name:   config.Name,
		config: config,
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()

	if err := r.Ping(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return r, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) (engine.Decision, error) {
	if err := cache.ValidateKey(key); err != nil {
		return engine.Decision{}, err
	}

	cmd := r.client.B().Get().Key(r.config.KeyPrefix + key).Build()
	resp := r.client.Do(ctx, cmd)

	if err := resp.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return engine.Decision{}, cache.ErrKeyNotFound
		}
		return engine.Decision{}, fmt.Errorf("redis get: %w", err)
	}

	data, err := resp.AsBytes()
	if err != nil {
		return engine.Decision{}, fmt.Errorf("redis get: failed to read response: %w", err)
	}

	return decode(data)
}

func (r *RedisCache) Set(ctx context.Context, key string, d engine.Decision, ttl time.Duration) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = r.config.DefaultTTL
	}

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("redis set: failed to marshal: %w", err)
	}

	cmd := r.client.B().Set().Key(r.config.KeyPrefix + key).Value(rueidis.BinaryString(data)).Ex(ttl).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}

	cmd := r.client.B().Del().Key(r.config.KeyPrefix + key).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}

	return nil
}

func (r *RedisCache) Name() string {
	return r.name
}

func (r *RedisCache) Close() error {
	r.client.Close()
	return nil
}

// Ping checks the connection to the server.
func (r *RedisCache) Ping(ctx context.Context) error {
	cmd := r.client.B().Ping().Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// TTL returns the remaining lifetime of key.
func (r *RedisCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	cmd := r.client.B().Ttl().Key(r.config.KeyPrefix + key).Build()
	resp := r.client.Do(ctx, cmd)

	if err := resp.Error(); err != nil {
		return 0, fmt.Errorf("redis ttl: %w", err)
	}

	seconds, err := resp.AsInt64()
	if err != nil {
		return 0, fmt.Errorf("redis ttl: failed to read response: %w", err)
	}

	switch seconds {
	case -2:
		return 0, cache.ErrKeyNotFound
	case -1:
		return -1, nil
	}
	return time.Duration(seconds) * time.Second, nil
}

// decode parses a stored decision and rejects anything that is not one.
func decode(data []byte) (engine.Decision, error) {
	var d engine.Decision
	if err := json.Unmarshal(data, &d); err != nil {
		return engine.Decision{}, fmt.Errorf("%w: redis get: failed to unmarshal: %v", cache.ErrInvalidValue, err)
	}
	if d.Probability < 0 || d.Probability > 1 || d != engine.Decide(d.Probability) {
		return engine.Decision{}, fmt.Errorf("%w: stored decision %+v is inconsistent", cache.ErrInvalidValue, d)
	}
	return d, nil
}
