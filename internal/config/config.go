// Package config loads fraud-gate settings from an optional YAML file, a .env
// file and FRAUD_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"fraud-gate/pkg/api"
	"fraud-gate/pkg/detector"
	"fraud-gate/pkg/logging"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. FRAUD_MODEL_PATH or
// FRAUD_MEMO_REDIS_ADDR.
const EnvPrefix = "FRAUD"

// Metrics backends.
const (
	MetricsPrometheus = "prometheus"
	MetricsMemory     = "memory"
	MetricsNone       = "none"
)

// Config is the complete process configuration.
type Config struct {
	// ModelPath is the classifier artifact loaded at startup.
	ModelPath string `mapstructure:"model_path"`

	Server  api.ServerConfig    `mapstructure:"server"`
	Log     logging.Config      `mapstructure:"log"`
	Memo    detector.MemoConfig `mapstructure:"memo"`
	Metrics MetricsConfig       `mapstructure:"metrics"`
}

// MetricsConfig selects the metrics backend.
type MetricsConfig struct {
	Backend   string `mapstructure:"backend"`
	Namespace string `mapstructure:"namespace"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ModelPath: "models/fraud_ensemble.json",
		Server:    api.DefaultServerConfig(),
		Log:       logging.DefaultConfig(),
		Memo:      detector.DefaultMemoConfig(),
		Metrics: MetricsConfig{
			Backend:   MetricsPrometheus,
			Namespace: "fraud_gate",
		},
	}
}

// keys lists every setting that can come from the environment. Viper only
// maps environment variables onto keys it already knows.
var keys = []string{
	"model_path",

	"server.address",
	"server.read_timeout",
	"server.write_timeout",
	"server.idle_timeout",
	"server.request_timeout",
	"server.max_body_bytes",

	"log.level",
	"log.format",
	"log.output_paths",
	"log.development",

	"metrics.backend",
	"metrics.namespace",

	"memo.enabled",
	"memo.ttl",
	"memo.max_ttl",
	"memo.memory.max_size",
	"memo.memory.cleanup_interval",
	"memo.redis.enabled",
	"memo.redis.addr",
	"memo.redis.cluster_addrs",
	"memo.redis.username",
	"memo.redis.password",
	"memo.redis.db",
	"memo.redis.key_prefix",
	"memo.redis.dial_timeout",
	"memo.redis.write_timeout",
	"memo.redis.sentinel_master_set",
	"memo.redis.sentinel_addrs",
	"memo.redis.bloom.enabled",
	"memo.redis.bloom.expected_items",
	"memo.redis.bloom.false_positive_rate",
	"memo.resilience.timeout",
	"memo.resilience.circuit_breaker.max_requests",
	"memo.resilience.circuit_breaker.interval",
	"memo.resilience.circuit_breaker.timeout",
	"memo.writer.queue_size",
	"memo.writer.workers",
	"memo.writer.max_wait",
	"memo.writer.write_timeout",
}

// New returns a viper instance wired for the FRAUD_ environment.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
	return v
}

// Load reads the configuration. path may be empty, in which case config.yaml
// is looked up in the working directory and its absence is not an error. An
// explicit path must exist.
func Load(v *viper.Viper, path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.ModelPath == "" {
		return errors.New("config: model_path is required")
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Memo.Validate(); err != nil {
		return fmt.Errorf("config: memo: %w", err)
	}

	switch c.Metrics.Backend {
	case MetricsPrometheus, MetricsMemory, MetricsNone:
	default:
		return fmt.Errorf("config: unknown metrics backend %q", c.Metrics.Backend)
	}
	return nil
}
