package dashcache

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultCachePrefix     = defaultKeyPrefix
	defaultCacheTTL        = time.Hour
	defaultMaxEntries      = 1000
	defaultCleanupInterval = 10 * time.Minute
	defaultRemoteTimeout   = 500 * time.Millisecond
	defaultMaxCostBytes    = 64 << 20
)

// StoreConfig controls how a Store is constructed.
type StoreConfig struct {
	Driver Driver

	// DefaultTTL is used when a call provides ttl == 0.
	DefaultTTL time.Duration

	// MaxEntries bounds the LRU driver. Zero or negative stores nothing.
	MaxEntries int

	// CleanupInterval controls the expired-entry sweep for local drivers.
	CleanupInterval time.Duration

	// Prefix is used by shared backends (e.g. redis keys).
	Prefix string

	// RedisClient is required when DriverRedis is used.
	RedisClient RedisClient

	// NATSKeyValue is required when DriverNATS is used. NATSBucketTTL marks
	// buckets created with a native TTL, skipping the envelope encoding.
	NATSKeyValue  NATSKeyValue
	NATSBucketTTL bool

	// SQLDriverName/SQLDSN are required when DriverSQL is used.
	SQLDriverName string
	SQLDSN        string
	SQLTable      string

	// DynamoClient is built from region/endpoint when nil and DriverDynamo is used.
	DynamoClient   DynamoAPI
	DynamoTable    string
	DynamoRegion   string
	DynamoEndpoint string

	// MaxCostBytes bounds the ristretto driver by total value bytes.
	MaxCostBytes int64

	// Local/Remote compose the tiered driver. RemoteTimeout bounds every
	// remote call; BackfillTTL limits how long remote hits live locally.
	Local         Store
	Remote        Store
	RemoteTimeout time.Duration
	BackfillTTL   time.Duration

	// Logger receives remote-failure warnings from the tiered driver.
	Logger *slog.Logger

	// Compression and MaxValueBytes enable the shaping wrapper.
	Compression   CompressionCodec
	MaxValueBytes int
}

func (c StoreConfig) withDefaults() StoreConfig {
	if c.Driver == "" {
		c.Driver = DriverLRU
	}
	if c.DefaultTTL == 0 {
		c.DefaultTTL = defaultCacheTTL
	}
	if c.MaxEntries == 0 {
		c.MaxEntries = defaultMaxEntries
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = defaultCleanupInterval
	}
	if c.Prefix == "" {
		c.Prefix = defaultCachePrefix
	}
	if c.SQLTable == "" {
		c.SQLTable = "cache_entries"
	}
	if c.DynamoTable == "" {
		c.DynamoTable = "cache_entries"
	}
	if c.MaxCostBytes <= 0 {
		c.MaxCostBytes = defaultMaxCostBytes
	}
	if c.RemoteTimeout <= 0 {
		c.RemoteTimeout = defaultRemoteTimeout
	}
	if c.BackfillTTL == 0 {
		c.BackfillTTL = c.DefaultTTL
	}
	return c
}

// Config is the application-level configuration surface: a plain struct
// loadable from a YAML file with environment overrides. Open turns it into a
// wired Manager. Environment names keep the original dashboard deployment's
// spelling so existing installs configure the cache unchanged.
type Config struct {
	// Driver selects the local tier: lru (default), memory, ristretto, null.
	Driver string `yaml:"driver"`

	// MaxEntries bounds the local tier. Env: CACHE_MAX_SIZE.
	MaxEntries int `yaml:"max_entries"`

	// DefaultTTL applies when a call passes ttl == 0. Env: CACHE_TTL, either
	// bare seconds ("3600") or a Go duration ("1h").
	DefaultTTL time.Duration `yaml:"default_ttl"`

	// Prefix heads every derived key. Env: CACHE_PREFIX.
	Prefix string `yaml:"prefix"`

	// RedisURL enables the redis remote tier when non-empty. Env: REDIS_URL.
	RedisURL string `yaml:"redis_url"`

	// NATSURL and NATSBucket enable the NATS KV remote tier. Env: NATS_URL.
	NATSURL    string `yaml:"nats_url"`
	NATSBucket string `yaml:"nats_bucket"`

	// RemoteTimeout bounds every remote-tier call. Env: CACHE_REMOTE_TIMEOUT.
	RemoteTimeout time.Duration `yaml:"remote_timeout"`

	// CleanupInterval controls the local expired-entry sweep.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// SingleFlight collapses concurrent producers per key in GetOrCompute.
	// Env: CACHE_SINGLE_FLIGHT.
	SingleFlight bool `yaml:"single_flight"`
}

// DefaultConfig returns the documented defaults: a bounded local cache of
// 1000 entries, one-hour TTL, no remote tier.
func DefaultConfig() Config {
	return Config{
		Driver:          string(DriverLRU),
		MaxEntries:      defaultMaxEntries,
		DefaultTTL:      defaultCacheTTL,
		Prefix:          defaultCachePrefix,
		RemoteTimeout:   defaultRemoteTimeout,
		CleanupInterval: defaultCleanupInterval,
	}
}

// LoadConfig layers defaults, the YAML file at path (skipped when path is
// empty or the file does not exist), and environment variables, in that order.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		body, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read cache config %q: %w", path, err)
			}
		} else if err := yaml.Unmarshal(body, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse cache config %q: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("CACHE_DRIVER"); v != "" {
		c.Driver = v
	}
	if v := os.Getenv("CACHE_MAX_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CACHE_MAX_SIZE %q: %w", v, err)
		}
		c.MaxEntries = n
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		d, err := parseTTLEnv(v)
		if err != nil {
			return fmt.Errorf("CACHE_TTL %q: %w", v, err)
		}
		c.DefaultTTL = d
	}
	if v := os.Getenv("CACHE_PREFIX"); v != "" {
		c.Prefix = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATSURL = v
	}
	if v := os.Getenv("CACHE_REMOTE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CACHE_REMOTE_TIMEOUT %q: %w", v, err)
		}
		c.RemoteTimeout = d
	}
	if v := os.Getenv("CACHE_SINGLE_FLIGHT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CACHE_SINGLE_FLIGHT %q: %w", v, err)
		}
		c.SingleFlight = b
	}
	return nil
}

// parseTTLEnv accepts bare seconds (the original deployment convention) or a
// Go duration string.
func parseTTLEnv(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}
