package dashcache

import (
	"log/slog"
	"time"
)

// StoreOption mutates StoreConfig when constructing a store.
type StoreOption func(StoreConfig) StoreConfig

// WithDefaultTTL overrides the fallback TTL used when ttl == 0.
func WithDefaultTTL(ttl time.Duration) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.DefaultTTL = ttl
		return cfg
	}
}

// WithMaxEntries bounds the LRU driver's capacity.
func WithMaxEntries(n int) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.MaxEntries = n
		return cfg
	}
}

// WithCleanupInterval overrides the sweep interval for local drivers.
// A negative interval disables the background janitor.
func WithCleanupInterval(interval time.Duration) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.CleanupInterval = interval
		return cfg
	}
}

// WithPrefix sets the key prefix for shared backends (e.g., redis).
func WithPrefix(prefix string) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.Prefix = prefix
		return cfg
	}
}

// WithRedisClient sets the redis client; required when using DriverRedis.
func WithRedisClient(client RedisClient) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.RedisClient = client
		return cfg
	}
}

// WithNATSKeyValue sets the jetstream bucket; required when using DriverNATS.
// bucketTTL marks buckets that already expire entries natively.
func WithNATSKeyValue(kv NATSKeyValue, bucketTTL bool) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.NATSKeyValue = kv
		cfg.NATSBucketTTL = bucketTTL
		return cfg
	}
}

// WithSQL sets the database/sql driver name and DSN; required for DriverSQL.
func WithSQL(driverName, dsn string) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.SQLDriverName = driverName
		cfg.SQLDSN = dsn
		return cfg
	}
}

// WithSQLTable overrides the cache table name for DriverSQL.
func WithSQLTable(table string) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.SQLTable = table
		return cfg
	}
}

// WithDynamoClient injects a prebuilt DynamoDB client.
func WithDynamoClient(client DynamoAPI) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.DynamoClient = client
		return cfg
	}
}

// WithDynamoTable configures the DynamoDB table, region and optional
// endpoint override (local emulators).
func WithDynamoTable(table, region, endpoint string) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.DynamoTable = table
		cfg.DynamoRegion = region
		cfg.DynamoEndpoint = endpoint
		return cfg
	}
}

// WithMaxCostBytes bounds the ristretto driver by total stored value bytes.
func WithMaxCostBytes(n int64) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.MaxCostBytes = n
		return cfg
	}
}

// WithTiers composes a tiered store from a local and a remote tier.
func WithTiers(local, remote Store) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.Local = local
		cfg.Remote = remote
		return cfg
	}
}

// WithRemoteTimeout bounds every remote-tier call of the tiered driver.
func WithRemoteTimeout(d time.Duration) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.RemoteTimeout = d
		return cfg
	}
}

// WithBackfillTTL limits how long remote hits live in the local tier.
func WithBackfillTTL(d time.Duration) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.BackfillTTL = d
		return cfg
	}
}

// WithStoreLogger routes remote-failure warnings to logger.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.Logger = logger
		return cfg
	}
}

// WithCompression enables transparent value compression above the codec's
// threshold.
func WithCompression(codec CompressionCodec) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.Compression = codec
		return cfg
	}
}

// WithMaxValueBytes rejects values larger than n with ErrValueTooLarge.
func WithMaxValueBytes(n int) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.MaxValueBytes = n
		return cfg
	}
}
