package dashcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// NewStore returns a concrete store for the requested driver.
// Caller is responsible for providing any driver-specific dependencies;
// construction failures come back as a store whose every call returns the
// original error, so wiring code can defer error handling to first use.
// @group Constructors
//
// Example: select driver explicitly
//
//	ctx := context.Background()
//	store := dashcache.NewStore(ctx, dashcache.StoreConfig{
//		Driver:     dashcache.DriverLRU,
//		MaxEntries: 500,
//	})
//	fmt.Println(store.Driver()) // lru
func NewStore(ctx context.Context, cfg StoreConfig) Store {
	cfg = cfg.withDefaults()
	var store Store
	switch cfg.Driver {
	case DriverNull:
		store = newNullStore()
	case DriverMemory:
		store = newMemoryStore(cfg.DefaultTTL, cfg.CleanupInterval)
	case DriverRistretto:
		s, err := newRistrettoStore(cfg.MaxCostBytes, cfg.DefaultTTL)
		if err != nil {
			return &errorStore{driver: DriverRistretto, err: err}
		}
		store = s
	case DriverRedis:
		if cfg.RedisClient == nil {
			return &errorStore{driver: DriverRedis, err: errors.New("dashcache: redis driver requires a client")}
		}
		store = newRedisStore(cfg.RedisClient, cfg.DefaultTTL, cfg.Prefix)
	case DriverNATS:
		if cfg.NATSKeyValue == nil {
			return &errorStore{driver: DriverNATS, err: errors.New("dashcache: nats driver requires a key-value bucket")}
		}
		store = newNATSStore(cfg.NATSKeyValue, cfg.DefaultTTL, cfg.Prefix, cfg.NATSBucketTTL)
	case DriverSQL:
		s, err := newSQLStore(cfg)
		if err != nil {
			return &errorStore{driver: DriverSQL, err: err}
		}
		store = s
	case DriverDynamo:
		s, err := newDynamoStore(ctx, cfg)
		if err != nil {
			return &errorStore{driver: DriverDynamo, err: err}
		}
		store = s
	case DriverTiered:
		if cfg.Local == nil || cfg.Remote == nil {
			return &errorStore{driver: DriverTiered, err: errors.New("dashcache: tiered driver requires local and remote stores")}
		}
		store = newTieredStore(cfg.Local, cfg.Remote, cfg.RemoteTimeout, cfg.BackfillTTL, cfg.Logger)
	default:
		store = newLRUStore(cfg.MaxEntries, cfg.DefaultTTL, cfg.CleanupInterval)
	}
	return newShapingStore(store, cfg.Compression, cfg.MaxValueBytes)
}

// NewStoreWith builds a store using a driver and a set of functional options.
// Required data (e.g., Redis client) must be provided via options when needed.
// @group Constructors
//
// Example: lru store (options)
//
//	ctx := context.Background()
//	store := dashcache.NewStoreWith(ctx, dashcache.DriverLRU,
//		dashcache.WithMaxEntries(500),
//		dashcache.WithDefaultTTL(5*time.Minute),
//	)
//	fmt.Println(store.Driver()) // lru
func NewStoreWith(ctx context.Context, driver Driver, opts ...StoreOption) Store {
	cfg := StoreConfig{Driver: driver}
	for _, opt := range opts {
		cfg = opt(cfg)
	}
	return NewStore(ctx, cfg)
}

// NewLRUStore is a convenience for the bounded in-process store.
// @group Constructors
//
// Example: lru helper
//
//	store := dashcache.NewLRUStore(context.Background())
//	fmt.Println(store.Driver()) // lru
func NewLRUStore(ctx context.Context, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverLRU, opts...)
}

// NewMemoryStore is a convenience for the unbounded in-process store.
// @group Constructors
func NewMemoryStore(ctx context.Context, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverMemory, opts...)
}

// NewRistrettoStore is a convenience for the cost-bounded in-process store.
// @group Constructors
func NewRistrettoStore(ctx context.Context, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverRistretto, opts...)
}

// NewNullStore is a convenience for the no-op store.
// @group Constructors
func NewNullStore(ctx context.Context, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverNull, opts...)
}

// NewRedisStore is a convenience for a redis-backed store. Redis client is required.
// @group Constructors
//
// Example: redis helper
//
//	ctx := context.Background()
//	redisClient := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
//	store := dashcache.NewRedisStore(ctx, redisClient, dashcache.WithPrefix("app"))
//	fmt.Println(store.Driver()) // redis
func NewRedisStore(ctx context.Context, client RedisClient, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverRedis, append([]StoreOption{WithRedisClient(client)}, opts...)...)
}

// NewNATSStore is a convenience for a JetStream KeyValue-backed store.
// Pass bucketTTL = true when the bucket was created with a native TTL.
// @group Constructors
func NewNATSStore(ctx context.Context, kv NATSKeyValue, bucketTTL bool, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverNATS, append([]StoreOption{WithNATSKeyValue(kv, bucketTTL)}, opts...)...)
}

// NewSQLStore is a convenience for a SQL-backed store. Supported driver names
// are pgx/postgres, mysql and sqlite.
// @group Constructors
//
// Example: sqlite helper
//
//	ctx := context.Background()
//	store := dashcache.NewSQLStore(ctx, "sqlite", "file:cache.db")
//	fmt.Println(store.Driver()) // sql
func NewSQLStore(ctx context.Context, driverName, dsn string, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverSQL, append([]StoreOption{WithSQL(driverName, dsn)}, opts...)...)
}

// NewDynamoStore is a convenience for a DynamoDB-backed store. When no client
// option is supplied one is built from the table/region/endpoint options.
// @group Constructors
func NewDynamoStore(ctx context.Context, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverDynamo, opts...)
}

// NewTieredStore composes a local authoritative tier with a best-effort
// remote mirror. Remote failures are logged and swallowed.
// @group Constructors
//
// Example: tiered helper
//
//	ctx := context.Background()
//	local := dashcache.NewLRUStore(ctx)
//	remote := dashcache.NewMemoryStore(ctx)
//	store := dashcache.NewTieredStore(ctx, local, remote)
//	fmt.Println(store.Driver()) // tiered
func NewTieredStore(ctx context.Context, local, remote Store, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverTiered, append([]StoreOption{WithTiers(local, remote)}, opts...)...)
}

// Open wires a Manager from application-level configuration: it builds the
// local tier, dials the remote tier when one is configured, and degrades to
// local-only with a warning when the remote does not answer a readiness probe
// within cfg.RemoteTimeout. The returned Manager owns any clients Open dials;
// Close releases them.
// @group Constructors
//
// Example: local-only manager from defaults
//
//	m, err := dashcache.Open(context.Background(), dashcache.DefaultConfig())
//	fmt.Println(err == nil, m.Driver()) // true lru
func Open(ctx context.Context, cfg Config, opts ...ManagerOption) (*Manager, error) {
	// Peek at the options for a configured logger so dial-time warnings land
	// in the same place as the manager's own log lines.
	probe := &Manager{}
	for _, opt := range opts {
		opt(probe)
	}
	logger := probe.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	local := NewStore(ctx, StoreConfig{
		Driver:          Driver(cfg.Driver),
		DefaultTTL:      cfg.DefaultTTL,
		MaxEntries:      cfg.MaxEntries,
		CleanupInterval: cfg.CleanupInterval,
		Prefix:          cfg.Prefix,
	})
	if err := local.Ready(ctx); err != nil {
		return nil, fmt.Errorf("dashcache: local tier %q unavailable: %w", cfg.Driver, err)
	}

	store := local
	remote, closer, err := openRemote(ctx, cfg, logger)
	if err != nil {
		// Mirror is optional: a dead remote at startup means local-only,
		// exactly as if it died later.
		logger.Warn("remote cache tier unavailable at startup, continuing local-only",
			"error", err)
	} else if remote != nil {
		store = newTieredStore(local, remote, cfg.RemoteTimeout, cfg.DefaultTTL, logger)
		if closer != nil {
			opts = append(opts, withCloser(closer))
		}
	}

	if cfg.DefaultTTL > 0 {
		opts = append(opts, WithTTL(cfg.DefaultTTL))
	}
	if cfg.Prefix != "" {
		opts = append(opts, WithKeyPrefix(cfg.Prefix))
	}
	if cfg.SingleFlight {
		opts = append(opts, WithSingleFlight())
	}
	return NewManager(store, opts...), nil
}

// openRemote dials the configured remote backend and probes it once under the
// remote timeout. Returns (nil, nil, nil) when no remote is configured.
func openRemote(ctx context.Context, cfg Config, logger *slog.Logger) (Store, closerFunc, error) {
	timeout := cfg.RemoteTimeout
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}

	switch {
	case cfg.RedisURL != "":
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opt)
		store := newRedisStore(client, cfg.DefaultTTL, cfg.Prefix)
		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := store.Ready(probeCtx); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		logger.Info("remote cache tier attached", "driver", DriverRedis)
		return store, client.Close, nil

	case cfg.NATSURL != "":
		bucket := cfg.NATSBucket
		if bucket == "" {
			bucket = "cache"
		}
		nc, err := nats.Connect(cfg.NATSURL, nats.Timeout(timeout))
		if err != nil {
			return nil, nil, fmt.Errorf("nats connect: %w", err)
		}
		js, err := nc.JetStream()
		if err != nil {
			nc.Close()
			return nil, nil, fmt.Errorf("nats jetstream: %w", err)
		}
		kv, err := js.KeyValue(bucket)
		if errors.Is(err, nats.ErrBucketNotFound) {
			kv, err = js.CreateKeyValue(&nats.KeyValueConfig{Bucket: bucket})
		}
		if err != nil {
			nc.Close()
			return nil, nil, fmt.Errorf("nats bucket %q: %w", bucket, err)
		}
		store := newNATSStore(kv, cfg.DefaultTTL, cfg.Prefix, false)
		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := store.Ready(probeCtx); err != nil {
			nc.Close()
			return nil, nil, fmt.Errorf("nats probe: %w", err)
		}
		logger.Info("remote cache tier attached", "driver", DriverNATS)
		return store, func() error { nc.Close(); return nil }, nil
	}
	return nil, nil, nil
}

// closerFunc adapts a plain function to io.Closer.
type closerFunc func() error

func (f closerFunc) Close() error { return f() }
