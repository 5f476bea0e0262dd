package dashcache

import (
	"context"
	"time"
)

// CoreAPI exposes basic cache metadata and readiness.
type CoreAPI interface {
	Driver() Driver
	Ready(ctx context.Context) error
}

// ReadAPI exposes read-oriented cache operations.
type ReadAPI interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	GetString(ctx context.Context, key string) (string, bool, error)
	Pull(ctx context.Context, key string) ([]byte, bool, error)
}

// WriteAPI exposes write and invalidation operations.
type WriteAPI interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetString(ctx context.Context, key string, value string, ttl time.Duration) error
	Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Invalidate(ctx context.Context, key string) error
	InvalidateMany(ctx context.Context, keys ...string) error
	InvalidatePattern(ctx context.Context, prefix string) error
	Clear(ctx context.Context) error
}

// ComputeAPI exposes key derivation and read-through computation.
type ComputeAPI interface {
	ComputeKey(identity string, args []any, kwargs map[string]any) (string, error)
	KeyScope(identity string) string
	GetOrCompute(ctx context.Context, key string, ttl time.Duration, producer func(context.Context) ([]byte, error)) ([]byte, error)
}

// CounterAPI exposes increment/decrement operations.
type CounterAPI interface {
	Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
	Decrement(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
}

// RateLimitAPI exposes rate limiting helpers.
type RateLimitAPI interface {
	RateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// LockAPI exposes lock helpers based on cache keys.
type LockAPI interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Lock(ctx context.Context, key string, ttl, retryInterval time.Duration) (string, error)
	Unlock(ctx context.Context, key, token string) error
}

// StatsAPI exposes cache statistics.
type StatsAPI interface {
	Stats() StatsSnapshot
	ResetStats()
}

// MaintenanceAPI exposes proactive cleanup and shutdown.
type MaintenanceAPI interface {
	Cleanup(ctx context.Context) (int, error)
	Close() error
}

// CacheAPI is the composed application-facing interface for Manager.
type CacheAPI interface {
	CoreAPI
	ReadAPI
	WriteAPI
	ComputeAPI
	CounterAPI
	RateLimitAPI
	LockAPI
	StatsAPI
	MaintenanceAPI
}

var _ CacheAPI = (*Manager)(nil)
