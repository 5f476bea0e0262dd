package dashcache

import (
	"context"
	"time"
)

// TTL sentinels accepted by every Store and by the Manager helpers.
const (
	// DefaultTTL defers to the configured default expiration.
	DefaultTTL time.Duration = 0
	// NoExpiration keeps the entry until it is evicted or invalidated.
	NoExpiration time.Duration = -1
)

// Store is the storage contract shared by every driver. Values are opaque
// byte slices; implementations must not retain or alias caller buffers.
// TTL handling: ttl > 0 expires after that duration, ttl == 0 applies the
// store default, negative ttl never expires.
type Store interface {
	Driver() Driver
	Ready(ctx context.Context) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
	Decrement(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
	Delete(ctx context.Context, key string) error
	DeleteMany(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
	Flush(ctx context.Context) error
}

// Sizer reports the number of live entries. Local stores implement it; the
// manager uses it to fill the size field of stats snapshots.
type Sizer interface {
	Len() int
}

// Cleaner proactively removes expired entries instead of waiting for lazy
// expiry on access. Stores that expire lazily implement it.
type Cleaner interface {
	Cleanup(ctx context.Context) (int, error)
}

// statsAttacher wires eviction/expiration counters into a store at
// construction time. Decorators forward the attachment to the store they wrap.
type statsAttacher interface {
	attachStats(*Stats)
}

func attachStoreStats(s Store, stats *Stats) {
	if a, ok := s.(statsAttacher); ok {
		a.attachStats(stats)
	}
}

func cloneBytes(value []byte) []byte {
	if value == nil {
		return nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out
}
