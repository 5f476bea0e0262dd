package dashcache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// Manager coordinates the cache tiers behind a single façade: deterministic
// key derivation, read-through computation, invalidation and statistics.
// Construct one at startup and inject it; independent instances are cheap,
// which keeps tests isolated. There is no package-level singleton.
type Manager struct {
	store      Store
	keys       KeyBuilder
	defaultTTL time.Duration
	stats      *Stats
	observer   Observer
	logger     *slog.Logger
	flight     *singleflight.Group
	closers    []io.Closer
}

// ManagerOption configures a Manager at construction time.
type ManagerOption func(*Manager)

// WithTTL overrides the default TTL applied when a call passes ttl == 0.
func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl != 0 {
			m.defaultTTL = ttl
		}
	}
}

// WithKeyPrefix changes the prefix heading every derived key.
func WithKeyPrefix(prefix string) ManagerOption {
	return func(m *Manager) { m.keys.Prefix = prefix }
}

// WithObserver attaches an observer receiving one event per public operation.
func WithObserver(o Observer) ManagerOption {
	return func(m *Manager) { m.observer = o }
}

// WithLogger routes the manager's own log lines (remote degradation, close
// failures) to logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithSingleFlight collapses concurrent GetOrCompute misses on the same key
// into one producer invocation. Off by default: two racing callers may both
// compute, last writer wins, which is harmless for idempotent producers.
func WithSingleFlight() ManagerOption {
	return func(m *Manager) { m.flight = &singleflight.Group{} }
}

func withCloser(c io.Closer) ManagerOption {
	return func(m *Manager) { m.closers = append(m.closers, c) }
}

// NewManager creates a manager façade bound to a concrete store.
// @group Manager
//
// Example: manager from store
//
//	m := dashcache.NewManager(dashcache.NewLRUStore(context.Background()))
//	fmt.Println(m.Driver()) // lru
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:      store,
		keys:       KeyBuilder{Prefix: defaultKeyPrefix},
		defaultTTL: defaultCacheTTL,
		stats:      NewStats(),
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	attachStoreStats(m.store, m.stats)
	return m
}

// Store returns the underlying store implementation.
func (m *Manager) Store() Store { return m.store }

// Driver reports the underlying store driver.
func (m *Manager) Driver() Driver { return m.store.Driver() }

// Ready reports whether the underlying tiers are reachable.
func (m *Manager) Ready(ctx context.Context) error { return m.store.Ready(ctx) }

// ComputeKey derives the deterministic cache key for a computation identity
// invoked with args and kwargs. Equal inputs always yield equal keys;
// non-serializable arguments fail with ErrKeySerialization.
// @group Manager
func (m *Manager) ComputeKey(identity string, args []any, kwargs map[string]any) (string, error) {
	return m.keys.Build(identity, args, kwargs)
}

// KeyScope returns the prefix shared by every key derived for identity; hand
// it to InvalidatePattern to drop one computation's entries.
func (m *Manager) KeyScope(identity string) string {
	return m.keys.Scope(identity)
}

// Get returns raw bytes for key when present. This is the one place hit and
// miss statistics are counted, so read-through helpers built on Get record
// exactly one hit-or-miss per lookup.
// @group Manager
//
// Example: get bytes
//
//	m := dashcache.NewManager(dashcache.NewLRUStore(context.Background()))
//	_ = m.Set(ctx, "user:42", []byte("Ada"), 0)
//	value, ok, _ := m.Get(ctx, "user:42")
//	fmt.Println(ok, string(value)) // true Ada
func (m *Manager) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	body, ok, err := m.store.Get(ctx, key)
	if err == nil {
		if ok {
			m.stats.recordHit()
		} else {
			m.stats.recordMiss()
		}
	}
	m.observe(ctx, "get", key, ok, err, start)
	return body, ok, err
}

// GetString returns a UTF-8 string value for key when present.
func (m *Manager) GetString(ctx context.Context, key string) (string, bool, error) {
	body, ok, err := m.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	return string(body), true, nil
}

// Set writes raw bytes to key. A ttl of 0 applies the default TTL;
// NoExpiration keeps the entry until eviction or invalidation.
// @group Manager
func (m *Manager) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := m.store.Set(ctx, key, value, m.resolveTTL(ttl))
	m.observe(ctx, "set", key, false, err, start)
	return err
}

// SetString writes a string value to key.
func (m *Manager) SetString(ctx context.Context, key string, value string, ttl time.Duration) error {
	return m.Set(ctx, key, []byte(value), ttl)
}

// Add writes value only when key is not already present.
func (m *Manager) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	start := time.Now()
	created, err := m.store.Add(ctx, key, value, m.resolveTTL(ttl))
	m.observe(ctx, "add", key, created, err, start)
	return created, err
}

// Pull returns value and removes it from the cache.
func (m *Manager) Pull(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	body, ok, err := m.Get(ctx, key)
	if err != nil || !ok {
		m.observe(ctx, "pull", key, ok, err, start)
		return nil, ok, err
	}
	if err := m.Invalidate(ctx, key); err != nil {
		m.observe(ctx, "pull", key, false, err, start)
		return nil, false, err
	}
	m.observe(ctx, "pull", key, true, nil, start)
	return body, true, nil
}

// Increment increments a numeric value and returns the result.
func (m *Manager) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	start := time.Now()
	val, err := m.store.Increment(ctx, key, delta, m.resolveTTL(ttl))
	m.observe(ctx, "increment", key, err == nil, err, start)
	return val, err
}

// Decrement decrements a numeric value and returns the result.
func (m *Manager) Decrement(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	start := time.Now()
	val, err := m.store.Decrement(ctx, key, delta, m.resolveTTL(ttl))
	m.observe(ctx, "decrement", key, err == nil, err, start)
	return val, err
}

// GetOrCompute returns the cached value for key when present; otherwise it
// invokes producer, stores the result under ttl and returns it. Producer
// errors propagate unchanged and nothing is written. Without the
// WithSingleFlight option, concurrent callers missing on the same key may
// each invoke the producer; the last write wins.
// @group Manager
//
// Example: read-through computation
//
//	m := dashcache.NewManager(dashcache.NewLRUStore(context.Background()))
//	data, err := m.GetOrCompute(ctx, "dashboard:summary", time.Minute, func(ctx context.Context) ([]byte, error) {
//		return []byte("payload"), nil
//	})
//	fmt.Println(err == nil, string(data)) // true payload
func (m *Manager) GetOrCompute(ctx context.Context, key string, ttl time.Duration, producer func(context.Context) ([]byte, error)) ([]byte, error) {
	start := time.Now()
	body, ok, err := m.Get(ctx, key)
	if err != nil {
		m.observe(ctx, "get_or_compute", key, false, err, start)
		return nil, err
	}
	if ok {
		m.observe(ctx, "get_or_compute", key, true, nil, start)
		return body, nil
	}
	if producer == nil {
		err := errors.New("dashcache: get or compute requires a producer")
		m.observe(ctx, "get_or_compute", key, false, err, start)
		return nil, err
	}

	if m.flight != nil {
		out, err, _ := m.flight.Do(key, func() (any, error) {
			// Another flight member may have stored the value while this
			// caller waited; reads here bypass Get so statistics stay one
			// hit-or-miss per caller lookup.
			body, ok, err := m.store.Get(ctx, key)
			if err == nil && ok {
				return body, nil
			}
			return m.produce(ctx, key, ttl, producer)
		})
		m.observe(ctx, "get_or_compute", key, err == nil, err, start)
		if err != nil {
			return nil, err
		}
		return out.([]byte), nil
	}

	body, err = m.produce(ctx, key, ttl, producer)
	m.observe(ctx, "get_or_compute", key, err == nil, err, start)
	return body, err
}

func (m *Manager) produce(ctx context.Context, key string, ttl time.Duration, producer func(context.Context) ([]byte, error)) ([]byte, error) {
	body, err := producer(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.Set(ctx, key, body, ttl); err != nil {
		return nil, err
	}
	return body, nil
}

// Invalidate removes a single key from every tier.
// @group Manager
func (m *Manager) Invalidate(ctx context.Context, key string) error {
	start := time.Now()
	err := m.store.Delete(ctx, key)
	m.observe(ctx, "invalidate", key, err == nil, err, start)
	return err
}

// InvalidateMany removes multiple keys from every tier.
func (m *Manager) InvalidateMany(ctx context.Context, keys ...string) error {
	start := time.Now()
	err := m.store.DeleteMany(ctx, keys...)
	for _, key := range keys {
		m.observe(ctx, "invalidate_many", key, err == nil, err, start)
	}
	return err
}

// InvalidatePattern removes every key starting with prefix from every tier.
// Combined with KeyScope it clears all cached results of one computation.
// @group Manager
func (m *Manager) InvalidatePattern(ctx context.Context, prefix string) error {
	start := time.Now()
	err := m.store.DeletePrefix(ctx, prefix)
	m.observe(ctx, "invalidate_pattern", prefix, err == nil, err, start)
	return err
}

// Clear removes every entry from every tier.
func (m *Manager) Clear(ctx context.Context) error {
	start := time.Now()
	err := m.store.Flush(ctx)
	m.observe(ctx, "clear", "", err == nil, err, start)
	return err
}

// Cleanup proactively sweeps expired entries when the store supports it,
// returning how many were removed.
func (m *Manager) Cleanup(ctx context.Context) (int, error) {
	if c, ok := m.store.(Cleaner); ok {
		return c.Cleanup(ctx)
	}
	return 0, nil
}

// Stats assembles a point-in-time snapshot of cache activity, including the
// live entry count and capacity when the store reports them.
// @group Manager
func (m *Manager) Stats() StatsSnapshot {
	snap := m.stats.Snapshot()
	if z, ok := m.store.(Sizer); ok {
		snap.Size = z.Len()
	}
	if c, ok := m.store.(interface{ Cap() int }); ok {
		snap.MaxEntries = c.Cap()
	}
	if r, ok := m.store.(remoteReporter); ok {
		snap.RemoteAttached = r.remoteAttached()
	}
	return snap
}

// ResetStats zeroes the hit/miss/eviction/expiration counters.
func (m *Manager) ResetStats() { m.stats.Reset() }

// Close stops janitors and releases owned clients.
func (m *Manager) Close() error {
	var first error
	if closer, ok := m.store.(io.Closer); ok {
		first = closer.Close()
	}
	for _, c := range m.closers {
		if err := c.Close(); err != nil {
			if first == nil {
				first = err
			} else {
				m.logger.Warn("closing cache resource failed", "error", err)
			}
		}
	}
	return first
}

func (m *Manager) resolveTTL(ttl time.Duration) time.Duration {
	if ttl == 0 {
		return m.defaultTTL
	}
	return ttl
}

func (m *Manager) observe(ctx context.Context, op, key string, hit bool, err error, start time.Time) {
	if m.observer == nil {
		return
	}
	m.observer.OnCacheOp(ctx, op, key, hit, err, time.Since(start), m.Driver())
}
