package dashcache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// ristrettoStore is a cost-bounded local driver: admission and eviction are
// driven by total value bytes rather than entry count, which suits caches of
// large, uneven payloads. Writes are applied asynchronously and may be
// rejected under cost pressure, so it is a best-effort tier rather than the
// deterministic LRU store.
type ristrettoStore struct {
	cache      *ristretto.Cache[string, []byte]
	defaultTTL time.Duration
	mu         sync.Mutex // serializes counter read-modify-write
}

func newRistrettoStore(maxCostBytes int64, defaultTTL time.Duration) (Store, error) {
	if defaultTTL <= 0 {
		defaultTTL = defaultCacheTTL
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxCostBytes / 100 * 10, // ~10x expected items
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &ristrettoStore{cache: c, defaultTTL: defaultTTL}, nil
}

func (s *ristrettoStore) Driver() Driver { return DriverRistretto }

func (s *ristrettoStore) Ready(context.Context) error { return nil }

func (s *ristrettoStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, found := s.cache.Get(key)
	if !found {
		return nil, false, nil
	}
	return cloneBytes(val), true, nil
}

func (s *ristrettoStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.set(key, cloneBytes(value), ttl)
	return nil
}

func (s *ristrettoStore) Add(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.cache.Get(key); found {
		return false, nil
	}
	s.set(key, cloneBytes(value), ttl)
	s.cache.Wait()
	return true, nil
}

func (s *ristrettoStore) Increment(_ context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var current int64
	if raw, found := s.cache.Get(key); found {
		n, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return 0, err
		}
		current = n
	}
	next := current + delta
	s.set(key, []byte(strconv.FormatInt(next, 10)), ttl)
	s.cache.Wait()
	return next, nil
}

func (s *ristrettoStore) Decrement(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	return s.Increment(ctx, key, -delta, ttl)
}

func (s *ristrettoStore) Delete(_ context.Context, key string) error {
	s.cache.Del(key)
	return nil
}

func (s *ristrettoStore) DeleteMany(_ context.Context, keys ...string) error {
	for _, key := range keys {
		s.cache.Del(key)
	}
	return nil
}

// DeletePrefix clears the whole cache: ristretto exposes no key iteration,
// and over-invalidation is the safe direction.
func (s *ristrettoStore) DeletePrefix(context.Context, string) error {
	s.cache.Clear()
	return nil
}

func (s *ristrettoStore) Flush(context.Context) error {
	s.cache.Clear()
	return nil
}

// Close releases ristretto's internal goroutines.
func (s *ristrettoStore) Close() error {
	s.cache.Close()
	return nil
}

func (s *ristrettoStore) set(key string, value []byte, ttl time.Duration) {
	if ttl == 0 {
		ttl = s.defaultTTL
	}
	cost := int64(len(value))
	if ttl < 0 {
		s.cache.Set(key, value, cost)
		return
	}
	s.cache.SetWithTTL(key, value, cost, ttl)
}

// wait blocks until buffered writes are applied; tests use it to make
// asynchronous sets observable.
func (s *ristrettoStore) wait() { s.cache.Wait() }
