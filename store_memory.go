package dashcache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryStore is the unbounded local driver, for callers that want TTL expiry
// without a capacity cap. It delegates storage and the expiry sweep to
// patrickmn/go-cache.
type memoryStore struct {
	cache      *gocache.Cache
	defaultTTL time.Duration
	mu         sync.Mutex
}

func newMemoryStore(defaultTTL, cleanupInterval time.Duration) Store {
	if defaultTTL <= 0 {
		defaultTTL = defaultCacheTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = defaultCleanupInterval
	}
	return &memoryStore{
		cache:      gocache.New(defaultTTL, cleanupInterval),
		defaultTTL: defaultTTL,
	}
}

func (s *memoryStore) Driver() Driver { return DriverMemory }

func (s *memoryStore) Ready(context.Context) error { return nil }

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	item, ok := s.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	body, ok := item.([]byte)
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(body), true, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.cache.Set(key, cloneBytes(value), s.resolveTTL(ttl))
	return nil
}

func (s *memoryStore) Add(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := s.cache.Add(key, cloneBytes(value), s.resolveTTL(ttl)); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *memoryStore) Increment(_ context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, _, err := s.readInt64(key)
	if err != nil {
		return 0, err
	}
	next := current + delta
	s.cache.Set(key, []byte(strconv.FormatInt(next, 10)), s.resolveTTL(ttl))
	return next, nil
}

func (s *memoryStore) Decrement(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	return s.Increment(ctx, key, -delta, ttl)
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

func (s *memoryStore) DeleteMany(_ context.Context, keys ...string) error {
	for _, key := range keys {
		s.cache.Delete(key)
	}
	return nil
}

func (s *memoryStore) DeletePrefix(_ context.Context, prefix string) error {
	for key := range s.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			s.cache.Delete(key)
		}
	}
	return nil
}

func (s *memoryStore) Flush(context.Context) error {
	s.cache.Flush()
	return nil
}

// Cleanup sweeps expired entries immediately instead of waiting for the
// background interval. The removed count is approximate when the sweep races
// concurrent writes.
func (s *memoryStore) Cleanup(context.Context) (int, error) {
	before := s.cache.ItemCount()
	s.cache.DeleteExpired()
	removed := before - s.cache.ItemCount()
	if removed < 0 {
		removed = 0
	}
	return removed, nil
}

// Len counts stored entries, including expired ones the sweep has not
// collected yet.
func (s *memoryStore) Len() int { return s.cache.ItemCount() }

func (s *memoryStore) resolveTTL(ttl time.Duration) time.Duration {
	if ttl == 0 {
		ttl = s.defaultTTL
	}
	if ttl < 0 {
		return gocache.NoExpiration
	}
	return ttl
}

func (s *memoryStore) readInt64(key string) (int64, bool, error) {
	body, ok := s.cache.Get(key)
	if !ok {
		return 0, false, nil
	}
	switch value := body.(type) {
	case []byte:
		n, err := strconv.ParseInt(string(value), 10, 64)
		if err != nil {
			return 0, false, fmt.Errorf("cache key %q does not contain a numeric value", key)
		}
		return n, true, nil
	case string:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, false, fmt.Errorf("cache key %q does not contain a numeric value", key)
		}
		return n, true, nil
	case int:
		return int64(value), true, nil
	case int64:
		return value, true, nil
	default:
		return 0, false, fmt.Errorf("cache key %q does not contain a numeric value", key)
	}
}
