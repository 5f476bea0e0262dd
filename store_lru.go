package dashcache

import (
	"container/list"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// lruEntry is one cached value with its bookkeeping timestamps.
type lruEntry struct {
	key          string
	value        []byte
	createdAt    time.Time
	expiresAt    time.Time // zero means never
	lastAccessed time.Time
}

func (e *lruEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// lruStore is the bounded local tier: an ordered map guarded by a single
// mutex, evicting the least-recently-used entry when an insert would exceed
// capacity and dropping expired entries lazily on access. Reads promote the
// entry and refresh lastAccessed without touching the expiry; overwrites
// reset createdAt and expiresAt. A capacity of zero stores nothing, so every
// read misses.
type lruStore struct {
	mu         sync.Mutex
	maxEntries int
	defaultTTL time.Duration
	order      *list.List               // front is most recently used
	items      map[string]*list.Element // key -> element holding *lruEntry
	stats      *Stats

	janitorStop chan struct{}
	closeOnce   sync.Once
}

func newLRUStore(maxEntries int, defaultTTL, cleanupInterval time.Duration) *lruStore {
	s := &lruStore{
		maxEntries: maxEntries,
		defaultTTL: defaultTTL,
		order:      list.New(),
		items:      make(map[string]*list.Element),
	}
	if cleanupInterval > 0 {
		s.janitorStop = make(chan struct{})
		go s.janitor(cleanupInterval)
	}
	return s
}

func (s *lruStore) Driver() Driver { return DriverLRU }

func (s *lruStore) Ready(context.Context) error { return nil }

func (s *lruStore) attachStats(stats *Stats) {
	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()
}

func (s *lruStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	el, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	entry := el.Value.(*lruEntry)
	if entry.expired(now) {
		s.removeElement(el)
		s.stats.recordExpirations(1)
		return nil, false, nil
	}
	entry.lastAccessed = now
	s.order.MoveToFront(el)
	return cloneBytes(entry.value), true, nil
}

func (s *lruStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, cloneBytes(value), time.Now(), ttl)
	return nil
}

func (s *lruStore) Add(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if el, ok := s.items[key]; ok {
		entry := el.Value.(*lruEntry)
		if !entry.expired(now) {
			return false, nil
		}
		s.removeElement(el)
		s.stats.recordExpirations(1)
	}
	s.setLocked(key, cloneBytes(value), now, ttl)
	return true, nil
}

func (s *lruStore) Increment(_ context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if el, ok := s.items[key]; ok {
		entry := el.Value.(*lruEntry)
		if entry.expired(now) {
			s.removeElement(el)
			s.stats.recordExpirations(1)
		} else {
			current, err := strconv.ParseInt(string(entry.value), 10, 64)
			if err != nil {
				return 0, fmt.Errorf("dashcache: increment %q: existing value is not an integer", key)
			}
			next := current + delta
			entry.value = []byte(strconv.FormatInt(next, 10))
			entry.lastAccessed = now
			s.order.MoveToFront(el)
			return next, nil
		}
	}
	s.setLocked(key, []byte(strconv.FormatInt(delta, 10)), now, ttl)
	return delta, nil
}

func (s *lruStore) Decrement(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	return s.Increment(ctx, key, -delta, ttl)
}

func (s *lruStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.items[key]; ok {
		s.removeElement(el)
	}
	return nil
}

func (s *lruStore) DeleteMany(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		if el, ok := s.items[key]; ok {
			s.removeElement(el)
		}
	}
	return nil
}

func (s *lruStore) DeletePrefix(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, el := range s.items {
		if strings.HasPrefix(key, prefix) {
			s.removeElement(el)
		}
	}
	return nil
}

func (s *lruStore) Flush(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order.Init()
	s.items = make(map[string]*list.Element)
	return nil
}

// Cleanup removes every expired entry in one pass and reports how many were
// dropped. The janitor runs it on an interval; scheduled maintenance can call
// it directly instead of relying on lazy expiry alone.
func (s *lruStore) Cleanup(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	removed := 0
	for el := s.order.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*lruEntry).expired(now) {
			s.removeElement(el)
			removed++
		}
		el = next
	}
	s.stats.recordExpirations(removed)
	return removed, nil
}

// Len reports the number of stored entries, expired or not.
func (s *lruStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Cap reports the configured capacity.
func (s *lruStore) Cap() int { return s.maxEntries }

// Close stops the cleanup janitor when one is running.
func (s *lruStore) Close() error {
	s.closeOnce.Do(func() {
		if s.janitorStop != nil {
			close(s.janitorStop)
		}
	})
	return nil
}

// setLocked inserts or overwrites under the held mutex, evicting from the
// cold end first when a new key would exceed capacity.
func (s *lruStore) setLocked(key string, value []byte, now time.Time, ttl time.Duration) {
	if s.maxEntries <= 0 {
		return
	}
	if el, ok := s.items[key]; ok {
		entry := el.Value.(*lruEntry)
		entry.value = value
		entry.createdAt = now
		entry.expiresAt = s.resolveExpiry(now, ttl)
		entry.lastAccessed = now
		s.order.MoveToFront(el)
		return
	}
	for len(s.items) >= s.maxEntries {
		s.evictOldest()
	}
	entry := &lruEntry{
		key:          key,
		value:        value,
		createdAt:    now,
		expiresAt:    s.resolveExpiry(now, ttl),
		lastAccessed: now,
	}
	s.items[key] = s.order.PushFront(entry)
}

func (s *lruStore) evictOldest() {
	el := s.order.Back()
	if el == nil {
		return
	}
	s.removeElement(el)
	s.stats.recordEvictions(1)
}

func (s *lruStore) removeElement(el *list.Element) {
	entry := el.Value.(*lruEntry)
	delete(s.items, entry.key)
	s.order.Remove(el)
}

func (s *lruStore) resolveExpiry(now time.Time, ttl time.Duration) time.Time {
	if ttl == 0 {
		ttl = s.defaultTTL
	}
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

func (s *lruStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_, _ = s.Cleanup(context.Background())
		case <-s.janitorStop:
			return
		}
	}
}
