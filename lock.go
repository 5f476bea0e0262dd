package dashcache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrNotLockOwner is returned by Unlock when the presented token does not
// match the current lock holder.
var ErrNotLockOwner = errors.New("dashcache: lock not held by this owner")

const lockKeyPrefix = "lock:"

// TryLock attempts to acquire a cache-backed lock once, without blocking.
// On success it returns an owner token that must be presented to Unlock.
// The lock falls away on its own when ttl elapses, so a crashed holder
// cannot wedge the key forever.
// @group Locking
func (m *Manager) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	created, err := m.store.Add(ctx, lockKeyPrefix+key, []byte(token), m.resolveTTL(ttl))
	if err != nil || !created {
		return "", false, err
	}
	return token, true, nil
}

// Lock acquires the lock, polling every retryInterval until it succeeds or
// ctx is done.
// @group Locking
func (m *Manager) Lock(ctx context.Context, key string, ttl, retryInterval time.Duration) (string, error) {
	if retryInterval <= 0 {
		retryInterval = 50 * time.Millisecond
	}
	for {
		token, ok, err := m.TryLock(ctx, key, ttl)
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

// Unlock releases the lock when token matches the current holder. The
// check-then-delete pair is not atomic across processes: a lock that expires
// between the two steps can be re-acquired and then released by the previous
// holder. Keep ttl comfortably above the critical section length.
// @group Locking
func (m *Manager) Unlock(ctx context.Context, key, token string) error {
	body, ok, err := m.store.Get(ctx, lockKeyPrefix+key)
	if err != nil {
		return err
	}
	if !ok || string(body) != token {
		return ErrNotLockOwner
	}
	return m.store.Delete(ctx, lockKeyPrefix+key)
}

// LockHandle bundles a lock key, TTL and owner token into a reusable handle.
type LockHandle struct {
	m     *Manager
	key   string
	ttl   time.Duration
	token string
	held  atomic.Bool
}

// NewLockHandle creates a reusable lock handle for a key/ttl pair.
// @group Locking
//
// Example: lock handle acquire/release
//
//	m := dashcache.NewManager(dashcache.NewLRUStore(context.Background()))
//	lock := m.NewLockHandle("job:refresh", 10*time.Second)
//	locked, err := lock.Acquire(ctx)
//	fmt.Println(err == nil, locked) // true true
//	if locked {
//		_ = lock.Release(ctx)
//	}
func (m *Manager) NewLockHandle(key string, ttl time.Duration) *LockHandle {
	return &LockHandle{m: m, key: key, ttl: ttl}
}

// Acquire attempts to acquire the lock once (non-blocking).
func (l *LockHandle) Acquire(ctx context.Context) (bool, error) {
	token, ok, err := l.m.TryLock(ctx, l.key, l.ttl)
	if ok && err == nil {
		l.token = token
		l.held.Store(true)
	}
	return ok, err
}

// Release unlocks the key if this handle previously acquired it. It is safe
// to call multiple times; repeated calls become no-ops after the first
// successful release.
func (l *LockHandle) Release(ctx context.Context) error {
	if !l.held.CompareAndSwap(true, false) {
		return nil
	}
	return l.m.Unlock(ctx, l.key, l.token)
}

// Held reports whether this handle currently believes it owns the lock.
// The lock may have expired server-side in the meantime.
func (l *LockHandle) Held() bool { return l.held.Load() }
