package dashcache

import (
	"context"
	"time"
)

const rateLimitKeyPrefix = "ratelimit:"

// RateLimit counts a request against a fixed window and reports whether it
// is allowed plus how many requests remain. The window starts at the first
// request for key and resets when the counter's TTL elapses. The dashboard
// uses it to throttle per-user API access.
// @group RateLimit
//
// Example: per-user limiter
//
//	m := dashcache.NewManager(dashcache.NewLRUStore(context.Background()))
//	allowed, remaining, _ := m.RateLimit(ctx, "api:user:42", 100, time.Minute)
//	fmt.Println(allowed, remaining) // true 99
func (m *Manager) RateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	count, err := m.store.Increment(ctx, rateLimitKeyPrefix+key, 1, window)
	if err != nil {
		return false, 0, err
	}
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= limit, remaining, nil
}
