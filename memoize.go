package dashcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Memoized adapts a computation into cache-backed calls keyed by its
// argument. It is the explicit form of a caching decorator: wrap once with a
// TTL, then Call with any argument value.
type Memoized[A any, V any] struct {
	m    *Manager
	name string
	ttl  time.Duration
	fn   func(context.Context, A) (V, error)
}

// Memoize wraps fn so that Call(ctx, arg) returns a previously cached result
// for arg, or executes fn and caches the result under ttl. The name
// identifies the computation in derived keys; distinct computations must use
// distinct names.
// @group Memoize
//
// Example: memoized computation
//
//	m := dashcache.NewManager(dashcache.NewLRUStore(context.Background()))
//	squares := dashcache.Memoize(m, "square", time.Minute, func(_ context.Context, n int) (int, error) {
//		return n * n, nil
//	})
//	v, _ := squares.Call(ctx, 12)
//	fmt.Println(v) // 144
func Memoize[A any, V any](m *Manager, name string, ttl time.Duration, fn func(context.Context, A) (V, error)) *Memoized[A, V] {
	return &Memoized[A, V]{m: m, name: name, ttl: ttl, fn: fn}
}

// Key exposes the derived cache key for arg, for diagnostics and admin
// tooling. Fails with ErrKeySerialization when arg cannot be encoded.
func (z *Memoized[A, V]) Key(arg A) (string, error) {
	return z.m.ComputeKey(z.name, []any{arg}, nil)
}

// Call returns the cached result for arg or executes the wrapped computation
// and caches it. Computation errors propagate unchanged with nothing
// written. A cached payload that no longer decodes into V degrades to
// recomputation and is overwritten.
func (z *Memoized[A, V]) Call(ctx context.Context, arg A) (V, error) {
	var zero V
	key, err := z.Key(arg)
	if err != nil {
		return zero, err
	}
	body, ok, err := z.m.Get(ctx, key)
	if err != nil {
		return zero, err
	}
	if ok {
		var out V
		if err := json.Unmarshal(body, &out); err == nil {
			return out, nil
		}
	}
	value, err := z.fn(ctx, arg)
	if err != nil {
		return zero, err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return zero, fmt.Errorf("%w: encode %q: %v", ErrValueSerialization, key, err)
	}
	if err := z.m.Set(ctx, key, encoded, z.ttl); err != nil {
		return zero, err
	}
	return value, nil
}

// Invalidate drops the cached result for one argument value.
func (z *Memoized[A, V]) Invalidate(ctx context.Context, arg A) error {
	key, err := z.Key(arg)
	if err != nil {
		return err
	}
	return z.m.Invalidate(ctx, key)
}

// InvalidateAll drops the cached results for every argument value.
func (z *Memoized[A, V]) InvalidateAll(ctx context.Context) error {
	return z.m.InvalidatePattern(ctx, z.m.KeyScope(z.name))
}
