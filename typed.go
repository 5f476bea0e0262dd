package dashcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrValueSerialization reports a value that cannot be encoded for caching
// or a cached payload that cannot be decoded into the requested type.
var ErrValueSerialization = errors.New("dashcache: value not serializable")

// GetJSON decodes a JSON value into T when key exists.
// @group Typed
func GetJSON[T any](ctx context.Context, m *Manager, key string) (T, bool, error) {
	var zero T
	body, ok, err := m.Get(ctx, key)
	if err != nil || !ok {
		return zero, ok, err
	}
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return zero, false, fmt.Errorf("%w: decode %q: %v", ErrValueSerialization, key, err)
	}
	return out, true, nil
}

// SetJSON encodes value as JSON and writes it to key.
// @group Typed
func SetJSON[T any](ctx context.Context, m *Manager, key string, value T, ttl time.Duration) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: encode %q: %v", ErrValueSerialization, key, err)
	}
	return m.Set(ctx, key, body, ttl)
}

// GetOrComputeJSON returns the typed cached value for key, or invokes
// producer, caches its JSON encoding under ttl and returns it. A cached
// payload that no longer decodes into T degrades to recomputation and is
// overwritten, never returned corrupt.
// @group Typed
//
// Example: typed read-through
//
//	type Summary struct{ Total int `json:"total"` }
//	m := dashcache.NewManager(dashcache.NewLRUStore(context.Background()))
//	s, err := dashcache.GetOrComputeJSON(ctx, m, "summary:7d", time.Minute, func(ctx context.Context) (Summary, error) {
//		return Summary{Total: 128}, nil
//	})
//	fmt.Println(err == nil, s.Total) // true 128
func GetOrComputeJSON[T any](ctx context.Context, m *Manager, key string, ttl time.Duration, producer func(context.Context) (T, error)) (T, error) {
	var zero T
	body, ok, err := m.Get(ctx, key)
	if err != nil {
		return zero, err
	}
	if ok {
		var out T
		if err := json.Unmarshal(body, &out); err == nil {
			return out, nil
		}
		// Stale encoding; recompute below and overwrite.
	}
	if producer == nil {
		return zero, errors.New("dashcache: get or compute requires a producer")
	}
	value, err := producer(ctx)
	if err != nil {
		return zero, err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return zero, fmt.Errorf("%w: encode %q: %v", ErrValueSerialization, key, err)
	}
	if err := m.Set(ctx, key, encoded, ttl); err != nil {
		return zero, err
	}
	return value, nil
}
