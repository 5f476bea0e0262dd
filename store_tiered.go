package dashcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// ErrRemoteUnavailable wraps remote-tier probe failures. Data-path operations
// never return it; remote faults there degrade to local-only operation.
var ErrRemoteUnavailable = errors.New("dashcache: remote cache unavailable")

// tieredStore composes a local tier with a best-effort remote mirror. Reads
// check local first and fall through to the remote under a bounded timeout,
// backfilling local on a remote hit. Writes and invalidations apply locally
// and are mirrored to the remote; remote failures are logged at WARN and
// swallowed, so an unreachable remote never breaks the cache.
type tieredStore struct {
	local         Store
	remote        Store
	remoteTimeout time.Duration
	backfillTTL   time.Duration
	logger        *slog.Logger
}

func newTieredStore(local, remote Store, remoteTimeout, backfillTTL time.Duration, logger *slog.Logger) Store {
	if remoteTimeout <= 0 {
		remoteTimeout = defaultRemoteTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &tieredStore{
		local:         local,
		remote:        remote,
		remoteTimeout: remoteTimeout,
		backfillTTL:   backfillTTL,
		logger:        logger,
	}
}

func (s *tieredStore) Driver() Driver { return DriverTiered }

// Ready requires the local tier; a failing remote is reported wrapped in
// ErrRemoteUnavailable so wiring code can detach it and continue local-only.
func (s *tieredStore) Ready(ctx context.Context) error {
	if err := s.local.Ready(ctx); err != nil {
		return err
	}
	rctx, cancel := s.remoteCtx(ctx)
	defer cancel()
	if err := s.remote.Ready(rctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	return nil
}

func (s *tieredStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	body, ok, err := s.local.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if ok {
		return body, true, nil
	}
	rctx, cancel := s.remoteCtx(ctx)
	defer cancel()
	body, ok, err = s.remote.Get(rctx, key)
	if err != nil {
		s.warn("get", key, err)
		return nil, false, nil
	}
	if !ok {
		return nil, false, nil
	}
	if err := s.local.Set(ctx, key, body, s.backfillTTL); err != nil {
		s.warn("backfill", key, err)
	}
	return body, true, nil
}

func (s *tieredStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.local.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	rctx, cancel := s.remoteCtx(ctx)
	defer cancel()
	if err := s.remote.Set(rctx, key, value, ttl); err != nil {
		s.warn("set", key, err)
	}
	return nil
}

// Add is decided by the local tier; the winner is mirrored remotely so other
// processes observe it. Cross-process exclusivity requires a remote-only
// store, not the tiered composite.
func (s *tieredStore) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	created, err := s.local.Add(ctx, key, value, ttl)
	if err != nil || !created {
		return created, err
	}
	rctx, cancel := s.remoteCtx(ctx)
	defer cancel()
	if err := s.remote.Set(rctx, key, value, ttl); err != nil {
		s.warn("add", key, err)
	}
	return true, nil
}

func (s *tieredStore) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	next, err := s.local.Increment(ctx, key, delta, ttl)
	if err != nil {
		return 0, err
	}
	rctx, cancel := s.remoteCtx(ctx)
	defer cancel()
	if _, rerr := s.remote.Increment(rctx, key, delta, ttl); rerr != nil {
		s.warn("increment", key, rerr)
	}
	return next, nil
}

func (s *tieredStore) Decrement(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	return s.Increment(ctx, key, -delta, ttl)
}

func (s *tieredStore) Delete(ctx context.Context, key string) error {
	if err := s.local.Delete(ctx, key); err != nil {
		return err
	}
	rctx, cancel := s.remoteCtx(ctx)
	defer cancel()
	if err := s.remote.Delete(rctx, key); err != nil {
		s.warn("delete", key, err)
	}
	return nil
}

func (s *tieredStore) DeleteMany(ctx context.Context, keys ...string) error {
	if err := s.local.DeleteMany(ctx, keys...); err != nil {
		return err
	}
	rctx, cancel := s.remoteCtx(ctx)
	defer cancel()
	if err := s.remote.DeleteMany(rctx, keys...); err != nil {
		s.warn("delete_many", "", err)
	}
	return nil
}

func (s *tieredStore) DeletePrefix(ctx context.Context, prefix string) error {
	if err := s.local.DeletePrefix(ctx, prefix); err != nil {
		return err
	}
	rctx, cancel := s.remoteCtx(ctx)
	defer cancel()
	if err := s.remote.DeletePrefix(rctx, prefix); err != nil {
		s.warn("delete_prefix", prefix, err)
	}
	return nil
}

func (s *tieredStore) Flush(ctx context.Context) error {
	if err := s.local.Flush(ctx); err != nil {
		return err
	}
	rctx, cancel := s.remoteCtx(ctx)
	defer cancel()
	if err := s.remote.Flush(rctx); err != nil {
		s.warn("flush", "", err)
	}
	return nil
}

// Cleanup sweeps the local tier; remote backends expire entries themselves.
func (s *tieredStore) Cleanup(ctx context.Context) (int, error) {
	if c, ok := s.local.(Cleaner); ok {
		return c.Cleanup(ctx)
	}
	return 0, nil
}

func (s *tieredStore) Len() int {
	if z, ok := s.local.(Sizer); ok {
		return z.Len()
	}
	return 0
}

func (s *tieredStore) attachStats(stats *Stats) {
	attachStoreStats(s.local, stats)
}

func (s *tieredStore) remoteAttached() bool { return true }

func (s *tieredStore) Close() error {
	var first error
	for _, tier := range []Store{s.local, s.remote} {
		if closer, ok := tier.(io.Closer); ok {
			if err := closer.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

func (s *tieredStore) remoteCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.remoteTimeout)
}

func (s *tieredStore) warn(op, key string, err error) {
	s.logger.Warn("remote cache tier failed, continuing local-only",
		"op", op, "key", key, "driver", s.remote.Driver(), "error", err)
}

// remoteReporter lets the manager report whether a remote tier is attached.
type remoteReporter interface {
	remoteAttached() bool
}
