package dashcache

import (
	"context"
	"log/slog"
	"time"
)

// Observer receives events for cache operations.
// It is called from Manager helpers after each operation completes.
type Observer interface {
	OnCacheOp(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration, driver Driver)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration, driver Driver)

// OnCacheOp implements Observer.
func (f ObserverFunc) OnCacheOp(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration, driver Driver) {
	if f == nil {
		return
	}
	f(ctx, op, key, hit, err, dur, driver)
}

// NewLogObserver returns an observer that logs every cache event: hits and
// misses at DEBUG, failed operations at WARN.
func NewLogObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return ObserverFunc(func(ctx context.Context, op, key string, hit bool, err error, dur time.Duration, driver Driver) {
		if err != nil {
			logger.WarnContext(ctx, "cache operation failed",
				"op", op, "key", key, "driver", driver, "duration", dur, "error", err)
			return
		}
		logger.DebugContext(ctx, "cache operation",
			"op", op, "key", key, "hit", hit, "driver", driver, "duration", dur)
	})
}
