package dashcache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type observedOp struct {
	op  string
	key string
	hit bool
	err error
}

type recordingObserver struct {
	mu  sync.Mutex
	ops []observedOp
}

func (o *recordingObserver) OnCacheOp(_ context.Context, op, key string, hit bool, err error, _ time.Duration, _ Driver) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ops = append(o.ops, observedOp{op: op, key: key, hit: hit, err: err})
}

func (o *recordingObserver) last() observedOp {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.ops) == 0 {
		return observedOp{}
	}
	return o.ops[len(o.ops)-1]
}

func TestObserverFuncNilIsSafe(t *testing.T) {
	var f ObserverFunc
	f.OnCacheOp(context.Background(), "get", "k", false, nil, 0, DriverLRU)
}

func TestManagerEmitsObserverEvents(t *testing.T) {
	obs := &recordingObserver{}
	m := NewManager(NewLRUStore(context.Background()), WithObserver(obs))
	ctx := context.Background()

	if _, _, err := m.Get(ctx, "absent"); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got := obs.last(); got.op != "get" || got.hit {
		t.Fatalf("expected miss event, got %+v", got)
	}

	if err := m.Set(ctx, "k", []byte("v"), DefaultTTL); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if got := obs.last(); got.op != "set" || got.key != "k" {
		t.Fatalf("expected set event, got %+v", got)
	}

	if _, _, err := m.Get(ctx, "k"); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got := obs.last(); got.op != "get" || !got.hit {
		t.Fatalf("expected hit event, got %+v", got)
	}

	if err := m.Invalidate(ctx, "k"); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if got := obs.last(); got.op != "invalidate" {
		t.Fatalf("expected invalidate event, got %+v", got)
	}
}

func TestManagerObserverSeesErrors(t *testing.T) {
	boom := errors.New("backend down")
	obs := &recordingObserver{}
	m := NewManager(failingRemote(boom), WithObserver(obs))
	ctx := context.Background()

	if _, _, err := m.Get(ctx, "k"); !errors.Is(err, boom) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if got := obs.last(); got.op != "get" || !errors.Is(got.err, boom) {
		t.Fatalf("expected error event, got %+v", got)
	}
}

// logLevelHandler captures all records regardless of level.
type logLevelHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *logLevelHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *logLevelHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *logLevelHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *logLevelHandler) WithGroup(string) slog.Handler      { return h }

func (h *logLevelHandler) levels() []slog.Level {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]slog.Level, len(h.records))
	for i, r := range h.records {
		out[i] = r.Level
	}
	return out
}

func TestLogObserverLevels(t *testing.T) {
	handler := &logLevelHandler{}
	obs := NewLogObserver(slog.New(handler))
	ctx := context.Background()

	obs.OnCacheOp(ctx, "get", "k", true, nil, time.Millisecond, DriverLRU)
	obs.OnCacheOp(ctx, "set", "k", false, errors.New("write failed"), time.Millisecond, DriverLRU)

	levels := handler.levels()
	if len(levels) != 2 || levels[0] != slog.LevelDebug || levels[1] != slog.LevelWarn {
		t.Fatalf("unexpected log levels: %v", levels)
	}
}

func TestLogObserverNilLoggerIsSafe(t *testing.T) {
	obs := NewLogObserver(nil)
	obs.OnCacheOp(context.Background(), "get", "k", false, nil, 0, DriverLRU)
}
