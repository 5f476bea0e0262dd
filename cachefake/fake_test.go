package cachefake

import (
	"context"
	"testing"
	"time"

	"github.com/estruturaiagen/dashcache"
)

func TestFakeCountsOperations(t *testing.T) {
	f := New()
	m := f.Manager()
	ctx := context.Background()

	if err := m.Set(ctx, "user:1", []byte("ada"), dashcache.DefaultTTL); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if _, _, err := m.Get(ctx, "user:1"); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if _, _, err := m.Get(ctx, "user:1"); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if err := m.Invalidate(ctx, "user:1"); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}

	f.AssertCalled(t, OpSet, "user:1", 1)
	f.AssertCalled(t, OpGet, "user:1", 2)
	f.AssertCalled(t, OpDelete, "user:1", 1)
	f.AssertNotCalled(t, OpGet, "user:2")
	f.AssertTotal(t, OpGet, 2)
}

func TestFakeGetOrComputeVisibility(t *testing.T) {
	f := New()
	m := f.Manager()
	ctx := context.Background()

	producer := func(context.Context) ([]byte, error) { return []byte("v"), nil }
	if _, err := m.GetOrCompute(ctx, "report", time.Minute, producer); err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if _, err := m.GetOrCompute(ctx, "report", time.Minute, producer); err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	// First call misses then writes, second call hits.
	f.AssertCalled(t, OpGet, "report", 2)
	f.AssertCalled(t, OpSet, "report", 1)
}

func TestFakeDeleteManyCountsPerKey(t *testing.T) {
	f := New()
	m := f.Manager()
	ctx := context.Background()

	if err := m.InvalidateMany(ctx, "a", "b", "c"); err != nil {
		t.Fatalf("invalidate many failed: %v", err)
	}
	f.AssertCalled(t, OpDeleteMany, "a", 1)
	f.AssertCalled(t, OpDeleteMany, "b", 1)
	f.AssertTotal(t, OpDeleteMany, 3)
}

func TestFakeReset(t *testing.T) {
	f := New()
	ctx := context.Background()

	if _, _, err := f.Manager().Get(ctx, "k"); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	f.Reset()
	f.AssertNotCalled(t, OpGet, "k")
	f.AssertTotal(t, OpGet, 0)
}

func TestFakeBehavesLikeACache(t *testing.T) {
	f := New()
	m := f.Manager()
	ctx := context.Background()

	if err := m.Set(ctx, "k", []byte("v"), dashcache.DefaultTTL); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	body, ok, err := m.Get(ctx, "k")
	if err != nil || !ok || string(body) != "v" {
		t.Fatalf("unexpected get: ok=%v body=%q err=%v", ok, body, err)
	}
	if err := m.Clear(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatalf("expected empty after clear")
	}
	f.AssertTotal(t, OpFlush, 1)
}
