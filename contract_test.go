package dashcache_test

import (
	"context"
	"testing"
	"time"

	"github.com/estruturaiagen/dashcache"
	"github.com/estruturaiagen/dashcache/cachetest"
)

func TestLRUStoreContract(t *testing.T) {
	store := dashcache.NewLRUStore(context.Background())
	cachetest.RunStoreContract(t, store, cachetest.Options{})
}

func TestMemoryStoreContract(t *testing.T) {
	store := dashcache.NewMemoryStore(context.Background())
	t.Cleanup(func() {
		if closer, ok := store.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	})
	cachetest.RunStoreContract(t, store, cachetest.Options{})
}

func TestNullStoreContract(t *testing.T) {
	store := dashcache.NewNullStore(context.Background())
	cachetest.RunStoreContract(t, store, cachetest.Options{NullSemantics: true})
}

func TestTieredStoreContract(t *testing.T) {
	ctx := context.Background()
	store := dashcache.NewTieredStore(ctx,
		dashcache.NewLRUStore(ctx),
		dashcache.NewMemoryStore(ctx),
		dashcache.WithBackfillTTL(time.Second),
	)
	t.Cleanup(func() {
		if closer, ok := store.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	})
	cachetest.RunStoreContract(t, store, cachetest.Options{})
}

func TestShapedStoreContract(t *testing.T) {
	store := dashcache.NewLRUStore(context.Background(),
		dashcache.WithCompression(dashcache.CompressionGzip),
		dashcache.WithMaxValueBytes(1<<20),
	)
	cachetest.RunStoreContract(t, store, cachetest.Options{})
}

func TestSQLStoreContract(t *testing.T) {
	store := dashcache.NewSQLStore(context.Background(), "sqlite",
		"file:dashcache_contract?mode=memory&cache=shared")
	t.Cleanup(func() {
		if closer, ok := store.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	})
	cachetest.RunStoreContract(t, store, cachetest.Options{})
}
