// Package cachetest provides reusable store contract tests for dashcache.Store implementations.
//
// Backend tests can run the shared suite instead of re-asserting the same
// semantics per driver.
//
// Example pattern (driver test):
//
//	func TestRedisStoreContract(t *testing.T) {
//		client := newTestRedisClient(t)
//		store := dashcache.NewRedisStore(context.Background(), client, dashcache.WithPrefix("test"))
//
//		// Namespace keys per test and tune TTL waits for backend semantics as needed.
//		cachetest.RunStoreContract(t, store, cachetest.Options{
//			CaseName: t.Name(),
//			TTL:      time.Second,
//			TTLWait:  1500 * time.Millisecond,
//		})
//	}
package cachetest
