// Package ratelimiter provides multi-strategy token bucket rate limiting for
// HTTP endpoints.
//
// A Catalog maps request paths to named strategies (AUTH, RESUME, WAITLIST and
// the BUSINESS fallback). A MemoryStore keeps one bucket per identifier and
// strategy. An Engine ties the two together and reports denials to a Notifier.
//
// # Algorithm
//
// Buckets refill continuously: a strategy with Capacity 10 and Window 1m gains
// one token every 6 seconds and never holds more than 10. A new identifier
// starts with a full bucket, so bursts up to Capacity are admitted immediately.
// Each request takes exactly one token.
//
// # Usage
//
//	catalog, err := ratelimiter.NewCatalog(ratelimiter.DefaultStrategies()...)
//	if err != nil {
//		return err
//	}
//
//	store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(time.Minute))
//	g.Go(store.Run(ctx))
//
//	engine := ratelimiter.NewEngine(store, catalog,
//		ratelimiter.WithNotifier(ratelimiter.LogNotifier(log)),
//	)
//
//	s, ok := catalog.Resolve(r.URL.Path)
//	if ok && s.Enabled {
//		d, err := engine.ConsumeToken(ctx, ratelimiter.IPIdentifier(ip), r.URL.Path, s)
//		if err == nil && !d.Allowed() {
//			// respond 429 with d.RetryAfterSeconds()
//		}
//	}
//
// # Configuration
//
// Config is loaded from the environment (RATE_LIMIT_AUTH_CAPACITY,
// RATE_LIMIT_AUTH_WINDOW, RATE_LIMIT_AUTH_PREFIXES, RATE_LIMIT_AUTH_ENABLED and
// the same for the other strategies). Unset values fall back to
// DefaultStrategies. Config implements Source and feeds CatalogFromSource.
//
// # Concurrency
//
// Buckets are spread over lock shards selected by hashing the key. Requests for
// the same identifier and strategy are serialized on the bucket mutex; requests
// for different keys only share a brief shard lookup. The background sweep
// removes buckets idle for IdleFactor windows.
//
// State lives in process memory only. Restarting the process resets every
// budget.
package ratelimiter
