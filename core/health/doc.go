// Package health provides HTTP handlers for service health probes.
//
// Handlers:
//   - Liveness: the process is running, no dependency checks
//   - Readiness: every registered Check passes
//
// Usage:
//
//	r.Get("/health/live", health.Liveness[*router.Context])
//	r.Get("/health/ready", health.Readiness[*router.Context](log,
//		health.Check{Name: "ratelimiter", Fn: store.Healthcheck},
//		health.Check{Name: "redis", Fn: redis.Healthcheck(client)},
//	))
package health
