// Package middleware provides the HTTP middlewares of the gatekeeper service:
// rate limiting, client IP extraction, request IDs and access logging.
//
// All middlewares are generic over handler.Context and follow one pattern:
//   - a default constructor (ClientIP, RequestID, Logging)
//   - a WithConfig constructor taking a config struct
//   - a Skip hook in every config
//   - Get* helpers that read stored values back from the context
//
// # Rate Limiting
//
// RateLimit resolves a ratelimiter.Strategy from the request path and
// consumes one token per request:
//
//	r.Use(
//		middleware.ClientIP[*router.Context](),
//		middleware.RateLimit[*router.Context](middleware.RateLimitConfig{
//			Catalog: catalog,
//			Engine:  engine,
//		}),
//	)
//
// Allowed responses carry X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset. Denied requests get 429 with Retry-After and a JSON
// body:
//
//	{"error":{"code":"RATE_LIMIT_EXCEEDED","message":"...","timestamp":"...","retryAfter":6,"path":"/api/auth/login"}}
//
// The middleware fails open: if the limiter itself errors or panics the
// request is served without limiting. A request is only counted once even if
// the middleware is installed twice; MarkRateLimitEvaluated lets internal
// redispatch reuse that guard.
//
// Callers are identified by IPKeyExtractor (client address, tagged "IP:") by
// default. APIKeyExtractor switches to an API key header, tagged "API:".
//
// # Client IP
//
// ClientIP stores the address resolved by clientip.GetIP in the context.
// IPKeyExtractor and the access log read it from there.
//
// # Request ID
//
// RequestID assigns a UUID per request, echoes it in X-Request-ID and makes
// it available to log records through RequestIDExtractor.
//
// # Logging
//
// Logging writes one record per request. Server errors are logged at error
// level, rate limited and slow requests at warning level.
package middleware
