package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrymomot/gatekeeper/core/handler"
	"github.com/dmitrymomot/gatekeeper/core/logger"
	"github.com/dmitrymomot/gatekeeper/core/response"
	"github.com/dmitrymomot/gatekeeper/pkg/clientip"
	"github.com/dmitrymomot/gatekeeper/pkg/ratelimiter"
)

// Rate limit response headers.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

// rateLimitEvaluatedKey marks a request that already went through the rate limiter.
type rateLimitEvaluatedKey struct{}

// RateLimitConfig configures the rate limiting middleware.
type RateLimitConfig struct {
	// Skip defines a function to skip middleware execution for specific requests
	Skip func(ctx handler.Context) bool
	// Catalog resolves the strategy for a request path (required)
	Catalog *ratelimiter.Catalog
	// Engine consumes tokens (required)
	Engine ratelimiter.Consumer
	// KeyExtractor derives the caller identifier (default: IPKeyExtractor)
	KeyExtractor func(ctx handler.Context) ratelimiter.Identifier
	// FallbackToDefault applies the BUSINESS strategy to paths no strategy matches
	FallbackToDefault bool
	// ErrorHandler renders denied requests (default: 429 with JSON body)
	ErrorHandler func(ctx handler.Context, d ratelimiter.Decision, message string) handler.Response
	// Logger receives fail-open diagnostics (default: discard)
	Logger *slog.Logger
	// Now is used for the denial timestamp (default: time.Now)
	Now func() time.Time
}

// RateLimitError is the body of a 429 response.
type RateLimitError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Timestamp  string `json:"timestamp"`
	RetryAfter int    `json:"retryAfter"`
	Path       string `json:"path"`
}

// RateLimit creates the rate limiting middleware.
// Panics if Catalog or Engine is nil.
//
// For each request the strategy is resolved from the path. Requests with no
// matching strategy, requests already evaluated earlier in the chain, and
// requests under a disabled strategy pass through untouched. Otherwise one
// token is consumed for the caller identifier:
//
//   - allowed: X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset
//     are added to the response
//   - denied: the chain is short-circuited with 429, Retry-After,
//     X-RateLimit-Limit and a RATE_LIMIT_EXCEEDED JSON error
//
// Any failure inside the limiter itself lets the request through.
//
// Usage:
//
//	catalog, _ := ratelimiter.NewCatalog(ratelimiter.DefaultStrategies()...)
//	engine := ratelimiter.NewEngine(store, catalog)
//
//	r.Use(middleware.RateLimit[*router.Context](middleware.RateLimitConfig{
//		Catalog: catalog,
//		Engine:  engine,
//	}))
func RateLimit[C handler.Context](cfg RateLimitConfig) handler.Middleware[C] {
	if cfg.Catalog == nil {
		panic("ratelimit middleware: catalog is required")
	}
	if cfg.Engine == nil {
		panic("ratelimit middleware: engine is required")
	}

	if cfg.KeyExtractor == nil {
		cfg.KeyExtractor = IPKeyExtractor
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = rateLimitExceeded(cfg.Now)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	return func(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
		return func(ctx C) handler.Response {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return next(ctx)
			}

			d, limited := evaluateRateLimit(ctx, cfg)
			if !limited {
				return next(ctx)
			}

			if !d.Allowed() {
				return cfg.ErrorHandler(ctx, d, cfg.Catalog.Message(d.Strategy))
			}

			resp := next(ctx)
			if resp == nil {
				return nil
			}
			return func(w http.ResponseWriter, r *http.Request) error {
				h := w.Header()
				h.Set(HeaderRateLimitLimit, strconv.FormatUint(uint64(d.Limit), 10))
				h.Set(HeaderRateLimitRemaining, strconv.FormatUint(uint64(d.Remaining), 10))
				h.Set(HeaderRateLimitReset, strconv.FormatInt(d.ResetAt.Unix(), 10))
				return resp(w, r)
			}
		}
	}
}

// IsRateLimitEvaluated reports whether the request was already handled by
// the rate limit middleware.
func IsRateLimitEvaluated(ctx handler.Context) bool {
	v, _ := ctx.Value(rateLimitEvaluatedKey{}).(bool)
	return v
}

// MarkRateLimitEvaluated flags the request so that rate limit middlewares
// further down the chain let it through. Use it when a request is dispatched
// internally after it has already been counted.
func MarkRateLimitEvaluated(ctx handler.Context) {
	ctx.SetValue(rateLimitEvaluatedKey{}, true)
}

// IPKeyExtractor identifies callers by client address. It prefers the value
// stored by the ClientIP middleware and falls back to parsing the request.
func IPKeyExtractor(ctx handler.Context) ratelimiter.Identifier {
	ip, ok := GetClientIP(ctx)
	if !ok || ip == "" {
		ip = clientip.GetIP(ctx.Request())
	}
	if ip == "" {
		ip = "unknown"
	}
	return ratelimiter.IPIdentifier(ip)
}

// APIKeyExtractor identifies callers by the API key found in header. An
// "Bearer " scheme prefix is stripped. Requests without a key are identified
// by client address.
func APIKeyExtractor(header string) func(ctx handler.Context) ratelimiter.Identifier {
	return func(ctx handler.Context) ratelimiter.Identifier {
		key := strings.TrimSpace(ctx.Request().Header.Get(header))
		if after, ok := strings.CutPrefix(key, "Bearer "); ok {
			key = strings.TrimSpace(after)
		}
		if key == "" {
			return IPKeyExtractor(ctx)
		}
		return ratelimiter.APIKeyIdentifier(key)
	}
}

// evaluateRateLimit consumes a token for the request. limited is false when
// the request must pass through without rate limit headers.
func evaluateRateLimit(ctx handler.Context, cfg RateLimitConfig) (d ratelimiter.Decision, limited bool) {
	r := ctx.Request()
	path := r.URL.Path

	defer func() {
		if rec := recover(); rec != nil {
			cfg.Logger.ErrorContext(ctx, "rate limiter panicked, request not limited",
				logger.Path(path),
				logger.Error(fmt.Errorf("panic: %v", rec)))
			d, limited = ratelimiter.Decision{}, false
		}
	}()

	var (
		s  ratelimiter.Strategy
		ok bool
	)
	if cfg.FallbackToDefault {
		s, ok = cfg.Catalog.ResolveOrDefault(path)
	} else {
		s, ok = cfg.Catalog.Resolve(path)
	}
	if !ok {
		return ratelimiter.Decision{}, false
	}

	if IsRateLimitEvaluated(ctx) {
		return ratelimiter.Decision{}, false
	}
	MarkRateLimitEvaluated(ctx)

	if !s.Enabled {
		return ratelimiter.Decision{}, false
	}

	id := cfg.KeyExtractor(ctx)
	if id == "" {
		id = IPKeyExtractor(ctx)
	}

	d, err := cfg.Engine.ConsumeToken(ctx, id, path, s)
	if err != nil {
		cfg.Logger.WarnContext(ctx, "rate limit check failed, request not limited",
			logger.Path(path),
			logger.Identifier(id.String()),
			logger.Strategy(s.Name),
			logger.Error(err))
		return ratelimiter.Decision{}, false
	}

	return d, true
}

// rateLimitExceeded renders the default 429 response.
func rateLimitExceeded(now func() time.Time) func(ctx handler.Context, d ratelimiter.Decision, message string) handler.Response {
	if now == nil {
		now = time.Now
	}
	return func(ctx handler.Context, d ratelimiter.Decision, message string) handler.Response {
		retryAfter := d.RetryAfterSeconds()
		body := map[string]RateLimitError{
			"error": {
				Code:       response.ErrTooManyRequests.Code,
				Message:    message,
				Timestamp:  now().UTC().Format(time.RFC3339),
				RetryAfter: retryAfter,
				Path:       ctx.Request().URL.Path,
			},
		}
		return response.WithHeaders(
			response.JSONWithStatus(body, http.StatusTooManyRequests),
			map[string]string{
				HeaderRetryAfter:     strconv.Itoa(retryAfter),
				HeaderRateLimitLimit: strconv.FormatUint(uint64(d.Limit), 10),
			},
		)
	}
}
