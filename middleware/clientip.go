package middleware

import (
	"net/http"

	"github.com/dmitrymomot/gatekeeper/core/handler"
	"github.com/dmitrymomot/gatekeeper/pkg/clientip"
)

// clientIPContextKey is used as a key for storing client IP in request context.
type clientIPContextKey struct{}

// ClientIPConfig configures the client IP extraction middleware.
type ClientIPConfig struct {
	// Skip defines a function to skip middleware execution for specific requests
	Skip func(ctx handler.Context) bool
	// Resolver extracts the address from the request (default: clientip.GetIP)
	Resolver func(r *http.Request) string
	// HeaderName is the response header echoing the address (default: "X-Client-IP")
	HeaderName string
	// StoreInHeader echoes the resolved address back in the response
	StoreInHeader bool
}

// ClientIP creates a client IP middleware that stores the caller address in
// the request context. The rate limiter's IPKeyExtractor reads it from there.
func ClientIP[C handler.Context]() handler.Middleware[C] {
	return ClientIPWithConfig[C](ClientIPConfig{})
}

// ClientIPWithConfig creates a client IP middleware with custom configuration.
func ClientIPWithConfig[C handler.Context](cfg ClientIPConfig) handler.Middleware[C] {
	if cfg.HeaderName == "" {
		cfg.HeaderName = "X-Client-IP"
	}
	if cfg.Resolver == nil {
		cfg.Resolver = clientip.GetIP
	}

	return func(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
		return func(ctx C) handler.Response {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return next(ctx)
			}

			ip := cfg.Resolver(ctx.Request())
			ctx.SetValue(clientIPContextKey{}, ip)

			resp := next(ctx)
			if !cfg.StoreInHeader || resp == nil {
				return resp
			}

			return func(w http.ResponseWriter, r *http.Request) error {
				w.Header().Set(cfg.HeaderName, ip)
				return resp(w, r)
			}
		}
	}
}

// GetClientIP retrieves the client IP address from the request context.
// Returns the IP address and a boolean indicating whether it was found.
func GetClientIP(ctx handler.Context) (string, bool) {
	ip, ok := ctx.Value(clientIPContextKey{}).(string)
	return ip, ok
}
