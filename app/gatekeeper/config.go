package gatekeeper

import (
	"github.com/dmitrymomot/gatekeeper/core/server"
	"github.com/dmitrymomot/gatekeeper/integration/database/redis"
	"github.com/dmitrymomot/gatekeeper/integration/notify/redispub"
	"github.com/dmitrymomot/gatekeeper/pkg/ratelimiter"
)

// Config is the complete service configuration, loaded from the environment.
type Config struct {
	Server      server.Config
	RateLimit   ratelimiter.Config
	Redis       redis.Config
	RedisNotify redispub.Config

	AppName  string `env:"APP_NAME" envDefault:"gatekeeper"`
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// UpstreamURL is the service guarded by the limiter. Empty serves a
	// built-in echo handler.
	UpstreamURL string `env:"UPSTREAM_URL"`
	// APIKeyHeader switches caller identification from client IP to an API key header.
	APIKeyHeader string `env:"RATE_LIMIT_API_KEY_HEADER"`
	// DebugRoutes exposes /debug/ratelimit endpoints.
	DebugRoutes bool `env:"DEBUG_ROUTES_ENABLED" envDefault:"false"`
}

// DefaultConfig returns the configuration used when no environment is set.
func DefaultConfig() Config {
	return Config{
		Server:    server.DefaultConfig(),
		RateLimit: ratelimiter.DefaultConfig(),
		AppName:   "gatekeeper",
		Env:       "development",
		LogLevel:  "info",
	}
}

// IsProduction reports whether the service runs in production mode.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}
