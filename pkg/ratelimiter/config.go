package ratelimiter

import "time"

// PolicyConfig holds the environment settings of a single strategy.
// Zero values fall back to DefaultStrategies.
type PolicyConfig struct {
	Enabled  bool          `env:"ENABLED" envDefault:"true"`
	Capacity uint          `env:"CAPACITY"`
	Window   time.Duration `env:"WINDOW"`
	Prefixes []string      `env:"PREFIXES" envSeparator:","`
}

// Config is the environment-driven configuration of the rate limiter.
// It implements Source.
type Config struct {
	Auth     PolicyConfig `envPrefix:"RATE_LIMIT_AUTH_"`
	Resume   PolicyConfig `envPrefix:"RATE_LIMIT_RESUME_"`
	Waitlist PolicyConfig `envPrefix:"RATE_LIMIT_WAITLIST_"`
	Business PolicyConfig `envPrefix:"RATE_LIMIT_BUSINESS_"`

	CleanupInterval time.Duration `env:"RATE_LIMIT_CLEANUP_INTERVAL" envDefault:"1m"`
	IdleFactor      int           `env:"RATE_LIMIT_IDLE_FACTOR" envDefault:"3"`
	Shards          int           `env:"RATE_LIMIT_SHARDS" envDefault:"64"`
	NotifyTimeout   time.Duration `env:"RATE_LIMIT_NOTIFY_TIMEOUT" envDefault:"250ms"`
}

// DefaultConfig returns a Config with every built-in strategy enabled and
// the default limits.
func DefaultConfig() Config {
	return Config{
		Auth:            PolicyConfig{Enabled: true},
		Resume:          PolicyConfig{Enabled: true},
		Waitlist:        PolicyConfig{Enabled: true},
		Business:        PolicyConfig{Enabled: true},
		CleanupInterval: time.Minute,
		IdleFactor:      3,
		Shards:          defaultShards,
		NotifyTimeout:   250 * time.Millisecond,
	}
}

// Endpoints implements Source.
func (c Config) Endpoints(name string) []string {
	if p, ok := c.policy(name); ok && len(p.Prefixes) > 0 {
		return p.Prefixes
	}
	return defaultStrategy(name).Prefixes
}

// IsEnabled implements Source.
func (c Config) IsEnabled(name string) bool {
	p, ok := c.policy(name)
	return ok && p.Enabled
}

// Limit implements Source.
func (c Config) Limit(name string) (uint, time.Duration) {
	def := defaultStrategy(name)
	capacity, window := def.Capacity, def.Window
	if p, ok := c.policy(name); ok {
		if p.Capacity > 0 {
			capacity = p.Capacity
		}
		if p.Window > 0 {
			window = p.Window
		}
	}
	return capacity, window
}

// StoreOptions translates the sweep settings into MemoryStore options.
func (c Config) StoreOptions() []MemoryStoreOption {
	return []MemoryStoreOption{
		WithCleanupInterval(c.CleanupInterval),
		WithIdleFactor(c.IdleFactor),
		WithShards(c.Shards),
	}
}

func (c Config) policy(name string) (PolicyConfig, bool) {
	switch name {
	case Auth:
		return c.Auth, true
	case Resume:
		return c.Resume, true
	case Waitlist:
		return c.Waitlist, true
	case Business:
		return c.Business, true
	}
	return PolicyConfig{}, false
}

func defaultStrategy(name string) Strategy {
	for _, s := range DefaultStrategies() {
		if s.Name == name {
			return s
		}
	}
	return Strategy{Name: name}
}
