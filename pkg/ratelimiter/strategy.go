package ratelimiter

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Built-in strategy names, listed in resolution priority order.
const (
	Auth     = "AUTH"
	Resume   = "RESUME"
	Waitlist = "WAITLIST"
	Business = "BUSINESS"
)

// Strategy is an immutable, named rate limit policy.
//
// Capacity tokens refill continuously over Window, so a full bucket admits a
// burst of Capacity requests and then one request every Window/Capacity.
type Strategy struct {
	Name     string
	Capacity uint
	Window   time.Duration
	Prefixes []string
	Enabled  bool
}

// IsZero reports whether s is the zero Strategy.
func (s Strategy) IsZero() bool {
	return s.Name == ""
}

// Validate checks that the strategy can drive a token bucket.
func (s Strategy) Validate() error {
	switch {
	case s.Name == "":
		return fmt.Errorf("%w: strategy name is empty", ErrInvalidConfig)
	case s.Capacity == 0:
		return fmt.Errorf("%w: strategy %s: capacity must be positive", ErrInvalidConfig, s.Name)
	case s.Window <= 0:
		return fmt.Errorf("%w: strategy %s: window must be positive", ErrInvalidConfig, s.Name)
	}
	for _, p := range s.Prefixes {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%w: strategy %s: prefix %q must start with /", ErrInvalidConfig, s.Name, p)
		}
	}
	return nil
}

// Matches reports whether path falls under one of the strategy prefixes.
// Matching respects path segments: "/api/auth" matches "/api/auth" and
// "/api/auth/login" but not "/api/authors".
func (s Strategy) Matches(path string) bool {
	for _, prefix := range s.Prefixes {
		if matchPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// RefillInterval is the time it takes to regain a single token.
func (s Strategy) RefillInterval() time.Duration {
	if s.Capacity == 0 {
		return 0
	}
	return s.Window / time.Duration(s.Capacity)
}

func (s Strategy) clone() Strategy {
	s.Prefixes = slices.Clone(s.Prefixes)
	return s
}

func matchPrefix(path, prefix string) bool {
	if prefix == "/" {
		return strings.HasPrefix(path, "/")
	}
	prefix = strings.TrimSuffix(prefix, "/")
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

// DefaultStrategies returns the built-in policy table.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: Auth, Capacity: 10, Window: time.Minute, Prefixes: []string{"/api/auth"}, Enabled: true},
		{Name: Resume, Capacity: 30, Window: time.Minute, Prefixes: []string{"/api/resume"}, Enabled: true},
		{Name: Waitlist, Capacity: 5, Window: time.Hour, Prefixes: []string{"/api/waitlist"}, Enabled: true},
		{Name: Business, Capacity: 100, Window: time.Minute, Prefixes: []string{"/api"}, Enabled: true},
	}
}

var denialMessages = map[string]string{
	Auth:     "Too many authentication attempts. Please try again later.",
	Resume:   "Too many resume generation requests. Please slow down and try again later.",
	Waitlist: "Too many waitlist submissions. Please try again later.",
	Business: "Rate limit exceeded. Please try again later.",
}

const defaultDenialMessage = "Rate limit exceeded. Please try again later."

// DenialMessage returns the user-facing text for a denied request under the
// named strategy.
func DenialMessage(name string) string {
	if msg, ok := denialMessages[name]; ok {
		return msg
	}
	return defaultDenialMessage
}

// priority orders built-in strategies; unknown strategies resolve after
// WAITLIST and before the BUSINESS fallback.
func priority(name string) int {
	switch name {
	case Auth:
		return 0
	case Resume:
		return 1
	case Waitlist:
		return 2
	case Business:
		return 4
	default:
		return 3
	}
}
