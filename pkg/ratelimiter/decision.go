package ratelimiter

import (
	"math"
	"time"
)

// Decision is the outcome of a single token consumption attempt.
// It is a value: produced fresh per call and never mutated afterwards.
//
// Allowed decisions carry Remaining and ResetAt (when the bucket will be full
// again). Denied decisions carry RetryAfter (when the next token becomes
// available), Window, and ResetAt = decision time + RetryAfter.
type Decision struct {
	Strategy   string
	Limit      uint
	Remaining  uint
	ResetAt    time.Time
	RetryAfter time.Duration
	Window     time.Duration

	allowed bool
}

// Allow builds an allowed decision.
func Allow(strategy string, remaining, limit uint, resetAt time.Time) Decision {
	return Decision{
		Strategy:  strategy,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
		allowed:   true,
	}
}

// Deny builds a denied decision. Negative retry values are clamped to zero.
func Deny(strategy string, retryAfter time.Duration, limit uint, window time.Duration, resetAt time.Time) Decision {
	return Decision{
		Strategy:   strategy,
		Limit:      limit,
		RetryAfter: max(retryAfter, 0),
		Window:     window,
		ResetAt:    resetAt,
	}
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool {
	return d.allowed
}

// RetryAfterSeconds returns RetryAfter rounded up to whole seconds, as used by
// the Retry-After header. Denied decisions always report at least one second.
func (d Decision) RetryAfterSeconds() int {
	if d.allowed {
		return 0
	}
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	return max(secs, 1)
}
