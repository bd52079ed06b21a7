package ratelimiter

import "errors"

// Package-level error definitions for rate limiter operations.
var (
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrDuplicateStrategy = errors.New("duplicate rate limit strategy")
	ErrUnknownStrategy   = errors.New("unknown rate limit strategy")
	ErrEmptyIdentifier   = errors.New("empty rate limit identifier")
	ErrStoreNotStarted   = errors.New("memory store not started")
	ErrStoreStarted      = errors.New("memory store already started")
	ErrCleanupDisabled   = errors.New("cleanup interval must be positive")
	ErrCleanupNotRunning = errors.New("cleanup is configured but not running")
	ErrShutdownTimeout   = errors.New("shutdown timeout exceeded")
	ErrNotifierPanicked  = errors.New("notifier panicked")
)
