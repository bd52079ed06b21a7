package ratelimiter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// LimitExceeded is emitted whenever a request is denied.
type LimitExceeded struct {
	ID         string        `json:"id"`
	Identifier string        `json:"identifier"`
	Endpoint   string        `json:"endpoint"`
	Strategy   string        `json:"strategy"`
	RetryAfter time.Duration `json:"retry_after"`
	ResetAt    time.Time     `json:"reset_at"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// Consumer takes admission decisions. Engine is the standard implementation.
type Consumer interface {
	ConsumeToken(ctx context.Context, id Identifier, endpoint string, s Strategy) (Decision, error)
}

// Engine is the entry point for admission decisions. It consumes tokens from
// the store and reports denials to the notifier. It holds no per-caller state
// and is safe to share.
type Engine struct {
	store         Store
	catalog       *Catalog
	notifier      Notifier
	notifyTimeout time.Duration
	logger        *slog.Logger
	failureLog    *rate.Sometimes

	allowed        atomic.Int64
	denied         atomic.Int64
	notifyFailures atomic.Int64
}

// EngineStats counts decisions taken by an Engine.
type EngineStats struct {
	Allowed        int64 `json:"allowed"`
	Denied         int64 `json:"denied"`
	NotifyFailures int64 `json:"notify_failures"`
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithNotifier sets the sink receiving LimitExceeded events.
func WithNotifier(n Notifier) EngineOption {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithNotifyTimeout bounds how long a denied request waits for the notifier.
// Zero means the request context alone bounds the call.
func WithNotifyTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d >= 0 {
			e.notifyTimeout = d
		}
	}
}

// WithEngineLogger sets the logger for notifier failures.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an engine over store. The catalog supplies the default
// strategy used when ConsumeToken receives a zero Strategy; it may be nil if
// callers always pass one.
func NewEngine(store Store, catalog *Catalog, opts ...EngineOption) *Engine {
	e := &Engine{
		store:         store,
		catalog:       catalog,
		notifyTimeout: 250 * time.Millisecond,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		failureLog:    &rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// ConsumeToken takes one token for identifier under strategy. A zero strategy
// means BUSINESS. On denial a LimitExceeded event is delivered to the
// notifier before returning; notifier failures are logged and never returned.
//
// An error is returned only when the decision could not be taken at all
// (cancelled context, empty identifier, unknown or invalid strategy).
func (e *Engine) ConsumeToken(ctx context.Context, id Identifier, endpoint string, s Strategy) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	if id == "" {
		return Decision{}, ErrEmptyIdentifier
	}

	if s.IsZero() {
		var ok bool
		if e.catalog != nil {
			s, ok = e.catalog.Default()
		}
		if !ok {
			return Decision{}, fmt.Errorf("%w: %s", ErrUnknownStrategy, Business)
		}
	}
	if err := s.Validate(); err != nil {
		return Decision{}, err
	}

	d := e.store.TryConsume(id, s)
	if d.Allowed() {
		e.allowed.Add(1)
		return d, nil
	}

	e.denied.Add(1)
	e.notify(ctx, LimitExceeded{
		ID:         uuid.New().String(),
		Identifier: id.String(),
		Endpoint:   endpoint,
		Strategy:   s.Name,
		RetryAfter: d.RetryAfter,
		ResetAt:    d.ResetAt,
		OccurredAt: time.Now(),
	})

	return d, nil
}

// Stats returns decision counters.
func (e *Engine) Stats() EngineStats {
	return EngineStats{
		Allowed:        e.allowed.Load(),
		Denied:         e.denied.Load(),
		NotifyFailures: e.notifyFailures.Load(),
	}
}

func (e *Engine) notify(ctx context.Context, evt LimitExceeded) {
	if e.notifier == nil {
		return
	}

	if e.notifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.notifyTimeout)
		defer cancel()
	}

	if err := safeNotify(ctx, e.notifier, evt); err != nil {
		e.notifyFailures.Add(1)
		e.failureLog.Do(func() {
			e.logger.ErrorContext(ctx, "limit exceeded notification failed",
				slog.String("identifier", evt.Identifier),
				slog.String("strategy", evt.Strategy),
				slog.String("endpoint", evt.Endpoint),
				slog.Any("error", err))
		})
	}
}

func safeNotify(ctx context.Context, n Notifier, evt LimitExceeded) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrNotifierPanicked, r, debug.Stack())
		}
	}()
	return n.Notify(ctx, evt)
}
