package ratelimiter

import (
	"context"
	"errors"
	"log/slog"
)

// Notifier receives LimitExceeded events. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(ctx context.Context, evt LimitExceeded) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, evt LimitExceeded) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, evt LimitExceeded) error {
	return f(ctx, evt)
}

// MultiNotifier fans an event out to every notifier in order and joins their errors.
func MultiNotifier(notifiers ...Notifier) Notifier {
	return NotifierFunc(func(ctx context.Context, evt LimitExceeded) error {
		var errs []error
		for _, n := range notifiers {
			if n == nil {
				continue
			}
			if err := safeNotify(ctx, n, evt); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// LogNotifier writes every event to log at warn level.
func LogNotifier(log *slog.Logger) Notifier {
	return NotifierFunc(func(ctx context.Context, evt LimitExceeded) error {
		log.WarnContext(ctx, "rate limit exceeded",
			slog.String("event_id", evt.ID),
			slog.String("identifier", evt.Identifier),
			slog.String("strategy", evt.Strategy),
			slog.String("endpoint", evt.Endpoint),
			slog.Duration("retry_after", evt.RetryAfter),
			slog.Time("reset_at", evt.ResetAt))
		return nil
	})
}

// EventPublisher is the subset of event.Publisher used by EventNotifier.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// EventNotifier publishes events through an in-process event publisher.
func EventNotifier(p EventPublisher) Notifier {
	return NotifierFunc(func(ctx context.Context, evt LimitExceeded) error {
		return p.Publish(ctx, evt)
	})
}
