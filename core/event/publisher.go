package event

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Publisher delivers events to the handlers registered for their type. Every
// handler runs synchronously in the caller's goroutine, so Publish returns
// only after all of them finished.
//
//	pub := event.NewPublisher(event.WithHandler(auditHandler))
//	err := pub.Publish(ctx, ratelimiter.LimitExceeded{...})
type Publisher struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	strict   bool
	logger   *slog.Logger
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithHandler registers handlers at construction time.
func WithHandler(handlers ...Handler) PublisherOption {
	return func(p *Publisher) {
		for _, h := range handlers {
			p.register(h)
		}
	}
}

// WithStrictHandlers makes Publish fail with ErrNoHandlers for events nobody handles.
func WithStrictHandlers() PublisherOption {
	return func(p *Publisher) {
		p.strict = true
	}
}

// WithPublisherLogger sets the logger for the publisher.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPublisher creates a new synchronous publisher.
func NewPublisher(opts ...PublisherOption) *Publisher {
	p := &Publisher{
		handlers: make(map[string][]Handler),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Subscribe registers handlers after construction.
func (p *Publisher) Subscribe(handlers ...Handler) {
	for _, h := range handlers {
		p.register(h)
	}
}

func (p *Publisher) register(h Handler) {
	if h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[h.EventName()] = append(p.handlers[h.EventName()], h)
}

// Publish runs every handler registered for the event type and joins their
// errors. Handler panics are recovered and reported as ErrHandlerPanicked.
func (p *Publisher) Publish(ctx context.Context, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name := Name(event)

	p.mu.RLock()
	handlers := p.handlers[name]
	p.mu.RUnlock()

	if len(handlers) == 0 {
		if p.strict {
			return fmt.Errorf("%w: %s", ErrNoHandlers, name)
		}
		p.logger.DebugContext(ctx, "no handlers for event", slog.String("event", name))
		return nil
	}

	var errs []error
	for _, h := range handlers {
		if err := safeHandle(ctx, h, event); err != nil {
			errs = append(errs, fmt.Errorf("handler for %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func safeHandle(ctx context.Context, h Handler, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanicked, r)
		}
	}()
	return h.Handle(ctx, payload)
}
