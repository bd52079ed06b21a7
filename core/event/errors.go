package event

import "errors"

var (
	// ErrNoHandlers is returned in strict mode when no handlers are registered for an event.
	ErrNoHandlers = errors.New("no handlers registered for event")

	// ErrInvalidPayload is returned when a payload cannot be converted to the handler type.
	ErrInvalidPayload = errors.New("invalid event payload")

	// ErrHandlerPanicked wraps a panic recovered from a handler.
	ErrHandlerPanicked = errors.New("event handler panicked")
)
