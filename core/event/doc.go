// Package event provides a small, type-safe in-process event publisher.
//
// Handlers are registered per event type and invoked synchronously by
// Publish. Event names are derived from the payload type name, so a handler
// built with NewHandlerFunc[ratelimiter.LimitExceeded] receives every
// LimitExceeded value passed to Publish.
//
//	audit := event.NewHandlerFunc(func(ctx context.Context, evt ratelimiter.LimitExceeded) error {
//		log.WarnContext(ctx, "limit exceeded", "identifier", evt.Identifier)
//		return nil
//	})
//
//	pub := event.NewPublisher(event.WithHandler(audit))
//	engine := ratelimiter.NewEngine(store, catalog,
//		ratelimiter.WithNotifier(ratelimiter.EventNotifier(pub)),
//	)
//
// Event is the envelope used when payloads leave the process; see NewEvent.
package event
