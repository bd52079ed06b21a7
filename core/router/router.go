package router

import (
	"net/http"

	"github.com/dmitrymomot/gatekeeper/core/handler"
)

// Router is the routing interface for handling HTTP requests.
type Router[C handler.Context] interface {
	http.Handler

	Get(pattern string, h handler.HandlerFunc[C])
	Post(pattern string, h handler.HandlerFunc[C])
	Put(pattern string, h handler.HandlerFunc[C])
	Delete(pattern string, h handler.HandlerFunc[C])

	// Handle registers h for every method on the given pattern.
	Handle(pattern string, h handler.HandlerFunc[C])
	// Method registers h for the given method and pattern.
	Method(method, pattern string, h handler.HandlerFunc[C])

	// Use appends router-level middlewares. They wrap every route,
	// including the ones registered before the call.
	Use(middlewares ...handler.Middleware[C])

	// Routes lists registered routes for introspection.
	Routes() []Route
}

// Route describes a single registered route.
type Route struct {
	Method  string
	Pattern string
}

// New creates a new router with the given options.
func New[C handler.Context](opts ...Option[C]) Router[C] {
	return newMux(opts...)
}
