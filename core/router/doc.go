// Package router provides a small generic HTTP router on top of net/http.ServeMux.
//
// Routes use the ServeMux pattern syntax ("GET /api/resume/{id}", "/api/auth/"),
// handlers receive a typed context, and router-level middlewares wrap every
// registered route:
//
//	r := router.New[*router.Context]()
//	r.Use(middleware.ClientIP[*router.Context]())
//	r.Get("/health/live", health.Liveness[*router.Context])
//
// Handlers return a handler.Response which is rendered after the middleware
// chain has unwound. Errors returned by the response, and panics raised while
// handling the request, are passed to the configured error handler.
package router
