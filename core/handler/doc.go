// Package handler defines the request-processing contract shared by the router,
// the middlewares and the service handlers.
//
// A handler receives a custom context type C and returns a Response closure.
// The closure is executed by the router once the middleware chain has unwound,
// which lets middlewares decorate the response (for example with rate limit
// headers) after the downstream handler has decided what to render:
//
//	func(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
//		return func(ctx C) handler.Response {
//			resp := next(ctx)
//			return func(w http.ResponseWriter, r *http.Request) error {
//				w.Header().Set("X-Example", "1")
//				return resp(w, r)
//			}
//		}
//	}
package handler
