// Package response builds handler.Response values for JSON and plain text
// bodies and renders errors.
//
// Handlers return a response instead of writing to the ResponseWriter:
//
//	func status(ctx handler.Context) handler.Response {
//		return response.JSON(map[string]string{"status": "ok"})
//	}
//
// Errors are returned through response.Error and rendered by the router's
// error handler. HTTPError carries the status code, a machine-readable code
// and a message; ErrorHandler renders it as text and JSONErrorHandler wraps it
// in an {"error": ...} envelope:
//
//	return response.Error(response.ErrNotFound.WithMessage("unknown strategy"))
//
// Errors that are not an HTTPError are mapped by their StatusCode() method when
// present, and to 500 Internal Server Error otherwise.
//
// WithHeaders decorates any response with extra headers set before rendering.
package response
