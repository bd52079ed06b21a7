package router

import (
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"sync"

	"github.com/dmitrymomot/gatekeeper/core/handler"
)

// mux is the private implementation of Router interface.
type mux[C handler.Context] struct {
	serveMux     *http.ServeMux
	errorHandler handler.ErrorHandler[C]
	newContext   func(http.ResponseWriter, *http.Request) C
	logger       *slog.Logger

	mu          sync.RWMutex
	middlewares []handler.Middleware[C]
	routes      []Route
}

func newMux[C handler.Context](opts ...Option[C]) *mux[C] {
	m := &mux[C]{
		serveMux:     http.NewServeMux(),
		errorHandler: defaultErrorHandler[C],
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.newContext == nil {
		m.newContext = func(w http.ResponseWriter, r *http.Request) C {
			// Only the default *Context type works without a factory.
			var zero C
			if _, ok := any(zero).(*Context); ok {
				return any(newContext(w, r)).(C)
			}
			panic(ErrNoContextFactory)
		}
	}

	return m
}

// ServeHTTP implements http.Handler interface.
func (m *mux[C]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.serveMux.ServeHTTP(w, r)
}

func (m *mux[C]) Get(pattern string, h handler.HandlerFunc[C]) {
	m.Method(http.MethodGet, pattern, h)
}

func (m *mux[C]) Post(pattern string, h handler.HandlerFunc[C]) {
	m.Method(http.MethodPost, pattern, h)
}

func (m *mux[C]) Put(pattern string, h handler.HandlerFunc[C]) {
	m.Method(http.MethodPut, pattern, h)
}

func (m *mux[C]) Delete(pattern string, h handler.HandlerFunc[C]) {
	m.Method(http.MethodDelete, pattern, h)
}

func (m *mux[C]) Handle(pattern string, h handler.HandlerFunc[C]) {
	m.register("", pattern, h)
}

func (m *mux[C]) Method(method, pattern string, h handler.HandlerFunc[C]) {
	if method == "" {
		panic(ErrInvalidMethod)
	}
	m.register(method, pattern, h)
}

func (m *mux[C]) Use(middlewares ...handler.Middleware[C]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.middlewares = append(m.middlewares, middlewares...)
}

func (m *mux[C]) Routes() []Route {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.routes)
}

func (m *mux[C]) register(method, pattern string, h handler.HandlerFunc[C]) {
	if pattern == "" || pattern[0] != '/' {
		panic(ErrInvalidPattern)
	}
	if h == nil {
		panic(ErrNilHandler)
	}

	full := pattern
	if method != "" {
		full = method + " " + pattern
	}

	m.mu.Lock()
	m.routes = append(m.routes, Route{Method: method, Pattern: pattern})
	m.mu.Unlock()

	m.serveMux.Handle(full, m.endpoint(h))
}

// endpoint adapts a typed handler to http.Handler. The middleware chain is
// built per request so that Use() also affects already registered routes.
func (m *mux[C]) endpoint(h handler.HandlerFunc[C]) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := newResponseWriter(w)
		ctx := m.newContext(ww, r)

		defer func() {
			if p := recover(); p != nil {
				panicErr := &panicError{value: p, stack: debug.Stack()}
				if ww.Written() {
					m.logger.Error("panic after response written",
						"value", panicErr.value,
						"path", r.URL.Path,
						"method", r.Method,
						"status", ww.Status(),
					)
					return
				}
				m.errorHandler(ctx, panicErr)
			}
		}()

		m.mu.RLock()
		middlewares := m.middlewares
		m.mu.RUnlock()

		resp := handler.Chain(h, middlewares...)(ctx)
		if resp == nil {
			m.errorHandler(ctx, ErrNilResponse)
			return
		}

		if err := resp(ww, ctx.Request()); err != nil {
			m.errorHandler(ctx, err)
		}
	})
}
