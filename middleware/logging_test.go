package middleware_test

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/gatekeeper/core/handler"
	"github.com/dmitrymomot/gatekeeper/core/response"
	"github.com/dmitrymomot/gatekeeper/core/router"
	"github.com/dmitrymomot/gatekeeper/middleware"
)

func newLoggedRouter(buf *bytes.Buffer, cfg middleware.LoggingConfig) router.Router[*router.Context] {
	cfg.Logger = slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := router.New[*router.Context](router.WithErrorHandler(response.ErrorHandler[*router.Context]))
	r.Use(
		middleware.ClientIP[*router.Context](),
		middleware.LoggingWithConfig[*router.Context](cfg),
	)
	return r
}

func TestLoggingLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		resp      handler.Response
		wantLevel string
		status    string
	}{
		{"ok", response.String("ok"), `"level":"INFO"`, `"status":200`},
		{"rate limited", response.Error(response.ErrTooManyRequests), `"level":"WARN"`, `"status":429`},
		{"server error", response.Error(errors.New("db down")), `"level":"ERROR"`, `"status":500`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			r := newLoggedRouter(&buf, middleware.LoggingConfig{})
			r.Get("/test", func(ctx *router.Context) handler.Response {
				return tt.resp
			})

			doRequest(r, "/test", "203.0.113.3:9", nil)

			out := buf.String()
			assert.Contains(t, out, `"msg":"request completed"`)
			assert.Contains(t, out, tt.wantLevel)
			assert.Contains(t, out, tt.status)
			assert.Contains(t, out, `"client_ip":"203.0.113.3"`)
			assert.Contains(t, out, `"path":"/test"`)
		})
	}
}

func TestLoggingSlowRequest(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := newLoggedRouter(&buf, middleware.LoggingConfig{SlowRequestThreshold: time.Millisecond})
	r.Get("/slow", func(ctx *router.Context) handler.Response {
		time.Sleep(5 * time.Millisecond)
		return response.NoContent()
	})

	w := doRequest(r, "/slow", "203.0.113.3:9", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, buf.String(), `"level":"WARN"`)
}

func TestLoggingSkip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := newLoggedRouter(&buf, middleware.LoggingConfig{
		Skip: func(ctx handler.Context) bool {
			return ctx.Request().URL.Path == "/health/live"
		},
	})
	r.Get("/health/live", func(ctx *router.Context) handler.Response {
		return response.NoContent()
	})

	doRequest(r, "/health/live", "203.0.113.3:9", nil)
	assert.Empty(t, buf.String())
}
