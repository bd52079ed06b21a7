package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/gatekeeper/core/handler"
	"github.com/dmitrymomot/gatekeeper/core/response"
	"github.com/dmitrymomot/gatekeeper/core/router"
	"github.com/dmitrymomot/gatekeeper/middleware"
)

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{"remote addr", nil, "192.168.1.100:54321", "192.168.1.100"},
		{"forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1"}, "10.0.0.1:80", "203.0.113.1"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.2"}, "10.0.0.1:80", "203.0.113.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := router.New[*router.Context]()
			r.Use(middleware.ClientIP[*router.Context]())

			var captured string
			var found bool
			r.Get("/test", func(ctx *router.Context) handler.Response {
				captured, found = middleware.GetClientIP(ctx)
				return response.NoContent()
			})

			w := doRequest(r, "/test", tt.remoteAddr, tt.headers)
			assert.Equal(t, http.StatusNoContent, w.Code)
			assert.True(t, found)
			assert.Equal(t, tt.want, captured)
			assert.Empty(t, w.Header().Get("X-Client-IP"))
		})
	}
}

func TestClientIPStoreInHeader(t *testing.T) {
	t.Parallel()

	r := router.New[*router.Context]()
	r.Use(middleware.ClientIPWithConfig[*router.Context](middleware.ClientIPConfig{
		StoreInHeader: true,
		HeaderName:    "X-Seen-IP",
	}))
	r.Get("/test", func(ctx *router.Context) handler.Response {
		return response.NoContent()
	})

	w := doRequest(r, "/test", "198.51.100.4:443", nil)
	assert.Equal(t, "198.51.100.4", w.Header().Get("X-Seen-IP"))
}

func TestClientIPSkip(t *testing.T) {
	t.Parallel()

	r := router.New[*router.Context]()
	r.Use(middleware.ClientIPWithConfig[*router.Context](middleware.ClientIPConfig{
		Skip: func(ctx handler.Context) bool {
			return ctx.Request().URL.Path == "/skip"
		},
	}))

	var found bool
	r.Get("/skip", func(ctx *router.Context) handler.Response {
		_, found = middleware.GetClientIP(ctx)
		return response.NoContent()
	})

	doRequest(r, "/skip", "198.51.100.4:443", nil)
	assert.False(t, found)
}

func TestGetClientIPWithoutMiddleware(t *testing.T) {
	t.Parallel()

	ctx := router.NewContext(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	ip, ok := middleware.GetClientIP(ctx)
	assert.False(t, ok)
	assert.Empty(t, ip)
}
