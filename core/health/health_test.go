package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/gatekeeper/core/health"
	"github.com/dmitrymomot/gatekeeper/core/router"
)

func serve(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestLiveness(t *testing.T) {
	t.Parallel()

	r := router.New[*router.Context]()
	r.Get("/health/live", health.Liveness[*router.Context])

	w := serve(t, r, "/health/live")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ALIVE", w.Body.String())
}

func TestReadiness(t *testing.T) {
	t.Parallel()

	ok := health.Check{Name: "store", Fn: func(context.Context) error { return nil }}
	failing := health.Check{Name: "redis", Fn: func(context.Context) error { return errors.New("connection refused") }}

	tests := []struct {
		name       string
		checks     []health.Check
		wantStatus int
		wantReport health.Report
	}{
		{
			name:       "no checks",
			wantStatus: http.StatusOK,
			wantReport: health.Report{Status: health.StatusReady, Checks: map[string]string{}},
		},
		{
			name:       "all pass",
			checks:     []health.Check{ok},
			wantStatus: http.StatusOK,
			wantReport: health.Report{Status: health.StatusReady, Checks: map[string]string{"store": "ok"}},
		},
		{
			name:       "one fails",
			checks:     []health.Check{ok, failing},
			wantStatus: http.StatusServiceUnavailable,
			wantReport: health.Report{
				Status: health.StatusNotReady,
				Checks: map[string]string{"store": "ok", "redis": "connection refused"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := router.New[*router.Context]()
			r.Get("/health/ready", health.Readiness[*router.Context](nil, tt.checks...))

			w := serve(t, r, "/health/ready")
			assert.Equal(t, tt.wantStatus, w.Code)

			var report health.Report
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
			assert.Equal(t, tt.wantReport, report)
		})
	}
}
