package response_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/gatekeeper/core/handler"
	"github.com/dmitrymomot/gatekeeper/core/response"
	"github.com/dmitrymomot/gatekeeper/core/router"
)

func render(t *testing.T, resp handler.Response) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, resp(rec, req))
	return rec
}

func TestJSON(t *testing.T) {
	t.Parallel()

	t.Run("default status", func(t *testing.T) {
		t.Parallel()

		rec := render(t, response.JSON(map[string]int{"remaining": 9}))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"remaining":9}`, rec.Body.String())
	})

	t.Run("custom status", func(t *testing.T) {
		t.Parallel()

		rec := render(t, response.JSONWithStatus(map[string]string{"a": "b"}, http.StatusTooManyRequests))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.JSONEq(t, `{"a":"b"}`, rec.Body.String())
	})

	t.Run("no content skips body", func(t *testing.T) {
		t.Parallel()

		rec := render(t, response.JSONWithStatus(map[string]string{"a": "b"}, http.StatusNoContent))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())
	})

	t.Run("zero status with nil value", func(t *testing.T) {
		t.Parallel()

		rec := render(t, response.JSONWithStatus(nil, 0))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestString(t *testing.T) {
	t.Parallel()

	rec := render(t, response.String("ALIVE"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "ALIVE", rec.Body.String())

	rec = render(t, response.StringWithStatus("", http.StatusAccepted))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestNoContent(t *testing.T) {
	t.Parallel()

	rec := render(t, response.NoContent())
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestWithHeaders(t *testing.T) {
	t.Parallel()

	rec := render(t, response.WithHeaders(response.String("ok"), map[string]string{
		"Retry-After":       "6",
		"X-RateLimit-Limit": "10",
	}))
	assert.Equal(t, "6", rec.Header().Get("Retry-After"))
	assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "ok", rec.Body.String())

	assert.Nil(t, response.WithHeaders(nil, map[string]string{"a": "b"}))
}

func TestHTTPError(t *testing.T) {
	t.Parallel()

	err := response.ErrTooManyRequests.WithMessage("slow down")
	assert.Equal(t, "slow down", err.Error())
	assert.Equal(t, http.StatusTooManyRequests, err.StatusCode())
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", err.Code)
	assert.Equal(t, http.StatusText(http.StatusTooManyRequests), response.ErrTooManyRequests.Message)

	withCause := response.ErrInternalServerError.WithError(errors.New("boom"))
	assert.Equal(t, "boom", withCause.Details["cause"])
	assert.Nil(t, response.ErrInternalServerError.Details)
}

type teapotError struct{}

func (teapotError) Error() string   { return "teapot" }
func (teapotError) StatusCode() int { return http.StatusNotFound }

func TestErrorHandlers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"http error", response.ErrBadRequest.WithMessage("identifier is required"), http.StatusBadRequest, "bad_request"},
		{"wrapped http error", fmt.Errorf("lookup: %w", response.ErrNotFound), http.StatusNotFound, "not_found"},
		{"status code error", teapotError{}, http.StatusNotFound, "not_found"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "internal_server_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			ctx := router.NewContext(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			response.JSONErrorHandler(ctx, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Error.Code)

			rec = httptest.NewRecorder()
			ctx = router.NewContext(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			response.ErrorHandler(ctx, tt.err)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
		})
	}
}

func TestError(t *testing.T) {
	t.Parallel()

	want := errors.New("propagated")
	rec := httptest.NewRecorder()
	err := response.Error(want)(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, want)
	assert.Equal(t, http.StatusOK, rec.Code)
}
