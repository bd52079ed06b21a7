package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/gatekeeper/core/handler"
	"github.com/dmitrymomot/gatekeeper/core/logger"
	"github.com/dmitrymomot/gatekeeper/core/response"
)

const (
	StatusReady    = "READY"
	StatusNotReady = "NOT_READY"
	checkOK        = "ok"
)

// Check is a named dependency probe.
type Check struct {
	Name string
	Fn   func(context.Context) error
}

// Report is the readiness response body.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Readiness runs every check with a shared timeout and reports each result.
// Returns 200 when all checks pass, 503 Service Unavailable otherwise.
func Readiness[C handler.Context](log *slog.Logger, checks ...Check) handler.HandlerFunc[C] {
	return ReadinessWithTimeout[C](log, 2*time.Second, checks...)
}

// ReadinessWithTimeout is Readiness with a custom per-request timeout.
func ReadinessWithTimeout[C handler.Context](log *slog.Logger, timeout time.Duration, checks ...Check) handler.HandlerFunc[C] {
	if log == nil {
		log = logger.Nop()
	}

	return func(ctx C) handler.Response {
		cctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		report := Report{Status: StatusReady, Checks: make(map[string]string, len(checks))}
		for _, c := range checks {
			if err := c.Fn(cctx); err != nil {
				log.ErrorContext(ctx, "readiness check failed",
					logger.Component(c.Name),
					logger.Error(err))
				report.Status = StatusNotReady
				report.Checks[c.Name] = err.Error()
				continue
			}
			report.Checks[c.Name] = checkOK
		}

		if report.Status != StatusReady {
			return response.JSONWithStatus(report, http.StatusServiceUnavailable)
		}
		return response.JSON(report)
	}
}
