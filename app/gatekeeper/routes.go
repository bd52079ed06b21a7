package gatekeeper

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrymomot/gatekeeper/core/handler"
	"github.com/dmitrymomot/gatekeeper/core/health"
	"github.com/dmitrymomot/gatekeeper/core/logger"
	"github.com/dmitrymomot/gatekeeper/core/response"
	"github.com/dmitrymomot/gatekeeper/core/router"
	"github.com/dmitrymomot/gatekeeper/integration/database/redis"
	"github.com/dmitrymomot/gatekeeper/middleware"
	"github.com/dmitrymomot/gatekeeper/pkg/ratelimiter"
)

const debugPrefix = "/debug/ratelimit"

func (app *App) registerRoutes() {
	isProbe := func(ctx handler.Context) bool {
		return strings.HasPrefix(ctx.Request().URL.Path, "/health/")
	}

	keys := middleware.IPKeyExtractor
	if app.config.APIKeyHeader != "" {
		keys = middleware.APIKeyExtractor(app.config.APIKeyHeader)
	}

	app.router.Use(
		middleware.RequestID[*router.Context](),
		middleware.ClientIP[*router.Context](),
		middleware.LoggingWithConfig[*router.Context](middleware.LoggingConfig{
			Logger: app.logger,
			Skip:   isProbe,
		}),
		middleware.RateLimit[*router.Context](middleware.RateLimitConfig{
			Catalog:      app.catalog,
			Engine:       app.engine,
			KeyExtractor: keys,
			Logger:       app.logger.With(logger.Component("ratelimiter.filter")),
		}),
	)

	checks := []health.Check{{Name: "ratelimiter", Fn: app.store.Healthcheck}}
	if app.redis != nil {
		checks = append(checks, health.Check{Name: "redis", Fn: redis.Healthcheck(app.redis)})
	}
	app.router.Get("/health/live", health.Liveness[*router.Context])
	app.router.Get("/health/ready", health.Readiness[*router.Context](app.logger, checks...))

	if app.config.DebugRoutes {
		app.router.Get(debugPrefix, app.debugStats)
		app.router.Get(debugPrefix+"/status", app.debugStatus)
		app.router.Delete(debugPrefix+"/buckets/{strategy}/{identifier}", app.debugReset)
	}

	app.router.Handle("/", func(ctx *router.Context) handler.Response {
		return func(w http.ResponseWriter, r *http.Request) error {
			app.upstream.ServeHTTP(w, r)
			return nil
		}
	})
}

type strategyView struct {
	Name     string   `json:"name"`
	Capacity uint     `json:"capacity"`
	Window   string   `json:"window"`
	Prefixes []string `json:"prefixes"`
	Enabled  bool     `json:"enabled"`
}

type statsView struct {
	Store      ratelimiter.MemoryStoreStats `json:"store"`
	Engine     ratelimiter.EngineStats      `json:"engine"`
	Strategies []strategyView               `json:"strategies"`
}

func (app *App) debugStats(ctx *router.Context) handler.Response {
	strategies := app.catalog.Strategies()
	views := make([]strategyView, 0, len(strategies))
	for _, s := range strategies {
		views = append(views, strategyView{
			Name:     s.Name,
			Capacity: s.Capacity,
			Window:   s.Window.String(),
			Prefixes: s.Prefixes,
			Enabled:  s.Enabled,
		})
	}

	return response.JSON(statsView{
		Store:      app.store.Stats(),
		Engine:     app.engine.Stats(),
		Strategies: views,
	})
}

type statusView struct {
	Identifier string    `json:"identifier"`
	Strategy   string    `json:"strategy"`
	Allowed    bool      `json:"allowed"`
	Limit      uint      `json:"limit"`
	Remaining  uint      `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after"`
}

// debugStatus peeks at a bucket: ?identifier=IP:1.2.3.4&strategy=AUTH
func (app *App) debugStatus(ctx *router.Context) handler.Response {
	q := ctx.Request().URL.Query()
	id := ratelimiter.Identifier(q.Get("identifier"))
	if id == "" {
		return response.Error(response.ErrBadRequest.WithMessage("identifier is required"))
	}

	s, ok := app.catalog.Strategy(q.Get("strategy"))
	if !ok {
		return response.Error(response.ErrNotFound.WithMessage("unknown strategy"))
	}

	d := app.store.Status(id, s)
	return response.JSON(statusView{
		Identifier: id.String(),
		Strategy:   s.Name,
		Allowed:    d.Allowed(),
		Limit:      d.Limit,
		Remaining:  d.Remaining,
		ResetAt:    d.ResetAt,
		RetryAfter: d.RetryAfterSeconds(),
	})
}

func (app *App) debugReset(ctx *router.Context) handler.Response {
	s, ok := app.catalog.Strategy(ctx.Param("strategy"))
	if !ok {
		return response.Error(response.ErrNotFound.WithMessage("unknown strategy"))
	}
	id := ratelimiter.Identifier(ctx.Param("identifier"))

	app.store.Reset(id, s.Name)
	app.logger.InfoContext(ctx, "rate limit bucket reset",
		logger.Identifier(id.String()),
		logger.Strategy(s.Name))

	return response.NoContent()
}

// newUpstream proxies to rawURL, or echoes the request when rawURL is empty.
func newUpstream(rawURL string, log *slog.Logger) (http.Handler, error) {
	if rawURL == "" {
		return http.HandlerFunc(echo), nil
	}

	target, err := url.Parse(rawURL)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUpstream, rawURL)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.ErrorContext(r.Context(), "upstream request failed",
			logger.Path(r.URL.Path),
			logger.Error(err))
		w.WriteHeader(http.StatusBadGateway)
	}
	return proxy, nil
}

func echo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"method": r.Method,
		"path":   r.URL.Path,
	})
}

// errorHandler renders JSON errors and logs server-side failures.
func errorHandler(log *slog.Logger) handler.ErrorHandler[*router.Context] {
	return func(ctx *router.Context, err error) {
		var httpErr response.HTTPError
		if !errors.As(err, &httpErr) || httpErr.Status >= http.StatusInternalServerError {
			log.ErrorContext(ctx, "request failed",
				logger.Path(ctx.Request().URL.Path),
				logger.Error(err))
		}
		response.JSONErrorHandler(ctx, err)
	}
}
