package gatekeeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/gatekeeper/core/config"
	"github.com/dmitrymomot/gatekeeper/core/event"
	"github.com/dmitrymomot/gatekeeper/core/logger"
	"github.com/dmitrymomot/gatekeeper/core/router"
	"github.com/dmitrymomot/gatekeeper/core/server"
	"github.com/dmitrymomot/gatekeeper/integration/database/redis"
	"github.com/dmitrymomot/gatekeeper/integration/notify/redispub"
	"github.com/dmitrymomot/gatekeeper/middleware"
	"github.com/dmitrymomot/gatekeeper/pkg/ratelimiter"
)

// App wires the rate limiter into an HTTP service.
type App struct {
	config    Config
	logger    *slog.Logger
	router    router.Router[*router.Context]
	server    *server.Server
	catalog   *ratelimiter.Catalog
	store     *ratelimiter.MemoryStore
	engine    *ratelimiter.Engine
	events    *event.Publisher
	redis     *goredis.Client
	upstream  http.Handler
	notifiers []ratelimiter.Notifier
}

// AppOption configures an App.
type AppOption func(*App) error

// NewApp builds the service. Without WithConfig the configuration is loaded
// from the environment. Redis is connected only when NOTIFY_REDIS_ENABLED is
// set and no client was injected.
func NewApp(ctx context.Context, opts ...AppOption) (*App, error) {
	app := &App{}

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	if app.config.AppName == "" {
		if err := config.Load(&app.config); err != nil {
			return nil, err
		}
	}

	if app.logger == nil {
		app.logger = newLogger(app.config)
	}

	catalog, err := ratelimiter.CatalogFromSource(app.config.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("rate limit catalog: %w", err)
	}
	app.catalog = catalog

	if app.store == nil {
		app.store = ratelimiter.NewMemoryStore(append(
			app.config.RateLimit.StoreOptions(),
			ratelimiter.WithMemoryStoreLogger(app.logger.With(logger.Component("ratelimiter.store"))),
		)...)
	}

	if app.redis == nil && app.config.RedisNotify.Enabled {
		client, err := redis.Connect(ctx, app.config.Redis)
		if err != nil {
			return nil, err
		}
		app.redis = client
	}

	app.events = event.NewPublisher(
		event.WithPublisherLogger(app.logger.With(logger.Component("events"))),
		event.WithHandler(auditHandler(app.logger)),
	)

	notifiers := []ratelimiter.Notifier{ratelimiter.EventNotifier(app.events)}
	if app.redis != nil {
		notifiers = append(notifiers, redispub.New(app.redis, redispub.WithChannel(app.config.RedisNotify.Channel)))
	}
	notifiers = append(notifiers, app.notifiers...)

	app.engine = ratelimiter.NewEngine(app.store, app.catalog,
		ratelimiter.WithNotifier(ratelimiter.MultiNotifier(notifiers...)),
		ratelimiter.WithNotifyTimeout(app.config.RateLimit.NotifyTimeout),
		ratelimiter.WithEngineLogger(app.logger.With(logger.Component("ratelimiter.engine"))),
	)

	if app.upstream == nil {
		upstream, err := newUpstream(app.config.UpstreamURL, app.logger)
		if err != nil {
			return nil, err
		}
		app.upstream = upstream
	}

	if app.router == nil {
		app.router = router.New[*router.Context](
			router.WithErrorHandler(errorHandler(app.logger)),
			router.WithLogger[*router.Context](app.logger),
		)
	}
	app.registerRoutes()

	if app.server == nil {
		s, err := server.NewFromConfig(app.config.Server,
			server.WithLogger(app.logger.With(logger.Component("server"))))
		if err != nil {
			return nil, err
		}
		app.server = s
	}

	return app, nil
}

// WithConfig uses cfg instead of loading the environment.
func WithConfig(cfg Config) AppOption {
	return func(app *App) error {
		if cfg.AppName == "" {
			return ErrMissingAppName
		}
		app.config = cfg
		return nil
	}
}

// WithLogger sets the application logger.
func WithLogger(log *slog.Logger) AppOption {
	return func(app *App) error {
		if log == nil {
			return errors.New("logger cannot be nil")
		}
		app.logger = log
		return nil
	}
}

// WithStore replaces the token bucket store.
func WithStore(store *ratelimiter.MemoryStore) AppOption {
	return func(app *App) error {
		if store == nil {
			return errors.New("store cannot be nil")
		}
		app.store = store
		return nil
	}
}

// WithRedisClient publishes rate limit events through client.
func WithRedisClient(client *goredis.Client) AppOption {
	return func(app *App) error {
		if client == nil {
			return errors.New("redis client cannot be nil")
		}
		app.redis = client
		return nil
	}
}

// WithNotifier adds a notifier next to the built-in ones.
func WithNotifier(n ratelimiter.Notifier) AppOption {
	return func(app *App) error {
		if n == nil {
			return errors.New("notifier cannot be nil")
		}
		app.notifiers = append(app.notifiers, n)
		return nil
	}
}

// WithUpstream replaces the handler guarded by the limiter.
func WithUpstream(h http.Handler) AppOption {
	return func(app *App) error {
		if h == nil {
			return errors.New("upstream cannot be nil")
		}
		app.upstream = h
		return nil
	}
}

// WithServer replaces the HTTP server.
func WithServer(s *server.Server) AppOption {
	return func(app *App) error {
		if s == nil {
			return errors.New("server cannot be nil")
		}
		app.server = s
		return nil
	}
}

// Handler returns the fully wired HTTP handler.
func (app *App) Handler() http.Handler {
	return app.router
}

// Engine returns the rate limiting engine.
func (app *App) Engine() *ratelimiter.Engine {
	return app.engine
}

// Store returns the token bucket store.
func (app *App) Store() *ratelimiter.MemoryStore {
	return app.store
}

// Run serves HTTP and sweeps idle buckets until ctx is cancelled or either
// component fails.
func (app *App) Run(ctx context.Context) error {
	defer app.close()

	app.logger.InfoContext(ctx, "starting gatekeeper",
		slog.String("addr", app.config.Server.Addr),
		slog.Int("strategies", len(app.catalog.Strategies())),
		slog.Bool("redis_notify", app.redis != nil))

	g, ctx := errgroup.WithContext(ctx)
	if app.config.RateLimit.CleanupInterval > 0 {
		g.Go(app.store.Run(ctx))
	}
	g.Go(app.server.Run(ctx, app.router))

	return g.Wait()
}

func (app *App) close() {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("failed to close redis client", logger.Error(err))
		}
	}
}

func newLogger(cfg Config) *slog.Logger {
	opts := []logger.Option{}
	if cfg.IsProduction() {
		opts = append(opts, logger.WithProduction(cfg.AppName))
	} else {
		opts = append(opts, logger.WithDevelopment(cfg.AppName))
	}
	opts = append(opts,
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
		logger.WithContextExtractors(middleware.RequestIDExtractor),
	)
	return logger.New(opts...)
}

// auditHandler logs every denial through the event publisher.
func auditHandler(log *slog.Logger) event.Handler {
	return event.NewHandlerFunc(func(ctx context.Context, evt ratelimiter.LimitExceeded) error {
		return ratelimiter.LogNotifier(log.With(logger.Component("audit"))).Notify(ctx, evt)
	})
}
