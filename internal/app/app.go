package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/spinzone-api/internal/domain/orderline"
	"github.com/xenking/spinzone-api/internal/handler"
	"github.com/xenking/spinzone-api/internal/lock"
	"github.com/xenking/spinzone-api/internal/repository"
	"github.com/xenking/spinzone-api/internal/store"
	"github.com/xenking/spinzone-api/internal/store/memory"
	"github.com/xenking/spinzone-api/internal/store/postgres"
	"github.com/xenking/spinzone-api/internal/store/postgrest"
	"github.com/xenking/spinzone-api/internal/store/retry"
	"github.com/xenking/spinzone-api/pkg/health"
	"github.com/xenking/spinzone-api/pkg/httpmiddleware"
)

// Backend is an opened storage driver.
type Backend struct {
	Store  store.Store
	Pinger health.Pinger
	// Locker serializes mutations of one order.
	Locker lock.Locker
	Close  func()
}

// OpenBackend connects the configured store driver. The postgres driver also
// applies the schema and locks orders across replicas with advisory locks.
// A nil tp leaves PostgREST calls on the global tracer provider.
func OpenBackend(ctx context.Context, lg *zap.Logger, tp trace.TracerProvider, cfg StoreConfig) (*Backend, error) {
	switch cfg.Driver {
	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		s := postgres.New(pool)
		return &Backend{
			Store:  s,
			Pinger: s,
			Locker: lock.Chain{lock.NewKeyed(), lock.NewAdvisory(pool)},
			Close:  pool.Close,
		}, nil
	case DriverPostgREST:
		var opts []postgrest.Option
		if tp != nil {
			opts = append(opts, postgrest.WithTracerProvider(tp))
		}
		c, err := postgrest.New(cfg.PostgRESTURL, cfg.APIKey, cfg.Timeout, opts...)
		if err != nil {
			return nil, errors.Wrap(err, "create postgrest client")
		}
		return &Backend{Store: c, Pinger: c, Locker: lock.NewKeyed(), Close: func() {}}, nil
	case DriverMemory:
		lg.Warn("Using in-memory store, data is lost on restart")
		s := memory.New(memory.WithSerial("order_line", "order_line_id"))
		return &Backend{Store: s, Pinger: s, Locker: lock.NewKeyed(), Close: func() {}}, nil
	default:
		return nil, errors.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Repositories groups the store-backed repositories.
type Repositories struct {
	Orders   *repository.OrderRepository
	Products *repository.ProductRepository
	Lines    *repository.OrderLineRepository
}

// NewRepositories builds every repository over s with transient failures
// retried per cfg.
func NewRepositories(s store.Store, cfg RetryConfig) Repositories {
	s = retry.Wrap(s, cfg.backoff())
	return Repositories{
		Orders:   repository.NewOrderRepository(s),
		Products: repository.NewProductRepository(s),
		Lines:    repository.NewOrderLineRepository(s),
	}
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("store", cfg.Store.Driver),
	)

	backend, err := OpenBackend(ctx, lg, m.TracerProvider(), cfg.Store)
	if err != nil {
		return err
	}
	defer backend.Close()

	policy, err := cfg.Discount.Policy()
	if err != nil {
		return err
	}
	repos := NewRepositories(backend.Store, cfg.Retry)
	reconciler := orderline.NewReconciler(repos.Lines, repos.Orders, repos.Products,
		orderline.WithPolicy(policy),
		orderline.WithLocker(backend.Locker),
		orderline.WithTracerProvider(m.TracerProvider()),
		orderline.WithMeterProvider(m.MeterProvider()),
	)

	healthSvc := health.New()
	healthSvc.Add(health.Readiness, health.Check{
		Name:    "store",
		Timeout: 5 * time.Second,
		Func:    health.PingCheck(backend.Pinger),
	})
	healthSvc.Add(health.Liveness, health.Check{
		Name: "goroutines",
		Func: health.GoroutineCountCheck(10000),
	})
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           newHTTPHandler(ctx, cfg, m, reconciler, healthSvc),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// newHTTPHandler mounts the order line routes and health probes behind the
// middleware chain.
func newHTTPHandler(ctx context.Context, cfg *Config, tel httpmiddleware.Telemetry, lines handler.Service, hs *health.Health) http.Handler {
	router := handler.NewHandler(lines).Router()
	router.Get("/livez", hs.LiveEndpoint)
	router.Get("/readyz", hs.ReadyEndpoint)

	return httpmiddleware.Wrap(router,
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			Origins:          cfg.CORS.Origins,
			Headers:          []string{"Content-Type", "Authorization", "apikey", httpmiddleware.RequestIDHeader},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.Instrument("spinzone-api", tel),
		httpmiddleware.LogRequests(),
	)
}
