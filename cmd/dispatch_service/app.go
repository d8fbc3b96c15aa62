package dispatchservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"courier-dispatch/internal/general/config"
	"courier-dispatch/internal/general/geocode"
	"courier-dispatch/internal/general/geoindex"
	"courier-dispatch/internal/general/jwt"
	"courier-dispatch/internal/general/logger"
	"courier-dispatch/internal/general/metrics"
	"courier-dispatch/internal/general/postgres"
	"courier-dispatch/internal/general/rabbitmq"
	"courier-dispatch/internal/ports"
	"courier-dispatch/internal/software/dispatch/handler"
	"courier-dispatch/internal/software/dispatch/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run wires the dispatch service and blocks until ctx is cancelled.
func Run(ctx context.Context, maxConcurrent int) error {
	// set up a new logger and context for dispatch service with a static request ID for startup logs
	logger := logger.New("dispatch-service")
	ctx = logger.WithRequestID(ctx, "startup-001")

	// load the config from the environment
	cfg, err := config.Load()
	if err != nil {
		logger.Error(ctx, "config_load_failed", "Failed to load configuration", err, nil)
		return err
	}

	// set up a Postgres connection pool
	pool, err := postgres.NewPool(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "db_connection_failed", "Failed to initialize Postgres pool", err, nil)
		return err
	}
	defer pool.Close()

	// bring the schema up to date
	if err := postgres.Migrate(ctx, cfg, logger); err != nil {
		logger.Error(ctx, "migrations_failed", "Failed to apply schema migrations", err, nil)
		return err
	}

	// connect to RabbitMQ
	rmq, err := rabbitmq.ConnectRabbitMQ(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
		return err
	}

	// set up the RabbitMQ publisher and the notification gateway on top of it
	pub := rabbitmq.NewMQPublisher(rmq)
	notifier := rabbitmq.NewNotifier(pub, "dispatch-service")

	// set up the JWT manager
	jwtManager := jwt.NewManager(cfg.JWT.SecretKey, 2*time.Hour)

	// set up the necessary repos
	uow := postgres.NewUnitOfWork(pool)
	jobRepo := postgres.NewJobRepo()
	jobEventRepo := postgres.NewJobEventRepo()
	workerRepo := postgres.NewWorkerRepo()
	posRepo := postgres.NewPositionRepo()

	// set up the worker geo index backed by Redis
	geoIndex := geoindex.NewRedisIndex(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.GeoKey, cfg.Policy.PositionStaleAfter)

	// reverse geocoding is optional; without a key addresses stay as submitted
	var geocoder ports.Geocoder = geocode.NoopGeocoder{}
	if cfg.Google.MapsAPIKey != "" {
		geocoder, err = geocode.NewGoogleGeocoder(cfg.Google.MapsAPIKey)
		if err != nil {
			logger.Error(ctx, "geocoder_init_failed", "Failed to initialize Google geocoder", err, nil)
			return err
		}
	}

	// set up the dispatch service
	svc := service.NewDispatchService(logger, cfg, uow, jobRepo, jobEventRepo, workerRepo, posRepo, geoIndex, geocoder, notifier, pub)

	// run the background sweep that re-announces unclaimed jobs
	svc.RunBackgroundConsumers(ctx)

	// set up the HTTP handler and its routes
	mux := http.NewServeMux()
	httpHandler := handler.NewDispatchHTTPHandler(svc, logger, jwtManager)
	httpHandler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	// concurrency limiter (global), blocks when capacity is full
	limitedHandler := withConcurrencyLimit(maxConcurrent, metrics.InstrumentHandler(mux))

	// set up the server configurations
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Services.DispatchServicePort),
		Handler:           limitedHandler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logger.Info(ctx, "service_started",
		fmt.Sprintf("Dispatch Service started on port %d", cfg.Services.DispatchServicePort),
		map[string]any{"port": cfg.Services.DispatchServicePort, "max_concurrent": maxConcurrent},
	)

	// start the server in a background goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	// wait for context cancellation or server error
	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info(ctx, "shutdown_started", "Shutting down dispatch service", nil)
		if err := srv.Shutdown(shCtx); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "http_shutdown_failed", "Failed to gracefully shut down HTTP server", err, nil)
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "http_server_error", "HTTP server terminated with error", err,
				map[string]any{"port": cfg.Services.DispatchServicePort})
			return err
		}
		return nil
	}

	return nil
}

// withConcurrencyLimit wraps an http.Handler with a semaphore-based limiter.
// It controls how many HTTP requests can be in-progress at the same time.
func withConcurrencyLimit(n int, next http.Handler) http.Handler {
	if n <= 0 {
		return next
	}
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}: // acquire
			defer func() { <-sem }() // release
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			// client canceled or server is shutting down
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	})
}
