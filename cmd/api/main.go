package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"customer-analytics-api/internal/cache"
	"customer-analytics-api/internal/config"
	"customer-analytics-api/internal/database"
	"customer-analytics-api/internal/events"
	"customer-analytics-api/internal/features"
	"customer-analytics-api/internal/handler"
	"customer-analytics-api/internal/logger"
	"customer-analytics-api/internal/middleware"
	"customer-analytics-api/internal/service"
	"customer-analytics-api/internal/tracing"
)

func main() {
	configFile := flag.String("config", "", "Path to a YAML or JSON config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server failed", "error", err)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx := context.Background()

	tracer, err := tracing.InitTracing(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Tracing.Environment,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	db, err := database.NewDB(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	flags := features.FromConfig(cfg.Features)

	ev := events.NewManager(true, log)
	if flags.IsEnabled(features.EventLog) {
		ev.SubscribeAll(events.LogHandler(log))
	}
	defer ev.Shutdown()

	svc := service.NewService(db, ev, tracer, log)
	h := handler.NewHandlerWithOptions(svc, handler.NewHandlerOptions{
		MaxBodySize: cfg.Security.MaxRequestBodySize,
		Features:    flags,
		Logger:      log,
	})

	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(chimw.Recoverer)
	r.Use(middleware.TracingMiddleware(tracer))

	var metrics *middleware.Metrics
	if cfg.Metrics.Enabled {
		metrics = middleware.NewMetrics()
		r.Use(metrics.Middleware)
	}

	if cfg.RateLimit.Enabled {
		counter, err := newCounter(ctx, cfg.Redis, log)
		if err != nil {
			return err
		}
		defer counter.Close()

		limiter := middleware.NewRateLimiter(counter, cfg.RateLimit.Rate, time.Duration(cfg.RateLimit.Window)*time.Second, log)
		defer limiter.Stop()
		r.Use(middleware.RateLimitMiddleware(limiter))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Security.Origins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if metrics != nil {
		r.Method(http.MethodGet, cfg.Metrics.Path, metrics.Handler())
	}
	h.Register(r)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server",
			"addr", server.Addr,
			"database", cfg.Database.Driver,
			"rate_limit", cfg.RateLimit.Rate,
			"rate_window_seconds", cfg.RateLimit.Window,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Graceful shutdown
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigint:
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// newCounter uses Redis when an address is configured and the in-process
// counter otherwise.
func newCounter(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (cache.Counter, error) {
	if cfg.Addr == "" {
		return cache.NewInMemoryCounter(), nil
	}

	counter, err := cache.NewRedisCounter(ctx, cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		return nil, err
	}
	log.Info("rate limiting backed by Redis", "addr", cfg.Addr)
	return counter, nil
}
