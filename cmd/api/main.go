package main

import (
	"context"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	httpAdapter "github.com/rentwatch/rentwatch-api/internal/adapter/driving/http"

	"github.com/rentwatch/rentwatch-api/internal/adapter/driven/postgres"
	"github.com/rentwatch/rentwatch-api/internal/adapter/driven/webhook"

	"github.com/rentwatch/rentwatch-api/internal/auth"
	"github.com/rentwatch/rentwatch-api/internal/canon"
	"github.com/rentwatch/rentwatch-api/internal/config"
	"github.com/rentwatch/rentwatch-api/internal/core/service"
	"github.com/rentwatch/rentwatch-api/internal/fanout"
	"github.com/rentwatch/rentwatch-api/internal/fetch"
	"github.com/rentwatch/rentwatch-api/internal/parse"
	"github.com/rentwatch/rentwatch-api/internal/policy"

	"github.com/rentwatch/rentwatch-api/pkg/database"
	"github.com/rentwatch/rentwatch-api/pkg/observability"
)

// main wires every driven adapter the REST façade needs and serves it.
// Scheduled re-crawling runs out-of-process in cmd/worker; this binary
// only ever handles inbound HTTP.
func main() {
	observability.InitLogger("info", "json")
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPoolFromDSN(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		panic(err)
	}
	defer pool.Close()

	if cfg.OTLPEndpoint != "" {
		if err := observability.InitTracing(observability.TracingConfig{
			ServiceName:    "rentwatch-api",
			ServiceVersion: "1.0.0",
			OTLPEndpoint:   cfg.OTLPEndpoint,
			Enabled:        true,
		}); err != nil {
			slog.Error("failed to init tracing", "error", err)
		} else {
			defer observability.ShutdownTracing(context.Background())
		}
	}
	observability.InitMetrics("rentwatch")

	// Driven adapters
	canonicalizer := canon.New(canon.Config{ListPath: cfg.CanonListPath})
	fetcher := fetch.New(fetch.Config{
		Retries:        cfg.FetcherRetries,
		Backoff:        cfg.FetcherBackoff,
		RequestTimeout: cfg.FetcherRequestTimeout,
	})
	parser := parse.New(cfg.SiteOrigin)
	fanner := fanout.New(fetcher, parser)
	store := postgres.NewStateStore(pool)
	dispatcher := webhook.New(cfg.WebhookURL, cfg.WebhookInterNotificationDelay)
	policyEngine := policy.New()

	// Core services
	orchestrator := service.NewOrchestrator(canonicalizer, fanner, store, dispatcher, policyEngine)
	queryService := service.NewQueryService(canonicalizer, store)

	// Driving adapters
	crawlHandler := httpAdapter.NewCrawlHandler(orchestrator)
	queryHandler := httpAdapter.NewQueryHandler(queryService)
	healthHandler := httpAdapter.NewHealthHandler(pool)

	authMiddleware := auth.NewMiddleware(auth.Config{
		APIKey:    cfg.APIKey,
		SkipPaths: []string{"/health"},
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(observability.HTTPMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "x-api-key", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Mount("/health", healthHandler.Routes())
	r.Handle("/metrics", observability.Handler())

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handler)

		r.Mount("/crawl", crawlHandler.Routes())
		r.Mount("/query", queryHandler.Routes())
		r.Mount("/queries", queryHandler.ListQueriesRoutes())
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	slog.Info("server exited")
}
