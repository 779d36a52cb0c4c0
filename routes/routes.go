package routes

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/mailchimp-gateway/app"
	"github.com/upb/mailchimp-gateway/handlers"
	"github.com/upb/mailchimp-gateway/middleware"
	"github.com/upb/mailchimp-gateway/utils"
	"go.uber.org/zap"
)

const docsPath = "/api"

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger, deps.Metrics))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	// CORS middleware
	allowedHeaders := []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"}
	if cfg.RateLimit.KeyHeader != "" {
		allowedHeaders = append(allowedHeaders, cfg.RateLimit.KeyHeader)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   allowedHeaders,
		ExposedHeaders:   []string{"Retry-After", "X-Request-ID"},
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           300,
	}))

	// Health check endpoints
	var provider handlers.ProviderStatus
	if deps.Mailchimp != nil {
		provider = deps.Mailchimp
	}
	health := handlers.NewHealthHandler(provider, deps.Redis, cfg.Environment, rateLimitBackend(deps), logger)
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	if cfg.Observability.MetricsEnabled && deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	mailchimpHandler := handlers.NewMailchimpHandler(deps.Subscriptions, logger)
	throttle := middleware.RateLimit(middleware.RateLimitOptions{
		Store:     deps.Limiter,
		Stats:     deps.RateStats,
		KeyHeader: cfg.RateLimit.KeyHeader,
		Reject:    handlers.WriteThrottled(logger),
		Logger:    logger,
		Metrics:   deps.Metrics,
	})

	apiRoutes := func(r chi.Router) {
		r.Use(throttle)

		r.Get("/status", health.HandleStatus)

		r.Route("/mailchimp", func(r chi.Router) {
			r.Get("/", mailchimpHandler.HandleHello)
			r.Post("/subscribe", mailchimpHandler.HandleSubscribe)
		})
	}

	prefix := cfg.Server.APIPrefix
	if prefix == "" {
		r.Group(apiRoutes)
	} else {
		r.Route(prefix, apiRoutes)
	}

	// API documentation
	docs, err := handlers.NewDocsHandler(prefix, logger)
	if err != nil {
		logger.Error("api documentation disabled", zap.Error(err))
	} else {
		if prefix != docsPath {
			r.Get(docsPath, docs.HandleDocs)
		}
		r.Get(docsPath+"-json", docs.HandleDocs)
	}

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, fmt.Sprintf("Cannot %s %s", r.Method, r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, fmt.Sprintf("Cannot %s %s", r.Method, r.URL.Path), nil)
	})

	return r
}

func rateLimitBackend(deps *app.Dependencies) string {
	if deps.Limiter == nil {
		return ""
	}
	return deps.Config.RateLimit.Backend
}
