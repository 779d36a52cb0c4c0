package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/upb/mailchimp-gateway/utils"
	"go.uber.org/zap"
)

// Version is reported by the status endpoint
const Version = "1.0.0"

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// StatusResponse describes the running instance
type StatusResponse struct {
	Version          string `json:"version"`
	Environment      string `json:"environment"`
	Provider         string `json:"provider"`
	RateLimitBackend string `json:"rateLimitBackend,omitempty"`
}

// ProviderStatus reports whether the provider credentials are present
type ProviderStatus interface {
	Name() string
	IsConfigured() bool
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	provider    ProviderStatus
	redis       *redis.Client
	environment string
	rateBackend string
	logger      *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. rdb may be nil when Redis
// is not used.
func NewHealthHandler(provider ProviderStatus, rdb *redis.Client, environment, rateBackend string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		provider:    provider,
		redis:       rdb,
		environment: environment,
		rateBackend: rateBackend,
		logger:      logger,
	}
}

// HandleHealth handles GET /healthz
// Basic health check - always returns 200 if service is running
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness handles GET /readyz
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string)
	ready := true

	if h.provider == nil || !h.provider.IsConfigured() {
		checks["mailchimp"] = "not_configured"
		ready = false
	} else {
		checks["mailchimp"] = "configured"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			h.logger.Warn("redis health check failed", zap.Error(err))
			checks["redis"] = "unhealthy"
			ready = false
		} else {
			checks["redis"] = "healthy"
		}
	}

	status := "ready"
	httpStatus := http.StatusOK
	if !ready {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	if err := utils.WriteJSON(w, httpStatus, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// HandleStatus handles GET /status
func (h *HealthHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	provider := ""
	if h.provider != nil {
		provider = h.provider.Name()
	}
	_ = utils.WriteOK(w, StatusResponse{
		Version:          Version,
		Environment:      h.environment,
		Provider:         provider,
		RateLimitBackend: h.rateBackend,
	})
}
