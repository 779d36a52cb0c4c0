package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/upb/mailchimp-gateway/config"
	"github.com/upb/mailchimp-gateway/internal/mailchimp"
	"github.com/upb/mailchimp-gateway/internal/observability"
	"github.com/upb/mailchimp-gateway/middleware"
	"github.com/upb/mailchimp-gateway/services/subscription"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Redis   *redis.Client

	// Provider
	Mailchimp *mailchimp.Client

	// Services
	Subscriptions *subscription.Service

	// Rate limiting; nil when throttling is disabled
	Limiter   middleware.LimiterStore
	RateStats middleware.StatsStore

	stopJanitor context.CancelFunc
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if cfg.Observability.MetricsEnabled {
		deps.Metrics = observability.NewMetrics()
	}

	// Initialize Redis when the limiter or its stats need it
	if err := deps.initRedis(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	deps.initProvider(cfg)

	if err := deps.initRateLimiter(ctx, cfg); err != nil {
		deps.closeRedis()
		return nil, fmt.Errorf("failed to initialize rate limiter: %w", err)
	}

	logger.Info("all dependencies initialized successfully",
		zap.String("environment", cfg.Environment),
		zap.Bool("throttle_enabled", cfg.RateLimit.Enabled),
		zap.String("throttle_backend", cfg.RateLimit.Backend),
		zap.Bool("metrics_enabled", cfg.Observability.MetricsEnabled))
	return deps, nil
}

// initRedis opens the shared Redis connection
func (d *Dependencies) initRedis(ctx context.Context, cfg *config.Config) error {
	if !cfg.UsesRedis() {
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	d.Redis = rdb
	d.Logger.Info("redis connection established", zap.String("addr", cfg.Redis.Addr))
	return nil
}

// initProvider builds the provider client and the subscription service
func (d *Dependencies) initProvider(cfg *config.Config) {
	d.Mailchimp = mailchimp.NewClient(mailchimp.Config{
		APIKey:       cfg.Mailchimp.APIKey,
		ServerPrefix: cfg.Mailchimp.ServerPrefix,
		AudienceID:   cfg.Mailchimp.AudienceID,
		BaseURL:      cfg.Mailchimp.BaseURL,
		Timeout:      cfg.Mailchimp.Timeout,
	})
	if !d.Mailchimp.IsConfigured() {
		d.Logger.Warn("mailchimp credentials incomplete, subscriptions will fail")
	}

	d.Subscriptions = subscription.NewService(d.Mailchimp, d.Logger, d.Metrics)
	d.Logger.Info("mailchimp provider registered",
		zap.String("audience_id", d.Mailchimp.AudienceID()))
}

// initRateLimiter selects the limiter store for the configured backend
func (d *Dependencies) initRateLimiter(ctx context.Context, cfg *config.Config) error {
	if !cfg.RateLimit.Enabled {
		d.Logger.Warn("rate limiting disabled")
		return nil
	}

	switch cfg.RateLimit.Backend {
	case config.RateLimitBackendMemory:
		store := middleware.NewMemoryStore(cfg.RateLimit.Limit, cfg.RateLimit.TTL)
		janitorCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		store.StartJanitor(janitorCtx)
		d.stopJanitor = cancel
		d.Limiter = store
	case config.RateLimitBackendRedis:
		d.Limiter = middleware.NewRedisStore(d.Redis, cfg.RateLimit.Limit, cfg.RateLimit.TTL, "")
	default:
		return fmt.Errorf("unsupported throttle backend: %s", cfg.RateLimit.Backend)
	}

	if cfg.RateLimit.StatsEnabled {
		d.RateStats = middleware.NewRedisStatsStore(d.Redis, cfg.RateLimit.StatsPrefix, 24*time.Hour)
	}

	d.Logger.Info("rate limiter initialized",
		zap.String("backend", cfg.RateLimit.Backend),
		zap.Int("limit", cfg.RateLimit.Limit),
		zap.Duration("ttl", cfg.RateLimit.TTL),
		zap.Bool("stats", cfg.RateLimit.StatsEnabled))
	return nil
}

func (d *Dependencies) closeRedis() error {
	if d.Redis == nil {
		return nil
	}
	err := d.Redis.Close()
	d.Redis = nil
	return err
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.stopJanitor != nil {
		d.stopJanitor()
	}

	if d.Redis != nil {
		if err := d.closeRedis(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		} else {
			d.Logger.Info("redis connection closed")
		}
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
