package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	CORS          CORSConfig
	RateLimit     RateLimitConfig
	Redis         RedisConfig
	Mailchimp     MailchimpConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	APIPrefix       string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// CORSConfig holds the cross-origin policy applied to every route
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowCredentials bool
}

// RateLimitConfig holds the throttling guard configuration.
// Limit requests are allowed per TTL window for each client key.
type RateLimitConfig struct {
	Enabled      bool
	TTL          time.Duration
	Limit        int
	Backend      string // memory or redis
	KeyHeader    string
	StatsEnabled bool
	StatsPrefix  string
}

// RedisConfig holds the optional Redis connection used by the rate limiter
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MailchimpConfig holds the provider credentials. They are read once and
// never change for the lifetime of the process.
type MailchimpConfig struct {
	APIKey       string
	ServerPrefix string
	AudienceID   string
	BaseURL      string // Optional override of https://{prefix}.api.mailchimp.com
	Timeout      time.Duration
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
}

const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			APIPrefix:       normalizePrefix(getEnv("API_PREFIX", "/api/v1")),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		CORS: CORSConfig{
			AllowedOrigins:   getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods:   []string{"GET", "HEAD", "PUT", "PATCH", "POST", "DELETE"},
			AllowCredentials: true,
		},
		RateLimit: RateLimitConfig{
			Enabled:      getEnvAsBool("THROTTLE_ENABLED", true),
			TTL:          getEnvAsSeconds("THROTTLE_TTL", 60*time.Second),
			Limit:        getEnvAsInt("THROTTLE_LIMIT", 10),
			Backend:      strings.ToLower(getEnv("THROTTLE_BACKEND", RateLimitBackendMemory)),
			KeyHeader:    getEnv("THROTTLE_KEY_HEADER", ""),
			StatsEnabled: getEnvAsBool("RATE_STATS_ENABLED", false),
			StatsPrefix:  getEnv("RATE_STATS_PREFIX", "ratelimit:stats"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Mailchimp: MailchimpConfig{
			APIKey:       getEnv("MAILCHIMP_API_KEY", ""),
			ServerPrefix: getEnv("MAILCHIMP_SERVER_PREFIX", ""),
			AudienceID:   getEnv("MAILCHIMP_AUDIENCE_ID", ""),
			BaseURL:      getEnv("MAILCHIMP_BASE_URL", ""),
			Timeout:      getEnvAsDuration("MAILCHIMP_TIMEOUT", 10*time.Second),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	// The subscription service cannot be built without the provider credentials
	if c.Mailchimp.APIKey == "" {
		return fmt.Errorf("mailchimp API key is required (MAILCHIMP_API_KEY)")
	}
	if c.Mailchimp.ServerPrefix == "" {
		return fmt.Errorf("mailchimp server prefix is required (MAILCHIMP_SERVER_PREFIX)")
	}
	if c.Mailchimp.AudienceID == "" {
		return fmt.Errorf("mailchimp audience ID is required (MAILCHIMP_AUDIENCE_ID)")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Limit <= 0 {
			return fmt.Errorf("throttle limit must be positive")
		}
		if c.RateLimit.TTL <= 0 {
			return fmt.Errorf("throttle ttl must be positive")
		}
		switch c.RateLimit.Backend {
		case RateLimitBackendMemory, RateLimitBackendRedis:
		default:
			return fmt.Errorf("unsupported throttle backend: %s", c.RateLimit.Backend)
		}
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// UsesRedis reports whether any component needs a Redis connection
func (c *Config) UsesRedis() bool {
	if !c.RateLimit.Enabled {
		return false
	}
	return c.RateLimit.Backend == RateLimitBackendRedis || c.RateLimit.StatsEnabled
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AllowsAnyOrigin returns true when the CORS policy is the wildcard
func (c *CORSConfig) AllowsAnyOrigin() bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 3000)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 3000
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return "/" + prefix
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSeconds accepts a bare integer (seconds) or a Go duration string
func getEnvAsSeconds(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return getEnvAsDuration(key, defaultValue)
}

// getEnvAsList splits a comma-separated variable, dropping empty entries
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			values = append(values, p)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
