package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	DatabaseURL           string
	ServerPort            string
	BaseURL               string
	FrontendURL           string
	EnableHSTS            bool
	HomeAssistantURL      string
	HomeAssistantToken    string
	HomeAssistantTimeout  time.Duration
	RedisURL              string
	RabbitMQURL           string
	RabbitMQPrefetch      int
	ResetTimezone         string
	ResetSettleDelay      time.Duration
	ResetLease            time.Duration
	StatusRefreshInterval time.Duration
	APISigningKey         string
	APITokenIssuer        string
	RateLimit             string
	WorkerDebugMode       bool
	ServerDebugMode       bool
	OTELEnabled           bool
	OTELEndpoint          string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		ServerPort:            getEnv("SERVER_PORT", "8080"),
		BaseURL:               getEnv("BASE_URL", "http://localhost:8080"),
		FrontendURL:           getEnv("FRONTEND_URL", "http://localhost:8123"),
		EnableHSTS:            getEnvBool("ENABLE_HSTS", false),
		HomeAssistantURL:      strings.TrimRight(getEnv("HA_URL", ""), "/"),
		HomeAssistantToken:    getEnv("HA_TOKEN", ""),
		HomeAssistantTimeout:  getEnvDuration("HA_REQUEST_TIMEOUT", 10*time.Second),
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL:           getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch:      getEnvInt("RABBITMQ_PREFETCH", 1),
		ResetTimezone:         getEnv("RESET_TIMEZONE", "Local"),
		ResetSettleDelay:      getEnvDuration("RESET_SETTLE_DELAY", 2*time.Second),
		ResetLease:            getEnvDuration("RESET_LEASE", 10*time.Minute),
		StatusRefreshInterval: getEnvDuration("STATUS_REFRESH_INTERVAL", 30*time.Second),
		APISigningKey:         getEnv("API_SIGNING_KEY", ""),
		APITokenIssuer:        getEnv("API_TOKEN_ISSUER", "todo-reset"),
		RateLimit:             getEnv("RATE_LIMIT", "20-S"),
		WorkerDebugMode:       getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:       getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:           getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:          getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.HomeAssistantURL == "" {
		return nil, fmt.Errorf("HA_URL is required")
	}

	if cfg.HomeAssistantToken == "" {
		return nil, fmt.Errorf("HA_TOKEN is required")
	}

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Location resolves ResetTimezone. Daily triggers fire on this zone's wall clock.
func (c *Config) Location() (*time.Location, error) {
	if c.ResetTimezone == "" || c.ResetTimezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.ResetTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid RESET_TIMEZONE %q: %w", c.ResetTimezone, err)
	}
	return loc, nil
}

// QueueEnabled reports whether resets are handed off to the worker over RabbitMQ.
func (c *Config) QueueEnabled() bool {
	return c.RabbitMQURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d >= 0 {
			return d
		}
	}
	return defaultValue
}
