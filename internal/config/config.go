package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all client configuration
type Config struct {
	APIURL          string        // Backend API root, e.g. http://localhost:8000/api
	Timeout         time.Duration // Per-request timeout
	DebounceDelay   time.Duration // Quiet period before a search/filter change is committed
	StatsStaleTime  time.Duration // How long cached storage statistics stay fresh (0 = until invalidated)
	ListRetries     int           // Retries for failed listing fetches
	DetailRetries   int           // Retries for failed detail fetches (never on 404)
	RetryInterval   time.Duration // Initial backoff between retries
	CacheSize       int           // Maximum number of cached listings
	RateLimit       float64       // Requests per second to the API (0 = unlimited)
	LogLevel        string        // debug, info, warn, error
	LogFormat       string        // json or text
	MetricsAddr     string        // Optional: address to serve /metrics on
	WatchQuietDelay time.Duration // Quiet period before the watcher uploads a changed file
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		APIURL:          getEnv("FILEVAULT_API_URL", "http://localhost:8000/api"),
		Timeout:         getEnvDuration("FILEVAULT_TIMEOUT", 5*time.Minute),
		DebounceDelay:   time.Duration(getEnvInt("FILEVAULT_DEBOUNCE_MS", 300)) * time.Millisecond,
		StatsStaleTime:  time.Duration(getEnvInt("FILEVAULT_STATS_STALE_SECONDS", 60)) * time.Second,
		ListRetries:     getEnvInt("FILEVAULT_LIST_RETRIES", 1),
		DetailRetries:   getEnvInt("FILEVAULT_DETAIL_RETRIES", 3),
		RetryInterval:   getEnvDuration("FILEVAULT_RETRY_INTERVAL", time.Second),
		CacheSize:       getEnvInt("FILEVAULT_CACHE_SIZE", 64),
		RateLimit:       getEnvFloat("FILEVAULT_RATE_LIMIT", 0), // 0 = unlimited (default)
		LogLevel:        strings.ToLower(getEnv("FILEVAULT_LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(getEnv("FILEVAULT_LOG_FORMAT", "text")),
		MetricsAddr:     getEnv("FILEVAULT_METRICS_ADDR", ""), // Optional
		WatchQuietDelay: time.Duration(getEnvInt("FILEVAULT_WATCH_QUIET_MS", 500)) * time.Millisecond,
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate ensures configuration values are sensible. It is called by Load
// and again after command-line flags have been applied.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("FILEVAULT_API_URL cannot be empty")
	}

	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("FILEVAULT_API_URL must be an absolute http(s) URL, got %q", c.APIURL)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("FILEVAULT_TIMEOUT must be positive, got %s", c.Timeout)
	}

	if c.DebounceDelay < 0 {
		return fmt.Errorf("FILEVAULT_DEBOUNCE_MS cannot be negative, got %s", c.DebounceDelay)
	}

	if c.StatsStaleTime < 0 {
		return fmt.Errorf("FILEVAULT_STATS_STALE_SECONDS cannot be negative, got %s", c.StatsStaleTime)
	}

	if c.ListRetries < 0 {
		return fmt.Errorf("FILEVAULT_LIST_RETRIES cannot be negative, got %d", c.ListRetries)
	}

	if c.DetailRetries < 0 {
		return fmt.Errorf("FILEVAULT_DETAIL_RETRIES cannot be negative, got %d", c.DetailRetries)
	}

	if c.RetryInterval <= 0 {
		return fmt.Errorf("FILEVAULT_RETRY_INTERVAL must be positive, got %s", c.RetryInterval)
	}

	if c.CacheSize <= 0 {
		return fmt.Errorf("FILEVAULT_CACHE_SIZE must be positive, got %d", c.CacheSize)
	}

	if c.RateLimit < 0 {
		return fmt.Errorf("FILEVAULT_RATE_LIMIT must be 0 (unlimited) or positive, got %g", c.RateLimit)
	}

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}

	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("FILEVAULT_LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}

	if c.WatchQuietDelay < 0 {
		return fmt.Errorf("FILEVAULT_WATCH_QUIET_MS cannot be negative, got %s", c.WatchQuietDelay)
	}

	return nil
}

// ParseLogLevel converts a level name to a slog.Level
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("FILEVAULT_LOG_LEVEL must be debug, info, warn or error, got %q", level)
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable (e.g. "30s") or returns a default value.
// A bare integer is interpreted as seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
