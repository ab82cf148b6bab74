// Package config provides application configuration management.
// It loads settings from environment variables (optionally seeded from a
// .env file) and validates them before the application starts.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration
	ServiceName     string

	// Data Configuration
	DataDir            string // Directory holding the SQLite database
	BranchMappingsFile string // Optional YAML file replacing the built-in branch table

	// HTTP API
	UserIDHeader        string // Header carrying the gateway-authenticated user ID (default: X-User-ID)
	CORSAllowedOrigin   string // Allowed browser origin (empty = no CORS headers)
	PredictDefaultLimit int    // Page size when the request omits limit (default: 15)
	PredictMaxLimit     int    // Largest accepted page size (default: 100)

	// Rate Limits (per client IP)
	RateLimitRequests int           // Requests allowed per window (default: 100)
	RateLimitWindow   time.Duration // Sliding window length (default: 15m)
	RateLimitBurst    float64       // Short-term burst capacity (default: 20)

	// Metrics Authentication
	MetricsUsername string // Username for /metrics endpoint Basic Auth (default: "prometheus")
	MetricsPassword string // Password for /metrics endpoint Basic Auth (empty = no auth)

	// Catalog object storage
	Catalog CatalogStorageConfig

	// Error tracking and remote logging
	SentryToken         string
	SentryHost          string
	SentryEnvironment   string
	SentrySampleRate    float64
	BetterStackToken    string
	BetterStackEndpoint string
}

// CatalogStorageConfig locates catalog dumps in S3-compatible storage.
type CatalogStorageConfig struct {
	Endpoint    string
	AccessKeyID string
	SecretKey   string
	Bucket      string
	ObjectKey   string
}

// Enabled reports whether object storage credentials are configured.
func (c CatalogStorageConfig) Enabled() bool {
	return c.Endpoint != "" && c.AccessKeyID != "" && c.SecretKey != "" && c.Bucket != ""
}

// Load reads configuration from environment variables
// It attempts to load .env file first, then reads from env vars
func Load() (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv(EnvPort, "10000"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, 30*time.Second),
		ServiceName:     getEnv(EnvServiceName, "college-predictor"),

		DataDir:            getEnv(EnvDataDir, getDefaultDataDir()),
		BranchMappingsFile: getEnv(EnvBranchMappingsFile, ""),

		UserIDHeader:        getEnv(EnvUserIDHeader, "X-User-ID"),
		CORSAllowedOrigin:   getEnv(EnvCORSAllowedOrigin, ""),
		PredictDefaultLimit: getIntEnv(EnvPredictDefaultLimit, 15),
		PredictMaxLimit:     getIntEnv(EnvPredictMaxLimit, 100),

		RateLimitRequests: getIntEnv(EnvRateLimitRequests, 100),
		RateLimitWindow:   getDurationEnv(EnvRateLimitWindow, 15*time.Minute),
		RateLimitBurst:    getFloatEnv(EnvRateLimitBurst, 20),

		MetricsUsername: getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword: getEnv(EnvMetricsPassword, ""),

		Catalog: CatalogStorageConfig{
			Endpoint:    getEnv(EnvCatalogEndpoint, ""),
			AccessKeyID: getEnv(EnvCatalogAccessKeyID, ""),
			SecretKey:   getEnv(EnvCatalogSecretKey, ""),
			Bucket:      getEnv(EnvCatalogBucket, ""),
			ObjectKey:   getEnv(EnvCatalogObjectKey, "catalog/colleges.json.zst"),
		},

		SentryToken:         getEnv(EnvSentryToken, ""),
		SentryHost:          getEnv(EnvSentryHost, ""),
		SentryEnvironment:   getEnv(EnvSentryEnvironment, "production"),
		SentrySampleRate:    getFloatEnv(EnvSentrySampleRate, 1.0),
		BetterStackToken:    getEnv(EnvBetterStackToken, ""),
		BetterStackEndpoint: getEnv(EnvBetterStackEndpoint, ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration values and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New(EnvPort+" is required"))
	} else if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Errorf("%s must be a valid TCP port, got %q", EnvPort, c.Port))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New(EnvDataDir+" is required"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvShutdownTimeout, c.ShutdownTimeout))
	}
	if strings.TrimSpace(c.UserIDHeader) == "" {
		errs = append(errs, errors.New(EnvUserIDHeader+" must not be empty"))
	} else {
		c.UserIDHeader = http.CanonicalHeaderKey(strings.TrimSpace(c.UserIDHeader))
	}
	if c.PredictDefaultLimit < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1, got %d", EnvPredictDefaultLimit, c.PredictDefaultLimit))
	}
	if c.PredictMaxLimit < c.PredictDefaultLimit {
		errs = append(errs, fmt.Errorf("%s (%d) must not be below the default limit (%d)",
			EnvPredictMaxLimit, c.PredictMaxLimit, c.PredictDefaultLimit))
	}
	if c.RateLimitRequests < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %d", EnvRateLimitRequests, c.RateLimitRequests))
	}
	if c.RateLimitRequests > 0 && c.RateLimitWindow <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvRateLimitWindow, c.RateLimitWindow))
	}
	if c.RateLimitBurst < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %v", EnvRateLimitBurst, c.RateLimitBurst))
	}
	if c.SentryToken != "" && c.SentryHost == "" {
		errs = append(errs, errors.New(EnvSentryHost+" is required when "+EnvSentryToken+" is set"))
	}
	if c.SentrySampleRate < 0 || c.SentrySampleRate > 1 {
		errs = append(errs, fmt.Errorf("%s must be within [0, 1], got %v", EnvSentrySampleRate, c.SentrySampleRate))
	}

	return errors.Join(errs...)
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getDefaultDataDir returns platform-specific default data directory
func getDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return "./data"
	}
	return "/data"
}

// SQLitePath returns the full path to the SQLite database file
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "college_predictor.db")
}
