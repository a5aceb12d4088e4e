package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr                 string
	Environment          string
	LogLevel             string
	JWTSecret            string
	CommissionAPIURL     string
	CommissionAPITimeout time.Duration
	DatabaseURL          string
	RunMigrations        bool
	LabelsFile           string
	MaxBodyBytes         int64
	RateLimitPerMinute   int
	MetricsEnabled       bool
	ShutdownTimeout      time.Duration
	MaintenanceInterval  time.Duration
	IdempotencyTTL       time.Duration
	AuditRetention       time.Duration
}

func Load() Config {
	return Config{
		Addr:                 getEnv("APP_ADDR", ":8080"),
		Environment:          getEnv("APP_ENV", "development"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		JWTSecret:            getEnv("JWT_SECRET", ""),
		CommissionAPIURL:     getEnv("COMMISSION_API_URL", "http://localhost:8000/api"),
		CommissionAPITimeout: getEnvDuration("COMMISSION_API_TIMEOUT", 10*time.Second),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		RunMigrations:        getEnvBool("RUN_MIGRATIONS", true),
		LabelsFile:           getEnv("LABELS_FILE", ""),
		MaxBodyBytes:         int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		RateLimitPerMinute:   getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		MetricsEnabled:       getEnvBool("METRICS_ENABLED", true),
		ShutdownTimeout:      getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		MaintenanceInterval:  getEnvDuration("MAINTENANCE_INTERVAL", time.Hour),
		IdempotencyTTL:       getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		AuditRetention:       getEnvDuration("AUDIT_RETENTION", 0),
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.IsProduction() && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}
	parsed, err := url.Parse(strings.TrimSpace(c.CommissionAPIURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("COMMISSION_API_URL must be an absolute URL")
	}
	if c.CommissionAPITimeout <= 0 {
		return fmt.Errorf("COMMISSION_API_TIMEOUT must be positive")
	}
	switch strings.ToLower(c.LogLevel) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.IdempotencyTTL < time.Minute {
		return fmt.Errorf("IDEMPOTENCY_TTL must be at least 1m")
	}
	if c.AuditRetention < 0 {
		return fmt.Errorf("AUDIT_RETENTION must not be negative")
	}
	return nil
}
