// Package config handles application configuration loading from environment
// variables. It provides a centralized Config struct used across the application.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config holds all application configuration values loaded from the environment.
type Config struct {
	// Server settings
	Host string
	Port string
	Env  string // "development", "production", "testing"

	// Logging
	LogLevel  string // "debug", "info", "warn", "error"
	LogFormat string // "text" or "json"; empty picks by Env

	// PostgreSQL connection
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Valkey (Redis-compatible) job queue; empty host disables it
	ValkeyHost     string
	ValkeyPort     string
	ValkeyPassword string
	JobQueue       string

	// S3-compatible report archive; empty endpoint or bucket disables it
	S3Endpoint   string
	S3Region     string
	S3AccessKey  string
	S3SecretKey  string
	ReportBucket string

	// Review scheduling
	ReviewKinds       []string
	ReconcileSchedule string // cron spec; empty disables the sweep
	SiteCacheTTL      time.Duration
}

// Load reads configuration from environment variables, applying defaults
// for development where appropriate. Returns an error if critical values
// are missing in production mode or a value cannot be parsed.
func Load() (*Config, error) {
	cfg := &Config{
		Host: envOrDefault("APP_HOST", "0.0.0.0"),
		Port: envOrDefault("APP_PORT", "8080"),
		Env:  envOrDefault("APP_ENV", "development"),

		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: os.Getenv("LOG_FORMAT"),

		DBHost:     envOrDefault("POSTGRES_HOST", "localhost"),
		DBPort:     envOrDefault("POSTGRES_PORT", "5432"),
		DBUser:     envOrDefault("POSTGRES_USER", "reviewd"),
		DBPassword: envOrDefault("POSTGRES_PASSWORD", "changeme"),
		DBName:     envOrDefault("POSTGRES_DB", "reviewd"),

		ValkeyHost:     envOrDefault("VALKEY_HOST", "localhost"),
		ValkeyPort:     envOrDefault("VALKEY_PORT", "6379"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),
		JobQueue:       envOrDefault("JOB_QUEUE", "reviewd:jobs:ruleset"),

		S3Endpoint:   os.Getenv("S3_ENDPOINT"),
		S3Region:     envOrDefault("S3_REGION", "us-east-1"),
		S3AccessKey:  os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:  os.Getenv("S3_SECRET_KEY"),
		ReportBucket: os.Getenv("REPORT_BUCKET"),

		ReviewKinds:       splitList(envOrDefault("REVIEW_KINDS", "policy_page,guidance_page")),
		ReconcileSchedule: envOrDefault("RECONCILE_SCHEDULE", "@daily"),
	}

	if os.Getenv("VALKEY_HOST") == "-" {
		cfg.ValkeyHost = ""
	}
	if os.Getenv("RECONCILE_SCHEDULE") == "-" {
		cfg.ReconcileSchedule = ""
	}

	ttl, err := time.ParseDuration(envOrDefault("SITE_CACHE_TTL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("parse SITE_CACHE_TTL: %w", err)
	}
	cfg.SiteCacheTTL = ttl

	if _, err := cfg.SlogLevel(); err != nil {
		return nil, err
	}

	if cfg.Env == "production" {
		if cfg.DBPassword == "changeme" {
			return nil, fmt.Errorf("POSTGRES_PASSWORD must be set in production")
		}
	}

	return cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// ValkeyEnabled reports whether a Valkey host is configured.
func (c *Config) ValkeyEnabled() bool {
	return c.ValkeyHost != ""
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("parse LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}

// NewLogger builds the process logger: text for development, JSON
// otherwise, unless LogFormat says which.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	lvl, err := c.SlogLevel()
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	format := c.LogFormat
	if format == "" {
		format = "json"
		if c.IsDev() {
			format = "text"
		}
	}
	if format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// envOrDefault reads an environment variable, returning a fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
