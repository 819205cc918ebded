// Package config loads application configuration from environment variables.
// All variables use the KNOWMAP_ prefix and may also come from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Auth     AuthConfig
	Grading  GradingConfig
	Log      LogConfig
	QuizPath string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int
	Host            string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL keeps
// everything in memory.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
	Migrate  bool
}

// CacheConfig holds Dragonfly/Redis connection settings. An empty URL
// disables question-set caching.
type CacheConfig struct {
	URL         string
	QuestionTTL time.Duration
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	JWTSecret  string
	AdminClaim string
}

// GradingConfig holds submission settings.
type GradingConfig struct {
	MaxUpdateAttempts int
	RecentReports     int
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with the KNOWMAP_
// prefix. Variables already set in the environment win over the env files,
// which default to ".env"; missing files are ignored.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", f, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            envInt("KNOWMAP_SERVER_PORT", 8080),
			Host:            envStr("KNOWMAP_SERVER_HOST", "0.0.0.0"),
			ShutdownTimeout: envDuration("KNOWMAP_SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			URL:      envStr("KNOWMAP_DATABASE_URL", ""),
			MaxConns: envInt("KNOWMAP_DATABASE_MAX_CONNS", 25),
			MinConns: envInt("KNOWMAP_DATABASE_MIN_CONNS", 5),
			Migrate:  envBool("KNOWMAP_DATABASE_MIGRATE", true),
		},
		Cache: CacheConfig{
			URL:         envStr("KNOWMAP_CACHE_URL", ""),
			QuestionTTL: envDuration("KNOWMAP_CACHE_QUESTION_TTL", 10*time.Minute),
		},
		Auth: AuthConfig{
			JWTSecret:  envStr("KNOWMAP_AUTH_JWT_SECRET", ""),
			AdminClaim: envStr("KNOWMAP_AUTH_ADMIN_CLAIM", "admin"),
		},
		Grading: GradingConfig{
			MaxUpdateAttempts: envInt("KNOWMAP_GRADING_MAX_UPDATE_ATTEMPTS", 5),
			RecentReports:     envInt("KNOWMAP_GRADING_RECENT_REPORTS", 5),
		},
		Log: LogConfig{
			Level:  envStr("KNOWMAP_LOG_LEVEL", "info"),
			Format: envStr("KNOWMAP_LOG_FORMAT", "json"),
		},
		QuizPath: envStr("KNOWMAP_QUIZ_PATH", "./quizzes"),
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("KNOWMAP_AUTH_JWT_SECRET is required")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("KNOWMAP_SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("KNOWMAP_DATABASE_MIN_CONNS (%d) exceeds KNOWMAP_DATABASE_MAX_CONNS (%d)",
			c.Database.MinConns, c.Database.MaxConns)
	}

	if c.Grading.MaxUpdateAttempts < 1 {
		return fmt.Errorf("KNOWMAP_GRADING_MAX_UPDATE_ATTEMPTS must be at least 1, got %d", c.Grading.MaxUpdateAttempts)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("KNOWMAP_LOG_LEVEL must be debug, info, warn or error, got %q", c.Log.Level)
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("KNOWMAP_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}

	return nil
}

// HasDatabase reports whether a PostgreSQL URL is configured.
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// HasCache reports whether a cache URL is configured.
func (c *Config) HasCache() bool {
	return c.Cache.URL != ""
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
