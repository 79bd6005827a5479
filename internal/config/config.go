package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port     string
	Env      string
	RedisURL string

	// IdentityJWTSecret verifies bearer tokens minted by the external
	// identity service. Required in production.
	IdentityJWTSecret string

	// EventsFile optionally seeds the event directory from a JSON file.
	EventsFile string

	// Chat pipeline bounds.
	ChatMaxLength    int
	ChatHistoryLimit int

	// ViewerSyncInterval is the period of the viewer-count drift correction.
	ViewerSyncInterval time.Duration

	// Rate limiting
	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		RedisURL:           os.Getenv("REDIS_URL"),
		IdentityJWTSecret:  os.Getenv("IDENTITY_JWT_SECRET"),
		EventsFile:         os.Getenv("EVENTS_FILE"),
		ChatMaxLength:      getEnvInt("CHAT_MAX_LENGTH", 400),
		ChatHistoryLimit:   getEnvInt("CHAT_HISTORY_LIMIT", 200),
		ViewerSyncInterval: getEnvDuration("VIEWER_SYNC_INTERVAL", 15*time.Second),
	}

	// Parse whitelist (comma-separated IPs or CIDRs)
	if whitelist := os.Getenv("RATE_LIMIT_WHITELIST"); whitelist != "" {
		for _, entry := range strings.Split(whitelist, ",") {
			entry = strings.TrimSpace(entry)
			if entry != "" {
				cfg.RateLimitWhitelist = append(cfg.RateLimitWhitelist, entry)
			}
		}
	}

	if cfg.Env == "production" {
		if cfg.IdentityJWTSecret == "" {
			panic("IDENTITY_JWT_SECRET is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
