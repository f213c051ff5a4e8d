package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the relay service.
type Config struct {
	Port string
	Env  string

	DatabaseURL string // PostgreSQL; when empty, SQLite is used
	SQLitePath  string
	RedisURL    string

	// Identity provider issuing the JWTs presented at handshake.
	IdentityIssuerURL string
	// HS256 secret accepted in development when no issuer is configured.
	DevTokenSecret string

	// External summarization service.
	SummarizerURL    string
	SummarizerAPIKey string

	AllowedOrigins     []string
	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting

	// Per-recipient delivery bound for room fan-out.
	DeliveryTimeout time.Duration
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		Env:               getEnv("ENV", "development"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		SQLitePath:        getEnv("SQLITE_PATH", "./data/relay.db"),
		RedisURL:          os.Getenv("REDIS_URL"),
		IdentityIssuerURL: os.Getenv("IDENTITY_ISSUER_URL"),
		DevTokenSecret:    getEnv("DEV_TOKEN_SECRET", "dev-secret-change-me"),
		SummarizerURL:     os.Getenv("SUMMARIZER_URL"),
		SummarizerAPIKey:  os.Getenv("SUMMARIZER_API_KEY"),
		DeliveryTimeout:   getEnvDuration("DELIVERY_TIMEOUT", 5*time.Second),
	}

	cfg.AllowedOrigins = splitList(os.Getenv("ALLOWED_ORIGINS"))
	cfg.RateLimitWhitelist = splitList(os.Getenv("RATE_LIMIT_WHITELIST"))

	// In production, require the external collaborators
	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" {
			panic("DATABASE_URL is required in production")
		}
		if cfg.RedisURL == "" {
			panic("REDIS_URL is required in production")
		}
		if cfg.IdentityIssuerURL == "" {
			panic("IDENTITY_ISSUER_URL is required in production")
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

// splitList parses a comma-separated list, trimming blanks.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out
}
