package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	ServerPort    string
	GinMode       string
	LogLevel      string
	LogFormat     string
	DatabaseURL   string
	MaxDBConns    int32
	RedisURL      string
	JWTSecret     string
	JWTExpiry     time.Duration
	BcryptCost    int
	EntryTokenTTL time.Duration
	// SecureBrowserKeys are the accepted config-key hashes reported by the
	// locked-down browser. Empty slice disables the hash comparison (dev).
	SecureBrowserKeys []string
	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // Ignore error — .env is optional

	return &Config{
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		GinMode:           getEnv("GIN_MODE", "debug"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "pretty"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		MaxDBConns:        int32(getEnvInt("MAX_DB_CONNS", 16)),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 24)) * time.Hour,
		BcryptCost:        getEnvInt("BCRYPT_COST", 10),
		EntryTokenTTL:     time.Duration(getEnvInt("ENTRY_TOKEN_TTL_MINUTES", 10)) * time.Minute,
		SecureBrowserKeys: parseList(getEnv("SECURE_BROWSER_KEYS", "")),
		AllowedOrigins:    parseList(getEnv("ALLOWED_ORIGINS", "")),
	}
}

// Validate checks that configuration required for startup is present.
// Missing backend credentials must halt the process with an operator-facing
// message, never reach end users as a generic failure.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set — provide the PostgreSQL connection string")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set — provide a random secret for signing auth tokens")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// parseList splits a comma-separated string into a trimmed slice.
// Returns nil if the input is empty.
func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
