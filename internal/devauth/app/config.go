package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseFile string        // SQLite database path (default: devauth.db)
	JWTSecret    string        // HS256 secret for session tokens (default: dev-only secret)
	JWTIssuer    string        // Issuer claim on session tokens (default: agroisync-devauth)
	SessionTTL   time.Duration // Session token lifetime (default: 24h)

	HousekeepingInterval time.Duration // Expired-record cleanup interval (default: 15m)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: text)
	Port                int           // HTTP server port (default: 8091)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		DatabaseFile: getEnvOrDefault("DATABASE_FILE", "devauth.db"),
		JWTSecret:    getEnvOrDefault("JWT_SECRET", "dev-only-insecure-secret"),
		JWTIssuer:    getEnvOrDefault("JWT_ISSUER", "agroisync-devauth"),
		SessionTTL:   getEnvDurationOrDefault("SESSION_TTL", 24*time.Hour),

		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 15*time.Minute),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "text"),
		Port:                getEnvIntOrDefault("PORT", 8091),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
