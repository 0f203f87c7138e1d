package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	AuthAPIURL string // Required: base URL of the marketplace auth API

	SessionDir          string        // Optional: directory for persisted session tokens (memory-only when empty)
	SessionIdleTimeout  time.Duration // Idle timeout before a session is swept (default: 30m)
	SessionSweepEvery   time.Duration // Sweep interval (default: 5m)
	MaxSessionsPerUser  int           // Concurrent session cap per account (default: 5)
	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8090)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		AuthAPIURL:          getEnvOrDefault("GATEWAY_AUTH_API_URL", "http://localhost:8091"),
		SessionDir:          os.Getenv("GATEWAY_SESSION_DIR"),
		SessionIdleTimeout:  getEnvDurationOrDefault("GATEWAY_SESSION_IDLE_TIMEOUT", 30*time.Minute),
		SessionSweepEvery:   getEnvDurationOrDefault("GATEWAY_SESSION_SWEEP_INTERVAL", 5*time.Minute),
		MaxSessionsPerUser:  getEnvIntOrDefault("GATEWAY_MAX_SESSIONS_PER_USER", 5),
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8090),
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
