// Package config loads the environment-level defaults this module needs
// when no external settings store is wired in (tests, the demo CLI). The
// persisted settings JSON blob itself is owned by the caller;
// this package only fills in sane defaults and lets env vars override them,
// the same way the app's internal/config/config.go feeds its HTTP
// server's Config.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ConnectionDefaults stands in for model.ConnectionSettings when a caller
// doesn't have a persisted settings blob handy (e.g. the demo CLI, or a
// unit test).
type ConnectionDefaults struct {
	LogLevel string

	DefaultPort           int
	ConnectTimeout        time.Duration
	KeepaliveEnabled      bool
	KeepaliveInterval     time.Duration
	KeepaliveMaxMissed    int
	AutoReconnect         bool
	ReconnectAttempts     int
	ReconnectInterval     time.Duration
	ParallelSFTPChannels  int
}

// Load reads a .env file if present, then environment variables, falling
// back to conservative connection and keepalive defaults.
func Load() *ConnectionDefaults {
	_ = godotenv.Load()

	return &ConnectionDefaults{
		LogLevel:             getEnv("SHELLMASTER_LOG_LEVEL", "info"),
		DefaultPort:          getEnvAsInt("SHELLMASTER_DEFAULT_PORT", 22),
		ConnectTimeout:       time.Duration(getEnvAsInt("SHELLMASTER_CONNECT_TIMEOUT_SECS", 30)) * time.Second,
		KeepaliveEnabled:     getEnvAsBool("SHELLMASTER_KEEPALIVE_ENABLED", true),
		KeepaliveInterval:    time.Duration(getEnvAsInt("SHELLMASTER_KEEPALIVE_INTERVAL_SECS", 60)) * time.Second,
		KeepaliveMaxMissed:   getEnvAsInt("SHELLMASTER_KEEPALIVE_MAX_MISSED", 3),
		AutoReconnect:        getEnvAsBool("SHELLMASTER_AUTO_RECONNECT", true),
		ReconnectAttempts:    getEnvAsInt("SHELLMASTER_RECONNECT_ATTEMPTS", 5),
		ReconnectInterval:    time.Duration(getEnvAsInt("SHELLMASTER_RECONNECT_INTERVAL_SECS", 5)) * time.Second,
		ParallelSFTPChannels: getEnvAsInt("SHELLMASTER_PARALLEL_SFTP_CHANNELS", 4),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}
