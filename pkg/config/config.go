package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the configuration for the server
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
	Presence  PresenceConfig
	Session   SessionConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// StorageConfig holds file storage configuration
type StorageConfig struct {
	Dir string
}

// RateLimitConfig holds the sliding-window admission policy
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
}

// PresenceConfig holds device presence settings
type PresenceConfig struct {
	Timeout time.Duration
}

// SessionConfig holds real-time session timer settings
type SessionConfig struct {
	HeartbeatInterval time.Duration
	ClientTimeout     time.Duration
	BroadcastInterval time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // json, text
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Storage: StorageConfig{
			Dir: getEnv("STORAGE_DIR", "./files"),
		},
		RateLimit: RateLimitConfig{
			MaxRequests: getEnvInt("RATE_LIMIT_MAX_REQUESTS", 100),
			Window:      getEnvDuration("RATE_LIMIT_WINDOW", 60*time.Second),
		},
		Presence: PresenceConfig{
			Timeout: getEnvDuration("PRESENCE_TIMEOUT", 30*time.Second),
		},
		Session: SessionConfig{
			HeartbeatInterval: getEnvDuration("SESSION_HEARTBEAT_INTERVAL", 5*time.Second),
			ClientTimeout:     getEnvDuration("SESSION_CLIENT_TIMEOUT", 10*time.Second),
			BroadcastInterval: getEnvDuration("SESSION_BROADCAST_INTERVAL", 10*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
