package config

import (
	"os"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/davidmr/geotrack/internal/domain"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port string

	// Storage
	DBFile string

	// Security
	AllowedOrigins []string

	// Rate Limiting
	RateLimitAPI    rate.Limit
	RateLimitWS     rate.Limit
	RateLimitStrict rate.Limit

	// Logging
	LogLevel string

	// WebSocket
	DefaultRoom    string
	MaxMessageSize int
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Port:            "8080",
		DBFile:          "geotrack.db",
		AllowedOrigins:  []string{"http://localhost:8080", "http://localhost:3000"},
		RateLimitAPI:    domain.DefaultRateLimitAPI,
		RateLimitWS:     domain.DefaultRateLimitWS,
		RateLimitStrict: domain.DefaultRateLimitStrict,
		LogLevel:        "info", // Options: debug, info, warn, error, silent
		DefaultRoom:     domain.DefaultRoom,
		MaxMessageSize:  domain.MaxMessageSize,
	}
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	cfg := DefaultConfig()

	// Server
	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	// Storage
	if path := os.Getenv("DB_FILE"); path != "" {
		cfg.DBFile = path
	}

	// Security
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	// Rate Limiting
	if rl := os.Getenv("RATE_LIMIT_API"); rl != "" {
		if val, err := strconv.Atoi(rl); err == nil && val > 0 {
			cfg.RateLimitAPI = rate.Limit(val)
		}
	}

	if rl := os.Getenv("RATE_LIMIT_WS"); rl != "" {
		if val, err := strconv.Atoi(rl); err == nil && val > 0 {
			cfg.RateLimitWS = rate.Limit(val)
		}
	}

	if rl := os.Getenv("RATE_LIMIT_STRICT"); rl != "" {
		if val, err := strconv.Atoi(rl); err == nil && val > 0 {
			cfg.RateLimitStrict = rate.Limit(val)
		}
	}

	// Logging
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	// WebSocket
	if room := os.Getenv("DEFAULT_ROOM"); room != "" {
		cfg.DefaultRoom = room
	}

	if size := os.Getenv("MAX_MESSAGE_SIZE"); size != "" {
		if val, err := strconv.Atoi(size); err == nil && val > 0 {
			cfg.MaxMessageSize = val
		}
	}

	return cfg
}

// parseOrigins parses comma-separated origins
func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// Global configuration instance
var AppConfig = LoadFromEnv()
