// Package config provides environment configuration for the console server.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Assistant socket settings
	AssistantURL       string
	ReconnectDelay     time.Duration
	TurnTimeout        time.Duration
	ParseBufferCeiling int

	// JWT settings
	JWTSecret     string
	JWTExpiration time.Duration

	// NATS journal settings
	JournalEnabled bool
	NATSURL        string
	NATSToken      string

	// LLM settings (assistant-sim)
	AnthropicAPIKey string
	OpenAIAPIKey    string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),

		// Assistant
		AssistantURL:       getEnv("ASSISTANT_URL", "ws://localhost:9090/assistant"),
		ReconnectDelay:     getDurationEnv("ASSISTANT_RECONNECT_DELAY", 3*time.Second),
		TurnTimeout:        getDurationEnv("TURN_TIMEOUT", 30*time.Second),
		ParseBufferCeiling: getIntEnv("PARSE_BUFFER_CEILING", 10000),

		// JWT
		JWTSecret:     getEnv("JWT_SECRET", "development-secret-change-in-production"),
		JWTExpiration: getDurationEnv("JWT_EXPIRATION", 15*time.Minute),

		// NATS journal
		JournalEnabled: getBoolEnv("JOURNAL_ENABLED", false),
		NATSURL:        getEnv("NATS_URL", "nats://localhost:4222"),
		NATSToken:      getEnv("NATS_TOKEN", ""),

		// LLM
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
