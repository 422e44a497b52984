// Package config provides environment configuration for the assistant.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Booking store backends.
const (
	BookingStoreMemory   = "memory"
	BookingStoreFile     = "file"
	BookingStorePostgres = "postgres"
)

// Session store backends.
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Parser modes.
const (
	ParserRules  = "rules"
	ParserLLM    = "llm"
	ParserHybrid = "hybrid"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Calendar settings
	Timezone       string
	BookingSummary string

	// Booking storage
	BookingStore string
	BookingsFile string
	DatabaseURL  string

	// Conversation storage
	SessionStore  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration

	// Parsing
	Parser      string
	LLMProvider string
	LLMModel    string

	// LLM settings
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GeminiAPIKey    string

	// NATS settings; an empty URL disables event publishing
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging; LogFormat is json or console
	LogLevel  string
	LogFormat string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool

	// Telegram
	TelegramBotToken string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present; real environment
// variables take precedence over it.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),

		// Calendar
		Timezone:       getEnv("TIMEZONE", "Local"),
		BookingSummary: getEnv("BOOKING_SUMMARY", ""),

		// Booking storage
		BookingStore: strings.ToLower(getEnv("BOOKING_STORE", BookingStoreMemory)),
		BookingsFile: getEnv("BOOKINGS_FILE", "data/bookings.json"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		// Conversation storage
		SessionStore:  strings.ToLower(getEnv("SESSION_STORE", SessionStoreMemory)),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		SessionTTL:    getDurationEnv("SESSION_TTL", 24*time.Hour),

		// Parsing
		Parser:      strings.ToLower(getEnv("PARSER", ParserRules)),
		LLMProvider: strings.ToLower(getEnv("LLM_PROVIDER", "anthropic")),
		LLMModel:    getEnv("LLM_MODEL", ""),

		// LLM
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),

		// NATS
		NATSURL:      getEnv("NATS_URL", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "json")),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),

		// Telegram
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
	}
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch c.BookingStore {
	case BookingStoreMemory:
	case BookingStoreFile:
		if c.BookingsFile == "" {
			return fmt.Errorf("BOOKINGS_FILE is required for the file booking store")
		}
	case BookingStorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres booking store")
		}
	default:
		return fmt.Errorf("unknown BOOKING_STORE %q", c.BookingStore)
	}

	switch c.SessionStore {
	case SessionStoreMemory, SessionStoreRedis:
	default:
		return fmt.Errorf("unknown SESSION_STORE %q", c.SessionStore)
	}

	switch c.Parser {
	case ParserRules:
	case ParserLLM, ParserHybrid:
		if c.LLMAPIKey() == "" {
			return fmt.Errorf("PARSER=%s needs an API key for LLM_PROVIDER %q", c.Parser, c.LLMProvider)
		}
	default:
		return fmt.Errorf("unknown PARSER %q", c.Parser)
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// LLMAPIKey returns the API key of the configured LLM provider.
func (c *Config) LLMAPIKey() string {
	switch c.LLMProvider {
	case "anthropic":
		return c.AnthropicAPIKey
	case "openai":
		return c.OpenAIAPIKey
	case "gemini":
		return c.GeminiAPIKey
	default:
		return ""
	}
}

// Location resolves Timezone. All dates and times are read in this zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
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
