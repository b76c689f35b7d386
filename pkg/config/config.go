// Package config loads and validates the service configuration from
// environment variables. The configuration is loaded once at startup and is
// read-only afterward.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the RAG chatbot service.
type Config struct {
	// Provider credentials. An empty key makes the corresponding provider
	// unavailable rather than misconfigured.
	OpenAIAPIKey string
	GeminiAPIKey string
	ClaudeAPIKey string

	// LLMProvider selects the active provider: "openai", "google" or "claude".
	LLMProvider string

	// Model identifiers per provider.
	ChatModel      string
	GeminiModel    string
	ClaudeModel    string
	EmbeddingModel string

	// Generation parameters.
	MaxTokens   int
	Temperature float64
	TopKResults int

	// Vector store.
	WeaviateURL    string
	WeaviateAPIKey string
	WeaviateClass  string
	ScoreThreshold float64

	// HTTP server.
	APIHost        string
	APIPort        string
	LogLevel       string
	MaxRequestSize int64

	// CORS.
	CORSEnabled    bool
	AllowedOrigins []string

	// Authentication (optional, disabled by default).
	AuthEnabled  bool
	JWTSecretKey string

	// Embedding cache (optional).
	CacheEnabled      bool
	RedisAddress      string
	RedisPassword     string
	RedisDatabase     int
	EmbeddingCacheTTL time.Duration

	// FallbackKBFile optionally overrides the built-in fallback knowledge
	// base with an ordered YAML file.
	FallbackKBFile string

	// Timeouts.
	RequestTimeout   time.Duration
	LLMTimeout       time.Duration
	GracefulShutdown time.Duration
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLMProvider:       "openai",
		ChatModel:         "gpt-4",
		GeminiModel:       "gemini-pro",
		ClaudeModel:       "claude-3-sonnet-20240229",
		EmbeddingModel:    "text-embedding-3-small",
		MaxTokens:         2048,
		Temperature:       0.7,
		TopKResults:       5,
		WeaviateURL:       "http://localhost:8080",
		WeaviateClass:     "TextbookChunk",
		ScoreThreshold:    0.5,
		APIHost:           "0.0.0.0",
		APIPort:           "8000",
		LogLevel:          "info",
		MaxRequestSize:    10 * 1024 * 1024,
		CORSEnabled:       true,
		AllowedOrigins:    []string{"*"},
		AuthEnabled:       false,
		CacheEnabled:      false,
		RedisAddress:      "localhost:6379",
		RedisDatabase:     0,
		EmbeddingCacheTTL: 24 * time.Hour,
		RequestTimeout:    60 * time.Second,
		LLMTimeout:        30 * time.Second,
		GracefulShutdown:  30 * time.Second,
	}
}

// LoadConfig reads configuration from the environment, applying defaults and
// accumulating validation errors so the operator sees every problem at once.
// A .env file in the working directory is loaded when present.
func LoadConfig() (*Config, error) {
	// Missing .env is not an error; environment variables still apply.
	_ = godotenv.Load()

	cfg := DefaultConfig()
	var validationErrors []string

	cfg.OpenAIAPIKey = GetEnvOrDefault("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.GeminiAPIKey = GetEnvOrDefault("GEMINI_API_KEY", cfg.GeminiAPIKey)
	cfg.ClaudeAPIKey = GetEnvOrDefault("CLAUDE_API_KEY", cfg.ClaudeAPIKey)

	// The selector is matched against lowercase provider identifiers, so
	// normalize it once here.
	cfg.LLMProvider = strings.ToLower(getEnvWithValidation("LLM_PROVIDER", cfg.LLMProvider, validateLLMProvider, &validationErrors))
	cfg.ChatModel = GetEnvOrDefault("CHAT_MODEL", cfg.ChatModel)
	cfg.GeminiModel = GetEnvOrDefault("GEMINI_MODEL", cfg.GeminiModel)
	cfg.ClaudeModel = GetEnvOrDefault("CLAUDE_MODEL", cfg.ClaudeModel)
	cfg.EmbeddingModel = GetEnvOrDefault("EMBEDDING_MODEL", cfg.EmbeddingModel)

	cfg.MaxTokens = parseIntWithValidation("MAX_TOKENS", cfg.MaxTokens, validatePositiveInt, &validationErrors)
	cfg.Temperature = parseFloatWithValidation("TEMPERATURE", cfg.Temperature, validateUnitInterval, &validationErrors)
	cfg.TopKResults = parseIntWithValidation("TOP_K_RESULTS", cfg.TopKResults, validatePositiveInt, &validationErrors)

	cfg.WeaviateURL = getEnvWithValidation("WEAVIATE_URL", cfg.WeaviateURL, validateURL, &validationErrors)
	cfg.WeaviateAPIKey = GetEnvOrDefault("WEAVIATE_API_KEY", cfg.WeaviateAPIKey)
	cfg.WeaviateClass = GetEnvOrDefault("WEAVIATE_CLASS", cfg.WeaviateClass)
	cfg.ScoreThreshold = parseFloatWithValidation("SCORE_THRESHOLD", cfg.ScoreThreshold, validateUnitInterval, &validationErrors)

	cfg.APIHost = GetEnvOrDefault("API_HOST", cfg.APIHost)
	cfg.APIPort = getEnvWithValidation("API_PORT", cfg.APIPort, validatePort, &validationErrors)
	cfg.LogLevel = getEnvWithValidation("LOG_LEVEL", cfg.LogLevel, validateLogLevel, &validationErrors)
	cfg.MaxRequestSize = parseInt64WithValidation("MAX_REQUEST_SIZE", cfg.MaxRequestSize, validatePositiveInt64, &validationErrors)

	cfg.CORSEnabled = parseBoolWithDefault("CORS_ENABLED", cfg.CORSEnabled)
	if origins := GetEnvOrDefault("ALLOWED_ORIGINS", ""); origins != "" {
		cfg.AllowedOrigins = parseStringSlice(origins)
	}

	cfg.AuthEnabled = parseBoolWithDefault("AUTH_ENABLED", cfg.AuthEnabled)
	cfg.JWTSecretKey = GetEnvOrDefault("JWT_SECRET_KEY", cfg.JWTSecretKey)

	cfg.CacheEnabled = parseBoolWithDefault("CACHE_ENABLED", cfg.CacheEnabled)
	cfg.RedisAddress = GetEnvOrDefault("REDIS_ADDR", cfg.RedisAddress)
	cfg.RedisPassword = GetEnvOrDefault("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDatabase = parseIntWithValidation("REDIS_DB", cfg.RedisDatabase, validateNonNegativeInt, &validationErrors)
	cfg.EmbeddingCacheTTL = parseDurationWithValidation("EMBEDDING_CACHE_TTL", cfg.EmbeddingCacheTTL, &validationErrors)

	cfg.FallbackKBFile = GetEnvOrDefault("FALLBACK_KB_FILE", cfg.FallbackKBFile)

	cfg.RequestTimeout = parseDurationWithValidation("REQUEST_TIMEOUT", cfg.RequestTimeout, &validationErrors)
	cfg.LLMTimeout = parseDurationWithValidation("LLM_TIMEOUT", cfg.LLMTimeout, &validationErrors)
	cfg.GracefulShutdown = parseDurationWithValidation("GRACEFUL_SHUTDOWN", cfg.GracefulShutdown, &validationErrors)

	if err := cfg.Validate(); err != nil {
		validationErrors = append(validationErrors, err.Error())
	}

	if len(validationErrors) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(validationErrors, "; "))
	}

	return cfg, nil
}

// Validate performs cross-field validation that individual parsers cannot.
func (c *Config) Validate() error {
	if c.AuthEnabled && c.JWTSecretKey == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required when AUTH_ENABLED is true")
	}

	if c.AuthEnabled && len(c.JWTSecretKey) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters")
	}

	return nil
}

// GetEnvOrDefault returns the environment value for key, or defaultValue when
// the variable is unset or empty.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Helper functions for validation and parsing.

func getEnvWithValidation(key, defaultValue string, validator func(string) error, errors *[]string) string {
	value := GetEnvOrDefault(key, defaultValue)
	if err := validator(value); err != nil {
		*errors = append(*errors, fmt.Sprintf("%s: %v", key, err))
	}
	return value
}

func parseIntWithValidation(key string, defaultValue int, validator func(int) error, errors *[]string) int {
	if valueStr := GetEnvOrDefault(key, ""); valueStr != "" {
		if value, err := strconv.Atoi(valueStr); err == nil {
			if err := validator(value); err != nil {
				*errors = append(*errors, fmt.Sprintf("%s: %v", key, err))
				return defaultValue
			}
			return value
		}
		*errors = append(*errors, fmt.Sprintf("%s: invalid integer format", key))
	}
	return defaultValue
}

func parseInt64WithValidation(key string, defaultValue int64, validator func(int64) error, errors *[]string) int64 {
	if valueStr := GetEnvOrDefault(key, ""); valueStr != "" {
		if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
			if err := validator(value); err != nil {
				*errors = append(*errors, fmt.Sprintf("%s: %v", key, err))
				return defaultValue
			}
			return value
		}
		*errors = append(*errors, fmt.Sprintf("%s: invalid integer format", key))
	}
	return defaultValue
}

func parseFloatWithValidation(key string, defaultValue float64, validator func(float64) error, errors *[]string) float64 {
	if valueStr := GetEnvOrDefault(key, ""); valueStr != "" {
		if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
			if err := validator(value); err != nil {
				*errors = append(*errors, fmt.Sprintf("%s: %v", key, err))
				return defaultValue
			}
			return value
		}
		*errors = append(*errors, fmt.Sprintf("%s: invalid float format", key))
	}
	return defaultValue
}

func parseDurationWithValidation(key string, defaultValue time.Duration, errors *[]string) time.Duration {
	if valueStr := GetEnvOrDefault(key, ""); valueStr != "" {
		if d, err := time.ParseDuration(valueStr); err == nil {
			if d <= 0 {
				*errors = append(*errors, fmt.Sprintf("%s: duration must be positive", key))
				return defaultValue
			}
			return d
		}
		*errors = append(*errors, fmt.Sprintf("%s: invalid duration format", key))
	}
	return defaultValue
}

func parseBoolWithDefault(key string, defaultValue bool) bool {
	if valueStr := GetEnvOrDefault(key, ""); valueStr != "" {
		return valueStr == "true" || valueStr == "1"
	}
	return defaultValue
}

func parseStringSlice(s string) []string {
	if s == "" {
		return []string{}
	}
	result := []string{}
	for _, item := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Validation functions.

func validatePort(port string) error {
	p, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("invalid port number")
	}
	if p < 1 || p > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}

func validateLogLevel(level string) error {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("must be one of: debug, info, warn, error")
	}
}

func validateLLMProvider(provider string) error {
	switch strings.ToLower(provider) {
	case "openai", "google", "claude":
		return nil
	default:
		return fmt.Errorf("must be one of: openai, google, claude")
	}
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("URL cannot be empty")
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return fmt.Errorf("URL must start with http:// or https://")
	}
	host := strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://")
	if host == "" {
		return fmt.Errorf("URL must include a host")
	}
	if h, _, err := net.SplitHostPort(host); err == nil && h == "" {
		return fmt.Errorf("URL must include a host")
	}
	return nil
}

func validatePositiveInt(value int) error {
	if value <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func validateNonNegativeInt(value int) error {
	if value < 0 {
		return fmt.Errorf("must be non-negative")
	}
	return nil
}

func validatePositiveInt64(value int64) error {
	if value <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func validateUnitInterval(value float64) error {
	if value < 0 || value > 1 {
		return fmt.Errorf("must be between 0 and 1")
	}
	return nil
}
