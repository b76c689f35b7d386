// Package providers defines the hosted text-generation backends for the
// robotics-rag chat service. Each provider wraps one vendor HTTP API behind a
// common Generate contract so the response orchestrator can try them in order
// without knowing vendor specifics.
package providers

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider represents the core interface for hosted text-generation services.
type Provider interface {
	// Generate produces a completion for the given request. Implementations
	// make exactly one remote call per invocation; callers decide whether to
	// move on to another provider.
	Generate(ctx context.Context, req *Request) (*Result, error)

	// GetProviderInfo returns metadata about the provider implementation.
	GetProviderInfo() ProviderInfo

	// ValidateConfig validates the provider's configuration.
	ValidateConfig() error

	// Close performs cleanup of resources (connections, clients, etc.).
	Close() error
}

// Message is a single conversation turn.
type Message struct {
	// Role is "system", "user" or "assistant".
	Role string `json:"role"`

	// Content is the turn's text.
	Content string `json:"content"`
}

// Request carries everything a provider needs for one generation attempt.
// The orchestrator builds it once and hands the same value to each provider
// it tries, so implementations must not mutate it.
type Request struct {
	// System is the system instruction, already including any retrieved
	// context rendered into it.
	System string `json:"system"`

	// Query is the current user question.
	Query string `json:"query"`

	// History holds prior conversation turns, oldest first. Providers
	// without a multi-turn API ignore it.
	History []Message `json:"history,omitempty"`
}

// Result is the outcome of a successful generation attempt.
type Result struct {
	// Text is the generated completion. Implementations never return an
	// empty Text with a nil error; an empty completion is ErrEmptyResponse.
	Text string `json:"text"`

	// Model identifies the concrete model that produced the text.
	Model string `json:"model"`

	// TokensUsed records token consumption when the vendor reports it.
	TokensUsed int `json:"tokens_used,omitempty"`
}

// ProviderInfo contains metadata about a provider implementation.
type ProviderInfo struct {
	// Name is the provider identifier (google, claude, openai)
	Name string `json:"name"`

	// Version is the provider implementation version
	Version string `json:"version"`

	// Description provides a human-readable description
	Description string `json:"description"`

	// RequiresAuth indicates if the provider needs authentication
	RequiresAuth bool `json:"requires_auth"`

	// SupportedFeatures lists capabilities of this provider
	SupportedFeatures []string `json:"supported_features"`
}

// ProviderType represents the available text-generation provider types.
// The values match the LLM_PROVIDER configuration selector.
type ProviderType string

const (
	// ProviderTypeGoogle represents the Google Gemini provider
	ProviderTypeGoogle ProviderType = "google"

	// ProviderTypeClaude represents the Anthropic Claude provider
	ProviderTypeClaude ProviderType = "claude"

	// ProviderTypeOpenAI represents the OpenAI provider
	ProviderTypeOpenAI ProviderType = "openai"
)

// IsValid checks if the provider type is supported.
func (pt ProviderType) IsValid() bool {
	switch pt {
	case ProviderTypeGoogle, ProviderTypeClaude, ProviderTypeOpenAI:
		return true
	default:
		return false
	}
}

// String returns the string representation of the provider type.
func (pt ProviderType) String() string {
	return string(pt)
}

// Config holds configuration for provider initialization.
type Config struct {
	// Type specifies which provider to use
	Type ProviderType `json:"type"`

	// APIKey authenticates against the vendor API. An empty key makes the
	// provider unavailable rather than misconfigured.
	APIKey string `json:"api_key,omitempty"`

	// BaseURL allows overriding the default API endpoint
	BaseURL string `json:"base_url,omitempty"`

	// Model specifies the model to use (provider-specific)
	Model string `json:"model,omitempty"`

	// MaxTokens caps the completion length
	MaxTokens int `json:"max_tokens"`

	// Temperature controls sampling randomness, in [0,1]
	Temperature float64 `json:"temperature"`

	// Timeout for API requests
	Timeout time.Duration `json:"timeout"`
}

// Validate ensures the configuration is valid for the specified provider type.
func (c *Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("provider type %s: %w", c.Type, ErrProviderNotSupported)
	}

	if c.Model == "" {
		return fmt.Errorf("model is required for provider %s: %w", c.Type, ErrInvalidConfiguration)
	}

	if c.MaxTokens < 0 {
		return fmt.Errorf("max tokens must be positive: %w", ErrInvalidConfiguration)
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2048
	}

	if c.Temperature < 0 || c.Temperature > 1 {
		return fmt.Errorf("temperature must be in [0,1]: %w", ErrInvalidConfiguration)
	}

	// Validate timeout - set default if zero, error if negative
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be positive: %w", ErrInvalidConfiguration)
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}

	return nil
}

// Factory interface for creating providers based on configuration.
type Factory interface {
	// CreateProvider creates a new provider instance based on the config.
	CreateProvider(config *Config) (Provider, error)

	// GetSupportedProviders returns a list of supported provider types.
	GetSupportedProviders() []ProviderType

	// ValidateProviderConfig validates configuration for a specific provider type.
	ValidateProviderConfig(providerType ProviderType, config *Config) error
}

// Common errors that providers may return.
var (
	// ErrProviderNotSupported indicates the requested provider is not available
	ErrProviderNotSupported = errors.New("provider not supported")

	// ErrInvalidConfiguration indicates the provider configuration is invalid
	ErrInvalidConfiguration = errors.New("invalid provider configuration")

	// ErrMissingCredential indicates no API key was configured for the provider
	ErrMissingCredential = errors.New("missing provider credential")

	// ErrAuthenticationFailed indicates authentication with the provider failed
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrRateLimited indicates the provider has rate limited the request
	ErrRateLimited = errors.New("rate limited")

	// ErrEmptyResponse indicates the provider returned no usable completion
	ErrEmptyResponse = errors.New("provider returned empty response")

	// ErrProviderUnavailable indicates the provider service is unavailable
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// IsUnavailableError checks if an error means the provider cannot be used at
// all, as opposed to a single call failing.
func IsUnavailableError(err error) bool {
	return errors.Is(err, ErrMissingCredential) ||
		errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrProviderNotSupported)
}

// IsAuthError checks if an error is authentication-related.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthenticationFailed)
}

// IsConfigError checks if an error is configuration-related.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrProviderNotSupported)
}
