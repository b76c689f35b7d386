package providers

import (
	"fmt"
)

// DefaultFactory is the standard implementation of the Factory interface.
type DefaultFactory struct {
	// Registry of provider constructors
	constructors map[ProviderType]func(*Config) (Provider, error)
}

// NewFactory creates a new provider factory with all supported providers registered.
func NewFactory() Factory {
	f := &DefaultFactory{
		constructors: make(map[ProviderType]func(*Config) (Provider, error)),
	}

	// Register provider constructors for all supported provider types
	f.RegisterProvider(ProviderTypeGoogle, func(config *Config) (Provider, error) {
		return NewGeminiProvider(config)
	})
	f.RegisterProvider(ProviderTypeClaude, func(config *Config) (Provider, error) {
		return NewClaudeProvider(config)
	})
	f.RegisterProvider(ProviderTypeOpenAI, func(config *Config) (Provider, error) {
		return NewOpenAIProvider(config)
	})

	return f
}

// RegisterProvider registers a constructor function for a provider type.
// This allows for extensibility - new providers can be added by registering constructors.
func (f *DefaultFactory) RegisterProvider(providerType ProviderType, constructor func(*Config) (Provider, error)) {
	f.constructors[providerType] = constructor
}

// CreateProvider creates a new provider instance based on the config.
// A provider whose credential is absent is reported via ErrMissingCredential
// so callers can treat it as unavailable rather than misconfigured.
func (f *DefaultFactory) CreateProvider(config *Config) (Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	// Validate the configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Get the constructor for the requested provider type
	constructor, exists := f.constructors[config.Type]
	if !exists {
		return nil, fmt.Errorf("provider type %s: %w", config.Type, ErrProviderNotSupported)
	}

	// Create the provider instance
	provider, err := constructor(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider %s: %w", config.Type, err)
	}

	// Validate the provider configuration
	if err := provider.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("provider configuration validation failed: %w", err)
	}

	return provider, nil
}

// GetSupportedProviders returns a list of supported provider types.
func (f *DefaultFactory) GetSupportedProviders() []ProviderType {
	providers := make([]ProviderType, 0, len(f.constructors))
	for providerType := range f.constructors {
		providers = append(providers, providerType)
	}
	return providers
}

// ValidateProviderConfig validates configuration for a specific provider type.
func (f *DefaultFactory) ValidateProviderConfig(providerType ProviderType, config *Config) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if config.Type != providerType {
		return fmt.Errorf("config type %s does not match requested provider type %s", config.Type, providerType)
	}

	// Use the provider's validation logic
	constructor, exists := f.constructors[providerType]
	if !exists {
		return fmt.Errorf("provider type %s: %w", providerType, ErrProviderNotSupported)
	}

	// Create a temporary provider to validate the config
	provider, err := constructor(config)
	if err != nil {
		return fmt.Errorf("failed to create provider for validation: %w", err)
	}
	defer provider.Close() // Clean up the temporary provider

	return provider.ValidateConfig()
}
