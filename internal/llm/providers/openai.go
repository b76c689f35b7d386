package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultOpenAIBaseURL = "https://api.openai.com"

// OpenAIProvider implements the Provider interface against the OpenAI chat
// completions API. It is the only provider that carries conversation history:
// the request is [system] + history + [user query].
type OpenAIProvider struct {
	config *Config
	client *http.Client
}

// openAIRequest is the /v1/chat/completions request body.
type openAIRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Messages    []Message `json:"messages"`
}

// openAIResponse is the subset of the chat completions response we consume.
type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Model string `json:"model"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// NewOpenAIProvider creates an OpenAI-backed text-generation provider.
func NewOpenAIProvider(config *Config) (Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil: %w", ErrInvalidConfiguration)
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingCredential)
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultOpenAIBaseURL
	}

	return &OpenAIProvider{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 50,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Generate makes a single chat completions call.
func (p *OpenAIProvider) Generate(ctx context.Context, req *Request) (*Result, error) {
	if req == nil || req.Query == "" {
		return nil, fmt.Errorf("query cannot be empty: %w", ErrInvalidConfiguration)
	}

	messages := make([]Message, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, Message{Role: "system", Content: req.System})
	}
	messages = append(messages, req.History...)
	messages = append(messages, Message{Role: "user", Content: req.Query})

	body := openAIRequest{
		Model:       p.config.Model,
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
		Messages:    messages,
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/chat/completions", p.config.BaseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, fmt.Errorf("openai returned status %d: %s: %w", resp.StatusCode, string(errBody), ErrAuthenticationFailed)
		case http.StatusTooManyRequests:
			return nil, fmt.Errorf("openai returned status %d: %s: %w", resp.StatusCode, string(errBody), ErrRateLimited)
		default:
			return nil, fmt.Errorf("openai returned status %d: %s", resp.StatusCode, string(errBody))
		}
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse openai response: %w", err)
	}

	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("openai: %w", ErrEmptyResponse)
	}

	model := parsed.Model
	if model == "" {
		model = p.config.Model
	}

	return &Result{
		Text:       parsed.Choices[0].Message.Content,
		Model:      model,
		TokensUsed: parsed.Usage.TotalTokens,
	}, nil
}

// GetProviderInfo returns metadata about the OpenAI provider.
func (p *OpenAIProvider) GetProviderInfo() ProviderInfo {
	return ProviderInfo{
		Name:              "openai",
		Version:           "1.0.0",
		Description:       "OpenAI chat completions API",
		RequiresAuth:      true,
		SupportedFeatures: []string{"text_generation", "system_prompt", "conversation_history"},
	}
}

// ValidateConfig validates the provider's configuration.
func (p *OpenAIProvider) ValidateConfig() error {
	if p.config.APIKey == "" {
		return fmt.Errorf("openai: %w", ErrMissingCredential)
	}
	if p.config.Model == "" {
		return fmt.Errorf("openai model is required: %w", ErrInvalidConfiguration)
	}
	return nil
}

// Close releases idle connections held by the HTTP client.
func (p *OpenAIProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
