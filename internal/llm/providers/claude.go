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

const (
	defaultClaudeBaseURL = "https://api.anthropic.com"
	claudeAPIVersion     = "2023-06-01"
)

// ClaudeProvider implements the Provider interface against the Anthropic
// Messages API. The system prompt travels in the dedicated system field and
// the query as a single user message.
type ClaudeProvider struct {
	config *Config
	client *http.Client
}

// claudeRequest is the /v1/messages request body.
type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system,omitempty"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// claudeResponse is the subset of the messages response we consume.
type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model string `json:"model"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewClaudeProvider creates a Claude-backed text-generation provider.
func NewClaudeProvider(config *Config) (Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil: %w", ErrInvalidConfiguration)
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("claude: %w", ErrMissingCredential)
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultClaudeBaseURL
	}

	return &ClaudeProvider{
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

// Generate makes a single messages call against the Anthropic API.
func (p *ClaudeProvider) Generate(ctx context.Context, req *Request) (*Result, error) {
	if req == nil || req.Query == "" {
		return nil, fmt.Errorf("query cannot be empty: %w", ErrInvalidConfiguration)
	}

	body := claudeRequest{
		Model:     p.config.Model,
		MaxTokens: p.config.MaxTokens,
		System:    req.System,
		Messages: []claudeMessage{
			{Role: "user", Content: req.Query},
		},
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/messages", p.config.BaseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.config.APIKey)
	httpReq.Header.Set("anthropic-version", claudeAPIVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("claude request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, fmt.Errorf("claude returned status %d: %s: %w", resp.StatusCode, string(errBody), ErrAuthenticationFailed)
		case http.StatusTooManyRequests:
			retryAfter := resp.Header.Get("Retry-After")
			return nil, fmt.Errorf("claude returned status %d (retry-after %q): %w", resp.StatusCode, retryAfter, ErrRateLimited)
		default:
			return nil, fmt.Errorf("claude returned status %d: %s", resp.StatusCode, string(errBody))
		}
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed claudeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse claude response: %w", err)
	}

	if len(parsed.Content) == 0 || parsed.Content[0].Text == "" {
		return nil, fmt.Errorf("claude: %w", ErrEmptyResponse)
	}

	model := parsed.Model
	if model == "" {
		model = p.config.Model
	}

	return &Result{
		Text:       parsed.Content[0].Text,
		Model:      model,
		TokensUsed: parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
	}, nil
}

// GetProviderInfo returns metadata about the Claude provider.
func (p *ClaudeProvider) GetProviderInfo() ProviderInfo {
	return ProviderInfo{
		Name:              "claude",
		Version:           "1.0.0",
		Description:       "Anthropic Claude messages API",
		RequiresAuth:      true,
		SupportedFeatures: []string{"text_generation", "system_prompt"},
	}
}

// ValidateConfig validates the provider's configuration.
func (p *ClaudeProvider) ValidateConfig() error {
	if p.config.APIKey == "" {
		return fmt.Errorf("claude: %w", ErrMissingCredential)
	}
	if p.config.Model == "" {
		return fmt.Errorf("claude model is required: %w", ErrInvalidConfiguration)
	}
	return nil
}

// Close releases idle connections held by the HTTP client.
func (p *ClaudeProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
