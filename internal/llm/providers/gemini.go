package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiProvider implements the Provider interface against the Google
// Generative Language API. Gemini has no separate system-message slot in this
// API shape, so the system instruction and the query are joined into a single
// prompt string.
type GeminiProvider struct {
	config *Config
	client *http.Client
}

// geminiRequest is the generateContent request body.
type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

// geminiResponse is the subset of the generateContent response we consume.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// NewGeminiProvider creates a Gemini-backed text-generation provider.
func NewGeminiProvider(config *Config) (Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil: %w", ErrInvalidConfiguration)
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrMissingCredential)
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultGeminiBaseURL
	}

	return &GeminiProvider{
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

// Generate makes a single generateContent call. There is no inner retry with
// an alternative prompt; a failed attempt is reported to the caller.
func (p *GeminiProvider) Generate(ctx context.Context, req *Request) (*Result, error) {
	if req == nil || req.Query == "" {
		return nil, fmt.Errorf("query cannot be empty: %w", ErrInvalidConfiguration)
	}

	prompt := req.Query
	if req.System != "" {
		prompt = fmt.Sprintf("%s\n\nUser: %s", req.System, req.Query)
	}

	body := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		p.config.BaseURL, p.config.Model, url.QueryEscape(p.config.APIKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, fmt.Errorf("gemini returned status %d: %s: %w", resp.StatusCode, string(errBody), ErrAuthenticationFailed)
		case http.StatusTooManyRequests:
			return nil, fmt.Errorf("gemini returned status %d: %s: %w", resp.StatusCode, string(errBody), ErrRateLimited)
		default:
			return nil, fmt.Errorf("gemini returned status %d: %s", resp.StatusCode, string(errBody))
		}
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse gemini response: %w", err)
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}
	text := parsed.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return nil, fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}

	return &Result{
		Text:       text,
		Model:      p.config.Model,
		TokensUsed: parsed.UsageMetadata.TotalTokenCount,
	}, nil
}

// GetProviderInfo returns metadata about the Gemini provider.
func (p *GeminiProvider) GetProviderInfo() ProviderInfo {
	return ProviderInfo{
		Name:              "google",
		Version:           "1.0.0",
		Description:       "Google Gemini generative language API",
		RequiresAuth:      true,
		SupportedFeatures: []string{"text_generation", "single_prompt"},
	}
}

// ValidateConfig validates the provider's configuration.
func (p *GeminiProvider) ValidateConfig() error {
	if p.config.APIKey == "" {
		return fmt.Errorf("gemini: %w", ErrMissingCredential)
	}
	if p.config.Model == "" {
		return fmt.Errorf("gemini model is required: %w", ErrInvalidConfiguration)
	}
	return nil
}

// Close releases idle connections held by the HTTP client.
func (p *GeminiProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
