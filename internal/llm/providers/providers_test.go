package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t ProviderType, baseURL, model string) *Config {
	return &Config{
		Type:        t,
		APIKey:      "test-key",
		BaseURL:     baseURL,
		Model:       model,
		MaxTokens:   2048,
		Temperature: 0.7,
		Timeout:     5 * time.Second,
	}
}

func TestGeminiProviderGenerate(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		req      *Request
		wantText string
		wantErr  error
	}{
		{
			name: "successful generation joins system and query",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Contains(t, r.URL.Path, "gemini-pro:generateContent")
				assert.Equal(t, "test-key", r.URL.Query().Get("key"))

				body, err := io.ReadAll(r.Body)
				require.NoError(t, err)
				var req geminiRequest
				require.NoError(t, json.Unmarshal(body, &req))
				require.Len(t, req.Contents, 1)
				require.Len(t, req.Contents[0].Parts, 1)
				assert.Equal(t, "system text\n\nUser: what is a robot?", req.Contents[0].Parts[0].Text)

				json.NewEncoder(w).Encode(map[string]interface{}{
					"candidates": []map[string]interface{}{
						{"content": map[string]interface{}{
							"parts": []map[string]string{{"text": "a machine"}},
						}},
					},
				})
			},
			req:      &Request{System: "system text", Query: "what is a robot?"},
			wantText: "a machine",
		},
		{
			name: "empty candidates reported as empty response",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]interface{}{"candidates": []interface{}{}})
			},
			req:     &Request{Query: "hello"},
			wantErr: ErrEmptyResponse,
		},
		{
			name: "unauthorized maps to auth error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			},
			req:     &Request{Query: "hello"},
			wantErr: ErrAuthenticationFailed,
		},
		{
			name: "rate limit surfaced",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			req:     &Request{Query: "hello"},
			wantErr: ErrRateLimited,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			provider, err := NewGeminiProvider(testConfig(ProviderTypeGoogle, server.URL, "gemini-pro"))
			require.NoError(t, err)
			defer provider.Close()

			result, err := provider.Generate(context.Background(), tt.req)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantText, result.Text)
			assert.Equal(t, "gemini-pro", result.Model)
		})
	}
}

func TestClaudeProviderGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, claudeAPIVersion, r.Header.Get("anthropic-version"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req claudeRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "claude-3-sonnet-20240229", req.Model)
		assert.Equal(t, 2048, req.MaxTokens)
		assert.Equal(t, "system text", req.System)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "what is a robot?", req.Messages[0].Content)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"model": "claude-3-sonnet-20240229",
			"content": []map[string]string{
				{"type": "text", "text": "a machine"},
			},
		})
	}))
	defer server.Close()

	provider, err := NewClaudeProvider(testConfig(ProviderTypeClaude, server.URL, "claude-3-sonnet-20240229"))
	require.NoError(t, err)
	defer provider.Close()

	result, err := provider.Generate(context.Background(), &Request{
		System: "system text",
		Query:  "what is a robot?",
	})
	require.NoError(t, err)
	assert.Equal(t, "a machine", result.Text)
	assert.Equal(t, "claude-3-sonnet-20240229", result.Model)
}

func TestClaudeProviderRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	provider, err := NewClaudeProvider(testConfig(ProviderTypeClaude, server.URL, "claude-3-sonnet-20240229"))
	require.NoError(t, err)
	defer provider.Close()

	_, err = provider.Generate(context.Background(), &Request{Query: "hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Contains(t, err.Error(), "30")
}

func TestOpenAIProviderGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req openAIRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "gpt-4", req.Model)

		// [system] + two history turns + [user query]
		require.Len(t, req.Messages, 4)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.Equal(t, "assistant", req.Messages[2].Role)
		assert.Equal(t, "user", req.Messages[3].Role)
		assert.Equal(t, "and humanoids?", req.Messages[3].Content)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"model": "gpt-4",
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "humanoids resemble humans"}},
			},
			"usage": map[string]int{"total_tokens": 42},
		})
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(testConfig(ProviderTypeOpenAI, server.URL, "gpt-4"))
	require.NoError(t, err)
	defer provider.Close()

	result, err := provider.Generate(context.Background(), &Request{
		System: "system text",
		Query:  "and humanoids?",
		History: []Message{
			{Role: "user", Content: "what is a robot?"},
			{Role: "assistant", Content: "a machine"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "humanoids resemble humans", result.Text)
	assert.Equal(t, "gpt-4", result.Model)
	assert.Equal(t, 42, result.TokensUsed)
}

func TestOpenAIProviderEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(testConfig(ProviderTypeOpenAI, server.URL, "gpt-4"))
	require.NoError(t, err)
	defer provider.Close()

	_, err = provider.Generate(context.Background(), &Request{Query: "hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestProvidersRequireCredentials(t *testing.T) {
	tests := []struct {
		name        string
		constructor func(*Config) (Provider, error)
		providerTy  ProviderType
	}{
		{"gemini", NewGeminiProvider, ProviderTypeGoogle},
		{"claude", NewClaudeProvider, ProviderTypeClaude},
		{"openai", NewOpenAIProvider, ProviderTypeOpenAI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(tt.providerTy, "", "some-model")
			cfg.APIKey = ""

			_, err := tt.constructor(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMissingCredential)
			assert.True(t, IsUnavailableError(err))
		})
	}
}

func TestProviderContextCancellation(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	provider, err := NewOpenAIProvider(testConfig(ProviderTypeOpenAI, server.URL, "gpt-4"))
	require.NoError(t, err)
	defer provider.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = provider.Generate(ctx, &Request{Query: "hello"})
	require.Error(t, err)
}
