// Package rag provides the retrieval side of the chatbot: embedding
// generation with a deterministic offline fallback, a Redis-backed embedding
// cache, the Weaviate vector store and the document chunker.
package rag

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"
)

// EmbeddingDimension is the vector size of text-embedding-3-small and of the
// deterministic fallback vectors.
const EmbeddingDimension = 1536

const defaultEmbeddingBaseURL = "https://api.openai.com"

// EmbeddingCache is the cache consulted in front of the live embeddings
// endpoint. A nil cache disables caching.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, text, modelName string) ([]float32, bool)
	SetEmbedding(ctx context.Context, text, modelName string, embedding []float32) error
}

// EmbeddingConfig configures the embedding service.
type EmbeddingConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// EmbeddingService turns text into fixed-length vectors. EmbedText never
// fails: when the live endpoint is unusable it produces a deterministic
// pseudo-random vector seeded from the text, so identical text always maps to
// the identical vector.
type EmbeddingService struct {
	config *EmbeddingConfig
	client *http.Client
	cache  EmbeddingCache
	logger *slog.Logger
}

// embeddingRequest is the /v1/embeddings request body.
type embeddingRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

// embeddingResponse is the subset of the embeddings response we consume.
type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// NewEmbeddingService creates an embedding service. An empty API key is
// valid; every embedding then comes from the deterministic fallback.
func NewEmbeddingService(config *EmbeddingConfig, cache EmbeddingCache, logger *slog.Logger) *EmbeddingService {
	if logger == nil {
		logger = slog.Default()
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultEmbeddingBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &EmbeddingService{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 50,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		cache:  cache,
		logger: logger,
	}
}

// EmbedText returns a vector of EmbeddingDimension floats for the text.
func (s *EmbeddingService) EmbedText(ctx context.Context, text string) []float32 {
	if s.cache != nil {
		if embedding, ok := s.cache.GetEmbedding(ctx, text, s.config.Model); ok {
			return embedding
		}
	}

	embedding, err := s.embedLive(ctx, text)
	if err != nil {
		s.logger.Warn("Embedding service failed, using deterministic fallback",
			slog.String("error", err.Error()))
		return FallbackEmbedding(text)
	}

	if s.cache != nil {
		if err := s.cache.SetEmbedding(ctx, text, s.config.Model, embedding); err != nil {
			s.logger.Warn("Failed to cache embedding", slog.String("error", err.Error()))
		}
	}

	return embedding
}

// embedLive calls the OpenAI embeddings endpoint.
func (s *EmbeddingService) embedLive(ctx context.Context, text string) ([]float32, error) {
	if s.config.APIKey == "" {
		return nil, fmt.Errorf("no embedding API key configured")
	}

	jsonData, err := json.Marshal(embeddingRequest{Input: text, Model: s.config.Model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/embeddings", s.config.BaseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("embedding API returned status %d: %s", resp.StatusCode, string(errBody))
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse embedding response: %w", err)
	}

	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embedding API returned no vectors")
	}

	return parsed.Data[0].Embedding, nil
}

// FallbackEmbedding derives a deterministic vector from the text: the seed is
// the low 32 bits of the MD5 digest, so repeated calls with the same text
// yield the same vector across calls and processes.
func FallbackEmbedding(text string) []float32 {
	sum := md5.Sum([]byte(text))
	seed := binary.BigEndian.Uint32(sum[12:16])

	rng := rand.New(rand.NewSource(int64(seed)))
	embedding := make([]float32, EmbeddingDimension)
	for i := range embedding {
		embedding[i] = float32(rng.Float64())
	}
	return embedding
}
