// Package services assembles the chatbot's components from configuration and
// manages their lifecycle.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/thc1006/robotics-rag/internal/agents"
	"github.com/thc1006/robotics-rag/internal/llm"
	"github.com/thc1006/robotics-rag/internal/llm/providers"
	"github.com/thc1006/robotics-rag/pkg/config"
	"github.com/thc1006/robotics-rag/pkg/monitoring"
	"github.com/thc1006/robotics-rag/pkg/rag"
)

// RAGService owns every long-lived component of the chatbot. Initialize
// builds them in dependency order; Shutdown releases them in reverse.
type RAGService struct {
	cfg    *config.Config
	logger *slog.Logger

	metrics    *monitoring.Metrics
	cache      *rag.RedisCache
	embeddings *rag.EmbeddingService
	store      rag.VectorStore
	chat       *llm.ChatService
	registry   *agents.Registry

	initialized bool
}

// NewRAGService creates an unstarted service container.
func NewRAGService(cfg *config.Config, logger *slog.Logger) *RAGService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RAGService{
		cfg:    cfg,
		logger: logger,
	}
}

// Initialize builds all components. Optional dependencies degrade instead of
// failing startup: an unreachable Redis disables the embedding cache and an
// unreachable Weaviate swaps in a no-op store, keeping the chat endpoints
// alive on fallback answers.
func (s *RAGService) Initialize(ctx context.Context) error {
	if s.initialized {
		return fmt.Errorf("service already initialized")
	}

	s.metrics = monitoring.NewMetrics()

	var cache rag.EmbeddingCache
	if s.cfg.CacheEnabled {
		cacheCfg := rag.DefaultRedisCacheConfig()
		cacheCfg.Address = s.cfg.RedisAddress
		cacheCfg.Password = s.cfg.RedisPassword
		cacheCfg.Database = s.cfg.RedisDatabase
		cacheCfg.EmbeddingTTL = s.cfg.EmbeddingCacheTTL

		redisCache, err := rag.NewRedisCache(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn("Redis unavailable, embedding cache disabled",
				slog.String("address", s.cfg.RedisAddress),
				slog.String("error", err.Error()),
			)
		} else {
			s.cache = redisCache
			cache = &observedCache{inner: redisCache, metrics: s.metrics}
			s.logger.Info("Embedding cache enabled", slog.String("address", s.cfg.RedisAddress))
		}
	}

	s.embeddings = rag.NewEmbeddingService(&rag.EmbeddingConfig{
		APIKey:  s.cfg.OpenAIAPIKey,
		Model:   s.cfg.EmbeddingModel,
		Timeout: s.cfg.LLMTimeout,
	}, cache, s.logger)

	store, err := rag.NewWeaviateStore(&rag.WeaviateConfig{
		URL:            s.cfg.WeaviateURL,
		APIKey:         s.cfg.WeaviateAPIKey,
		Class:          s.cfg.WeaviateClass,
		ScoreThreshold: s.cfg.ScoreThreshold,
	}, s.logger)
	if err != nil {
		s.logger.Warn("Vector store unavailable, continuing without retrieval",
			slog.String("url", s.cfg.WeaviateURL),
			slog.String("error", err.Error()),
		)
		s.store = rag.NewNoopStore()
	} else {
		if err := store.EnsureCollection(ctx); err != nil {
			s.logger.Warn("Collection initialization failed, will retry on upload",
				slog.String("class", s.cfg.WeaviateClass),
				slog.String("error", err.Error()),
			)
		}
		s.store = store
	}

	s.chat = llm.NewChatService(s.cfg, providers.NewFactory(), s.logger)
	s.chat.SetMetrics(s.metrics)

	s.registry = agents.NewDefaultRegistry()

	s.initialized = true
	s.logger.Info("RAG service initialized",
		slog.String("llm_provider", s.cfg.LLMProvider),
		slog.Bool("cache_enabled", s.cache != nil),
		slog.Int("agents", s.registry.Count()),
	)
	return nil
}

// Metrics returns the Prometheus registry wrapper.
func (s *RAGService) Metrics() *monitoring.Metrics { return s.metrics }

// Embeddings returns the embedding service.
func (s *RAGService) Embeddings() *rag.EmbeddingService { return s.embeddings }

// Store returns the vector store.
func (s *RAGService) Store() rag.VectorStore { return s.store }

// Chat returns the generation orchestrator.
func (s *RAGService) Chat() *llm.ChatService { return s.chat }

// Registry returns the subagent registry.
func (s *RAGService) Registry() *agents.Registry { return s.registry }

// Shutdown releases all held resources.
func (s *RAGService) Shutdown(ctx context.Context) error {
	var firstErr error

	if s.chat != nil {
		if err := s.chat.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.logger.Info("RAG service stopped")
	return firstErr
}

// observedCache counts cache hits and misses around the real cache.
type observedCache struct {
	inner   rag.EmbeddingCache
	metrics *monitoring.Metrics
}

func (c *observedCache) GetEmbedding(ctx context.Context, text, modelName string) ([]float32, bool) {
	vec, ok := c.inner.GetEmbedding(ctx, text, modelName)
	if ok {
		c.metrics.RecordEmbeddingCacheHit()
	} else {
		c.metrics.RecordEmbeddingCacheMiss()
	}
	return vec, ok
}

func (c *observedCache) SetEmbedding(ctx context.Context, text, modelName string, embedding []float32) error {
	return c.inner.SetEmbedding(ctx, text, modelName, embedding)
}
