package rag

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCacheConfig holds configuration for the Redis embedding cache.
type RedisCacheConfig struct {
	Address      string        `json:"address"`
	Password     string        `json:"password"`
	Database     int           `json:"database"`
	PoolSize     int           `json:"pool_size"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	EmbeddingTTL time.Duration `json:"embedding_ttl"`
	KeyPrefix    string        `json:"key_prefix"`
}

// DefaultRedisCacheConfig returns sensible cache defaults.
func DefaultRedisCacheConfig() *RedisCacheConfig {
	return &RedisCacheConfig{
		Address:      "localhost:6379",
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		EmbeddingTTL: 24 * time.Hour,
		KeyPrefix:    "rag",
	}
}

// CacheStats reports cache effectiveness counters.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
	Errors int64 `json:"errors"`
}

// embeddingCacheEntry is the JSON value stored per cached embedding.
type embeddingCacheEntry struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
	ModelName string    `json:"model_name"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisCache caches embeddings in Redis keyed by a SHA-256 of the model name
// and text. It implements EmbeddingCache.
type RedisCache struct {
	client *redis.Client
	config *RedisCacheConfig
	logger *slog.Logger

	mu    sync.Mutex
	stats CacheStats
}

// NewRedisCache connects to Redis and verifies the connection with a ping.
func NewRedisCache(config *RedisCacheConfig, logger *slog.Logger) (*RedisCache, error) {
	if config == nil {
		config = DefaultRedisCacheConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         config.Address,
		Password:     config.Password,
		DB:           config.Database,
		PoolSize:     config.PoolSize,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis embedding cache initialized",
		slog.String("address", config.Address),
		slog.Int("database", config.Database))

	return &RedisCache{
		client: rdb,
		config: config,
		logger: logger,
	}, nil
}

// GetEmbedding retrieves a cached embedding. A miss or any error returns
// (nil, false); errors are counted but never propagated.
func (rc *RedisCache) GetEmbedding(ctx context.Context, text, modelName string) ([]float32, bool) {
	key := rc.buildKey(text, modelName)

	data, err := rc.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			rc.count(func(s *CacheStats) { s.Misses++ })
			return nil, false
		}
		rc.logger.Warn("Failed to get embedding from cache", slog.String("error", err.Error()))
		rc.count(func(s *CacheStats) { s.Errors++ })
		return nil, false
	}

	var entry embeddingCacheEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		rc.logger.Warn("Failed to unmarshal cached embedding", slog.String("error", err.Error()))
		rc.count(func(s *CacheStats) { s.Errors++ })
		return nil, false
	}

	rc.count(func(s *CacheStats) { s.Hits++ })
	return entry.Embedding, true
}

// SetEmbedding stores an embedding with the configured TTL.
func (rc *RedisCache) SetEmbedding(ctx context.Context, text, modelName string, embedding []float32) error {
	key := rc.buildKey(text, modelName)

	entry := embeddingCacheEntry{
		Text:      text,
		Embedding: embedding,
		ModelName: modelName,
		CreatedAt: time.Now(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		rc.count(func(s *CacheStats) { s.Errors++ })
		return fmt.Errorf("failed to marshal embedding cache entry: %w", err)
	}

	if err := rc.client.Set(ctx, key, data, rc.config.EmbeddingTTL).Err(); err != nil {
		rc.count(func(s *CacheStats) { s.Errors++ })
		return fmt.Errorf("failed to set embedding in cache: %w", err)
	}

	rc.count(func(s *CacheStats) { s.Sets++ })
	return nil
}

// Stats returns a snapshot of the cache counters.
func (rc *RedisCache) Stats() CacheStats {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.stats
}

// Close closes the Redis connection.
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

func (rc *RedisCache) buildKey(text, modelName string) string {
	sum := sha256.Sum256([]byte(modelName + ":" + text))
	return fmt.Sprintf("%s:embedding:%x", rc.config.KeyPrefix, sum)
}

func (rc *RedisCache) count(update func(*CacheStats)) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	update(&rc.stats)
}
