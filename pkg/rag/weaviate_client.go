package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// SearchResult is one retrieved chunk with its similarity score in [0,1].
type SearchResult struct {
	ID       string                 `json:"id"`
	Text     string                 `json:"text"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata"`
	Source   string                 `json:"source"`
}

// VectorStore is the vector database consumed by the chat and document
// pipelines. Implementations must tolerate concurrent use.
type VectorStore interface {
	EnsureCollection(ctx context.Context) error
	AddDocument(ctx context.Context, text string, vector []float32, metadata map[string]interface{}) (string, error)
	Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error)
	DeleteCollection(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
	IsHealthy(ctx context.Context) bool
	Close() error
}

// WeaviateConfig holds connection settings for the Weaviate store.
type WeaviateConfig struct {
	URL            string
	APIKey         string
	Class          string
	ScoreThreshold float64
}

// WeaviateStore implements VectorStore against a Weaviate instance. Chunks
// are stored with externally supplied vectors (vectorizer "none") under a
// single class.
type WeaviateStore struct {
	client *weaviate.Client
	config *WeaviateConfig
	logger *slog.Logger
}

// NewWeaviateStore creates a Weaviate-backed vector store.
func NewWeaviateStore(config *WeaviateConfig, logger *slog.Logger) (*WeaviateStore, error) {
	if config == nil {
		return nil, fmt.Errorf("weaviate config cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	scheme, host, err := splitURL(config.URL)
	if err != nil {
		return nil, err
	}

	clientConfig := weaviate.Config{
		Host:   host,
		Scheme: scheme,
	}
	if config.APIKey != "" {
		clientConfig.AuthConfig = auth.ApiKey{Value: config.APIKey}
	}

	client, err := weaviate.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}

	return &WeaviateStore{
		client: client,
		config: config,
		logger: logger,
	}, nil
}

// EnsureCollection creates the chunk class if it does not exist yet.
func (ws *WeaviateStore) EnsureCollection(ctx context.Context) error {
	class := &models.Class{
		Class:       ws.config.Class,
		Description: "Chunked textbook content with externally computed embeddings",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{Name: "text", DataType: []string{"text"}},
			{Name: "title", DataType: []string{"text"}},
			{Name: "source", DataType: []string{"text"}},
			{Name: "chunkIndex", DataType: []string{"int"}},
		},
	}

	err := ws.client.Schema().ClassCreator().WithClass(class).Do(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return nil
		}
		return fmt.Errorf("failed to create class %s: %w", ws.config.Class, err)
	}

	ws.logger.Info("Created collection", slog.String("class", ws.config.Class))
	return nil
}

// AddDocument stores one chunk with its vector and returns the generated
// object ID.
func (ws *WeaviateStore) AddDocument(ctx context.Context, text string, vector []float32, metadata map[string]interface{}) (string, error) {
	id := uuid.New().String()

	properties := map[string]interface{}{
		"text":       text,
		"title":      metadata["title"],
		"source":     metadata["source"],
		"chunkIndex": metadata["chunkIndex"],
	}

	_, err := ws.client.Data().Creator().
		WithClassName(ws.config.Class).
		WithID(id).
		WithProperties(properties).
		WithVector(vector).
		Do(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to add document: %w", err)
	}

	return id, nil
}

// Search returns up to topK chunks similar to the vector, dropping results
// below the configured score threshold.
func (ws *WeaviateStore) Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error) {
	nearVector := (&graphql.NearVectorArgumentBuilder{}).WithVector(vector)

	fields := []graphql.Field{
		{Name: "text"},
		{Name: "title"},
		{Name: "source"},
		{Name: "chunkIndex"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "id"},
			{Name: "certainty"},
			{Name: "distance"},
		}},
	}

	result, err := ws.client.GraphQL().Get().
		WithClassName(ws.config.Class).
		WithNearVector(nearVector).
		WithFields(fields...).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("weaviate search failed: %s", result.Errors[0].Message)
	}

	return parseSearchResults(result.Data, ws.config.Class, ws.config.ScoreThreshold), nil
}

// parseSearchResults walks the nested GraphQL payload into SearchResults.
func parseSearchResults(data map[string]models.JSONObject, class string, threshold float64) []SearchResult {
	results := []SearchResult{}

	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return results
	}
	items, ok := get[class].([]interface{})
	if !ok {
		return results
	}

	for _, item := range items {
		itemMap, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		result := SearchResult{
			Metadata: map[string]interface{}{},
		}
		if text, ok := itemMap["text"].(string); ok {
			result.Text = text
		}
		if source, ok := itemMap["source"].(string); ok {
			result.Source = source
		}
		if title, ok := itemMap["title"].(string); ok {
			result.Metadata["title"] = title
		}
		if chunkIndex, ok := itemMap["chunkIndex"].(float64); ok {
			result.Metadata["chunk_index"] = int(chunkIndex)
		}

		if additional, ok := itemMap["_additional"].(map[string]interface{}); ok {
			if id, ok := additional["id"].(string); ok {
				result.ID = id
			}
			if certainty, ok := additional["certainty"].(float64); ok {
				result.Score = certainty
			} else if distance, ok := additional["distance"].(float64); ok {
				result.Score = 1 - distance
			}
		}

		if result.Score < threshold {
			continue
		}
		results = append(results, result)
	}

	return results
}

// Count returns the number of objects in the collection.
func (ws *WeaviateStore) Count(ctx context.Context) (int64, error) {
	result, err := ws.client.GraphQL().Aggregate().
		WithClassName(ws.config.Class).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate collection: %w", err)
	}
	if len(result.Errors) > 0 {
		return 0, fmt.Errorf("failed to aggregate collection: %s", result.Errors[0].Message)
	}

	aggregate, ok := result.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("unexpected aggregate payload shape")
	}
	items, ok := aggregate[ws.config.Class].([]interface{})
	if !ok || len(items) == 0 {
		return 0, nil
	}
	itemMap, ok := items[0].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("unexpected aggregate payload shape")
	}
	meta, ok := itemMap["meta"].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("unexpected aggregate payload shape")
	}
	count, ok := meta["count"].(float64)
	if !ok {
		return 0, fmt.Errorf("unexpected aggregate payload shape")
	}

	return int64(count), nil
}

// DeleteCollection removes the class and all of its objects.
func (ws *WeaviateStore) DeleteCollection(ctx context.Context) error {
	if err := ws.client.Schema().ClassDeleter().WithClassName(ws.config.Class).Do(ctx); err != nil {
		return fmt.Errorf("failed to delete class %s: %w", ws.config.Class, err)
	}
	return nil
}

// IsHealthy reports whether the Weaviate instance answers its ready check.
func (ws *WeaviateStore) IsHealthy(ctx context.Context) bool {
	ready, err := ws.client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		ws.logger.Warn("Weaviate ready check failed", slog.String("error", err.Error()))
		return false
	}
	return ready
}

// Close is a no-op; the underlying client holds no persistent connection.
func (ws *WeaviateStore) Close() error {
	return nil
}

func splitURL(rawURL string) (scheme, host string, err error) {
	switch {
	case strings.HasPrefix(rawURL, "https://"):
		return "https", strings.TrimSuffix(strings.TrimPrefix(rawURL, "https://"), "/"), nil
	case strings.HasPrefix(rawURL, "http://"):
		return "http", strings.TrimSuffix(strings.TrimPrefix(rawURL, "http://"), "/"), nil
	default:
		return "", "", fmt.Errorf("weaviate URL must start with http:// or https://, got %q", rawURL)
	}
}

// NoopStore stands in for the vector store when Weaviate is unreachable at
// startup. Searches return no context so the chat service still answers;
// writes fail loudly.
type NoopStore struct{}

// NewNoopStore creates the stand-in store.
func NewNoopStore() *NoopStore {
	return &NoopStore{}
}

// EnsureCollection does nothing.
func (n *NoopStore) EnsureCollection(ctx context.Context) error { return nil }

// AddDocument always fails; there is no store to write to.
func (n *NoopStore) AddDocument(ctx context.Context, text string, vector []float32, metadata map[string]interface{}) (string, error) {
	return "", fmt.Errorf("vector store unavailable")
}

// Search returns no results.
func (n *NoopStore) Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error) {
	return nil, nil
}

// DeleteCollection does nothing.
func (n *NoopStore) DeleteCollection(ctx context.Context) error { return nil }

// Count reports the store as unavailable.
func (n *NoopStore) Count(ctx context.Context) (int64, error) {
	return 0, fmt.Errorf("vector store unavailable")
}

// IsHealthy is always false.
func (n *NoopStore) IsHealthy(ctx context.Context) bool { return false }

// Close does nothing.
func (n *NoopStore) Close() error { return nil }
