package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"
)

func TestSplitURL(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		wantScheme string
		wantHost   string
		wantErr    bool
	}{
		{"http url", "http://localhost:8080", "http", "localhost:8080", false},
		{"https url", "https://weaviate.example.com", "https", "weaviate.example.com", false},
		{"trailing slash stripped", "http://localhost:8080/", "http", "localhost:8080", false},
		{"missing scheme", "localhost:8080", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scheme, host, err := splitURL(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantScheme, scheme)
			assert.Equal(t, tt.wantHost, host)
		})
	}
}

func searchPayload(items []interface{}) map[string]models.JSONObject {
	return map[string]models.JSONObject{
		"Get": map[string]interface{}{
			"TextbookChunk": items,
		},
	}
}

func TestParseSearchResults(t *testing.T) {
	data := searchPayload([]interface{}{
		map[string]interface{}{
			"text":       "Robotics is...",
			"title":      "Introduction",
			"source":     "Chapter 1",
			"chunkIndex": float64(0),
			"_additional": map[string]interface{}{
				"id":        "id-1",
				"certainty": 0.92,
			},
		},
		map[string]interface{}{
			"text":   "Humanoids are...",
			"source": "Chapter 5",
			"_additional": map[string]interface{}{
				"id":       "id-2",
				"distance": 0.3,
			},
		},
		map[string]interface{}{
			"text":   "Low relevance text",
			"source": "Appendix",
			"_additional": map[string]interface{}{
				"id":        "id-3",
				"certainty": 0.2,
			},
		},
	})

	results := parseSearchResults(data, "TextbookChunk", 0.5)

	require.Len(t, results, 2)

	assert.Equal(t, "id-1", results[0].ID)
	assert.Equal(t, "Robotics is...", results[0].Text)
	assert.Equal(t, "Chapter 1", results[0].Source)
	assert.InDelta(t, 0.92, results[0].Score, 1e-9)
	assert.Equal(t, "Introduction", results[0].Metadata["title"])
	assert.Equal(t, 0, results[0].Metadata["chunk_index"])

	// Score falls back to 1-distance when certainty is absent.
	assert.Equal(t, "id-2", results[1].ID)
	assert.InDelta(t, 0.7, results[1].Score, 1e-9)
}

func TestParseSearchResultsEmptyPayloads(t *testing.T) {
	assert.Empty(t, parseSearchResults(map[string]models.JSONObject{}, "TextbookChunk", 0.5))
	assert.Empty(t, parseSearchResults(searchPayload(nil), "TextbookChunk", 0.5))
	assert.Empty(t, parseSearchResults(map[string]models.JSONObject{
		"Get": map[string]interface{}{"OtherClass": []interface{}{}},
	}, "TextbookChunk", 0.5))
}

func TestNoopStore(t *testing.T) {
	store := NewNoopStore()
	ctx := context.Background()

	assert.NoError(t, store.EnsureCollection(ctx))
	assert.NoError(t, store.DeleteCollection(ctx))
	assert.False(t, store.IsHealthy(ctx))
	assert.NoError(t, store.Close())

	results, err := store.Search(ctx, FallbackEmbedding("query"), 5)
	assert.NoError(t, err)
	assert.Nil(t, results)

	id, err := store.AddDocument(ctx, "text", FallbackEmbedding("text"), nil)
	assert.Error(t, err)
	assert.Empty(t, id)

	_, err = store.Count(ctx)
	assert.Error(t, err)
}

func TestNewWeaviateStoreRejectsBadURL(t *testing.T) {
	_, err := NewWeaviateStore(&WeaviateConfig{URL: "localhost:8080", Class: "TextbookChunk"}, nil)
	require.Error(t, err)

	_, err = NewWeaviateStore(nil, nil)
	require.Error(t, err)
}
