// Package monitoring exposes Prometheus metrics for the RAG chatbot service
// on a dedicated registry.
package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors for the service.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal        *prometheus.CounterVec
	requestDuration      *prometheus.HistogramVec
	llmAttempts          *prometheus.CounterVec
	fallbackResponses    prometheus.Counter
	embeddingCacheHits   prometheus.Counter
	embeddingCacheMisses prometheus.Counter
	documentsIndexed     prometheus.Counter
}

// NewMetrics creates the collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{registry: registry}

	m.requestsTotal = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rag_chatbot",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	m.requestDuration = promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rag_chatbot",
			Name:      "request_duration_seconds",
			Help:      "Time spent handling HTTP requests",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"endpoint"},
	)

	m.llmAttempts = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rag_chatbot",
			Name:      "llm_attempts_total",
			Help:      "Provider cascade attempts by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	m.fallbackResponses = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: "rag_chatbot",
			Name:      "fallback_responses_total",
			Help:      "Responses answered from the static fallback knowledge base",
		},
	)

	m.embeddingCacheHits = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: "rag_chatbot",
			Name:      "embedding_cache_hits_total",
			Help:      "Embedding cache hits",
		},
	)

	m.embeddingCacheMisses = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: "rag_chatbot",
			Name:      "embedding_cache_misses_total",
			Help:      "Embedding cache misses",
		},
	)

	m.documentsIndexed = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: "rag_chatbot",
			Name:      "documents_indexed_total",
			Help:      "Document chunks written to the vector store",
		},
	)

	return m
}

// RecordRequest counts one handled HTTP request.
func (m *Metrics) RecordRequest(endpoint, status string) {
	m.requestsTotal.WithLabelValues(endpoint, status).Inc()
}

// ObserveRequestDuration records request latency in seconds.
func (m *Metrics) ObserveRequestDuration(endpoint string, seconds float64) {
	m.requestDuration.WithLabelValues(endpoint).Observe(seconds)
}

// RecordLLMAttempt counts one provider cascade attempt.
func (m *Metrics) RecordLLMAttempt(provider, outcome string) {
	m.llmAttempts.WithLabelValues(provider, outcome).Inc()
}

// RecordFallbackResponse counts one response served from the fallback KB.
func (m *Metrics) RecordFallbackResponse() {
	m.fallbackResponses.Inc()
}

// RecordEmbeddingCacheHit counts one embedding cache hit.
func (m *Metrics) RecordEmbeddingCacheHit() {
	m.embeddingCacheHits.Inc()
}

// RecordEmbeddingCacheMiss counts one embedding cache miss.
func (m *Metrics) RecordEmbeddingCacheMiss() {
	m.embeddingCacheMisses.Inc()
}

// RecordDocumentsIndexed counts chunks written to the vector store.
func (m *Metrics) RecordDocumentsIndexed(n int) {
	m.documentsIndexed.Add(float64(n))
}

// Handler serves the /metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
