package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/thc1006/robotics-rag/internal/agents"
	"github.com/thc1006/robotics-rag/internal/llm"
	"github.com/thc1006/robotics-rag/pkg/config"
	"github.com/thc1006/robotics-rag/pkg/monitoring"
	"github.com/thc1006/robotics-rag/pkg/rag"
)

const (
	// ServiceName and ServiceVersion identify this service on the root
	// endpoint.
	ServiceName    = "AI Robotics RAG Chatbot API"
	ServiceVersion = "1.0.0"
)

// ChatGenerator produces answers for user queries. It never fails; the
// worst case is a static fallback answer.
type ChatGenerator interface {
	Generate(ctx context.Context, req *llm.GenerationRequest) *llm.GenerationOutcome
	GenerateWithSelection(ctx context.Context, query, selectedText string) *llm.GenerationOutcome
}

// Embedder turns text into a fixed-size vector.
type Embedder interface {
	EmbedText(ctx context.Context, text string) []float32
}

// RAGHandler serves the chatbot HTTP API. All dependencies are injected so
// tests can substitute stubs.
type RAGHandler struct {
	cfg       *config.Config
	logger    *slog.Logger
	chat      ChatGenerator
	embedder  Embedder
	store     rag.VectorStore
	registry  *agents.Registry
	metrics   *monitoring.Metrics
	startTime time.Time
}

// NewRAGHandler wires the handler with its collaborators. metrics may be nil.
func NewRAGHandler(cfg *config.Config, logger *slog.Logger, chat ChatGenerator, embedder Embedder, store rag.VectorStore, registry *agents.Registry, metrics *monitoring.Metrics) *RAGHandler {
	return &RAGHandler{
		cfg:       cfg,
		logger:    logger,
		chat:      chat,
		embedder:  embedder,
		store:     store,
		registry:  registry,
		metrics:   metrics,
		startTime: time.Now(),
	}
}

// RegisterRoutes attaches every API endpoint to the router.
func (h *RAGHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/", h.instrument("root", h.handleRoot)).Methods(http.MethodGet)
	router.HandleFunc("/healthz", h.handleLiveness).Methods(http.MethodGet)
	router.HandleFunc("/readyz", h.handleReadiness).Methods(http.MethodGet)

	chat := router.PathPrefix("/api/chat").Subrouter()
	chat.HandleFunc("/query", h.instrument("chat_query", h.handleChatQuery)).Methods(http.MethodPost)
	chat.HandleFunc("/query-with-selection", h.instrument("chat_selection", h.handleChatWithSelection)).Methods(http.MethodPost)
	chat.HandleFunc("/multi-turn", h.instrument("chat_multi_turn", h.handleMultiTurn)).Methods(http.MethodPost)
	chat.HandleFunc("/agents", h.instrument("list_agents", h.handleListAgents)).Methods(http.MethodGet)

	docs := router.PathPrefix("/api/documents").Subrouter()
	docs.HandleFunc("/upload", h.instrument("doc_upload", h.handleUploadDocument)).Methods(http.MethodPost)
	docs.HandleFunc("/upload-file", h.instrument("doc_upload_file", h.handleUploadFile)).Methods(http.MethodPost)
	docs.HandleFunc("/status", h.instrument("doc_status", h.handleDocumentStatus)).Methods(http.MethodGet)
	docs.HandleFunc("/clear", h.instrument("doc_clear", h.handleClearCollection)).Methods(http.MethodDelete)

	router.HandleFunc("/api/health/", h.instrument("health", h.handleHealthCheck)).Methods(http.MethodGet)

	if h.metrics != nil {
		router.Handle("/metrics", h.metrics.Handler()).Methods(http.MethodGet)
	}
}

// statusRecorder captures the status code written by a handler so the
// request counter can label it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// instrument wraps a handler with request-size limiting and metrics.
func (h *RAGHandler) instrument(endpoint string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if h.cfg.MaxRequestSize > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxRequestSize)
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		fn(rec, r)
		if h.metrics != nil {
			h.metrics.RecordRequest(endpoint, strconv.Itoa(rec.status))
			h.metrics.ObserveRequestDuration(endpoint, time.Since(start).Seconds())
		}
	}
}

func (h *RAGHandler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", slog.String("error", err.Error()))
	}
}

func (h *RAGHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, ErrorResponse{Error: message})
}

// decodeJSON parses the request body into dst, reporting a 400 on failure.
func (h *RAGHandler) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Error("Failed to decode request", slog.String("error", err.Error()))
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
