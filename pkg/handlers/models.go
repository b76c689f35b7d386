// Package handlers implements the HTTP API surface of the RAG chatbot:
// chat, document management, agent listing and health endpoints.
package handlers

import (
	"github.com/thc1006/robotics-rag/internal/llm/providers"
)

// ChatRequest is the body of POST /api/chat/query and /api/chat/multi-turn.
type ChatRequest struct {
	Query string `json:"query"`

	// ConversationHistory holds prior turns, oldest first.
	ConversationHistory []providers.Message `json:"conversation_history,omitempty"`

	// TopK limits how many retrieved chunks feed the prompt. Zero means
	// the server default.
	TopK int `json:"top_k,omitempty"`

	// UseAgent names a registered agent to dispatch to instead of the
	// retrieval pipeline. Empty means plain RAG.
	UseAgent string `json:"use_agent,omitempty"`
}

// ChatWithSelectionRequest is the body of POST /api/chat/query-with-selection.
type ChatWithSelectionRequest struct {
	Query        string `json:"query"`
	SelectedText string `json:"selected_text"`
}

// DocumentChunk is one retrieved chunk as returned to the client.
type DocumentChunk struct {
	ID       string                 `json:"id"`
	Text     string                 `json:"text"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata"`
	Source   string                 `json:"source"`
}

// ChatResponse is the reply of every chat endpoint.
type ChatResponse struct {
	Response           string          `json:"response"`
	RetrievedDocuments []DocumentChunk `json:"retrieved_documents"`
	Model              string          `json:"model"`
	AgentUsed          string          `json:"agent_used,omitempty"`
}

// UploadDocumentRequest is the body of POST /api/documents/upload.
type UploadDocumentRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`

	// Source defaults to Title when empty.
	Source string `json:"source,omitempty"`
}

// UploadResponse reports the outcome of a document upload.
type UploadResponse struct {
	Status          string   `json:"status"`
	Message         string   `json:"message"`
	ChunksProcessed int      `json:"chunks_processed"`
	DocumentIDs     []string `json:"document_ids"`
}

// StatusResponse describes the vector collection.
type StatusResponse struct {
	Status         string `json:"status"`
	CollectionName string `json:"collection_name"`
	PointCount     int64  `json:"point_count"`
	VectorSize     int    `json:"vector_size"`
}

// HealthCheckResponse is the reply of GET /api/health/.
type HealthCheckResponse struct {
	Status            string `json:"status"`
	VectorDBConnected bool   `json:"vector_db_connected"`
	Message           string `json:"message,omitempty"`
}

// AgentListResponse is the reply of GET /api/chat/agents.
type AgentListResponse struct {
	Agents  []map[string]interface{} `json:"agents"`
	Total   int                      `json:"total"`
	Message string                   `json:"message"`
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
