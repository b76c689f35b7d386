package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/thc1006/robotics-rag/internal/agents"
	"github.com/thc1006/robotics-rag/internal/llm"
)

// handleChatQuery answers a user question over the indexed textbook,
// optionally dispatching to a registered subagent first.
func (h *RAGHandler) handleChatQuery(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.Query == "" {
		h.writeError(w, http.StatusBadRequest, "Query is required")
		return
	}

	// A requested agent answers directly when it succeeds; any agent
	// failure falls through to the retrieval pipeline.
	if req.UseAgent != "" {
		resp := h.registry.Invoke(r.Context(), req.UseAgent, req.Query, map[string]interface{}{
			"documents": []interface{}{},
		})
		if resp.Status == agents.StatusSuccess {
			h.writeJSON(w, http.StatusOK, ChatResponse{
				Response:           fmt.Sprintf("[%s] %v", req.UseAgent, resp.Result),
				RetrievedDocuments: []DocumentChunk{},
				Model:              fmt.Sprintf("%s (agent: %s)", h.cfg.ChatModel, req.UseAgent),
				AgentUsed:          req.UseAgent,
			})
			return
		}
		h.logger.Warn("Subagent invocation failed",
			slog.String("agent", req.UseAgent),
			slog.String("error", resp.Error),
		)
	}

	h.answerWithRetrieval(w, r, &req)
}

// handleMultiTurn is the chat endpoint without agent dispatch; history in
// the request carries the prior turns.
func (h *RAGHandler) handleMultiTurn(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.Query == "" {
		h.writeError(w, http.StatusBadRequest, "Query is required")
		return
	}
	h.answerWithRetrieval(w, r, &req)
}

// answerWithRetrieval embeds the query, searches the vector store and
// orchestrates a generation. A failed search degrades to empty context
// rather than failing the request.
func (h *RAGHandler) answerWithRetrieval(w http.ResponseWriter, r *http.Request, req *ChatRequest) {
	ctx := r.Context()

	topK := req.TopK
	if topK <= 0 {
		topK = h.cfg.TopKResults
	}

	vector := h.embedder.EmbedText(ctx, req.Query)
	results, err := h.store.Search(ctx, vector, topK)
	if err != nil {
		h.logger.Warn("Vector search failed, proceeding with empty context",
			slog.String("error", err.Error()),
		)
		results = nil
	}

	chunks := make([]DocumentChunk, 0, len(results))
	docs := make([]llm.Document, 0, len(results))
	for _, res := range results {
		chunks = append(chunks, DocumentChunk{
			ID:       res.ID,
			Text:     res.Text,
			Score:    res.Score,
			Metadata: res.Metadata,
			Source:   res.Source,
		})
		docs = append(docs, llm.Document{Source: res.Source, Text: res.Text})
	}

	outcome := h.chat.Generate(ctx, &llm.GenerationRequest{
		Query:            req.Query,
		ContextDocuments: docs,
		History:          req.ConversationHistory,
	})

	h.writeJSON(w, http.StatusOK, ChatResponse{
		Response:           outcome.ResponseText,
		RetrievedDocuments: chunks,
		Model:              outcome.ModelUsed,
	})
}

// handleChatWithSelection answers a question about a passage the user
// selected in the reader. The selection itself is returned as a synthetic
// retrieved chunk.
func (h *RAGHandler) handleChatWithSelection(w http.ResponseWriter, r *http.Request) {
	var req ChatWithSelectionRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.Query == "" || req.SelectedText == "" {
		h.writeError(w, http.StatusBadRequest, "Query and selected_text are required")
		return
	}

	outcome := h.chat.GenerateWithSelection(r.Context(), req.Query, req.SelectedText)

	h.writeJSON(w, http.StatusOK, ChatResponse{
		Response: outcome.ResponseText,
		RetrievedDocuments: []DocumentChunk{{
			ID:       "user_selection",
			Text:     req.SelectedText,
			Score:    1.0,
			Metadata: map[string]interface{}{"type": "user_selection"},
			Source:   "Selected from textbook",
		}},
		Model: outcome.ModelUsed,
	})
}

// handleListAgents returns the metadata of every registered subagent.
func (h *RAGHandler) handleListAgents(w http.ResponseWriter, r *http.Request) {
	list := h.registry.ListAll()
	h.writeJSON(w, http.StatusOK, AgentListResponse{
		Agents:  list,
		Total:   len(list),
		Message: "Use the 'use_agent' parameter in /query to invoke a specific agent",
	})
}
