package handlers

import (
	"fmt"
	"net/http"
	"time"
)

// handleHealthCheck reports overall health including the vector database
// connection and the number of registered agents.
func (h *RAGHandler) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	connected := h.store.IsHealthy(r.Context())
	agentCount := h.registry.Count()

	resp := HealthCheckResponse{
		Status:            "healthy",
		VectorDBConnected: connected,
		Message: fmt.Sprintf("All systems operational (LLM: %s, Agents: %d)",
			h.cfg.LLMProvider, agentCount),
	}
	if !connected {
		resp.Status = "degraded"
		resp.Message = fmt.Sprintf("Vector database connection failed (LLM: %s, Agents: %d)",
			h.cfg.LLMProvider, agentCount)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// handleRoot identifies the service.
func (h *RAGHandler) handleRoot(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":    ServiceName,
		"version": ServiceVersion,
		"status":  "running",
		"uptime":  time.Since(h.startTime).String(),
	})
}

// handleLiveness answers as long as the process is serving.
func (h *RAGHandler) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadiness answers ready once dependencies have been wired; the
// vector store being down degrades search but does not block traffic.
func (h *RAGHandler) handleReadiness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
