package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/thc1006/robotics-rag/pkg/rag"
)

// handleUploadDocument splits a document into chunks, embeds each chunk and
// stores it in the vector database.
func (h *RAGHandler) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	var req UploadDocumentRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.Title == "" || req.Content == "" {
		h.writeError(w, http.StatusBadRequest, "Title and content are required")
		return
	}

	source := req.Source
	if source == "" {
		source = req.Title
	}

	h.ingestDocument(w, r, req.Title, source, req.Content,
		fmt.Sprintf("Document '%s' uploaded successfully", req.Title))
}

// handleUploadFile ingests a text or markdown file from a multipart form.
// The filename doubles as title and source.
func (h *RAGHandler) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		h.logger.Error("Failed to read uploaded file", slog.String("error", err.Error()))
		h.writeError(w, http.StatusBadRequest, "A 'file' form field is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("Failed to read file content", slog.String("error", err.Error()))
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.ingestDocument(w, r, header.Filename, header.Filename, string(content),
		fmt.Sprintf("File '%s' uploaded successfully", header.Filename))
}

func (h *RAGHandler) ingestDocument(w http.ResponseWriter, r *http.Request, title, source, content, message string) {
	ctx := r.Context()

	if err := h.store.EnsureCollection(ctx); err != nil {
		h.logger.Error("Failed to initialize collection", slog.String("error", err.Error()))
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	chunks := rag.SplitContent(content, rag.DefaultChunkSize)
	documentIDs := make([]string, 0, len(chunks))

	for _, chunk := range chunks {
		vector := h.embedder.EmbedText(ctx, chunk.Text)
		id, err := h.store.AddDocument(ctx, chunk.Text, vector, map[string]interface{}{
			"title":      title,
			"chunkIndex": chunk.Index,
			"source":     source,
		})
		if err != nil {
			h.logger.Error("Failed to store chunk",
				slog.String("title", title),
				slog.Int("chunk_index", chunk.Index),
				slog.String("error", err.Error()),
			)
			h.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		documentIDs = append(documentIDs, id)
	}

	if h.metrics != nil {
		h.metrics.RecordDocumentsIndexed(len(documentIDs))
	}
	h.logger.Info("Document ingested",
		slog.String("title", title),
		slog.Int("chunks", len(documentIDs)),
	)

	h.writeJSON(w, http.StatusOK, UploadResponse{
		Status:          "success",
		Message:         message,
		ChunksProcessed: len(documentIDs),
		DocumentIDs:     documentIDs,
	})
}

// handleDocumentStatus reports the collection's point count. Store errors
// are reported in the body with HTTP 200, matching the API contract the
// frontend expects.
func (h *RAGHandler) handleDocumentStatus(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.Count(r.Context())
	if err != nil {
		h.writeJSON(w, http.StatusOK, map[string]string{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}
	h.writeJSON(w, http.StatusOK, StatusResponse{
		Status:         "success",
		CollectionName: h.cfg.WeaviateClass,
		PointCount:     count,
		VectorSize:     rag.EmbeddingDimension,
	})
}

// handleClearCollection drops the collection and recreates it empty.
func (h *RAGHandler) handleClearCollection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.store.DeleteCollection(ctx); err != nil {
		h.logger.Error("Failed to clear collection", slog.String("error", err.Error()))
		h.writeError(w, http.StatusInternalServerError, "Failed to clear collection")
		return
	}
	if err := h.store.EnsureCollection(ctx); err != nil {
		h.logger.Error("Failed to reinitialize collection", slog.String("error", err.Error()))
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Collection cleared and reinitialized",
	})
}
