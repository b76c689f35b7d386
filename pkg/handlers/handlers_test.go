package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thc1006/robotics-rag/internal/agents"
	"github.com/thc1006/robotics-rag/internal/llm"
	"github.com/thc1006/robotics-rag/pkg/config"
	"github.com/thc1006/robotics-rag/pkg/monitoring"
	"github.com/thc1006/robotics-rag/pkg/rag"
)

type stubChat struct {
	lastReq       *llm.GenerationRequest
	lastQuery     string
	lastSelection string
	outcome       *llm.GenerationOutcome
}

func (s *stubChat) Generate(ctx context.Context, req *llm.GenerationRequest) *llm.GenerationOutcome {
	s.lastReq = req
	return s.outcome
}

func (s *stubChat) GenerateWithSelection(ctx context.Context, query, selectedText string) *llm.GenerationOutcome {
	s.lastQuery = query
	s.lastSelection = selectedText
	return s.outcome
}

type stubEmbedder struct {
	texts []string
}

func (s *stubEmbedder) EmbedText(ctx context.Context, text string) []float32 {
	s.texts = append(s.texts, text)
	return make([]float32, rag.EmbeddingDimension)
}

type stubStore struct {
	searchResults []rag.SearchResult
	searchErr     error
	addErr        error
	ensureErr     error
	deleteErr     error
	countValue    int64
	countErr      error
	healthy       bool

	addedTexts    []string
	addedMetadata []map[string]interface{}
	deleted       bool
	ensured       int
}

func (s *stubStore) EnsureCollection(ctx context.Context) error {
	s.ensured++
	return s.ensureErr
}

func (s *stubStore) AddDocument(ctx context.Context, text string, vector []float32, metadata map[string]interface{}) (string, error) {
	if s.addErr != nil {
		return "", s.addErr
	}
	s.addedTexts = append(s.addedTexts, text)
	s.addedMetadata = append(s.addedMetadata, metadata)
	return "doc-id", nil
}

func (s *stubStore) Search(ctx context.Context, vector []float32, topK int) ([]rag.SearchResult, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	if topK < len(s.searchResults) {
		return s.searchResults[:topK], nil
	}
	return s.searchResults, nil
}

func (s *stubStore) DeleteCollection(ctx context.Context) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = true
	return nil
}

func (s *stubStore) Count(ctx context.Context) (int64, error) {
	return s.countValue, s.countErr
}

func (s *stubStore) IsHealthy(ctx context.Context) bool { return s.healthy }

func (s *stubStore) Close() error { return nil }

type testFixture struct {
	handler  *RAGHandler
	router   *mux.Router
	chat     *stubChat
	embedder *stubEmbedder
	store    *stubStore
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()
	cfg := config.DefaultConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	chat := &stubChat{outcome: &llm.GenerationOutcome{
		ResponseText: "an answer",
		ModelUsed:    "gpt-4",
		SucceededVia: llm.SucceededViaProvider,
	}}
	embedder := &stubEmbedder{}
	store := &stubStore{healthy: true}
	h := NewRAGHandler(cfg, logger, chat, embedder, store, agents.NewDefaultRegistry(), monitoring.NewMetrics())
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	return &testFixture{handler: h, router: router, chat: chat, embedder: embedder, store: store}
}

func (f *testFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestChatQueryReturnsAnswerWithRetrievedChunks(t *testing.T) {
	f := newFixture(t)
	f.store.searchResults = []rag.SearchResult{
		{ID: "1", Text: "Robots move.", Score: 0.9, Source: "ch1.md", Metadata: map[string]interface{}{"title": "Ch 1"}},
		{ID: "2", Text: "Sensors sense.", Score: 0.7, Source: "ch2.md"},
	}

	rec := f.do(t, http.MethodPost, "/api/chat/query", ChatRequest{Query: "What is a robot?"})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[ChatResponse](t, rec)
	assert.Equal(t, "an answer", resp.Response)
	assert.Equal(t, "gpt-4", resp.Model)
	assert.Empty(t, resp.AgentUsed)
	require.Len(t, resp.RetrievedDocuments, 2)
	assert.Equal(t, "1", resp.RetrievedDocuments[0].ID)
	assert.Equal(t, "ch1.md", resp.RetrievedDocuments[0].Source)

	require.NotNil(t, f.chat.lastReq)
	assert.Equal(t, "What is a robot?", f.chat.lastReq.Query)
	require.Len(t, f.chat.lastReq.ContextDocuments, 2)
	assert.Equal(t, "Robots move.", f.chat.lastReq.ContextDocuments[0].Text)
}

func TestChatQueryRequiresQuery(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/chat/query", ChatRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Query is required", decodeBody[ErrorResponse](t, rec).Error)
}

func TestChatQueryRejectsMalformedJSON(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/chat/query", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatQueryHonorsTopK(t *testing.T) {
	f := newFixture(t)
	f.store.searchResults = []rag.SearchResult{
		{ID: "1", Text: "a"}, {ID: "2", Text: "b"}, {ID: "3", Text: "c"},
	}
	rec := f.do(t, http.MethodPost, "/api/chat/query", ChatRequest{Query: "q", TopK: 1})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[ChatResponse](t, rec).RetrievedDocuments, 1)
}

func TestChatQueryAgentDispatch(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/chat/query", ChatRequest{
		Query:    "find sections about humanoids",
		UseAgent: "document_search",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[ChatResponse](t, rec)
	assert.True(t, strings.HasPrefix(resp.Response, "[document_search] "))
	assert.Equal(t, "gpt-4 (agent: document_search)", resp.Model)
	assert.Equal(t, "document_search", resp.AgentUsed)
	assert.Empty(t, resp.RetrievedDocuments)
	assert.Nil(t, f.chat.lastReq, "agent answer must bypass the LLM")
}

func TestChatQueryUnknownAgentFallsThroughToRAG(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/chat/query", ChatRequest{
		Query:    "q",
		UseAgent: "no_such_agent",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[ChatResponse](t, rec)
	assert.Equal(t, "an answer", resp.Response)
	assert.Empty(t, resp.AgentUsed)
	require.NotNil(t, f.chat.lastReq)
}

func TestChatQuerySearchFailureDegradesToEmptyContext(t *testing.T) {
	f := newFixture(t)
	f.store.searchErr = errors.New("weaviate down")

	rec := f.do(t, http.MethodPost, "/api/chat/query", ChatRequest{Query: "q"})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[ChatResponse](t, rec)
	assert.Equal(t, "an answer", resp.Response)
	assert.Empty(t, resp.RetrievedDocuments)
	require.NotNil(t, f.chat.lastReq)
	assert.Empty(t, f.chat.lastReq.ContextDocuments)
}

func TestChatWithSelectionReturnsSyntheticChunk(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/chat/query-with-selection", ChatWithSelectionRequest{
		Query:        "explain this",
		SelectedText: "Inverse kinematics maps task space to joint space.",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[ChatResponse](t, rec)
	require.Len(t, resp.RetrievedDocuments, 1)
	chunk := resp.RetrievedDocuments[0]
	assert.Equal(t, "user_selection", chunk.ID)
	assert.Equal(t, 1.0, chunk.Score)
	assert.Equal(t, "Selected from textbook", chunk.Source)
	assert.Equal(t, "user_selection", chunk.Metadata["type"])
	assert.Equal(t, "Inverse kinematics maps task space to joint space.", chunk.Text)
	assert.Equal(t, "explain this", f.chat.lastQuery)
}

func TestChatWithSelectionRequiresBothFields(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/chat/query-with-selection", ChatWithSelectionRequest{Query: "q"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMultiTurnPassesHistory(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/chat/multi-turn", map[string]interface{}{
		"query": "and then?",
		"conversation_history": []map[string]string{
			{"role": "user", "content": "what is SLAM?"},
			{"role": "assistant", "content": "Simultaneous localization and mapping."},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.chat.lastReq)
	require.Len(t, f.chat.lastReq.History, 2)
	assert.Equal(t, "assistant", f.chat.lastReq.History[1].Role)
}

func TestListAgents(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/chat/agents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[AgentListResponse](t, rec)
	assert.Equal(t, 3, resp.Total)
	assert.Len(t, resp.Agents, 3)
	assert.Contains(t, resp.Message, "use_agent")
}

func TestUploadDocumentChunksAndStores(t *testing.T) {
	f := newFixture(t)
	content := strings.Repeat("a", 1200)

	rec := f.do(t, http.MethodPost, "/api/documents/upload", UploadDocumentRequest{
		Title:   "Chapter 1",
		Content: content,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[UploadResponse](t, rec)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "Document 'Chapter 1' uploaded successfully", resp.Message)
	assert.Equal(t, 3, resp.ChunksProcessed)
	assert.Len(t, resp.DocumentIDs, 3)

	assert.Equal(t, 1, f.store.ensured)
	require.Len(t, f.store.addedMetadata, 3)
	assert.Equal(t, "Chapter 1", f.store.addedMetadata[0]["title"])
	assert.Equal(t, "Chapter 1", f.store.addedMetadata[0]["source"], "source defaults to title")
	assert.Equal(t, 2, f.store.addedMetadata[2]["chunkIndex"])
}

func TestUploadDocumentKeepsChunkIndexGaps(t *testing.T) {
	f := newFixture(t)
	content := strings.Repeat("a", 500) + strings.Repeat(" ", 500) + "tail"

	rec := f.do(t, http.MethodPost, "/api/documents/upload", UploadDocumentRequest{
		Title:   "Gappy",
		Content: content,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decodeBody[UploadResponse](t, rec).ChunksProcessed)
	require.Len(t, f.store.addedMetadata, 2)
	assert.Equal(t, 0, f.store.addedMetadata[0]["chunkIndex"])
	assert.Equal(t, 2, f.store.addedMetadata[1]["chunkIndex"], "blank chunk is skipped but its slot still counts")
}

func TestUploadDocumentRequiresTitleAndContent(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/documents/upload", UploadDocumentRequest{Title: "t"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadDocumentStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.store.addErr = errors.New("insert failed")
	rec := f.do(t, http.MethodPost, "/api/documents/upload", UploadDocumentRequest{
		Title:   "t",
		Content: "some content",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "insert failed", decodeBody[ErrorResponse](t, rec).Error)
}

func TestUploadFile(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "notes.md")
	require.NoError(t, err)
	_, err = part.Write([]byte("# Robotics\nActuators convert energy into motion."))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload-file", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[UploadResponse](t, rec)
	assert.Equal(t, "File 'notes.md' uploaded successfully", resp.Message)
	assert.Equal(t, 1, resp.ChunksProcessed)
	require.Len(t, f.store.addedMetadata, 1)
	assert.Equal(t, "notes.md", f.store.addedMetadata[0]["title"])
	assert.Equal(t, "notes.md", f.store.addedMetadata[0]["source"])
}

func TestUploadFileMissingField(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload-file", strings.NewReader(""))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocumentStatus(t *testing.T) {
	f := newFixture(t)
	f.store.countValue = 42

	rec := f.do(t, http.MethodGet, "/api/documents/status", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[StatusResponse](t, rec)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "TextbookChunk", resp.CollectionName)
	assert.Equal(t, int64(42), resp.PointCount)
	assert.Equal(t, rag.EmbeddingDimension, resp.VectorSize)
}

func TestDocumentStatusErrorKeepsHTTP200(t *testing.T) {
	f := newFixture(t)
	f.store.countErr = errors.New("no collection")

	rec := f.do(t, http.MethodGet, "/api/documents/status", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "error", resp["status"])
	assert.Equal(t, "no collection", resp["message"])
}

func TestClearCollection(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodDelete, "/api/documents/clear", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "Collection cleared and reinitialized", resp["message"])
	assert.True(t, f.store.deleted)
	assert.Equal(t, 1, f.store.ensured)
}

func TestClearCollectionDeleteFailure(t *testing.T) {
	f := newFixture(t)
	f.store.deleteErr = errors.New("boom")
	rec := f.do(t, http.MethodDelete, "/api/documents/clear", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to clear collection", decodeBody[ErrorResponse](t, rec).Error)
}

func TestHealthCheckHealthy(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/health/", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[HealthCheckResponse](t, rec)
	assert.Equal(t, "healthy", resp.Status)
	assert.True(t, resp.VectorDBConnected)
	assert.Equal(t, "All systems operational (LLM: openai, Agents: 3)", resp.Message)
}

func TestHealthCheckDegraded(t *testing.T) {
	f := newFixture(t)
	f.store.healthy = false

	rec := f.do(t, http.MethodGet, "/api/health/", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[HealthCheckResponse](t, rec)
	assert.Equal(t, "degraded", resp.Status)
	assert.False(t, resp.VectorDBConnected)
	assert.Contains(t, resp.Message, "Vector database connection failed")
}

func TestRootEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[map[string]interface{}](t, rec)
	assert.Equal(t, ServiceName, resp["name"])
	assert.Equal(t, "running", resp["status"])
}

func TestProbes(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := f.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
