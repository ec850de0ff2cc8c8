package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kirillkom/docqa/internal/config"
	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/core/ports"
)

type ingestFake struct {
	err         error
	reprocessed []string
}

func (f *ingestFake) Upload(_ context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, err := io.ReadAll(body); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &domain.Document{
		ID:          "doc-1",
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: "doc-1_file.txt",
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (f *ingestFake) Reprocess(_ context.Context, documentID string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.reprocessed = append(f.reprocessed, documentID)
	now := time.Now().UTC()
	return &domain.Document{
		ID:        documentID,
		Status:    domain.StatusUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

type chatFake struct {
	result *domain.ChatResult
	err    error
}

func (f *chatFake) Answer(context.Context, string, string, int, float64) (*domain.ChatResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type removerFake struct {
	err     error
	removed []string
}

func (f *removerFake) Remove(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.removed = append(f.removed, documentID)
	return nil
}

type docRepoFake struct {
	doc    *domain.Document
	getErr error
}

func (f *docRepoFake) Create(context.Context, *domain.Document) error { return nil }

func (f *docRepoFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	copyDoc := *f.doc
	return &copyDoc, nil
}

func (f *docRepoFake) List(context.Context) ([]domain.Document, error) {
	if f.doc == nil {
		return nil, nil
	}
	return []domain.Document{*f.doc}, nil
}

func (f *docRepoFake) UpdateStatus(context.Context, string, domain.DocumentStatus, string) error {
	return nil
}
func (f *docRepoFake) SaveIndexStats(context.Context, string, int, int) error { return nil }
func (f *docRepoFake) Delete(context.Context, string) error                   { return nil }

type turnsStoreFake struct {
	turns     []domain.ConversationTurn
	listErr   error
	clearErr  error
	cleared   []string
	lastLimit int
}

func (f *turnsStoreFake) AppendTurn(context.Context, domain.ConversationTurn) error { return nil }

func (f *turnsStoreFake) ListRecentTurns(_ context.Context, _ string, limit int) ([]domain.ConversationTurn, error) {
	f.lastLimit = limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.turns, nil
}

func (f *turnsStoreFake) ClearTurns(_ context.Context, documentID string) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	f.cleared = append(f.cleared, documentID)
	return nil
}

type statsIndexFake struct {
	stats domain.IndexStats
}

func (f *statsIndexFake) Create([][]float32, []domain.Chunk) error { return nil }
func (f *statsIndexFake) Append([][]float32, []domain.Chunk) error { return nil }
func (f *statsIndexFake) Search([]float32, int, float64) ([]domain.RetrievedChunk, error) {
	return nil, nil
}
func (f *statsIndexFake) Persist() error           { return nil }
func (f *statsIndexFake) Load() error              { return nil }
func (f *statsIndexFake) Delete() error            { return nil }
func (f *statsIndexFake) Stats() domain.IndexStats { return f.stats }

type statsRegistryFake struct {
	idx *statsIndexFake
}

func (f *statsRegistryFake) GetOrLoad(string, int) ports.SimilarityIndex { return f.idx }
func (f *statsRegistryFake) Invalidate(string)                           {}
func (f *statsRegistryFake) Delete(string) error                         { return nil }
func (f *statsRegistryFake) CachedCount() int                            { return 0 }

type routerDeps struct {
	ingest   *ingestFake
	chat     *chatFake
	remover  *removerFake
	repo     *docRepoFake
	turns    *turnsStoreFake
	registry *statsRegistryFake
}

func defaultDeps() routerDeps {
	return routerDeps{
		ingest: &ingestFake{},
		chat: &chatFake{result: &domain.ChatResult{
			Answer: "answer",
			Status: domain.ChatStatusSuccess,
		}},
		remover:  &removerFake{},
		repo:     &docRepoFake{doc: &domain.Document{ID: "doc-1", Status: domain.StatusReady}},
		turns:    &turnsStoreFake{},
		registry: &statsRegistryFake{idx: &statsIndexFake{stats: domain.IndexStats{Loaded: true, TotalChunks: 4, Dimension: 2}}},
	}
}

func newTestHandler(cfg config.Config, deps routerDeps) http.Handler {
	return NewRouter(cfg, deps.ingest, deps.chat, deps.remover, deps.repo, deps.turns, deps.registry, nil).Handler()
}

func defaultConfig() config.Config {
	return config.Config{
		RetrievalMaxChunks: 5,
		RetrievalMinScore:  0.3,
		EmbeddingDim:       2,
	}
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestHandler(defaultConfig(), defaultDeps())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestUploadDocumentSuccess(t *testing.T) {
	handler := newTestHandler(defaultConfig(), defaultDeps())

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "file.txt")
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write([]byte("hello")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
	var docResp map[string]any
	if err := json.NewDecoder(res.Body).Decode(&docResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if docResp["id"] != "doc-1" {
		t.Fatalf("unexpected response: %+v", docResp)
	}
	if res.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestUploadDocumentMissingMultipartField(t *testing.T) {
	handler := newTestHandler(defaultConfig(), defaultDeps())

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", bytes.NewBufferString("plain-text"))
	req.Header.Set("Content-Type", "text/plain")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestGetDocumentNotFoundMapsTo404(t *testing.T) {
	deps := defaultDeps()
	deps.repo = &docRepoFake{getErr: domain.WrapError(domain.ErrNotFound, "get document", errors.New("no rows"))}
	handler := newTestHandler(defaultConfig(), deps)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestListDocuments(t *testing.T) {
	handler := newTestHandler(defaultConfig(), defaultDeps())

	req := httptest.NewRequest(http.MethodGet, "/v1/documents", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var listResp struct {
		Documents []domain.Document `json:"documents"`
		Total     int               `json:"total"`
	}
	if err := json.NewDecoder(res.Body).Decode(&listResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if listResp.Total != 1 || len(listResp.Documents) != 1 {
		t.Fatalf("unexpected list response: %+v", listResp)
	}
}

func TestDeleteDocumentReturns204(t *testing.T) {
	deps := defaultDeps()
	handler := newTestHandler(defaultConfig(), deps)

	req := httptest.NewRequest(http.MethodDelete, "/v1/documents/doc-1", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
	if len(deps.remover.removed) != 1 || deps.remover.removed[0] != "doc-1" {
		t.Fatalf("remover not called: %v", deps.remover.removed)
	}
}

func TestChatSuccess(t *testing.T) {
	handler := newTestHandler(defaultConfig(), defaultDeps())

	payload := bytes.NewBufferString(`{"question":"what?"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/documents/doc-1/chat", payload)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var chatResp domain.ChatResult
	if err := json.NewDecoder(res.Body).Decode(&chatResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if chatResp.Status != domain.ChatStatusSuccess || chatResp.Answer != "answer" {
		t.Fatalf("unexpected chat response: %+v", chatResp)
	}
}

func TestChatRequiresQuestion(t *testing.T) {
	handler := newTestHandler(defaultConfig(), defaultDeps())

	payload := bytes.NewBufferString(`{"question":"   "}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/documents/doc-1/chat", payload)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestChatTemporaryFailureMapsTo503(t *testing.T) {
	deps := defaultDeps()
	deps.chat = &chatFake{err: domain.WrapError(domain.ErrTemporary, "retrieve", errors.New("embedder down"))}
	handler := newTestHandler(defaultConfig(), deps)

	payload := bytes.NewBufferString(`{"question":"what?"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/documents/doc-1/chat", payload)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestChatHistoryEndpoint(t *testing.T) {
	deps := defaultDeps()
	deps.turns = &turnsStoreFake{turns: []domain.ConversationTurn{
		{DocumentID: "doc-1", Question: "q1", Answer: "a1"},
		{DocumentID: "doc-1", Question: "q2", Answer: "a2"},
	}}
	handler := newTestHandler(defaultConfig(), deps)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1/history?limit=10", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var historyResp struct {
		DocumentID string                    `json:"document_id"`
		Turns      []domain.ConversationTurn `json:"turns"`
		Total      int                       `json:"total"`
	}
	if err := json.NewDecoder(res.Body).Decode(&historyResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if historyResp.DocumentID != "doc-1" || historyResp.Total != 2 {
		t.Fatalf("unexpected history response: %+v", historyResp)
	}
	if historyResp.Turns[0].Question != "q1" || historyResp.Turns[1].Question != "q2" {
		t.Fatalf("turns out of order: %+v", historyResp.Turns)
	}
	if deps.turns.lastLimit != 10 {
		t.Fatalf("limit query param not applied, got %d", deps.turns.lastLimit)
	}
}

func TestChatHistoryEmptyReturnsArray(t *testing.T) {
	handler := newTestHandler(defaultConfig(), defaultDeps())

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1/history", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	body := res.Body.String()
	if !bytes.Contains([]byte(body), []byte(`"turns":[]`)) {
		t.Fatalf("turns should encode as an empty array: %s", body)
	}
}

func TestChatHistoryUnknownDocumentMapsTo404(t *testing.T) {
	deps := defaultDeps()
	deps.repo = &docRepoFake{getErr: domain.WrapError(domain.ErrNotFound, "get document", errors.New("no rows"))}
	handler := newTestHandler(defaultConfig(), deps)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/missing/history", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestClearChatHistoryReturns204(t *testing.T) {
	deps := defaultDeps()
	handler := newTestHandler(defaultConfig(), deps)

	req := httptest.NewRequest(http.MethodDelete, "/v1/documents/doc-1/history", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
	if len(deps.turns.cleared) != 1 || deps.turns.cleared[0] != "doc-1" {
		t.Fatalf("history not cleared: %v", deps.turns.cleared)
	}
}

func TestReprocessDocumentReturns202(t *testing.T) {
	deps := defaultDeps()
	handler := newTestHandler(defaultConfig(), deps)

	req := httptest.NewRequest(http.MethodPost, "/v1/documents/doc-1/reprocess", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
	if len(deps.ingest.reprocessed) != 1 || deps.ingest.reprocessed[0] != "doc-1" {
		t.Fatalf("reprocess not invoked: %v", deps.ingest.reprocessed)
	}
	var docResp struct {
		Status domain.DocumentStatus `json:"status"`
	}
	if err := json.NewDecoder(res.Body).Decode(&docResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if docResp.Status != domain.StatusUploaded {
		t.Fatalf("expected uploaded status, got %s", docResp.Status)
	}
}

func TestIndexStatsEndpoint(t *testing.T) {
	handler := newTestHandler(defaultConfig(), defaultDeps())

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1/index/stats", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var statsResp struct {
		DocumentID string            `json:"document_id"`
		Index      domain.IndexStats `json:"index"`
	}
	if err := json.NewDecoder(res.Body).Decode(&statsResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if statsResp.DocumentID != "doc-1" || statsResp.Index.TotalChunks != 4 {
		t.Fatalf("unexpected stats response: %+v", statsResp)
	}
}
