package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/docqa/internal/config"
	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/core/ports"
	"github.com/kirillkom/docqa/internal/observability/metrics"
)

// defaultHistoryLimit bounds the history listing when the client does not
// pass an explicit limit.
const defaultHistoryLimit = 50

type Router struct {
	cfg      config.Config
	ingestor ports.DocumentIngestor
	chat     ports.DocumentChatService
	remover  ports.DocumentRemover
	repo     ports.DocumentRepository
	turns    ports.ConversationStore
	registry ports.IndexRegistry
	metrics  *metrics.APIMetrics
}

func NewRouter(
	cfg config.Config,
	ingestor ports.DocumentIngestor,
	chat ports.DocumentChatService,
	remover ports.DocumentRemover,
	repo ports.DocumentRepository,
	turns ports.ConversationStore,
	registry ports.IndexRegistry,
	apiMetrics *metrics.APIMetrics,
) *Router {
	return &Router{
		cfg:      cfg,
		ingestor: ingestor,
		chat:     chat,
		remover:  remover,
		repo:     repo,
		turns:    turns,
		registry: registry,
		metrics:  apiMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /v1/documents", rt.uploadDocument)
	mux.HandleFunc("GET /v1/documents", rt.listDocuments)
	mux.HandleFunc("GET /v1/documents/{id}", rt.getDocumentByID)
	mux.HandleFunc("DELETE /v1/documents/{id}", rt.deleteDocument)
	mux.HandleFunc("POST /v1/documents/{id}/reprocess", rt.reprocessDocument)
	mux.HandleFunc("POST /v1/documents/{id}/chat", rt.chatWithDocument)
	mux.HandleFunc("GET /v1/documents/{id}/history", rt.chatHistory)
	mux.HandleFunc("DELETE /v1/documents/{id}/history", rt.clearChatHistory)
	mux.HandleFunc("GET /v1/documents/{id}/index/stats", rt.indexStats)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, time.Duration(rt.cfg.APIBackpressureWait)*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = metricsMiddleware(handler, rt.metrics, "api")
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingestor.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := rt.repo.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "total": len(docs)})
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.repo.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := rt.remover.Remove(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) chatWithDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question  string  `json:"question"`
		MaxChunks int     `json:"max_chunks"`
		MinScore  float64 `json:"min_score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	maxChunks := req.MaxChunks
	if maxChunks <= 0 {
		maxChunks = rt.cfg.RetrievalMaxChunks
	}
	minScore := req.MinScore
	if minScore <= 0 {
		minScore = rt.cfg.RetrievalMinScore
	}

	result, err := rt.chat.Answer(r.Context(), r.PathValue("id"), req.Question, maxChunks, minScore)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) reprocessDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.ingestor.Reprocess(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) chatHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := rt.repo.GetByID(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	turns, err := rt.turns.ListRecentTurns(r.Context(), id, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if turns == nil {
		turns = []domain.ConversationTurn{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document_id": id,
		"turns":       turns,
		"total":       len(turns),
	})
}

func (rt *Router) clearChatHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := rt.repo.GetByID(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	if err := rt.turns.ClearTurns(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) indexStats(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	doc, err := rt.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	stats := rt.registry.GetOrLoad(doc.ID, rt.cfg.EmbeddingDim).Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"document_id":    doc.ID,
		"status":         doc.Status,
		"index":          stats,
		"cached_indexes": rt.registry.CachedCount(),
	})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
