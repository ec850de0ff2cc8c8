package flat

import (
	"log/slog"
	"sync"

	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/core/ports"
)

// Registry caches one Index per document id for the process lifetime.
// Entries are never evicted; they are removed only by Invalidate/Delete on
// document deletion. Unbounded growth is a known limitation.
type Registry struct {
	dir    string
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*Index
}

func NewRegistry(dir string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		dir:     dir,
		logger:  logger,
		entries: make(map[string]*Index),
	}
}

// GetOrLoad returns the cached index for the document, constructing one and
// attempting a single Load otherwise. The instance is cached whatever the
// load outcome, so an absent index does not re-hit disk on repeated calls.
// Corrupt artifacts are deleted so the document can be re-indexed cleanly.
func (r *Registry) GetOrLoad(documentID string, dimension int) ports.SimilarityIndex {
	r.mu.Lock()
	defer r.mu.Unlock()

	if idx, ok := r.entries[documentID]; ok {
		return idx
	}

	idx := NewIndex(r.dir, documentID, dimension)
	if err := idx.Load(); err != nil {
		switch {
		case domain.IsKind(err, domain.ErrNotFound):
			// No artifacts yet; the first Append will create them.
		case domain.IsKind(err, domain.ErrCorrupted):
			r.logger.Error("index_corrupted_discarding",
				"document_id", documentID, "error", err)
			if delErr := idx.Delete(); delErr != nil {
				r.logger.Error("index_discard_failed",
					"document_id", documentID, "error", delErr)
			}
		default:
			r.logger.Warn("index_load_failed",
				"document_id", documentID, "error", err)
		}
	}

	r.entries[documentID] = idx
	return idx
}

// Invalidate drops the cached entry without touching durable artifacts.
func (r *Registry) Invalidate(documentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, documentID)
}

// Delete removes durable artifacts and the cached entry.
func (r *Registry) Delete(documentID string) error {
	r.mu.Lock()
	idx, ok := r.entries[documentID]
	if !ok {
		idx = NewIndex(r.dir, documentID, 0)
	}
	delete(r.entries, documentID)
	r.mu.Unlock()

	return idx.Delete()
}

func (r *Registry) CachedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
