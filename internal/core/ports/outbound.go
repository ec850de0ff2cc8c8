package ports

import (
	"context"
	"io"

	"github.com/kirillkom/docqa/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context) ([]domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveIndexStats(ctx context.Context, id string, chunkCount, wordCount int) error
	Delete(ctx context.Context, id string) error
}

// ConversationStore persists chat turns per document.
type ConversationStore interface {
	AppendTurn(ctx context.Context, turn domain.ConversationTurn) error
	// ListRecentTurns returns up to limit most recent turns, oldest first.
	ListRecentTurns(ctx context.Context, documentID string, limit int) ([]domain.ConversationTurn, error)
	// ClearTurns drops all turns for a document. Clearing a document with no
	// turns is not an error.
	ClearTurns(ctx context.Context, documentID string) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

// MessageQueue publishes/consumes indexing events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// Chunker splits document text into retrieval units with metadata.
type Chunker interface {
	Chunk(text, documentName string) []domain.Chunk
}

// Embedder builds fixed-dimension vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SimilarityIndex is one document's vector index. Implementations must keep
// the vector/chunk pairing 1:1 at all times and serialize mutations.
type SimilarityIndex interface {
	Create(vectors [][]float32, chunks []domain.Chunk) error
	Append(vectors [][]float32, chunks []domain.Chunk) error
	Search(query []float32, k int, threshold float64) ([]domain.RetrievedChunk, error)
	Persist() error
	Load() error
	Delete() error
	Stats() domain.IndexStats
}

// IndexRegistry caches one SimilarityIndex per document id. GetOrLoad caches
// the instance whether or not durable artifacts exist, so a confirmed-absent
// index does not re-hit disk on every call.
type IndexRegistry interface {
	GetOrLoad(documentID string, dimension int) SimilarityIndex
	Invalidate(documentID string)
	Delete(documentID string) error
	CachedCount() int
}

// AnswerGenerator creates the final user-facing answer.
type AnswerGenerator interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
