package ports

import (
	"context"
	"io"

	"github.com/kirillkom/docqa/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
	// Reprocess queues an existing document for re-indexing from its stored
	// source file, discarding the current index first.
	Reprocess(ctx context.Context, documentID string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous indexing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// DocumentRetriever finds the chunks most similar to a question.
type DocumentRetriever interface {
	Retrieve(ctx context.Context, documentID, query string, maxChunks int, minScore float64) (*domain.RetrievalOutcome, error)
}

// DocumentChatService answers questions grounded in one document.
type DocumentChatService interface {
	Answer(ctx context.Context, documentID, question string, maxChunks int, minScore float64) (*domain.ChatResult, error)
}

// DocumentRemover deletes a document, its index artifacts, and its history.
type DocumentRemover interface {
	Remove(ctx context.Context, documentID string) error
}
