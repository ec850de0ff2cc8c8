package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/docqa/internal/core/ports"
)

// RemoveDocumentUseCase deletes a document end to end: index artifacts,
// cached index entry, stored blob, and metadata (history rows cascade).
// Cache invalidation happens before the metadata delete so a concurrent
// query cannot be served a deleted document's stale index.
type RemoveDocumentUseCase struct {
	repo     ports.DocumentRepository
	storage  ports.ObjectStorage
	registry ports.IndexRegistry
	logger   *slog.Logger
}

func NewRemoveDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	registry ports.IndexRegistry,
	logger *slog.Logger,
) *RemoveDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoveDocumentUseCase{
		repo:     repo,
		storage:  storage,
		registry: registry,
		logger:   logger,
	}
}

func (uc *RemoveDocumentUseCase) Remove(ctx context.Context, documentID string) error {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document: %w", err)
	}

	if err := uc.registry.Delete(documentID); err != nil {
		return fmt.Errorf("delete index artifacts: %w", err)
	}

	if err := uc.storage.Remove(ctx, doc.StoragePath); err != nil {
		uc.logger.Warn("remove_stored_file_failed", "document_id", documentID, "error", err)
	}

	if err := uc.repo.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("delete document metadata: %w", err)
	}
	return nil
}
