package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/core/ports"
)

// ProcessDocumentUseCase runs the indexing pipeline for one document:
// extract text, chunk, embed, append to the document's similarity index.
type ProcessDocumentUseCase struct {
	repo      ports.DocumentRepository
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	registry  ports.IndexRegistry
	dimension int
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	registry ports.IndexRegistry,
	dimension int,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:      repo,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		registry:  registry,
		dimension: dimension,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	chunkCount, wordCount, err := uc.pipeline(ctx, documentID)
	if err != nil {
		if failErr := uc.repo.UpdateStatus(ctx, documentID, domain.StatusFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SaveIndexStats(ctx, documentID, chunkCount, wordCount); err != nil {
		return fmt.Errorf("save index stats: %w", err)
	}
	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) pipeline(ctx context.Context, documentID string) (int, int, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch document by id: %w", err)
	}

	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return 0, 0, fmt.Errorf("extract text: %w", err)
	}

	chunks := uc.chunker.Chunk(text, doc.Filename)
	if len(chunks) == 0 {
		return 0, 0, domain.WrapError(domain.ErrInvalidInput, "chunk document",
			errors.New("chunking produced zero chunks"))
	}

	texts := make([]string, len(chunks))
	words := 0
	for i, chunk := range chunks {
		texts[i] = chunk.Content
		words += chunk.WordCount
	}

	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, 0, domain.WrapError(domain.ErrInvalidInput, "embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)))
	}

	idx := uc.registry.GetOrLoad(doc.ID, uc.dimension)
	if err := idx.Append(vectors, chunks); err != nil {
		return 0, 0, fmt.Errorf("append to similarity index: %w", err)
	}

	return len(chunks), words, nil
}
