package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/core/ports"
)

const noContentReason = "no relevant content found in the document"

// RetrieveUseCase embeds a question and searches one document's similarity
// index. An empty result set is a normal outcome (Found=false), distinct
// from embedder or index failures which come back as errors.
type RetrieveUseCase struct {
	embedder  ports.Embedder
	registry  ports.IndexRegistry
	dimension int

	defaultMaxChunks int
	defaultMinScore  float64
}

func NewRetrieveUseCase(
	embedder ports.Embedder,
	registry ports.IndexRegistry,
	dimension int,
	defaultMaxChunks int,
	defaultMinScore float64,
) *RetrieveUseCase {
	if defaultMaxChunks <= 0 {
		defaultMaxChunks = 5
	}
	return &RetrieveUseCase{
		embedder:         embedder,
		registry:         registry,
		dimension:        dimension,
		defaultMaxChunks: defaultMaxChunks,
		defaultMinScore:  defaultMinScore,
	}
}

func (uc *RetrieveUseCase) Retrieve(
	ctx context.Context,
	documentID, query string,
	maxChunks int,
	minScore float64,
) (*domain.RetrievalOutcome, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", errors.New("empty document id"))
	}
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", errors.New("empty query"))
	}
	if maxChunks <= 0 {
		maxChunks = uc.defaultMaxChunks
	}
	if minScore <= 0 {
		minScore = uc.defaultMinScore
	}

	queryVector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	idx := uc.registry.GetOrLoad(documentID, uc.dimension)
	hits, err := idx.Search(queryVector, maxChunks, minScore)
	if err != nil {
		return nil, fmt.Errorf("search similarity index: %w", err)
	}

	if len(hits) == 0 {
		return &domain.RetrievalOutcome{
			Found:  false,
			Reason: noContentReason,
		}, nil
	}

	contexts := make([]string, 0, len(hits))
	sources := make([]domain.SourceRef, 0, len(hits))
	var scoreSum float64
	for _, hit := range hits {
		contexts = append(contexts, hit.Chunk.Content)
		sources = append(sources, domain.SourceRef{
			ChunkID:   hit.Chunk.ID,
			Score:     hit.Score,
			WordCount: hit.Chunk.WordCount,
		})
		scoreSum += hit.Score
	}

	return &domain.RetrievalOutcome{
		Found:        true,
		Contexts:     contexts,
		Sources:      sources,
		TotalFound:   len(hits),
		AverageScore: scoreSum / float64(len(hits)),
	}, nil
}
