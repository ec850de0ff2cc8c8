package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/core/ports"
)

const (
	apologyAnswer   = "Sorry, I could not generate an answer right now. Please try again."
	noContentAnswer = "I could not find anything in the document relevant to your question."
)

// ChatUseCase answers a question against one document: retrieve, assemble
// the prompt with recent conversation history, generate. Generation failure
// degrades to an apology result; it is never surfaced as a raw error.
type ChatUseCase struct {
	repo      ports.DocumentRepository
	retriever ports.DocumentRetriever
	generator ports.AnswerGenerator
	turns     ports.ConversationStore
	prompts   *PromptBuilder
	logger    *slog.Logger
}

func NewChatUseCase(
	repo ports.DocumentRepository,
	retriever ports.DocumentRetriever,
	generator ports.AnswerGenerator,
	turns ports.ConversationStore,
	prompts *PromptBuilder,
	logger *slog.Logger,
) *ChatUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatUseCase{
		repo:      repo,
		retriever: retriever,
		generator: generator,
		turns:     turns,
		prompts:   prompts,
		logger:    logger,
	}
}

func (uc *ChatUseCase) Answer(
	ctx context.Context,
	documentID, question string,
	maxChunks int,
	minScore float64,
) (*domain.ChatResult, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}

	outcome, err := uc.retriever.Retrieve(ctx, documentID, question, maxChunks, minScore)
	if err != nil {
		return nil, err
	}
	if !outcome.Found {
		return &domain.ChatResult{
			Answer: noContentAnswer,
			Status: domain.ChatStatusNoContent,
		}, nil
	}

	history, err := uc.turns.ListRecentTurns(ctx, documentID, uc.prompts.HistoryTurns)
	if err != nil {
		// History is an enrichment; answer without it rather than failing.
		uc.logger.Warn("list_conversation_history_failed", "document_id", documentID, "error", err)
		history = nil
	}

	systemPrompt := uc.prompts.BuildSystemPrompt(history)
	userPrompt := uc.prompts.BuildUserPrompt(question, outcome.Contexts, doc.Filename)

	answer, err := uc.generator.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		uc.logger.Error("answer_generation_failed", "document_id", documentID, "error", err)
		return &domain.ChatResult{
			Answer:       apologyAnswer,
			Status:       domain.ChatStatusError,
			Sources:      outcome.Sources,
			AverageScore: outcome.AverageScore,
			ErrorDetail:  err.Error(),
		}, nil
	}

	turn := domain.ConversationTurn{
		DocumentID: documentID,
		Question:   question,
		Answer:     answer,
		CreatedAt:  time.Now().UTC(),
	}
	if err := uc.turns.AppendTurn(ctx, turn); err != nil {
		uc.logger.Warn("append_conversation_turn_failed", "document_id", documentID, "error", err)
	}

	return &domain.ChatResult{
		Answer:       answer,
		Status:       domain.ChatStatusSuccess,
		Sources:      outcome.Sources,
		AverageScore: outcome.AverageScore,
	}, nil
}
