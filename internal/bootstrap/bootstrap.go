package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/docqa/internal/config"
	"github.com/kirillkom/docqa/internal/core/ports"
	"github.com/kirillkom/docqa/internal/core/usecase"
	"github.com/kirillkom/docqa/internal/infrastructure/chunking"
	"github.com/kirillkom/docqa/internal/infrastructure/extractor"
	"github.com/kirillkom/docqa/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/docqa/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/docqa/internal/infrastructure/extractor/xlsx"
	"github.com/kirillkom/docqa/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/docqa/internal/infrastructure/queue/nats"
	"github.com/kirillkom/docqa/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/docqa/internal/infrastructure/resilience"
	"github.com/kirillkom/docqa/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/docqa/internal/infrastructure/vector/flat"
)

type App struct {
	Config config.Config

	Queue    ports.MessageQueue
	Repo     ports.DocumentRepository
	Turns    ports.ConversationStore
	Registry ports.IndexRegistry

	IngestUC   ports.DocumentIngestor
	ProcessUC  ports.DocumentProcessor
	RetrieveUC ports.DocumentRetriever
	ChatUC     ports.DocumentChatService
	RemoveUC   ports.DocumentRemover

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	turns := postgres.NewConversationRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	registry := flat.NewRegistry(cfg.IndexDir, logger)
	chunker := chunking.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	extract := extractor.NewDispatcher(
		plaintext.NewExtractor(storage),
		pdf.NewExtractor(storage),
		xlsx.NewExtractor(storage),
	)

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue, registry)
	processUC := usecase.NewProcessDocumentUseCase(repo, extract, chunker, embedder, registry, cfg.EmbeddingDim)
	retrieveUC := usecase.NewRetrieveUseCase(embedder, registry, cfg.EmbeddingDim, cfg.RetrievalMaxChunks, cfg.RetrievalMinScore)
	prompts := usecase.NewPromptBuilder(cfg.ContextCharBudget, cfg.HistoryTurns, cfg.HistoryAnswerCap)
	chatUC := usecase.NewChatUseCase(repo, retrieveUC, generator, turns, prompts, logger)
	removeUC := usecase.NewRemoveDocumentUseCase(repo, storage, registry, logger)

	return &App{
		Config:   cfg,
		Queue:    queue,
		Repo:     repo,
		Turns:    turns,
		Registry: registry,

		IngestUC:   ingestUC,
		ProcessUC:  processUC,
		RetrieveUC: retrieveUC,
		ChatUC:     chatUC,
		RemoveUC:   removeUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
