package usecase

import (
	"bytes"
	"context"
	"io"

	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/core/ports"
)

type statusCall struct {
	status domain.DocumentStatus
	errMsg string
}

type repoFake struct {
	doc       *domain.Document
	getErr    error
	createErr error

	created []domain.Document

	statusCalls []statusCall
	statusErr   error

	savedChunkCount int
	savedWordCount  int
	saveStatsErr    error

	deletedIDs []string
	deleteErr  error
}

func (f *repoFake) Create(_ context.Context, doc *domain.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, *doc)
	return nil
}

func (f *repoFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	copyDoc := *f.doc
	return &copyDoc, nil
}

func (f *repoFake) List(context.Context) ([]domain.Document, error) {
	if f.doc == nil {
		return nil, nil
	}
	return []domain.Document{*f.doc}, nil
}

func (f *repoFake) UpdateStatus(_ context.Context, _ string, status domain.DocumentStatus, errMessage string) error {
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	if f.statusErr != nil {
		return f.statusErr
	}
	return nil
}

func (f *repoFake) SaveIndexStats(_ context.Context, _ string, chunkCount, wordCount int) error {
	if f.saveStatsErr != nil {
		return f.saveStatsErr
	}
	f.savedChunkCount = chunkCount
	f.savedWordCount = wordCount
	return nil
}

func (f *repoFake) Delete(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedIDs = append(f.deletedIDs, id)
	return nil
}

type storageFake struct {
	saved       map[string][]byte
	saveErr     error
	removedKeys []string
	removeErr   error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.saved == nil {
		f.saved = make(map[string][]byte)
	}
	f.saved[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.saved[key])), nil
}

func (f *storageFake) Remove(_ context.Context, key string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removedKeys = append(f.removedKeys, key)
	return nil
}

type queueFake struct {
	published  []string
	publishErr error
}

func (f *queueFake) PublishDocumentIngested(_ context.Context, documentID string) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, documentID)
	return nil
}

func (f *queueFake) SubscribeDocumentIngested(context.Context, func(context.Context, string) error) error {
	return nil
}

type extractorFake struct {
	text string
	err  error
}

func (f *extractorFake) Extract(context.Context, *domain.Document) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type chunkerFake struct {
	chunks []domain.Chunk
}

func (f *chunkerFake) Chunk(string, string) []domain.Chunk { return f.chunks }

type embedderFake struct {
	vectors  [][]float32
	embedErr error
	queryVec []float32
	queryErr error
}

func (f *embedderFake) Embed(context.Context, []string) ([][]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.vectors, nil
}

func (f *embedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.queryVec, nil
}

type indexFake struct {
	appendedVectors [][]float32
	appendedChunks  []domain.Chunk
	appendErr       error

	searchHits   []domain.RetrievedChunk
	searchErr    error
	lastK        int
	lastThresh   float64
	deleteCalled bool
}

func (f *indexFake) Create(vectors [][]float32, chunks []domain.Chunk) error {
	return f.Append(vectors, chunks)
}

func (f *indexFake) Append(vectors [][]float32, chunks []domain.Chunk) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appendedVectors = append(f.appendedVectors, vectors...)
	f.appendedChunks = append(f.appendedChunks, chunks...)
	return nil
}

func (f *indexFake) Search(_ []float32, k int, threshold float64) ([]domain.RetrievedChunk, error) {
	f.lastK = k
	f.lastThresh = threshold
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchHits, nil
}

func (f *indexFake) Persist() error { return nil }
func (f *indexFake) Load() error    { return nil }

func (f *indexFake) Delete() error {
	f.deleteCalled = true
	return nil
}

func (f *indexFake) Stats() domain.IndexStats {
	return domain.IndexStats{Loaded: true, TotalChunks: len(f.appendedChunks)}
}

type registryFake struct {
	idx        *indexFake
	gotID      string
	gotDim     int
	deletedIDs []string
	deleteErr  error
}

func (f *registryFake) GetOrLoad(documentID string, dimension int) ports.SimilarityIndex {
	f.gotID = documentID
	f.gotDim = dimension
	return f.idx
}

func (f *registryFake) Invalidate(string) {}

func (f *registryFake) Delete(documentID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedIDs = append(f.deletedIDs, documentID)
	return nil
}

func (f *registryFake) CachedCount() int { return 0 }

type retrieverFake struct {
	outcome *domain.RetrievalOutcome
	err     error
}

func (f *retrieverFake) Retrieve(context.Context, string, string, int, float64) (*domain.RetrievalOutcome, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome, nil
}

type generatorFake struct {
	answer    string
	err       error
	gotSystem string
	gotUser   string
}

func (f *generatorFake) Complete(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	f.gotSystem = systemPrompt
	f.gotUser = userPrompt
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type turnsFake struct {
	turns     []domain.ConversationTurn
	listErr   error
	appended  []domain.ConversationTurn
	appendErr error
}

func (f *turnsFake) AppendTurn(_ context.Context, turn domain.ConversationTurn) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, turn)
	return nil
}

func (f *turnsFake) ListRecentTurns(context.Context, string, int) ([]domain.ConversationTurn, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.turns, nil
}

func (f *turnsFake) ClearTurns(context.Context, string) error {
	f.turns = nil
	return nil
}
