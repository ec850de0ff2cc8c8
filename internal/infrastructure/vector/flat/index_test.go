package flat

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kirillkom/docqa/internal/core/domain"
)

func testChunks(n int) []domain.Chunk {
	chunks := make([]domain.Chunk, n)
	for i := range chunks {
		chunks[i] = domain.Chunk{
			ID:           i,
			Content:      fmt.Sprintf("chunk %d content", i),
			DocumentName: "doc.txt",
			WordCount:    3,
		}
	}
	return chunks
}

func TestSearchOnUnloadedIndexReturnsEmpty(t *testing.T) {
	idx := NewIndex(t.TempDir(), "doc-1", 3)

	hits, err := idx.Search([]float32{1, 0, 0}, 5, 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %d", len(hits))
	}
}

func TestCreateRejectsDimensionMismatch(t *testing.T) {
	idx := NewIndex(t.TempDir(), "doc-1", 3)

	err := idx.Create([][]float32{{1, 0}}, testChunks(1))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestCreateRejectsVectorChunkCountMismatch(t *testing.T) {
	idx := NewIndex(t.TempDir(), "doc-1", 3)

	err := idx.Create([][]float32{{1, 0, 0}}, testChunks(2))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestSearchRejectsQueryDimensionMismatch(t *testing.T) {
	idx := NewIndex(t.TempDir(), "doc-1", 3)
	if err := idx.Create([][]float32{{1, 0, 0}}, testChunks(1)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err := idx.Search([]float32{1, 0}, 5, 0)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestSearchOrdersByScoreDescending(t *testing.T) {
	idx := NewIndex(t.TempDir(), "doc-1", 3)

	vectors := [][]float32{
		{0, 1, 0},       // orthogonal to the query
		{1, 0, 0},       // exact match
		{0.9, 0.1, 0},   // close
		{0.5, 0.5, 0.5}, // further
	}
	if err := idx.Create(vectors, testChunks(4)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	hits, err := idx.Search([]float32{1, 0, 0}, 10, 0.5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits above threshold, got %d", len(hits))
	}

	if hits[0].Chunk.ID != 1 {
		t.Fatalf("best hit should be the exact match, got chunk %d", hits[0].Chunk.ID)
	}
	if math.Abs(hits[0].Score-1.0) > 1e-6 {
		t.Fatalf("exact match score = %f, want ~1.0", hits[0].Score)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Fatalf("scores not descending at position %d", i)
		}
	}
	for i, hit := range hits {
		if hit.Rank != i+1 {
			t.Fatalf("hit %d has rank %d", i, hit.Rank)
		}
	}
}

func TestSearchThresholdIsInclusive(t *testing.T) {
	idx := NewIndex(t.TempDir(), "doc-1", 3)
	if err := idx.Create([][]float32{{1, 0, 0}}, testChunks(1)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	hits, err := idx.Search([]float32{1, 0, 0}, 5, 1.0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("score equal to threshold should be kept, got %d hits", len(hits))
	}
}

func TestSearchCapsResultsAtK(t *testing.T) {
	idx := NewIndex(t.TempDir(), "doc-1", 2)

	vectors := make([][]float32, 6)
	for i := range vectors {
		vectors[i] = []float32{1, float32(i) * 0.01}
	}
	if err := idx.Create(vectors, testChunks(6)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	hits, err := idx.Search([]float32{1, 0}, 2, 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected k=2 hits, got %d", len(hits))
	}
}

func TestSearchTiesKeepInsertionOrder(t *testing.T) {
	idx := NewIndex(t.TempDir(), "doc-1", 3)

	vectors := [][]float32{
		{0, 1, 0},
		{0, 1, 0},
		{0, 1, 0},
	}
	if err := idx.Create(vectors, testChunks(3)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	hits, err := idx.Search([]float32{0, 1, 0}, 10, 0.5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	for i, hit := range hits {
		if hit.Chunk.ID != i {
			t.Fatalf("tied hits reordered: position %d has chunk %d", i, hit.Chunk.ID)
		}
	}
}

func TestPersistLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	original := NewIndex(dir, "doc-1", 3)
	vectors := [][]float32{
		{1, 0, 0},
		{0, 3, 4},
	}
	if err := original.Create(vectors, testChunks(2)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	reloaded := NewIndex(dir, "doc-1", 3)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	stats := reloaded.Stats()
	if !stats.Loaded || stats.TotalChunks != 2 || stats.Dimension != 3 {
		t.Fatalf("unexpected stats after load: %+v", stats)
	}

	hits, err := reloaded.Search([]float32{0, 3, 4}, 1, 0.9)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].Chunk.ID != 1 {
		t.Fatalf("unexpected hits after reload: %+v", hits)
	}
	if math.Abs(hits[0].Score-1.0) > 1e-6 {
		t.Fatalf("stored vectors should be normalized, score = %f", hits[0].Score)
	}
}

func TestLoadMissingArtifactsIsNotFound(t *testing.T) {
	idx := NewIndex(t.TempDir(), "doc-1", 3)

	err := idx.Load()
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLoadGarbageVectorArtifactIsCorrupted(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "doc-1.vec"), []byte("not a vector file"), 0o644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}

	idx := NewIndex(dir, "doc-1", 3)
	err := idx.Load()
	if !domain.IsKind(err, domain.ErrCorrupted) {
		t.Fatalf("expected corrupted, got %v", err)
	}
}

func TestLoadCountMismatchIsCorrupted(t *testing.T) {
	dir := t.TempDir()

	idx := NewIndex(dir, "doc-1", 3)
	if err := idx.Create([][]float32{{1, 0, 0}, {0, 1, 0}}, testChunks(2)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	// Truncate metadata to one record while two vectors remain on disk.
	if err := os.WriteFile(filepath.Join(dir, "doc-1_meta.json"), []byte(`[{"chunk_id":0,"content":"only one"}]`), 0o644); err != nil {
		t.Fatalf("overwrite metadata: %v", err)
	}

	fresh := NewIndex(dir, "doc-1", 3)
	err := fresh.Load()
	if !domain.IsKind(err, domain.ErrCorrupted) {
		t.Fatalf("expected corrupted, got %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	dir := t.TempDir()

	idx := NewIndex(dir, "doc-1", 3)
	if err := idx.Create([][]float32{{1, 0, 0}}, testChunks(1)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := idx.Delete(); err != nil {
		t.Fatalf("first Delete() error = %v", err)
	}
	if err := idx.Delete(); err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "doc-1.vec")); !os.IsNotExist(err) {
		t.Fatalf("vector artifact should be gone")
	}
	if stats := idx.Stats(); stats.Loaded || stats.TotalChunks != 0 {
		t.Fatalf("state should be cleared after delete: %+v", stats)
	}
}

func TestPersistWithoutStateFails(t *testing.T) {
	idx := NewIndex(t.TempDir(), "doc-1", 3)

	err := idx.Persist()
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestConcurrentAppendsKeepPairingIntact(t *testing.T) {
	idx := NewIndex(t.TempDir(), "doc-1", 2)

	const writers = 8
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			vectors := [][]float32{{1, float32(w)}}
			chunks := []domain.Chunk{{ID: w, Content: fmt.Sprintf("w%d", w)}}
			if err := idx.Append(vectors, chunks); err != nil {
				t.Errorf("Append() error = %v", err)
			}
		}(w)
	}
	wg.Wait()

	stats := idx.Stats()
	if stats.TotalChunks != writers {
		t.Fatalf("expected %d entries, got %d", writers, stats.TotalChunks)
	}

	hits, err := idx.Search([]float32{1, 0}, writers, -1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != writers {
		t.Fatalf("expected %d hits, got %d", writers, len(hits))
	}
}
