package flat

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"sync"

	"github.com/kirillkom/docqa/internal/core/domain"
)

// Index is a per-document brute-force similarity index over L2-normalized
// vectors, so inner product equals cosine similarity. Vectors and chunk
// metadata are parallel slices; their lengths must match at all times.
// Mutations take the write lock, searches the read lock, which serializes
// mutations per document since the registry hands out one Index per id.
type Index struct {
	documentID string
	dim        int
	vectorPath string
	metaPath   string

	mu      sync.RWMutex
	loaded  bool
	vectors [][]float32
	chunks  []domain.Chunk
}

func NewIndex(dir, documentID string, dim int) *Index {
	return &Index{
		documentID: documentID,
		dim:        dim,
		vectorPath: filepath.Join(dir, documentID+".vec"),
		metaPath:   filepath.Join(dir, documentID+"_meta.json"),
	}
}

// Create replaces any existing state with the given pairs and persists.
func (idx *Index) Create(vectors [][]float32, chunks []domain.Chunk) error {
	normalized, err := idx.validateAndNormalize(vectors, chunks)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.persistPairs(normalized, chunks); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}
	idx.vectors = normalized
	idx.chunks = append([]domain.Chunk(nil), chunks...)
	idx.loaded = true
	return nil
}

// Append extends the index, behaving as Create when it holds nothing yet.
// The combined state is persisted before memory is updated, so a failed
// persist leaves the previous state intact.
func (idx *Index) Append(vectors [][]float32, chunks []domain.Chunk) error {
	normalized, err := idx.validateAndNormalize(vectors, chunks)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	combinedVecs := make([][]float32, 0, len(idx.vectors)+len(normalized))
	combinedVecs = append(combinedVecs, idx.vectors...)
	combinedVecs = append(combinedVecs, normalized...)

	combinedChunks := make([]domain.Chunk, 0, len(idx.chunks)+len(chunks))
	combinedChunks = append(combinedChunks, idx.chunks...)
	combinedChunks = append(combinedChunks, chunks...)

	if err := idx.persistPairs(combinedVecs, combinedChunks); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}
	idx.vectors = combinedVecs
	idx.chunks = combinedChunks
	idx.loaded = true
	return nil
}

// Search scans every stored vector, keeps scores >= threshold, and returns
// at most k results in descending score order. Ties keep insertion order.
// An index with no loaded state returns an empty result, not an error.
func (idx *Index) Search(query []float32, k int, threshold float64) ([]domain.RetrievedChunk, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.loaded || len(idx.vectors) == 0 {
		return nil, nil
	}
	if len(query) != idx.dim {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search index",
			fmt.Errorf("query dimension %d, index dimension %d", len(query), idx.dim))
	}

	q := normalize(query)

	hits := make([]domain.RetrievedChunk, 0, len(idx.vectors))
	for i, vec := range idx.vectors {
		score := dot(q, vec)
		if score >= threshold {
			hits = append(hits, domain.RetrievedChunk{
				Chunk: idx.chunks[i],
				Score: score,
			})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	for i := range hits {
		hits[i].Rank = i + 1
	}
	return hits, nil
}

// Persist writes the current state to the durable artifacts.
func (idx *Index) Persist() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.loaded {
		return domain.WrapError(domain.ErrInvalidInput, "persist index", errors.New("index has no state"))
	}
	if err := idx.persistPairs(idx.vectors, idx.chunks); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}
	return nil
}

// Load reads both artifacts. Either file missing is reported as ErrNotFound;
// a count mismatch between them is ErrCorrupted.
func (idx *Index) Load() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	vectors, dim, err := readVectors(idx.vectorPath)
	if err != nil {
		return err
	}
	chunks, err := readChunkMeta(idx.metaPath)
	if err != nil {
		return err
	}
	if len(vectors) != len(chunks) {
		return domain.WrapError(domain.ErrCorrupted, "load index",
			fmt.Errorf("%d vectors, %d chunk records", len(vectors), len(chunks)))
	}
	if dim != 0 && dim != idx.dim {
		return domain.WrapError(domain.ErrCorrupted, "load index",
			fmt.Errorf("stored dimension %d, configured %d", dim, idx.dim))
	}

	idx.vectors = vectors
	idx.chunks = chunks
	idx.loaded = true
	return nil
}

// Delete removes both artifacts and clears in-memory state. Idempotent.
func (idx *Index) Delete() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := removeArtifact(idx.vectorPath); err != nil {
		return fmt.Errorf("remove vector artifact: %w", err)
	}
	if err := removeArtifact(idx.metaPath); err != nil {
		return fmt.Errorf("remove metadata artifact: %w", err)
	}
	idx.vectors = nil
	idx.chunks = nil
	idx.loaded = false
	return nil
}

func (idx *Index) Stats() domain.IndexStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return domain.IndexStats{
		Loaded:      idx.loaded,
		TotalChunks: len(idx.vectors),
		Dimension:   idx.dim,
	}
}

func (idx *Index) validateAndNormalize(vectors [][]float32, chunks []domain.Chunk) ([][]float32, error) {
	if len(vectors) == 0 || len(vectors) != len(chunks) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "index chunks",
			fmt.Errorf("%d vectors, %d chunks", len(vectors), len(chunks)))
	}
	normalized := make([][]float32, len(vectors))
	for i, vec := range vectors {
		if len(vec) != idx.dim {
			return nil, domain.WrapError(domain.ErrInvalidInput, "index chunks",
				fmt.Errorf("vector %d has dimension %d, expected %d", i, len(vec), idx.dim))
		}
		normalized[i] = normalize(vec)
	}
	return normalized, nil
}

// normalize returns an L2-normalized copy; zero vectors are copied as-is.
func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	out := make([]float32, len(vec))
	if sum == 0 {
		copy(out, vec)
		return out
	}
	norm := math.Sqrt(sum)
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
