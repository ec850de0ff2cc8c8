package flat

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kirillkom/docqa/internal/core/domain"
)

// Vector artifact layout: magic, format version, dimension, row count as
// uint32 little-endian, then count*dim float32 values row-major.
const (
	vectorMagic   = "DQVI"
	formatVersion = 1
)

func (idx *Index) persistPairs(vectors [][]float32, chunks []domain.Chunk) error {
	if err := os.MkdirAll(filepath.Dir(idx.vectorPath), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	if err := writeAtomic(idx.vectorPath, func(f *os.File) error {
		return writeVectors(f, idx.dim, vectors)
	}); err != nil {
		return fmt.Errorf("write vector artifact: %w", err)
	}
	if err := writeAtomic(idx.metaPath, func(f *os.File) error {
		enc := json.NewEncoder(f)
		return enc.Encode(chunks)
	}); err != nil {
		return fmt.Errorf("write metadata artifact: %w", err)
	}
	return nil
}

// writeAtomic writes through a temp file in the target directory and renames
// it into place, so readers never observe a partially written artifact.
func writeAtomic(path string, write func(*os.File) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func writeVectors(f *os.File, dim int, vectors [][]float32) error {
	w := bufio.NewWriter(f)
	if _, err := w.WriteString(vectorMagic); err != nil {
		return err
	}
	header := []uint32{formatVersion, uint32(dim), uint32(len(vectors))}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	for _, vec := range vectors {
		if err := binary.Write(w, binary.LittleEndian, vec); err != nil {
			return err
		}
	}
	return w.Flush()
}

func readVectors(path string) ([][]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, domain.WrapError(domain.ErrNotFound, "load index", err)
		}
		return nil, 0, fmt.Errorf("open vector artifact: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	magic := make([]byte, len(vectorMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != vectorMagic {
		return nil, 0, domain.WrapError(domain.ErrCorrupted, "load index",
			fmt.Errorf("bad vector artifact header"))
	}

	var version, dim, count uint32
	for _, dst := range []*uint32{&version, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return nil, 0, domain.WrapError(domain.ErrCorrupted, "load index", err)
		}
	}
	if version != formatVersion {
		return nil, 0, domain.WrapError(domain.ErrCorrupted, "load index",
			fmt.Errorf("unsupported vector format version %d", version))
	}

	vectors := make([][]float32, 0, count)
	for i := uint32(0); i < count; i++ {
		vec := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return nil, 0, domain.WrapError(domain.ErrCorrupted, "load index",
				fmt.Errorf("truncated vector row %d: %w", i, err))
		}
		vectors = append(vectors, vec)
	}
	return vectors, int(dim), nil
}

func readChunkMeta(path string) ([]domain.Chunk, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrNotFound, "load index", err)
		}
		return nil, fmt.Errorf("read metadata artifact: %w", err)
	}
	var chunks []domain.Chunk
	if err := json.Unmarshal(raw, &chunks); err != nil {
		return nil, domain.WrapError(domain.ErrCorrupted, "load index", err)
	}
	return chunks, nil
}

func removeArtifact(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
