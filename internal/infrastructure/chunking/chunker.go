package chunking

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/docqa/internal/core/domain"
)

var (
	paragraphSplitRE = regexp.MustCompile(`\n\s*\n|--- PAGE \d+ ---`)
	sentenceSplitRE  = regexp.MustCompile(`[.!?]+\s+`)
)

// Chunker splits document text into overlapping chunks on paragraph
// boundaries. Sizes are counted in runes.
type Chunker struct {
	chunkSize int
	overlap   int
}

func NewChunker(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Chunker{
		chunkSize: chunkSize,
		overlap:   overlap,
	}
}

// Chunk accumulates paragraphs until the next one would push the buffer past
// chunkSize, then closes the buffer and seeds the next one with the closed
// chunk's last overlap runes. A single paragraph larger than chunkSize is
// split on sentence boundaries instead; those pieces carry no overlap prefix.
// Empty or whitespace-only input yields no chunks.
func (c *Chunker) Chunk(text, documentName string) []domain.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	paragraphs := splitParagraphs(text)

	var (
		chunks   []domain.Chunk
		buf      string
		bufStart int
		searchAt int
	)

	flush := func() {
		if chunk, ok := newChunk(len(chunks), buf, documentName, bufStart); ok {
			chunks = append(chunks, chunk)
		}
		buf = ""
	}

	for _, paragraph := range paragraphs {
		pos := strings.Index(text[searchAt:], paragraph)
		if pos >= 0 {
			pos += searchAt
			searchAt = pos + len(paragraph)
		} else {
			pos = searchAt
		}

		paraLen := utf8.RuneCountInString(paragraph)

		switch {
		case paraLen > c.chunkSize:
			flush()
			for _, piece := range c.splitOversized(paragraph) {
				if chunk, ok := newChunk(len(chunks), piece, documentName, pos); ok {
					chunks = append(chunks, chunk)
				}
			}
			bufStart = searchAt

		case utf8.RuneCountInString(buf)+paraLen > c.chunkSize:
			flush()
			if len(chunks) > 0 && c.overlap > 0 {
				buf = tailRunes(chunks[len(chunks)-1].Content, c.overlap) + "\n\n" + paragraph
			} else {
				buf = paragraph
			}
			bufStart = pos

		default:
			if buf == "" {
				buf = paragraph
				bufStart = pos
			} else {
				buf += "\n\n" + paragraph
			}
		}
	}

	flush()
	return chunks
}

// splitOversized cuts a paragraph on sentence boundaries, regrouping
// sentences up to chunkSize. The original sentence punctuation is collapsed
// to a period on rejoin.
func (c *Chunker) splitOversized(paragraph string) []string {
	sentences := sentenceSplitRE.Split(paragraph, -1)

	var out []string
	cur := ""
	for _, sentence := range sentences {
		if sentence == "" {
			continue
		}
		if utf8.RuneCountInString(cur)+utf8.RuneCountInString(sentence) > c.chunkSize {
			if cur != "" {
				out = append(out, strings.TrimSpace(cur))
			}
			cur = sentence
			continue
		}
		if cur == "" {
			cur = sentence
		} else {
			cur += ". " + sentence
		}
	}
	if strings.TrimSpace(cur) != "" {
		out = append(out, strings.TrimSpace(cur))
	}
	return out
}

func splitParagraphs(text string) []string {
	parts := paragraphSplitRE.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func newChunk(id int, content, documentName string, startPos int) (domain.Chunk, bool) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Chunk{}, false
	}
	sum := md5.Sum([]byte(content))
	return domain.Chunk{
		ID:           id,
		Content:      content,
		DocumentName: documentName,
		CharCount:    utf8.RuneCountInString(content),
		WordCount:    len(strings.Fields(content)),
		StartPos:     startPos,
		ContentHash:  hex.EncodeToString(sum[:]),
	}, true
}

func tailRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
