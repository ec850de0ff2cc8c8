package extractor

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/core/ports"
)

// Dispatcher routes extraction to a format-specific extractor by mime type,
// falling back to the filename extension and then to plain text.
type Dispatcher struct {
	plaintext ports.TextExtractor
	pdf       ports.TextExtractor
	xlsx      ports.TextExtractor
}

func NewDispatcher(plaintext, pdf, xlsx ports.TextExtractor) *Dispatcher {
	return &Dispatcher{
		plaintext: plaintext,
		pdf:       pdf,
		xlsx:      xlsx,
	}
}

func (d *Dispatcher) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	return d.pick(doc).Extract(ctx, doc)
}

func (d *Dispatcher) pick(doc *domain.Document) ports.TextExtractor {
	mime := strings.ToLower(doc.MimeType)
	ext := strings.ToLower(filepath.Ext(doc.Filename))

	switch {
	case strings.Contains(mime, "pdf") || ext == ".pdf":
		return d.pdf
	case strings.Contains(mime, "spreadsheet") || ext == ".xlsx":
		return d.xlsx
	default:
		return d.plaintext
	}
}
