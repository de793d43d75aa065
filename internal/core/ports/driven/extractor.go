package driven

import (
	"context"

	"github.com/custodia-labs/domainrag/internal/core/domain"
)

// TextExtractor reads a file into page texts.
type TextExtractor interface {
	// Name identifies the extractor in logs.
	Name() string

	// Supports returns true if the extractor handles the file.
	Supports(path string) bool

	// Extract returns the document's pages in order.
	Extract(ctx context.Context, path string) (*domain.ExtractedDocument, error)
}

// TextNormaliser prepares text for embedding.
type TextNormaliser interface {
	Normalize(text string) string
}
