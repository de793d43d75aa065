// Package plaintext extracts text and markdown files as a single page.
package plaintext

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/domainrag/internal/core/domain"
	"github.com/custodia-labs/domainrag/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

var extensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
}

// Extractor handles plain text documents.
type Extractor struct{}

// New creates a new plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name identifies the extractor.
func (e *Extractor) Name() string { return "plaintext" }

// Supports returns true for .txt and .md files.
func (e *Extractor) Supports(path string) bool {
	return extensions[strings.ToLower(filepath.Ext(path))]
}

// Extract reads the whole file as page 1.
func (e *Extractor) Extract(_ context.Context, path string) (*domain.ExtractedDocument, error) {
	if path == "" {
		return nil, domain.ErrInvalidInput
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%s is not valid UTF-8: %w", path, domain.ErrUnsupportedType)
	}

	return &domain.ExtractedDocument{
		Name:  filepath.Base(path),
		Path:  path,
		Pages: []domain.Page{{Number: 1, Text: string(data)}},
	}, nil
}
