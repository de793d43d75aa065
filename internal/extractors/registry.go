// Package extractors selects a text extractor for an input file.
package extractors

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/domainrag/internal/core/domain"
	"github.com/custodia-labs/domainrag/internal/core/ports/driven"
	"github.com/custodia-labs/domainrag/internal/extractors/docx"
	"github.com/custodia-labs/domainrag/internal/extractors/html"
	"github.com/custodia-labs/domainrag/internal/extractors/pdf"
	"github.com/custodia-labs/domainrag/internal/extractors/plaintext"
)

// Registry holds extractors in registration order. The first extractor
// that supports a path handles it.
type Registry struct {
	extractors []driven.TextExtractor
}

var _ driven.TextExtractor = (*Registry)(nil)

// NewRegistry creates a registry with the given extractors.
func NewRegistry(extractors ...driven.TextExtractor) *Registry {
	return &Registry{extractors: extractors}
}

// NewDefaultRegistry registers the built-in extractors.
func NewDefaultRegistry() *Registry {
	return NewRegistry(pdf.New(), docx.New(), html.New(), plaintext.New())
}

// Name identifies the registry in logs.
func (r *Registry) Name() string {
	return "registry"
}

// Register appends an extractor.
func (r *Registry) Register(e driven.TextExtractor) {
	r.extractors = append(r.extractors, e)
}

// For returns the extractor for path.
func (r *Registry) For(path string) (driven.TextExtractor, error) {
	for _, e := range r.extractors {
		if e.Supports(path) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("no extractor for %q: %w", filepath.Ext(path), domain.ErrUnsupportedType)
}

// Supports returns true if any extractor handles path.
func (r *Registry) Supports(path string) bool {
	_, err := r.For(path)
	return err == nil
}

// Extract dispatches to the matching extractor.
func (r *Registry) Extract(ctx context.Context, path string) (*domain.ExtractedDocument, error) {
	e, err := r.For(path)
	if err != nil {
		return nil, err
	}
	return e.Extract(ctx, path)
}

// Names returns the registered extractor names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.extractors))
	for _, e := range r.extractors {
		names = append(names, e.Name())
	}
	return names
}
