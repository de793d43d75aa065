// Package docx extracts the text of Word documents.
//
// Pages follow explicit page breaks in the document body; a document
// without any is a single page.
package docx

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/domainrag/internal/core/domain"
	"github.com/custodia-labs/domainrag/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// Extractor handles DOCX documents.
type Extractor struct{}

// New creates a new DOCX extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name identifies the extractor.
func (e *Extractor) Name() string { return "docx" }

// Supports returns true for .docx files.
func (e *Extractor) Supports(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".docx")
}

// Extract reads word/document.xml from the archive at path.
func (e *Extractor) Extract(_ context.Context, path string) (*domain.ExtractedDocument, error) {
	if path == "" {
		return nil, domain.ErrInvalidInput
	}

	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w: %w", path, domain.ErrUnsupportedType, err)
	}
	defer reader.Close()

	body, err := readDocumentXML(&reader.Reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	pages, err := parseDocumentXML(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &domain.ExtractedDocument{
		Name:  filepath.Base(path),
		Path:  path,
		Pages: pages,
	}, nil
}

// readDocumentXML returns the content of word/document.xml.
func readDocumentXML(reader *zip.Reader) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("opening document part: %w", err)
		}
		defer rc.Close()

		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("reading document part: %w", err)
		}
		return content, nil
	}
	return nil, fmt.Errorf("no word/document.xml: %w", domain.ErrUnsupportedType)
}

// documentXML represents the structure of word/document.xml.
type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Breaks []lineBreak    `xml:"br"`
	Text   []textElement `xml:"t"`
}

type lineBreak struct {
	Type string `xml:"type,attr"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

// parseDocumentXML returns one page per page-break-separated section.
func parseDocumentXML(content []byte) ([]domain.Page, error) {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("parsing document xml: %w", err)
	}

	var (
		pages []domain.Page
		page  strings.Builder
	)
	flush := func() {
		pages = append(pages, domain.Page{
			Number: len(pages) + 1,
			Text:   strings.TrimSpace(page.String()),
		})
		page.Reset()
	}

	for i, para := range doc.Body.Paragraphs {
		if i > 0 && page.Len() > 0 {
			page.WriteString("\n")
		}
		for _, r := range para.Runs {
			for _, br := range r.Breaks {
				if br.Type == "page" {
					flush()
				}
			}
			for _, text := range r.Text {
				page.WriteString(text.Content)
			}
		}
	}
	flush()
	return pages, nil
}
