// Package html extracts the readable text of HTML files as a single page.
package html

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	nethtml "golang.org/x/net/html"

	"github.com/custodia-labs/domainrag/internal/core/domain"
	"github.com/custodia-labs/domainrag/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// Extractor handles HTML documents.
type Extractor struct{}

// New creates a new HTML extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name identifies the extractor.
func (e *Extractor) Name() string { return "html" }

// Supports returns true for .html, .htm and .xhtml files.
func (e *Extractor) Supports(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xhtml":
		return true
	}
	return false
}

// Extract strips markup and returns the text as page 1. The <title>, when
// present, leads the page.
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

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	title := documentTitle(doc)
	text := documentText(doc)
	if title != "" && !strings.HasPrefix(text, title) {
		text = title + "\n" + text
	}

	return &domain.ExtractedDocument{
		Name:  filepath.Base(path),
		Path:  path,
		Pages: []domain.Page{{Number: 1, Text: text}},
	}, nil
}

// skipped elements carry no readable text.
const skipped = "head, script, style, noscript, svg, template, iframe"

// blocks start and end a line of text.
var blocks = map[string]bool{
	"p": true, "div": true, "br": true, "hr": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true, "table": true, "section": true, "article": true,
	"ul": true, "ol": true, "dl": true, "dt": true, "dd": true,
	"header": true, "footer": true, "nav": true, "main": true, "aside": true,
	"figure": true, "figcaption": true, "caption": true,
}

// Title returns the decoded <title> text, or "".
func Title(content string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return ""
	}
	return documentTitle(doc)
}

// StripHTML removes markup and returns the readable text, one block per line.
func StripHTML(content string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return ""
	}
	return documentText(doc)
}

func documentTitle(doc *goquery.Document) string {
	return strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
}

// documentText drops non-content elements from doc and flattens the rest.
func documentText(doc *goquery.Document) string {
	doc.Find(skipped).Remove()

	var b strings.Builder
	for _, n := range doc.Nodes {
		writeText(&b, n)
	}

	lines := strings.Split(b.String(), "\n")
	result := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			result = append(result, line)
		}
	}
	return strings.Join(result, "\n")
}

func writeText(b *strings.Builder, n *nethtml.Node) {
	switch n.Type {
	case nethtml.TextNode:
		// Source line breaks inside a block are just spacing.
		b.WriteString(strings.ReplaceAll(n.Data, "\n", " "))
		return
	case nethtml.CommentNode, nethtml.DoctypeNode:
		return
	}

	block := n.Type == nethtml.ElementNode && blocks[n.Data]
	if block {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if block {
		b.WriteByte('\n')
	}
}
