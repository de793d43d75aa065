package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Page is the text of one page of an extracted document.
type Page struct {
	// Number is the 1-based page number.
	Number int

	// Text is the raw page text.
	Text string
}

// ExtractedDocument is a file's text split into pages, before persistence.
type ExtractedDocument struct {
	// Name is the file base name.
	Name string

	// Path is the file location.
	Path string

	// Pages holds the page texts in order.
	Pages []Page
}

// NonEmptyPages returns the pages with non-whitespace text.
func (d *ExtractedDocument) NonEmptyPages() []Page {
	pages := make([]Page, 0, len(d.Pages))
	for _, p := range d.Pages {
		if strings.TrimSpace(p.Text) != "" {
			pages = append(pages, p)
		}
	}
	return pages
}

// ContentHash returns the deduplication key for the document: the SHA-256
// of all page texts joined with newlines.
func (d *ExtractedDocument) ContentHash() string {
	texts := make([]string, len(d.Pages))
	for i, p := range d.Pages {
		texts[i] = p.Text
	}
	sum := sha256.Sum256([]byte(strings.Join(texts, "\n")))
	return hex.EncodeToString(sum[:])
}

// DocumentFile is a unique document stored in a domain database.
type DocumentFile struct {
	// ID is the domain database identifier.
	ID int64

	// Hash is the content hash, unique per domain.
	Hash string

	// Name is the file base name.
	Name string

	// Path is where the file was ingested from.
	Path string

	// TotalPages is the number of pages extracted.
	TotalPages int

	// CreatedAt is when the document was ingested.
	CreatedAt time.Time

	// UpdatedAt is when the row was last modified.
	UpdatedAt time.Time
}

// ChunkMetadata is stored as JSON alongside each chunk.
type ChunkMetadata struct {
	// PageList holds the pages the chunk draws text from.
	PageList []int `json:"page_list"`

	// IndexList holds the in-document indices of the chunk's pieces.
	IndexList []int `json:"index_list"`

	// Keywords holds extracted keywords.
	Keywords []string `json:"keywords"`

	// StartIndex is the rune offset of the chunk within its page.
	// Only the recursive strategy sets it.
	StartIndex *int `json:"start_index,omitempty"`
}

// ChunkDraft is a chunk produced by a strategy that has no id yet.
type ChunkDraft struct {
	Content  string
	Metadata ChunkMetadata
}

// Chunk is a unit of retrievable text stored in a domain database.
type Chunk struct {
	// ID is the domain database identifier. It equals the vector index id.
	ID int64

	// DocumentID links to the parent DocumentFile.
	DocumentID int64

	// Content is the chunk text.
	Content string

	// Metadata holds page, index and keyword information.
	Metadata ChunkMetadata

	// CreatedAt is when the chunk was persisted.
	CreatedAt time.Time
}

// Embedding links a chunk to its vector in the domain index.
// VectorIndexID always equals ChunkID.
type Embedding struct {
	ID              int64
	ChunkID         int64
	VectorIndexPath string
	VectorIndexID   int64
	Dimension       int
}
