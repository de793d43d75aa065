// Package splitter wraps the eino recursive text splitter with rune-based
// lengths and a hard-cut fallback for fragments no separator can break.
package splitter

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"

	"github.com/custodia-labs/domainrag/internal/core/domain"
)

// Separators is the split precedence, coarsest first. The final fallback of
// splitting between arbitrary characters is handled by hardCut.
var Separators = []string{"\n\n", "\n", ".", "!", "?", ";", ":", ",", " "}

// Piece is one split fragment and its rune offset in the source text.
// Start is -1 when the fragment could not be located.
type Piece struct {
	Text  string
	Start int
}

// Splitter splits text into pieces of at most Size runes.
type Splitter struct {
	size    int
	overlap int
	impl    document.Transformer
}

// New builds a splitter. Overlap is clamped below size.
func New(ctx context.Context, size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size %d: %w", size, domain.ErrInvalidConfig)
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 4
	}

	impl, err := recursive.NewSplitter(ctx, &recursive.Config{
		ChunkSize:   size,
		OverlapSize: overlap,
		Separators:  Separators,
		LenFunc:     utf8.RuneCountInString,
		KeepType:    recursive.KeepTypeEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("creating recursive splitter: %w", err)
	}

	return &Splitter{size: size, overlap: overlap, impl: impl}, nil
}

// Size returns the maximum piece length in runes.
func (s *Splitter) Size() int { return s.size }

// Overlap returns the overlap between neighbouring pieces in runes.
func (s *Splitter) Overlap() int { return s.overlap }

// Split returns the non-blank pieces of text in order.
func (s *Splitter) Split(ctx context.Context, text string) ([]Piece, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	docs, err := s.impl.Transform(ctx, []*schema.Document{{Content: text}})
	if err != nil {
		return nil, fmt.Errorf("splitting text: %w", err)
	}

	var pieces []Piece
	cursor := 0
	for _, d := range docs {
		if d == nil {
			continue
		}
		for _, frag := range s.hardCut(d.Content) {
			if strings.TrimSpace(frag) == "" {
				continue
			}
			start := locate(text, frag, cursor)
			if start >= 0 {
				cursor = start + 1
			}
			pieces = append(pieces, Piece{Text: frag, Start: start})
		}
	}
	return pieces, nil
}

// hardCut splits text longer than size into rune windows with overlap.
func (s *Splitter) hardCut(text string) []string {
	runes := []rune(text)
	if len(runes) <= s.size {
		return []string{text}
	}

	step := s.size - s.overlap
	if step <= 0 {
		step = 1
	}

	var out []string
	for i := 0; i < len(runes); i += step {
		end := i + s.size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

// locate returns the rune offset of frag in text, searching from the rune
// offset cursor first and then from the beginning.
func locate(text, frag string, cursor int) int {
	byteCursor := runeToByte(text, cursor)
	if i := strings.Index(text[byteCursor:], frag); i >= 0 {
		return cursor + utf8.RuneCountInString(text[byteCursor:byteCursor+i])
	}
	if i := strings.Index(text, frag); i >= 0 {
		return utf8.RuneCountInString(text[:i])
	}
	return -1
}

func runeToByte(text string, runes int) int {
	if runes <= 0 {
		return 0
	}
	n := 0
	for i := range text {
		if n == runes {
			return i
		}
		n++
	}
	return len(text)
}
