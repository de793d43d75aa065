// Package keywords ranks representative keywords for chunk text.
//
// Candidates are one- and two-word phrases with stop words removed. With an
// embedder, candidates are ranked by cosine similarity to the whole text;
// otherwise, or when embedding fails, by term frequency.
package keywords

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/charmbracelet/log"

	"github.com/custodia-labs/domainrag/internal/core/ports/driven"
)

// MaxCandidates bounds how many candidates are embedded per call.
const MaxCandidates = 64

var _ driven.KeywordExtractor = (*Extractor)(nil)

// Extractor implements driven.KeywordExtractor.
type Extractor struct {
	embedder driven.EmbeddingService
	logger   *log.Logger
}

// New creates an extractor. A nil embedder selects frequency ranking.
func New(embedder driven.EmbeddingService, logger *log.Logger) *Extractor {
	return &Extractor{embedder: embedder, logger: logger}
}

type candidate struct {
	phrase string
	count  int
	first  int
	score  float64
}

// Extract returns at most topN keywords, best first.
func (e *Extractor) Extract(ctx context.Context, text string, topN int) []string {
	if topN <= 0 {
		return nil
	}
	cands := candidates(text)
	if len(cands) == 0 {
		return nil
	}

	byFrequency(cands)
	if len(cands) > MaxCandidates {
		cands = cands[:MaxCandidates]
	}

	if e.embedder != nil {
		if err := e.rankBySimilarity(ctx, text, cands); err != nil {
			if e.logger != nil {
				e.logger.Warn("keyword embedding failed, using term frequency", "err", err)
			}
			byFrequency(cands)
		}
	}

	if len(cands) > topN {
		cands = cands[:topN]
	}
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.phrase
	}
	return out
}

func (e *Extractor) rankBySimilarity(ctx context.Context, text string, cands []candidate) error {
	inputs := make([]string, 0, len(cands)+1)
	inputs = append(inputs, text)
	for _, c := range cands {
		inputs = append(inputs, c.phrase)
	}

	vecs, err := e.embedder.EmbedBatch(ctx, inputs)
	if err != nil {
		return err
	}
	if len(vecs) != len(inputs) {
		return errVectorCount
	}

	for i := range cands {
		cands[i].score = Cosine(vecs[0], vecs[i+1])
	}
	sort.SliceStable(cands, func(a, b int) bool {
		if cands[a].score != cands[b].score {
			return cands[a].score > cands[b].score
		}
		return cands[a].first < cands[b].first
	})
	return nil
}

var errVectorCount = errors.New("embedder returned wrong number of vectors")

// candidates collects unique 1- and 2-grams. A bigram never spans a stop word.
func candidates(text string) []candidate {
	words := tokenize(text)
	index := map[string]int{}
	var out []candidate

	add := func(phrase string, pos int) {
		if i, ok := index[phrase]; ok {
			out[i].count++
			return
		}
		index[phrase] = len(out)
		out = append(out, candidate{phrase: phrase, count: 1, first: pos})
	}

	for i, w := range words {
		if !usable(w) {
			continue
		}
		add(w, i)
		if i+1 < len(words) && usable(words[i+1]) {
			add(w+" "+words[i+1], i)
		}
	}
	return out
}

func usable(w string) bool {
	if len([]rune(w)) < 2 || IsStopword(w) {
		return false
	}
	for _, r := range w {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}

func byFrequency(cands []candidate) {
	sort.SliceStable(cands, func(a, b int) bool {
		if cands[a].count != cands[b].count {
			return cands[a].count > cands[b].count
		}
		return cands[a].first < cands[b].first
	})
}

// Cosine returns the cosine similarity of a and b, or 0 for mismatched or zero vectors.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
