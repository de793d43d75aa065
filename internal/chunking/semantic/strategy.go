// Package semantic implements the semantic-cluster chunking strategy.
//
// Pages are cut into small sub-chunks, each sub-chunk is embedded together
// with its position, and agglomerative clustering groups related sub-chunks.
// Each cluster is then packed, in document order, into chunks bounded by a
// word budget.
package semantic

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/custodia-labs/domainrag/internal/chunking/splitter"
	"github.com/custodia-labs/domainrag/internal/core/domain"
	"github.com/custodia-labs/domainrag/internal/core/ports/driven"
)

var _ driven.ChunkingStrategy = (*Strategy)(nil)

// Strategy implements driven.ChunkingStrategy.
type Strategy struct {
	embedder driven.EmbeddingService
	keywords driven.KeywordExtractor
	logger   *log.Logger

	mu        sync.RWMutex
	cfg       domain.DomainConfig
	topN      int
	batchSize int
	linkage   Linkage
	splitter  *splitter.Splitter
}

// defaultBatchSize caps texts per embedding call when none is set.
const defaultBatchSize = 32

// New creates a semantic-cluster strategy. Configure must be called before use.
func New(embedder driven.EmbeddingService, keywords driven.KeywordExtractor, logger *log.Logger) *Strategy {
	return &Strategy{
		embedder: embedder,
		keywords: keywords,
		logger:   logger,
		linkage:   LinkageWard,
		topN:      3,
		batchSize: defaultBatchSize,
	}
}

// Name returns the strategy identifier.
func (s *Strategy) Name() domain.ChunkingStrategyName {
	return domain.ChunkingSemanticCluster
}

// Configure applies domain parameters. The sub-chunk splitter is rebuilt
// only when the size or overlap changes.
func (s *Strategy) Configure(cfg domain.DomainConfig, keywordsTopN int) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.splitter == nil || s.cfg.ChunkSize != cfg.ChunkSize || s.cfg.ChunkOverlap != cfg.ChunkOverlap {
		sp, err := splitter.New(context.Background(), cfg.ChunkSize, cfg.ChunkOverlap)
		if err != nil {
			return err
		}
		s.splitter = sp
	}
	s.cfg = cfg
	if keywordsTopN > 0 {
		s.topN = keywordsTopN
	}
	return nil
}

// SetBatchSize caps the number of texts sent per embedding call.
// Non-positive sizes restore the default.
func (s *Strategy) SetBatchSize(n int) {
	if n <= 0 {
		n = defaultBatchSize
	}
	s.mu.Lock()
	s.batchSize = n
	s.mu.Unlock()
}

// SetLinkage overrides the default Ward linkage.
func (s *Strategy) SetLinkage(l Linkage) {
	s.mu.Lock()
	s.linkage = l
	s.mu.Unlock()
}

type subChunk struct {
	text  string
	page  int
	index int
}

// CreateChunks clusters the document's sub-chunks into chunk drafts.
func (s *Strategy) CreateChunks(ctx context.Context, doc *domain.ExtractedDocument) ([]domain.ChunkDraft, error) {
	s.mu.RLock()
	cfg, topN, linkage, sp, batch := s.cfg, s.topN, s.linkage, s.splitter, s.batchSize
	s.mu.RUnlock()

	if sp == nil {
		return nil, fmt.Errorf("semantic strategy not configured: %w", domain.ErrInvalidConfig)
	}
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}

	subs, err := s.subChunks(ctx, sp, doc)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, fmt.Errorf("%s: %w", doc.Name, domain.ErrNoChunks)
	}

	vectors, err := s.embedSubChunks(ctx, subs, cfg, batch)
	if err != nil {
		return nil, err
	}

	clusters, err := Cluster(vectors, cfg.ClusterDistanceThreshold, linkage)
	if err != nil {
		return nil, fmt.Errorf("clustering sub-chunks: %w", err)
	}

	var drafts []domain.ChunkDraft
	for _, members := range clusters {
		for _, group := range pack(subs, members, cfg.ChunkMaxWords) {
			drafts = append(drafts, s.draft(ctx, doc.Name, subs, group, topN))
		}
	}

	s.logger.Debug("semantic chunking complete",
		"document", doc.Name, "sub_chunks", len(subs), "clusters", len(clusters), "chunks", len(drafts))
	if len(drafts) == 0 {
		return nil, fmt.Errorf("%s: %w", doc.Name, domain.ErrNoChunks)
	}
	return drafts, nil
}

func (s *Strategy) subChunks(ctx context.Context, sp *splitter.Splitter, doc *domain.ExtractedDocument) ([]subChunk, error) {
	var subs []subChunk
	for _, page := range doc.Pages {
		if strings.TrimSpace(page.Text) == "" {
			s.logger.Debug("skipping empty page", "document", doc.Name, "page", page.Number)
			continue
		}
		pieces, err := sp.Split(ctx, page.Text)
		if err != nil {
			return nil, fmt.Errorf("splitting page %d: %w", page.Number, err)
		}
		for _, p := range pieces {
			subs = append(subs, subChunk{
				text:  strings.TrimSpace(p.Text),
				page:  page.Number,
				index: len(subs),
			})
		}
	}
	return subs, nil
}

// EnrichedText is the embedding input for a sub-chunk.
func EnrichedText(text string, page, index int) string {
	return fmt.Sprintf("[page: %d, index: %d] %s", page, index, text)
}

// MetaText is the metadata embedding input for a sub-chunk.
func MetaText(page, index int) string {
	return fmt.Sprintf("Page: %d | Index: %d", page, index)
}

// embedSubChunks embeds each sub-chunk's text and position and blends the
// two with the domain's embedding weight.
func (s *Strategy) embedSubChunks(ctx context.Context, subs []subChunk, cfg domain.DomainConfig, batch int) ([][]float32, error) {
	texts := make([]string, len(subs))
	metas := make([]string, len(subs))
	for i, sc := range subs {
		texts[i] = EnrichedText(sc.text, sc.page, sc.index)
		metas[i] = MetaText(sc.page, sc.index)
	}
	vectors, err := s.embed(ctx, texts, batch)
	if err != nil {
		return nil, fmt.Errorf("embedding sub-chunks: %w", err)
	}
	metaVectors, err := s.embed(ctx, metas, batch)
	if err != nil {
		return nil, fmt.Errorf("embedding sub-chunk metadata: %w", err)
	}
	for i := range vectors {
		vectors[i], err = Combine(vectors[i], metaVectors[i], cfg.EmbeddingWeight)
		if err != nil {
			return nil, err
		}
	}

	if cfg.NormalizeEmbeddings {
		for _, v := range vectors {
			normalize(v)
		}
	}
	return vectors, nil
}

// embed sends texts to the embedder at most batch at a time.
func (s *Strategy) embed(ctx context.Context, texts []string, batch int) ([][]float32, error) {
	if batch <= 0 {
		batch = defaultBatchSize
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batch {
		end := min(start+batch, len(texts))
		vs, err := s.embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vs) != end-start {
			return nil, fmt.Errorf("got %d vectors for %d texts", len(vs), end-start)
		}
		out = append(out, vs...)
	}
	return out, nil
}

// Combine returns (1-w)*text + w*meta.
func Combine(text, meta []float32, w float64) ([]float32, error) {
	if len(text) != len(meta) {
		return nil, fmt.Errorf("combining %d and %d dimensions: %w", len(text), len(meta), domain.ErrDimensionMismatch)
	}
	out := make([]float32, len(text))
	for i := range text {
		out[i] = float32((1-w)*float64(text[i]) + w*float64(meta[i]))
	}
	return out, nil
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}

// pack greedily groups a cluster's sub-chunks, in order, into runs of at
// most maxWords words. A sub-chunk longer than maxWords forms its own run.
func pack(subs []subChunk, members []int, maxWords int) [][]int {
	var (
		groups  [][]int
		current []int
		words   int
	)
	for _, m := range members {
		n := len(strings.Fields(subs[m].text))
		if len(current) > 0 && maxWords > 0 && words+n > maxWords {
			groups = append(groups, current)
			current, words = nil, 0
		}
		current = append(current, m)
		words += n
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

func (s *Strategy) draft(ctx context.Context, docName string, subs []subChunk, group []int, topN int) domain.ChunkDraft {
	texts := make([]string, len(group))
	pageSet := map[int]struct{}{}
	indices := make([]int, len(group))
	for i, m := range group {
		texts[i] = subs[m].text
		pageSet[subs[m].page] = struct{}{}
		indices[i] = subs[m].index
	}
	body := strings.Join(texts, " ")

	pages := make([]int, 0, len(pageSet))
	for p := range pageSet {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	kws := s.keywords.Extract(ctx, body, topN)
	if kws == nil {
		kws = []string{}
	}

	return domain.ChunkDraft{
		Content: fmt.Sprintf("[document: %s, keywords: %s] %s", docName, strings.Join(kws, ", "), body),
		Metadata: domain.ChunkMetadata{
			PageList:  pages,
			IndexList: indices,
			Keywords:  kws,
		},
	}
}
