// Package recursive implements the recursive chunking strategy: every page
// is split independently on a separator precedence list.
package recursive

import (
	"context"
	"fmt"
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
	keywords driven.KeywordExtractor
	logger   *log.Logger

	mu       sync.RWMutex
	topN     int
	splitter *splitter.Splitter
}

// New creates a recursive strategy. Configure must be called before use.
func New(keywords driven.KeywordExtractor, logger *log.Logger) *Strategy {
	return &Strategy{keywords: keywords, logger: logger, topN: 3}
}

// Name returns the strategy identifier.
func (s *Strategy) Name() domain.ChunkingStrategyName {
	return domain.ChunkingRecursive
}

// Configure applies domain parameters, rebuilding the splitter when the
// size or overlap changes.
func (s *Strategy) Configure(cfg domain.DomainConfig, keywordsTopN int) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.splitter == nil || s.splitter.Size() != cfg.ChunkSize || s.splitter.Overlap() != cfg.ChunkOverlap {
		sp, err := splitter.New(context.Background(), cfg.ChunkSize, cfg.ChunkOverlap)
		if err != nil {
			return err
		}
		s.splitter = sp
	}
	if keywordsTopN > 0 {
		s.topN = keywordsTopN
	}
	return nil
}

// CreateChunks splits each non-empty page and tags drafts with their page,
// running index and start offset.
func (s *Strategy) CreateChunks(ctx context.Context, doc *domain.ExtractedDocument) ([]domain.ChunkDraft, error) {
	s.mu.RLock()
	sp, topN := s.splitter, s.topN
	s.mu.RUnlock()

	if sp == nil {
		return nil, fmt.Errorf("recursive strategy not configured: %w", domain.ErrInvalidConfig)
	}
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}

	var drafts []domain.ChunkDraft
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
			md := domain.ChunkMetadata{
				PageList:  []int{page.Number},
				IndexList: []int{len(drafts)},
				Keywords:  s.extractKeywords(ctx, p.Text, topN),
			}
			if p.Start >= 0 {
				start := p.Start
				md.StartIndex = &start
			}
			drafts = append(drafts, domain.ChunkDraft{
				Content:  strings.TrimSpace(p.Text),
				Metadata: md,
			})
		}
	}

	if len(drafts) == 0 {
		return nil, fmt.Errorf("%s: %w", doc.Name, domain.ErrNoChunks)
	}
	return drafts, nil
}

func (s *Strategy) extractKeywords(ctx context.Context, text string, topN int) []string {
	if s.keywords == nil {
		return []string{}
	}
	kws := s.keywords.Extract(ctx, text, topN)
	if kws == nil {
		return []string{}
	}
	return kws
}
