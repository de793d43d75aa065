package driven

import (
	"context"

	"github.com/custodia-labs/domainrag/internal/core/domain"
)

// ChunkingStrategy turns one document's pages into ordered chunk drafts.
//
// Implementations:
//   - recursive: separator-precedence splitting, page by page
//   - semantic_cluster: embedding clustering of small sub-chunks
type ChunkingStrategy interface {
	// Name returns the strategy identifier stored in DomainConfig.
	Name() domain.ChunkingStrategyName

	// CreateChunks returns chunk drafts with no ids.
	// Empty pages are skipped. Zero drafts is reported as domain.ErrNoChunks.
	CreateChunks(ctx context.Context, doc *domain.ExtractedDocument) ([]domain.ChunkDraft, error)
}

// ChunkingProvider resolves the strategy for a domain configuration.
type ChunkingProvider interface {
	StrategyFor(cfg domain.DomainConfig) (ChunkingStrategy, error)
}

// KeywordExtractor ranks representative keywords for a text.
type KeywordExtractor interface {
	// Extract returns at most topN keywords, best first.
	// It never fails; on error it returns fewer or no keywords.
	Extract(ctx context.Context, text string, topN int) []string
}
