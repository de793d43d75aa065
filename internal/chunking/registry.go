// Package chunking selects and configures chunking strategies per domain.
package chunking

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/custodia-labs/domainrag/internal/core/domain"
	"github.com/custodia-labs/domainrag/internal/core/ports/driven"
)

// Strategy is a chunking strategy that accepts domain parameters.
type Strategy interface {
	driven.ChunkingStrategy

	// Configure applies parameters without discarding reusable state.
	Configure(cfg domain.DomainConfig, keywordsTopN int) error
}

// Deps are the collaborators a strategy may need.
type Deps struct {
	Embedder driven.EmbeddingService
	Keywords driven.KeywordExtractor
	Logger   *log.Logger

	// BatchSize caps texts per embedding call; zero uses the strategy default.
	BatchSize int
}

// BuilderFunc creates an unconfigured strategy.
type BuilderFunc func(deps Deps) Strategy

// Registry maps strategy names to their builders.
type Registry struct {
	builders map[domain.ChunkingStrategyName]BuilderFunc
}

// NewRegistry creates an empty strategy registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[domain.ChunkingStrategyName]BuilderFunc),
	}
}

// Register adds a strategy builder to the registry.
// Name should match the strategy's Name() return value.
func (r *Registry) Register(name domain.ChunkingStrategyName, builder BuilderFunc) {
	r.builders[name] = builder
}

// Build creates a strategy by name.
func (r *Registry) Build(name domain.ChunkingStrategyName, deps Deps) (Strategy, error) {
	builder, ok := r.builders[name]
	if !ok {
		return nil, fmt.Errorf("unknown chunking strategy %q: %w", name, domain.ErrInvalidConfig)
	}
	return builder(deps), nil
}

// Has returns true if a strategy with the given name is registered.
func (r *Registry) Has(name domain.ChunkingStrategyName) bool {
	_, ok := r.builders[name]
	return ok
}

// Names returns all registered strategy names, sorted.
func (r *Registry) Names() []domain.ChunkingStrategyName {
	names := make([]domain.ChunkingStrategyName, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
