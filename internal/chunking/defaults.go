package chunking

import (
	"github.com/custodia-labs/domainrag/internal/chunking/recursive"
	"github.com/custodia-labs/domainrag/internal/chunking/semantic"
	"github.com/custodia-labs/domainrag/internal/core/domain"
)

// RegisterDefaults registers the built-in strategies with the registry.
func RegisterDefaults(r *Registry) {
	r.Register(domain.ChunkingRecursive, buildRecursive)
	r.Register(domain.ChunkingSemanticCluster, buildSemantic)
}

func buildRecursive(deps Deps) Strategy {
	return recursive.New(deps.Keywords, deps.Logger)
}

func buildSemantic(deps Deps) Strategy {
	s := semantic.New(deps.Embedder, deps.Keywords, deps.Logger)
	s.SetBatchSize(deps.BatchSize)
	return s
}
