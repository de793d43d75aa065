package driven

import (
	"context"

	"github.com/custodia-labs/domainrag/internal/core/domain"
)

// IndexSpec addresses one domain's vector index file.
type IndexSpec struct {
	// Path is the index file location.
	Path string

	// Dim is the vector dimension every stored vector must have.
	Dim int

	// Type selects the metric used when the index is first created.
	// An existing file keeps the metric it was created with.
	Type domain.IndexType
}

// VectorStore manages one flat nearest-neighbour index file per domain.
// Indexes are opened lazily; the first use of a path creates and persists
// an empty index.
//
// Vectors are stored under caller-supplied integer ids. The ingestion
// pipeline always passes chunk ids, so a search hit resolves directly to
// a chunk row.
type VectorStore interface {
	// Add inserts vectors under explicit ids and persists the whole index.
	// Every vector must have dimension spec.Dim, and no id may already exist.
	Add(ctx context.Context, spec IndexSpec, ids []int64, vectors [][]float32) error

	// Search returns up to k nearest neighbours, closest first.
	// An empty index yields an empty result; k is clamped to the index size.
	Search(ctx context.Context, spec IndexSpec, query []float32, k int) ([]VectorHit, error)

	// Remove deletes ids from the index and persists it.
	// Unknown ids are ignored; the number removed is returned.
	Remove(ctx context.Context, spec IndexSpec, ids []int64) (int, error)

	// IDs returns every id in the index in ascending order.
	IDs(ctx context.Context, spec IndexSpec) ([]int64, error)

	// Count returns the number of vectors in the index.
	Count(ctx context.Context, spec IndexSpec) (int, error)

	// Release drops any cached handle for path so the file can be moved or deleted.
	Release(path string) error

	// Close releases all cached handles.
	Close() error
}

// VectorHit represents a single vector search result.
type VectorHit struct {
	// ID is the id the vector was stored under.
	ID int64

	// Distance is the metric score: squared L2 distance or inner product.
	Distance float32
}
