package flat

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/custodia-labs/domainrag/internal/core/domain"
	"github.com/custodia-labs/domainrag/internal/core/ports/driven"
)

var errStoreClosed = errors.New("flat: store is closed")

// Store manages flat indexes keyed by file path. Indexes are opened lazily
// and cached until released.
type Store struct {
	mu      sync.Mutex
	indexes map[string]*Index
	closed  bool
}

var _ driven.VectorStore = (*Store)(nil)

// NewStore creates an empty index cache.
func NewStore() *Store {
	return &Store{indexes: make(map[string]*Index)}
}

func (s *Store) index(spec driven.IndexSpec) (*Index, error) {
	if spec.Path == "" {
		return nil, fmt.Errorf("index path: %w", domain.ErrInvalidInput)
	}
	key := filepath.Clean(spec.Path)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errStoreClosed
	}
	if idx, ok := s.indexes[key]; ok {
		if spec.Dim > 0 && idx.Dimension() != spec.Dim {
			return nil, fmt.Errorf("index %s has dimension %d, want %d: %w",
				key, idx.Dimension(), spec.Dim, domain.ErrDimensionMismatch)
		}
		return idx, nil
	}

	idx, err := Open(key, spec.Dim, spec.Type)
	if err != nil {
		return nil, err
	}
	s.indexes[key] = idx
	return idx, nil
}

// Add inserts vectors under explicit ids, creating the index if needed.
func (s *Store) Add(ctx context.Context, spec driven.IndexSpec, ids []int64, vectors [][]float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	idx, err := s.index(spec)
	if err != nil {
		return err
	}
	return idx.Add(ids, vectors)
}

// Search returns the k nearest stored vectors to query.
func (s *Store) Search(ctx context.Context, spec driven.IndexSpec, query []float32, k int) ([]driven.VectorHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if spec.Dim == 0 {
		spec.Dim = len(query)
	}
	idx, err := s.index(spec)
	if err != nil {
		return nil, err
	}
	return idx.Search(query, k)
}

// Remove deletes ids from the index and returns how many were present.
func (s *Store) Remove(ctx context.Context, spec driven.IndexSpec, ids []int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	idx, err := s.index(spec)
	if err != nil {
		return 0, err
	}
	return idx.Remove(ids)
}

// IDs lists the ids stored in the index.
func (s *Store) IDs(ctx context.Context, spec driven.IndexSpec) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx, err := s.index(spec)
	if err != nil {
		return nil, err
	}
	return idx.IDs(), nil
}

// Count returns the number of vectors in the index.
func (s *Store) Count(ctx context.Context, spec driven.IndexSpec) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	idx, err := s.index(spec)
	if err != nil {
		return 0, err
	}
	return idx.Count(), nil
}

// Release drops the cached handle for path so the file can be moved or deleted.
func (s *Store) Release(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.indexes, filepath.Clean(path))
	return nil
}

// Close drops all cached indexes. Data is already on disk.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexes = make(map[string]*Index)
	s.closed = true
	return nil
}
