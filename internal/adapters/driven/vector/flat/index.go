package flat

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/custodia-labs/domainrag/internal/core/domain"
	"github.com/custodia-labs/domainrag/internal/core/ports/driven"
)

// Index is an exact (brute-force) vector index with an explicit id map.
// Every mutating call rewrites the backing file.
type Index struct {
	mu     sync.RWMutex
	path   string
	dim    int
	metric domain.IndexType

	ids  []int64
	data []float32 // row-major, len(ids)*dim
	pos  map[int64]int
}

func newIndex(path string, dim int, metric domain.IndexType) *Index {
	if metric == "" {
		metric = domain.IndexFlatL2
	}
	return &Index{
		path:   path,
		dim:    dim,
		metric: metric,
		pos:    make(map[int64]int),
	}
}

// Open loads the index at path, creating and persisting an empty one with
// the given dimension and metric if the file does not exist.
func Open(path string, dim int, metric domain.IndexType) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading index: %w", err)
		}
		if dim <= 0 {
			return nil, fmt.Errorf("dimension %d: %w", dim, domain.ErrInvalidInput)
		}
		idx := newIndex(path, dim, metric)
		if err := idx.persist(); err != nil {
			return nil, err
		}
		return idx, nil
	}

	idx, err := decode(path, data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	if dim > 0 && idx.dim != dim {
		return nil, fmt.Errorf("index %s has dimension %d, want %d: %w",
			path, idx.dim, dim, domain.ErrDimensionMismatch)
	}
	return idx, nil
}

// Path returns the backing file path.
func (x *Index) Path() string { return x.path }

// Dimension returns the vector dimension.
func (x *Index) Dimension() int { return x.dim }

// Metric returns the distance metric.
func (x *Index) Metric() domain.IndexType { return x.metric }

// Count returns the number of stored vectors.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ids)
}

// IDs returns the stored ids in ascending order.
func (x *Index) IDs() []int64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]int64, len(x.ids))
	copy(out, x.ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Add inserts vectors under explicit ids. The batch is all-or-nothing.
func (x *Index) Add(ids []int64, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("%d ids for %d vectors: %w", len(ids), len(vectors), domain.ErrInvalidInput)
	}
	if len(ids) == 0 {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	seen := make(map[int64]struct{}, len(ids))
	for i, id := range ids {
		if len(vectors[i]) != x.dim {
			return fmt.Errorf("vector %d has dimension %d, index expects %d: %w",
				id, len(vectors[i]), x.dim, domain.ErrDimensionMismatch)
		}
		if _, ok := x.pos[id]; ok {
			return fmt.Errorf("id %d: %w", id, domain.ErrDuplicateVectorID)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("id %d repeated in batch: %w", id, domain.ErrDuplicateVectorID)
		}
		seen[id] = struct{}{}
	}

	oldLen := len(x.ids)
	for i, id := range ids {
		x.pos[id] = len(x.ids)
		x.ids = append(x.ids, id)
		x.data = append(x.data, vectors[i]...)
	}

	if err := x.persist(); err != nil {
		for _, id := range ids {
			delete(x.pos, id)
		}
		x.ids = x.ids[:oldLen]
		x.data = x.data[:oldLen*x.dim]
		return err
	}
	return nil
}

// Remove deletes the given ids and returns how many were present.
func (x *Index) Remove(ids []int64) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := x.pos[id]; ok {
			drop[id] = struct{}{}
		}
	}
	if len(drop) == 0 {
		return 0, nil
	}

	keptIDs := make([]int64, 0, len(x.ids)-len(drop))
	keptData := make([]float32, 0, (len(x.ids)-len(drop))*x.dim)
	keptPos := make(map[int64]int, len(x.ids)-len(drop))
	for i, id := range x.ids {
		if _, ok := drop[id]; ok {
			continue
		}
		keptPos[id] = len(keptIDs)
		keptIDs = append(keptIDs, id)
		keptData = append(keptData, x.vector(i)...)
	}

	oldIDs, oldData, oldPos := x.ids, x.data, x.pos
	x.ids, x.data, x.pos = keptIDs, keptData, keptPos
	if err := x.persist(); err != nil {
		x.ids, x.data, x.pos = oldIDs, oldData, oldPos
		return 0, err
	}
	return len(drop), nil
}

// Search returns up to k nearest vectors, nearest first. An empty index
// yields no hits; k is clamped to the stored count.
func (x *Index) Search(query []float32, k int) ([]driven.VectorHit, error) {
	if len(query) != x.dim {
		return nil, fmt.Errorf("query has dimension %d, index expects %d: %w",
			len(query), x.dim, domain.ErrDimensionMismatch)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	n := len(x.ids)
	if n == 0 || k <= 0 {
		return []driven.VectorHit{}, nil
	}
	if k > n {
		k = n
	}

	hits := make([]driven.VectorHit, n)
	for i := 0; i < n; i++ {
		hits[i] = driven.VectorHit{ID: x.ids[i], Distance: x.score(query, x.vector(i))}
	}

	if x.metric == domain.IndexFlatIP {
		sort.SliceStable(hits, func(a, b int) bool { return hits[a].Distance > hits[b].Distance })
	} else {
		sort.SliceStable(hits, func(a, b int) bool { return hits[a].Distance < hits[b].Distance })
	}
	return hits[:k], nil
}

// score is the squared L2 distance, or the inner product for IP indexes.
func (x *Index) score(a, b []float32) float32 {
	var s float32
	if x.metric == domain.IndexFlatIP {
		for i := range a {
			s += a[i] * b[i]
		}
		return s
	}
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func (x *Index) vector(i int) []float32 {
	return x.data[i*x.dim : (i+1)*x.dim]
}

// persist must be called with mu held.
func (x *Index) persist() error {
	data, err := encode(x)
	if err != nil {
		return err
	}
	return writeFileAtomic(x.path, data)
}
