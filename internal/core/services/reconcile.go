package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/custodia-labs/domainrag/internal/core/domain"
	"github.com/custodia-labs/domainrag/internal/core/ports/driven"
	"github.com/custodia-labs/domainrag/internal/core/ports/driving"
)

// Ensure ReconcileService implements the interfaces.
var (
	_ driving.Reconciler     = (*ReconcileService)(nil)
	_ driving.ConfigReloader = (*ReconcileService)(nil)
)

// ReconcileService repairs divergence between a domain database and its
// vector index. The embedding rows are authoritative.
type ReconcileService struct {
	control    driven.ControlStore
	opener     driven.DomainStoreOpener
	vectors    driven.VectorStore
	embedder   driven.EmbeddingService
	normaliser driven.TextNormaliser
	logger     *log.Logger

	mu        sync.RWMutex
	batchSize int
}

// NewReconcileService creates a reconciler.
func NewReconcileService(
	control driven.ControlStore,
	opener driven.DomainStoreOpener,
	vectors driven.VectorStore,
	embedder driven.EmbeddingService,
	normaliser driven.TextNormaliser,
	batchSize int,
	logger *log.Logger,
) *ReconcileService {
	if logger == nil {
		logger = discardLogger()
	}
	return &ReconcileService{
		control:    control,
		opener:     opener,
		vectors:    vectors,
		embedder:   embedder,
		normaliser: normaliser,
		logger:     logger,
		batchSize:  batchSize,
	}
}

// UpdateConfig applies a reloaded embedding batch size.
func (s *ReconcileService) UpdateConfig(cfg domain.AppConfig) {
	s.mu.Lock()
	s.batchSize = cfg.Embedding.BatchSize
	s.mu.Unlock()
}

// Reconcile evicts index ids with no embedding row and re-embeds rows whose
// vector is missing from the index.
func (s *ReconcileService) Reconcile(ctx context.Context, domainName string) (*domain.ReconcileReport, error) {
	d, err := s.control.GetDomain(ctx, domainName)
	if err != nil {
		return nil, err
	}
	cfg, err := s.control.GetDomainConfig(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	report := &domain.ReconcileReport{Domain: d.Name}

	hasDB := populated(d)
	if _, err := os.Stat(d.VectorStorePath); errors.Is(err, os.ErrNotExist) && !hasDB {
		return report, nil
	}

	spec := indexSpec(d, cfg)
	ids, err := s.vectors.IDs(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("reading index ids: %w", err)
	}
	report.IndexCount = len(ids)

	var rows []domain.Embedding
	if hasDB {
		store, err := s.opener.Open(ctx, d.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening domain database: %w", err)
		}
		defer store.Close()

		rows, err = store.ListEmbeddings(ctx)
		if err != nil {
			return nil, err
		}
		report.RowCount = len(rows)

		if err := s.restore(ctx, store, spec, cfg, ids, rows, report); err != nil {
			return report, err
		}
	}

	if err := s.evict(ctx, spec, ids, rows, report); err != nil {
		return report, err
	}

	logger := s.logger.With("domain", d.Name)
	if report.Clean() {
		logger.Debug("index consistent", "vectors", report.IndexCount)
	} else {
		logger.Warn("index reconciled", "evicted", report.Evicted, "restored", report.Restored)
	}
	return report, nil
}

// evict removes index ids that no embedding row references.
func (s *ReconcileService) evict(
	ctx context.Context, spec driven.IndexSpec, ids []int64, rows []domain.Embedding, report *domain.ReconcileReport,
) error {
	known := make(map[int64]struct{}, len(rows))
	for _, r := range rows {
		known[r.VectorIndexID] = struct{}{}
	}
	var orphans []int64
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	if len(orphans) == 0 {
		return nil
	}

	removed, err := s.vectors.Remove(ctx, spec, orphans)
	if err != nil {
		return fmt.Errorf("evicting orphaned vectors: %w", err)
	}
	report.Evicted = removed
	return nil
}

// restore re-embeds chunks whose embedding row has no vector.
func (s *ReconcileService) restore(
	ctx context.Context,
	store driven.DomainStore,
	spec driven.IndexSpec,
	cfg *domain.DomainConfig,
	ids []int64,
	rows []domain.Embedding,
	report *domain.ReconcileReport,
) error {
	present := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		present[id] = struct{}{}
	}
	var missing []int64
	for _, r := range rows {
		if _, ok := present[r.VectorIndexID]; !ok {
			missing = append(missing, r.ChunkID)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	chunks, err := store.GetChunksByIDs(ctx, missing)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	chunkIDs := make([]int64, len(chunks))
	for i, c := range chunks {
		texts[i] = s.normaliser.Normalize(c.Content)
		chunkIDs[i] = c.ID
	}
	s.mu.RLock()
	size := s.batchSize
	s.mu.RUnlock()
	vectors, err := embedInBatches(ctx, s.embedder, texts, size, cfg.NormalizeEmbeddings)
	if err != nil {
		return fmt.Errorf("re-embedding missing vectors: %w", err)
	}
	if err := s.vectors.Add(ctx, spec, chunkIDs, vectors); err != nil {
		return fmt.Errorf("restoring missing vectors: %w", err)
	}
	report.Restored = len(chunkIDs)
	return nil
}
