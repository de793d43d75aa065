package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/custodia-labs/domainrag/internal/core/domain"
	"github.com/custodia-labs/domainrag/internal/core/ports/driven"
	"github.com/custodia-labs/domainrag/internal/core/ports/driving"
)

// Ensure IngestionService implements the interface.
var (
	_ driving.IngestionService = (*IngestionService)(nil)
	_ driving.ConfigReloader   = (*IngestionService)(nil)
)

// IngestionService extracts, chunks, embeds and stores the documents of a
// directory, one domain database transaction per file.
type IngestionService struct {
	control    driven.ControlStore
	opener     driven.DomainStoreOpener
	vectors    driven.VectorStore
	extractor  driven.TextExtractor
	chunking   driven.ChunkingProvider
	embedder   driven.EmbeddingService
	normaliser driven.TextNormaliser
	reconciler driving.Reconciler
	logger     *log.Logger

	mu  sync.RWMutex
	cfg domain.AppConfig
}

// IngestionDeps groups the collaborators of the ingestion service.
type IngestionDeps struct {
	Control    driven.ControlStore
	Opener     driven.DomainStoreOpener
	Vectors    driven.VectorStore
	Extractor  driven.TextExtractor
	Chunking   driven.ChunkingProvider
	Embedder   driven.EmbeddingService
	Normaliser driven.TextNormaliser
	Reconciler driving.Reconciler
}

// NewIngestionService creates an ingestion service.
// Reconciler may be nil, which skips the pre-run consistency pass.
func NewIngestionService(deps IngestionDeps, cfg domain.AppConfig, logger *log.Logger) *IngestionService {
	if logger == nil {
		logger = discardLogger()
	}
	return &IngestionService{
		control:    deps.Control,
		opener:     deps.Opener,
		vectors:    deps.Vectors,
		extractor:  deps.Extractor,
		chunking:   deps.Chunking,
		embedder:   deps.Embedder,
		normaliser: deps.Normaliser,
		reconciler: deps.Reconciler,
		logger:     logger,
		cfg:        cfg,
	}
}

// UpdateConfig applies a reloaded configuration to subsequent runs.
func (s *IngestionService) UpdateConfig(cfg domain.AppConfig) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *IngestionService) batchSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg.Embedding.BatchSize <= 0 {
		return defaultBatchSize
	}
	return s.cfg.Embedding.BatchSize
}

// candidateFiles lists the visible regular files of dir in name order.
func candidateFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: directory %s does not exist", domain.ErrInvalidInput, dir)
		}
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || !e.Type().IsRegular() {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: directory %s has no files", domain.ErrInvalidInput, dir)
	}
	sort.Strings(files)
	return files, nil
}

// ProcessDirectory ingests every file in dir into the named domain.
// A single file's failure is recorded in the report and never aborts the run.
func (s *IngestionService) ProcessDirectory(ctx context.Context, dir, domainName string) (*domain.IngestReport, error) {
	files, err := candidateFiles(dir)
	if err != nil {
		return nil, err
	}
	d, err := s.control.GetDomain(ctx, domainName)
	if err != nil {
		return nil, err
	}
	cfg, err := s.control.GetDomainConfig(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	strategy, err := s.chunking.StrategyFor(*cfg)
	if err != nil {
		return nil, fmt.Errorf("selecting chunking strategy: %w", err)
	}

	report := &domain.IngestReport{
		RunID:          uuid.NewString(),
		Domain:         d.Name,
		Directory:      dir,
		Strategy:       cfg.ChunkingStrategy,
		ChunkSize:      cfg.ChunkSize,
		ChunkOverlap:   cfg.ChunkOverlap,
		EmbeddingModel: cfg.EmbeddingsModel,
		Dimension:      d.EmbeddingsDimension,
		IndexType:      cfg.IndexType,
		IndexPath:      d.VectorStorePath,
		DBPath:         d.DBPath,
		Total:          len(files),
		StartedAt:      time.Now(),
	}
	logger := s.logger.With("domain", d.Name, "run", report.RunID)
	logger.Info("ingestion started", "dir", dir, "files", len(files), "strategy", cfg.ChunkingStrategy)

	if s.reconciler != nil {
		rec, err := s.reconciler.Reconcile(ctx, d.Name)
		if err != nil {
			logger.Warn("reconciliation failed", "err", err)
		}
		report.Reconcile = rec
	}

	store, err := s.opener.Open(ctx, d.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening domain database: %w", err)
	}
	defer store.Close()

	run := &fileRun{
		svc:      s,
		store:    store,
		domain:   d,
		cfg:      cfg,
		spec:     indexSpec(d, cfg),
		strategy: strategy,
		logger:   logger,
	}

	var runErr error
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if run.dirty {
			if err := s.repair(ctx, d.Name, report, logger); err != nil {
				runErr = err
				break
			}
			run.dirty = false
		}
		report.Record(run.process(ctx, path))
	}
	if report.Chunks > 0 {
		report.AvgChunkSize = float64(run.runes) / float64(report.Chunks)
	}

	// Refresh the document count even after cancellation.
	if count, err := store.CountDocuments(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("failed to count documents", "err", err)
	} else if err := s.control.UpdateDomainFields(context.WithoutCancel(ctx), d.ID,
		domain.DomainFieldUpdate{TotalDocuments: &count}); err != nil {
		logger.Warn("failed to update document count", "err", err)
	}

	report.Duration = time.Since(report.StartedAt)
	logger.Info("ingestion finished",
		"processed", report.Processed, "duplicate", report.Duplicate,
		"invalid", report.Invalid, "failed", report.Failed,
		"chunks", report.Chunks, "duration", report.Duration.Round(time.Millisecond))

	return report, runErr
}

// fileRun carries the per-run state shared by every file.
type fileRun struct {
	svc      *IngestionService
	store    driven.DomainStore
	domain   *domain.KnowledgeDomain
	cfg      *domain.DomainConfig
	spec     driven.IndexSpec
	strategy driven.ChunkingStrategy
	logger   *log.Logger

	// runes totals the content length of stored chunks.
	runes int

	// dirty is set when rolled-back chunk ids are still in the index.
	// The database reuses those ids for the next file.
	dirty bool
}

// repair evicts vectors left behind by a failed compensation. The run stops
// when the index cannot be repaired.
func (s *IngestionService) repair(ctx context.Context, name string, report *domain.IngestReport, logger *log.Logger) error {
	if s.reconciler == nil {
		return fmt.Errorf("%s: %w", name, domain.ErrIndexDirty)
	}
	rec, err := s.reconciler.Reconcile(ctx, name)
	if err != nil {
		logger.Error("repairing index failed; stopping run", "err", err)
		return fmt.Errorf("%w: %w", domain.ErrIndexDirty, err)
	}
	logger.Info("index repaired", "evicted", rec.Evicted, "restored", rec.Restored)
	if report.Reconcile == nil {
		report.Reconcile = rec
	} else {
		report.Reconcile.Evicted += rec.Evicted
		report.Reconcile.Restored += rec.Restored
	}
	return nil
}

func (r *fileRun) process(ctx context.Context, path string) domain.FileResult {
	start := time.Now()
	res := domain.FileResult{Name: filepath.Base(path), Path: path}
	logger := r.logger.With("file", res.Name)

	finish := func(status domain.FileStatus, err error) domain.FileResult {
		res.Status = status
		res.Duration = time.Since(start)
		switch {
		case err != nil && status == domain.FileFailed:
			res.Error = err.Error()
			logger.Error("file failed", "err", err)
		case err != nil:
			res.Error = err.Error()
			logger.Warn("file skipped", "status", status, "err", err)
		case status == domain.FileDuplicate:
			logger.Info("duplicate skipped", "duplicate_of", res.DuplicateOf)
		default:
			logger.Info("file ingested", "pages", res.Pages, "chunks", res.Chunks, "duration", res.Duration.Round(time.Millisecond))
		}
		return res
	}

	// 1. Extract.
	doc, err := r.svc.extractor.Extract(ctx, path)
	if err != nil {
		return finish(domain.FileInvalid, err)
	}
	if len(doc.NonEmptyPages()) == 0 {
		return finish(domain.FileInvalid, domain.ErrNoPages)
	}
	res.Pages = len(doc.Pages)
	res.Hash = doc.ContentHash()

	// 2. Dedup inside the file's transaction.
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return finish(domain.FileFailed, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	existing, err := tx.FindDocumentByHash(ctx, res.Hash)
	switch {
	case err == nil:
		res.DuplicateOf = existing.Name
		res.DocumentID = existing.ID
		return finish(domain.FileDuplicate, nil)
	case !errors.Is(err, domain.ErrNotFound):
		return finish(domain.FileFailed, err)
	}

	// 3. Document row.
	file := &domain.DocumentFile{
		Hash:       res.Hash,
		Name:       res.Name,
		Path:       path,
		TotalPages: res.Pages,
	}
	if err := tx.InsertDocument(ctx, file); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return finish(domain.FileDuplicate, nil)
		}
		return finish(domain.FileFailed, err)
	}
	res.DocumentID = file.ID

	// 4. Chunk.
	drafts, err := r.strategy.CreateChunks(ctx, doc)
	if err != nil {
		if errors.Is(err, domain.ErrNoChunks) {
			return finish(domain.FileInvalid, err)
		}
		return finish(domain.FileFailed, fmt.Errorf("chunking: %w", err))
	}
	if len(drafts) == 0 {
		return finish(domain.FileInvalid, domain.ErrNoChunks)
	}

	// 5. Chunk rows; ids come from the database.
	chunks, err := tx.InsertChunks(ctx, file.ID, drafts)
	if err != nil {
		return finish(domain.FileFailed, err)
	}

	// 6. Embed.
	ids := make([]int64, len(chunks))
	texts := make([]string, len(chunks))
	runes := 0
	for i, c := range chunks {
		ids[i] = c.ID
		texts[i] = r.svc.normaliser.Normalize(c.Content)
		runes += utf8.RuneCountInString(c.Content)
	}
	vectors, err := r.embed(ctx, texts)
	if err != nil {
		return finish(domain.FileFailed, err)
	}

	// 7. Index under the chunk ids.
	if err := r.svc.vectors.Add(ctx, r.spec, ids, vectors); err != nil {
		return finish(domain.FileFailed, fmt.Errorf("adding vectors: %w", err))
	}

	// 8 and 9. Embedding rows and commit, compensating the index on failure.
	embeddings := make([]domain.Embedding, len(ids))
	for i, id := range ids {
		embeddings[i] = domain.Embedding{
			ChunkID:         id,
			VectorIndexPath: r.spec.Path,
			VectorIndexID:   id,
			Dimension:       len(vectors[i]),
		}
	}
	err = tx.InsertEmbeddings(ctx, embeddings)
	if err == nil {
		err = tx.Commit()
	}
	if err != nil {
		r.compensate(ids, logger)
		return finish(domain.FileFailed, err)
	}

	res.Chunks = len(chunks)
	r.runes += runes
	return finish(domain.FileProcessed, nil)
}

// embed embeds texts in batches of embedding.batch_size.
func (r *fileRun) embed(ctx context.Context, texts []string) ([][]float32, error) {
	return embedInBatches(ctx, r.svc.embedder, texts, r.svc.batchSize(), r.cfg.NormalizeEmbeddings)
}

// compensate removes vectors whose relational rows were not committed.
func (r *fileRun) compensate(ids []int64, logger *log.Logger) {
	removed, err := r.svc.vectors.Remove(context.Background(), r.spec, ids)
	if err != nil {
		logger.Error("compensating vector removal failed", "ids", len(ids), "err", err)
		r.dirty = true
		return
	}
	logger.Debug("compensated vector add", "removed", removed)
}
