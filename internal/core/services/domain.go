package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/custodia-labs/domainrag/internal/core/domain"
	"github.com/custodia-labs/domainrag/internal/core/ports/driven"
	"github.com/custodia-labs/domainrag/internal/core/ports/driving"
)

// Ensure DomainService implements the interface.
var (
	_ driving.DomainService  = (*DomainService)(nil)
	_ driving.ConfigReloader = (*DomainService)(nil)
)

// dbSidecars are the SQLite files that travel with a domain database.
var dbSidecars = []string{"-wal", "-shm", "-journal"}

// DomainService manages knowledge domains: their registry rows, database
// files and vector index files.
type DomainService struct {
	control  driven.ControlStore
	opener   driven.DomainStoreOpener
	vectors  driven.VectorStore
	embedder driven.EmbeddingService
	logger   *log.Logger

	mu  sync.RWMutex
	cfg domain.AppConfig

	// rename moves a file or directory; replaced in tests.
	rename func(from, to string) error
}

// NewDomainService creates a domain lifecycle manager.
func NewDomainService(
	control driven.ControlStore,
	opener driven.DomainStoreOpener,
	vectors driven.VectorStore,
	embedder driven.EmbeddingService,
	cfg domain.AppConfig,
	logger *log.Logger,
) *DomainService {
	if logger == nil {
		logger = discardLogger()
	}
	return &DomainService{
		control:  control,
		opener:   opener,
		vectors:  vectors,
		embedder: embedder,
		logger:   logger,
		cfg:      cfg,
		rename:   os.Rename,
	}
}

// UpdateConfig applies a reloaded configuration. Existing domains keep
// their stored configuration.
func (s *DomainService) UpdateConfig(cfg domain.AppConfig) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *DomainService) config() domain.AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Create registers a domain. A nil cfg applies the configured defaults.
func (s *DomainService) Create(
	ctx context.Context, name, description, keywords string, cfg *domain.DomainConfig,
) (int64, error) {
	if err := domain.ValidateDomainName(name); err != nil {
		return 0, err
	}

	appCfg := s.config()
	dcfg := appCfg.DomainDefaults()
	if cfg != nil {
		dcfg = *cfg
	}
	if dcfg.EmbeddingsModel == "" {
		dcfg.EmbeddingsModel = s.embedder.ModelName()
	}
	if dcfg.EmbeddingsModel != s.embedder.ModelName() {
		return 0, fmt.Errorf("%w: domain embeddings model %q differs from the configured embedder %q",
			domain.ErrInvalidConfig, dcfg.EmbeddingsModel, s.embedder.ModelName())
	}
	if err := dcfg.Validate(); err != nil {
		return 0, err
	}

	if err := s.checkNameFree(ctx, name, 0); err != nil {
		return 0, err
	}

	paths := domain.PathsFor(appCfg.System.StorageBasePath, name)
	if _, err := os.Stat(paths.Dir); err == nil {
		return 0, fmt.Errorf("domain directory %s: %w", paths.Dir, domain.ErrAlreadyExists)
	}
	if err := os.MkdirAll(filepath.Dir(paths.VectorStorePath), 0700); err != nil {
		return 0, fmt.Errorf("creating domain directory: %w", err)
	}

	d := &domain.KnowledgeDomain{
		Name:                name,
		Description:         description,
		Keywords:            keywords,
		DBPath:              paths.DBPath,
		VectorStorePath:     paths.VectorStorePath,
		EmbeddingsDimension: s.embedder.Dimensions(),
	}
	id, err := s.control.CreateDomain(ctx, d, dcfg)
	if err != nil {
		if rmErr := os.RemoveAll(paths.Dir); rmErr != nil {
			s.logger.Warn("failed to remove domain directory", "dir", paths.Dir, "err", rmErr)
		}
		return 0, fmt.Errorf("registering domain: %w", err)
	}

	s.logger.Info("domain created", "domain", name, "id", id, "dim", d.EmbeddingsDimension,
		"strategy", dcfg.ChunkingStrategy, "dir", paths.Dir)
	return id, nil
}

// checkNameFree rejects a name that is registered, or whose filesystem name
// collides with another domain. selfID is ignored during the check.
func (s *DomainService) checkNameFree(ctx context.Context, name string, selfID int64) error {
	existing, err := s.control.GetDomain(ctx, name)
	switch {
	case err == nil && existing.ID != selfID:
		return fmt.Errorf("domain %q: %w", name, domain.ErrAlreadyExists)
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return err
	}

	domains, err := s.control.ListDomains(ctx)
	if err != nil {
		return err
	}
	fs := domain.FSName(name)
	for _, d := range domains {
		if d.ID != selfID && domain.FSName(d.Name) == fs {
			return fmt.Errorf("domain %q collides with %q on disk: %w", name, d.Name, domain.ErrAlreadyExists)
		}
	}
	return nil
}

// Get retrieves a domain by name.
func (s *DomainService) Get(ctx context.Context, name string) (*domain.KnowledgeDomain, error) {
	return s.control.GetDomain(ctx, name)
}

// List returns every registered domain.
func (s *DomainService) List(ctx context.Context) ([]domain.KnowledgeDomain, error) {
	return s.control.ListDomains(ctx)
}

// Config returns a domain's static configuration.
func (s *DomainService) Config(ctx context.Context, name string) (*domain.DomainConfig, error) {
	d, err := s.control.GetDomain(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.control.GetDomainConfig(ctx, d.ID)
}

// IsPopulated returns true if the domain database exists and is non-empty.
func (s *DomainService) IsPopulated(d *domain.KnowledgeDomain) bool {
	return populated(d)
}

// move is one executed filesystem rename.
type move struct {
	from, to string
}

// Rename moves a domain's directory, database and index files to the
// layout of newName and then swaps the registry row. Any failure reverses
// the executed moves; a failed reversal is reported with ErrRenameRecovery.
func (s *DomainService) Rename(ctx context.Context, oldName, newName string) (*domain.DomainPaths, error) {
	if err := domain.ValidateDomainName(newName); err != nil {
		return nil, err
	}
	d, err := s.control.GetDomain(ctx, oldName)
	if err != nil {
		return nil, err
	}
	oldPaths := d.Paths()
	if oldName == newName {
		return &oldPaths, nil
	}

	// Check.
	if err := s.checkNameFree(ctx, newName, d.ID); err != nil {
		return nil, err
	}
	newPaths := domain.PathsFor(filepath.Dir(oldPaths.Dir), newName)
	sameDir := newPaths.Dir == oldPaths.Dir
	if !sameDir {
		if _, err := os.Stat(newPaths.Dir); err == nil {
			return nil, fmt.Errorf("target directory %s: %w", newPaths.Dir, domain.ErrAlreadyExists)
		}
	}

	if err := s.vectors.Release(d.VectorStorePath); err != nil {
		return nil, fmt.Errorf("releasing index: %w", err)
	}

	// Plan.
	plan := planRename(oldPaths, newPaths)

	logger := s.logger.With("domain", oldName, "new_name", newName)
	logger.Debug("rename planned", "moves", len(plan))

	// Execute.
	var done []move
	fail := func(stage string, cause error) (*domain.DomainPaths, error) {
		err := fmt.Errorf("renaming domain %q to %q: %s: %w", oldName, newName, stage, cause)
		if recErr := s.undo(done); recErr != nil {
			logger.Error("rename recovery failed", "err", recErr)
			return nil, errors.Join(err, domain.ErrRenameRecovery, recErr)
		}
		logger.Warn("rename rolled back", "stage", stage, "err", cause)
		return nil, err
	}
	for _, m := range plan {
		if err := s.rename(m.from, m.to); err != nil {
			return fail("moving "+filepath.Base(m.from), err)
		}
		done = append(done, m)
	}

	// Verify.
	for _, m := range plan {
		if _, err := os.Stat(m.to); err != nil {
			return fail("verifying "+filepath.Base(m.to), err)
		}
	}

	// Swap.
	if err := s.control.RenameDomain(ctx, d.ID, newName, newPaths); err != nil {
		return fail("updating registry", err)
	}

	logger.Info("domain renamed", "dir", newPaths.Dir, "moves", len(done))
	return &newPaths, nil
}

// planRename lists the moves that turn the old layout into the new one.
// Files that do not exist yet are skipped. The directory moves first, so
// file moves are expressed inside the new directory.
func planRename(oldPaths, newPaths domain.DomainPaths) []move {
	var plan []move
	dir := oldPaths.Dir
	if _, err := os.Stat(oldPaths.Dir); err != nil {
		return nil
	}
	if newPaths.Dir != oldPaths.Dir {
		plan = append(plan, move{from: oldPaths.Dir, to: newPaths.Dir})
		dir = newPaths.Dir
	}

	inDir := func(p string) string {
		rel, err := filepath.Rel(oldPaths.Dir, p)
		if err != nil || strings.HasPrefix(rel, "..") {
			return p
		}
		return filepath.Join(dir, rel)
	}
	// Existence is checked at the original location; the plan is built
	// before any move runs.
	addFile := func(oldPath, newPath string) {
		if oldPath == "" {
			return
		}
		if _, err := os.Stat(oldPath); err != nil {
			return
		}
		from := inDir(oldPath)
		if from == newPath {
			return
		}
		plan = append(plan, move{from: from, to: newPath})
	}

	addFile(oldPaths.DBPath, newPaths.DBPath)
	for _, ext := range dbSidecars {
		addFile(oldPaths.DBPath+ext, newPaths.DBPath+ext)
	}
	addFile(oldPaths.VectorStorePath, newPaths.VectorStorePath)
	return plan
}

// undo reverses executed moves in reverse order.
func (s *DomainService) undo(done []move) error {
	var errs []error
	for i := len(done) - 1; i >= 0; i-- {
		m := done[i]
		if err := s.rename(m.to, m.from); err != nil {
			errs = append(errs, fmt.Errorf("restoring %s: %w", m.from, err))
		}
	}
	return errors.Join(errs...)
}

// Update applies field updates. A name change delegates to Rename after
// the other fields are written.
func (s *DomainService) Update(ctx context.Context, name string, fields map[string]any) error {
	d, err := s.control.GetDomain(ctx, name)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		update  domain.DomainFieldUpdate
		newName string
	)
	for _, key := range keys {
		value := fields[key]
		switch {
		case key == domain.FieldName:
			str, ok := value.(string)
			if !ok {
				return fieldTypeError(key, "a string", value)
			}
			newName = str
		case key == domain.FieldDescription:
			str, ok := value.(string)
			if !ok {
				return fieldTypeError(key, "a string", value)
			}
			update.Description = &str
		case key == domain.FieldKeywords:
			str, ok := value.(string)
			if !ok {
				return fieldTypeError(key, "a string", value)
			}
			update.Keywords = &str
		case key == domain.FieldTotalDocuments:
			n, ok := asInt(value)
			if !ok || n < 0 {
				return fieldTypeError(key, "a non-negative integer", value)
			}
			update.TotalDocuments = &n
		case slices.Contains(domain.SystemManagedDomainFields(), key):
			s.logger.Warn("skipping system-managed field", "domain", name, "field", key)
		default:
			s.logger.Warn("skipping unknown field", "domain", name, "field", key)
		}
	}

	if !update.IsEmpty() {
		if err := s.control.UpdateDomainFields(ctx, d.ID, update); err != nil {
			return err
		}
		s.logger.Info("domain updated", "domain", name)
	}
	if newName != "" && newName != name {
		if _, err := s.Rename(ctx, name, newName); err != nil {
			return err
		}
	}
	return nil
}

func fieldTypeError(field, want string, got any) error {
	return fmt.Errorf("%w: field %q must be %s, got %T", domain.ErrInvalidInput, field, want, got)
}

// asInt accepts the integer forms produced by flag parsing and JSON decoding.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

// Delete moves the domain directory to a tombstone, removes the registry
// row and then removes the tombstone. A failed row delete restores the
// directory.
func (s *DomainService) Delete(ctx context.Context, name string) error {
	d, err := s.control.GetDomain(ctx, name)
	if err != nil {
		return err
	}
	logger := s.logger.With("domain", name)

	if err := s.vectors.Release(d.VectorStorePath); err != nil {
		return fmt.Errorf("releasing index: %w", err)
	}

	dir := d.Paths().Dir
	tombstone := ""
	if _, err := os.Stat(dir); err == nil {
		tombstone = dir + ".deleted-" + uuid.NewString()
		if err := s.rename(dir, tombstone); err != nil {
			return fmt.Errorf("moving domain directory aside: %w", err)
		}
	}

	if err := s.control.DeleteDomain(ctx, d.ID); err != nil {
		err = fmt.Errorf("deleting domain %q: %w", name, err)
		if tombstone != "" {
			if recErr := s.rename(tombstone, dir); recErr != nil {
				logger.Error("restoring domain directory failed", "tombstone", tombstone, "err", recErr)
				return errors.Join(err, recErr)
			}
		}
		return err
	}

	if tombstone != "" {
		if err := os.RemoveAll(tombstone); err != nil {
			logger.Warn("failed to remove tombstone", "path", tombstone, "err", err)
		}
	}
	logger.Info("domain deleted")
	return nil
}

// ListDocuments returns the documents ingested into a domain.
func (s *DomainService) ListDocuments(ctx context.Context, name string) ([]domain.DocumentFile, error) {
	d, err := s.control.GetDomain(ctx, name)
	if err != nil {
		return nil, err
	}
	if !populated(d) {
		return []domain.DocumentFile{}, nil
	}

	store, err := s.opener.Open(ctx, d.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening domain database: %w", err)
	}
	defer store.Close()

	return store.ListDocuments(ctx)
}

// DeleteDocument removes a document's rows, evicts its vectors and
// refreshes the domain document count.
func (s *DomainService) DeleteDocument(ctx context.Context, name string, documentID int64) error {
	d, err := s.control.GetDomain(ctx, name)
	if err != nil {
		return err
	}
	if !populated(d) {
		return fmt.Errorf("document %d: %w", documentID, domain.ErrNotFound)
	}
	cfg, err := s.control.GetDomainConfig(ctx, d.ID)
	if err != nil {
		return err
	}

	store, err := s.opener.Open(ctx, d.DBPath)
	if err != nil {
		return fmt.Errorf("opening domain database: %w", err)
	}
	defer store.Close()

	ids, err := store.DeleteDocument(ctx, documentID)
	if err != nil {
		return err
	}

	removed, err := s.vectors.Remove(ctx, indexSpec(d, cfg), ids)
	if err != nil {
		// Rows are gone; reconciliation evicts the orphaned vectors.
		return fmt.Errorf("evicting vectors of document %d: %w", documentID, err)
	}

	count, err := store.CountDocuments(ctx)
	if err != nil {
		return err
	}
	if err := s.control.UpdateDomainFields(ctx, d.ID, domain.DomainFieldUpdate{TotalDocuments: &count}); err != nil {
		return err
	}

	s.logger.Info("document deleted", "domain", name, "document_id", documentID, "vectors", removed)
	return nil
}
