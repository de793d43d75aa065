package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/custodia-labs/domainrag/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/domainrag/internal/core/domain"
	"github.com/custodia-labs/domainrag/internal/core/ports/driven"
)

// ControlStore is the SQLite-backed domain registry.
type ControlStore struct {
	db   *sql.DB
	path string
}

var _ driven.ControlStore = (*ControlStore)(nil)

// NewControlStore opens the control database at dbPath.
// If dbPath is empty, defaults to ~/.domainrag/control.db.
func NewControlStore(ctx context.Context, dbPath string) (*ControlStore, error) {
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".domainrag", "control.db")
	}

	db, err := openDB(ctx, dbPath, migrations.Control, "control")
	if err != nil {
		return nil, err
	}
	return &ControlStore{db: db, path: dbPath}, nil
}

// Close closes the database connection.
func (s *ControlStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *ControlStore) Path() string {
	return s.path
}

// ==================== Domains ====================

// CreateDomain registers a domain and its configuration in one transaction.
func (s *ControlStore) CreateDomain(ctx context.Context, d *domain.KnowledgeDomain, cfg domain.DomainConfig) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO domains (name, description, keywords, total_documents, db_path,
			vector_store_path, embeddings_dimension, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.Name, d.Description, d.Keywords, d.TotalDocuments, d.DBPath,
		d.VectorStorePath, d.EmbeddingsDimension, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("domain %q: %w", d.Name, domain.ErrAlreadyExists)
		}
		return 0, fmt.Errorf("inserting domain: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading domain id: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO domain_configs (domain_id, embeddings_model, normalize_embeddings,
			embedding_weight, index_type, chunking_strategy,
			chunk_size, chunk_overlap, cluster_distance_threshold, chunk_max_words)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, cfg.EmbeddingsModel, boolToInt(cfg.NormalizeEmbeddings),
		cfg.EmbeddingWeight, string(cfg.IndexType), string(cfg.ChunkingStrategy),
		cfg.ChunkSize, cfg.ChunkOverlap, cfg.ClusterDistanceThreshold, cfg.ChunkMaxWords)
	if err != nil {
		return 0, fmt.Errorf("inserting domain config: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	d.ID = id
	d.CreatedAt = now
	d.UpdatedAt = now
	return id, nil
}

const domainColumns = `id, name, description, keywords, total_documents, db_path,
	vector_store_path, embeddings_dimension, created_at, updated_at`

// GetDomain retrieves a domain by name.
func (s *ControlStore) GetDomain(ctx context.Context, name string) (*domain.KnowledgeDomain, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+domainColumns+" FROM domains WHERE name = ?", name)
	d, err := scanDomain(row)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("domain %q: %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting domain: %w", err)
	}
	return d, nil
}

// GetDomainByID retrieves a domain by id.
func (s *ControlStore) GetDomainByID(ctx context.Context, id int64) (*domain.KnowledgeDomain, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+domainColumns+" FROM domains WHERE id = ?", id)
	d, err := scanDomain(row)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("domain %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting domain: %w", err)
	}
	return d, nil
}

// ListDomains returns every registered domain ordered by name.
func (s *ControlStore) ListDomains(ctx context.Context) ([]domain.KnowledgeDomain, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+domainColumns+" FROM domains ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("querying domains: %w", err)
	}
	defer rows.Close()

	var domains []domain.KnowledgeDomain //nolint:prealloc // size unknown from query
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning domain: %w", err)
		}
		domains = append(domains, *d)
	}
	return domains, rows.Err()
}

// UpdateDomainFields applies the non-nil fields of update.
func (s *ControlStore) UpdateDomainFields(ctx context.Context, id int64, update domain.DomainFieldUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	sets := []string{}
	args := []any{}
	if update.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *update.Description)
	}
	if update.Keywords != nil {
		sets = append(sets, "keywords = ?")
		args = append(args, *update.Keywords)
	}
	if update.TotalDocuments != nil {
		sets = append(sets, "total_documents = ?")
		args = append(args, *update.TotalDocuments)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	query := "UPDATE domains SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating domain: %w", err)
	}
	return requireAffected(res, fmt.Sprintf("domain %d", id))
}

// RenameDomain changes a domain's name and paths in one statement.
func (s *ControlStore) RenameDomain(ctx context.Context, id int64, newName string, paths domain.DomainPaths) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE domains SET name = ?, db_path = ?, vector_store_path = ?, updated_at = ?
		WHERE id = ?
	`, newName, paths.DBPath, paths.VectorStorePath, time.Now().UTC(), id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("domain %q: %w", newName, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("renaming domain: %w", err)
	}
	return requireAffected(res, fmt.Sprintf("domain %d", id))
}

// DeleteDomain removes a domain; its configuration is removed by cascade.
func (s *ControlStore) DeleteDomain(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM domains WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting domain: %w", err)
	}
	return requireAffected(res, fmt.Sprintf("domain %d", id))
}

// ==================== Domain Configs ====================

// GetDomainConfig retrieves the configuration of a domain.
func (s *ControlStore) GetDomainConfig(ctx context.Context, domainID int64) (*domain.DomainConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT domain_id, embeddings_model, normalize_embeddings,
			embedding_weight, index_type, chunking_strategy, chunk_size, chunk_overlap,
			cluster_distance_threshold, chunk_max_words
		FROM domain_configs WHERE domain_id = ?
	`, domainID)

	var (
		cfg              domain.DomainConfig
		normalize        int
		indexType        string
		chunkingStrategy string
	)
	err := row.Scan(&cfg.DomainID, &cfg.EmbeddingsModel, &normalize,
		&cfg.EmbeddingWeight, &indexType, &chunkingStrategy, &cfg.ChunkSize, &cfg.ChunkOverlap,
		&cfg.ClusterDistanceThreshold, &cfg.ChunkMaxWords)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("config for domain %d: %w", domainID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting domain config: %w", err)
	}

	cfg.NormalizeEmbeddings = normalize != 0
	cfg.IndexType = domain.IndexType(indexType)
	cfg.ChunkingStrategy = domain.ChunkingStrategyName(chunkingStrategy)
	return &cfg, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDomain(row scanner) (*domain.KnowledgeDomain, error) {
	var d domain.KnowledgeDomain
	err := row.Scan(&d.ID, &d.Name, &d.Description, &d.Keywords, &d.TotalDocuments,
		&d.DBPath, &d.VectorStorePath, &d.EmbeddingsDimension, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return nil
}
