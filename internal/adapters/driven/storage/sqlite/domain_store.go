package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/custodia-labs/domainrag/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/domainrag/internal/core/domain"
	"github.com/custodia-labs/domainrag/internal/core/ports/driven"
)

// DomainOpener opens per-domain databases.
type DomainOpener struct{}

var _ driven.DomainStoreOpener = DomainOpener{}

// Open opens or creates the domain database at path.
func (DomainOpener) Open(ctx context.Context, path string) (driven.DomainStore, error) {
	return OpenDomainStore(ctx, path)
}

// DomainStore is the SQLite-backed store of one domain's documents,
// chunks and embeddings.
type DomainStore struct {
	db   *sql.DB
	path string
}

var _ driven.DomainStore = (*DomainStore)(nil)

// OpenDomainStore opens or creates the domain database at path.
func OpenDomainStore(ctx context.Context, path string) (*DomainStore, error) {
	db, err := openDB(ctx, path, migrations.Domain, "domain")
	if err != nil {
		return nil, err
	}
	return &DomainStore{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *DomainStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *DomainStore) Path() string {
	return s.path
}

// Begin starts a transaction for one file.
func (s *DomainStore) Begin(ctx context.Context) (driven.DomainTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &domainTx{tx: tx}, nil
}

// ==================== Documents ====================

const documentColumns = "id, hash, name, path, total_pages, created_at, updated_at"

// ListDocuments returns every document ordered by id.
func (s *DomainStore) ListDocuments(ctx context.Context) ([]domain.DocumentFile, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+documentColumns+" FROM document_files ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.DocumentFile //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// CountDocuments returns the number of documents.
func (s *DomainStore) CountDocuments(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM document_files").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// DeleteDocument removes a document; chunks and embeddings go by cascade.
// The vector ids that referenced its chunks are returned for eviction.
func (s *DomainStore) DeleteDocument(ctx context.Context, id int64) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, `
		SELECT e.vector_index_id FROM embeddings e
		JOIN chunks c ON c.id = e.chunk_id
		WHERE c.document_id = ?
		ORDER BY e.vector_index_id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying document vectors: %w", err)
	}
	var vectorIDs []int64
	for rows.Next() {
		var vid int64
		if err := rows.Scan(&vid); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning vector id: %w", err)
		}
		vectorIDs = append(vectorIDs, vid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading vector ids: %w", err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM document_files WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("deleting document: %w", err)
	}
	if err := requireAffected(res, fmt.Sprintf("document %d", id)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return vectorIDs, nil
}

// ==================== Chunks ====================

// GetChunksByIDs returns chunks in the order of ids, skipping unknown ids.
func (s *DomainStore) GetChunksByIDs(ctx context.Context, ids []int64) ([]domain.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, content, metadata, created_at
		FROM chunks WHERE id IN (`+placeholders(len(ids))+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]domain.Chunk, len(ids))
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		byID[chunk.ID] = *chunk
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chunks: %w", err)
	}

	chunks := make([]domain.Chunk, 0, len(byID))
	for _, id := range ids {
		if chunk, ok := byID[id]; ok {
			chunks = append(chunks, chunk)
		}
	}
	return chunks, nil
}

// ==================== Embeddings ====================

// ListEmbeddings returns every embedding row ordered by vector id.
func (s *DomainStore) ListEmbeddings(ctx context.Context) ([]domain.Embedding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chunk_id, vector_index_path, vector_index_id, dimension
		FROM embeddings ORDER BY vector_index_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var embeddings []domain.Embedding //nolint:prealloc // size unknown from query
	for rows.Next() {
		var e domain.Embedding
		if err := rows.Scan(&e.ID, &e.ChunkID, &e.VectorIndexPath, &e.VectorIndexID, &e.Dimension); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		embeddings = append(embeddings, e)
	}
	return embeddings, rows.Err()
}

// ==================== Transaction ====================

// domainTx implements driven.DomainTx.
type domainTx struct {
	tx   *sql.Tx
	done bool
}

var _ driven.DomainTx = (*domainTx)(nil)

// FindDocumentByHash returns the document with the given content hash.
func (t *domainTx) FindDocumentByHash(ctx context.Context, hash string) (*domain.DocumentFile, error) {
	row := t.tx.QueryRowContext(ctx, "SELECT "+documentColumns+" FROM document_files WHERE hash = ?", hash)
	doc, err := scanDocument(row)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("looking up hash: %w", err)
	}
	return doc, nil
}

// InsertDocument inserts a document and sets its ID and timestamps.
func (t *domainTx) InsertDocument(ctx context.Context, doc *domain.DocumentFile) error {
	now := time.Now().UTC()
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO document_files (hash, name, path, total_pages, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, doc.Hash, doc.Name, doc.Path, doc.TotalPages, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("document hash %s: %w", doc.Hash, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("inserting document: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading document id: %w", err)
	}
	doc.ID = id
	doc.CreatedAt = now
	doc.UpdatedAt = now
	return nil
}

// InsertChunks inserts drafts and returns the stored chunks in draft order.
func (t *domainTx) InsertChunks(ctx context.Context, documentID int64, drafts []domain.ChunkDraft) ([]domain.Chunk, error) {
	stmt, err := t.tx.PrepareContext(ctx, `
		INSERT INTO chunks (document_id, content, metadata, created_at)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	chunks := make([]domain.Chunk, 0, len(drafts))
	for _, draft := range drafts {
		metadataJSON, err := json.Marshal(draft.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshalling chunk metadata: %w", err)
		}

		res, err := stmt.ExecContext(ctx, documentID, draft.Content, string(metadataJSON), now)
		if err != nil {
			return nil, fmt.Errorf("inserting chunk: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("reading chunk id: %w", err)
		}

		chunks = append(chunks, domain.Chunk{
			ID:         id,
			DocumentID: documentID,
			Content:    draft.Content,
			Metadata:   draft.Metadata,
			CreatedAt:  now,
		})
	}
	return chunks, nil
}

// InsertEmbeddings inserts embedding rows.
func (t *domainTx) InsertEmbeddings(ctx context.Context, embeddings []domain.Embedding) error {
	stmt, err := t.tx.PrepareContext(ctx, `
		INSERT INTO embeddings (chunk_id, vector_index_path, vector_index_id, dimension)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i := range embeddings {
		e := &embeddings[i]
		if e.VectorIndexID != e.ChunkID {
			return fmt.Errorf("%w: vector id %d differs from chunk id %d",
				domain.ErrInvalidInput, e.VectorIndexID, e.ChunkID)
		}
		res, err := stmt.ExecContext(ctx, e.ChunkID, e.VectorIndexPath, e.VectorIndexID, e.Dimension)
		if err != nil {
			return fmt.Errorf("inserting embedding: %w", err)
		}
		if e.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("reading embedding id: %w", err)
		}
	}
	return nil
}

// Commit commits the transaction.
func (t *domainTx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Rollback rolls back the transaction. It is a no-op after Commit.
func (t *domainTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("rolling back transaction: %w", err)
	}
	return nil
}

func scanDocument(row scanner) (*domain.DocumentFile, error) {
	var doc domain.DocumentFile
	err := row.Scan(&doc.ID, &doc.Hash, &doc.Name, &doc.Path, &doc.TotalPages, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func scanChunk(row scanner) (*domain.Chunk, error) {
	var (
		chunk        domain.Chunk
		metadataJSON string
	)
	if err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content, &metadataJSON, &chunk.CreatedAt); err != nil {
		return nil, err
	}
	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshalling chunk metadata: %w", err)
		}
	}
	return &chunk, nil
}
