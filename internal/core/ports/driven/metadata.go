package driven

import (
	"context"

	"github.com/custodia-labs/domainrag/internal/core/domain"
)

// ControlStore persists the domain registry and per-domain configuration.
// It is a single database separate from every domain database; the two
// are never written in one transaction.
type ControlStore interface {
	// CreateDomain registers a domain and its configuration atomically.
	// Returns domain.ErrAlreadyExists if the name is taken.
	CreateDomain(ctx context.Context, d *domain.KnowledgeDomain, cfg domain.DomainConfig) (int64, error)

	// GetDomain retrieves a domain by name.
	// Returns domain.ErrNotFound if absent.
	GetDomain(ctx context.Context, name string) (*domain.KnowledgeDomain, error)

	// GetDomainByID retrieves a domain by id.
	GetDomainByID(ctx context.Context, id int64) (*domain.KnowledgeDomain, error)

	// ListDomains returns every registered domain ordered by name.
	ListDomains(ctx context.Context) ([]domain.KnowledgeDomain, error)

	// UpdateDomainFields applies a field update to a domain.
	UpdateDomainFields(ctx context.Context, id int64, update domain.DomainFieldUpdate) error

	// RenameDomain changes a domain's name and paths in one statement.
	// Returns domain.ErrAlreadyExists if newName is taken.
	RenameDomain(ctx context.Context, id int64, newName string, paths domain.DomainPaths) error

	// DeleteDomain removes a domain and, by cascade, its configuration.
	DeleteDomain(ctx context.Context, id int64) error

	// GetDomainConfig retrieves the configuration of a domain.
	GetDomainConfig(ctx context.Context, domainID int64) (*domain.DomainConfig, error)

	// Close releases the database connection.
	Close() error
}

// DomainStoreOpener opens the database of a single domain, creating the
// file and schema on first use.
type DomainStoreOpener interface {
	Open(ctx context.Context, path string) (DomainStore, error)
}

// DomainStore persists one domain's documents, chunks and embeddings.
type DomainStore interface {
	// Begin starts the transaction that ingests one file.
	Begin(ctx context.Context) (DomainTx, error)

	// ListDocuments returns every document ordered by id.
	ListDocuments(ctx context.Context) ([]domain.DocumentFile, error)

	// CountDocuments returns the number of documents.
	CountDocuments(ctx context.Context) (int, error)

	// GetChunksByIDs returns the chunks for ids in the order requested.
	// Ids with no row are omitted.
	GetChunksByIDs(ctx context.Context, ids []int64) ([]domain.Chunk, error)

	// ListEmbeddings returns every embedding row ordered by vector id.
	ListEmbeddings(ctx context.Context) ([]domain.Embedding, error)

	// DeleteDocument removes a document with its chunks and embeddings.
	// It returns the vector ids that referenced the removed chunks.
	DeleteDocument(ctx context.Context, id int64) ([]int64, error)

	// Close releases the database connection.
	Close() error
}

// DomainTx is a domain database transaction covering one file.
// Exactly one of Commit or Rollback must be called.
type DomainTx interface {
	// FindDocumentByHash returns the document with the given content hash.
	// Returns domain.ErrNotFound if none exists.
	FindDocumentByHash(ctx context.Context, hash string) (*domain.DocumentFile, error)

	// InsertDocument inserts a document and sets its ID.
	// Returns domain.ErrAlreadyExists if the hash is already stored.
	InsertDocument(ctx context.Context, doc *domain.DocumentFile) error

	// InsertChunks inserts drafts for a document and returns the stored
	// chunks with their assigned ids, in draft order.
	InsertChunks(ctx context.Context, documentID int64, drafts []domain.ChunkDraft) ([]domain.Chunk, error)

	// InsertEmbeddings inserts embedding rows.
	InsertEmbeddings(ctx context.Context, embeddings []domain.Embedding) error

	// Commit makes the file's rows durable.
	Commit() error

	// Rollback discards the file's rows. Calling it after Commit is a no-op.
	Rollback() error
}
