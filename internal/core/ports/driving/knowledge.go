package driving

import (
	"context"

	"github.com/custodia-labs/domainrag/internal/core/domain"
)

// DomainService manages the lifecycle of knowledge domains.
type DomainService interface {
	// Create registers a domain. A nil cfg applies the configured defaults.
	Create(ctx context.Context, name, description, keywords string, cfg *domain.DomainConfig) (int64, error)

	// Get retrieves a domain by name.
	Get(ctx context.Context, name string) (*domain.KnowledgeDomain, error)

	// List returns every registered domain.
	List(ctx context.Context) ([]domain.KnowledgeDomain, error)

	// Rename moves a domain's files and registry row to a new name together.
	Rename(ctx context.Context, oldName, newName string) (*domain.DomainPaths, error)

	// Update applies field updates. System-managed and unknown fields are
	// skipped with a warning.
	Update(ctx context.Context, name string, fields map[string]any) error

	// Delete removes a domain's registry row and files together.
	Delete(ctx context.Context, name string) error

	// Config returns a domain's static configuration.
	Config(ctx context.Context, name string) (*domain.DomainConfig, error)

	// ListDocuments returns the documents ingested into a domain.
	ListDocuments(ctx context.Context, name string) ([]domain.DocumentFile, error)

	// DeleteDocument removes a document's rows and evicts its vectors.
	DeleteDocument(ctx context.Context, name string, documentID int64) error

	// IsPopulated returns true if the domain database exists and is non-empty.
	IsPopulated(d *domain.KnowledgeDomain) bool
}

// IngestionService ingests directories of documents into a domain.
type IngestionService interface {
	// ProcessDirectory ingests every candidate file in dir, one transaction
	// per file. A single file's failure never aborts the run.
	ProcessDirectory(ctx context.Context, dir, domainName string) (*domain.IngestReport, error)
}

// Reconciler repairs divergence between a domain database and its index.
type Reconciler interface {
	Reconcile(ctx context.Context, domainName string) (*domain.ReconcileReport, error)
}

// QueryService answers questions from domain knowledge.
type QueryService interface {
	// Query answers a question. With no domain names the LLM selects
	// among populated domains.
	Query(ctx context.Context, question string, domainNames []string) (*domain.QueryResult, error)

	// Retrieve runs selection and vector search without answer generation.
	// k <= 0 uses the configured retrieval_k.
	Retrieve(ctx context.Context, question string, domainNames []string, k int) ([]domain.RetrievedChunk, error)

	// Health reports provider availability and domain counts.
	Health(ctx context.Context) *domain.HealthReport
}

// ConfigReloader is implemented by stateful components that accept
// configuration changes at runtime.
type ConfigReloader interface {
	UpdateConfig(cfg domain.AppConfig)
}
