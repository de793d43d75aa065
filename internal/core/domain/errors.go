package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfig indicates a configuration value failed validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnsupportedType indicates a file type no extractor can handle.
	ErrUnsupportedType = errors.New("unsupported type")

	// Ingestion Errors.

	// ErrNoPages indicates a document produced no extractable page text.
	ErrNoPages = errors.New("no extractable pages")

	// ErrNoChunks indicates a chunking strategy produced zero chunks.
	ErrNoChunks = errors.New("no chunks produced")

	// Vector Index Errors.

	// ErrDimensionMismatch indicates a vector does not match the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrDuplicateVectorID indicates an id is already present in the index.
	ErrDuplicateVectorID = errors.New("vector id already present")

	// Query Errors.

	// ErrNoPopulatedDomains indicates no domain has a populated database to query.
	ErrNoPopulatedDomains = errors.New("no populated domains")

	// ErrNoDomainSelected indicates domain selection resolved to an empty set.
	ErrNoDomainSelected = errors.New("no domain selected")

	// ErrNoContext indicates retrieval returned no chunks to answer from.
	ErrNoContext = errors.New("no relevant context found")

	// Lifecycle Errors.

	// ErrRenameRecovery indicates a failed rename could not restore the original layout.
	// The domain directory may need manual repair.
	ErrRenameRecovery = errors.New("rename recovery failed")

	// ErrIndexDirty indicates the vector index holds ids that were rolled back
	// in the database and could not be removed.
	ErrIndexDirty = errors.New("vector index holds uncommitted ids")

	// Provider Errors.

	// ErrLLMUnavailable indicates the LLM service is not configured or unreachable.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured or unreachable.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)
