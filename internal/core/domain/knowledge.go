package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxDomainNameLength bounds the length of a domain name in runes.
const MaxDomainNameLength = 100

// KnowledgeDomain is a named, isolated knowledge base with its own
// relational database and vector index.
type KnowledgeDomain struct {
	// ID is the control database identifier.
	ID int64

	// Name is the unique, human-facing name.
	Name string

	// Description is shown to the LLM during automatic domain selection.
	Description string

	// Keywords is a comma-separated list of topic hints.
	Keywords string

	// TotalDocuments is the number of documents in the domain database.
	TotalDocuments int

	// DBPath is the domain database file.
	DBPath string

	// VectorStorePath is the domain vector index file.
	VectorStorePath string

	// EmbeddingsDimension is the vector dimension fixed at creation.
	EmbeddingsDimension int

	// CreatedAt is when the domain was registered.
	CreatedAt time.Time

	// UpdatedAt is when the domain was last modified.
	UpdatedAt time.Time
}

// Paths returns the filesystem layout recorded for the domain.
func (d *KnowledgeDomain) Paths() DomainPaths {
	return DomainPaths{
		Dir:             dirOf(d.DBPath),
		DBPath:          d.DBPath,
		VectorStorePath: d.VectorStorePath,
	}
}

// ChunkingStrategyName identifies a chunking strategy variant.
type ChunkingStrategyName string

// Available chunking strategies.
const (
	// ChunkingRecursive splits each page on a separator precedence list.
	ChunkingRecursive ChunkingStrategyName = "recursive"

	// ChunkingSemanticCluster clusters small sub-chunks by embedding distance.
	ChunkingSemanticCluster ChunkingStrategyName = "semantic_cluster"
)

// IsValid returns true if the strategy is recognised.
func (n ChunkingStrategyName) IsValid() bool {
	switch n {
	case ChunkingRecursive, ChunkingSemanticCluster:
		return true
	default:
		return false
	}
}

// IndexType identifies the flat index metric.
type IndexType string

// Available index types.
const (
	// IndexFlatL2 ranks by squared Euclidean distance, smaller is closer.
	IndexFlatL2 IndexType = "IndexFlatL2"

	// IndexFlatIP ranks by inner product, larger is closer.
	IndexFlatIP IndexType = "IndexFlatIP"
)

// IsValid returns true if the index type is recognised.
func (t IndexType) IsValid() bool {
	return t == IndexFlatL2 || t == IndexFlatIP
}

// DomainConfig holds per-domain static parameters.
// It is one-to-one with KnowledgeDomain, keyed by DomainID.
type DomainConfig struct {
	DomainID                 int64
	EmbeddingsModel          string
	NormalizeEmbeddings      bool
	EmbeddingWeight          float64
	IndexType                IndexType
	ChunkingStrategy         ChunkingStrategyName
	ChunkSize                int
	ChunkOverlap             int
	ClusterDistanceThreshold float64
	ChunkMaxWords            int
}

// DefaultDomainConfig returns the configuration applied when a domain is
// created without explicit parameters.
func DefaultDomainConfig() DomainConfig {
	return DomainConfig{
		EmbeddingsModel:          "all-minilm",
		NormalizeEmbeddings:      true,
		EmbeddingWeight:          0.7,
		IndexType:                IndexFlatL2,
		ChunkingStrategy:         ChunkingRecursive,
		ChunkSize:                500,
		ChunkOverlap:             100,
		ClusterDistanceThreshold: 0.85,
		ChunkMaxWords:            250,
	}
}

// Validate checks the configuration for values no strategy can work with.
func (c DomainConfig) Validate() error {
	switch {
	case !c.ChunkingStrategy.IsValid():
		return fmt.Errorf("%w: unknown chunking strategy %q", ErrInvalidConfig, c.ChunkingStrategy)
	case !c.IndexType.IsValid():
		return fmt.Errorf("%w: unknown index type %q", ErrInvalidConfig, c.IndexType)
	case c.ChunkSize <= 0:
		return fmt.Errorf("%w: chunk_size must be positive", ErrInvalidConfig)
	case c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize:
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size)", ErrInvalidConfig)
	case c.EmbeddingWeight < 0 || c.EmbeddingWeight > 1:
		return fmt.Errorf("%w: embedding_weight must be in [0, 1]", ErrInvalidConfig)
	case c.ClusterDistanceThreshold <= 0:
		return fmt.Errorf("%w: cluster_distance_threshold must be positive", ErrInvalidConfig)
	case c.ChunkMaxWords <= 0:
		return fmt.Errorf("%w: chunk_max_words must be positive", ErrInvalidConfig)
	}
	return nil
}

// ValidateDomainName checks a proposed domain name.
func ValidateDomainName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: domain name is required", ErrInvalidInput)
	}
	if trimmed != name {
		return fmt.Errorf("%w: domain name %q has surrounding whitespace", ErrInvalidInput, name)
	}
	if utf8.RuneCountInString(name) > MaxDomainNameLength {
		return fmt.Errorf("%w: domain name exceeds %d characters", ErrInvalidInput, MaxDomainNameLength)
	}
	if FSName(name) == "" {
		return fmt.Errorf("%w: domain name %q has no filesystem-safe characters", ErrInvalidInput, name)
	}
	return nil
}

// Updatable domain fields.
const (
	FieldName           = "name"
	FieldDescription    = "description"
	FieldKeywords       = "keywords"
	FieldTotalDocuments = "total_documents"
)

// UpdatableDomainFields returns the field names callers may change.
func UpdatableDomainFields() []string {
	return []string{FieldName, FieldDescription, FieldKeywords, FieldTotalDocuments}
}

// SystemManagedDomainFields returns fields owned by the lifecycle manager.
// Updates naming them are skipped with a warning.
func SystemManagedDomainFields() []string {
	return []string{"id", "db_path", "vector_store_path", "embeddings_dimension", "created_at", "updated_at"}
}

// DomainFieldUpdate is a typed, validated subset of an update request.
// Nil pointers leave the field unchanged.
type DomainFieldUpdate struct {
	Description    *string
	Keywords       *string
	TotalDocuments *int
}

// IsEmpty returns true if the update changes nothing.
func (u DomainFieldUpdate) IsEmpty() bool {
	return u.Description == nil && u.Keywords == nil && u.TotalDocuments == nil
}
