package domain

import "time"

// RetrievedChunk is a chunk returned by vector search in one domain.
type RetrievedChunk struct {
	Domain   string
	ChunkID  int64
	Content  string
	Metadata ChunkMetadata
	// Distance is the raw index score: squared L2 distance or inner product.
	Distance float32
}

// QueryMetrics describes how a query was answered.
type QueryMetrics struct {
	SelectedDomains []string

	// AutoSelected is true when the LLM picked the domains.
	AutoSelected bool

	HitsPerDomain map[string]int
	TotalChunks   int
	RetrievalK    int
	Model         string

	SelectionDuration  time.Duration
	RetrievalDuration  time.Duration
	GenerationDuration time.Duration
	TotalDuration      time.Duration
}

// QueryResult is the answer to a question plus its supporting context.
type QueryResult struct {
	Question string
	Answer   string
	Chunks   []RetrievedChunk
	Metrics  QueryMetrics
}

// HealthReport describes the availability of external collaborators.
type HealthReport struct {
	LLMModel         string
	LLMError         string
	EmbeddingModel   string
	EmbeddingError   string
	Domains          int
	PopulatedDomains int
	CheckedAt        time.Time
}

// Healthy returns true if both providers answered.
func (h *HealthReport) Healthy() bool {
	return h.LLMError == "" && h.EmbeddingError == ""
}
