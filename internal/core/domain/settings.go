package domain

import (
	"fmt"
	"strings"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI API or a compatible server.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderHuggingFace is the Hugging Face Inference API.
	AIProviderHuggingFace AIProvider = "huggingface"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderHuggingFace:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderHuggingFace
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderHuggingFace:
		return "Hugging Face Inference (cloud)"
	default:
		return unknownDescription
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{AIProviderOllama, AIProviderOpenAI}
}

// AllLLMProviders returns providers that support text generation.
func AllLLMProviders() []AIProvider {
	return []AIProvider{AIProviderOllama, AIProviderOpenAI, AIProviderHuggingFace}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}

// DefaultPromptTemplate is the answer prompt. {context} and {query} are
// substituted at query time.
const DefaultPromptTemplate = `Answer the question using only the context below.
If the context does not contain the answer, say that you do not know.

Context:
{context}

Question: {query}

Answer:`

// SystemConfig holds filesystem and logging settings.
type SystemConfig struct {
	LogLevel        string `toml:"log_level"`
	LogFile         string `toml:"log_file"`
	StorageBasePath string `toml:"storage_base_path"`
	ControlDBPath   string `toml:"control_db_path"`
	DefaultDomain   string `toml:"default_domain"`
}

// IngestionConfig holds the defaults applied to newly created domains.
type IngestionConfig struct {
	ChunkStrategy            ChunkingStrategyName `toml:"chunk_strategy"`
	ChunkSize                int                  `toml:"chunk_size"`
	ChunkOverlap             int                  `toml:"chunk_overlap"`
	ClusterDistanceThreshold float64              `toml:"cluster_distance_threshold"`
	ChunkMaxWords            int                  `toml:"chunk_max_words"`
	EmbeddingWeight          float64              `toml:"embedding_weight"`
	KeywordsTopN             int                  `toml:"keywords_top_n"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider            AIProvider `toml:"provider"`
	ModelName           string     `toml:"model_name"`
	BaseURL             string     `toml:"base_url"`
	APIKey              string     `toml:"api_key"`
	Device              string     `toml:"device"`
	BatchSize           int        `toml:"batch_size"`
	NormalizeEmbeddings bool       `toml:"normalize_embeddings"`
	Dimensions          int        `toml:"dimensions"`
}

// VectorStoreConfig holds vector index settings.
type VectorStoreConfig struct {
	IndexType IndexType `toml:"index_type"`
}

// QueryConfig holds retrieval settings.
type QueryConfig struct {
	RetrievalK int `toml:"retrieval_k"`
}

// LLMConfig holds generative model settings.
type LLMConfig struct {
	Provider          AIProvider `toml:"provider"`
	ModelRepoID       string     `toml:"model_repo_id"`
	BaseURL           string     `toml:"base_url"`
	APIKey            string     `toml:"api_key"`
	MaxNewTokens      int        `toml:"max_new_tokens"`
	Temperature       float64    `toml:"temperature"`
	TopP              float64    `toml:"top_p"`
	TopK              int        `toml:"top_k"`
	RepetitionPenalty float64    `toml:"repetition_penalty"`
	PromptTemplate    string     `toml:"prompt_template"`
	MaxRetries        int        `toml:"max_retries"`
	// RetryDelaySeconds is multiplied by the attempt number between retries.
	RetryDelaySeconds float64 `toml:"retry_delay"`
	// RequestsPerSecond throttles provider calls. Zero disables throttling.
	RequestsPerSecond float64 `toml:"requests_per_second"`
	TimeoutSeconds    int     `toml:"timeout"`
}

// RetryDelay returns the base retry delay.
func (c LLMConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds * float64(time.Second))
}

// Timeout returns the per-request timeout.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TextNormalizerConfig toggles text normalisation steps applied before embedding.
type TextNormalizerConfig struct {
	UnicodeNormalization bool `toml:"unicode_normalization"`
	CollapseWhitespace   bool `toml:"collapse_whitespace"`
	Lowercase            bool `toml:"lowercase"`
}

// AppConfig holds all application settings.
type AppConfig struct {
	System         SystemConfig         `toml:"system"`
	Ingestion      IngestionConfig      `toml:"ingestion"`
	Embedding      EmbeddingConfig      `toml:"embedding"`
	VectorStore    VectorStoreConfig    `toml:"vector_store"`
	Query          QueryConfig          `toml:"query"`
	LLM            LLMConfig            `toml:"llm"`
	TextNormalizer TextNormalizerConfig `toml:"text_normalizer"`
}

// DefaultAppConfig returns settings with sensible defaults.
// Providers default to a local Ollama instance.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		System: SystemConfig{
			LogLevel:        "info",
			LogFile:         "logs/app.log",
			StorageBasePath: "storage/domains",
			ControlDBPath:   "storage/control.db",
		},
		Ingestion: IngestionConfig{
			ChunkStrategy:            ChunkingRecursive,
			ChunkSize:                1000,
			ChunkOverlap:             200,
			ClusterDistanceThreshold: 0.85,
			ChunkMaxWords:            250,
			EmbeddingWeight:          0.7,
			KeywordsTopN:             3,
		},
		Embedding: EmbeddingConfig{
			Provider:            AIProviderOllama,
			ModelName:           "all-minilm",
			Device:              "cpu",
			BatchSize:           32,
			NormalizeEmbeddings: true,
		},
		VectorStore: VectorStoreConfig{
			IndexType: IndexFlatL2,
		},
		Query: QueryConfig{
			RetrievalK: 5,
		},
		LLM: LLMConfig{
			Provider:          AIProviderOllama,
			ModelRepoID:       "llama3.2",
			MaxNewTokens:      1000,
			Temperature:       0.7,
			TopP:              0.9,
			TopK:              50,
			RepetitionPenalty: 1.0,
			PromptTemplate:    DefaultPromptTemplate,
			MaxRetries:        3,
			RetryDelaySeconds: 2,
			TimeoutSeconds:    120,
		},
		TextNormalizer: TextNormalizerConfig{
			UnicodeNormalization: true,
			CollapseWhitespace:   true,
			Lowercase:            true,
		},
	}
}

// Validate checks every section and reports the first offending field.
//
//nolint:gocyclo // flat list of independent field checks
func (c AppConfig) Validate() error {
	invalid := func(field, reason string) error {
		return fmt.Errorf("%w: %s %s", ErrInvalidConfig, field, reason)
	}

	switch strings.ToLower(c.System.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("system.log_level", "must be one of debug, info, warn, error")
	}
	if c.System.StorageBasePath == "" {
		return invalid("system.storage_base_path", "is required")
	}
	if c.System.ControlDBPath == "" {
		return invalid("system.control_db_path", "is required")
	}

	if !c.Ingestion.ChunkStrategy.IsValid() {
		return invalid("ingestion.chunk_strategy", fmt.Sprintf("%q is not a known strategy", c.Ingestion.ChunkStrategy))
	}
	if c.Ingestion.ChunkSize <= 0 {
		return invalid("ingestion.chunk_size", "must be positive")
	}
	if c.Ingestion.ChunkOverlap < 0 || c.Ingestion.ChunkOverlap >= c.Ingestion.ChunkSize {
		return invalid("ingestion.chunk_overlap", "must be in [0, chunk_size)")
	}
	if c.Ingestion.ClusterDistanceThreshold <= 0 {
		return invalid("ingestion.cluster_distance_threshold", "must be positive")
	}
	if c.Ingestion.ChunkMaxWords <= 0 {
		return invalid("ingestion.chunk_max_words", "must be positive")
	}
	if c.Ingestion.EmbeddingWeight < 0 || c.Ingestion.EmbeddingWeight > 1 {
		return invalid("ingestion.embedding_weight", "must be in [0, 1]")
	}
	if c.Ingestion.KeywordsTopN < 0 {
		return invalid("ingestion.keywords_top_n", "must not be negative")
	}

	if !c.Embedding.Provider.IsValid() || c.Embedding.Provider == AIProviderHuggingFace {
		return invalid("embedding.provider", fmt.Sprintf("%q does not provide embeddings", c.Embedding.Provider))
	}
	if c.Embedding.ModelName == "" {
		return invalid("embedding.model_name", "is required")
	}
	if c.Embedding.BatchSize <= 0 {
		return invalid("embedding.batch_size", "must be positive")
	}
	if c.Embedding.Dimensions < 0 {
		return invalid("embedding.dimensions", "must not be negative")
	}

	if !c.VectorStore.IndexType.IsValid() {
		return invalid("vector_store.index_type", fmt.Sprintf("%q is not a known index type", c.VectorStore.IndexType))
	}

	if c.Query.RetrievalK <= 0 {
		return invalid("query.retrieval_k", "must be positive")
	}

	if !c.LLM.Provider.IsValid() {
		return invalid("llm.provider", fmt.Sprintf("%q is not a known provider", c.LLM.Provider))
	}
	if c.LLM.ModelRepoID == "" {
		return invalid("llm.model_repo_id", "is required")
	}
	if c.LLM.MaxNewTokens <= 0 {
		return invalid("llm.max_new_tokens", "must be positive")
	}
	if c.LLM.Temperature < 0 {
		return invalid("llm.temperature", "must not be negative")
	}
	if c.LLM.TopP < 0 || c.LLM.TopP > 1 {
		return invalid("llm.top_p", "must be in [0, 1]")
	}
	if c.LLM.MaxRetries < 1 {
		return invalid("llm.max_retries", "must be at least 1")
	}
	if c.LLM.RetryDelaySeconds < 0 {
		return invalid("llm.retry_delay", "must not be negative")
	}
	if c.LLM.RequestsPerSecond < 0 {
		return invalid("llm.requests_per_second", "must not be negative")
	}
	if !strings.Contains(c.LLM.PromptTemplate, "{context}") || !strings.Contains(c.LLM.PromptTemplate, "{query}") {
		return invalid("llm.prompt_template", "must contain {context} and {query}")
	}
	return nil
}

// DomainDefaults returns the DomainConfig a new domain receives when the
// caller supplies none.
func (c AppConfig) DomainDefaults() DomainConfig {
	return DomainConfig{
		EmbeddingsModel:          c.Embedding.ModelName,
		NormalizeEmbeddings:      c.Embedding.NormalizeEmbeddings,
		EmbeddingWeight:          c.Ingestion.EmbeddingWeight,
		IndexType:                c.VectorStore.IndexType,
		ChunkingStrategy:         c.Ingestion.ChunkStrategy,
		ChunkSize:                c.Ingestion.ChunkSize,
		ChunkOverlap:             c.Ingestion.ChunkOverlap,
		ClusterDistanceThreshold: c.Ingestion.ClusterDistanceThreshold,
		ChunkMaxWords:            c.Ingestion.ChunkMaxWords,
	}
}
