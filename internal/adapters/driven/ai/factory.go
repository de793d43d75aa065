// Package ai builds the embedding and LLM adapters selected by configuration.
package ai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"

	ollamaembed "github.com/custodia-labs/domainrag/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/domainrag/internal/adapters/driven/embedding/openai"
	hfllm "github.com/custodia-labs/domainrag/internal/adapters/driven/llm/huggingface"
	ollamallm "github.com/custodia-labs/domainrag/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/domainrag/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/domainrag/internal/adapters/driven/llm/retry"
	"github.com/custodia-labs/domainrag/internal/core/domain"
	"github.com/custodia-labs/domainrag/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// Providers holds the AI services built from one configuration.
type Providers struct {
	Embedding driven.EmbeddingService
	LLM       *retry.LLMService
}

// Close releases all resources held by Providers.
func (p *Providers) Close() {
	if p.Embedding != nil {
		p.Embedding.Close()
	}
	if p.LLM != nil {
		p.LLM.Close()
	}
}

// Ping checks both providers and joins their failures.
func (p *Providers) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	var errs []error
	if p.Embedding != nil {
		if err := p.Embedding.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err))
		}
	}
	if p.LLM != nil {
		if err := p.LLM.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err))
		}
	}
	return errors.Join(errs...)
}

// NewProviders creates the embedding service and the retrying LLM service.
func NewProviders(cfg domain.AppConfig, logger *log.Logger) (*Providers, error) {
	emb, err := NewEmbeddingService(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	llm, err := NewLLMService(cfg.LLM, logger)
	if err != nil {
		emb.Close()
		return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}
	return &Providers{Embedding: emb, LLM: llm}, nil
}

// NewEmbeddingService creates the embedding service for the configured provider.
func NewEmbeddingService(cfg domain.EmbeddingConfig) (driven.EmbeddingService, error) {
	switch cfg.Provider {
	case domain.AIProviderOllama:
		return createOllamaEmbedding(cfg), nil

	case domain.AIProviderOpenAI:
		return createOpenAIEmbedding(cfg)

	case domain.AIProviderHuggingFace:
		return nil, fmt.Errorf("%w: huggingface does not provide embeddings, use ollama or openai", domain.ErrInvalidConfig)

	default:
		return nil, fmt.Errorf("%w: unsupported embedding provider: %s", domain.ErrInvalidConfig, cfg.Provider)
	}
}

// NewLLMService creates the LLM service for the configured provider,
// wrapped with retries.
func NewLLMService(cfg domain.LLMConfig, logger *log.Logger) (*retry.LLMService, error) {
	var (
		svc driven.LLMService
		err error
	)
	switch cfg.Provider {
	case domain.AIProviderOllama:
		svc = ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.ModelRepoID,
			Timeout: cfg.Timeout(),
		})

	case domain.AIProviderOpenAI:
		svc, err = openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.ModelRepoID,
			Timeout: cfg.Timeout(),
		})

	case domain.AIProviderHuggingFace:
		token := cfg.APIKey
		if token == "" {
			token = os.Getenv(hfllm.TokenEnv)
		}
		svc, err = hfllm.NewLLMService(hfllm.LLMConfig{
			APIToken: token,
			BaseURL:  cfg.BaseURL,
			Model:    cfg.ModelRepoID,
			Timeout:  cfg.Timeout(),
		})

	default:
		return nil, fmt.Errorf("%w: unsupported LLM provider: %s", domain.ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return retry.New(svc, retry.ConfigFrom(cfg), logger), nil
}

func embeddingDimensions(cfg domain.EmbeddingConfig) int {
	if cfg.Dimensions > 0 {
		return cfg.Dimensions
	}
	return domain.EmbeddingDimensions()[cfg.ModelName]
}

// createOllamaEmbedding creates an Ollama embedding service.
func createOllamaEmbedding(cfg domain.EmbeddingConfig) driven.EmbeddingService {
	dimensions := embeddingDimensions(cfg)
	if dimensions == 0 {
		dimensions = ollamaembed.DefaultDimensions
	}

	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:    cfg.BaseURL,
		Model:      cfg.ModelName,
		Dimensions: dimensions,
		BatchSize:  cfg.BatchSize,
	})
}

// createOpenAIEmbedding creates an OpenAI embedding service.
func createOpenAIEmbedding(cfg domain.EmbeddingConfig) (driven.EmbeddingService, error) {
	return openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.ModelName,
		Dimensions: embeddingDimensions(cfg),
		BatchSize:  cfg.BatchSize,
	})
}
