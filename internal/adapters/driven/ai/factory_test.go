package ai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/domainrag/internal/core/domain"
)

func TestProviders_CloseWithNilServices(t *testing.T) {
	p := &Providers{}
	// Should not panic
	p.Close()
	assert.NoError(t, p.Ping(context.Background()))
}

func TestNewEmbeddingService(t *testing.T) {
	tests := []struct {
		name    string
		cfg     domain.EmbeddingConfig
		wantDim int
		wantErr bool
	}{
		{
			name:    "ollama known model",
			cfg:     domain.EmbeddingConfig{Provider: domain.AIProviderOllama, ModelName: "nomic-embed-text"},
			wantDim: 768,
		},
		{
			name:    "ollama unknown model falls back",
			cfg:     domain.EmbeddingConfig{Provider: domain.AIProviderOllama, ModelName: "custom"},
			wantDim: 384,
		},
		{
			name:    "explicit dimensions win",
			cfg:     domain.EmbeddingConfig{Provider: domain.AIProviderOllama, ModelName: "all-minilm", Dimensions: 128},
			wantDim: 128,
		},
		{
			name:    "openai",
			cfg:     domain.EmbeddingConfig{Provider: domain.AIProviderOpenAI, ModelName: "text-embedding-3-large", APIKey: "sk"},
			wantDim: 3072,
		},
		{
			name:    "openai without key",
			cfg:     domain.EmbeddingConfig{Provider: domain.AIProviderOpenAI, ModelName: "text-embedding-3-small"},
			wantErr: true,
		},
		{
			name:    "huggingface has no embeddings",
			cfg:     domain.EmbeddingConfig{Provider: domain.AIProviderHuggingFace},
			wantErr: true,
		},
		{
			name:    "unknown provider",
			cfg:     domain.EmbeddingConfig{Provider: "nope"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewEmbeddingService(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDim, svc.Dimensions())
		})
	}
}

func TestNewLLMService(t *testing.T) {
	base := domain.DefaultAppConfig().LLM

	t.Run("ollama", func(t *testing.T) {
		svc, err := NewLLMService(base, log.New(io.Discard))
		require.NoError(t, err)
		assert.Equal(t, "llama3.2", svc.ModelName())
	})

	t.Run("openai requires key", func(t *testing.T) {
		cfg := base
		cfg.Provider = domain.AIProviderOpenAI
		_, err := NewLLMService(cfg, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	})

	t.Run("huggingface reads token from environment", func(t *testing.T) {
		t.Setenv("HUGGINGFACE_API_TOKEN", "hf_env")
		cfg := base
		cfg.Provider = domain.AIProviderHuggingFace
		cfg.ModelRepoID = "mistralai/Mistral-7B-Instruct-v0.2"
		svc, err := NewLLMService(cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, cfg.ModelRepoID, svc.ModelName())
	})

	t.Run("huggingface without token", func(t *testing.T) {
		t.Setenv("HUGGINGFACE_API_TOKEN", "")
		cfg := base
		cfg.Provider = domain.AIProviderHuggingFace
		_, err := NewLLMService(cfg, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	})
}

func TestProviders_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := domain.DefaultAppConfig()
	cfg.Embedding.BaseURL = server.URL
	cfg.LLM.BaseURL = server.URL

	p, err := NewProviders(cfg, nil)
	require.NoError(t, err)
	defer p.Close()
	assert.NoError(t, p.Ping(context.Background()))

	server.Close()
	err = p.Ping(context.Background())
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}
