package services

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/charmbracelet/log"

	"github.com/custodia-labs/domainrag/internal/core/domain"
	"github.com/custodia-labs/domainrag/internal/core/ports/driven"
)

// discardLogger is used when a constructor receives a nil logger.
func discardLogger() *log.Logger {
	return log.New(io.Discard)
}

// indexSpec addresses the vector index of d.
func indexSpec(d *domain.KnowledgeDomain, cfg *domain.DomainConfig) driven.IndexSpec {
	spec := driven.IndexSpec{
		Path: d.VectorStorePath,
		Dim:  d.EmbeddingsDimension,
		Type: domain.IndexFlatL2,
	}
	if cfg != nil && cfg.IndexType.IsValid() {
		spec.Type = cfg.IndexType
	}
	return spec
}

// populated reports whether the domain database file exists and is non-empty.
func populated(d *domain.KnowledgeDomain) bool {
	info, err := os.Stat(d.DBPath)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// normalizeVectors scales each vector to unit length in place.
// Zero vectors are left unchanged.
func normalizeVectors(vectors [][]float32) {
	for _, v := range vectors {
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		if sum == 0 {
			continue
		}
		inv := 1 / math.Sqrt(sum)
		for i := range v {
			v[i] = float32(float64(v[i]) * inv)
		}
	}
}

// embedTexts embeds texts with one vector per input.
func embedTexts(ctx context.Context, embedder driven.EmbeddingService, texts []string, normalize bool) ([][]float32, error) {
	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}
	if normalize {
		normalizeVectors(vectors)
	}
	return vectors, nil
}

// defaultBatchSize applies when embedding.batch_size is unset.
const defaultBatchSize = 32

// embedInBatches embeds texts with at most size texts per provider call.
func embedInBatches(ctx context.Context, embedder driven.EmbeddingService, texts []string, size int, normalize bool) ([][]float32, error) {
	if size <= 0 {
		size = defaultBatchSize
	}
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		batch, err := embedTexts(ctx, embedder, texts[start:end], normalize)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// generateOptions maps the configured generation parameters onto a request.
func generateOptions(cfg domain.LLMConfig) driven.GenerateOptions {
	return driven.GenerateOptions{
		MaxTokens:         cfg.MaxNewTokens,
		Temperature:       cfg.Temperature,
		TopP:              cfg.TopP,
		TopK:              cfg.TopK,
		RepetitionPenalty: cfg.RepetitionPenalty,
	}
}
