package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/custodia-labs/domainrag/internal/core/domain"
	"github.com/custodia-labs/domainrag/internal/core/ports/driven"
	"github.com/custodia-labs/domainrag/internal/core/ports/driving"
)

// Ensure QueryService implements the interface.
var (
	_ driving.QueryService   = (*QueryService)(nil)
	_ driving.ConfigReloader = (*QueryService)(nil)
)

// contextSeparator joins retrieved chunks in the answer prompt.
const contextSeparator = "\n\n---\n\n"

// selectionOptions keeps domain selection short and deterministic.
var selectionOptions = driven.GenerateOptions{MaxTokens: 100, Temperature: 0.1}

// QueryService answers questions from the knowledge stored in domains.
type QueryService struct {
	control    driven.ControlStore
	opener     driven.DomainStoreOpener
	vectors    driven.VectorStore
	embedder   driven.EmbeddingService
	llm        driven.LLMService
	normaliser driven.TextNormaliser
	logger     *log.Logger

	mu  sync.RWMutex
	cfg domain.AppConfig
}

// QueryDeps groups the collaborators of the query service.
type QueryDeps struct {
	Control    driven.ControlStore
	Opener     driven.DomainStoreOpener
	Vectors    driven.VectorStore
	Embedder   driven.EmbeddingService
	LLM        driven.LLMService
	Normaliser driven.TextNormaliser
}

// NewQueryService creates a query orchestrator.
func NewQueryService(deps QueryDeps, cfg domain.AppConfig, logger *log.Logger) *QueryService {
	if logger == nil {
		logger = discardLogger()
	}
	return &QueryService{
		control:    deps.Control,
		opener:     deps.Opener,
		vectors:    deps.Vectors,
		embedder:   deps.Embedder,
		llm:        deps.LLM,
		normaliser: deps.Normaliser,
		logger:     logger,
		cfg:        cfg,
	}
}

// UpdateConfig applies reloaded retrieval and generation settings.
func (s *QueryService) UpdateConfig(cfg domain.AppConfig) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *QueryService) config() domain.AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Query answers a question. With no domain names the LLM selects among
// populated domains.
func (s *QueryService) Query(ctx context.Context, question string, domainNames []string) (*domain.QueryResult, error) {
	start := time.Now()
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", domain.ErrInvalidInput)
	}
	cfg := s.config()

	metrics := domain.QueryMetrics{
		RetrievalK: cfg.Query.RetrievalK,
		Model:      s.llm.ModelName(),
	}

	selected, auto, err := s.selectDomains(ctx, question, domainNames, &metrics)
	if err != nil {
		return nil, err
	}

	retrievalStart := time.Now()
	chunks, hits, err := s.retrieve(ctx, question, selected, cfg.Query.RetrievalK)
	if err != nil {
		return nil, err
	}
	metrics.RetrievalDuration = time.Since(retrievalStart)
	metrics.AutoSelected = auto
	metrics.HitsPerDomain = hits
	metrics.TotalChunks = len(chunks)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: searched %s", domain.ErrNoContext, strings.Join(metrics.SelectedDomains, ", "))
	}

	prompt := BuildAnswerPrompt(cfg.LLM.PromptTemplate, question, chunks)
	genStart := time.Now()
	answer, err := s.llm.Generate(ctx, prompt, generateOptions(cfg.LLM))
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}
	metrics.GenerationDuration = time.Since(genStart)
	metrics.TotalDuration = time.Since(start)

	s.logger.Info("query answered",
		"domains", strings.Join(metrics.SelectedDomains, ","), "auto", auto,
		"chunks", metrics.TotalChunks, "duration", metrics.TotalDuration.Round(time.Millisecond))

	return &domain.QueryResult{
		Question: question,
		Answer:   strings.TrimSpace(answer),
		Chunks:   chunks,
		Metrics:  metrics,
	}, nil
}

// Retrieve runs selection and vector search without answer generation.
func (s *QueryService) Retrieve(
	ctx context.Context, question string, domainNames []string, k int,
) ([]domain.RetrievedChunk, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", domain.ErrInvalidInput)
	}
	if k <= 0 {
		k = s.config().Query.RetrievalK
	}

	var metrics domain.QueryMetrics
	selected, _, err := s.selectDomains(ctx, question, domainNames, &metrics)
	if err != nil {
		return nil, err
	}
	chunks, _, err := s.retrieve(ctx, question, selected, k)
	return chunks, err
}

// selectDomains resolves explicit names, or asks the LLM to choose among
// the populated domains when none are given.
func (s *QueryService) selectDomains(
	ctx context.Context, question string, names []string, metrics *domain.QueryMetrics,
) ([]domain.KnowledgeDomain, bool, error) {
	start := time.Now()
	defer func() { metrics.SelectionDuration = time.Since(start) }()

	if len(names) > 0 {
		selected := make([]domain.KnowledgeDomain, 0, len(names))
		seen := make(map[int64]bool, len(names))
		for _, name := range names {
			d, err := s.control.GetDomain(ctx, strings.TrimSpace(name))
			if err != nil {
				return nil, false, err
			}
			if seen[d.ID] {
				continue
			}
			seen[d.ID] = true
			selected = append(selected, *d)
			metrics.SelectedDomains = append(metrics.SelectedDomains, d.Name)
		}
		return selected, false, nil
	}

	all, err := s.control.ListDomains(ctx)
	if err != nil {
		return nil, false, err
	}
	var candidates []domain.KnowledgeDomain
	for i := range all {
		if populated(&all[i]) {
			candidates = append(candidates, all[i])
		}
	}
	if len(candidates) == 0 {
		return nil, true, domain.ErrNoPopulatedDomains
	}

	response, err := s.llm.Generate(ctx, BuildSelectionPrompt(question, candidates), selectionOptions)
	if err != nil {
		return nil, true, fmt.Errorf("selecting domains: %w", err)
	}
	selected := ParseDomainSelection(response, candidates, s.logger)
	if len(selected) == 0 {
		return nil, true, fmt.Errorf("%w: model answered %q", domain.ErrNoDomainSelected, strings.TrimSpace(response))
	}
	for _, d := range selected {
		metrics.SelectedDomains = append(metrics.SelectedDomains, d.Name)
	}
	s.logger.Debug("domains selected", "domains", strings.Join(metrics.SelectedDomains, ","))
	return selected, true, nil
}

// retrieve searches each domain in order with one question embedding.
func (s *QueryService) retrieve(
	ctx context.Context, question string, domains []domain.KnowledgeDomain, k int,
) ([]domain.RetrievedChunk, map[string]int, error) {
	hits := make(map[string]int, len(domains))
	var (
		raw     []float32
		results []domain.RetrievedChunk
	)

	for i := range domains {
		d := &domains[i]
		hits[d.Name] = 0
		logger := s.logger.With("domain", d.Name)
		if !populated(d) {
			logger.Warn("domain has no data, skipping")
			continue
		}
		cfg, err := s.control.GetDomainConfig(ctx, d.ID)
		if err != nil {
			return nil, nil, err
		}

		if raw == nil {
			vectors, err := embedTexts(ctx, s.embedder, []string{s.normaliser.Normalize(question)}, false)
			if err != nil {
				return nil, nil, fmt.Errorf("embedding question: %w", err)
			}
			raw = vectors[0]
		}
		query := raw
		if cfg.NormalizeEmbeddings {
			query = append([]float32(nil), raw...)
			normalizeVectors([][]float32{query})
		}

		found, err := s.searchDomain(ctx, d, cfg, query, k, logger)
		if err != nil {
			return nil, nil, err
		}
		hits[d.Name] = len(found)
		results = append(results, found...)
	}
	return results, hits, nil
}

func (s *QueryService) searchDomain(
	ctx context.Context,
	d *domain.KnowledgeDomain,
	cfg *domain.DomainConfig,
	query []float32,
	k int,
	logger *log.Logger,
) ([]domain.RetrievedChunk, error) {
	vectorHits, err := s.vectors.Search(ctx, indexSpec(d, cfg), query, k)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", d.Name, err)
	}
	if len(vectorHits) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(vectorHits))
	for i, h := range vectorHits {
		ids[i] = h.ID
	}

	store, err := s.opener.Open(ctx, d.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening domain database: %w", err)
	}
	defer store.Close()

	chunks, err := store.GetChunksByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]domain.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	results := make([]domain.RetrievedChunk, 0, len(vectorHits))
	for _, h := range vectorHits {
		c, ok := byID[h.ID]
		if !ok {
			logger.Warn("vector id has no chunk row", "id", h.ID)
			continue
		}
		results = append(results, domain.RetrievedChunk{
			Domain:   d.Name,
			ChunkID:  c.ID,
			Content:  c.Content,
			Metadata: c.Metadata,
			Distance: h.Distance,
		})
	}
	return results, nil
}

// Health reports provider availability and domain counts.
func (s *QueryService) Health(ctx context.Context) *domain.HealthReport {
	report := &domain.HealthReport{
		LLMModel:       s.llm.ModelName(),
		EmbeddingModel: s.embedder.ModelName(),
		CheckedAt:      time.Now(),
	}
	if err := s.llm.Ping(ctx); err != nil {
		report.LLMError = err.Error()
	}
	if err := s.embedder.Ping(ctx); err != nil {
		report.EmbeddingError = err.Error()
	}
	domains, err := s.control.ListDomains(ctx)
	if err != nil {
		s.logger.Warn("listing domains for health check failed", "err", err)
		return report
	}
	report.Domains = len(domains)
	for i := range domains {
		if populated(&domains[i]) {
			report.PopulatedDomains++
		}
	}
	return report
}

// BuildSelectionPrompt lists the candidate domains and asks the model for
// the relevant names separated by '|'.
func BuildSelectionPrompt(question string, candidates []domain.KnowledgeDomain) string {
	var b strings.Builder
	b.WriteString("You route questions to knowledge domains.\n")
	b.WriteString("Available domains:\n")
	for _, d := range candidates {
		fmt.Fprintf(&b, "- %s: %s (keywords: %s)\n", d.Name, d.Description, d.Keywords)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nReply with only the names of the relevant domains, separated by '|'. ")
	b.WriteString("Use the names exactly as listed and add nothing else.\n")
	return b.String()
}

// ParseDomainSelection maps a selection response onto candidates. Tokens are
// matched case-insensitively; unknown tokens are dropped and duplicates removed.
func ParseDomainSelection(response string, candidates []domain.KnowledgeDomain, logger *log.Logger) []domain.KnowledgeDomain {
	byName := make(map[string]domain.KnowledgeDomain, len(candidates))
	for _, d := range candidates {
		byName[strings.ToLower(d.Name)] = d
	}

	var selected []domain.KnowledgeDomain
	seen := make(map[string]bool)
	for _, token := range strings.Split(response, "|") {
		name := strings.ToLower(strings.TrimSpace(token))
		d, ok := byName[name]
		if !ok {
			name = strings.ToLower(cleanToken(token))
			d, ok = byName[name]
		}
		if name == "" {
			continue
		}
		if !ok {
			if logger != nil {
				logger.Debug("ignoring unknown domain in selection", "token", token)
			}
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		selected = append(selected, d)
	}
	return selected
}

// cleanToken trims whitespace, quotes, bullets and trailing punctuation.
func cleanToken(token string) string {
	return strings.Trim(strings.TrimSpace(token), " \t\r\n\"'`*-•.,;:")
}

// BuildAnswerPrompt substitutes the joined chunks and the question into template.
func BuildAnswerPrompt(template, question string, chunks []domain.RetrievedChunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	r := strings.NewReplacer("{context}", strings.Join(parts, contextSeparator), "{query}", question)
	return r.Replace(template)
}
