package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/domainrag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/domainrag/internal/core/domain"
	"github.com/custodia-labs/domainrag/internal/core/ports/driving"
)

// mockDomainService keeps domains in a map.
type mockDomainService struct {
	domains   map[string]*domain.KnowledgeDomain
	configs   map[string]*domain.DomainConfig
	docs      map[string][]domain.DocumentFile
	populated map[string]bool

	lastCreateCfg *domain.DomainConfig
	lastUpdate    map[string]any
	deletedDocs   []int64
	err           error
}

var _ driving.DomainService = (*mockDomainService)(nil)

func newMockDomainService() *mockDomainService {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	return &mockDomainService{
		domains: map[string]*domain.KnowledgeDomain{
			"Finance": {
				ID: 1, Name: "Finance", Description: "Budgets and revenue", Keywords: "revenue,budget",
				TotalDocuments: 2, DBPath: "/data/finance/finance.db",
				VectorStorePath: "/data/finance/vector_store/finance.idx", EmbeddingsDimension: 384,
			},
			"HR": {ID: 2, Name: "HR", Description: "People", EmbeddingsDimension: 384},
		},
		configs: map[string]*domain.DomainConfig{
			"Finance": func() *domain.DomainConfig { c := domain.DefaultDomainConfig(); return &c }(),
			"HR":      func() *domain.DomainConfig { c := domain.DefaultDomainConfig(); return &c }(),
		},
		docs: map[string][]domain.DocumentFile{
			"Finance": {
				{ID: 1, Name: "q3.txt", Path: "/in/q3.txt", TotalPages: 1, CreatedAt: now},
				{ID: 2, Name: "budget.pdf", Path: "/in/budget.pdf", TotalPages: 4, CreatedAt: now},
			},
		},
		populated: map[string]bool{"Finance": true},
	}
}

func (m *mockDomainService) get(name string) (*domain.KnowledgeDomain, error) {
	d, ok := m.domains[name]
	if !ok {
		return nil, fmt.Errorf("domain %q: %w", name, domain.ErrNotFound)
	}
	return d, nil
}

func (m *mockDomainService) Create(
	_ context.Context, name, description, keywords string, cfg *domain.DomainConfig,
) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	if _, ok := m.domains[name]; ok {
		return 0, fmt.Errorf("domain %q: %w", name, domain.ErrAlreadyExists)
	}
	m.lastCreateCfg = cfg
	id := int64(len(m.domains) + 1)
	m.domains[name] = &domain.KnowledgeDomain{ID: id, Name: name, Description: description, Keywords: keywords}
	return id, nil
}

func (m *mockDomainService) Get(_ context.Context, name string) (*domain.KnowledgeDomain, error) {
	return m.get(name)
}

func (m *mockDomainService) List(_ context.Context) ([]domain.KnowledgeDomain, error) {
	if m.err != nil {
		return nil, m.err
	}
	names := make([]string, 0, len(m.domains))
	for name := range m.domains {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]domain.KnowledgeDomain, len(names))
	for i, name := range names {
		out[i] = *m.domains[name]
	}
	return out, nil
}

func (m *mockDomainService) Rename(_ context.Context, oldName, newName string) (*domain.DomainPaths, error) {
	if m.err != nil {
		return nil, m.err
	}
	d, err := m.get(oldName)
	if err != nil {
		return nil, err
	}
	delete(m.domains, oldName)
	d.Name = newName
	m.domains[newName] = d
	paths := domain.PathsFor("/data", newName)
	return &paths, nil
}

func (m *mockDomainService) Update(_ context.Context, name string, fields map[string]any) error {
	if _, err := m.get(name); err != nil {
		return err
	}
	m.lastUpdate = fields
	return nil
}

func (m *mockDomainService) Delete(_ context.Context, name string) error {
	if _, err := m.get(name); err != nil {
		return err
	}
	delete(m.domains, name)
	return nil
}

func (m *mockDomainService) Config(_ context.Context, name string) (*domain.DomainConfig, error) {
	cfg, ok := m.configs[name]
	if !ok {
		return nil, fmt.Errorf("config for %q: %w", name, domain.ErrNotFound)
	}
	return cfg, nil
}

func (m *mockDomainService) ListDocuments(_ context.Context, name string) ([]domain.DocumentFile, error) {
	if _, err := m.get(name); err != nil {
		return nil, err
	}
	return m.docs[name], nil
}

func (m *mockDomainService) DeleteDocument(_ context.Context, name string, documentID int64) error {
	if _, err := m.get(name); err != nil {
		return err
	}
	m.deletedDocs = append(m.deletedDocs, documentID)
	return nil
}

func (m *mockDomainService) IsPopulated(d *domain.KnowledgeDomain) bool {
	return m.populated[d.Name]
}

// mockIngestionService returns a fixed report.
type mockIngestionService struct {
	report  *domain.IngestReport
	err     error
	dir     string
	domain  string
	invoked bool
}

func (m *mockIngestionService) ProcessDirectory(_ context.Context, dir, domainName string) (*domain.IngestReport, error) {
	m.invoked = true
	m.dir = dir
	m.domain = domainName
	if m.err != nil {
		return nil, m.err
	}
	report := *m.report
	report.Domain = domainName
	report.Directory = dir
	return &report, nil
}

func sampleIngestReport() *domain.IngestReport {
	return &domain.IngestReport{
		RunID:          "run-1",
		Strategy:       domain.ChunkingRecursive,
		ChunkSize:      500,
		ChunkOverlap:   100,
		EmbeddingModel: "all-minilm",
		Dimension:      384,
		IndexType:      domain.IndexFlatL2,
		Total:          4,
		Processed:      2,
		Duplicate:      1,
		Failed:         1,
		Pages:          5,
		Chunks:         12,
		Embeddings:     12,
		AvgChunkSize:   412,
		Files: []domain.FileResult{
			{Name: "q3.txt", Status: domain.FileProcessed, Pages: 1, Chunks: 3},
			{Name: "budget.pdf", Status: domain.FileProcessed, Pages: 4, Chunks: 9},
			{Name: "copy.txt", Status: domain.FileDuplicate, DuplicateOf: "q3.txt"},
			{Name: "broken.pdf", Status: domain.FileFailed, Error: "pdftotext: exit status 1"},
		},
		Reconcile: &domain.ReconcileReport{Evicted: 2},
	}
}

// mockQueryService answers every question the same way.
type mockQueryService struct {
	result    *domain.QueryResult
	err       error
	health    *domain.HealthReport
	question  string
	domains   []string
	retrieveK int
}

func (m *mockQueryService) Query(_ context.Context, question string, domainNames []string) (*domain.QueryResult, error) {
	m.question = question
	m.domains = domainNames
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockQueryService) Retrieve(
	_ context.Context, question string, domainNames []string, k int,
) ([]domain.RetrievedChunk, error) {
	m.question = question
	m.domains = domainNames
	m.retrieveK = k
	if m.err != nil {
		return nil, m.err
	}
	return m.result.Chunks, nil
}

func (m *mockQueryService) Health(_ context.Context) *domain.HealthReport {
	return m.health
}

func sampleQueryResult() *domain.QueryResult {
	return &domain.QueryResult{
		Question: "What was Q3 revenue?",
		Answer:   "Q3 revenue was 4.2 million.",
		Chunks: []domain.RetrievedChunk{
			{Domain: "Finance", ChunkID: 7, Content: "Revenue in Q3 reached 4.2 million.", Distance: 0.12},
		},
		Metrics: domain.QueryMetrics{
			SelectedDomains: []string{"Finance"},
			AutoSelected:    true,
			HitsPerDomain:   map[string]int{"Finance": 1},
			TotalChunks:     1,
			RetrievalK:      5,
			Model:           "llama3.2",
		},
	}
}

// mockReconciler reports a clean index unless told otherwise.
type mockReconciler struct {
	reports map[string]*domain.ReconcileReport
	calls   []string
}

func (m *mockReconciler) Reconcile(_ context.Context, name string) (*domain.ReconcileReport, error) {
	m.calls = append(m.calls, name)
	if r, ok := m.reports[name]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("domain %q: %w", name, domain.ErrNotFound)
}

// testServices bundles the mocks installed by setupTestServices.
type testServices struct {
	domains    *mockDomainService
	ingestion  *mockIngestionService
	query      *mockQueryService
	reconciler *mockReconciler
	config     *memory.ConfigStore
}

var mocks *testServices

// setupTestServices installs mock services and resets global flags.
// The returned function restores an unconfigured CLI.
func setupTestServices() func() {
	mocks = &testServices{
		domains:   newMockDomainService(),
		ingestion: &mockIngestionService{report: sampleIngestReport()},
		query: &mockQueryService{
			result: sampleQueryResult(),
			health: &domain.HealthReport{LLMModel: "llama3.2", EmbeddingModel: "all-minilm", Domains: 2, PopulatedDomains: 1},
		},
		reconciler: &mockReconciler{reports: map[string]*domain.ReconcileReport{
			"Finance": {Domain: "Finance", IndexCount: 12, RowCount: 12},
			"HR":      {Domain: "HR", IndexCount: 3, RowCount: 2, Evicted: 1},
		}},
		config: memory.NewConfigStore(domain.DefaultAppConfig()),
	}

	SetServices(&Services{
		Domains:    mocks.domains,
		Ingestion:  mocks.ingestion,
		Query:      mocks.query,
		Reconciler: mocks.reconciler,
		Config:     mocks.config,
		AppConfig:  domain.DefaultAppConfig(),
	})
	resetFlags()

	return func() {
		SetServices(&Services{AppConfig: domain.DefaultAppConfig()})
		resetFlags()
		mocks = nil
	}
}

// resetFlags clears flag values left over from a previous Execute.
func resetFlags() {
	configPath = ""
	debugLogging = false
	ingestDir = ""
	queryText = ""
	domainNames = nil
	createDescription, createKeywords, createStrategy, createIndexType = "", "", "", ""
	createChunkSize, createOverlap = 0, -1
	updateFields = nil
	deleteYes = false
	ingestVerbose = false
	queryJSON, queryContext, queryMetrics = false, false, false

	unchange(rootCmd, "ingest", "query", "domain", "config", "debug")
	unchange(domainCreateCmd, "description", "keywords", "strategy", "chunk-size", "chunk-overlap", "index-type")
	unchange(domainUpdateCmd, "set")
	unchange(domainDeleteCmd, "yes")
	unchange(ingestCmd, "verbose")
	unchange(queryCmd, "json", "show-context", "metrics")
}

// unchange marks flags as not set so Changed checks start fresh.
func unchange(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if f := cmd.Flags().Lookup(name); f != nil {
			f.Changed = false
		}
		if f := cmd.PersistentFlags().Lookup(name); f != nil {
			f.Changed = false
		}
	}
}
