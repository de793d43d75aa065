package services

import (
	"context"
	"database/sql"
	"errors"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/domainrag/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/domainrag/internal/adapters/driven/vector/flat"
	"github.com/custodia-labs/domainrag/internal/chunking"
	"github.com/custodia-labs/domainrag/internal/core/domain"
	"github.com/custodia-labs/domainrag/internal/core/ports/driven"
	"github.com/custodia-labs/domainrag/internal/extractors"
	"github.com/custodia-labs/domainrag/internal/extractors/plaintext"
	"github.com/custodia-labs/domainrag/internal/textnorm"
)

// --- Mock implementations ---

const fakeDim = 16

// fakeEmbedder hashes words into a small bag-of-words vector so that texts
// sharing words land close together.
type fakeEmbedder struct {
	mu      sync.Mutex
	poison  string
	batches []int
}

func newFakeEmbedder() *fakeEmbedder { return &fakeEmbedder{} }

func (e *fakeEmbedder) vector(text string) []float32 {
	v := make([]float32, fakeDim)
	v[0] = 0.01
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if w == "" {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%fakeDim]++
	}
	return v
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (e *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batches = append(e.batches, len(texts))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if e.poison != "" && strings.Contains(t, e.poison) {
			return nil, errors.New("embedder offline")
		}
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *fakeEmbedder) Dimensions() int            { return fakeDim }
func (e *fakeEmbedder) ModelName() string          { return "fake-embed" }
func (e *fakeEmbedder) Ping(context.Context) error { return nil }
func (e *fakeEmbedder) Close() error               { return nil }

func (e *fakeEmbedder) setPoison(s string) {
	e.mu.Lock()
	e.poison = s
	e.mu.Unlock()
}

// takeBatches returns the sizes of the calls made since the last take.
func (e *fakeEmbedder) takeBatches() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	b := e.batches
	e.batches = nil
	return b
}

var _ driven.EmbeddingService = (*fakeEmbedder)(nil)

// fakeLLM answers routing prompts with selection and everything else with
// answer.
type fakeLLM struct {
	mu        sync.Mutex
	selection string
	answer    string
	err       error
	pingErr   error
	prompts   []string
}

func (l *fakeLLM) Generate(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prompts = append(l.prompts, prompt)
	if l.err != nil {
		return "", l.err
	}
	if strings.Contains(prompt, "You route questions") {
		return l.selection, nil
	}
	if l.answer == "" {
		return "an answer", nil
	}
	return l.answer, nil
}

func (l *fakeLLM) lastPrompt() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.prompts) == 0 {
		return ""
	}
	return l.prompts[len(l.prompts)-1]
}

func (l *fakeLLM) ModelName() string          { return "fake-llm" }
func (l *fakeLLM) Ping(context.Context) error { return l.pingErr }
func (l *fakeLLM) Close() error               { return nil }

var _ driven.LLMService = (*fakeLLM)(nil)

// failingOpener opens real domain stores whose transactions fail to write
// embedding rows.
type failingOpener struct {
	driven.DomainStoreOpener
}

func (o failingOpener) Open(ctx context.Context, path string) (driven.DomainStore, error) {
	store, err := o.DomainStoreOpener.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return failingStore{DomainStore: store}, nil
}

type failingStore struct {
	driven.DomainStore
}

func (s failingStore) Begin(ctx context.Context) (driven.DomainTx, error) {
	tx, err := s.DomainStore.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return failingTx{DomainTx: tx}, nil
}

type failingTx struct {
	driven.DomainTx
}

func (failingTx) InsertEmbeddings(context.Context, []domain.Embedding) error {
	return errors.New("disk full")
}

// onceFailingOpener fails the embedding insert of the first transaction only.
type onceFailingOpener struct {
	driven.DomainStoreOpener
	failed *bool
}

func (o onceFailingOpener) Open(ctx context.Context, path string) (driven.DomainStore, error) {
	store, err := o.DomainStoreOpener.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return onceFailingStore{DomainStore: store, failed: o.failed}, nil
}

type onceFailingStore struct {
	driven.DomainStore
	failed *bool
}

func (s onceFailingStore) Begin(ctx context.Context) (driven.DomainTx, error) {
	tx, err := s.DomainStore.Begin(ctx)
	if err != nil || *s.failed {
		return tx, err
	}
	*s.failed = true
	return failingTx{DomainTx: tx}, nil
}

// stuckVectors refuses the first removes it receives.
type stuckVectors struct {
	driven.VectorStore
	failRemoves int
}

func (v *stuckVectors) Remove(ctx context.Context, spec driven.IndexSpec, ids []int64) (int, error) {
	if v.failRemoves > 0 {
		v.failRemoves--
		return 0, errors.New("index locked")
	}
	return v.VectorStore.Remove(ctx, spec, ids)
}

// failingControl is a control store whose row rename or delete fails.
type failingControl struct {
	driven.ControlStore
	renameErr error
	deleteErr error
}

func (c failingControl) RenameDomain(ctx context.Context, id int64, name string, paths domain.DomainPaths) error {
	if c.renameErr != nil {
		return c.renameErr
	}
	return c.ControlStore.RenameDomain(ctx, id, name, paths)
}

func (c failingControl) DeleteDomain(ctx context.Context, id int64) error {
	if c.deleteErr != nil {
		return c.deleteErr
	}
	return c.ControlStore.DeleteDomain(ctx, id)
}

// --- Test harness ---

// harness wires the services over real SQLite, flat index and chunking
// adapters with fake model providers.
type harness struct {
	cfg        domain.AppConfig
	control    *sqlite.ControlStore
	vectors    *flat.Store
	embedder   *fakeEmbedder
	llm        *fakeLLM
	normaliser *textnorm.Normaliser
	chunking   *chunking.Manager

	domains    *DomainService
	reconciler *ReconcileService
	ingestion  *IngestionService
	query      *QueryService
}

func testConfig(base string) domain.AppConfig {
	cfg := domain.DefaultAppConfig()
	cfg.System.StorageBasePath = filepath.Join(base, "domains")
	cfg.System.ControlDBPath = filepath.Join(base, "control.db")
	cfg.Embedding.ModelName = "fake-embed"
	cfg.Embedding.BatchSize = 4
	cfg.Ingestion.ChunkSize = 120
	cfg.Ingestion.ChunkOverlap = 10
	cfg.Ingestion.KeywordsTopN = 0
	cfg.Query.RetrievalK = 3
	return cfg
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	cfg := testConfig(t.TempDir())

	control, err := sqlite.NewControlStore(ctx, cfg.System.ControlDBPath)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, control.Close()) })

	h := &harness{
		cfg:        cfg,
		control:    control,
		vectors:    flat.NewStore(),
		embedder:   newFakeEmbedder(),
		llm:        &fakeLLM{},
		normaliser: textnorm.New(cfg.TextNormalizer),
	}
	h.chunking = chunking.NewDefaultManager(chunking.Deps{Embedder: h.embedder, BatchSize: cfg.Embedding.BatchSize}, 0)
	h.wire(control, sqlite.DomainOpener{})
	return h
}

// wire rebuilds the services over the given control store and opener.
func (h *harness) wire(control driven.ControlStore, opener driven.DomainStoreOpener) {
	h.domains = NewDomainService(control, opener, h.vectors, h.embedder, h.cfg, nil)
	h.reconciler = NewReconcileService(control, opener, h.vectors, h.embedder, h.normaliser, h.cfg.Embedding.BatchSize, nil)
	h.ingestion = NewIngestionService(IngestionDeps{
		Control:    control,
		Opener:     opener,
		Vectors:    h.vectors,
		Extractor:  extractors.NewRegistry(plaintext.New()),
		Chunking:   h.chunking,
		Embedder:   h.embedder,
		Normaliser: h.normaliser,
		Reconciler: h.reconciler,
	}, h.cfg, nil)
	h.query = NewQueryService(QueryDeps{
		Control:    control,
		Opener:     opener,
		Vectors:    h.vectors,
		Embedder:   h.embedder,
		LLM:        h.llm,
		Normaliser: h.normaliser,
	}, h.cfg, nil)
}

func (h *harness) createDomain(t *testing.T, name, description, keywords string) *domain.KnowledgeDomain {
	t.Helper()
	ctx := context.Background()
	_, err := h.domains.Create(ctx, name, description, keywords, nil)
	require.NoError(t, err)
	d, err := h.domains.Get(ctx, name)
	require.NoError(t, err)
	return d
}

func (h *harness) ingest(t *testing.T, name string, files map[string]string) *domain.IngestReport {
	t.Helper()
	report, err := h.ingestion.ProcessDirectory(context.Background(), writeFiles(t, files), name)
	require.NoError(t, err)
	return report
}

func (h *harness) indexIDs(t *testing.T, name string) []int64 {
	t.Helper()
	ctx := context.Background()
	d, err := h.domains.Get(ctx, name)
	require.NoError(t, err)
	cfg, err := h.domains.Config(ctx, name)
	require.NoError(t, err)
	ids, err := h.vectors.IDs(ctx, indexSpec(d, cfg))
	require.NoError(t, err)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// assertConsistent checks that every embedding row maps its chunk id to the
// same index id and that the index holds exactly those ids.
func (h *harness) assertConsistent(t *testing.T, name string) {
	t.Helper()
	ctx := context.Background()
	d, err := h.domains.Get(ctx, name)
	require.NoError(t, err)

	store, err := sqlite.OpenDomainStore(ctx, d.DBPath)
	require.NoError(t, err)
	defer store.Close()

	rows, err := store.ListEmbeddings(ctx)
	require.NoError(t, err)
	rowIDs := make([]int64, len(rows))
	for i, r := range rows {
		assert.Equal(t, r.ChunkID, r.VectorIndexID, "embedding row maps chunk to a different index id")
		assert.Equal(t, d.VectorStorePath, r.VectorIndexPath)
		rowIDs[i] = r.VectorIndexID
	}
	sort.Slice(rowIDs, func(i, j int) bool { return rowIDs[i] < rowIDs[j] })

	assert.Equal(t, rowIDs, h.indexIDs(t, name))
}

// countRows queries a domain database directly.
func countRows(t *testing.T, dbPath, table string) int {
	t.Helper()
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

// writeFiles writes files into a fresh directory and returns it.
func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0600))
	}
	return dir
}

var financeFiles = map[string]string{
	"q3.txt": "Quarterly revenue grew to 4.2 million dollars in Q3. " +
		"Operating margin improved as revenue outpaced costs.",
	"budget.txt": "The annual budget allocates funds to marketing, payroll and infrastructure. " +
		"Budget reviews happen every quarter.",
}

var hrFiles = map[string]string{
	"leave.txt": "Employees accrue vacation leave monthly. Parental leave lasts sixteen weeks.",
}
