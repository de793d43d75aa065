package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/domainrag/internal/core/domain"
)

func TestQuery_AnswersFromExplicitDomain(t *testing.T) {
	h := newHarness(t)
	h.createDomain(t, "Finance", "Money matters", "revenue")
	h.ingest(t, "Finance", financeFiles)
	h.llm.answer = "Revenue was 4.2 million dollars."

	result, err := h.query.Query(context.Background(), "What was the revenue in Q3?", []string{"Finance"})
	require.NoError(t, err)

	assert.Equal(t, "Revenue was 4.2 million dollars.", result.Answer)
	assert.Equal(t, "What was the revenue in Q3?", result.Question)
	require.NotEmpty(t, result.Chunks)
	assert.LessOrEqual(t, len(result.Chunks), h.cfg.Query.RetrievalK)
	for _, c := range result.Chunks {
		assert.Equal(t, "Finance", c.Domain)
	}
	found := false
	for _, c := range result.Chunks {
		found = found || strings.Contains(c.Content, "4.2 million")
	}
	assert.True(t, found, "the Q3 chunk was not retrieved")

	assert.False(t, result.Metrics.AutoSelected)
	assert.Equal(t, []string{"Finance"}, result.Metrics.SelectedDomains)
	assert.Equal(t, len(result.Chunks), result.Metrics.TotalChunks)
	assert.Equal(t, len(result.Chunks), result.Metrics.HitsPerDomain["Finance"])
	assert.Equal(t, "fake-llm", result.Metrics.Model)

	// Explicit domains skip the routing prompt.
	require.Len(t, h.llm.prompts, 1)
	prompt := h.llm.lastPrompt()
	assert.Contains(t, prompt, "Question: What was the revenue in Q3?")
	assert.Contains(t, prompt, result.Chunks[0].Content)
	assert.NotContains(t, prompt, "{context}")
}

func TestQuery_IngestedContentIsRetrievable(t *testing.T) {
	h := newHarness(t)
	h.createDomain(t, "HR", "People", "")
	h.ingest(t, "HR", hrFiles)

	chunks, err := h.query.Retrieve(context.Background(), "How long is parental leave?", []string{"HR"}, 1)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Content, "Parental leave lasts sixteen weeks")
	assert.NotZero(t, chunks[0].ChunkID)
}

func TestQuery_AutoSelectsDomains(t *testing.T) {
	h := newHarness(t)
	h.createDomain(t, "Finance", "Money matters", "revenue,budget")
	h.createDomain(t, "HR", "People and policies", "leave")
	h.createDomain(t, "Marketing", "Campaigns", "ads")
	h.ingest(t, "Finance", financeFiles)
	h.ingest(t, "HR", hrFiles)
	h.llm.selection = "finance | HR | Marketing"

	result, err := h.query.Query(context.Background(), "What is the budget for leave?", nil)
	require.NoError(t, err)

	assert.True(t, result.Metrics.AutoSelected)
	assert.Equal(t, []string{"Finance", "HR"}, result.Metrics.SelectedDomains)
	assert.Contains(t, result.Metrics.HitsPerDomain, "Finance")
	assert.Contains(t, result.Metrics.HitsPerDomain, "HR")
	assert.NotContains(t, result.Metrics.HitsPerDomain, "Marketing")

	// Only populated domains are offered to the model.
	routing := h.llm.prompts[0]
	assert.Contains(t, routing, "- Finance: Money matters (keywords: revenue,budget)")
	assert.Contains(t, routing, "- HR: People and policies")
	assert.NotContains(t, routing, "Marketing")

	domains := map[string]bool{}
	for _, c := range result.Chunks {
		domains[c.Domain] = true
	}
	assert.True(t, domains["Finance"])
	assert.True(t, domains["HR"])
}

func TestQuery_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty question", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.query.Query(ctx, "   ", nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		_, err = h.query.Retrieve(ctx, "", nil, 3)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("no populated domains", func(t *testing.T) {
		h := newHarness(t)
		h.createDomain(t, "Finance", "", "")
		_, err := h.query.Query(ctx, "revenue?", nil)
		assert.ErrorIs(t, err, domain.ErrNoPopulatedDomains)
		assert.Empty(t, h.llm.prompts)
	})

	t.Run("model selects nothing usable", func(t *testing.T) {
		h := newHarness(t)
		h.createDomain(t, "Finance", "", "")
		h.ingest(t, "Finance", financeFiles)
		h.llm.selection = "Astronomy | none"
		_, err := h.query.Query(ctx, "revenue?", nil)
		assert.ErrorIs(t, err, domain.ErrNoDomainSelected)
	})

	t.Run("explicit domain without data", func(t *testing.T) {
		h := newHarness(t)
		h.createDomain(t, "Finance", "", "")
		_, err := h.query.Query(ctx, "revenue?", []string{"Finance"})
		assert.ErrorIs(t, err, domain.ErrNoContext)
	})

	t.Run("unknown explicit domain", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.query.Query(ctx, "revenue?", []string{"Nope"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("generation failure", func(t *testing.T) {
		h := newHarness(t)
		h.createDomain(t, "Finance", "", "")
		h.ingest(t, "Finance", financeFiles)
		h.llm.err = domain.ErrRateLimited
		_, err := h.query.Query(ctx, "revenue?", []string{"Finance"})
		assert.ErrorIs(t, err, domain.ErrRateLimited)
	})

	t.Run("embedder failure", func(t *testing.T) {
		h := newHarness(t)
		h.createDomain(t, "Finance", "", "")
		h.ingest(t, "Finance", financeFiles)
		h.embedder.setPoison("revenue")
		_, err := h.query.Query(ctx, "revenue?", []string{"Finance"})
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	})
}

func TestQuery_DeduplicatesExplicitDomains(t *testing.T) {
	h := newHarness(t)
	h.createDomain(t, "Finance", "", "")
	h.ingest(t, "Finance", financeFiles)

	result, err := h.query.Query(context.Background(), "budget", []string{"Finance", " Finance "})
	require.NoError(t, err)
	assert.Equal(t, []string{"Finance"}, result.Metrics.SelectedDomains)
}

func TestQueryService_UpdateConfig(t *testing.T) {
	h := newHarness(t)
	h.createDomain(t, "Finance", "", "")
	h.ingest(t, "Finance", financeFiles)

	cfg := h.cfg
	cfg.Query.RetrievalK = 1
	cfg.LLM.PromptTemplate = "CTX={context} Q={query}"
	h.query.UpdateConfig(cfg)

	result, err := h.query.Query(context.Background(), "budget", []string{"Finance"})
	require.NoError(t, err)
	assert.Len(t, result.Chunks, 1)
	assert.True(t, strings.HasPrefix(h.llm.lastPrompt(), "CTX="))
	assert.True(t, strings.HasSuffix(h.llm.lastPrompt(), " Q=budget"))
}

func TestQueryService_Health(t *testing.T) {
	h := newHarness(t)
	h.createDomain(t, "Finance", "", "")
	h.createDomain(t, "HR", "", "")
	h.ingest(t, "Finance", financeFiles)
	h.llm.pingErr = errors.New("connection refused")

	report := h.query.Health(context.Background())
	assert.Equal(t, "fake-llm", report.LLMModel)
	assert.Equal(t, "fake-embed", report.EmbeddingModel)
	assert.Equal(t, "connection refused", report.LLMError)
	assert.Empty(t, report.EmbeddingError)
	assert.Equal(t, 2, report.Domains)
	assert.Equal(t, 1, report.PopulatedDomains)
}

func TestParseDomainSelection(t *testing.T) {
	candidates := []domain.KnowledgeDomain{
		{ID: 1, Name: "Finance"},
		{ID: 2, Name: "HR"},
		{ID: 3, Name: "Legal Team"},
	}

	tests := []struct {
		name     string
		response string
		want     []string
	}{
		{name: "single", response: "Finance", want: []string{"Finance"}},
		{name: "pipe separated", response: "Finance|HR", want: []string{"Finance", "HR"}},
		{name: "case and spaces", response: " finance | hr ", want: []string{"Finance", "HR"}},
		{name: "unknown dropped", response: "finance | HR | Marketing", want: []string{"Finance", "HR"}},
		{name: "duplicates removed", response: "HR|hr|HR", want: []string{"HR"}},
		{name: "quotes and bullets", response: "- \"Finance\" | *HR*.", want: []string{"Finance", "HR"}},
		{name: "names with spaces", response: "Legal Team", want: []string{"Legal Team"}},
		{name: "order follows response", response: "HR | Finance", want: []string{"HR", "Finance"}},
		{name: "empty", response: "", want: nil},
		{name: "nothing known", response: "none", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDomainSelection(tt.response, candidates, nil)
			var names []string
			for _, d := range got {
				names = append(names, d.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestBuildAnswerPrompt(t *testing.T) {
	chunks := []domain.RetrievedChunk{{Content: "first"}, {Content: "second"}}
	got := BuildAnswerPrompt("C:{context}\nQ:{query}", "why?", chunks)
	assert.Equal(t, "C:first\n\n---\n\nsecond\nQ:why?", got)
}

func TestBuildSelectionPrompt(t *testing.T) {
	prompt := BuildSelectionPrompt("What is our budget?", []domain.KnowledgeDomain{
		{Name: "Finance", Description: "Money", Keywords: "budget"},
	})
	assert.Contains(t, prompt, "You route questions")
	assert.Contains(t, prompt, "- Finance: Money (keywords: budget)")
	assert.Contains(t, prompt, "Question: What is our budget?")
	assert.Contains(t, prompt, "'|'")
}
