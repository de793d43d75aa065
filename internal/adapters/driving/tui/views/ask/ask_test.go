package ask

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/domainrag/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/domainrag/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/domainrag/internal/core/domain"
)

// MockQueryService implements driving.QueryService for testing.
type MockQueryService struct {
	QueryFunc func(ctx context.Context, question string, domains []string) (*domain.QueryResult, error)
}

func (m *MockQueryService) Query(ctx context.Context, question string, domains []string) (*domain.QueryResult, error) {
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, question, domains)
	}
	return testResult(), nil
}

func (m *MockQueryService) Retrieve(context.Context, string, []string, int) ([]domain.RetrievedChunk, error) {
	return nil, nil
}

func (m *MockQueryService) Health(context.Context) *domain.HealthReport {
	return &domain.HealthReport{}
}

func testResult() *domain.QueryResult {
	return &domain.QueryResult{
		Question: "What was Q3 revenue?",
		Answer:   "Revenue was 4.2 million dollars.",
		Chunks: []domain.RetrievedChunk{
			{Domain: "Finance", ChunkID: 1, Content: "Q3 revenue was 4.2 million dollars."},
			{Domain: "Finance", ChunkID: 2, Content: "Q2 revenue was 3.9 million dollars."},
		},
		Metrics: domain.QueryMetrics{
			SelectedDomains: []string{"Finance"},
			AutoSelected:    true,
			TotalDuration:   1200 * time.Millisecond,
		},
	}
}

func typeText(v *View, text string) *View {
	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return v
}

func TestNewView(t *testing.T) {
	v := NewView(nil, nil, &MockQueryService{})

	require.NotNil(t, v)
	assert.False(t, v.Ready())
	assert.True(t, v.InputFocused())
	assert.Empty(t, v.Scope())
	assert.Nil(t, v.Result())
	assert.NotNil(t, v.Init())
	assert.Equal(t, "Initialising...", v.View())
}

func TestView_AskRunsQueryWithScope(t *testing.T) {
	var gotQuestion string
	var gotScope []string
	mock := &MockQueryService{QueryFunc: func(_ context.Context, q string, d []string) (*domain.QueryResult, error) {
		gotQuestion, gotScope = q, d
		return testResult(), nil
	}}
	v := NewView(nil, nil, mock)
	v.SetDimensions(100, 30)
	v.SetScope([]string{"Finance"})

	v = typeText(v, " What was Q3 revenue? ")
	v, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, v.Pending())
	assert.Equal(t, status.StateThinking, v.Status())

	msg := cmd()
	v, _ = v.Update(msg)

	assert.Equal(t, "What was Q3 revenue?", gotQuestion)
	assert.Equal(t, []string{"Finance"}, gotScope)
	assert.False(t, v.Pending())
	assert.False(t, v.InputFocused())
	assert.Equal(t, status.StateAnswered, v.Status())
	require.NotNil(t, v.Result())

	view := v.View()
	assert.Contains(t, view, "Answer from Finance (auto-selected)")
	assert.Contains(t, view, "Revenue was 4.2 million dollars.")
	assert.Contains(t, view, "Sources (2)")
}

func TestView_EmptyQuestionIsIgnored(t *testing.T) {
	v := NewView(nil, nil, &MockQueryService{})
	v = typeText(v, "   ")

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.False(t, v.Pending())
}

func TestView_QueryErrorsShowHints(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "no data", err: domain.ErrNoPopulatedDomains, want: "ingest a directory first"},
		{name: "no selection", err: domain.ErrNoDomainSelected, want: "pick domains with tab"},
		{name: "no context", err: domain.ErrNoContext, want: "returned nothing"},
		{name: "other", err: errors.New("llm down"), want: "llm down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewView(nil, nil, &MockQueryService{})
			v.SetDimensions(120, 30)

			v, _ = v.Update(messages.QueryCompleted{Err: tt.err})

			assert.ErrorIs(t, v.Err(), tt.err)
			assert.Equal(t, status.StateError, v.Status())
			assert.True(t, v.InputFocused())
			assert.Contains(t, v.View(), tt.want)
		})
	}
}

func TestView_NoQueryService(t *testing.T) {
	v := NewView(nil, nil, nil)
	v = typeText(v, "hello")

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	msg, ok := cmd().(messages.QueryCompleted)
	require.True(t, ok)
	assert.ErrorIs(t, msg.Err, ErrNoQueryService)
}

func TestView_NewQuestionRefocusesInput(t *testing.T) {
	v := NewView(nil, nil, &MockQueryService{})
	v, _ = v.Update(messages.QueryCompleted{Result: testResult()})
	require.False(t, v.InputFocused())

	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})

	assert.True(t, v.InputFocused())
	assert.Equal(t, "", v.Question())
}

func TestView_TabOpensDomains(t *testing.T) {
	v := NewView(nil, nil, &MockQueryService{})

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyTab})
	require.NotNil(t, cmd)

	assert.Equal(t, messages.ViewChanged{View: messages.ViewDomains}, cmd())
}

func TestView_ScopeChanged(t *testing.T) {
	v := NewView(nil, nil, &MockQueryService{})

	v, _ = v.Update(messages.ScopeChanged{Domains: []string{"HR"}})

	assert.Equal(t, []string{"HR"}, v.Scope())
}

func TestView_Reset(t *testing.T) {
	v := NewView(nil, nil, &MockQueryService{})
	v.SetQuestion("q")
	v, _ = v.Update(messages.QueryCompleted{Result: testResult()})

	v.Reset()

	assert.True(t, v.InputFocused())
	assert.Nil(t, v.Result())
	assert.Equal(t, "", v.Question())
	assert.Equal(t, status.StateReady, v.Status())
}
