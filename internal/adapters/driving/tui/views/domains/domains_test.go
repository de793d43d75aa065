package domains

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/domainrag/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/domainrag/internal/core/domain"
)

// MockDomainService implements driving.DomainService for testing.
type MockDomainService struct {
	domains   []domain.KnowledgeDomain
	populated map[string]bool
	listErr   error
}

func (m *MockDomainService) Create(context.Context, string, string, string, *domain.DomainConfig) (int64, error) {
	return 0, nil
}

func (m *MockDomainService) Get(context.Context, string) (*domain.KnowledgeDomain, error) {
	return nil, domain.ErrNotFound
}

func (m *MockDomainService) List(context.Context) ([]domain.KnowledgeDomain, error) {
	return m.domains, m.listErr
}

func (m *MockDomainService) Rename(context.Context, string, string) (*domain.DomainPaths, error) {
	return nil, nil
}

func (m *MockDomainService) Update(context.Context, string, map[string]any) error { return nil }

func (m *MockDomainService) Delete(context.Context, string) error { return nil }

func (m *MockDomainService) Config(context.Context, string) (*domain.DomainConfig, error) {
	return nil, nil
}

func (m *MockDomainService) ListDocuments(context.Context, string) ([]domain.DocumentFile, error) {
	return nil, nil
}

func (m *MockDomainService) DeleteDocument(context.Context, string, int64) error { return nil }

func (m *MockDomainService) IsPopulated(d *domain.KnowledgeDomain) bool {
	return m.populated[d.Name]
}

func newMock() *MockDomainService {
	return &MockDomainService{
		domains: []domain.KnowledgeDomain{
			{ID: 1, Name: "Finance", Description: "Money matters", TotalDocuments: 3},
			{ID: 2, Name: "HR", Description: "People", TotalDocuments: 0},
		},
		populated: map[string]bool{"Finance": true},
	}
}

// loaded returns a view with its domain list loaded.
func loaded(t *testing.T, mock *MockDomainService) *View {
	t.Helper()
	v := NewView(nil, mock)
	v.SetDimensions(100, 30)
	cmd := v.Init()
	require.NotNil(t, cmd)
	v, _ = v.Update(cmd())
	return v
}

func press(v *View, key string) (*View, tea.Msg) {
	msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	if key == " " {
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(key)}
	}
	v, cmd := v.Update(msg)
	if cmd == nil {
		return v, nil
	}
	return v, cmd()
}

func TestView_LoadsDomains(t *testing.T) {
	v := loaded(t, newMock())

	require.Len(t, v.Domains(), 2)
	assert.True(t, v.Domains()[0].Populated)
	assert.False(t, v.Domains()[1].Populated)

	view := v.View()
	assert.Contains(t, view, "Finance")
	assert.Contains(t, view, "(3 docs)")
	assert.Contains(t, view, "(empty)")
	assert.Contains(t, view, "the model picks")
}

func TestView_LoadError(t *testing.T) {
	mock := newMock()
	mock.listErr = errors.New("database is locked")

	v := loaded(t, mock)

	assert.Error(t, v.Err())
	assert.Contains(t, v.View(), "database is locked")
}

func TestView_NoService(t *testing.T) {
	v := NewView(nil, nil)
	msg := v.Init()()

	loadedMsg, ok := msg.(messages.DomainsLoaded)
	require.True(t, ok)
	assert.ErrorIs(t, loadedMsg.Err, ErrNoDomainService)
}

func TestView_ToggleScope(t *testing.T) {
	v := loaded(t, newMock())

	v, msg := press(v, " ")
	assert.Equal(t, messages.ScopeChanged{Domains: []string{"Finance"}}, msg)

	v, _ = press(v, "j")
	assert.Equal(t, 1, v.SelectedIndex())
	v, msg = press(v, " ")
	assert.Equal(t, messages.ScopeChanged{Domains: []string{"Finance", "HR"}}, msg)
	assert.Contains(t, v.View(), "Asking: Finance, HR")

	v, _ = press(v, "k")
	v, msg = press(v, " ")
	assert.Equal(t, messages.ScopeChanged{Domains: []string{"HR"}}, msg)

	v, msg = press(v, "c")
	assert.Equal(t, messages.ScopeChanged{Domains: nil}, msg)
	assert.Empty(t, v.Scope())
}

func TestView_ReloadDropsVanishedDomains(t *testing.T) {
	mock := newMock()
	v := loaded(t, mock)
	v, _ = press(v, "j")
	v, _ = press(v, " ")
	require.Equal(t, []string{"HR"}, v.Scope())

	mock.domains = mock.domains[:1]
	v, msg := press(v, "r")
	v, cmd := v.Update(msg)
	require.NotNil(t, cmd)

	assert.Equal(t, messages.ScopeChanged{Domains: nil}, cmd())
	assert.Equal(t, 0, v.SelectedIndex())
}

func TestView_EscReturnsToAsk(t *testing.T) {
	v := loaded(t, newMock())

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)

	assert.Equal(t, messages.ViewChanged{View: messages.ViewAsk}, cmd())
}
