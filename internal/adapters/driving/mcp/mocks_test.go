package mcp

import (
	"context"

	"github.com/custodia-labs/domainrag/internal/core/domain"
)

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	result *domain.QueryResult
	chunks []domain.RetrievedChunk
	err    error

	gotQuestion string
	gotDomains  []string
	gotK        int
}

func (m *mockQueryService) Query(_ context.Context, question string, domains []string) (*domain.QueryResult, error) {
	m.gotQuestion = question
	m.gotDomains = domains
	return m.result, m.err
}

func (m *mockQueryService) Retrieve(
	_ context.Context,
	question string,
	domains []string,
	k int,
) ([]domain.RetrievedChunk, error) {
	m.gotQuestion = question
	m.gotDomains = domains
	m.gotK = k
	return m.chunks, m.err
}

func (m *mockQueryService) Health(_ context.Context) *domain.HealthReport {
	return &domain.HealthReport{}
}

// mockDomainService is a mock implementation of driving.DomainService.
type mockDomainService struct {
	domains   []domain.KnowledgeDomain
	populated map[string]bool
	documents []domain.DocumentFile
	err       error

	gotName string
}

func (m *mockDomainService) Create(
	_ context.Context, _, _, _ string, _ *domain.DomainConfig,
) (int64, error) {
	return 0, m.err
}

func (m *mockDomainService) Get(_ context.Context, _ string) (*domain.KnowledgeDomain, error) {
	if len(m.domains) == 0 {
		return nil, domain.ErrNotFound
	}
	return &m.domains[0], m.err
}

func (m *mockDomainService) List(_ context.Context) ([]domain.KnowledgeDomain, error) {
	return m.domains, m.err
}

func (m *mockDomainService) Rename(_ context.Context, _, _ string) (*domain.DomainPaths, error) {
	return nil, m.err
}

func (m *mockDomainService) Update(_ context.Context, _ string, _ map[string]any) error {
	return m.err
}

func (m *mockDomainService) Delete(_ context.Context, _ string) error {
	return m.err
}

func (m *mockDomainService) Config(_ context.Context, _ string) (*domain.DomainConfig, error) {
	return nil, m.err
}

func (m *mockDomainService) ListDocuments(_ context.Context, name string) ([]domain.DocumentFile, error) {
	m.gotName = name
	return m.documents, m.err
}

func (m *mockDomainService) DeleteDocument(_ context.Context, _ string, _ int64) error {
	return m.err
}

func (m *mockDomainService) IsPopulated(d *domain.KnowledgeDomain) bool {
	return m.populated[d.Name]
}

// mockReconciler records the domains it was asked to reconcile.
type mockReconciler struct {
	seen []string
	err  error
}

func (m *mockReconciler) Reconcile(_ context.Context, name string) (*domain.ReconcileReport, error) {
	m.seen = append(m.seen, name)
	if m.err != nil {
		return nil, m.err
	}
	return &domain.ReconcileReport{Domain: name}, nil
}
