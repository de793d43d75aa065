package chunking

import (
	"fmt"
	"sync"

	"github.com/custodia-labs/domainrag/internal/core/domain"
	"github.com/custodia-labs/domainrag/internal/core/ports/driven"
)

var _ driven.ChunkingProvider = (*Manager)(nil)

// batchSizer is implemented by strategies that embed while chunking.
type batchSizer interface {
	SetBatchSize(n int)
}

// Manager hands out the strategy for a domain configuration. It keeps one
// live strategy and replaces it only when the requested name changes;
// parameter changes are applied in place.
type Manager struct {
	registry *Registry
	deps     Deps

	mu       sync.Mutex
	topN     int
	current  Strategy
	lastCfg  domain.DomainConfig
	rebuilds int
}

// NewManager creates a manager over registry.
func NewManager(registry *Registry, deps Deps, keywordsTopN int) *Manager {
	return &Manager{registry: registry, deps: deps, topN: keywordsTopN}
}

// NewDefaultManager creates a manager with the built-in strategies.
func NewDefaultManager(deps Deps, keywordsTopN int) *Manager {
	r := NewRegistry()
	RegisterDefaults(r)
	return NewManager(r, deps, keywordsTopN)
}

// StrategyFor returns the configured strategy for cfg.
func (m *Manager) StrategyFor(cfg domain.DomainConfig) (driven.ChunkingStrategy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || m.current.Name() != cfg.ChunkingStrategy {
		s, err := m.registry.Build(cfg.ChunkingStrategy, m.deps)
		if err != nil {
			return nil, err
		}
		if m.deps.Logger != nil && m.current != nil {
			m.deps.Logger.Info("switching chunking strategy", "from", m.current.Name(), "to", cfg.ChunkingStrategy)
		}
		m.current = s
		m.rebuilds++
	}

	if err := m.current.Configure(cfg, m.topN); err != nil {
		return nil, fmt.Errorf("configuring %s strategy: %w", cfg.ChunkingStrategy, err)
	}
	m.lastCfg = cfg
	return m.current, nil
}

// UpdateConfig applies reloaded ingestion settings to the live strategy.
func (m *Manager) UpdateConfig(cfg domain.AppConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.topN = cfg.Ingestion.KeywordsTopN
	m.deps.BatchSize = cfg.Embedding.BatchSize
	if m.current == nil {
		return
	}
	if b, ok := m.current.(batchSizer); ok {
		b.SetBatchSize(m.deps.BatchSize)
	}
	if err := m.current.Configure(m.lastCfg, m.topN); err != nil && m.deps.Logger != nil {
		m.deps.Logger.Warn("reconfiguring chunking strategy", "err", err)
	}
}
