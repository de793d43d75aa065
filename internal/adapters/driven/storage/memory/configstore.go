// Package memory provides in-memory adapters for tests and embedding.
package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/domainrag/internal/core/domain"
	"github.com/custodia-labs/domainrag/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore is an in-memory implementation of driven.ConfigStore.
//
// Keyed values and the decoded AppConfig are held separately: Set changes
// only the keyed values, SaveAppConfig replaces the AppConfig and notifies
// every active watcher.
type ConfigStore struct {
	mu       sync.RWMutex
	values   map[string]any
	cfg      domain.AppConfig
	watchers map[int]func(domain.AppConfig)
	nextID   int
}

// NewConfigStore creates a new in-memory config store holding cfg.
func NewConfigStore(cfg domain.AppConfig) *ConfigStore {
	return &ConfigStore{
		values:   make(map[string]any),
		cfg:      cfg,
		watchers: make(map[int]func(domain.AppConfig)),
	}
}

// Get retrieves a configuration value by key.
func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.values[key]
	return val, ok
}

// GetString retrieves a string configuration value.
func (s *ConfigStore) GetString(key string) string {
	val, ok := s.Get(key)
	if !ok {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

// GetInt retrieves an integer configuration value.
func (s *ConfigStore) GetInt(key string) int {
	val, ok := s.Get(key)
	if !ok {
		return 0
	}
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// GetBool retrieves a boolean configuration value.
func (s *ConfigStore) GetBool(key string) bool {
	val, ok := s.Get(key)
	if !ok {
		return false
	}
	if b, ok := val.(bool); ok {
		return b
	}
	return false
}

// Set stores a configuration value.
func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// AppConfig returns the held configuration after validating it.
func (s *ConfigStore) AppConfig() (domain.AppConfig, error) {
	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()
	if err := cfg.Validate(); err != nil {
		return domain.AppConfig{}, err
	}
	return cfg, nil
}

// SaveAppConfig replaces the configuration and calls every watcher with it.
// Invalid configurations are rejected and never reach watchers.
func (s *ConfigStore) SaveAppConfig(cfg domain.AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.cfg = cfg
	watchers := make([]func(domain.AppConfig), 0, len(s.watchers))
	for _, fn := range s.watchers {
		watchers = append(watchers, fn)
	}
	s.mu.Unlock()

	for _, fn := range watchers {
		fn(cfg)
	}
	return nil
}

// Load reads configuration from storage (no-op for memory store).
func (s *ConfigStore) Load() error {
	return nil
}

// Watch calls onChange for every SaveAppConfig until ctx is cancelled.
func (s *ConfigStore) Watch(ctx context.Context, onChange func(domain.AppConfig), _ func(error)) error {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = onChange
	s.mu.Unlock()

	<-ctx.Done()

	s.mu.Lock()
	delete(s.watchers, id)
	s.mu.Unlock()
	return nil
}

// Watchers returns the number of active watchers.
func (s *ConfigStore) Watchers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.watchers)
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return ":memory:"
}
