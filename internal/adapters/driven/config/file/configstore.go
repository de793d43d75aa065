package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/domainrag/internal/core/domain"
	"github.com/custodia-labs/domainrag/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// DefaultDebounce coalesces the burst of events editors emit on save.
const DefaultDebounce = 250 * time.Millisecond

// ConfigStore is a file-based implementation of driven.ConfigStore using TOML.
// Values are held flattened to dot-notation keys ("llm.max_retries").
type ConfigStore struct {
	mu       sync.RWMutex
	filePath string
	data     map[string]any
	debounce time.Duration
}

// NewConfigStore creates a TOML config store at path.
// If path is empty, defaults to ~/.domainrag/config.toml.
func NewConfigStore(path string) (*ConfigStore, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".domainrag", "config.toml")
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	s := &ConfigStore{
		filePath: path,
		data:     make(map[string]any),
		debounce: DefaultDebounce,
	}

	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get retrieves a configuration value by key.
func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	val, ok := s.data[key]
	return val, ok
}

// GetString retrieves a string configuration value.
func (s *ConfigStore) GetString(key string) string {
	val, ok := s.Get(key)
	if !ok {
		return ""
	}

	str, ok := val.(string)
	if !ok {
		return ""
	}
	return str
}

// GetInt retrieves an integer configuration value.
func (s *ConfigStore) GetInt(key string) int {
	val, ok := s.Get(key)
	if !ok {
		return 0
	}

	// TOML integers are parsed as int64
	switch v := val.(type) {
	case int64:
		return int(v)
	case int:
		return v
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

	b, ok := val.(bool)
	if !ok {
		return false
	}
	return b
}

// Set stores a configuration value and persists it if the result is valid.
func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]any, len(s.data)+1)
	for k, v := range s.data {
		next[k] = v
	}
	next[key] = value

	if _, err := decodeAppConfig(next); err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}

	s.data = next
	return s.save()
}

// AppConfig decodes the stored values over the defaults and validates them.
func (s *ConfigStore) AppConfig() (domain.AppConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return decodeAppConfig(s.data)
}

// SaveAppConfig replaces the stored configuration with cfg.
func (s *ConfigStore) SaveAppConfig(cfg domain.AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	raw, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	var nested map[string]any
	if err := toml.Unmarshal(raw, &nested); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = flattenMap(nested, "")
	return s.save()
}

// save writes configuration to the TOML file (caller must hold lock).
func (s *ConfigStore) save() error {
	data, err := toml.Marshal(unflattenMap(s.data))
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	// Write with restricted permissions
	return os.WriteFile(s.filePath, data, 0600)
}

// Load reads configuration from the TOML file.
func (s *ConfigStore) Load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			// No config file yet - that's fine, defaults apply
			s.mu.Lock()
			s.data = make(map[string]any)
			s.mu.Unlock()
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}

	loaded, err := parse(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.data = loaded
	s.mu.Unlock()
	return nil
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}

// Watch reloads the file on every change and calls onChange with each valid
// configuration. It blocks until ctx is cancelled.
func (s *ConfigStore) Watch(ctx context.Context, onChange func(domain.AppConfig), onError func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so atomic replace-by-rename saves are seen.
	if err := watcher.Add(filepath.Dir(s.filePath)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(s.filePath), err)
	}

	report := func(err error) {
		if onError != nil {
			onError(err)
		}
	}

	var (
		timer  *time.Timer
		fire   <-chan time.Time
		target = filepath.Clean(s.filePath)
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target ||
				!event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(s.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(s.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			cfg, err := s.reload()
			if err != nil {
				report(err)
				continue
			}
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			report(fmt.Errorf("config watcher: %w", err))
		}
	}
}

// reload re-reads the file, keeping the previous values if the new ones are invalid.
func (s *ConfigStore) reload() (domain.AppConfig, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return domain.AppConfig{}, fmt.Errorf("reading config: %w", err)
	}
	loaded, err := parse(data)
	if err != nil {
		return domain.AppConfig{}, err
	}
	cfg, err := decodeAppConfig(loaded)
	if err != nil {
		return domain.AppConfig{}, err
	}

	s.mu.Lock()
	s.data = loaded
	s.mu.Unlock()
	return cfg, nil
}

func parse(data []byte) (map[string]any, error) {
	var loaded map[string]any
	if err := toml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parsing config: %w", errors.Join(domain.ErrInvalidConfig, err))
	}
	if loaded == nil {
		loaded = make(map[string]any)
	}
	// Flatten nested maps into dot-notation keys for easier access
	return flattenMap(loaded, ""), nil
}

// decodeAppConfig overlays flattened values on the defaults and validates.
func decodeAppConfig(flat map[string]any) (domain.AppConfig, error) {
	cfg := domain.DefaultAppConfig()

	raw, err := toml.Marshal(unflattenMap(flat))
	if err != nil {
		return cfg, fmt.Errorf("encoding config: %w", err)
	}

	dec := toml.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return cfg, fmt.Errorf("%w: unknown keys: %s", domain.ErrInvalidConfig, strings.TrimSpace(strict.String()))
		}
		return cfg, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// flattenMap converts nested maps to dot-notation keys.
// E.g., {"a": {"b": 1}} becomes {"a.b": 1}.
func flattenMap(m map[string]any, prefix string) map[string]any {
	result := make(map[string]any)

	for key, value := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}

		if nested, ok := value.(map[string]any); ok {
			for k, v := range flattenMap(nested, fullKey) {
				result[k] = v
			}
		} else {
			result[fullKey] = value
		}
	}

	return result
}

// unflattenMap is the inverse of flattenMap.
func unflattenMap(flat map[string]any) map[string]any {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	root := make(map[string]any)
	for _, key := range keys {
		parts := strings.Split(key, ".")
		node := root
		for _, p := range parts[:len(parts)-1] {
			child, ok := node[p].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[p] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = flat[key]
	}
	return root
}
