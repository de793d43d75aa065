package driven

import (
	"context"

	"github.com/custodia-labs/domainrag/internal/core/domain"
)

// ConfigStore provides access to application configuration.
// Implementations handle persistence (e.g., TOML files) and type conversion.
// Keys use dot notation matching the file sections, e.g. "query.retrieval_k".
type ConfigStore interface {
	// Get retrieves a configuration value by key.
	// Returns the value and a boolean indicating if the key exists.
	Get(key string) (any, bool)

	// GetString retrieves a string configuration value.
	// Returns empty string if key doesn't exist or isn't a string.
	GetString(key string) string

	// GetInt retrieves an integer configuration value.
	// Returns 0 if key doesn't exist or isn't an integer.
	GetInt(key string) int

	// GetBool retrieves a boolean configuration value.
	// Returns false if key doesn't exist or isn't a boolean.
	GetBool(key string) bool

	// Set stores a configuration value.
	// The value is persisted only if the resulting configuration validates.
	Set(key string, value any) error

	// AppConfig decodes the stored values over the defaults and validates them.
	AppConfig() (domain.AppConfig, error)

	// SaveAppConfig replaces the stored configuration.
	SaveAppConfig(cfg domain.AppConfig) error

	// Load reads configuration from storage.
	Load() error

	// Watch calls onChange with each valid configuration written to storage
	// until ctx is cancelled. Invalid edits are reported to onError and skipped.
	Watch(ctx context.Context, onChange func(domain.AppConfig), onError func(error)) error

	// Path returns the configuration file path.
	Path() string
}
