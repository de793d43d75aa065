// Package app wires the adapters and services of one domainrag process.
//
// Relative storage and log paths in the configuration resolve against the
// directory holding the config file.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/custodia-labs/domainrag/internal/adapters/driven/ai"
	"github.com/custodia-labs/domainrag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/domainrag/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/domainrag/internal/adapters/driven/vector/flat"
	"github.com/custodia-labs/domainrag/internal/chunking"
	"github.com/custodia-labs/domainrag/internal/chunking/keywords"
	"github.com/custodia-labs/domainrag/internal/core/domain"
	"github.com/custodia-labs/domainrag/internal/core/ports/driven"
	"github.com/custodia-labs/domainrag/internal/core/ports/driving"
	"github.com/custodia-labs/domainrag/internal/core/services"
	"github.com/custodia-labs/domainrag/internal/extractors"
	"github.com/custodia-labs/domainrag/internal/logger"
	"github.com/custodia-labs/domainrag/internal/textnorm"
)

// Options configures New.
type Options struct {
	// ConfigPath is the TOML file. Empty uses ~/.domainrag/config.toml.
	ConfigPath string

	// Store replaces the file store. BaseDir must be set with it.
	Store driven.ConfigStore

	// BaseDir overrides the directory relative paths resolve against.
	BaseDir string

	// Debug forces debug logging.
	Debug bool

	// LogOutput overrides stderr.
	LogOutput io.Writer
}

// App holds the services built from one configuration.
type App struct {
	Store      driven.ConfigStore
	Logger     *log.Logger
	Domains    *services.DomainService
	Ingestion  *services.IngestionService
	Query      *services.QueryService
	Reconciler *services.ReconcileService

	baseDir   string
	debug     bool
	log       *logger.Logger
	control   *sqlite.ControlStore
	vectors   *flat.Store
	providers *ai.Providers
	reloaders []driving.ConfigReloader

	mu  sync.Mutex
	cfg domain.AppConfig
}

// New loads the configuration and builds every service.
func New(ctx context.Context, opts Options) (*App, error) {
	store := opts.Store
	if store == nil {
		fs, err := file.NewConfigStore(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("opening config: %w", err)
		}
		store = fs
	}

	baseDir := opts.BaseDir
	if baseDir == "" {
		baseDir = filepath.Dir(store.Path())
	}

	cfg, err := store.AppConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", store.Path(), err)
	}
	cfg = ResolvePaths(cfg, baseDir)

	lg, err := logger.New(logger.Options{
		Level:  cfg.System.LogLevel,
		File:   cfg.System.LogFile,
		Debug:  opts.Debug,
		Output: opts.LogOutput,
	})
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:     cfg,
		Store:   store,
		Logger:  lg.Logger,
		baseDir: baseDir,
		debug:   opts.Debug,
		log:     lg,
	}
	if err := a.build(ctx); err != nil {
		return nil, errors.Join(err, a.Close())
	}

	a.Logger.Debug("services ready",
		"config", store.Path(),
		"storage", cfg.System.StorageBasePath,
		"embedding", cfg.Embedding.ModelName,
		"llm", cfg.LLM.ModelRepoID)
	return a, nil
}

// Config returns the configuration currently applied.
func (a *App) Config() domain.AppConfig {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

func (a *App) build(ctx context.Context) error {
	cfg := a.cfg

	control, err := sqlite.NewControlStore(ctx, cfg.System.ControlDBPath)
	if err != nil {
		return fmt.Errorf("opening control database: %w", err)
	}
	a.control = control

	providers, err := ai.NewProviders(cfg, a.Logger)
	if err != nil {
		return err
	}
	a.providers = providers

	a.vectors = flat.NewStore()
	opener := sqlite.DomainOpener{}
	normaliser := textnorm.New(cfg.TextNormalizer)
	chunker := chunking.NewDefaultManager(chunking.Deps{
		Embedder:  providers.Embedding,
		Keywords:  keywords.New(providers.Embedding, a.Logger),
		Logger:    a.Logger,
		BatchSize: cfg.Embedding.BatchSize,
	}, cfg.Ingestion.KeywordsTopN)

	a.Domains = services.NewDomainService(control, opener, a.vectors, providers.Embedding, cfg, a.Logger)
	a.Reconciler = services.NewReconcileService(control, opener, a.vectors, providers.Embedding, normaliser,
		cfg.Embedding.BatchSize, a.Logger)
	a.Ingestion = services.NewIngestionService(services.IngestionDeps{
		Control:    control,
		Opener:     opener,
		Vectors:    a.vectors,
		Extractor:  extractors.NewDefaultRegistry(),
		Chunking:   chunker,
		Embedder:   providers.Embedding,
		Normaliser: normaliser,
		Reconciler: a.Reconciler,
	}, cfg, a.Logger)
	a.Query = services.NewQueryService(services.QueryDeps{
		Control:    control,
		Opener:     opener,
		Vectors:    a.vectors,
		Embedder:   providers.Embedding,
		LLM:        providers.LLM,
		Normaliser: normaliser,
	}, cfg, a.Logger)

	a.reloaders = []driving.ConfigReloader{
		a.Domains,
		a.Ingestion,
		a.Reconciler,
		a.Query,
		chunker,
		normaliser,
		providers.LLM,
	}
	return nil
}

// Apply pushes a reloaded configuration to every stateful component.
// Storage locations and providers are fixed for the life of the process;
// changes to them are logged and take effect on restart.
func (a *App) Apply(cfg domain.AppConfig) {
	cfg = ResolvePaths(cfg, a.baseDir)

	a.mu.Lock()
	defer a.mu.Unlock()
	prev := a.cfg

	for _, change := range restartOnly(prev, cfg) {
		a.Logger.Warn("config change needs a restart", "setting", change)
	}
	// Keep the live locations so services never see a half-applied move.
	cfg.System.StorageBasePath = prev.System.StorageBasePath
	cfg.System.ControlDBPath = prev.System.ControlDBPath
	cfg.System.LogFile = prev.System.LogFile

	if !a.debug {
		if level, err := log.ParseLevel(strings.ToLower(cfg.System.LogLevel)); err == nil {
			a.Logger.SetLevel(level)
		}
	}
	for _, r := range a.reloaders {
		r.UpdateConfig(cfg)
	}
	a.cfg = cfg
	a.Logger.Info("configuration reloaded")
}

// Watch applies configuration changes until ctx is cancelled.
func (a *App) Watch(ctx context.Context) error {
	return a.Store.Watch(ctx, a.Apply, func(err error) {
		a.Logger.Warn("ignoring invalid configuration", "err", err)
	})
}

// Ping checks that both model providers respond.
func (a *App) Ping(ctx context.Context) error {
	return a.providers.Ping(ctx)
}

// Close releases databases, indexes, providers and the log file.
func (a *App) Close() error {
	var errs []error
	if a.vectors != nil {
		if err := a.vectors.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing vector store: %w", err))
		}
	}
	if a.control != nil {
		if err := a.control.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing control database: %w", err))
		}
	}
	if a.providers != nil {
		a.providers.Close()
	}
	if a.log != nil {
		if err := a.log.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing log file: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ResolvePaths makes relative storage and log paths absolute under base.
func ResolvePaths(cfg domain.AppConfig, base string) domain.AppConfig {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	cfg.System.StorageBasePath = resolve(cfg.System.StorageBasePath)
	cfg.System.ControlDBPath = resolve(cfg.System.ControlDBPath)
	cfg.System.LogFile = resolve(cfg.System.LogFile)
	return cfg
}

// restartOnly lists the changed settings that Apply cannot take live.
func restartOnly(prev, next domain.AppConfig) []string {
	var changed []string
	check := func(name string, differs bool) {
		if differs {
			changed = append(changed, name)
		}
	}
	check("system.storage_base_path", prev.System.StorageBasePath != next.System.StorageBasePath)
	check("system.control_db_path", prev.System.ControlDBPath != next.System.ControlDBPath)
	check("system.log_file", prev.System.LogFile != next.System.LogFile)
	check("embedding", prev.Embedding != next.Embedding)
	check("llm.provider", prev.LLM.Provider != next.LLM.Provider)
	check("llm.model_repo_id", prev.LLM.ModelRepoID != next.LLM.ModelRepoID)
	check("llm.base_url", prev.LLM.BaseURL != next.LLM.BaseURL)
	check("llm.api_key", prev.LLM.APIKey != next.LLM.APIKey)
	return changed
}
