// Package cli provides the domainrag command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/domainrag/internal/core/domain"
	"github.com/custodia-labs/domainrag/internal/core/ports/driven"
	"github.com/custodia-labs/domainrag/internal/core/ports/driving"
)

// version is set at build time.
var version = "dev"

// Services holds the ports the commands drive.
type Services struct {
	Domains    driving.DomainService
	Ingestion  driving.IngestionService
	Query      driving.QueryService
	Reconciler driving.Reconciler
	Config     driven.ConfigStore
	AppConfig  domain.AppConfig
	Logger     *log.Logger

	// Watch applies configuration changes until ctx is cancelled. Optional.
	Watch func(ctx context.Context) error
}

// Options carries the global flags needed to build Services.
type Options struct {
	ConfigPath string
	Debug      bool
}

// Bootstrap builds the services for one invocation. The returned function
// releases them.
type Bootstrap func(ctx context.Context, opts Options) (*Services, func() error, error)

var (
	domainService    driving.DomainService
	ingestionService driving.IngestionService
	queryService     driving.QueryService
	reconciler       driving.Reconciler
	configStore      driven.ConfigStore
	appConfig        = domain.DefaultAppConfig()
	logger           = log.New(io.Discard)
	watchConfig      func(ctx context.Context) error

	bootstrap Bootstrap
	release   func() error
)

// Global flags.
var (
	configPath   string
	debugLogging bool
	ingestDir    string
	queryText    string
	domainNames  []string
)

var rootCmd = &cobra.Command{
	Use:   "domainrag",
	Short: "Per-domain retrieval augmented generation",
	Long: `domainrag ingests directories of documents into isolated knowledge
domains and answers questions from them with a language model.

Each domain owns its own database and vector index. Questions are routed to
the domains given with --domain, or to the domains a model selects from
their descriptions.

Examples:
  domainrag domain create Finance --description "Budgets and revenue"
  domainrag -i ./reports -d Finance
  domainrag -q "What was Q3 revenue?"
  domainrag mcp serve`,
	SilenceUsage:      true,
	PersistentPreRunE: prepareServices,
	RunE:              runRoot,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.domainrag/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&debugLogging, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringSliceVarP(&domainNames, "domain", "d", nil,
		"domain to use (repeatable; defaults to system.default_domain)")
	rootCmd.Flags().StringVarP(&ingestDir, "ingest", "i", "", "ingest the documents in a directory")
	rootCmd.Flags().StringVarP(&queryText, "query", "q", "", "answer a question")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetBootstrap registers the function that builds services before a command runs.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// SetServices installs already-built services. Commands run against them
// without calling the bootstrap.
func SetServices(s *Services) {
	domainService = s.Domains
	ingestionService = s.Ingestion
	queryService = s.Query
	reconciler = s.Reconciler
	configStore = s.Config
	appConfig = s.AppConfig
	watchConfig = s.Watch
	logger = s.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
}

// Execute runs the root command, cancelling on SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if release != nil {
		if cerr := release(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("closing services: %w", cerr))
		}
		release = nil
	}
	return err
}

func prepareServices(cmd *cobra.Command, _ []string) error {
	if bootstrap == nil || release != nil || skipsServices(cmd) {
		return nil
	}
	services, closeFn, err := bootstrap(cmd.Context(), Options{
		ConfigPath: configPath,
		Debug:      debugLogging,
	})
	if err != nil {
		return err
	}
	SetServices(services)
	release = closeFn
	return nil
}

// skipsServices reports whether cmd runs without any services.
func skipsServices(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "version", "help", "completion":
		return true
	}
	return false
}

func runRoot(cmd *cobra.Command, args []string) error {
	switch {
	case ingestDir != "" && queryText != "":
		return errors.New("--ingest and --query cannot be used together")
	case ingestDir != "":
		name, err := singleDomain()
		if err != nil {
			return err
		}
		return ingest(cmd, ingestDir, name)
	case queryText != "":
		return answer(cmd, queryText, selectedDomains())
	default:
		return cmd.Help()
	}
}

// selectedDomains returns the --domain values, falling back to the
// configured default domain. Nil means automatic selection.
func selectedDomains() []string {
	if len(domainNames) > 0 {
		return domainNames
	}
	if appConfig.System.DefaultDomain != "" {
		return []string{appConfig.System.DefaultDomain}
	}
	return nil
}

// singleDomain returns the one domain a command operates on.
func singleDomain() (string, error) {
	names := selectedDomains()
	switch len(names) {
	case 0:
		return "", errors.New("no domain given: use --domain or set system.default_domain")
	case 1:
		return names[0], nil
	default:
		return "", fmt.Errorf("expected one domain, got %d", len(names))
	}
}
