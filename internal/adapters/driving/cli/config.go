package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/domainrag/internal/core/domain"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change configuration",
	Long: `Show or change the TOML configuration file.

Keys use dot notation matching the file sections, e.g. query.retrieval_k.
Changes are validated before they are written. A running MCP server picks
them up without a restart.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configSetKeyCmd = &cobra.Command{
	Use:       "set-key [llm|embedding]",
	Short:     "Store a provider API key read from the terminal",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"llm", "embedding"},
	RunE:      runConfigSetKey,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if configStore == nil {
			return errors.New("config store not configured")
		}
		cmd.Println(configStore.Path())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSetKeyCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	cfg, err := configStore.AppConfig()
	if err != nil {
		cmd.PrintErrln(warningStyle.Render(fmt.Sprintf("Warning: %v", err)))
		cfg = appConfig
	}

	cmd.Println(titleStyle.Render("Configuration"))
	cmd.Println(mutedStyle.Render(configStore.Path()))
	cmd.Println()

	cmd.Println("[System]")
	cmd.Printf("  Storage: %s\n", cfg.System.StorageBasePath)
	cmd.Printf("  Control database: %s\n", cfg.System.ControlDBPath)
	cmd.Printf("  Default domain: %s\n", orNone(cfg.System.DefaultDomain))
	cmd.Printf("  Log level: %s\n", cfg.System.LogLevel)
	cmd.Printf("  Log file: %s\n", orNone(cfg.System.LogFile))
	cmd.Println()

	cmd.Println("[Ingestion]")
	cmd.Printf("  Chunking: %s (size %d, overlap %d)\n",
		cfg.Ingestion.ChunkStrategy, cfg.Ingestion.ChunkSize, cfg.Ingestion.ChunkOverlap)
	cmd.Printf("  Keywords per chunk: %d\n", cfg.Ingestion.KeywordsTopN)
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", cfg.Embedding.Provider)
	cmd.Printf("  Model: %s\n", cfg.Embedding.ModelName)
	printEndpoint(cmd, cfg.Embedding.BaseURL, cfg.Embedding.APIKey)
	cmd.Printf("  Batch size: %d\n", cfg.Embedding.BatchSize)
	cmd.Println()

	cmd.Println("[LLM]")
	cmd.Printf("  Provider: %s\n", cfg.LLM.Provider)
	cmd.Printf("  Model: %s\n", cfg.LLM.ModelRepoID)
	printEndpoint(cmd, cfg.LLM.BaseURL, cfg.LLM.APIKey)
	cmd.Printf("  Retries: %d (delay %.1fs)\n", cfg.LLM.MaxRetries, cfg.LLM.RetryDelaySeconds)
	cmd.Println()

	cmd.Println("[Query]")
	cmd.Printf("  Retrieval k: %d\n", cfg.Query.RetrievalK)
	cmd.Printf("  Index type: %s\n", cfg.VectorStore.IndexType)
	return nil
}

func printEndpoint(cmd *cobra.Command, baseURL, apiKey string) {
	if baseURL != "" {
		cmd.Printf("  Base URL: %s\n", baseURL)
	}
	if apiKey != "" {
		cmd.Printf("  API Key: %s\n", maskAPIKey(apiKey))
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	value, ok := configStore.Get(args[0])
	if !ok {
		return fmt.Errorf("%s is not set in %s", args[0], configStore.Path())
	}
	cmd.Println(value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	if err := configStore.Set(args[0], parseConfigValue(args[1])); err != nil {
		return fmt.Errorf("failed to set %s: %w", args[0], err)
	}
	cmd.Printf("Set %s\n", args[0])
	return nil
}

func runConfigSetKey(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	var key string
	switch args[0] {
	case "llm":
		key = "llm.api_key"
	case "embedding":
		key = "embedding.api_key"
	default:
		return fmt.Errorf("%w: unknown provider section %q", domain.ErrInvalidInput, args[0])
	}

	cmd.Print("API key: ")
	secret := readPassword(cmd.InOrStdin())
	cmd.Println()
	if secret == "" {
		return errors.New("no key entered")
	}

	if err := configStore.Set(key, secret); err != nil {
		return fmt.Errorf("failed to store key: %w", err)
	}
	cmd.Printf("Stored %s (%s)\n", key, maskAPIKey(secret))
	return nil
}

// parseConfigValue converts a command line value to the TOML type it reads as.
func parseConfigValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
