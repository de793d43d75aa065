package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/domainrag/internal/core/domain"
)

var domainCmd = &cobra.Command{
	Use:   "domain",
	Short: "Manage knowledge domains",
	Long:  `Create, list, rename, update, or delete knowledge domains and browse their documents.`,
}

var domainCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a domain",
	Long: `Create a domain with its own database and vector index.

Chunking flags override the [ingestion] defaults from the config file.
The embedding model is always the configured one.`,
	Args: cobra.ExactArgs(1),
	RunE: runDomainCreate,
}

var domainListCmd = &cobra.Command{
	Use:   "list",
	Short: "List domains",
	Args:  cobra.NoArgs,
	RunE:  runDomainList,
}

var domainShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show a domain and its configuration",
	Args:  cobra.ExactArgs(1),
	RunE:  runDomainShow,
}

var domainRenameCmd = &cobra.Command{
	Use:   "rename [old-name] [new-name]",
	Short: "Rename a domain and move its files",
	Args:  cobra.ExactArgs(2),
	RunE:  runDomainRename,
}

var domainUpdateCmd = &cobra.Command{
	Use:   "update [name]",
	Short: "Update domain fields",
	Long: `Update domain fields given as key=value pairs.

Updatable fields: name, description, keywords, total_documents.
System-managed fields are ignored with a warning.

Example:
  domainrag domain update Finance --set description="Budgets" --set keywords=revenue,budget`,
	Args: cobra.ExactArgs(1),
	RunE: runDomainUpdate,
}

var domainDeleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Delete a domain and its files",
	Args:  cobra.ExactArgs(1),
	RunE:  runDomainDelete,
}

var domainDocsCmd = &cobra.Command{
	Use:   "docs [name]",
	Short: "List documents ingested into a domain",
	Args:  cobra.ExactArgs(1),
	RunE:  runDomainDocs,
}

var domainRemoveDocCmd = &cobra.Command{
	Use:   "remove-doc [name] [document-id]",
	Short: "Remove a document and its vectors from a domain",
	Args:  cobra.ExactArgs(2),
	RunE:  runDomainRemoveDoc,
}

// Flags for domain create and update.
var (
	createDescription string
	createKeywords    string
	createStrategy    string
	createChunkSize   int
	createOverlap     int
	createIndexType   string
	updateFields      []string
	deleteYes         bool
)

func init() {
	domainCreateCmd.Flags().StringVar(&createDescription, "description", "", "what the domain covers")
	domainCreateCmd.Flags().StringVar(&createKeywords, "keywords", "", "comma-separated topic hints")
	domainCreateCmd.Flags().StringVar(&createStrategy, "strategy", "", "chunking strategy (recursive, semantic_cluster)")
	domainCreateCmd.Flags().IntVar(&createChunkSize, "chunk-size", 0, "chunk size in characters")
	domainCreateCmd.Flags().IntVar(&createOverlap, "chunk-overlap", -1, "chunk overlap in characters")
	domainCreateCmd.Flags().StringVar(&createIndexType, "index-type", "", "vector index (IndexFlatL2, IndexFlatIP)")

	domainUpdateCmd.Flags().StringArrayVar(&updateFields, "set", nil, "field=value to update (repeatable)")
	domainDeleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "delete without confirmation")

	domainCmd.AddCommand(domainCreateCmd)
	domainCmd.AddCommand(domainListCmd)
	domainCmd.AddCommand(domainShowCmd)
	domainCmd.AddCommand(domainRenameCmd)
	domainCmd.AddCommand(domainUpdateCmd)
	domainCmd.AddCommand(domainDeleteCmd)
	domainCmd.AddCommand(domainDocsCmd)
	domainCmd.AddCommand(domainRemoveDocCmd)
	rootCmd.AddCommand(domainCmd)
}

func runDomainCreate(cmd *cobra.Command, args []string) error {
	if domainService == nil {
		return errors.New("domain service not configured")
	}

	cfg, err := createConfig(cmd)
	if err != nil {
		return err
	}

	id, err := domainService.Create(cmd.Context(), args[0], createDescription, createKeywords, cfg)
	if err != nil {
		return fmt.Errorf("failed to create domain: %w", err)
	}

	cmd.Printf("Created domain %s (id %d)\n", args[0], id)
	return nil
}

// createConfig returns nil when no chunking flag was given, which applies
// the configured defaults.
func createConfig(cmd *cobra.Command) (*domain.DomainConfig, error) {
	flags := cmd.Flags()
	if !flags.Changed("strategy") && !flags.Changed("chunk-size") &&
		!flags.Changed("chunk-overlap") && !flags.Changed("index-type") {
		return nil, nil
	}

	cfg := domain.DefaultDomainConfig()
	ing := appConfig.Ingestion
	cfg.ChunkingStrategy = ing.ChunkStrategy
	cfg.ChunkSize = ing.ChunkSize
	cfg.ChunkOverlap = ing.ChunkOverlap
	cfg.ClusterDistanceThreshold = ing.ClusterDistanceThreshold
	cfg.ChunkMaxWords = ing.ChunkMaxWords
	cfg.EmbeddingWeight = ing.EmbeddingWeight
	cfg.EmbeddingsModel = appConfig.Embedding.ModelName
	cfg.NormalizeEmbeddings = appConfig.Embedding.NormalizeEmbeddings
	cfg.IndexType = appConfig.VectorStore.IndexType

	if flags.Changed("strategy") {
		cfg.ChunkingStrategy = domain.ChunkingStrategyName(createStrategy)
	}
	if flags.Changed("chunk-size") {
		cfg.ChunkSize = createChunkSize
	}
	if flags.Changed("chunk-overlap") {
		cfg.ChunkOverlap = createOverlap
	}
	if flags.Changed("index-type") {
		cfg.IndexType = domain.IndexType(createIndexType)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func runDomainList(cmd *cobra.Command, _ []string) error {
	if domainService == nil {
		return errors.New("domain service not configured")
	}

	domains, err := domainService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list domains: %w", err)
	}

	if len(domains) == 0 {
		cmd.Println("No domains. Create one with 'domainrag domain create'.")
		return nil
	}

	rows := make([][]string, len(domains))
	for i := range domains {
		d := &domains[i]
		rows[i] = []string{
			d.Name,
			d.Description,
			d.Keywords,
			strconv.Itoa(d.TotalDocuments),
			statusText(domainService.IsPopulated(d), "populated", "empty"),
		}
	}
	cmd.Println(renderTable([]string{"Name", "Description", "Keywords", "Documents", "Status"}, rows))
	cmd.Printf("Total: %d domains\n", len(domains))
	return nil
}

func runDomainShow(cmd *cobra.Command, args []string) error {
	if domainService == nil {
		return errors.New("domain service not configured")
	}

	ctx := cmd.Context()
	d, err := domainService.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get domain: %w", err)
	}
	cfg, err := domainService.Config(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get domain config: %w", err)
	}

	cmd.Println(titleStyle.Render(d.Name))
	cmd.Printf("  Description: %s\n", d.Description)
	cmd.Printf("  Keywords: %s\n", d.Keywords)
	cmd.Printf("  Documents: %d\n", d.TotalDocuments)
	cmd.Printf("  Database: %s\n", d.DBPath)
	cmd.Printf("  Vector index: %s\n", d.VectorStorePath)
	cmd.Printf("  Dimension: %d\n", d.EmbeddingsDimension)
	cmd.Println()
	cmd.Println(titleStyle.Render("Configuration"))
	cmd.Printf("  Embedding model: %s\n", cfg.EmbeddingsModel)
	cmd.Printf("  Normalise embeddings: %t\n", cfg.NormalizeEmbeddings)
	cmd.Printf("  Index type: %s\n", cfg.IndexType)
	cmd.Printf("  Chunking: %s (size %d, overlap %d)\n", cfg.ChunkingStrategy, cfg.ChunkSize, cfg.ChunkOverlap)
	if cfg.ChunkingStrategy == domain.ChunkingSemanticCluster {
		cmd.Printf("  Cluster threshold: %.2f, max words %d\n", cfg.ClusterDistanceThreshold, cfg.ChunkMaxWords)
		cmd.Printf("  Position embedding weight: %.2f\n", cfg.EmbeddingWeight)
	}
	return nil
}

func runDomainRename(cmd *cobra.Command, args []string) error {
	if domainService == nil {
		return errors.New("domain service not configured")
	}

	paths, err := domainService.Rename(cmd.Context(), args[0], args[1])
	if err != nil {
		if errors.Is(err, domain.ErrRenameRecovery) {
			cmd.PrintErrln(errorStyle.Render("Rename failed and the domain could not be restored. Check the storage directory manually."))
		}
		return fmt.Errorf("failed to rename domain: %w", err)
	}

	cmd.Printf("Renamed %s to %s\n", args[0], args[1])
	if paths != nil {
		cmd.Println(mutedStyle.Render("  " + paths.Dir))
	}
	return nil
}

func runDomainUpdate(cmd *cobra.Command, args []string) error {
	if domainService == nil {
		return errors.New("domain service not configured")
	}
	if len(updateFields) == 0 {
		return errors.New("nothing to update: pass --set field=value")
	}

	fields, err := parseFieldUpdates(updateFields)
	if err != nil {
		return err
	}
	if err := domainService.Update(cmd.Context(), args[0], fields); err != nil {
		return fmt.Errorf("failed to update domain: %w", err)
	}

	cmd.Printf("Updated domain %s\n", args[0])
	return nil
}

// parseFieldUpdates turns key=value pairs into an update map.
// total_documents is parsed as an integer; other values stay strings.
func parseFieldUpdates(pairs []string) (map[string]any, error) {
	fields := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid update %q: expected field=value", pair)
		}
		if key == domain.FieldTotalDocuments {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("invalid %s %q: %w", key, value, err)
			}
			fields[key] = n
			continue
		}
		fields[key] = value
	}
	return fields, nil
}

func runDomainDelete(cmd *cobra.Command, args []string) error {
	if domainService == nil {
		return errors.New("domain service not configured")
	}

	name := args[0]
	if !deleteYes && !confirm(cmd, fmt.Sprintf("Delete domain %s and all its files?", name)) {
		cmd.Println("Cancelled.")
		return nil
	}

	if err := domainService.Delete(cmd.Context(), name); err != nil {
		return fmt.Errorf("failed to delete domain: %w", err)
	}

	cmd.Printf("Deleted domain %s\n", name)
	return nil
}

func runDomainDocs(cmd *cobra.Command, args []string) error {
	if domainService == nil {
		return errors.New("domain service not configured")
	}

	docs, err := domainService.ListDocuments(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Printf("No documents in domain: %s\n", args[0])
		return nil
	}

	rows := make([][]string, len(docs))
	for i := range docs {
		rows[i] = []string{
			strconv.FormatInt(docs[i].ID, 10),
			docs[i].Name,
			strconv.Itoa(docs[i].TotalPages),
			docs[i].CreatedAt.Format("2006-01-02 15:04"),
		}
	}
	cmd.Println(renderTable([]string{"ID", "Name", "Pages", "Ingested"}, rows))
	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDomainRemoveDoc(cmd *cobra.Command, args []string) error {
	if domainService == nil {
		return errors.New("domain service not configured")
	}

	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid document id %q: %w", args[1], err)
	}
	if err := domainService.DeleteDocument(cmd.Context(), args[0], id); err != nil {
		return fmt.Errorf("failed to remove document: %w", err)
	}

	cmd.Printf("Removed document %d from %s\n", id, args[0])
	return nil
}
