package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/domainrag/internal/core/domain"
)

var (
	queryJSON    bool
	queryContext bool
	queryMetrics bool
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Answer a question from domain knowledge",
	Long: `Answer a question from the chunks most similar to it.

With --domain the listed domains are searched. Otherwise the configured
default domain is used, and without one a model picks among the populated
domains using their descriptions and keywords.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return answer(cmd, strings.Join(args, " "), selectedDomains())
	},
}

func init() {
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output the result as JSON")
	queryCmd.Flags().BoolVar(&queryContext, "show-context", false, "print the retrieved chunks")
	queryCmd.Flags().BoolVar(&queryMetrics, "metrics", false, "print timing and retrieval metrics")
	rootCmd.AddCommand(queryCmd)
}

func answer(cmd *cobra.Command, question string, names []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	result, err := queryService.Query(cmd.Context(), question, names)
	if err != nil {
		if errors.Is(err, domain.ErrNoPopulatedDomains) {
			cmd.PrintErrln("No domain has documents yet. Ingest some with 'domainrag ingest'.")
		}
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(result.Answer)
	cmd.Println()

	m := &result.Metrics
	how := "selected"
	if m.AutoSelected {
		how = "chosen by " + m.Model
	}
	cmd.Println(mutedStyle.Render(fmt.Sprintf("Domains (%s): %s", how, strings.Join(m.SelectedDomains, ", "))))

	if queryContext {
		cmd.Println()
		cmd.Println(titleStyle.Render("Context"))
		for i := range result.Chunks {
			c := &result.Chunks[i]
			cmd.Printf("[%d] %s #%d (distance %.4f)\n", i+1, c.Domain, c.ChunkID, c.Distance)
			cmd.Println(mutedStyle.Render(c.Content))
			cmd.Println()
		}
	}

	if queryMetrics {
		cmd.Println()
		cmd.Println(titleStyle.Render("Metrics"))
		for _, name := range m.SelectedDomains {
			cmd.Printf("  %s: %d chunks\n", name, m.HitsPerDomain[name])
		}
		cmd.Printf("  Retrieved: %d (k=%d)\n", m.TotalChunks, m.RetrievalK)
		cmd.Printf("  Selection: %s  Retrieval: %s  Generation: %s  Total: %s\n",
			m.SelectionDuration.Round(time.Millisecond), m.RetrievalDuration.Round(time.Millisecond),
			m.GenerationDuration.Round(time.Millisecond), m.TotalDuration.Round(time.Millisecond))
	}
	return nil
}
