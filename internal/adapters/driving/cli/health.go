package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check model providers and domains",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, _ []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	report := queryService.Health(cmd.Context())

	cmd.Println(titleStyle.Render("Health"))
	cmd.Printf("  LLM: %s %s\n", report.LLMModel, providerStatus(report.LLMError))
	cmd.Printf("  Embedding: %s %s\n", report.EmbeddingModel, providerStatus(report.EmbeddingError))
	cmd.Printf("  Domains: %d (%d populated)\n", report.Domains, report.PopulatedDomains)

	if !report.Healthy() {
		return errors.New("one or more providers are unavailable")
	}
	return nil
}

func providerStatus(errText string) string {
	if errText == "" {
		return successStyle.Render("ok")
	}
	return errorStyle.Render(fmt.Sprintf("unavailable: %s", errText))
}
