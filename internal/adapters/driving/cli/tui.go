package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/domainrag/internal/adapters/driving/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Ask questions interactively",
	Long: `Open an interactive terminal session for asking questions.

Questions go to the domains given with --domain (or system.default_domain).
Press tab to choose domains from a list, or clear the choice to let the
model select domains for each question.`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	app, err := tui.NewApp(&tui.Ports{
		Query:   queryService,
		Domains: domainService,
	}, selectedDomains())
	if err != nil {
		return err
	}
	return app.WithContext(cmd.Context()).Run()
}
