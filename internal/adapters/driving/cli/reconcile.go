package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [domain...]",
	Short: "Repair divergence between domain databases and vector indexes",
	Long: `Compare each domain's vector index with its chunk rows. Vectors without
a row are evicted and rows without a vector are re-embedded.

Without arguments every domain is checked.`,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	if reconciler == nil {
		return errors.New("reconciler not configured")
	}

	names := args
	if len(names) == 0 {
		names = domainNames
	}
	if len(names) == 0 {
		if domainService == nil {
			return errors.New("domain service not configured")
		}
		domains, err := domainService.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list domains: %w", err)
		}
		for i := range domains {
			names = append(names, domains[i].Name)
		}
	}

	if len(names) == 0 {
		cmd.Println("No domains to reconcile.")
		return nil
	}

	var errs []error
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		report, err := reconciler.Reconcile(cmd.Context(), name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			rows = append(rows, []string{name, "-", "-", "-", "-", errorStyle.Render("error")})
			continue
		}
		rows = append(rows, []string{
			name,
			strconv.Itoa(report.RowCount),
			strconv.Itoa(report.IndexCount),
			strconv.Itoa(report.Evicted),
			strconv.Itoa(report.Restored),
			statusText(report.Clean(), "clean", "repaired"),
		})
	}

	cmd.Println(renderTable([]string{"Domain", "Rows", "Vectors", "Evicted", "Restored", "Status"}, rows))
	return errors.Join(errs...)
}
