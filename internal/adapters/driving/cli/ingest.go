package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/domainrag/internal/core/domain"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [directory]",
	Short: "Ingest the documents in a directory",
	Long: `Ingest every regular, non-hidden file directly inside a directory into
a domain. Files already ingested with the same content are skipped.

Each file is committed on its own; a failing file never aborts the run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := singleDomain()
		if err != nil {
			return err
		}
		return ingest(cmd, args[0], name)
	},
}

var ingestVerbose bool

func init() {
	ingestCmd.Flags().BoolVarP(&ingestVerbose, "verbose", "v", false, "list every file")
	rootCmd.AddCommand(ingestCmd)
}

func ingest(cmd *cobra.Command, dir, name string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	report, err := ingestionService.ProcessDirectory(cmd.Context(), dir, name)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	printIngestReport(cmd, report)
	if report.Processed == 0 && report.Failed > 0 {
		return fmt.Errorf("all %d candidate files failed", report.Failed)
	}
	return nil
}

func printIngestReport(cmd *cobra.Command, r *domain.IngestReport) {
	cmd.Println(titleStyle.Render("Ingestion into " + r.Domain))
	if r.Reconcile != nil && !r.Reconcile.Clean() {
		cmd.Println(warningStyle.Render(fmt.Sprintf("  Repaired index: %d evicted, %d restored",
			r.Reconcile.Evicted, r.Reconcile.Restored)))
	}
	cmd.Printf("  Directory: %s\n", r.Directory)
	cmd.Printf("  Chunking: %s (size %d, overlap %d)\n", r.Strategy, r.ChunkSize, r.ChunkOverlap)
	cmd.Printf("  Embeddings: %s (%d dims, %s)\n", r.EmbeddingModel, r.Dimension, r.IndexType)
	cmd.Println()

	if ingestVerbose || r.Failed > 0 {
		rows := make([][]string, 0, len(r.Files))
		for i := range r.Files {
			f := &r.Files[i]
			if !ingestVerbose && f.Status != domain.FileFailed {
				continue
			}
			rows = append(rows, []string{f.Name, fileStatus(f), strconv.Itoa(f.Pages), strconv.Itoa(f.Chunks), fileNote(f)})
		}
		cmd.Println(renderTable([]string{"File", "Status", "Pages", "Chunks", "Note"}, rows))
	}

	cmd.Printf("Files: %d total, %d processed, %d duplicate, %d invalid, %d failed\n",
		r.Total, r.Processed, r.Duplicate, r.Invalid, r.Failed)
	cmd.Printf("Pages: %d  Chunks: %d  Embeddings: %d  Avg chunk: %.0f chars\n",
		r.Pages, r.Chunks, r.Embeddings, r.AvgChunkSize)
	cmd.Println(mutedStyle.Render(fmt.Sprintf("Run %s finished in %s", r.RunID, r.Duration.Round(time.Millisecond))))
}

func fileStatus(f *domain.FileResult) string {
	switch f.Status {
	case domain.FileProcessed:
		return successStyle.Render(string(f.Status))
	case domain.FileFailed:
		return errorStyle.Render(string(f.Status))
	default:
		return warningStyle.Render(string(f.Status))
	}
}

func fileNote(f *domain.FileResult) string {
	if f.DuplicateOf != "" {
		return "same as " + f.DuplicateOf
	}
	return f.Error
}
