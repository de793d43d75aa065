package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/domainrag/internal/core/domain"
)

func TestIngestCmd_RequiresDirectory(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "ingest", "-d", "Finance")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestIngestCmd_RequiresDomain(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "ingest", "./docs")

	assert.ErrorContains(t, err, "no domain given")
	assert.False(t, mocks.ingestion.invoked)
}

func TestIngestCmd_UsesDefaultDomain(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	appConfig.System.DefaultDomain = "HR"

	_, err := execute(t, "ingest", "./docs")

	require.NoError(t, err)
	assert.Equal(t, "HR", mocks.ingestion.domain)
}

func TestIngestCmd_Summary(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "ingest", "./docs", "-d", "Finance")

	require.NoError(t, err)
	assert.Contains(t, out, "Ingestion into Finance")
	assert.Contains(t, out, "Repaired index: 2 evicted, 0 restored")
	assert.Contains(t, out, "Files: 4 total, 2 processed, 1 duplicate, 0 invalid, 1 failed")
	assert.Contains(t, out, "Pages: 5  Chunks: 12  Embeddings: 12")
	// Failed files are always listed.
	assert.Contains(t, out, "broken.pdf")
	assert.Contains(t, out, "pdftotext: exit status 1")
	assert.NotContains(t, out, "copy.txt")
}

func TestIngestCmd_Verbose(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "ingest", "./docs", "-d", "Finance", "--verbose")

	require.NoError(t, err)
	assert.Contains(t, out, "copy.txt")
	assert.Contains(t, out, "same as q3.txt")
	assert.Contains(t, out, "q3.txt")
}

func TestIngestCmd_AllFailed(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mocks.ingestion.report = &domain.IngestReport{
		Total:  1,
		Failed: 1,
		Files:  []domain.FileResult{{Name: "a.pdf", Status: domain.FileFailed, Error: "boom"}},
	}

	_, err := execute(t, "ingest", "./docs", "-d", "Finance")

	assert.ErrorContains(t, err, "all 1 candidate files failed")
}

func TestIngestCmd_ServiceError(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mocks.ingestion.err = errors.New("not a directory")

	_, err := execute(t, "ingest", "./docs", "-d", "Finance")

	assert.ErrorContains(t, err, "ingestion failed: not a directory")
}

func TestFileNote(t *testing.T) {
	assert.Equal(t, "same as a.txt", fileNote(&domain.FileResult{DuplicateOf: "a.txt"}))
	assert.Equal(t, "boom", fileNote(&domain.FileResult{Error: "boom"}))
	assert.Empty(t, fileNote(&domain.FileResult{}))
}
