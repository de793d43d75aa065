package domain

import "time"

// FileStatus is the outcome of ingesting one file.
type FileStatus string

// File outcomes.
const (
	FileProcessed FileStatus = "processed"
	FileDuplicate FileStatus = "duplicate"
	FileInvalid   FileStatus = "invalid"
	FileFailed    FileStatus = "failed"
)

// FileResult records what happened to one file during ingestion.
type FileResult struct {
	Name       string
	Path       string
	Status     FileStatus
	Hash       string
	DocumentID int64
	Pages      int
	Chunks     int

	// DuplicateOf names the stored document with the same content hash.
	DuplicateOf string

	Error    string
	Duration time.Duration
}

// IngestReport summarises a directory ingestion run.
type IngestReport struct {
	RunID          string
	Domain         string
	Directory      string
	Strategy       ChunkingStrategyName
	ChunkSize      int
	ChunkOverlap   int
	EmbeddingModel string
	Dimension      int
	IndexType      IndexType
	IndexPath      string
	DBPath         string

	Total      int
	Processed  int
	Duplicate  int
	Invalid    int
	Failed     int
	Pages      int
	Chunks     int
	Embeddings int

	// AvgChunkSize is the mean chunk length in runes over processed files.
	AvgChunkSize float64

	Reconcile *ReconcileReport
	Files     []FileResult
	StartedAt time.Time
	Duration  time.Duration
}

// Record adds a file result to the report counters.
func (r *IngestReport) Record(res FileResult) {
	r.Files = append(r.Files, res)
	switch res.Status {
	case FileProcessed:
		r.Processed++
		r.Pages += res.Pages
		r.Chunks += res.Chunks
		r.Embeddings += res.Chunks
	case FileDuplicate:
		r.Duplicate++
	case FileInvalid:
		r.Invalid++
	case FileFailed:
		r.Failed++
	}
}

// ReconcileReport summarises a consistency pass between a domain database
// and its vector index.
type ReconcileReport struct {
	Domain string

	// IndexCount and RowCount are the sizes seen before repair.
	IndexCount int
	RowCount   int

	// Evicted counts index ids with no embedding row.
	Evicted int

	// Restored counts embedding rows whose vector was re-embedded and re-added.
	Restored int
}

// Clean returns true if no repair was needed.
func (r *ReconcileReport) Clean() bool {
	return r.Evicted == 0 && r.Restored == 0
}
