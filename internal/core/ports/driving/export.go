package driving

import (
	"context"

	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/core/domain"
)

// ExportOptions tunes one pipeline run.
type ExportOptions struct {
	// ResumeRunID, when set, skips the partition fetch stage and merges the
	// named run's persisted resource artifacts instead.
	ResumeRunID string
}

// ExportReport summarises a completed run.
type ExportReport struct {
	// RunID is the uuid recorded in the run store.
	RunID string

	// OutputPath is the export artifact written by the record writer.
	OutputPath string

	Repositories int
	Partitions   int
	Resources    int
	WorkUnits    int
	SkippedUnits int
	Findings     int
	Records      int

	// Errors counts pagination sequences aborted by the platform's error
	// marker. Each one degrades the output without failing the run.
	Errors int
}

// ExportOrchestrator runs the fetch-aggregate-join-export pipeline.
type ExportOrchestrator interface {
	// Run executes the full pipeline and returns its report. The returned
	// error is non-nil only for fatal failures (authentication, export
	// sink); degraded-output conditions are reported in the counters.
	Run(ctx context.Context, opts ExportOptions) (*ExportReport, error)
}

// RepositoryLister enumerates the platform's scanned repositories for
// display surfaces. The connector satisfies it directly.
type RepositoryLister interface {
	ListRepositories(ctx context.Context) ([]domain.Repository, error)
}
