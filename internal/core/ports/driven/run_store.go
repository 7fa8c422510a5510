package driven

import (
	"context"

	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/core/domain"
)

// RunStore persists run lifecycle records and stage artifacts. Artifacts are
// resumability aids only; no stage reads them on the happy path.
type RunStore interface {
	// CreateRun records the start of a run.
	CreateRun(ctx context.Context, run domain.Run) error

	// FinishRun stamps the run's final status and counters.
	FinishRun(ctx context.Context, run domain.Run) error

	// GetRun returns a run by id, or domain.ErrRunNotFound.
	GetRun(ctx context.Context, id string) (*domain.Run, error)

	// SaveArtifact persists one stage output.
	SaveArtifact(ctx context.Context, artifact domain.Artifact) error

	// Artifacts returns a run's artifacts for one stage in Seq order.
	Artifacts(ctx context.Context, runID, stage string) ([]domain.Artifact, error)

	// Close releases the underlying database.
	Close() error
}
