package driven

import (
	"context"

	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/core/domain"
)

// RecordWriter flattens joined records into the export artifact. The column
// set and order are fixed by the adapter; implementations return the path of
// the artifact they produced.
type RecordWriter interface {
	Write(ctx context.Context, records []domain.JoinedRecord) (path string, err error)
}
