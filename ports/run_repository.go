package ports

import (
	"context"

	"fieldload/domain/core"
	"fieldload/domain/fieldvalue"
)

// RunRepository records the summary of each finished load run. It keeps run
// history only; dedup state is never stored.
type RunRepository interface {
	Record(ctx context.Context, summary fieldvalue.BatchSummary) error
	Get(ctx context.Context, runID core.RunID) (*fieldvalue.BatchSummary, error)
	ListRecent(ctx context.Context, limit int) ([]fieldvalue.BatchSummary, error)
}
