package driving

import (
	"context"

	"github.com/custodia-labs/mce/internal/core/domain"
)

// Orchestrator runs the gap-driven extraction loop.
type Orchestrator interface {
	// Run scans the sources, detects gaps and resolves them until termination.
	// Only one run may be active at a time; a concurrent call returns domain.ErrRunInProgress.
	// An invariant violation aborts the run and is returned wrapped.
	Run(ctx context.Context, req RunRequest) (*domain.RunSummary, error)

	// Status returns the state of the active or most recent run.
	Status(ctx context.Context) (*domain.RunStatus, error)

	// ForceRetry requests that the next attempt on a gap uses the given strategy,
	// reopening the gap if it was escalated or failed.
	ForceRetry(ctx context.Context, gapID string, strategy domain.Strategy) error
}

// RunRequest configures a single orchestrator run.
type RunRequest struct {
	// RunID names the run. Generated when empty.
	RunID string

	// Sources are scanned in parallel during initial scanning.
	// When empty, the run skips scanning and works on the existing graph.
	Sources []domain.ScanSource

	// Fresh discards the attempt history of earlier runs.
	// By default a run continues from the latest checkpoint so no strategy is repeated.
	Fresh bool
}
