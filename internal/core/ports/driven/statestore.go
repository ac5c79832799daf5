package driven

import (
	"context"

	"github.com/custodia-labs/mce/internal/core/domain"
)

// StateStore persists agent state checkpoints.
type StateStore interface {
	// SaveState stores or replaces the checkpoint for a run.
	SaveState(ctx context.Context, state *domain.AgentState) error

	// LoadState retrieves the checkpoint for a run.
	// Returns domain.ErrNotFound if the run has no checkpoint.
	LoadState(ctx context.Context, runID string) (*domain.AgentState, error)

	// LatestState retrieves the most recently updated checkpoint.
	// Returns domain.ErrNotFound if no checkpoint exists.
	LatestState(ctx context.Context) (*domain.AgentState, error)

	// Close releases resources.
	Close() error
}
