package driving

import (
	"context"

	"github.com/custodia-labs/mce/internal/core/domain"
)

// GapService exposes the gap ledger to external actors.
type GapService interface {
	// List returns gaps matching the filter in resolution order.
	List(ctx context.Context, filter domain.GapFilter) ([]domain.MetadataGap, error)

	// Get returns a gap with its target node and attempt history.
	Get(ctx context.Context, gapID string) (*GapDetails, error)

	// Summary counts ledger gaps by status.
	Summary(ctx context.Context) (*LedgerSummary, error)
}

// GapDetails is a gap together with the context needed to act on it.
type GapDetails struct {
	Gap domain.MetadataGap

	// Node is the target node, nil if it no longer exists.
	Node *domain.NodeView

	// Attempts is the history from the latest checkpoint.
	Attempts domain.AttemptHistory
}

// LedgerSummary counts gaps by status.
type LedgerSummary struct {
	Total     int
	Open      int
	Resolved  int
	Failed    int
	Escalated int
	ByStatus  map[domain.GapStatus]int
}
