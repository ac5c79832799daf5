package driving

import (
	"context"

	"github.com/custodia-labs/mce/internal/core/domain"
)

// CompletenessEvaluator detects gaps in the metadata graph and maintains the gap ledger.
type CompletenessEvaluator interface {
	// EvaluateCompleteness runs every active rule over scope, upserts the gap ledger
	// and returns the open and retryable gaps in resolution order.
	EvaluateCompleteness(ctx context.Context, scope domain.Scope) ([]domain.MetadataGap, error)

	// GetOpenGaps returns ledger gaps matching filter in resolution order.
	// An empty status filter selects open and retryable gaps.
	GetOpenGaps(ctx context.Context, filter domain.GapFilter) ([]domain.MetadataGap, error)
}
