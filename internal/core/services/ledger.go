package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driven"
	"github.com/custodia-labs/mce/internal/core/ports/driving"
)

// Ensure GapService implements the interface.
var _ driving.GapService = (*GapService)(nil)

// GapService exposes the gap ledger to the CLI and MCP surfaces.
type GapService struct {
	graph     driven.GraphStore
	evaluator *CompletenessEvaluator
	states    driven.StateStore
}

// NewGapService creates a new gap service. states is optional.
func NewGapService(graph driven.GraphStore, evaluator *CompletenessEvaluator, states driven.StateStore) *GapService {
	return &GapService{
		graph:     graph,
		evaluator: evaluator,
		states:    states,
	}
}

// List returns gaps matching the filter in resolution order.
func (s *GapService) List(ctx context.Context, filter domain.GapFilter) ([]domain.MetadataGap, error) {
	if len(filter.Statuses) == 0 {
		filter.Statuses = domain.AllGapStatuses
	}
	return s.evaluator.GetOpenGaps(ctx, filter)
}

// Get returns a gap with its target node and attempt history.
func (s *GapService) Get(ctx context.Context, gapID string) (*driving.GapDetails, error) {
	if gapID == "" {
		return nil, fmt.Errorf("%w: gap id is required", domain.ErrInvalidInput)
	}

	gap, err := s.graph.GetGap(ctx, gapID)
	if err != nil {
		return nil, fmt.Errorf("get gap: %w", err)
	}

	details := &driving.GapDetails{Gap: *gap}

	node, err := s.graph.Node(ctx, gap.Target)
	switch {
	case err == nil:
		details.Node = node
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("get target: %w", err)
	}

	if s.states != nil {
		state, err := s.states.LatestState(ctx)
		switch {
		case err == nil:
			details.Attempts = state.History(gapID)
		case !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("load latest state: %w", err)
		}
	}
	return details, nil
}

// Summary counts ledger gaps by status.
func (s *GapService) Summary(ctx context.Context) (*driving.LedgerSummary, error) {
	gaps, err := s.graph.ListGaps(ctx, domain.GapFilter{})
	if err != nil {
		return nil, fmt.Errorf("list gaps: %w", err)
	}

	summary := &driving.LedgerSummary{
		Total:    len(gaps),
		ByStatus: make(map[domain.GapStatus]int),
	}
	for i := range gaps {
		st := gaps[i].Status
		summary.ByStatus[st]++
		switch {
		case st.IsResolved():
			summary.Resolved++
		case st == domain.GapFailed:
			summary.Failed++
		case st == domain.GapRequiresHumanInput:
			summary.Escalated++
		default:
			summary.Open++
		}
	}
	return summary, nil
}
