package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driven"
	"github.com/custodia-labs/mce/internal/core/ports/driving"
	"github.com/custodia-labs/mce/internal/logger"
)

// Ensure CompletenessEvaluator implements the interface.
var _ driving.CompletenessEvaluator = (*CompletenessEvaluator)(nil)

// CompletenessEvaluator maintains the gap ledger from rule evaluations.
// It holds no state of its own beyond the graph store it writes to.
type CompletenessEvaluator struct {
	graph  driven.GraphStore
	engine *RuleEngine
	now    func() time.Time

	// mu serialises ledger updates from concurrent scoped evaluations.
	mu sync.Mutex
}

// NewCompletenessEvaluator creates an evaluator writing to the graph's gap ledger.
func NewCompletenessEvaluator(graph driven.GraphStore, engine *RuleEngine) *CompletenessEvaluator {
	return &CompletenessEvaluator{
		graph:  graph,
		engine: engine,
		now:    time.Now,
	}
}

// SetClock replaces the time source used for gap timestamps.
func (c *CompletenessEvaluator) SetClock(now func() time.Time) {
	c.now = now
}

// LedgerChanges counts what one evaluation did to the ledger.
type LedgerChanges struct {
	Created      int
	Reopened     int
	Refreshed    int
	AutoResolved []string
	RuleErrors   map[string]error
}

// EvaluateCompleteness runs every active rule over scope, upserts the gap ledger
// and returns the open and retryable gaps in resolution order.
func (c *CompletenessEvaluator) EvaluateCompleteness(ctx context.Context, scope domain.Scope) ([]domain.MetadataGap, error) {
	if _, err := c.Evaluate(ctx, scope); err != nil {
		return nil, err
	}
	return c.GetOpenGaps(ctx, domain.GapFilter{})
}

// Evaluate upserts the ledger for scope and reports the changes made.
//
// Candidates create new open gaps, refresh the description of existing ones and
// reopen resolved ones with their attempt count and priority intact. Gaps in scope
// whose rule ran cleanly and no longer reports them are marked resolved_auto.
func (c *CompletenessEvaluator) Evaluate(ctx context.Context, scope domain.Scope) (*LedgerChanges, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	report := c.engine.EvaluateAll(ctx, c.graph, scope)
	changes := &LedgerChanges{RuleErrors: report.Errors}

	detected := make(map[string]struct{}, len(report.Candidates))
	for _, cand := range report.Candidates {
		id := cand.GapID()
		if _, dup := detected[id]; dup {
			return nil, fmt.Errorf("%w: rule %s reported target %s twice",
				domain.ErrInvariantViolation, cand.RuleID, cand.Target.ID)
		}
		detected[id] = struct{}{}

		if err := c.upsertCandidate(ctx, cand, changes); err != nil {
			return nil, err
		}
	}

	if err := c.autoResolve(ctx, scope, report.Clean, detected, changes); err != nil {
		return nil, err
	}

	if changes.Created+changes.Reopened+len(changes.AutoResolved) > 0 {
		logger.Debug("Ledger: %d created, %d reopened, %d auto-resolved",
			changes.Created, changes.Reopened, len(changes.AutoResolved))
	}
	return changes, nil
}

func (c *CompletenessEvaluator) upsertCandidate(ctx context.Context, cand domain.CandidateGap, changes *LedgerChanges) error {
	now := c.now()

	existing, err := c.graph.GetGap(ctx, cand.GapID())
	if errors.Is(err, domain.ErrNotFound) {
		gap := &domain.MetadataGap{
			ID:               cand.GapID(),
			RuleID:           cand.RuleID,
			Kind:             cand.Kind,
			Target:           cand.Target,
			Description:      cand.Description,
			Severity:         cand.Severity,
			Priority:         cand.Priority,
			Status:           domain.GapOpen,
			CreatedAt:        now,
			UpdatedAt:        now,
			SuggestedActions: slices.Clone(cand.Suggested),
		}
		if _, err := c.graph.UpsertGap(ctx, gap); err != nil {
			return fmt.Errorf("create gap %s: %w", gap.ID, err)
		}
		changes.Created++
		recordGapDetected(string(gap.Kind), "created")
		return nil
	}
	if err != nil {
		return fmt.Errorf("get gap %s: %w", cand.GapID(), err)
	}

	gap := existing.Clone()
	switch {
	case gap.Status.IsResolved():
		// Reopened gaps keep their attempt count and last priority.
		gap.Status = domain.GapOpen
		gap.Description = cand.Description
		gap.AppendNote(fmt.Sprintf("reopened at %s: deficiency detected again", now.Format(time.RFC3339)))
		changes.Reopened++
		recordGapDetected(string(gap.Kind), "reopened")
		recordTransition(string(domain.GapOpen))
	case gap.Description != cand.Description:
		gap.Description = cand.Description
		changes.Refreshed++
	default:
		return nil
	}

	gap.UpdatedAt = now
	if _, err := c.graph.UpsertGap(ctx, &gap); err != nil {
		return fmt.Errorf("update gap %s: %w", gap.ID, err)
	}
	return nil
}

func (c *CompletenessEvaluator) autoResolve(
	ctx context.Context,
	scope domain.Scope,
	clean map[string]bool,
	detected map[string]struct{},
	changes *LedgerChanges,
) error {
	filter := domain.GapFilter{TargetIDs: scope.NodeIDs}
	for _, s := range domain.AllGapStatuses {
		if !s.IsResolved() {
			filter.Statuses = append(filter.Statuses, s)
		}
	}

	gaps, err := c.graph.ListGaps(ctx, filter)
	if err != nil {
		return fmt.Errorf("list gaps: %w", err)
	}

	now := c.now()
	for i := range gaps {
		gap := gaps[i]
		if !clean[gap.RuleID] || !scope.Contains(gap.Target.ID) {
			continue
		}
		if _, still := detected[gap.ID]; still {
			continue
		}
		gap.Status = domain.GapResolvedAuto
		gap.UpdatedAt = now
		gap.AppendNote("condition no longer reproduces")
		if _, err := c.graph.UpsertGap(ctx, &gap); err != nil {
			return fmt.Errorf("auto-resolve gap %s: %w", gap.ID, err)
		}
		changes.AutoResolved = append(changes.AutoResolved, gap.ID)
		recordTransition(string(domain.GapResolvedAuto))
	}
	return nil
}

// GetOpenGaps returns ledger gaps matching filter in resolution order.
// An empty status filter selects open and retryable gaps.
func (c *CompletenessEvaluator) GetOpenGaps(ctx context.Context, filter domain.GapFilter) ([]domain.MetadataGap, error) {
	if len(filter.Statuses) == 0 {
		filter.Statuses = []domain.GapStatus{domain.GapOpen, domain.GapRequiresRetry}
	}
	limit := filter.Limit
	filter.Limit = 0

	gaps, err := c.graph.ListGaps(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list gaps: %w", err)
	}

	RankGaps(gaps)
	if limit > 0 && len(gaps) > limit {
		gaps = gaps[:limit]
	}
	return gaps, nil
}

// RankGaps sorts gaps into resolution order: priority, then attempt count,
// then creation time, then identity.
func RankGaps(gaps []domain.MetadataGap) {
	slices.SortStableFunc(gaps, func(a, b domain.MetadataGap) int {
		if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
			return c
		}
		if c := cmp.Compare(a.AttemptCount, b.AttemptCount); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
