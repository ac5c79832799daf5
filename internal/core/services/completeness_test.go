package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mce/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/rules"
)

const (
	orderGapID  = "entity-missing-description|entity:order"
	amountGapID = "field-missing-data-type|field:order.amount"
)

func TestEvaluateCompleteness_NoDuplicates(t *testing.T) {
	g := orderGraph(t)
	require.NoError(t, g.UpsertField(context.Background(), &domain.Field{
		ID: "field:order.amount", EntityID: "entity:order", Name: "amount",
	}))
	e := newEvaluator(t, g, rules.EntityMissingDescription, rules.FieldMissingDataType)
	ctx := context.Background()

	first, err := e.EvaluateCompleteness(ctx, domain.Scope{})
	require.NoError(t, err)
	second, err := e.EvaluateCompleteness(ctx, domain.Scope{})
	require.NoError(t, err)

	assert.Equal(t, []string{orderGapID, amountGapID}, gapIDs(first))
	assert.Equal(t, gapIDs(first), gapIDs(second))
	for i := range first {
		assert.Equal(t, first[i].CreatedAt, second[i].CreatedAt)
		assert.Equal(t, domain.GapOpen, second[i].Status)
	}

	all, err := g.ListGaps(ctx, domain.GapFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGetOpenGaps_PriorityOrder(t *testing.T) {
	g := memory.NewGraphStore()
	ctx := context.Background()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, p := range []int{3, 1, 2} {
		target := []string{"entity:a", "entity:b", "entity:c"}[i]
		_, err := g.UpsertGap(ctx, &domain.MetadataGap{
			ID:        domain.GapID("r", target),
			RuleID:    "r",
			Kind:      domain.GapMissingDescription,
			Target:    domain.NodeRef{Type: domain.NodeTypeEntity, ID: target},
			Priority:  p,
			Status:    domain.GapOpen,
			CreatedAt: created,
		})
		require.NoError(t, err)
	}

	e := NewCompletenessEvaluator(g, NewRuleEngine(rules.NewRegistry()))
	gaps, err := e.GetOpenGaps(ctx, domain.GapFilter{})
	require.NoError(t, err)

	var priorities []int
	for _, gap := range gaps {
		priorities = append(priorities, gap.Priority)
	}
	assert.Equal(t, []int{1, 2, 3}, priorities)

	limited, err := e.GetOpenGaps(ctx, domain.GapFilter{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"r|entity:b"}, gapIDs(limited))
}

func TestRankGaps(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	gaps := []domain.MetadataGap{
		{ID: "d", Priority: 2, AttemptCount: 0, CreatedAt: t0},
		{ID: "c", Priority: 1, AttemptCount: 2, CreatedAt: t0},
		{ID: "b", Priority: 1, AttemptCount: 0, CreatedAt: t0.Add(time.Second)},
		{ID: "a", Priority: 1, AttemptCount: 0, CreatedAt: t0.Add(time.Second)},
		{ID: "e", Priority: 1, AttemptCount: 0, CreatedAt: t0},
	}
	RankGaps(gaps)
	assert.Equal(t, []string{"e", "a", "b", "c", "d"}, gapIDs(gaps))
}

func TestEvaluate_OnlyWorkableGapsReturned(t *testing.T) {
	g := orderGraph(t)
	e := newEvaluator(t, g, rules.EntityMissingDescription)
	ctx := context.Background()

	_, err := e.Evaluate(ctx, domain.Scope{})
	require.NoError(t, err)

	gap := getGap(t, g, orderGapID)
	gap.Status = domain.GapRequiresHumanInput
	_, err = g.UpsertGap(ctx, gap)
	require.NoError(t, err)

	open, err := e.EvaluateCompleteness(ctx, domain.Scope{})
	require.NoError(t, err)
	assert.Empty(t, open)
	assert.Equal(t, domain.GapRequiresHumanInput, getGap(t, g, orderGapID).Status)
}

func TestEvaluate_RefreshesDescription(t *testing.T) {
	g := orderGraph(t)
	e := newEvaluator(t, g, rules.EntityMissingDescription)
	ctx := context.Background()

	_, err := e.Evaluate(ctx, domain.Scope{})
	require.NoError(t, err)

	// Renaming changes the description the rule produces.
	putEntity(t, g, domain.DataEntity{ID: "entity:order", Name: "PurchaseOrder"})
	changes, err := e.Evaluate(ctx, domain.Scope{})
	require.NoError(t, err)

	assert.Equal(t, 1, changes.Refreshed)
	assert.Zero(t, changes.Created)
	assert.Contains(t, getGap(t, g, orderGapID).Description, "PurchaseOrder")
}

func TestEvaluate_AutoResolve(t *testing.T) {
	g := orderGraph(t)
	e := newEvaluator(t, g, rules.EntityMissingDescription)
	ctx := context.Background()

	_, err := e.Evaluate(ctx, domain.Scope{})
	require.NoError(t, err)

	putEntity(t, g, domain.DataEntity{ID: "entity:order", Name: "Order", Description: "A purchase"})
	changes, err := e.Evaluate(ctx, domain.ScopeOf("entity:order"))
	require.NoError(t, err)

	assert.Equal(t, []string{orderGapID}, changes.AutoResolved)
	gap := getGap(t, g, orderGapID)
	assert.Equal(t, domain.GapResolvedAuto, gap.Status)
	assert.Contains(t, gap.ResolutionNotes, "no longer reproduces")
}

func TestEvaluate_ScopedLeavesOtherGaps(t *testing.T) {
	g := orderGraph(t)
	putEntity(t, g, domain.DataEntity{ID: "entity:customer", Name: "Customer"})
	e := newEvaluator(t, g, rules.EntityMissingDescription)
	ctx := context.Background()

	_, err := e.Evaluate(ctx, domain.Scope{})
	require.NoError(t, err)

	putEntity(t, g, domain.DataEntity{ID: "entity:customer", Name: "Customer", Description: "A buyer"})
	putEntity(t, g, domain.DataEntity{ID: "entity:order", Name: "Order", Description: "A purchase"})
	_, err = e.Evaluate(ctx, domain.ScopeOf("entity:order"))
	require.NoError(t, err)

	assert.Equal(t, domain.GapResolvedAuto, getGap(t, g, orderGapID).Status)
	assert.Equal(t, domain.GapOpen, getGap(t, g, "entity-missing-description|entity:customer").Status)
}

func TestEvaluate_FailingRuleKeepsItsGaps(t *testing.T) {
	g := orderGraph(t)
	reg := newRegistry(t)
	reg.Register(&failingRule{id: "broken"})
	e := NewCompletenessEvaluator(g, NewRuleEngine(reg))
	ctx := context.Background()

	_, err := g.UpsertGap(ctx, &domain.MetadataGap{
		ID:     domain.GapID("broken", "entity:order"),
		RuleID: "broken",
		Kind:   domain.GapMissingDescription,
		Target: domain.NodeRef{Type: domain.NodeTypeEntity, ID: "entity:order"},
		Status: domain.GapOpen,
	})
	require.NoError(t, err)

	changes, err := e.Evaluate(ctx, domain.Scope{})
	require.NoError(t, err)
	assert.Empty(t, changes.AutoResolved)
	assert.Contains(t, changes.RuleErrors, "broken")
	assert.Equal(t, domain.GapOpen, getGap(t, g, "broken|entity:order").Status)
}

func TestEvaluate_ReopenKeepsAttemptsAndPriority(t *testing.T) {
	g := orderGraph(t)
	e := newEvaluator(t, g, rules.EntityMissingDescription)
	ctx := context.Background()

	_, err := e.Evaluate(ctx, domain.Scope{})
	require.NoError(t, err)

	// Resolved after two attempts, with the priority raised along the way.
	gap := getGap(t, g, orderGapID)
	createdAt := gap.CreatedAt
	gap.Status = domain.GapResolved
	gap.AttemptCount = 2
	gap.Priority = 1
	_, err = g.UpsertGap(ctx, gap)
	require.NoError(t, err)

	changes, err := e.Evaluate(ctx, domain.Scope{})
	require.NoError(t, err)
	assert.Equal(t, 1, changes.Reopened)
	assert.Zero(t, changes.Created)

	reopened := getGap(t, g, orderGapID)
	assert.Equal(t, domain.GapOpen, reopened.Status)
	assert.Equal(t, 2, reopened.AttemptCount)
	assert.Equal(t, 1, reopened.Priority)
	assert.Equal(t, createdAt, reopened.CreatedAt)
	assert.Contains(t, reopened.ResolutionNotes, "reopened")
}

func TestEvaluate_DuplicateIsInvariantViolation(t *testing.T) {
	g := orderGraph(t)
	reg := newRegistry(t)
	reg.Register(duplicateRule{})
	e := NewCompletenessEvaluator(g, NewRuleEngine(reg))

	_, err := e.EvaluateCompleteness(context.Background(), domain.Scope{})
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
}
