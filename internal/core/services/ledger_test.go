package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driving"
	"github.com/custodia-labs/mce/internal/rules"
)

func TestGapService(t *testing.T) {
	h := newHarness(t, domain.Settings{MaxPasses: 1}, rules.EntityMissingDescription, rules.FieldMissingDataType)
	h.seedOrderScans()
	h.assessor.verdicts["entity:order"] = domain.Assessment{Value: "A customer purchase", Confidence: 0.8}
	h.run(t, driving.RunRequest{Sources: orderSources})

	svc := NewGapService(h.graph, h.orch.evaluator, h.states)
	ctx := context.Background()

	t.Run("list all statuses", func(t *testing.T) {
		gaps, err := svc.List(ctx, domain.GapFilter{})
		require.NoError(t, err)
		assert.Equal(t, []string{orderGapID, amountGapID}, gapIDs(gaps))
	})

	t.Run("list by status", func(t *testing.T) {
		gaps, err := svc.List(ctx, domain.GapFilter{Statuses: []domain.GapStatus{domain.GapRequiresHumanInput}})
		require.NoError(t, err)
		assert.Equal(t, []string{amountGapID}, gapIDs(gaps))
	})

	t.Run("get with node and attempts", func(t *testing.T) {
		details, err := svc.Get(ctx, amountGapID)
		require.NoError(t, err)
		assert.Equal(t, domain.GapRequiresHumanInput, details.Gap.Status)
		require.NotNil(t, details.Node)
		assert.Equal(t, "amount", details.Node.Name())
		require.Len(t, details.Attempts, 1)
		assert.Equal(t, domain.StrategySemanticLookup, details.Attempts[0].Strategy)
	})

	t.Run("get errors", func(t *testing.T) {
		_, err := svc.Get(ctx, "")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		_, err = svc.Get(ctx, "nope|entity:x")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("summary", func(t *testing.T) {
		s, err := svc.Summary(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, s.Total)
		assert.Equal(t, 1, s.Resolved)
		assert.Equal(t, 1, s.Escalated)
		assert.Zero(t, s.Open)
		assert.Equal(t, 1, s.ByStatus[domain.GapResolved])
	})
}
