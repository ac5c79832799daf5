package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mce/internal/core/domain"
)

func TestStateStore_SaveAndLoad(t *testing.T) {
	store := NewStateStore()
	ctx := context.Background()

	_, err := store.LatestState(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	state := domain.NewAgentState("run-1", time.Now())
	state.Record(domain.AttemptRecord{GapID: "g", Strategy: domain.StrategySemanticLookup})
	require.NoError(t, store.SaveState(ctx, state))

	// Mutating the caller's copy does not change the checkpoint
	state.Record(domain.AttemptRecord{GapID: "g", Strategy: domain.StrategyTargetedCodeScan})

	loaded, err := store.LoadState(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, loaded.History("g"), 1)

	require.NoError(t, store.SaveState(ctx, domain.NewAgentState("run-2", time.Now())))
	latest, err := store.LatestState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-2", latest.RunID)

	_, err = store.LoadState(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStateStore_SaveState_Invalid(t *testing.T) {
	store := NewStateStore()
	assert.ErrorIs(t, store.SaveState(context.Background(), &domain.AgentState{}), domain.ErrInvalidInput)
	assert.NoError(t, store.Close())
}
