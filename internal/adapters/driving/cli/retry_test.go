package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mce/internal/core/domain"
)

func TestRetryCmd_Use(t *testing.T) {
	assert.Equal(t, "retry [gap-id]", retryCmd.Use)
}

func TestRetryCmd_DefaultStrategy(t *testing.T) {
	orch := &mockOrchestrator{}
	setupServices(t, Services{Orchestrator: orch})

	out, err := execute(t, context.Background(), "retry", "g1")

	require.NoError(t, err)
	assert.Equal(t, "g1", orch.lastGapID)
	assert.Equal(t, domain.StrategyTargetedDocScan, orch.lastStrategy)
	assert.Contains(t, out, "Gap g1 will be retried with targeted_doc_scan on the next run.")
}

func TestRetryCmd_ExplicitStrategy(t *testing.T) {
	orch := &mockOrchestrator{}
	setupServices(t, Services{Orchestrator: orch})

	_, err := execute(t, context.Background(), "retry", "g2", "--strategy", "semantic_lookup")

	require.NoError(t, err)
	assert.Equal(t, domain.StrategySemanticLookup, orch.lastStrategy)
}

func TestRetryCmd_RejectsStrategy(t *testing.T) {
	for _, strategy := range []string{"guess", "escalate"} {
		t.Run(strategy, func(t *testing.T) {
			orch := &mockOrchestrator{}
			setupServices(t, Services{Orchestrator: orch})

			_, err := execute(t, context.Background(), "retry", "g3", "-s", strategy)

			require.Error(t, err)
			assert.Contains(t, err.Error(), "unknown strategy")
			assert.Empty(t, orch.lastGapID)
		})
	}
}

func TestRetryCmd_NotFound(t *testing.T) {
	setupServices(t, Services{Orchestrator: &mockOrchestrator{retryErr: domain.ErrNotFound}})

	_, err := execute(t, context.Background(), "retry", "nope")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "gap nope not found")
}

func TestRetryCmd_RequiresGapID(t *testing.T) {
	setupServices(t, Services{Orchestrator: &mockOrchestrator{}})

	_, err := execute(t, context.Background(), "retry")

	require.Error(t, err)
}
