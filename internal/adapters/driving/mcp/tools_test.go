package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driving"
)

func TestServer_handleListGaps(t *testing.T) {
	ctx := context.Background()

	t.Run("returns gaps", func(t *testing.T) {
		gaps := &mockGapService{gaps: []domain.MetadataGap{sampleGap()}}
		server := newTestServer(t, gaps, &mockOrchestrator{})

		_, output, err := server.handleListGaps(ctx, nil, ListGapsInput{})

		require.NoError(t, err)
		require.Equal(t, 1, output.Count)
		got := output.Gaps[0]
		assert.Equal(t, "entity-description|entity:orders", got.ID)
		assert.Equal(t, "missing_description", got.Kind)
		assert.Equal(t, "entity", got.TargetType)
		assert.Equal(t, "entity:orders", got.TargetID)
		assert.Equal(t, "open", got.Status)
		assert.Equal(t, []string{"semantic_lookup", "targeted_doc_scan"}, got.SuggestedActions)
	})

	t.Run("default limit is applied", func(t *testing.T) {
		gaps := &mockGapService{}
		server := newTestServer(t, gaps, &mockOrchestrator{})

		_, _, err := server.handleListGaps(ctx, nil, ListGapsInput{})

		require.NoError(t, err)
		assert.Equal(t, defaultListLimit, gaps.lastFilter.Limit)
	})

	t.Run("passes filter through", func(t *testing.T) {
		gaps := &mockGapService{}
		server := newTestServer(t, gaps, &mockOrchestrator{})

		input := ListGapsInput{
			Statuses: []string{"failed", "requires_human_input"},
			Kinds:    []string{"missing_data_type"},
			RuleIDs:  []string{"field-type"},
			Limit:    5,
		}
		_, _, err := server.handleListGaps(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, []domain.GapStatus{domain.GapFailed, domain.GapRequiresHumanInput}, gaps.lastFilter.Statuses)
		assert.Equal(t, []domain.GapKind{domain.GapMissingDataType}, gaps.lastFilter.Kinds)
		assert.Equal(t, []string{"field-type"}, gaps.lastFilter.RuleIDs)
		assert.Equal(t, 5, gaps.lastFilter.Limit)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		server := newTestServer(t, &mockGapService{}, &mockOrchestrator{})

		_, _, err := server.handleListGaps(ctx, nil, ListGapsInput{Statuses: []string{"done"}})

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("returns error on service failure", func(t *testing.T) {
		server := newTestServer(t, &mockGapService{err: errors.New("ledger unavailable")}, &mockOrchestrator{})

		_, _, err := server.handleListGaps(ctx, nil, ListGapsInput{})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "ledger unavailable")
	})
}

func TestServer_handleGetGap(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("returns gap with attempts", func(t *testing.T) {
		details := &driving.GapDetails{
			Gap: sampleGap(),
			Node: &domain.NodeView{
				Ref:    domain.NodeRef{Type: domain.NodeTypeEntity, ID: "entity:orders"},
				Entity: &domain.DataEntity{ID: "entity:orders", Name: "orders"},
			},
			Attempts: domain.AttemptHistory{{
				GapID:      sampleGap().ID,
				Strategy:   domain.StrategySemanticLookup,
				At:         at,
				Outcome:    domain.OutcomeNoResult,
				Confidence: 0.2,
				Notes:      "no evidence",
			}},
		}
		server := newTestServer(t, &mockGapService{details: details}, &mockOrchestrator{})

		_, output, err := server.handleGetGap(ctx, nil, GetGapInput{GapID: sampleGap().ID})

		require.NoError(t, err)
		assert.Equal(t, "orders", output.NodeName)
		require.Len(t, output.Attempts, 1)
		assert.Equal(t, "semantic_lookup", output.Attempts[0].Strategy)
		assert.Equal(t, "no_result", output.Attempts[0].Outcome)
		assert.Equal(t, "2026-03-01T12:00:00Z", output.Attempts[0].At)
	})

	t.Run("missing node leaves name empty", func(t *testing.T) {
		server := newTestServer(t, &mockGapService{details: &driving.GapDetails{Gap: sampleGap()}}, &mockOrchestrator{})

		_, output, err := server.handleGetGap(ctx, nil, GetGapInput{GapID: sampleGap().ID})

		require.NoError(t, err)
		assert.Empty(t, output.NodeName)
		assert.Empty(t, output.Attempts)
	})

	t.Run("requires gap id", func(t *testing.T) {
		server := newTestServer(t, &mockGapService{}, &mockOrchestrator{})

		_, _, err := server.handleGetGap(ctx, nil, GetGapInput{})

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("propagates not found", func(t *testing.T) {
		server := newTestServer(t, &mockGapService{err: domain.ErrNotFound}, &mockOrchestrator{})

		_, _, err := server.handleGetGap(ctx, nil, GetGapInput{GapID: "nope"})

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestServer_handleSummary(t *testing.T) {
	summary := &driving.LedgerSummary{
		Total:     4,
		Open:      1,
		Resolved:  2,
		Escalated: 1,
		ByStatus: map[domain.GapStatus]int{
			domain.GapOpen:               1,
			domain.GapResolved:           1,
			domain.GapResolvedAuto:       1,
			domain.GapRequiresHumanInput: 1,
		},
	}
	server := newTestServer(t, &mockGapService{summary: summary}, &mockOrchestrator{})

	_, output, err := server.handleSummary(context.Background(), nil, SummaryInput{})

	require.NoError(t, err)
	assert.Equal(t, 4, output.Total)
	assert.Equal(t, 2, output.Resolved)
	assert.Equal(t, 1, output.ByStatus["resolved_auto"])
}

func TestServer_handleRunStatus(t *testing.T) {
	orch := &mockOrchestrator{status: &domain.RunStatus{
		RunID:      "run-1",
		Running:    true,
		Phase:      domain.PhaseGapResolution,
		Pass:       2,
		GapsWorked: 7,
	}}
	server := newTestServer(t, &mockGapService{}, orch)

	_, output, err := server.handleRunStatus(context.Background(), nil, RunStatusInput{})

	require.NoError(t, err)
	assert.Equal(t, "run-1", output.RunID)
	assert.True(t, output.Running)
	assert.Equal(t, string(domain.PhaseGapResolution), output.Phase)
	assert.Equal(t, 2, output.Pass)
	assert.Equal(t, 7, output.GapsWorked)
}

func TestServer_handleStartRun(t *testing.T) {
	ctx := context.Background()
	sources := []domain.ScanSource{{Kind: domain.SourceCode, Root: "./src"}}

	t.Run("runs without scanning by default", func(t *testing.T) {
		orch := &mockOrchestrator{summary: &domain.RunSummary{
			RunID:    "run-2",
			Reason:   domain.TerminationSuccess,
			Passes:   3,
			Resolved: 5,
			ByStatus: map[domain.GapStatus]int{domain.GapResolved: 5},
		}}
		server, err := NewServer(&Ports{Gaps: &mockGapService{}, Orchestrator: orch, Sources: sources})
		require.NoError(t, err)

		_, output, err := server.handleStartRun(ctx, nil, StartRunInput{Fresh: true})

		require.NoError(t, err)
		assert.Empty(t, orch.lastRequest.Sources)
		assert.True(t, orch.lastRequest.Fresh)
		assert.Equal(t, "run-2", output.RunID)
		assert.Equal(t, string(domain.TerminationSuccess), output.Reason)
		assert.Equal(t, 5, output.ByStatus["resolved"])
	})

	t.Run("scan passes configured sources", func(t *testing.T) {
		orch := &mockOrchestrator{summary: &domain.RunSummary{}}
		server, err := NewServer(&Ports{Gaps: &mockGapService{}, Orchestrator: orch, Sources: sources})
		require.NoError(t, err)

		_, _, err = server.handleStartRun(ctx, nil, StartRunInput{Scan: true})

		require.NoError(t, err)
		assert.Equal(t, sources, orch.lastRequest.Sources)
	})

	t.Run("returns run errors", func(t *testing.T) {
		orch := &mockOrchestrator{err: domain.ErrRunInProgress}
		server := newTestServer(t, &mockGapService{}, orch)

		_, _, err := server.handleStartRun(ctx, nil, StartRunInput{})

		assert.ErrorIs(t, err, domain.ErrRunInProgress)
	})
}

func TestServer_handleForceRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("forwards strategy", func(t *testing.T) {
		orch := &mockOrchestrator{}
		server := newTestServer(t, &mockGapService{}, orch)

		input := ForceRetryInput{GapID: "g1", Strategy: "targeted_code_scan"}
		_, output, err := server.handleForceRetry(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, "g1", orch.lastGapID)
		assert.Equal(t, domain.StrategyTargetedCodeScan, orch.lastStrategy)
		assert.Equal(t, "g1", output.GapID)
	})

	t.Run("rejects unknown strategy", func(t *testing.T) {
		orch := &mockOrchestrator{}
		server := newTestServer(t, &mockGapService{}, orch)

		_, _, err := server.handleForceRetry(ctx, nil, ForceRetryInput{GapID: "g1", Strategy: "guess"})

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Empty(t, orch.lastGapID)
	})

	t.Run("requires gap id", func(t *testing.T) {
		server := newTestServer(t, &mockGapService{}, &mockOrchestrator{})

		_, _, err := server.handleForceRetry(ctx, nil, ForceRetryInput{Strategy: "escalate"})

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}
