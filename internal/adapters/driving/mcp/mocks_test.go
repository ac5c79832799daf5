package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driving"
)

// mockOrchestrator is a mock implementation of driving.Orchestrator.
type mockOrchestrator struct {
	summary *domain.RunSummary
	status  *domain.RunStatus
	err     error

	lastRequest  driving.RunRequest
	lastGapID    string
	lastStrategy domain.Strategy
}

func (m *mockOrchestrator) Run(_ context.Context, req driving.RunRequest) (*domain.RunSummary, error) {
	m.lastRequest = req
	return m.summary, m.err
}

func (m *mockOrchestrator) Status(_ context.Context) (*domain.RunStatus, error) {
	return m.status, m.err
}

func (m *mockOrchestrator) ForceRetry(_ context.Context, gapID string, strategy domain.Strategy) error {
	m.lastGapID = gapID
	m.lastStrategy = strategy
	return m.err
}

// mockGapService is a mock implementation of driving.GapService.
type mockGapService struct {
	gaps    []domain.MetadataGap
	details *driving.GapDetails
	summary *driving.LedgerSummary
	err     error

	lastFilter domain.GapFilter
}

func (m *mockGapService) List(_ context.Context, filter domain.GapFilter) ([]domain.MetadataGap, error) {
	m.lastFilter = filter
	return m.gaps, m.err
}

func (m *mockGapService) Get(_ context.Context, _ string) (*driving.GapDetails, error) {
	return m.details, m.err
}

func (m *mockGapService) Summary(_ context.Context) (*driving.LedgerSummary, error) {
	return m.summary, m.err
}

func newTestServer(t *testing.T, gaps *mockGapService, orch *mockOrchestrator) *Server {
	t.Helper()
	s, err := NewServer(&Ports{Gaps: gaps, Orchestrator: orch})
	require.NoError(t, err)
	return s
}

func sampleGap() domain.MetadataGap {
	return domain.MetadataGap{
		ID:               domain.GapID("entity-description", "entity:orders"),
		RuleID:           "entity-description",
		Kind:             domain.GapMissingDescription,
		Target:           domain.NodeRef{Type: domain.NodeTypeEntity, ID: "entity:orders"},
		Description:      "entity orders has no description",
		Severity:         domain.SeverityHigh,
		Priority:         1,
		Status:           domain.GapOpen,
		SuggestedActions: []domain.Strategy{domain.StrategySemanticLookup, domain.StrategyTargetedDocScan},
	}
}
