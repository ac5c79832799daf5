package tui

import (
	"context"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driving"
)

// mockOrchestrator implements driving.Orchestrator for testing.
type mockOrchestrator struct {
	status   *domain.RunStatus
	retryErr error

	lastGapID    string
	lastStrategy domain.Strategy
}

func (m *mockOrchestrator) Run(_ context.Context, _ driving.RunRequest) (*domain.RunSummary, error) {
	return &domain.RunSummary{}, nil
}

func (m *mockOrchestrator) Status(_ context.Context) (*domain.RunStatus, error) {
	if m.status == nil {
		return &domain.RunStatus{}, nil
	}
	return m.status, nil
}

func (m *mockOrchestrator) ForceRetry(_ context.Context, gapID string, strategy domain.Strategy) error {
	m.lastGapID = gapID
	m.lastStrategy = strategy
	return m.retryErr
}

// mockGapService implements driving.GapService for testing.
type mockGapService struct {
	gaps    []domain.MetadataGap
	details *driving.GapDetails
	summary *driving.LedgerSummary
	err     error

	lastID string
}

func (m *mockGapService) List(_ context.Context, _ domain.GapFilter) ([]domain.MetadataGap, error) {
	return m.gaps, m.err
}

func (m *mockGapService) Get(_ context.Context, id string) (*driving.GapDetails, error) {
	m.lastID = id
	return m.details, m.err
}

func (m *mockGapService) Summary(_ context.Context) (*driving.LedgerSummary, error) {
	return m.summary, m.err
}

func sampleGap() domain.MetadataGap {
	return domain.MetadataGap{
		ID:          domain.GapID("field_missing_description", "field:order.amount"),
		RuleID:      "field_missing_description",
		Kind:        domain.GapMissingDescription,
		Target:      domain.NodeRef{Type: domain.NodeTypeField, ID: "field:order.amount"},
		Description: "Field amount has no description",
		Severity:    domain.SeverityMedium,
		Priority:    2,
		Status:      domain.GapOpen,
	}
}

func newTestPorts() (*Ports, *mockGapService, *mockOrchestrator) {
	gaps := &mockGapService{
		gaps:    []domain.MetadataGap{sampleGap()},
		summary: &driving.LedgerSummary{Total: 1, Open: 1},
	}
	orch := &mockOrchestrator{}
	return &Ports{Gaps: gaps, Orchestrator: orch}, gaps, orch
}
