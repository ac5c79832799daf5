package cli

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mce/internal/adapters/driven/config/file"
	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driven"
	"github.com/custodia-labs/mce/internal/core/ports/driving"
)

// mockOrchestrator implements driving.Orchestrator for testing.
type mockOrchestrator struct {
	mu       sync.Mutex
	summary  *domain.RunSummary
	status   *domain.RunStatus
	runErr   error
	retryErr error
	onRun    func(n int, req driving.RunRequest)

	requests     []driving.RunRequest
	lastGapID    string
	lastStrategy domain.Strategy
}

func (m *mockOrchestrator) Run(_ context.Context, req driving.RunRequest) (*domain.RunSummary, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	n := len(m.requests)
	onRun := m.onRun
	m.mu.Unlock()

	if onRun != nil {
		onRun(n, req)
	}
	if m.runErr != nil {
		return m.summary, m.runErr
	}
	if m.summary != nil {
		return m.summary, nil
	}
	return &domain.RunSummary{RunID: "run-test", Reason: domain.TerminationSuccess}, nil
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

func (m *mockOrchestrator) runRequests() []driving.RunRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]driving.RunRequest(nil), m.requests...)
}

// mockGapService implements driving.GapService for testing.
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

// fakeWatcher implements driven.Watcher by replaying paths.
type fakeWatcher struct {
	paths []string
}

func (w *fakeWatcher) Watch(ctx context.Context, _ string) (<-chan string, error) {
	out := make(chan string)
	go func() {
		defer close(out)
		for _, p := range w.paths {
			select {
			case out <- p:
			case <-ctx.Done():
				return
			}
		}
		<-ctx.Done()
	}()
	return out, nil
}

// setupServices swaps the package services and resets command flags.
func setupServices(t *testing.T, s Services) {
	t.Helper()

	old := Services{
		Orchestrator: orchestrator,
		Gaps:         gapService,
		Config:       appConfig,
		Sources:      scanSources,
		Watchers:     watchers,
	}
	SetServices(s)
	resetFlags()

	t.Cleanup(func() {
		SetServices(old)
		resetFlags()
	})
}

func resetFlags() {
	runFresh, runID, runNoScan, runJSON, runMetricsAddr = false, "", false, false, ""
	gapsStatuses, gapsKinds, gapsRules, gapsLimit, gapsJSON = nil, nil, nil, 0, false
	retryStrategy = string(domain.StrategyTargetedDocScan)
	watchSkipInitial = false
	verbose = false
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	setContext(rootCmd, ctx)
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.ExecuteContext(ctx)
	return buf.String(), err
}

// setContext replaces the context cobra keeps on each command after a run.
func setContext(cmd *cobra.Command, ctx context.Context) {
	cmd.SetContext(ctx)
	for _, sub := range cmd.Commands() {
		setContext(sub, ctx)
	}
}

func sampleGap() domain.MetadataGap {
	return domain.MetadataGap{
		ID:               domain.GapID("field-type", "field:orders.total"),
		RuleID:           "field-type",
		Kind:             domain.GapMissingDataType,
		Target:           domain.NodeRef{Type: domain.NodeTypeField, ID: "field:orders.total"},
		Description:      "field total has no data type",
		Severity:         domain.SeverityMedium,
		Priority:         2,
		Status:           domain.GapRequiresRetry,
		AttemptCount:     1,
		SuggestedActions: []domain.Strategy{domain.StrategyTargetedCodeScan, domain.StrategyTargetedDocScan},
	}
}

func testConfig() *file.Config {
	return &file.Config{
		Orchestrator: file.OrchestratorConfig{
			ConfidenceThreshold: 0.6,
			MaxAttempts:         3,
			MaxPasses:           10,
			Workers:             4,
			SemanticTopK:        5,
			CollaboratorRetries: 3,
		},
		LLM:       file.LLMConfig{Provider: file.ProviderNone, MaxTokens: 512},
		Embedding: file.EmbeddingConfig{Provider: file.ProviderOllama, Model: "nomic-embed-text"},
		Scan:      file.ScanConfig{CodePaths: []string{"./internal"}, DocPaths: []string{"./docs"}},
	}
}

var _ driven.Watcher = (*fakeWatcher)(nil)
