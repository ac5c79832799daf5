package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mce/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driven"
	"github.com/custodia-labs/mce/internal/rules"
)

// --- Mock implementations shared by the service tests ---

// mockScanner implements driven.Scanner with canned results.
type mockScanner struct {
	kind     domain.SourceKind
	broad    *domain.ExtractedItems
	broadErr error

	// targeted returns the result of a targeted scan for the focus node.
	targeted func(loc domain.Location, focus domain.NodeRef) (*domain.ExtractedItems, error)

	mu    sync.Mutex
	calls []domain.Location
}

func (m *mockScanner) Kind() domain.SourceKind { return m.kind }

func (m *mockScanner) ScanBroad(_ context.Context, _ domain.ScanSource) (*domain.ExtractedItems, error) {
	if m.broadErr != nil {
		return nil, m.broadErr
	}
	return m.broad, nil
}

func (m *mockScanner) ScanTargeted(_ context.Context, loc domain.Location, focus domain.NodeRef) (*domain.ExtractedItems, error) {
	m.mu.Lock()
	m.calls = append(m.calls, loc)
	m.mu.Unlock()
	if m.targeted == nil {
		return &domain.ExtractedItems{}, nil
	}
	return m.targeted(loc, focus)
}

func (m *mockScanner) targetedCalls() []domain.Location {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Location(nil), m.calls...)
}

// mockAssessor implements driven.Assessor with a per-target verdict.
type mockAssessor struct {
	verdicts map[string]domain.Assessment
	err      error

	// hook runs before every verdict.
	hook func()

	mu    sync.Mutex
	calls []string
}

func (m *mockAssessor) Assess(_ context.Context, gap *domain.MetadataGap, _ *domain.NodeView, _ []domain.SemanticHit) (*domain.Assessment, error) {
	m.mu.Lock()
	m.calls = append(m.calls, gap.ID)
	m.mu.Unlock()
	if m.hook != nil {
		m.hook()
	}
	if m.err != nil {
		return nil, m.err
	}
	a := m.verdicts[gap.Target.ID]
	return &a, nil
}

// failingRule implements driven.GapRule and always fails selection.
type failingRule struct {
	id    string
	panic bool
}

func (r *failingRule) Definition() domain.RuleDefinition {
	return domain.RuleDefinition{
		ID:         r.id,
		Kind:       domain.GapMissingDescription,
		TargetType: domain.NodeTypeEntity,
		Priority:   1,
	}
}

func (r *failingRule) Select(context.Context, driven.GraphView, domain.Scope) ([]domain.NodeView, error) {
	if r.panic {
		panic("boom")
	}
	return nil, errors.New("select failed")
}

func (r *failingRule) Check(*domain.NodeView) (bool, string) { return false, "" }

// duplicateRule implements driven.GapRule and selects every entity twice.
type duplicateRule struct{}

func (duplicateRule) Definition() domain.RuleDefinition {
	return domain.RuleDefinition{
		ID:         "duplicate",
		Kind:       domain.GapMissingDescription,
		TargetType: domain.NodeTypeEntity,
		Priority:   1,
	}
}

func (duplicateRule) Select(ctx context.Context, g driven.GraphView, scope domain.Scope) ([]domain.NodeView, error) {
	nodes, err := rules.SelectNodes(ctx, g, scope, domain.NodeTypeEntity)
	return append(nodes, nodes...), err
}

func (duplicateRule) Check(*domain.NodeView) (bool, string) { return true, "always" }

// --- Fixtures ---

// fixedClock returns a clock that advances one second per call.
func fixedClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

// newRegistry activates the named built-in rules.
func newRegistry(t *testing.T, ids ...string) *rules.Registry {
	t.Helper()
	r := rules.NewRegistry()
	rules.RegisterDefaults(r)
	for _, id := range ids {
		rule, err := r.Build(id, nil)
		require.NoError(t, err)
		r.Register(rule)
	}
	return r
}

// newEvaluator wires an evaluator over the store with the named built-in rules.
func newEvaluator(t *testing.T, g *memory.GraphStore, ids ...string) *CompletenessEvaluator {
	t.Helper()
	e := NewCompletenessEvaluator(g, NewRuleEngine(newRegistry(t, ids...)))
	e.SetClock(fixedClock())
	return e
}

func putEntity(t *testing.T, g *memory.GraphStore, e domain.DataEntity) {
	t.Helper()
	require.NoError(t, g.UpsertEntity(context.Background(), &e))
}

func putField(t *testing.T, g *memory.GraphStore, f domain.Field) {
	t.Helper()
	require.NoError(t, g.UpsertField(context.Background(), &f))
	require.NoError(t, g.UpsertRelationship(context.Background(), domain.Relationship{
		FromID: f.EntityID, ToID: f.ID, Type: domain.RelHasField,
	}))
}

func gapIDs(gaps []domain.MetadataGap) []string {
	ids := make([]string, len(gaps))
	for i := range gaps {
		ids[i] = gaps[i].ID
	}
	return ids
}

func getGap(t *testing.T, g *memory.GraphStore, id string) *domain.MetadataGap {
	t.Helper()
	gap, err := g.GetGap(context.Background(), id)
	require.NoError(t, err)
	return gap
}
