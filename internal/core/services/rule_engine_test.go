package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mce/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/rules"
)

func orderGraph(t *testing.T) *memory.GraphStore {
	t.Helper()
	g := memory.NewGraphStore()
	putEntity(t, g, domain.DataEntity{ID: "entity:order", Name: "Order", Confidence: 0.9})
	putField(t, g, domain.Field{
		ID: "field:order.amount", EntityID: "entity:order", Name: "amount", Description: "Total",
		Provenance: []domain.Provenance{{SourceFile: "models/order.go", Line: 12}},
	})
	return g
}

func TestRuleEngine_Evaluate(t *testing.T) {
	g := orderGraph(t)
	reg := newRegistry(t, rules.EntityMissingDescription)
	engine := NewRuleEngine(reg)
	rule, _ := reg.Get(rules.EntityMissingDescription)

	candidates, err := engine.Evaluate(context.Background(), rule, g, domain.Scope{})
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.Equal(t, rules.EntityMissingDescription, c.RuleID)
	assert.Equal(t, domain.GapMissingDescription, c.Kind)
	assert.Equal(t, domain.NodeRef{Type: domain.NodeTypeEntity, ID: "entity:order"}, c.Target)
	assert.Equal(t, 2, c.Priority)
	assert.Equal(t, domain.SeverityMedium, c.Severity)
	assert.Equal(t, "entity-missing-description|entity:order", c.GapID())
}

func TestRuleEngine_Idempotent(t *testing.T) {
	g := orderGraph(t)
	engine := NewRuleEngine(newRegistry(t,
		rules.EntityMissingDescription, rules.FieldMissingDataType, rules.FieldMissingDescription))

	first := engine.EvaluateAll(context.Background(), g, domain.Scope{})
	second := engine.EvaluateAll(context.Background(), g, domain.Scope{})

	assert.Empty(t, first.Errors)
	assert.Equal(t, first.Candidates, second.Candidates)
	assert.Len(t, first.Candidates, 2)
}

func TestRuleEngine_ErrorIsolation(t *testing.T) {
	g := orderGraph(t)
	reg := newRegistry(t, rules.EntityMissingDescription)
	reg.Register(&failingRule{id: "broken"})
	reg.Register(&failingRule{id: "panicky", panic: true})

	report := NewRuleEngine(reg).EvaluateAll(context.Background(), g, domain.Scope{})

	require.Len(t, report.Candidates, 1)
	assert.Equal(t, rules.EntityMissingDescription, report.Candidates[0].RuleID)
	assert.True(t, report.Clean[rules.EntityMissingDescription])
	assert.False(t, report.Clean["broken"])
	assert.Contains(t, report.Errors, "broken")
	assert.ErrorContains(t, report.Errors["panicky"], "panicked")
}

func TestRuleEngine_Scoped(t *testing.T) {
	g := orderGraph(t)
	putEntity(t, g, domain.DataEntity{ID: "entity:customer", Name: "Customer"})
	engine := NewRuleEngine(newRegistry(t, rules.EntityMissingDescription))

	report := engine.EvaluateAll(context.Background(), g, domain.ScopeOf("entity:customer"))
	require.Len(t, report.Candidates, 1)
	assert.Equal(t, "entity:customer", report.Candidates[0].Target.ID)

	all := engine.EvaluateAll(context.Background(), g, domain.Scope{})
	assert.Len(t, all.Candidates, 2)
}
