package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNodeView_CodeLocation(t *testing.T) {
	v := &NodeView{
		Ref: NodeRef{Type: NodeTypeField, ID: "field:order.amount"},
		Field: &Field{
			ID:       "field:order.amount",
			EntityID: "entity:order",
			Provenance: []Provenance{
				{SourceFile: "old.go", Line: 1},
				{DocumentID: "document:a"},
				{SourceFile: "order.go", Line: 12},
			},
		},
	}

	loc, ok := v.CodeLocation()
	assert.True(t, ok)
	assert.Equal(t, "order.go", loc.SourceFile)
	assert.Equal(t, 12, loc.Line)

	empty := &NodeView{Entity: &DataEntity{}}
	_, ok = empty.CodeLocation()
	assert.False(t, ok)
}

func TestNodeView_DocumentRefsAndFootprint(t *testing.T) {
	v := &NodeView{
		Ref: NodeRef{Type: NodeTypeField, ID: "field:order.amount"},
		Field: &Field{
			ID:         "field:order.amount",
			EntityID:   "entity:order",
			Provenance: []Provenance{{DocumentID: "document:b"}, {DocumentID: "document:a"}},
		},
		Outgoing: []Relationship{
			{FromID: "field:order.amount", ToID: "document:a", Type: RelDescribedBy},
			{FromID: "field:order.amount", ToID: "entity:customer", Type: RelReferences},
		},
	}

	assert.Equal(t, []string{"document:a", "document:b"}, v.DocumentRefs())
	assert.Equal(t,
		[]string{"field:order.amount", "entity:order", "document:a", "document:b"},
		v.Footprint())
	assert.Equal(t, 1, v.CountOutgoing(RelReferences))
}

func TestAttemptHistory(t *testing.T) {
	h := AttemptHistory{
		{Strategy: StrategySemanticLookup, Confidence: 0.3},
		{Strategy: StrategySemanticLookup, Confidence: 0.5},
		{Strategy: StrategyTargetedCodeScan, Confidence: 0},
	}

	assert.True(t, h.Tried(StrategySemanticLookup))
	assert.False(t, h.Tried(StrategyTargetedDocScan))

	best, ok := h.BestConfidence(StrategySemanticLookup)
	assert.True(t, ok)
	assert.InDelta(t, 0.5, best, 1e-9)

	_, ok = h.BestConfidence(StrategyTargetedDocScan)
	assert.False(t, ok)

	last, ok := h.Last()
	assert.True(t, ok)
	assert.Equal(t, StrategyTargetedCodeScan, last.Strategy)
}

func TestAgentState_RecordAndClone(t *testing.T) {
	s := NewAgentState("run-1", timeZero())
	s.Record(AttemptRecord{GapID: "g", Strategy: StrategySemanticLookup})
	s.Forced["g"] = StrategyTargetedDocScan

	c := s.Clone()
	c.Record(AttemptRecord{GapID: "g", Strategy: StrategyTargetedCodeScan})
	delete(c.Forced, "g")

	assert.Len(t, s.History("g"), 1)
	assert.Len(t, c.History("g"), 2)
	assert.Equal(t, StrategyTargetedDocScan, s.Forced["g"])
}

func timeZero() time.Time { return time.Time{} }
