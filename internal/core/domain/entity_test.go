package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEntityAndFieldIDs(t *testing.T) {
	assert.Equal(t, "entity:order", EntityID(" Order "))
	assert.Equal(t, "field:order.amount", FieldID("Order", "Amount"))
}

func TestDataEntity_FillMissing(t *testing.T) {
	now := time.Now()
	e := &DataEntity{
		ID:         "entity:order",
		Name:       "Order",
		Kind:       "class",
		Confidence: 0.5,
		Provenance: []Provenance{{SourceFile: "order.go", Line: 10, RecordedAt: now}},
	}

	changed := e.FillMissing(&DataEntity{
		Kind:        "table",
		Description: "A customer order",
		Confidence:  0.8,
		Provenance: []Provenance{
			{SourceFile: "order.go", Line: 10, RecordedAt: now.Add(time.Hour)},
			{DocumentID: "document:orders.md", ChunkID: "chunk:1"},
		},
		Properties: map[string]any{"table": "orders"},
	})

	assert.True(t, changed)
	assert.Equal(t, "class", e.Kind, "existing attributes are never overwritten")
	assert.Equal(t, "A customer order", e.Description)
	assert.InDelta(t, 0.8, e.Confidence, 1e-9)
	assert.Len(t, e.Provenance, 2, "duplicate provenance is ignored")
	assert.Equal(t, "orders", e.Properties["table"])

	assert.False(t, e.FillMissing(&DataEntity{Description: "other"}))
	assert.Equal(t, "A customer order", e.Description)
}

func TestField_FillMissing(t *testing.T) {
	f := &Field{ID: "field:order.amount", Name: "amount"}
	assert.True(t, f.FillMissing(&Field{DataType: "decimal"}))
	assert.Equal(t, "decimal", f.DataType)
	assert.False(t, f.FillMissing(&Field{DataType: "int"}))
	assert.Equal(t, "decimal", f.DataType)
}

func TestDataEntity_Clone(t *testing.T) {
	e := DataEntity{Properties: map[string]any{"a": 1}, Provenance: []Provenance{{SourceFile: "x"}}}
	c := e.Clone()
	c.Properties["a"] = 2
	c.Provenance[0].SourceFile = "y"
	assert.Equal(t, 1, e.Properties["a"])
	assert.Equal(t, "x", e.Provenance[0].SourceFile)
}

func TestScope(t *testing.T) {
	assert.True(t, Scope{}.IsAll())
	assert.True(t, Scope{}.Contains("anything"))

	s := ScopeOf("a", "", "b", "a")
	assert.Equal(t, []string{"a", "b"}, s.NodeIDs)
	assert.True(t, s.Contains("b"))
	assert.False(t, s.Contains("c"))
}
