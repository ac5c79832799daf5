package assessor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mce/internal/core/domain"
)

func TestNewExtractor_RequiresLLM(t *testing.T) {
	_, err := NewExtractor(nil, nil)
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestExtract(t *testing.T) {
	llm := &scriptedLLM{reply: `{"entities": [{"name": "Order", "description": "A purchase", "fields": [{"name": "amount", "data_type": "decimal"}, {"name": " "}]}, {"name": ""}]}`}
	x, err := NewExtractor(llm, nil)
	require.NoError(t, err)

	doc := &domain.Document{ID: domain.DocumentID("docs/orders.md"), URI: "docs/orders.md"}
	chunk := &domain.Chunk{ID: "chunk:1", DocumentID: doc.ID, Content: "Orders have an amount."}

	items, err := x.Extract(context.Background(), doc, chunk)

	require.NoError(t, err)
	require.Len(t, items.Entities, 1)
	assert.Equal(t, "entity:order", items.Entities[0].ID)
	assert.Equal(t, "A purchase", items.Entities[0].Description)
	assert.Equal(t, "chunk:1", items.Entities[0].Provenance[0].ChunkID)
	require.Len(t, items.Fields, 1)
	assert.Equal(t, "field:order.amount", items.Fields[0].ID)
	assert.Equal(t, "decimal", items.Fields[0].DataType)
	assert.Len(t, items.Relationships, 2)
	assert.Contains(t, llm.prompts[0], "Orders have an amount.")
}

func TestExtract_Unparseable(t *testing.T) {
	x, err := NewExtractor(&scriptedLLM{reply: "nothing"}, nil)
	require.NoError(t, err)

	doc := &domain.Document{ID: "document:a", URI: "a.md"}
	items, err := x.Extract(context.Background(), doc, &domain.Chunk{ID: "chunk:x"})

	require.NoError(t, err)
	assert.True(t, items.IsEmpty())
	require.Len(t, items.Failures, 1)
	assert.Equal(t, "a.md", items.Failures[0].Location)
}
