package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mce/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/mce/internal/core/domain"
)

func newIngester() (*ingester, *memory.GraphStore, *memory.SemanticStore) {
	g := memory.NewGraphStore()
	sem := memory.NewSemanticStore(nil)
	return &ingester{graph: g, semantic: sem, now: fixedClock()}, g, sem
}

func TestIngest_Modes(t *testing.T) {
	in, g, _ := newIngester()
	ctx := context.Background()

	_, err := in.ingest(ctx, &domain.ExtractedItems{
		Entities: []domain.DataEntity{{ID: "entity:order", Name: "Order", Description: "Old"}},
	}, ingestAuthoritative)
	require.NoError(t, err)

	touched, err := in.ingest(ctx, &domain.ExtractedItems{
		Entities: []domain.DataEntity{{ID: "entity:order", Name: "Order", Description: "Guess"}},
	}, ingestFillMissing)
	require.NoError(t, err)
	assert.Empty(t, touched, "fill never overwrites")

	touched, err = in.ingest(ctx, &domain.ExtractedItems{
		Entities: []domain.DataEntity{{ID: "entity:order", Name: "Order"}},
	}, ingestAuthoritative)
	require.NoError(t, err)
	assert.Equal(t, []string{"entity:order"}, touched)

	view, err := g.Node(ctx, domain.NodeRef{Type: domain.NodeTypeEntity, ID: "entity:order"})
	require.NoError(t, err)
	assert.Empty(t, view.Entity.Description, "scans are authoritative")
	assert.False(t, view.Entity.CreatedAt.IsZero())
	assert.True(t, view.Entity.UpdatedAt.After(view.Entity.CreatedAt))
}

func TestIngest_FieldLinksToEntity(t *testing.T) {
	in, g, _ := newIngester()
	ctx := context.Background()

	_, err := in.ingest(ctx, &domain.ExtractedItems{
		Entities: []domain.DataEntity{{ID: "entity:order", Name: "Order"}},
		Fields:   []domain.Field{{ID: "field:order.amount", EntityID: "entity:order", Name: "amount"}},
	}, ingestAuthoritative)
	require.NoError(t, err)

	view, err := g.Node(ctx, domain.NodeRef{Type: domain.NodeTypeEntity, ID: "entity:order"})
	require.NoError(t, err)
	assert.Equal(t, 1, view.CountOutgoing(domain.RelHasField))
}

func TestIngest_ChunkVersions(t *testing.T) {
	in, g, sem := newIngester()
	ctx := context.Background()
	docID := domain.DocumentID("docs/order.md")
	chunk := func(content string) domain.Chunk {
		return domain.Chunk{ID: domain.ChunkID(docID, content), DocumentID: docID, Content: content}
	}
	doc := func(content string) domain.Document {
		return domain.Document{ID: docID, URI: "docs/order.md", Content: content}
	}

	_, err := in.ingest(ctx, &domain.ExtractedItems{
		Documents: []domain.Document{doc("v1")},
		Chunks:    []domain.Chunk{chunk("v1")},
	}, ingestAuthoritative)
	require.NoError(t, err)

	// Re-scanning unchanged content stores nothing new.
	touched, err := in.ingest(ctx, &domain.ExtractedItems{
		Documents: []domain.Document{doc("v1")},
		Chunks:    []domain.Chunk{chunk("v1")},
	}, ingestAuthoritative)
	require.NoError(t, err)
	assert.Empty(t, touched)

	_, err = in.ingest(ctx, &domain.ExtractedItems{
		Documents: []domain.Document{doc("v2")},
		Chunks:    []domain.Chunk{chunk("v2")},
	}, ingestAuthoritative)
	require.NoError(t, err)

	chunks, err := g.GetChunks(ctx, docID)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "v1", chunks[0].Content)
	assert.Equal(t, 1, chunks[0].Version)
	assert.Equal(t, "v2", chunks[1].Content)
	assert.Equal(t, 2, chunks[1].Version)
	assert.Equal(t, chunks[1].ID, chunks[1].EmbeddingRef)
	assert.Equal(t, 2, sem.Count())
}
