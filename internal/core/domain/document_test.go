package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentID(t *testing.T) {
	assert.Equal(t, "document:docs/orders.md", DocumentID("docs/orders.md"))
}

func TestChunkID_ContentAddressed(t *testing.T) {
	a := ChunkID("document:a", "hello")
	b := ChunkID("document:a", "hello")
	c := ChunkID("document:a", "hello!")
	d := ChunkID("document:b", "hello")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.Contains(t, a, "chunk:")
}

func TestDocument_Ref(t *testing.T) {
	doc := &Document{ID: "document:x"}
	assert.Equal(t, NodeRef{Type: NodeTypeDocument, ID: "document:x"}, doc.Ref())
}
