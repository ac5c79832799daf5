package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Document represents a documentation source.
type Document struct {
	// ID is the unique identifier for the document, see DocumentID.
	ID string

	// URI is the original location (file path, URL, etc).
	URI string

	// Title is the human-readable title.
	Title string

	// Content is the full text content.
	Content string

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]any

	// CreatedAt is when the document was first indexed.
	CreatedAt time.Time

	// UpdatedAt is when the document was last updated.
	UpdatedAt time.Time
}

// Chunk is a content-addressed segment of a Document.
// Chunk content is immutable once stored: a changed segment gets a new ID
// and a higher Version instead of being rewritten.
type Chunk struct {
	// ID is the content address, see ChunkID.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Content is the text content of this chunk.
	Content string

	// Position is the ordinal position within the document.
	Position int

	// Version increases each time a re-scan produces different content at Position.
	Version int

	// Summary is an optional short summary of the content.
	Summary string

	// EmbeddingRef names the vector stored for this chunk in the semantic store.
	EmbeddingRef string

	// Embedding is the vector representation for semantic search.
	Embedding []float32

	// Metadata contains chunk-specific key-value pairs.
	Metadata map[string]any
}

// DocumentID derives the stable identity of a document from its URI.
func DocumentID(uri string) string {
	return "document:" + uri
}

// ChunkID derives the content address of a chunk.
func ChunkID(documentID, content string) string {
	sum := sha256.Sum256([]byte(documentID + "\x00" + content))
	return "chunk:" + hex.EncodeToString(sum[:16])
}

// Ref returns a reference to this document.
func (d *Document) Ref() NodeRef {
	return NodeRef{Type: NodeTypeDocument, ID: d.ID}
}
