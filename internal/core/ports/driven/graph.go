package driven

import (
	"context"

	"github.com/custodia-labs/mce/internal/core/domain"
)

// GraphView is the read side of the metadata graph. Rules only see this.
type GraphView interface {
	// Entities returns every entity, ordered by ID.
	Entities(ctx context.Context) ([]domain.DataEntity, error)

	// Fields returns every field, ordered by ID.
	Fields(ctx context.Context) ([]domain.Field, error)

	// Documents returns every document, ordered by ID.
	Documents(ctx context.Context) ([]domain.Document, error)

	// Relationships returns relationships touching the node, in either direction.
	Relationships(ctx context.Context, nodeID string) ([]domain.Relationship, error)

	// Node returns a snapshot of the node and its immediate relationships.
	// Returns domain.ErrNotFound if the node does not exist.
	Node(ctx context.Context, ref domain.NodeRef) (*domain.NodeView, error)
}

// GraphStore persists the metadata graph and the gap ledger.
// Every write is an upsert keyed by stable identity.
type GraphStore interface {
	GraphView

	// UpsertEntity stores or replaces an entity.
	UpsertEntity(ctx context.Context, e *domain.DataEntity) error

	// UpsertField stores or replaces a field.
	UpsertField(ctx context.Context, f *domain.Field) error

	// UpsertDocument stores or replaces a document.
	UpsertDocument(ctx context.Context, doc *domain.Document) error

	// SaveChunks stores chunks. Existing chunk IDs are left untouched.
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error

	// GetChunks retrieves all chunks for a document, ordered by position and version.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// UpsertRelationship stores a relationship; the same triple is stored once.
	UpsertRelationship(ctx context.Context, rel domain.Relationship) error

	// UpsertGap validates and stores a gap, returning the stored copy.
	// Returns domain.ErrInvariantViolation if the gap fails validation.
	UpsertGap(ctx context.Context, gap *domain.MetadataGap) (*domain.MetadataGap, error)

	// GetGap retrieves a gap by ID.
	// Returns domain.ErrNotFound if the gap does not exist.
	GetGap(ctx context.Context, id string) (*domain.MetadataGap, error)

	// ListGaps returns gaps matching the filter, ordered by ID.
	ListGaps(ctx context.Context, filter domain.GapFilter) ([]domain.MetadataGap, error)

	// Close releases resources.
	Close() error
}
