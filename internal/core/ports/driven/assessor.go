package driven

import (
	"context"

	"github.com/custodia-labs/mce/internal/core/domain"
)

// Assessor judges whether semantic evidence resolves a gap.
type Assessor interface {
	// Assess returns the value to fill and how confident the assessor is.
	// A zero Confidence means the hits did not resolve the gap.
	Assess(ctx context.Context, gap *domain.MetadataGap, node *domain.NodeView, hits []domain.SemanticHit) (*domain.Assessment, error)
}

// Extractor pulls structured entities and fields out of documentation text.
type Extractor interface {
	// Extract returns the entities and fields described by the chunk.
	Extract(ctx context.Context, doc *domain.Document, chunk *domain.Chunk) (*domain.ExtractedItems, error)
}
