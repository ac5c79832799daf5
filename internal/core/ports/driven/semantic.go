package driven

import (
	"context"

	"github.com/custodia-labs/mce/internal/core/domain"
)

// SemanticStore provides similarity search over documentation chunks.
type SemanticStore interface {
	// Index adds chunks to the store. Chunks already indexed are skipped.
	Index(ctx context.Context, chunks []domain.Chunk) error

	// Query returns the best matching chunks, highest score first.
	Query(ctx context.Context, q domain.SemanticQuery) ([]domain.SemanticHit, error)

	// Close releases resources.
	Close() error
}
