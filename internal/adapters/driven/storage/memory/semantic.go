package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/mce/internal/adapters/driven/storage/rank"
	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driven"
	"github.com/custodia-labs/mce/internal/logger"
)

// Ensure SemanticStore implements the interface.
var _ driven.SemanticStore = (*SemanticStore)(nil)

// SemanticStore is an in-memory implementation of driven.SemanticStore.
// With an embedding service it ranks by cosine similarity; without one,
// or for chunks that have no vector, it ranks by query term overlap.
type SemanticStore struct {
	mu       sync.RWMutex
	chunks   map[string]domain.Chunk
	embedder driven.EmbeddingService
}

// NewSemanticStore creates a new in-memory semantic store. embedder may be nil.
func NewSemanticStore(embedder driven.EmbeddingService) *SemanticStore {
	return &SemanticStore{
		chunks:   make(map[string]domain.Chunk),
		embedder: embedder,
	}
}

// Index adds chunks to the store. Chunks already indexed are skipped.
func (s *SemanticStore) Index(ctx context.Context, chunks []domain.Chunk) error {
	var fresh []domain.Chunk
	s.mu.RLock()
	for _, c := range chunks {
		if _, ok := s.chunks[c.ID]; !ok {
			fresh = append(fresh, c)
		}
	}
	s.mu.RUnlock()

	if s.embedder != nil {
		var texts []string
		var idx []int
		for i := range fresh {
			if len(fresh[i].Embedding) == 0 {
				texts = append(texts, fresh[i].Content)
				idx = append(idx, i)
			}
		}
		if len(texts) > 0 {
			vectors, err := s.embedder.EmbedBatch(ctx, texts)
			if err != nil {
				return fmt.Errorf("embed chunks: %w", err)
			}
			for j, i := range idx {
				if j < len(vectors) {
					fresh[i].Embedding = vectors[j]
				}
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range fresh {
		s.chunks[c.ID] = c
	}
	return nil
}

// Query returns the best matching chunks, highest score first.
func (s *SemanticStore) Query(ctx context.Context, q domain.SemanticQuery) ([]domain.SemanticHit, error) {
	vector := q.Vector
	if len(vector) == 0 && s.embedder != nil && q.Text != "" {
		v, err := s.embedder.Embed(ctx, q.Text)
		if err != nil {
			logger.Warn("Query embedding failed, using lexical scoring: %v", err)
		} else {
			vector = v
		}
	}
	terms := rank.Tokenize(q.Text)

	s.mu.RLock()
	var hits []domain.SemanticHit
	for _, c := range s.chunks {
		if !rank.MatchesFilters(c.Metadata, q.Filters) {
			continue
		}
		if score := rank.Score(vector, terms, &c); score > 0 {
			hits = append(hits, rank.Hit(&c, score))
		}
	}
	s.mu.RUnlock()

	return rank.Top(hits, q.TopK), nil
}

// Count returns the number of indexed chunks.
func (s *SemanticStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Close releases resources (no-op for memory store).
func (s *SemanticStore) Close() error {
	return nil
}
