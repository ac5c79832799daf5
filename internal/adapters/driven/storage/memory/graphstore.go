package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driven"
)

// Ensure GraphStore implements the interface.
var _ driven.GraphStore = (*GraphStore)(nil)

// GraphStore is an in-memory implementation of driven.GraphStore.
type GraphStore struct {
	mu            sync.RWMutex
	entities      map[string]domain.DataEntity
	fields        map[string]domain.Field
	documents     map[string]domain.Document
	chunks        map[string][]domain.Chunk
	relationships map[string]domain.Relationship
	gaps          map[string]domain.MetadataGap
}

// NewGraphStore creates a new in-memory graph store.
func NewGraphStore() *GraphStore {
	return &GraphStore{
		entities:      make(map[string]domain.DataEntity),
		fields:        make(map[string]domain.Field),
		documents:     make(map[string]domain.Document),
		chunks:        make(map[string][]domain.Chunk),
		relationships: make(map[string]domain.Relationship),
		gaps:          make(map[string]domain.MetadataGap),
	}
}

// UpsertEntity stores or replaces an entity.
func (s *GraphStore) UpsertEntity(_ context.Context, e *domain.DataEntity) error {
	if e.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[e.ID] = e.Clone()
	return nil
}

// UpsertField stores or replaces a field.
func (s *GraphStore) UpsertField(_ context.Context, f *domain.Field) error {
	if f.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields[f.ID] = f.Clone()
	return nil
}

// UpsertDocument stores or replaces a document.
func (s *GraphStore) UpsertDocument(_ context.Context, doc *domain.Document) error {
	if doc.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = *doc
	return nil
}

// SaveChunks stores chunks. Existing chunk IDs are left untouched.
func (s *GraphStore) SaveChunks(_ context.Context, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		existing := s.chunks[c.DocumentID]
		if slices.ContainsFunc(existing, func(e domain.Chunk) bool { return e.ID == c.ID }) {
			continue
		}
		s.chunks[c.DocumentID] = append(existing, c)
	}
	return nil
}

// GetChunks retrieves all chunks for a document, ordered by position and version.
func (s *GraphStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks := slices.Clone(s.chunks[documentID])
	slices.SortFunc(chunks, func(a, b domain.Chunk) int {
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		return cmp.Compare(a.Version, b.Version)
	})
	return chunks, nil
}

// UpsertRelationship stores a relationship; the same triple is stored once.
func (s *GraphStore) UpsertRelationship(_ context.Context, rel domain.Relationship) error {
	if rel.FromID == "" || rel.ToID == "" || rel.Type == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relationships[rel.Key()] = rel
	return nil
}

// Entities returns every entity, ordered by ID.
func (s *GraphStore) Entities(_ context.Context) ([]domain.DataEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.DataEntity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e.Clone())
	}
	slices.SortFunc(out, func(a, b domain.DataEntity) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// Fields returns every field, ordered by ID.
func (s *GraphStore) Fields(_ context.Context) ([]domain.Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Field, 0, len(s.fields))
	for _, f := range s.fields {
		out = append(out, f.Clone())
	}
	slices.SortFunc(out, func(a, b domain.Field) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// Documents returns every document, ordered by ID.
func (s *GraphStore) Documents(_ context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Document, 0, len(s.documents))
	for _, d := range s.documents {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b domain.Document) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// Relationships returns relationships touching the node, in either direction.
func (s *GraphStore) Relationships(_ context.Context, nodeID string) ([]domain.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.relationshipsLocked(nodeID), nil
}

func (s *GraphStore) relationshipsLocked(nodeID string) []domain.Relationship {
	var out []domain.Relationship
	for _, r := range s.relationships {
		if r.FromID == nodeID || r.ToID == nodeID {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b domain.Relationship) int { return strings.Compare(a.Key(), b.Key()) })
	return out
}

// Node returns a snapshot of the node and its immediate relationships.
func (s *GraphStore) Node(_ context.Context, ref domain.NodeRef) (*domain.NodeView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view := &domain.NodeView{Ref: ref}
	switch ref.Type {
	case domain.NodeTypeEntity:
		e, ok := s.entities[ref.ID]
		if !ok {
			return nil, domain.ErrNotFound
		}
		e = e.Clone()
		view.Entity = &e
	case domain.NodeTypeField:
		f, ok := s.fields[ref.ID]
		if !ok {
			return nil, domain.ErrNotFound
		}
		f = f.Clone()
		view.Field = &f
	case domain.NodeTypeDocument:
		d, ok := s.documents[ref.ID]
		if !ok {
			return nil, domain.ErrNotFound
		}
		view.Document = &d
	default:
		return nil, domain.ErrNotFound
	}

	for _, r := range s.relationshipsLocked(ref.ID) {
		if r.FromID == ref.ID {
			view.Outgoing = append(view.Outgoing, r)
		}
		if r.ToID == ref.ID {
			view.Incoming = append(view.Incoming, r)
		}
	}
	return view, nil
}

// UpsertGap validates and stores a gap, returning the stored copy.
func (s *GraphStore) UpsertGap(_ context.Context, gap *domain.MetadataGap) (*domain.MetadataGap, error) {
	if err := gap.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := gap.Clone()
	s.gaps[gap.ID] = stored
	out := stored.Clone()
	return &out, nil
}

// GetGap retrieves a gap by ID.
func (s *GraphStore) GetGap(_ context.Context, id string) (*domain.MetadataGap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gap, ok := s.gaps[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := gap.Clone()
	return &out, nil
}

// ListGaps returns gaps matching the filter, ordered by ID.
func (s *GraphStore) ListGaps(_ context.Context, filter domain.GapFilter) ([]domain.MetadataGap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.MetadataGap
	for _, g := range s.gaps {
		if filter.Matches(&g) {
			out = append(out, g.Clone())
		}
	}
	slices.SortFunc(out, func(a, b domain.MetadataGap) int { return strings.Compare(a.ID, b.ID) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Close releases resources (no-op for memory store).
func (s *GraphStore) Close() error {
	return nil
}
