package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driven"
	"github.com/custodia-labs/mce/internal/logger"
)

// ingester writes scan output into the graph and semantic stores.
type ingester struct {
	graph    driven.GraphStore
	semantic driven.SemanticStore
	now      func() time.Time
}

// ingestMode selects how extracted attributes meet stored ones.
type ingestMode int

const (
	// ingestAuthoritative replaces stored attributes with scanned ones. Used by broad scans.
	ingestAuthoritative ingestMode = iota

	// ingestFillMissing only fills empty attributes. Used by resolution actions.
	ingestFillMissing
)

// ingest stores items and returns the IDs of nodes that were created or changed.
func (in *ingester) ingest(ctx context.Context, items *domain.ExtractedItems, mode ingestMode) ([]string, error) {
	if items == nil {
		return nil, nil
	}
	var touched []string

	for i := range items.Documents {
		changed, err := in.ingestDocument(ctx, items.Documents[i])
		if err != nil {
			return touched, err
		}
		if changed {
			touched = append(touched, items.Documents[i].ID)
		}
	}

	for i := range items.Entities {
		changed, err := in.ingestEntity(ctx, items.Entities[i].Clone(), mode)
		if err != nil {
			return touched, err
		}
		if changed {
			touched = append(touched, items.Entities[i].ID)
		}
	}

	for i := range items.Fields {
		f := items.Fields[i].Clone()
		changed, err := in.ingestField(ctx, f, mode)
		if err != nil {
			return touched, err
		}
		if changed {
			touched = append(touched, f.ID)
		}
		if f.EntityID != "" {
			rel := domain.Relationship{FromID: f.EntityID, ToID: f.ID, Type: domain.RelHasField}
			if err := in.graph.UpsertRelationship(ctx, rel); err != nil {
				return touched, fmt.Errorf("link field %s: %w", f.ID, err)
			}
		}
	}

	for _, rel := range items.Relationships {
		if err := in.graph.UpsertRelationship(ctx, rel); err != nil {
			return touched, fmt.Errorf("upsert relationship %s: %w", rel.Key(), err)
		}
		touched = append(touched, rel.FromID)
	}

	if err := in.ingestChunks(ctx, items.Chunks); err != nil {
		return touched, err
	}
	return touched, nil
}

func (in *ingester) ingestEntity(ctx context.Context, e domain.DataEntity, mode ingestMode) (bool, error) {
	now := in.now()
	current, err := in.lookup(ctx, domain.NodeRef{Type: domain.NodeTypeEntity, ID: e.ID})
	if err != nil {
		return false, err
	}

	switch {
	case current == nil || current.Entity == nil:
		e.CreatedAt, e.UpdatedAt = now, now
	case mode == ingestFillMissing:
		stored := current.Entity.Clone()
		if !stored.FillMissing(&e) {
			return false, nil
		}
		e = stored
		e.UpdatedAt = now
	default:
		stored := current.Entity
		e.CreatedAt, e.UpdatedAt = stored.CreatedAt, now
		e.Provenance = domain.MergeProvenance(stored.Provenance, e.Provenance)
		e.Properties = mergeProperties(stored.Properties, e.Properties)
	}

	if err := in.graph.UpsertEntity(ctx, &e); err != nil {
		return false, fmt.Errorf("upsert entity %s: %w", e.ID, err)
	}
	return true, nil
}

func (in *ingester) ingestField(ctx context.Context, f domain.Field, mode ingestMode) (bool, error) {
	now := in.now()
	current, err := in.lookup(ctx, domain.NodeRef{Type: domain.NodeTypeField, ID: f.ID})
	if err != nil {
		return false, err
	}

	switch {
	case current == nil || current.Field == nil:
		f.CreatedAt, f.UpdatedAt = now, now
	case mode == ingestFillMissing:
		stored := current.Field.Clone()
		if !stored.FillMissing(&f) {
			return false, nil
		}
		f = stored
		f.UpdatedAt = now
	default:
		stored := current.Field
		f.CreatedAt, f.UpdatedAt = stored.CreatedAt, now
		f.Provenance = domain.MergeProvenance(stored.Provenance, f.Provenance)
		f.Properties = mergeProperties(stored.Properties, f.Properties)
	}

	if err := in.graph.UpsertField(ctx, &f); err != nil {
		return false, fmt.Errorf("upsert field %s: %w", f.ID, err)
	}
	return true, nil
}

func (in *ingester) ingestDocument(ctx context.Context, doc domain.Document) (bool, error) {
	now := in.now()
	current, err := in.lookup(ctx, doc.Ref())
	if err != nil {
		return false, err
	}
	if current != nil && current.Document != nil {
		stored := current.Document
		if stored.Content == doc.Content && stored.Title == doc.Title {
			return false, nil
		}
		doc.CreatedAt = stored.CreatedAt
	} else {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	if err := in.graph.UpsertDocument(ctx, &doc); err != nil {
		return false, fmt.Errorf("upsert document %s: %w", doc.ID, err)
	}
	return true, nil
}

// ingestChunks stores chunks not seen before. A new chunk at a known position
// gets the next version; stored chunks are never rewritten.
func (in *ingester) ingestChunks(ctx context.Context, chunks []domain.Chunk) error {
	byDoc := make(map[string][]domain.Chunk)
	var order []string
	for _, c := range chunks {
		if _, ok := byDoc[c.DocumentID]; !ok {
			order = append(order, c.DocumentID)
		}
		byDoc[c.DocumentID] = append(byDoc[c.DocumentID], c)
	}

	for _, docID := range order {
		stored, err := in.graph.GetChunks(ctx, docID)
		if err != nil {
			return fmt.Errorf("get chunks for %s: %w", docID, err)
		}
		known := make(map[string]struct{}, len(stored))
		versions := make(map[int]int)
		for _, c := range stored {
			known[c.ID] = struct{}{}
			versions[c.Position] = max(versions[c.Position], c.Version)
		}

		var fresh []domain.Chunk
		for _, c := range byDoc[docID] {
			if _, ok := known[c.ID]; ok {
				continue
			}
			known[c.ID] = struct{}{}
			versions[c.Position]++
			c.Version = versions[c.Position]
			if c.EmbeddingRef == "" {
				c.EmbeddingRef = c.ID
			}
			fresh = append(fresh, c)
		}
		if len(fresh) == 0 {
			continue
		}

		if err := in.graph.SaveChunks(ctx, fresh); err != nil {
			return fmt.Errorf("save chunks for %s: %w", docID, err)
		}
		if in.semantic != nil {
			if err := in.semantic.Index(ctx, fresh); err != nil {
				logger.Warn("Failed to index %d chunks for %s: %v", len(fresh), docID, err)
			}
		}
	}
	return nil
}

func (in *ingester) lookup(ctx context.Context, ref domain.NodeRef) (*domain.NodeView, error) {
	view, err := in.graph.Node(ctx, ref)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}
	return view, nil
}

func mergeProperties(stored, scanned map[string]any) map[string]any {
	if len(stored) == 0 {
		return scanned
	}
	out := maps.Clone(stored)
	maps.Copy(out, scanned)
	return out
}
