package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/mce/internal/core/domain"
)

func entityWork(id string, docs ...string) gapWork {
	view := &domain.NodeView{
		Ref:    domain.NodeRef{Type: domain.NodeTypeEntity, ID: id},
		Entity: &domain.DataEntity{ID: id},
	}
	for _, d := range docs {
		view.Outgoing = append(view.Outgoing, domain.Relationship{FromID: id, ToID: d, Type: domain.RelDescribedBy})
	}
	return gapWork{gap: domain.MetadataGap{ID: "g|" + id}, node: view}
}

func fieldWork(id, entityID string) gapWork {
	view := &domain.NodeView{
		Ref:   domain.NodeRef{Type: domain.NodeTypeField, ID: id},
		Field: &domain.Field{ID: id, EntityID: entityID},
	}
	return gapWork{gap: domain.MetadataGap{ID: "g|" + id}, node: view}
}

func batchIDs(batches [][]gapWork) [][]string {
	out := make([][]string, len(batches))
	for i, b := range batches {
		for _, w := range b {
			out[i] = append(out[i], w.gap.ID)
		}
	}
	return out
}

func TestPartition(t *testing.T) {
	tests := []struct {
		name string
		work []gapWork
		want [][]string
	}{
		{
			name: "empty",
			want: [][]string{},
		},
		{
			name: "disjoint targets share a batch",
			work: []gapWork{entityWork("entity:a"), entityWork("entity:b")},
			want: [][]string{{"g|entity:a", "g|entity:b"}},
		},
		{
			name: "field conflicts with its entity",
			work: []gapWork{entityWork("entity:a"), fieldWork("field:a.x", "entity:a"), entityWork("entity:b")},
			want: [][]string{{"g|entity:a", "g|entity:b"}, {"g|field:a.x"}},
		},
		{
			name: "shared document conflicts",
			work: []gapWork{entityWork("entity:a", "document:d"), entityWork("entity:b", "document:d")},
			want: [][]string{{"g|entity:a"}, {"g|entity:b"}},
		},
		{
			name: "later item never jumps ahead of a conflict",
			work: []gapWork{
				entityWork("entity:a"),
				fieldWork("field:a.x", "entity:a"),
				fieldWork("field:a.y", "entity:a"),
				entityWork("entity:c"),
			},
			want: [][]string{{"g|entity:a", "g|entity:c"}, {"g|field:a.x"}, {"g|field:a.y"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := batchIDs(partition(tt.work))
			assert.Equal(t, tt.want, got)
		})
	}
}
