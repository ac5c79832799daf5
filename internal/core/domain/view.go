package domain

// NodeView is a read-only snapshot of one node and its immediate relationships,
// the unit rules inspect and the strategy selector reasons about.
// Exactly one of Entity, Field or Document is set, matching Ref.Type.
type NodeView struct {
	Ref      NodeRef
	Entity   *DataEntity
	Field    *Field
	Document *Document

	// Outgoing holds relationships whose FromID is this node.
	Outgoing []Relationship

	// Incoming holds relationships whose ToID is this node.
	Incoming []Relationship
}

// Name returns the display name of the node.
func (v *NodeView) Name() string {
	switch {
	case v.Entity != nil:
		return v.Entity.Name
	case v.Field != nil:
		return v.Field.Name
	case v.Document != nil:
		return v.Document.Title
	default:
		return v.Ref.ID
	}
}

// Provenance returns the provenance recorded for the node.
func (v *NodeView) Provenance() []Provenance {
	switch {
	case v.Entity != nil:
		return v.Entity.Provenance
	case v.Field != nil:
		return v.Field.Provenance
	default:
		return nil
	}
}

// CodeLocation returns the most recent code provenance, if any.
func (v *NodeView) CodeLocation() (Provenance, bool) {
	prov := v.Provenance()
	for i := len(prov) - 1; i >= 0; i-- {
		if prov[i].HasCodeLocation() {
			return prov[i], true
		}
	}
	return Provenance{}, false
}

// DocumentRefs returns the IDs of documents linked to the node,
// through DESCRIBED_BY relationships or document provenance, in first-seen order.
func (v *NodeView) DocumentRefs() []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, r := range v.Outgoing {
		if r.Type == RelDescribedBy {
			add(r.ToID)
		}
	}
	for _, p := range v.Provenance() {
		add(p.DocumentID)
	}
	if v.Document != nil {
		add(v.Document.ID)
	}
	return out
}

// Footprint returns every node ID a resolution of this node may write to.
// Two gaps with disjoint footprints can be resolved concurrently.
func (v *NodeView) Footprint() []string {
	ids := []string{v.Ref.ID}
	if v.Field != nil && v.Field.EntityID != "" {
		ids = append(ids, v.Field.EntityID)
	}
	ids = append(ids, v.DocumentRefs()...)
	return ids
}

// CountOutgoing returns the number of outgoing relationships of the given type.
func (v *NodeView) CountOutgoing(relType string) int {
	n := 0
	for _, r := range v.Outgoing {
		if r.Type == relType {
			n++
		}
	}
	return n
}
