package domain

import (
	"slices"
	"strconv"
	"strings"
	"time"
)

// NodeType identifies the kind of a graph node.
type NodeType string

// Node types held by the graph store.
const (
	NodeTypeEntity   NodeType = "entity"
	NodeTypeField    NodeType = "field"
	NodeTypeDocument NodeType = "document"
	NodeTypeChunk    NodeType = "chunk"
)

// IsValid returns true if the node type is recognised.
func (t NodeType) IsValid() bool {
	switch t {
	case NodeTypeEntity, NodeTypeField, NodeTypeDocument, NodeTypeChunk:
		return true
	default:
		return false
	}
}

// NodeRef points at a node by type and stable identity.
type NodeRef struct {
	Type NodeType
	ID   string
}

// String returns "type/id" for logging.
func (r NodeRef) String() string {
	return string(r.Type) + "/" + r.ID
}

// Relationship types between graph nodes.
const (
	// RelHasField links a DataEntity to one of its Fields.
	RelHasField = "HAS_FIELD"

	// RelDescribedBy links an entity or field to a Document that describes it.
	RelDescribedBy = "DESCRIBED_BY"

	// RelReferences links two entities that refer to each other.
	RelReferences = "REFERENCES"
)

// Relationship is a typed, directed edge between two nodes.
// Identity is (FromID, Type, ToID); upserting the same triple is idempotent.
type Relationship struct {
	FromID     string
	ToID       string
	Type       string
	Properties map[string]any
}

// Key returns the stable identity of the relationship.
func (r Relationship) Key() string {
	return r.FromID + "|" + r.Type + "|" + r.ToID
}

// Provenance records where an attribute or node was observed.
type Provenance struct {
	// SourceFile is the code file the node was extracted from.
	SourceFile string

	// Line is the 1-based line in SourceFile, 0 when unknown.
	Line int

	// DocumentID is the documentation source, when extracted from docs.
	DocumentID string

	// ChunkID is the specific chunk, when extracted from a semantic hit.
	ChunkID string

	// Extractor names what produced the observation (scanner, semantic lookup, ...).
	Extractor string

	// RecordedAt is when the observation was recorded.
	RecordedAt time.Time
}

// HasCodeLocation reports whether the provenance points at source code.
func (p Provenance) HasCodeLocation() bool {
	return p.SourceFile != ""
}

// key identifies a provenance entry for de-duplication; RecordedAt is ignored.
func (p Provenance) key() string {
	return strings.Join([]string{p.SourceFile, strconv.Itoa(p.Line), p.DocumentID, p.ChunkID, p.Extractor}, "|")
}

// MergeProvenance appends entries from add that are not already present in base.
// Order of base is preserved so provenance history stays stable.
func MergeProvenance(base, add []Provenance) []Provenance {
	seen := make(map[string]struct{}, len(base)+len(add))
	out := slices.Clone(base)
	for _, p := range base {
		seen[p.key()] = struct{}{}
	}
	for _, p := range add {
		k := p.key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Scope restricts an evaluation to a subset of nodes.
// An empty scope means the whole graph.
type Scope struct {
	NodeIDs []string
}

// IsAll returns true when the scope covers the whole graph.
func (s Scope) IsAll() bool {
	return len(s.NodeIDs) == 0
}

// Contains reports whether id is inside the scope.
func (s Scope) Contains(id string) bool {
	return s.IsAll() || slices.Contains(s.NodeIDs, id)
}

// ScopeOf builds a scope from the given node IDs, dropping empties and duplicates.
func ScopeOf(ids ...string) Scope {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return Scope{NodeIDs: out}
}
