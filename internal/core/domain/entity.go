package domain

import (
	"maps"
	"strings"
	"time"
)

// DataEntity is an extracted structural unit such as a class, table or message type.
type DataEntity struct {
	// ID is the stable identity, see EntityID.
	ID string

	// Name is the entity name as found in source.
	Name string

	// Kind describes what the entity is (class, table, struct, ...).
	Kind string

	// Description is a human-readable explanation. Empty when unknown.
	Description string

	// Confidence is the extractor's confidence in this record (0.0-1.0).
	Confidence float64

	// Provenance lists every location the entity was observed at.
	Provenance []Provenance

	// Properties holds open-ended attributes not covered by typed fields.
	Properties map[string]any

	// CreatedAt is when the entity was first stored.
	CreatedAt time.Time

	// UpdatedAt is when the entity was last written.
	UpdatedAt time.Time
}

// Field is an attribute or column belonging to a DataEntity.
type Field struct {
	// ID is the stable identity, see FieldID.
	ID string

	// EntityID links to the owning DataEntity.
	EntityID string

	// Name is the field name as found in source.
	Name string

	// DataType is the declared or inferred type. Empty when unknown.
	DataType string

	// Description is a human-readable explanation. Empty when unknown.
	Description string

	// Confidence is the extractor's confidence in this record (0.0-1.0).
	Confidence float64

	// Provenance lists every location the field was observed at.
	Provenance []Provenance

	// Properties holds open-ended attributes not covered by typed fields.
	Properties map[string]any

	// CreatedAt is when the field was first stored.
	CreatedAt time.Time

	// UpdatedAt is when the field was last written.
	UpdatedAt time.Time
}

// EntityID derives the stable identity of an entity from its name.
func EntityID(name string) string {
	return "entity:" + normaliseName(name)
}

// FieldID derives the stable identity of a field from its entity and field names.
func FieldID(entityName, fieldName string) string {
	return "field:" + normaliseName(entityName) + "." + normaliseName(fieldName)
}

func normaliseName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Ref returns a reference to this entity.
func (e *DataEntity) Ref() NodeRef {
	return NodeRef{Type: NodeTypeEntity, ID: e.ID}
}

// Ref returns a reference to this field.
func (f *Field) Ref() NodeRef {
	return NodeRef{Type: NodeTypeField, ID: f.ID}
}

// FillMissing copies attributes from other that are empty on e and accumulates provenance.
// Attributes already set on e are never overwritten. Returns true if anything changed.
func (e *DataEntity) FillMissing(other *DataEntity) bool {
	changed := false
	if e.Kind == "" && other.Kind != "" {
		e.Kind = other.Kind
		changed = true
	}
	if e.Description == "" && other.Description != "" {
		e.Description = other.Description
		changed = true
	}
	if other.Confidence > e.Confidence {
		e.Confidence = other.Confidence
		changed = true
	}
	if merged := MergeProvenance(e.Provenance, other.Provenance); len(merged) != len(e.Provenance) {
		e.Provenance = merged
		changed = true
	}
	if fillProperties(&e.Properties, other.Properties) {
		changed = true
	}
	return changed
}

// FillMissing copies attributes from other that are empty on f and accumulates provenance.
// Attributes already set on f are never overwritten. Returns true if anything changed.
func (f *Field) FillMissing(other *Field) bool {
	changed := false
	if f.DataType == "" && other.DataType != "" {
		f.DataType = other.DataType
		changed = true
	}
	if f.Description == "" && other.Description != "" {
		f.Description = other.Description
		changed = true
	}
	if other.Confidence > f.Confidence {
		f.Confidence = other.Confidence
		changed = true
	}
	if merged := MergeProvenance(f.Provenance, other.Provenance); len(merged) != len(f.Provenance) {
		f.Provenance = merged
		changed = true
	}
	if fillProperties(&f.Properties, other.Properties) {
		changed = true
	}
	return changed
}

func fillProperties(dst *map[string]any, src map[string]any) bool {
	changed := false
	for k, v := range src {
		if *dst == nil {
			*dst = make(map[string]any, len(src))
		}
		if _, ok := (*dst)[k]; ok {
			continue
		}
		(*dst)[k] = v
		changed = true
	}
	return changed
}

// Clone returns a deep copy of the entity.
func (e DataEntity) Clone() DataEntity {
	e.Provenance = append([]Provenance(nil), e.Provenance...)
	e.Properties = maps.Clone(e.Properties)
	return e
}

// Clone returns a deep copy of the field.
func (f Field) Clone() Field {
	f.Provenance = append([]Provenance(nil), f.Provenance...)
	f.Properties = maps.Clone(f.Properties)
	return f
}
