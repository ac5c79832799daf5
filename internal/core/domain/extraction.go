package domain

// SourceKind distinguishes code from documentation sources.
type SourceKind string

// Source kinds.
const (
	SourceCode SourceKind = "code"
	SourceDocs SourceKind = "docs"
)

// ScanSource is the input of a broad scan.
type ScanSource struct {
	Kind SourceKind

	// Root is the directory or file to scan.
	Root string
}

// Location is the input of a targeted scan.
type Location struct {
	// Path is a file path for code scans or a document URI for doc scans.
	Path string

	// Line narrows a code scan around a line. Zero scans the whole file.
	Line int

	// DocumentID names the document for doc scans.
	DocumentID string
}

// ScanFailure records one unit a scan could not process.
type ScanFailure struct {
	Location string
	Reason   string
}

// ExtractedItems is everything a scan produced.
// Scans report partial failure through Failures instead of aborting.
type ExtractedItems struct {
	Entities      []DataEntity
	Fields        []Field
	Documents     []Document
	Chunks        []Chunk
	Relationships []Relationship
	Failures      []ScanFailure
}

// Merge appends other into x.
func (x *ExtractedItems) Merge(other *ExtractedItems) {
	if other == nil {
		return
	}
	x.Entities = append(x.Entities, other.Entities...)
	x.Fields = append(x.Fields, other.Fields...)
	x.Documents = append(x.Documents, other.Documents...)
	x.Chunks = append(x.Chunks, other.Chunks...)
	x.Relationships = append(x.Relationships, other.Relationships...)
	x.Failures = append(x.Failures, other.Failures...)
}

// IsEmpty reports whether the scan produced no nodes at all.
func (x *ExtractedItems) IsEmpty() bool {
	return x == nil || len(x.Entities)+len(x.Fields)+len(x.Documents)+len(x.Chunks)+len(x.Relationships) == 0
}

// ConfidenceFor returns the confidence of the extracted node with the given ID,
// and false when the scan did not produce it.
func (x *ExtractedItems) ConfidenceFor(id string) (float64, bool) {
	if x == nil {
		return 0, false
	}
	for i := range x.Entities {
		if x.Entities[i].ID == id {
			return x.Entities[i].Confidence, true
		}
	}
	for i := range x.Fields {
		if x.Fields[i].ID == id {
			return x.Fields[i].Confidence, true
		}
	}
	return 0, false
}

// NodeIDs returns the IDs of every entity, field and document in the result.
func (x *ExtractedItems) NodeIDs() []string {
	if x == nil {
		return nil
	}
	ids := make([]string, 0, len(x.Entities)+len(x.Fields)+len(x.Documents))
	for i := range x.Entities {
		ids = append(ids, x.Entities[i].ID)
	}
	for i := range x.Fields {
		ids = append(ids, x.Fields[i].ID)
	}
	for i := range x.Documents {
		ids = append(ids, x.Documents[i].ID)
	}
	return ids
}
