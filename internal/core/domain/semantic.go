package domain

// SemanticQuery is a similarity lookup against the semantic store.
type SemanticQuery struct {
	// Text is embedded when Vector is empty.
	Text string

	// Vector is used as-is when set.
	Vector []float32

	// TopK is the maximum number of hits.
	TopK int

	// Filters restricts hits to chunks whose metadata matches every key.
	Filters map[string]string
}

// SemanticHit is one ranked result of a semantic lookup.
type SemanticHit struct {
	ChunkID    string
	DocumentID string
	Content    string
	Metadata   map[string]any
	Score      float64
}

// Assessment is the verdict on whether evidence resolves a gap.
type Assessment struct {
	// Value is the attribute value to fill (a description, a data type, ...).
	Value string

	// Confidence is how sure the assessor is that Value is correct (0.0-1.0).
	Confidence float64

	// Evidence lists the chunk IDs Value was derived from.
	Evidence []string

	// Notes is a short explanation for the resolution notes.
	Notes string
}
