// Package rank scores stored chunks against semantic queries.
// It is shared by the semantic store adapters.
package rank

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode"

	"github.com/custodia-labs/mce/internal/core/domain"
)

// Score rates a chunk against a query vector and query terms.
// Cosine similarity is used when both vectors exist with the same dimension;
// otherwise the share of query terms present in the content.
func Score(vector []float32, terms []string, c *domain.Chunk) float64 {
	if len(vector) > 0 && len(c.Embedding) == len(vector) {
		return Cosine(vector, c.Embedding)
	}
	return Overlap(terms, c.Content)
}

// Cosine returns the cosine similarity of two equal-length vectors.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Overlap scores the share of query terms present in content.
func Overlap(terms []string, content string) float64 {
	if len(terms) == 0 {
		return 0
	}
	words := make(map[string]struct{})
	for _, w := range Tokenize(content) {
		words[w] = struct{}{}
	}
	matched := 0
	for _, t := range terms {
		if _, ok := words[t]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

// Tokenize lowercases text and returns its distinct words, sorted.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	slices.Sort(fields)
	return slices.Compact(fields)
}

// MatchesFilters reports whether metadata carries every filter value.
func MatchesFilters(metadata map[string]any, filters map[string]string) bool {
	for k, want := range filters {
		got, ok := metadata[k]
		if !ok || fmt.Sprint(got) != want {
			return false
		}
	}
	return true
}

// Hit builds a semantic hit for a scored chunk.
func Hit(c *domain.Chunk, score float64) domain.SemanticHit {
	return domain.SemanticHit{
		ChunkID:    c.ID,
		DocumentID: c.DocumentID,
		Content:    c.Content,
		Metadata:   c.Metadata,
		Score:      score,
	}
}

// Top orders hits by score, then chunk ID, and keeps the first k. k <= 0 keeps all.
func Top(hits []domain.SemanticHit, k int) []domain.SemanticHit {
	slices.SortFunc(hits, func(a, b domain.SemanticHit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.ChunkID, b.ChunkID)
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
