// Package assessor judges semantic evidence and extracts structure from
// documentation, using a language model when one is configured and simple
// text heuristics otherwise.
package assessor

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driven"
)

// maxEvidenceChars bounds the evidence text placed in one prompt.
const maxEvidenceChars = 6000

// heuristicCeiling caps the confidence of heuristic assessments.
const heuristicCeiling = 0.75

// defaultAssessPrompt is the fallback prompt when no PromptStore is configured.
const defaultAssessPrompt = `A %s gap was found on %s.

Gap: %s

Evidence:
%s

Respond with JSON only:
{"value": "", "confidence": 0.0, "chunk_id": ""}`

// Ensure Assessor implements the interface.
var _ driven.Assessor = (*Assessor)(nil)

// Assessor implements driven.Assessor.
type Assessor struct {
	llm     driven.LLMService
	prompts driven.PromptStore
}

// New creates an assessor. llm and prompts may be nil.
func New(llm driven.LLMService, prompts driven.PromptStore) *Assessor {
	return &Assessor{llm: llm, prompts: prompts}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (a *Assessor) SetPromptStore(store driven.PromptStore) {
	a.prompts = store
}

// verdict is the JSON shape the model answers with.
type verdict struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	ChunkID    string  `json:"chunk_id"`
}

// Assess returns the value to fill and how confident the assessor is.
func (a *Assessor) Assess(ctx context.Context, gap *domain.MetadataGap, node *domain.NodeView, hits []domain.SemanticHit) (*domain.Assessment, error) {
	if len(hits) == 0 {
		return &domain.Assessment{Notes: "no evidence"}, nil
	}
	if a.llm == nil {
		return heuristic(gap, node, hits), nil
	}

	prompt := fmt.Sprintf(loadPrompt(a.prompts, driven.PromptAssess, defaultAssessPrompt),
		gap.Kind, describeNode(node), gap.Description, formatEvidence(hits))
	out, err := a.llm.Generate(ctx, prompt, driven.GenerateOptions{JSON: true, Temperature: 0.1})
	if err != nil {
		return nil, fmt.Errorf("assess %s: %w", gap.ID, err)
	}

	var v verdict
	if err := decodeJSON(out, &v); err != nil {
		return &domain.Assessment{Notes: "unparseable model answer"}, nil
	}
	result := &domain.Assessment{
		Value:      strings.TrimSpace(v.Value),
		Confidence: clamp(v.Confidence),
		Notes:      "assessed by " + a.llm.ModelName(),
	}
	if v.ChunkID != "" && slices.ContainsFunc(hits, func(h domain.SemanticHit) bool { return h.ChunkID == v.ChunkID }) {
		result.Evidence = []string{v.ChunkID}
	} else if result.Value != "" {
		result.Evidence = []string{hits[0].ChunkID}
	}
	return result, nil
}

// heuristic answers from the hit text alone. Only descriptions and data types
// can be read off documentation reliably; other kinds get zero confidence.
func heuristic(gap *domain.MetadataGap, node *domain.NodeView, hits []domain.SemanticHit) *domain.Assessment {
	name := node.Name()
	if name == "" {
		return &domain.Assessment{Notes: "node has no name"}
	}
	for _, h := range hits {
		var value string
		switch gap.Kind {
		case domain.GapMissingDescription:
			value = sentenceMentioning(h.Content, name)
		case domain.GapMissingDataType:
			value = dataTypeOf(h.Content, name)
		case domain.GapLowConfidence:
			if sentenceMentioning(h.Content, name) != "" {
				value = name
			}
		}
		if value != "" {
			return &domain.Assessment{
				Value:      value,
				Confidence: clamp(h.Score) * heuristicCeiling,
				Evidence:   []string{h.ChunkID},
				Notes:      "matched text in " + h.ChunkID,
			}
		}
	}
	return &domain.Assessment{Notes: "no matching text"}
}

var sentenceSplit = regexp.MustCompile(`[.!?]\s+|\n+`)

// sentenceMentioning returns the first sentence naming name as a whole word.
func sentenceMentioning(content, name string) string {
	word := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
	for _, s := range sentenceSplit.Split(content, -1) {
		s = strings.TrimSpace(strings.TrimLeft(s, "#-*> "))
		if s != "" && word.MatchString(s) {
			return strings.TrimSuffix(s, ".")
		}
	}
	return ""
}

// dataTypeOf finds "name (type)", "name: type" or "name is a type" phrasing.
func dataTypeOf(content, name string) string {
	q := regexp.QuoteMeta(name)
	patterns := []string{
		"(?i)`?" + q + "`?\\s*\\(\\s*`?([A-Za-z][\\w\\[\\].]*)`?\\s*\\)",
		"(?i)`?" + q + "`?\\s*:\\s*`?([A-Za-z][\\w\\[\\].]*)`?",
		"(?i)\\b" + q + "\\b\\s+is\\s+an?\\s+`?([A-Za-z][\\w\\[\\].]*)`?",
	}
	for _, p := range patterns {
		if m := regexp.MustCompile(p).FindStringSubmatch(content); m != nil {
			return m[1]
		}
	}
	return ""
}

func describeNode(node *domain.NodeView) string {
	switch {
	case node.Entity != nil:
		return fmt.Sprintf("entity %q", node.Entity.Name)
	case node.Field != nil:
		return fmt.Sprintf("field %q of %s", node.Field.Name, node.Field.EntityID)
	default:
		return node.Ref.String()
	}
}

func formatEvidence(hits []domain.SemanticHit) string {
	var b strings.Builder
	for _, h := range hits {
		entry := fmt.Sprintf("[%s]\n%s\n\n", h.ChunkID, strings.TrimSpace(h.Content))
		if b.Len()+len(entry) > maxEvidenceChars && b.Len() > 0 {
			break
		}
		b.WriteString(entry)
	}
	return strings.TrimSpace(b.String())
}

// decodeJSON reads the first JSON object in s, tolerating code fences and prose.
func decodeJSON(s string, v any) error {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return fmt.Errorf("%w: no JSON object in model answer", domain.ErrInvalidInput)
	}
	return json.Unmarshal([]byte(s[start:end+1]), v)
}

func loadPrompt(store driven.PromptStore, name, fallback string) string {
	if store == nil {
		return fallback
	}
	prompt, err := store.Load(name)
	if err != nil {
		return fallback
	}
	return prompt
}

func clamp(c float64) float64 {
	return min(max(c, 0), 1)
}
