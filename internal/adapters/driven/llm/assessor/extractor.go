package assessor

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driven"
)

// llmExtractionConfidence is the confidence given to model-extracted nodes.
const llmExtractionConfidence = 0.7

// defaultExtractPrompt is the fallback prompt when no PromptStore is configured.
const defaultExtractPrompt = `Extract data entities and their fields from the documentation below.
Respond with JSON only:
{"entities": [{"name": "", "description": "", "fields": [{"name": "", "data_type": "", "description": ""}]}]}

Documentation:
%s`

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor implements driven.Extractor with a language model.
type Extractor struct {
	llm     driven.LLMService
	prompts driven.PromptStore
}

// NewExtractor creates an extractor. llm is required.
func NewExtractor(llm driven.LLMService, prompts driven.PromptStore) (*Extractor, error) {
	if llm == nil {
		return nil, domain.ErrLLMUnavailable
	}
	return &Extractor{llm: llm, prompts: prompts}, nil
}

type extraction struct {
	Entities []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Fields      []struct {
			Name        string `json:"name"`
			DataType    string `json:"data_type"`
			Description string `json:"description"`
		} `json:"fields"`
	} `json:"entities"`
}

// Extract returns the entities and fields described by the chunk.
// An unparseable answer is reported as a scan failure, not an error.
func (e *Extractor) Extract(ctx context.Context, doc *domain.Document, chunk *domain.Chunk) (*domain.ExtractedItems, error) {
	prompt := fmt.Sprintf(loadPrompt(e.prompts, driven.PromptExtract, defaultExtractPrompt), chunk.Content)
	out, err := e.llm.Generate(ctx, prompt, driven.GenerateOptions{JSON: true, Temperature: 0.1})
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", chunk.ID, err)
	}

	items := &domain.ExtractedItems{}
	var x extraction
	if err := decodeJSON(out, &x); err != nil {
		items.Failures = append(items.Failures, domain.ScanFailure{Location: doc.URI, Reason: "unparseable model answer"})
		return items, nil
	}

	prov := domain.Provenance{DocumentID: doc.ID, ChunkID: chunk.ID, Extractor: "llm:" + e.llm.ModelName()}
	for _, ent := range x.Entities {
		name := strings.TrimSpace(ent.Name)
		if name == "" {
			continue
		}
		entityID := domain.EntityID(name)
		items.Entities = append(items.Entities, domain.DataEntity{
			ID:          entityID,
			Name:        name,
			Description: strings.TrimSpace(ent.Description),
			Confidence:  llmExtractionConfidence,
			Provenance:  []domain.Provenance{prov},
		})
		items.Relationships = append(items.Relationships, domain.Relationship{
			FromID: entityID, ToID: doc.ID, Type: domain.RelDescribedBy,
		})
		for _, f := range ent.Fields {
			fname := strings.TrimSpace(f.Name)
			if fname == "" {
				continue
			}
			fieldID := domain.FieldID(name, fname)
			items.Fields = append(items.Fields, domain.Field{
				ID:          fieldID,
				EntityID:    entityID,
				Name:        fname,
				DataType:    strings.TrimSpace(f.DataType),
				Description: strings.TrimSpace(f.Description),
				Confidence:  llmExtractionConfidence,
				Provenance:  []domain.Provenance{prov},
			})
			items.Relationships = append(items.Relationships, domain.Relationship{
				FromID: entityID, ToID: fieldID, Type: domain.RelHasField,
			})
		}
	}
	return items, nil
}
