package filesystem

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/postprocessors/chunker"
)

var (
	// "# Order", "## `Order` table", "### Customer entity"
	entityHeading = regexp.MustCompile("(?i)^`?([A-Za-z][A-Za-z0-9_]*)`?(?:\\s+(?:entity|table|model|type|struct|object|record))?$")

	// "- `amount` (decimal): total charged" or "* amount - total"
	fieldBullet = regexp.MustCompile("^\\s*[-*+]\\s+`?([A-Za-z_][A-Za-z0-9_]*)`?\\s*(?:\\(\\s*`?([^)`]+?)`?\\s*\\))?\\s*(?:[:–-]\\s*(.*))?$")

	// "| amount | decimal | total charged |"
	fieldRow = regexp.MustCompile("^\\s*\\|\\s*`?([A-Za-z_][A-Za-z0-9_]*)`?\\s*\\|\\s*`?([^|`]*?)`?\\s*\\|(?:\\s*([^|]*?)\\s*\\|)?")

	// cross references written as "see Customer" or "references Customer"
	seeAlso = regexp.MustCompile("(?i)\\b(?:see|references?|belongs to|links to)\\s+(?:the\\s+)?`?([A-Z][A-Za-z0-9_]*)`?")
)

// tableHeaderNames are first-column values of markdown table header rows.
var tableHeaderNames = map[string]bool{"field": true, "name": true, "column": true, "attribute": true, "property": true}

// extractMarkdown finds entities and fields described by markdown structure:
// an identifier-like heading names an entity, and bullets or table rows
// beneath it name its fields.
func extractMarkdown(doc *domain.Document, chunks []domain.Chunk) *domain.ExtractedItems {
	items := &domain.ExtractedItems{}
	var refs []reference

	for i := range chunks {
		chunk := &chunks[i]
		prov := domain.Provenance{DocumentID: doc.ID, ChunkID: chunk.ID, Extractor: "markdown"}

		var (
			entity      *domain.DataEntity
			entityLevel int
			inParagraph bool
		)
		// A chunk under a sub-heading inherits the nearest entity heading above it.
		if path, _ := chunk.Metadata[chunker.MetadataSectionPath].(string); path != "" {
			headings := strings.Split(path, chunker.SectionPathSeparator)
			for j := len(headings) - 1; j >= 0 && entity == nil; j-- {
				entity = entityFromHeading(headings[j], prov)
			}
		}

		flush := func() {
			if entity != nil {
				items.Entities = append(items.Entities, *entity)
				items.Relationships = append(items.Relationships, domain.Relationship{
					FromID: entity.ID, ToID: doc.ID, Type: domain.RelDescribedBy,
				})
			}
		}

		for line := range strings.Lines(chunk.Content) {
			line = strings.TrimRight(line, "\r\n")
			if text, level, ok := parseHeading(line); ok {
				inParagraph = false
				if e := entityFromHeading(text, prov); e != nil {
					if entity == nil || e.ID != entity.ID {
						flush()
					}
					entity, entityLevel = e, level
					continue
				}
				if level <= entityLevel {
					flush()
					entity = nil
				}
				continue
			}
			if entity == nil {
				continue
			}
			if strings.TrimSpace(line) == "" {
				inParagraph = false
				continue
			}

			if name, dataType, desc, ok := parseFieldLine(line); ok {
				inParagraph = false
				field := domain.Field{
					ID:          domain.FieldID(entity.Name, name),
					EntityID:    entity.ID,
					Name:        name,
					DataType:    dataType,
					Description: desc,
					Confidence:  patternConfidence,
					Provenance:  []domain.Provenance{prov},
				}
				items.Fields = append(items.Fields, field)
				items.Relationships = append(items.Relationships,
					domain.Relationship{FromID: entity.ID, ToID: field.ID, Type: domain.RelHasField},
					domain.Relationship{FromID: field.ID, ToID: doc.ID, Type: domain.RelDescribedBy},
				)
				continue
			}

			text := strings.TrimSpace(line)
			if strings.HasPrefix(text, "|") {
				continue
			}
			for _, m := range seeAlso.FindAllStringSubmatch(text, -1) {
				refs = append(refs, reference{fromID: entity.ID, toName: m[1], via: doc.ID})
			}
			switch {
			case entity.Description == "":
				entity.Description = text
				inParagraph = true
			case inParagraph:
				entity.Description += " " + text
			}
		}
		flush()
	}

	resolveReferences(items, refs)
	return items
}

// parseHeading returns the text and level of an ATX markdown heading.
func parseHeading(line string) (string, int, bool) {
	trimmed := strings.TrimSpace(line)
	level := len(trimmed) - len(strings.TrimLeft(trimmed, "#"))
	if level == 0 || level > 6 {
		return "", 0, false
	}
	text := strings.TrimSpace(trimmed[level:])
	if text == "" {
		return "", 0, false
	}
	return text, level, true
}

func entityFromHeading(text string, prov domain.Provenance) *domain.DataEntity {
	m := entityHeading.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil || tableHeaderNames[strings.ToLower(m[1])] || isSectionWord(m[1]) {
		return nil
	}
	return &domain.DataEntity{
		ID:         domain.EntityID(m[1]),
		Name:       m[1],
		Kind:       "documented",
		Confidence: patternConfidence,
		Provenance: []domain.Provenance{prov},
	}
}

// isSectionWord filters headings that organise a document rather than name an entity.
func isSectionWord(word string) bool {
	switch strings.ToLower(word) {
	case "overview", "introduction", "intro", "fields", "columns", "attributes", "properties",
		"examples", "example", "usage", "notes", "summary", "references", "contents", "glossary":
		return true
	default:
		return false
	}
}

func parseFieldLine(line string) (name, dataType, desc string, ok bool) {
	if m := fieldBullet.FindStringSubmatch(line); m != nil {
		if m[2] == "" && m[3] == "" {
			return "", "", "", false
		}
		return m[1], strings.TrimSpace(m[2]), strings.TrimSpace(m[3]), true
	}
	if m := fieldRow.FindStringSubmatch(line); m != nil && !tableHeaderNames[strings.ToLower(m[1])] {
		return m[1], strings.TrimSpace(m[2]), strings.TrimSpace(m[3]), true
	}
	return "", "", "", false
}
