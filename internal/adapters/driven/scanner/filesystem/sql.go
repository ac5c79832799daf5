package filesystem

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/mce/internal/core/domain"
)

var (
	createTable = regexp.MustCompile("(?is)CREATE\\s+TABLE\\s+(?:IF\\s+NOT\\s+EXISTS\\s+)?[`\"\\[]?(\\w+)[`\"\\]]?\\s*\\((.*?)\\)\\s*;")
	sqlComment  = regexp.MustCompile(`--[^\n]*`)
	sqlRefers   = regexp.MustCompile(`(?i)\bREFERENCES\s+[` + "`" + `"\[]?(\w+)`)
)

// sqlConstraints start table-level clauses that are not columns.
var sqlConstraints = []string{"PRIMARY", "FOREIGN", "UNIQUE", "CONSTRAINT", "CHECK", "KEY", "INDEX"}

// parseSQL extracts one entity per CREATE TABLE statement.
func parseSQL(path, src string) (*domain.ExtractedItems, []reference) {
	items := &domain.ExtractedItems{}
	var refs []reference

	for _, m := range createTable.FindAllStringSubmatchIndex(src, -1) {
		name := src[m[2]:m[3]]
		body := src[m[4]:m[5]]
		start := lineAt(src, m[0])
		bodyLine := lineAt(src, m[4])
		entityID := domain.EntityID(name)

		items.Entities = append(items.Entities, domain.DataEntity{
			ID:         entityID,
			Name:       name,
			Kind:       "table",
			Confidence: codeConfidence,
			Provenance: []domain.Provenance{{SourceFile: path, Line: start, Extractor: "sql"}},
			Properties: map[string]any{
				propStartLine: start,
				propEndLine:   lineAt(src, m[1]),
			},
		})

		for _, col := range splitColumns(body) {
			def := strings.TrimSpace(sqlComment.ReplaceAllString(col.text, ""))
			parts := strings.Fields(def)
			if len(parts) < 2 || isConstraint(parts[0]) {
				if ref := sqlRefers.FindStringSubmatch(def); ref != nil {
					refs = append(refs, reference{fromID: entityID, toName: ref[1], via: "constraint"})
				}
				continue
			}

			colName := strings.Trim(parts[0], "`\"[]")
			field := domain.Field{
				ID:          domain.FieldID(name, colName),
				EntityID:    entityID,
				Name:        colName,
				DataType:    strings.ToLower(parts[1]),
				Description: col.comment,
				Confidence:  codeConfidence,
				Provenance:  []domain.Provenance{{SourceFile: path, Line: bodyLine + strings.Count(body[:col.offset], "\n"), Extractor: "sql"}},
			}
			items.Fields = append(items.Fields, field)
			items.Relationships = append(items.Relationships, domain.Relationship{
				FromID: entityID, ToID: field.ID, Type: domain.RelHasField,
			})
			if ref := sqlRefers.FindStringSubmatch(def); ref != nil {
				refs = append(refs, reference{fromID: entityID, toName: ref[1], via: colName})
			}
		}
	}
	return items, refs
}

// sqlColumn is one comma-separated clause of a table body.
type sqlColumn struct {
	text    string
	offset  int
	comment string
}

// splitColumns splits a table body on commas outside parentheses and comments.
// A comment after a column's comma, on the same line, belongs to that column.
func splitColumns(body string) []sqlColumn {
	var raw []sqlColumn
	depth, start := 0, 0
	inComment := false
	for i, r := range body {
		switch {
		case inComment:
			if r == '\n' {
				inComment = false
			}
		case r == '-' && strings.HasPrefix(body[i:], "--"):
			inComment = true
		case r == '(':
			depth++
		case r == ')':
			depth--
		case r == ',' && depth == 0:
			raw = append(raw, sqlColumn{text: body[start:i], offset: start})
			start = i + 1
		}
	}
	raw = append(raw, sqlColumn{text: body[start:], offset: start})

	for i := range raw {
		head, rest, found := strings.Cut(raw[i].text, "\n")
		if i > 0 && found && strings.HasPrefix(strings.TrimSpace(head), "--") {
			raw[i-1].comment = sqlCommentText(raw[i-1].comment, head)
			raw[i].offset += len(head) + 1
			raw[i].text = rest
		}
	}

	out := make([]sqlColumn, 0, len(raw))
	for _, c := range raw {
		def := sqlComment.ReplaceAllString(c.text, "")
		if strings.TrimSpace(def) == "" {
			continue
		}
		lead := len(c.text) - len(strings.TrimLeft(c.text, " \t\r\n"))
		for strings.HasPrefix(c.text[lead:], "--") {
			nl := strings.IndexByte(c.text[lead:], '\n')
			if nl < 0 {
				break
			}
			lead += nl + 1
			lead += len(c.text[lead:]) - len(strings.TrimLeft(c.text[lead:], " \t\r\n"))
		}
		c.offset += lead
		c.comment = sqlCommentText(c.comment, c.text)
		out = append(out, c)
	}
	return out
}

// sqlCommentText appends the text of every SQL comment in src to base.
func sqlCommentText(base, src string) string {
	parts := strings.Fields(base)
	for _, c := range sqlComment.FindAllString(src, -1) {
		parts = append(parts, strings.Fields(strings.TrimPrefix(c, "--"))...)
	}
	return strings.Join(parts, " ")
}

func isConstraint(word string) bool {
	for _, c := range sqlConstraints {
		if strings.EqualFold(word, c) {
			return true
		}
	}
	return false
}

func lineAt(src string, offset int) int {
	return strings.Count(src[:offset], "\n") + 1
}
