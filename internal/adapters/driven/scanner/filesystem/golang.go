package filesystem

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"reflect"
	"strconv"
	"strings"

	"github.com/custodia-labs/mce/internal/core/domain"
)

// Entity properties recorded by the code scanner.
const (
	propPackage   = "package"
	propStartLine = "start_line"
	propEndLine   = "end_line"
	propTag       = "json_name"
)

// parseGo extracts one entity per struct type declared in a Go file.
func parseGo(path string, src []byte) (*domain.ExtractedItems, []reference, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}

	items := &domain.ExtractedItems{}
	var refs []reference
	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, spec := range gd.Specs {
			ts := spec.(*ast.TypeSpec)
			st, ok := ts.Type.(*ast.StructType)
			if !ok {
				continue
			}
			doc := ts.Doc
			if doc == nil && len(gd.Specs) == 1 {
				doc = gd.Doc
			}

			name := ts.Name.Name
			entityID := domain.EntityID(name)
			start := fset.Position(ts.Pos()).Line
			items.Entities = append(items.Entities, domain.DataEntity{
				ID:          entityID,
				Name:        name,
				Kind:        "struct",
				Description: commentText(doc),
				Confidence:  codeConfidence,
				Provenance:  []domain.Provenance{{SourceFile: path, Line: start, Extractor: "go"}},
				Properties: map[string]any{
					propPackage:   file.Name.Name,
					propStartLine: start,
					propEndLine:   fset.Position(ts.End()).Line,
				},
			})

			for _, f := range st.Fields.List {
				typeName := baseTypeName(f.Type)
				if len(f.Names) == 0 {
					if typeName != "" {
						refs = append(refs, reference{fromID: entityID, toName: typeName, via: "embedded"})
					}
					continue
				}
				desc := commentText(f.Doc)
				if desc == "" {
					desc = commentText(f.Comment)
				}
				for _, ident := range f.Names {
					if ident.Name == "_" {
						continue
					}
					field := domain.Field{
						ID:          domain.FieldID(name, ident.Name),
						EntityID:    entityID,
						Name:        ident.Name,
						DataType:    types.ExprString(f.Type),
						Description: desc,
						Confidence:  codeConfidence,
						Provenance:  []domain.Provenance{{SourceFile: path, Line: fset.Position(ident.Pos()).Line, Extractor: "go"}},
					}
					if tag := jsonName(f.Tag); tag != "" {
						field.Properties = map[string]any{propTag: tag}
					}
					items.Fields = append(items.Fields, field)
					items.Relationships = append(items.Relationships, domain.Relationship{
						FromID: entityID, ToID: field.ID, Type: domain.RelHasField,
					})
					if typeName != "" {
						refs = append(refs, reference{fromID: entityID, toName: typeName, via: ident.Name})
					}
				}
			}
		}
	}
	return items, refs, nil
}

// baseTypeName strips pointers, slices, arrays and map values down to the
// named type, or returns "" for builtin and anonymous types.
func baseTypeName(expr ast.Expr) string {
	for {
		switch t := expr.(type) {
		case *ast.StarExpr:
			expr = t.X
		case *ast.ArrayType:
			expr = t.Elt
		case *ast.MapType:
			expr = t.Value
		case *ast.SelectorExpr:
			return t.Sel.Name
		case *ast.Ident:
			if types.Universe.Lookup(t.Name) != nil {
				return ""
			}
			return t.Name
		default:
			return ""
		}
	}
}

// commentText returns a comment group as a single line.
func commentText(cg *ast.CommentGroup) string {
	if cg == nil {
		return ""
	}
	return strings.Join(strings.Fields(cg.Text()), " ")
}

func jsonName(tag *ast.BasicLit) string {
	if tag == nil {
		return ""
	}
	raw, err := strconv.Unquote(tag.Value)
	if err != nil {
		return ""
	}
	name, _, _ := strings.Cut(reflect.StructTag(raw).Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}
