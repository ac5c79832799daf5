package filesystem

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driven"
)

// Ensure CodeScanner implements the interfaces.
var (
	_ driven.Scanner = (*CodeScanner)(nil)
	_ driven.Watcher = (*CodeScanner)(nil)
)

// codeExtensions lists the source files the code scanner understands.
var codeExtensions = []string{".go", ".sql"}

// CodeScanner extracts entities and fields from Go struct declarations
// and SQL CREATE TABLE statements.
type CodeScanner struct {
	debounce time.Duration
	now      func() time.Time
}

// CodeOption configures a CodeScanner.
type CodeOption func(*CodeScanner)

// WithCodeDebounce sets how long Watch waits for changes to settle.
func WithCodeDebounce(d time.Duration) CodeOption {
	return func(s *CodeScanner) {
		s.debounce = d
	}
}

// NewCodeScanner creates a code scanner.
func NewCodeScanner(opts ...CodeOption) *CodeScanner {
	s := &CodeScanner{debounce: DefaultDebounce, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Kind returns domain.SourceCode.
func (s *CodeScanner) Kind() domain.SourceKind {
	return domain.SourceCode
}

// ScanBroad extracts every struct and table found under src.Root.
func (s *CodeScanner) ScanBroad(ctx context.Context, src domain.ScanSource) (*domain.ExtractedItems, error) {
	if src.Root == "" {
		return nil, fmt.Errorf("%w: empty scan root", domain.ErrInvalidInput)
	}

	items := &domain.ExtractedItems{}
	var refs []reference
	fail := func(path string, err error) {
		items.Failures = append(items.Failures, domain.ScanFailure{Location: path, Reason: err.Error()})
	}
	err := walk(ctx, src.Root, s.accept, func(path string) {
		found, fileRefs, err := s.scanFile(path)
		if err != nil {
			fail(path, err)
			return
		}
		items.Merge(found)
		refs = append(refs, fileRefs...)
	}, fail)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", src.Root, err)
	}

	dedupe(items)
	resolveReferences(items, refs)
	return items, nil
}

// ScanTargeted re-extracts a single file. With a focus node only that node's
// entity and fields are returned; otherwise a non-zero Line keeps only the
// declarations spanning it.
func (s *CodeScanner) ScanTargeted(ctx context.Context, loc domain.Location, focus domain.NodeRef) (*domain.ExtractedItems, error) {
	if loc.Path == "" {
		return nil, domain.ErrNoLocation
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items, refs, err := s.scanFile(loc.Path)
	if err != nil {
		return nil, err
	}
	resolveReferences(items, refs)

	switch {
	case focus.ID != "":
		focusOn(items, focus)
	case loc.Line > 0:
		keepSpanning(items, loc.Line)
	}
	return items, nil
}

// Watch reports changed source files under root.
func (s *CodeScanner) Watch(ctx context.Context, root string) (<-chan string, error) {
	return watch(ctx, root, s.accept, s.debounce)
}

func (s *CodeScanner) accept(path string) bool {
	return hasExt(codeExtensions...)(path) && !strings.HasSuffix(path, "_test.go")
}

func (s *CodeScanner) scanFile(path string) (*domain.ExtractedItems, []reference, error) {
	src, err := readFile(path)
	if err != nil {
		return nil, nil, err
	}

	var (
		items *domain.ExtractedItems
		refs  []reference
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		items, refs, err = parseGo(path, src)
	case ".sql":
		items, refs = parseSQL(path, string(src))
	default:
		return nil, nil, fmt.Errorf("%w: unsupported source %s", domain.ErrInvalidInput, path)
	}
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	for i := range items.Entities {
		stamp(items.Entities[i].Provenance, now)
	}
	for i := range items.Fields {
		stamp(items.Fields[i].Provenance, now)
	}
	return items, refs, nil
}

func stamp(prov []domain.Provenance, at time.Time) {
	for i := range prov {
		prov[i].RecordedAt = at
	}
}

// keepSpanning keeps the entities whose declaration spans line, with their fields.
func keepSpanning(items *domain.ExtractedItems, line int) {
	for _, e := range items.Entities {
		start, _ := e.Properties[propStartLine].(int)
		end, _ := e.Properties[propEndLine].(int)
		if line >= start && line <= end {
			focusOn(items, e.Ref())
			return
		}
	}
}
