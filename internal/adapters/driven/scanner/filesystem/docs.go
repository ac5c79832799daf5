package filesystem

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driven"
	"github.com/custodia-labs/mce/internal/logger"
	"github.com/custodia-labs/mce/internal/postprocessors"
)

// Ensure DocScanner implements the interfaces.
var (
	_ driven.Scanner = (*DocScanner)(nil)
	_ driven.Watcher = (*DocScanner)(nil)
)

// docExtensions lists the documentation files the doc scanner reads.
var docExtensions = []string{".md", ".markdown", ".txt", ".rst"}

// DocScanner reads documentation files, chunks them and extracts the
// entities and fields they describe.
type DocScanner struct {
	pipeline  driven.PostProcessorPipeline
	extractor driven.Extractor
	debounce  time.Duration
}

// DocOption configures a DocScanner.
type DocOption func(*DocScanner)

// WithPipeline sets the chunking pipeline.
func WithPipeline(p driven.PostProcessorPipeline) DocOption {
	return func(s *DocScanner) {
		if p != nil {
			s.pipeline = p
		}
	}
}

// WithExtractor sets a model-backed extractor. Without one, entities are
// found by markdown pattern matching.
func WithExtractor(x driven.Extractor) DocOption {
	return func(s *DocScanner) {
		s.extractor = x
	}
}

// WithDocDebounce sets how long Watch waits for changes to settle.
func WithDocDebounce(d time.Duration) DocOption {
	return func(s *DocScanner) {
		s.debounce = d
	}
}

// NewDocScanner creates a documentation scanner.
func NewDocScanner(opts ...DocOption) *DocScanner {
	s := &DocScanner{
		pipeline: postprocessors.DefaultPipeline(nil),
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Kind returns domain.SourceDocs.
func (s *DocScanner) Kind() domain.SourceKind {
	return domain.SourceDocs
}

// ScanBroad reads every documentation file under src.Root.
func (s *DocScanner) ScanBroad(ctx context.Context, src domain.ScanSource) (*domain.ExtractedItems, error) {
	if src.Root == "" {
		return nil, fmt.Errorf("%w: empty scan root", domain.ErrInvalidInput)
	}

	items := &domain.ExtractedItems{}
	fail := func(path string, err error) {
		items.Failures = append(items.Failures, domain.ScanFailure{Location: path, Reason: err.Error()})
	}
	err := walk(ctx, src.Root, hasExt(docExtensions...), func(path string) {
		found, err := s.scanFile(ctx, path)
		if err != nil {
			fail(path, err)
			return
		}
		items.Merge(found)
	}, fail)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", src.Root, err)
	}

	dedupe(items)
	return items, nil
}

// ScanTargeted re-reads one document, keeping only what concerns focus.
// The document is located by loc.Path, or by loc.DocumentID when it carries a URI.
func (s *DocScanner) ScanTargeted(ctx context.Context, loc domain.Location, focus domain.NodeRef) (*domain.ExtractedItems, error) {
	path := loc.Path
	if path == "" {
		path = strings.TrimPrefix(loc.DocumentID, domain.DocumentID(""))
	}
	if path == "" {
		return nil, domain.ErrNoLocation
	}

	items, err := s.scanFile(ctx, path)
	if err != nil {
		return nil, err
	}
	dedupe(items)
	focusOn(items, focus)
	return items, nil
}

// Watch reports changed documentation files under root.
func (s *DocScanner) Watch(ctx context.Context, root string) (<-chan string, error) {
	return watch(ctx, root, hasExt(docExtensions...), s.debounce)
}

func (s *DocScanner) scanFile(ctx context.Context, path string) (*domain.ExtractedItems, error) {
	content, err := readFile(path)
	if err != nil {
		return nil, err
	}

	doc := domain.Document{
		ID:      domain.DocumentID(path),
		URI:     path,
		Title:   documentTitle(path, string(content)),
		Content: string(content),
		Metadata: map[string]any{
			"extension": strings.ToLower(filepath.Ext(path)),
			"size":      len(content),
		},
	}
	chunks, err := s.pipeline.Process(ctx, &doc)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", path, err)
	}

	items := &domain.ExtractedItems{Documents: []domain.Document{doc}, Chunks: chunks}
	if s.extractor != nil {
		for i := range chunks {
			found, err := s.extractor.Extract(ctx, &doc, &chunks[i])
			if err != nil {
				logger.Warn("Extract %s failed, using patterns: %v", chunks[i].ID, err)
				items.Merge(extractMarkdown(&doc, chunks[i:i+1]))
				continue
			}
			items.Merge(found)
		}
		return items, nil
	}
	items.Merge(extractMarkdown(&doc, chunks))
	return items, nil
}

// documentTitle returns the first heading, or the file name without extension.
func documentTitle(path, content string) string {
	for line := range strings.Lines(content) {
		if heading, _, ok := parseHeading(line); ok {
			return heading
		}
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
