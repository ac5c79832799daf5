// Package chunker splits documentation into section-aware, content-addressed chunks.
package chunker

import (
	"context"
	"slices"
	"strings"

	"github.com/custodia-labs/mce/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters
// used when a single paragraph has to be split.
const DefaultChunkOverlap = 200

// Chunk metadata keys.
const (
	// MetadataSection holds the enclosing heading.
	MetadataSection = "section"

	// MetadataSectionPath holds the enclosing headings from outermost to
	// innermost, joined by SectionPathSeparator.
	MetadataSectionPath = "section_path"
)

// SectionPathSeparator joins headings in MetadataSectionPath.
const SectionPathSeparator = " > "

// Processor splits document content into chunks along markdown headings
// and paragraph boundaries. It implements the PostProcessor interface.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between split paragraphs in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits the document content into chunks.
// Input chunks are ignored; this processor creates new chunks from document content.
// Chunk IDs are derived from content, so an unchanged section keeps its ID across scans.
func (p *Processor) Process(_ context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return nil, nil
	}

	var chunks []domain.Chunk
	emit := func(sec section, content string) {
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}
		chunks = append(chunks, domain.Chunk{
			ID:         domain.ChunkID(doc.ID, content),
			DocumentID: doc.ID,
			Content:    content,
			Position:   len(chunks),
			Metadata: map[string]any{
				MetadataSection:     sec.heading,
				MetadataSectionPath: strings.Join(sec.path, SectionPathSeparator),
			},
		})
	}

	for _, sec := range sections(doc.Content) {
		var buf strings.Builder
		for _, para := range paragraphs(sec.body) {
			if len(para) > p.chunkSize {
				emit(sec, buf.String())
				buf.Reset()
				for _, piece := range p.split(para) {
					emit(sec, piece)
				}
				continue
			}
			if buf.Len() > 0 && buf.Len()+len(para)+2 > p.chunkSize {
				emit(sec, buf.String())
				buf.Reset()
			}
			if buf.Len() > 0 {
				buf.WriteString("\n\n")
			}
			buf.WriteString(para)
		}
		emit(sec, buf.String())
	}

	return chunks, nil
}

// split cuts an oversized paragraph into overlapping windows.
func (p *Processor) split(text string) []string {
	var out []string
	step := p.chunkSize - p.overlap
	for start := 0; start < len(text); start += step {
		end := min(start+p.chunkSize, len(text))
		out = append(out, text[start:end])
		if end == len(text) {
			break
		}
	}
	return out
}

type section struct {
	heading string
	path    []string
	body    string
}

// sections splits markdown into heading-delimited sections.
// The heading line stays in the body so each chunk reads on its own.
func sections(content string) []section {
	var (
		out     []section
		current section
		body    strings.Builder
		levels  []int
		trail   []string
	)
	for line := range strings.Lines(content) {
		if heading, level, ok := headingText(line); ok {
			current.body = body.String()
			out = append(out, current)
			body.Reset()

			for len(levels) > 0 && levels[len(levels)-1] >= level {
				levels = levels[:len(levels)-1]
				trail = trail[:len(trail)-1]
			}
			levels = append(levels, level)
			trail = append(trail, heading)
			current = section{heading: heading, path: slices.Clone(trail)}
		}
		body.WriteString(line)
	}
	current.body = body.String()
	return append(out, current)
}

func headingText(line string) (string, int, bool) {
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

func paragraphs(body string) []string {
	var out []string
	for _, p := range strings.Split(body, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
