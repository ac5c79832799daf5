// Package summary fills chunk summaries using a language model.
package summary

import (
	"context"
	"errors"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driven"
	"github.com/custodia-labs/mce/internal/logger"
)

// DefaultMaxLength is the default summary length in words.
const DefaultMaxLength = 40

// DefaultMinChars is the shortest chunk worth summarising.
const DefaultMinChars = 200

// Processor summarises chunks. It implements the PostProcessor interface.
// Summarisation failures are logged and leave the chunk without a summary.
type Processor struct {
	llm       driven.LLMService
	maxLength int
	minChars  int
}

// Option configures the summary processor.
type Option func(*Processor)

// WithMaxLength sets the summary length in words.
func WithMaxLength(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxLength = n
		}
	}
}

// WithMinChars sets the shortest chunk that gets summarised.
func WithMinChars(n int) Option {
	return func(p *Processor) {
		if n >= 0 {
			p.minChars = n
		}
	}
}

// New creates a summary processor. llm is required.
func New(llm driven.LLMService, opts ...Option) (*Processor, error) {
	if llm == nil {
		return nil, domain.ErrLLMUnavailable
	}
	p := &Processor{llm: llm, maxLength: DefaultMaxLength, minChars: DefaultMinChars}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "summary"
}

// Process sets Summary on every chunk long enough to need one.
func (p *Processor) Process(ctx context.Context, _ *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	for i := range chunks {
		if chunks[i].Summary != "" || len(chunks[i].Content) < p.minChars {
			continue
		}
		s, err := p.llm.Summarise(ctx, chunks[i].Content, p.maxLength)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			logger.Warn("summarise %s: %v", chunks[i].ID, err)
			continue
		}
		chunks[i].Summary = s
	}
	return chunks, nil
}
